package auth

import (
	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/users"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful login.
// NurseryName is set for owners with at least one nursery.
type LoginResponse struct {
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
	Domain       enums.SessionDomain `json:"domain"`
	User         *users.UserDTO      `json:"user"`
	NurseryName  *string             `json:"nurseryName,omitempty"`
}

// RefreshRequest carries the refresh token paired with the presented access token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RefreshResponse holds the rotated token pair.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterNurseryRequest lets an owner list their first nursery at sign-up.
type RegisterNurseryRequest struct {
	Name        string   `json:"name" validate:"required,max=120"`
	Town        string   `json:"town" validate:"required,max=80"`
	Postcode    string   `json:"postcode" validate:"required,max=10"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=4000"`
	AgeGroups   []string `json:"ageGroups,omitempty" validate:"omitempty,dive,required,max=20"`
}

// RegisterRequest contains the payload required to open a user-domain account.
type RegisterRequest struct {
	FirstName string                  `json:"firstName" validate:"required,max=80"`
	LastName  string                  `json:"lastName" validate:"required,max=80"`
	Email     string                  `json:"email" validate:"required,email"`
	Password  string                  `json:"password" validate:"required"`
	Phone     *string                 `json:"phone,omitempty" validate:"omitempty,max=32"`
	Role      enums.Role              `json:"role" validate:"required"`
	Nursery   *RegisterNurseryRequest `json:"nursery,omitempty"`
}

// RegisterResponse returns the new account and, for owners, the pending nursery.
type RegisterResponse struct {
	User    *users.UserDTO        `json:"user"`
	Nursery *nurseries.NurseryDTO `json:"nursery,omitempty"`
}
