package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	Email  string
	// JTI doubles as the refresh-session key; generated when empty.
	JTI string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID           `json:"user_id"`
	Role   enums.Role          `json:"role"`
	Domain enums.SessionDomain `json:"domain"`
	Email  string              `json:"email,omitempty"`
	jwt.RegisteredClaims
}
