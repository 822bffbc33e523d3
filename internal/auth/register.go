package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/users"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	dbpkg "github.com/nurseryfinder/nurseryfinder-backend/pkg/db"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/security"
)

// RegisterService opens parent and owner accounts.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registerUserRepo interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

type nurseryCreator interface {
	Create(ctx context.Context, tx *gorm.DB, input nurseries.CreateNurseryDTO) (*nurseries.NurseryDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             txRunner
	Nurseries      nurseryCreator
	PasswordConfig config.PasswordConfig
	// UsersForTx binds the user repository to the registration transaction.
	UsersForTx func(tx *gorm.DB) registerUserRepo
}

type registerService struct {
	db          txRunner
	nurseries   nurseryCreator
	passwordCfg config.PasswordConfig
	usersForTx  func(tx *gorm.DB) registerUserRepo
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Nurseries == nil {
		return nil, fmt.Errorf("nursery service is required")
	}
	usersForTx := params.UsersForTx
	if usersForTx == nil {
		usersForTx = func(tx *gorm.DB) registerUserRepo { return users.NewRepository(tx) }
	}
	return &registerService{
		db:          params.DB,
		nurseries:   params.Nurseries,
		passwordCfg: params.PasswordConfig,
		usersForTx:  usersForTx,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !req.Role.SelfRegistrable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be PARENT or NURSERY_OWNER")
	}
	if req.Nursery != nil && req.Role != enums.RoleNurseryOwner {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only nursery owners can list a nursery")
	}
	if err := security.CheckPasswordLength(req.Password, s.passwordCfg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	resp := &RegisterResponse{}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.usersForTx(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			Role:         req.Role,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			Phone:        req.Phone,
		})
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		resp.User = users.FromModel(user)

		if req.Nursery == nil {
			return nil
		}
		nursery, err := s.nurseries.Create(ctx, tx, nurseries.CreateNurseryDTO{
			Name:        req.Nursery.Name,
			OwnerID:     user.ID,
			Town:        req.Nursery.Town,
			Postcode:    req.Nursery.Postcode,
			Description: req.Nursery.Description,
			AgeGroups:   req.Nursery.AgeGroups,
		})
		if err != nil {
			return err
		}
		resp.Nursery = nursery
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
