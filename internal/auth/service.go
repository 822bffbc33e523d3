package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurseryfinder/nurseryfinder-backend/internal/users"
	pkgAuth "github.com/nurseryfinder/nurseryfinder-backend/pkg/auth"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/auth/session"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controllers. Every call is
// scoped to one session domain; credentials from the other domain are
// rejected as if they did not exist.
type Service interface {
	Login(ctx context.Context, domain enums.SessionDomain, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, domain enums.SessionDomain, accessToken, refreshToken string) (*RefreshResponse, error)
	Logout(ctx context.Context, domain enums.SessionDomain, accessToken string) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type ownerNurseries interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Nursery, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type sessionEvents interface {
	Publish(ctx context.Context, evt session.Event) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo     userRepository
	Nurseries    ownerNurseries
	AdminSession sessionManager
	UserSession  sessionManager
	Events       sessionEvents
	JWTConfig    config.JWTConfig
	Logger       *logger.Logger
}

type service struct {
	users     userRepository
	nurseries ownerNurseries
	sessions  map[enums.SessionDomain]sessionManager
	events    sessionEvents
	jwtCfg    config.JWTConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService constructs an auth service with one session manager per domain.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Nurseries == nil {
		return nil, fmt.Errorf("nursery repository is required")
	}
	if params.AdminSession == nil || params.UserSession == nil {
		return nil, fmt.Errorf("admin and user session managers are required")
	}
	return &service{
		users:     params.UserRepo,
		nurseries: params.Nurseries,
		sessions: map[enums.SessionDomain]sessionManager{
			enums.SessionDomainAdmin: params.AdminSession,
			enums.SessionDomainUser:  params.UserSession,
		},
		events: params.Events,
		jwtCfg: params.JWTConfig,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

func (s *service) Login(ctx context.Context, domain enums.SessionDomain, req LoginRequest) (*LoginResponse, error) {
	manager, err := s.managerFor(domain)
	if err != nil {
		return nil, err
	}
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if user.Role.Domain() != domain {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &now

	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := manager.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}

	resp := &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Domain:       domain,
		User:         users.FromModel(user),
	}
	if user.Role == enums.RoleNurseryOwner {
		owned, err := s.nurseries.ListByOwner(ctx, user.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load owner nurseries")
		}
		if len(owned) > 0 {
			name := owned[0].Name
			resp.NurseryName = &name
		}
	}

	s.publish(ctx, session.Event{Type: session.EventLogin, Domain: domain, UserID: user.ID, AccessID: accessID, At: now})
	return resp, nil
}

func (s *service) Refresh(ctx context.Context, domain enums.SessionDomain, accessToken, refreshToken string) (*RefreshResponse, error) {
	manager, err := s.managerFor(domain)
	if err != nil {
		return nil, err
	}
	claims, err := s.parseForSession(domain, accessToken)
	if err != nil {
		return nil, err
	}

	newAccessID, newRefreshToken, err := manager.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	now := s.now().UTC()
	newAccessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: claims.UserID,
		Role:   claims.Role,
		Email:  claims.Email,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	s.publish(ctx, session.Event{Type: session.EventRefresh, Domain: domain, UserID: claims.UserID, AccessID: newAccessID, At: now})
	return &RefreshResponse{AccessToken: newAccessToken, RefreshToken: newRefreshToken}, nil
}

// Logout revokes the refresh session behind the presented access token. An
// already-revoked session is not an error.
func (s *service) Logout(ctx context.Context, domain enums.SessionDomain, accessToken string) error {
	manager, err := s.managerFor(domain)
	if err != nil {
		return err
	}
	claims, err := s.parseForSession(domain, accessToken)
	if err != nil {
		return err
	}
	if err := manager.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	s.publish(ctx, session.Event{Type: session.EventLogout, Domain: domain, UserID: claims.UserID, AccessID: claims.ID})
	return nil
}

func (s *service) managerFor(domain enums.SessionDomain) (sessionManager, error) {
	manager, ok := s.sessions[domain]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown session domain")
	}
	return manager, nil
}

// parseForSession accepts expired tokens so refresh and logout still work
// after the access token lapses. Audience and domain are still enforced.
func (s *service) parseForSession(domain enums.SessionDomain, token string) (*pkgAuth.AccessTokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, domain, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := users.NormalizeEmail(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *service) publish(ctx context.Context, evt session.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"event": evt.Type, "domain": evt.Domain})
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "session event publish failed")
	}
}
