package middleware

import (
	"context"
	"net/http"

	"github.com/nurseryfinder/nurseryfinder-backend/api/responses"
	"github.com/nurseryfinder/nurseryfinder-backend/api/validators"
	pkgAuth "github.com/nurseryfinder/nurseryfinder-backend/pkg/auth"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/auth/session"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

// AdminAuth accepts only admin-domain access tokens backed by a live admin session.
func AdminAuth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return Auth(enums.SessionDomainAdmin, cfg, verifier, logg)
}

// UserAuth accepts only user-domain access tokens backed by a live user session.
func UserAuth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return Auth(enums.SessionDomainUser, cfg, verifier, logg)
}

// Auth validates a bearer token for one session domain and seeds the request
// context with the claims. A token minted for the other domain fails the
// audience check and is treated like any invalid token.
func Auth(domain enums.SessionDomain, cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, domain, cfg, verifier, logg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalUserAuth attaches the user identity when a valid user-domain token
// is presented and otherwise lets the request through anonymously.
func OptionalUserAuth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx, err := authenticate(r, enums.SessionDomainUser, cfg, verifier, logg)
			if err != nil {
				if logg != nil {
					logg.Debug(r.Context(), "optional auth ignored invalid credentials")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, domain enums.SessionDomain, cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) (context.Context, error) {
	token, err := validators.RequestBearerToken(r)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, domain, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.Domain != domain || claims.Role.Domain() != domain {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	if verifier != nil {
		ok, err := verifier.HasSession(r.Context(), claims.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}

	ctx := WithIdentity(r.Context(), claims.UserID.String(), claims.Role, domain)
	ctx = context.WithValue(ctx, ctxEmail, claims.Email)
	ctx = context.WithValue(ctx, ctxSession, claims.ID)

	if logg != nil {
		ctx = logg.WithUserID(ctx, claims.UserID.String())
		ctx = logg.WithDomain(ctx, string(domain))
		ctx = logg.WithActorRole(ctx, string(claims.Role))
	}
	return ctx, nil
}
