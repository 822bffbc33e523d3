package middleware

import (
	"net/http"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/auth/session"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

const (
	AdminLoginPath   = "/admin-login"
	NurseryLoginPath = "/nursery-login"

	// Page loads cannot set an Authorization header, so the guard also
	// reads the access token from these cookies.
	AdminTokenCookie = "nf_admin_token"
	UserTokenCookie  = "nf_user_token"
)

// PageRule describes one protected page area.
type PageRule struct {
	Domain    enums.SessionDomain
	Roles     []enums.Role
	LoginPath string
}

// AdminPage protects the admin area.
func AdminPage() PageRule {
	return PageRule{Domain: enums.SessionDomainAdmin, Roles: []enums.Role{enums.RoleAdmin}, LoginPath: AdminLoginPath}
}

// OwnerPage protects the nursery owner dashboard.
func OwnerPage() PageRule {
	return PageRule{Domain: enums.SessionDomainUser, Roles: []enums.Role{enums.RoleNurseryOwner}, LoginPath: NurseryLoginPath}
}

// ParentPage protects the parent dashboard.
func ParentPage() PageRule {
	return PageRule{Domain: enums.SessionDomainUser, Roles: []enums.Role{enums.RoleParent, enums.RoleUser}, LoginPath: NurseryLoginPath}
}

// PageGuard answers with 303 See Other to the rule's login page unless the
// request carries a valid session for the rule's domain and role. The handler
// never runs for a rejected request, so protected content is never written.
func PageGuard(rule PageRule, cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	cookieName := UserTokenCookie
	if rule.Domain == enums.SessionDomainAdmin {
		cookieName = AdminTokenCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
					r = r.Clone(r.Context())
					r.Header.Set("Authorization", "Bearer "+cookie.Value)
				}
			}

			ctx, err := authenticate(r, rule.Domain, cfg, verifier, logg)
			if err == nil && roleAllowed(RoleFromContext(ctx), rule.Roles) {
				w.Header().Set("Cache-Control", "no-store")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if logg != nil {
				logCtx := logg.WithFields(r.Context(), map[string]any{
					"path":     r.URL.Path,
					"redirect": rule.LoginPath,
				})
				logg.Info(logCtx, "page.guard.redirect")
			}
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, rule.LoginPath, http.StatusSeeOther)
		})
	}
}

func roleAllowed(role string, allowed []enums.Role) bool {
	if len(allowed) == 0 {
		return role != ""
	}
	for _, candidate := range allowed {
		if string(candidate) == role {
			return true
		}
	}
	return false
}
