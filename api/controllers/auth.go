package controllers

import (
	"net/http"

	"github.com/nurseryfinder/nurseryfinder-backend/api/responses"
	"github.com/nurseryfinder/nurseryfinder-backend/api/validators"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/auth"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

// AuthLogin wires the login endpoint of one session domain into the HTTP layer.
func AuthLogin(svc auth.Service, domain enums.SessionDomain, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), domain, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
