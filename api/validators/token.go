package validators

import (
	"errors"
	"net/http"
	"strings"
)

var ErrInvalidToken = errors.New("invalid auth token")

// BearerToken extracts the token from an Authorization header value. The
// "Bearer" scheme is optional and case-insensitive; a scheme with no
// credential is rejected.
func BearerToken(raw string) (string, error) {
	token := strings.TrimSpace(raw)
	scheme, rest, found := strings.Cut(token, " ")
	switch {
	case strings.EqualFold(scheme, "bearer") && found:
		token = strings.TrimSpace(rest)
	case strings.EqualFold(token, "bearer"):
		return "", ErrInvalidToken
	}
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidToken
	}
	return token, nil
}

// RequestBearerToken reads the bearer token from the request headers.
func RequestBearerToken(r *http.Request) (string, error) {
	if r == nil {
		return "", ErrInvalidToken
	}
	return BearerToken(r.Header.Get("Authorization"))
}
