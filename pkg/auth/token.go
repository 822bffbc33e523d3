package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// AudienceFor maps a session domain onto its JWT audience.
func AudienceFor(cfg config.JWTConfig, domain enums.SessionDomain) (string, error) {
	switch domain {
	case enums.SessionDomainAdmin:
		if cfg.AdminAudience == "" {
			return "", fmt.Errorf("admin audience is required")
		}
		return cfg.AdminAudience, nil
	case enums.SessionDomainUser:
		if cfg.UserAudience == "" {
			return "", fmt.Errorf("user audience is required")
		}
		return cfg.UserAudience, nil
	}
	return "", fmt.Errorf("invalid session domain %q", domain)
}

// MintAccessToken issues a signed JWT for the payload. The audience and domain
// claim come from the role, so an admin token is never valid on user routes.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if !payload.Role.IsValid() {
		return "", fmt.Errorf("invalid role %q", payload.Role)
	}

	domain := payload.Role.Domain()
	audience, err := AudienceFor(cfg, domain)
	if err != nil {
		return "", err
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AccessTokenClaims{
		UserID: payload.UserID,
		Role:   payload.Role,
		Domain: domain,
		Email:  payload.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL())),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates the JWT for the given domain and returns typed claims.
func ParseAccessToken(cfg config.JWTConfig, domain enums.SessionDomain, tokenString string) (*AccessTokenClaims, error) {
	return parse(cfg, domain, tokenString, false)
}

// ParseAccessTokenAllowExpired skips exp/nbf validation so refresh and logout can read the jti.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, domain enums.SessionDomain, tokenString string) (*AccessTokenClaims, error) {
	return parse(cfg, domain, tokenString, true)
}

func parse(cfg config.JWTConfig, domain enums.SessionDomain, tokenString string, allowExpired bool) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	audience, err := AudienceFor(cfg, domain)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(audience),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &AccessTokenClaims{}
	_, err = jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtSigningMethod {
			return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	// WithoutClaimsValidation also skips the audience check.
	if allowExpired && !hasAudience(claims.Audience, audience) {
		return nil, fmt.Errorf("token audience does not match %s domain", domain)
	}
	if claims.Domain != domain || !domain.Allows(claims.Role) {
		return nil, fmt.Errorf("token is not valid for the %s domain", domain)
	}
	return claims, nil
}

func hasAudience(aud jwt.ClaimStrings, want string) bool {
	for _, candidate := range aud {
		if candidate == want {
			return true
		}
	}
	return false
}
