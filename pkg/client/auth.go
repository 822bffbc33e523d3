package client

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

const (
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordRequired = "Please enter your password"
)

var validate = validator.New()

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func authBase(domain enums.SessionDomain) string {
	if domain == enums.SessionDomainAdmin {
		return "/api/admin/v1/auth"
	}
	return "/api/v1/auth"
}

// ValidateEmail reports a validation error for anything that is not a
// well-formed address.
func ValidateEmail(email string) error {
	if validate.Var(strings.TrimSpace(email), "required,email") != nil {
		return validationError("email", MsgInvalidEmail)
	}
	return nil
}

// Login signs in to the given session domain. Credentials are checked
// locally first and a malformed email never reaches the network.
func (c *Client) Login(ctx context.Context, domain enums.SessionDomain, email, password string) (*LoginResult, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, validationError("password", MsgPasswordRequired)
	}
	body := loginBody{Email: strings.TrimSpace(email), Password: password}
	res, err := do[*LoginResult](ctx, c, post(authBase(domain)+"/login").json(body))
	if err != nil {
		return nil, err
	}
	if res == nil || res.AccessToken == "" || res.User == nil {
		return nil, &Error{Kind: KindAuth, Message: "sign-in response was incomplete"}
	}
	return res, nil
}

func (c *Client) AdminLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	return c.Login(ctx, enums.SessionDomainAdmin, email, password)
}

func (c *Client) UserLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	return c.Login(ctx, enums.SessionDomainUser, email, password)
}

func (c *Client) Refresh(ctx context.Context, domain enums.SessionDomain, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, &Error{Kind: KindAuth, Message: "no refresh token"}
	}
	return do[*RefreshResult](ctx, c, post(authBase(domain)+"/refresh").json(refreshBody{RefreshToken: refreshToken}))
}

func (c *Client) Logout(ctx context.Context, domain enums.SessionDomain) error {
	_, err := do[struct{}](ctx, c, post(authBase(domain)+"/logout"))
	return err
}
