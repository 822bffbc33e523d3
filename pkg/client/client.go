// Package client is the Go client core for the nurseryfinder API. It maps
// every failure onto a small set of kinds the caller can react to.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/types"
)

const idempotencyHeader = "Idempotency-Key"

// TokenSource returns the bearer token for the next request, or "".
type TokenSource func() string

type Client struct {
	http   *resty.Client
	logg   *logger.Logger
	tokens TokenSource
}

func New(cfg Config, logg *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("client base url is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.timeout()).
		SetHeader("Accept", "application/json").
		SetDebug(cfg.Debug)
	return &Client{http: rc, logg: logg}, nil
}

// WithTokens returns a copy of c that authenticates with the given source.
func (c *Client) WithTokens(src TokenSource) *Client {
	clone := *c
	clone.tokens = src
	return &clone
}

type request struct {
	method         string
	path           string
	query          map[string]string
	body           any
	idempotencyKey string
}

func get(path string) request  { return request{method: http.MethodGet, path: path} }
func post(path string) request { return request{method: http.MethodPost, path: path} }
func del(path string) request  { return request{method: http.MethodDelete, path: path} }

func (r request) json(body any) request {
	r.body = body
	return r
}

func (r request) param(key, value string) request {
	if value == "" {
		return r
	}
	if r.query == nil {
		r.query = map[string]string{}
	}
	r.query[key] = value
	return r
}

func (r request) idempotent(key string) request {
	r.idempotencyKey = key
	return r
}

// do sends req and decodes the data envelope into T.
func do[T any](ctx context.Context, c *Client, req request) (T, error) {
	var out T
	r := c.http.R().SetContext(ctx)
	if c.tokens != nil {
		if token := c.tokens(); token != "" {
			r.SetAuthToken(token)
		}
	}
	if req.query != nil {
		r.SetQueryParams(req.query)
	}
	if req.body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.body)
	}
	if req.idempotencyKey != "" {
		r.SetHeader(idempotencyHeader, req.idempotencyKey)
	}

	ctx = c.logg.WithFields(ctx, map[string]any{
		"method": req.method,
		"path":   req.path,
	})
	start := time.Now()
	resp, err := r.Execute(req.method, req.path)
	if err != nil {
		cerr := transportError(err)
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "client.request.transport_failed")
		return out, cerr
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"status":      resp.StatusCode(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.IsError() {
		cerr := decodeError(resp.StatusCode(), resp.Body())
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"kind": string(cerr.Kind),
			"code": cerr.Code,
		}), "client.request.failed")
		return out, cerr
	}

	c.logg.Debug(ctx, "client.request.complete")
	if len(resp.Body()) == 0 {
		return out, nil
	}
	var env types.DataEnvelope[T]
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return out, &Error{Kind: KindNetwork, Status: resp.StatusCode(), Message: GenericMessage, Err: err}
	}
	return env.Data, nil
}

func decodeError(status int, body []byte) *Error {
	var env types.ErrorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		return statusError(status, env.Error.Code, env.Error.Message)
	}
	return statusError(status, "", "")
}
