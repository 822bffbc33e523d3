package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nurseryfinder/nurseryfinder-backend/api/responses"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

// maxThrottlePeek bounds how much of a body is buffered to find the email.
const maxThrottlePeek = 64 << 10

type counterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// ThrottlePolicy caps attempts per client IP and per submitted email address
// inside one fixed window. A zero limit switches that counter off.
type ThrottlePolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func LoginThrottle(cfg config.AuthRateLimitConfig) ThrottlePolicy {
	return ThrottlePolicy{Name: "login", Window: cfg.LoginWindow, PerIP: cfg.LoginIPLimit, PerEmail: cfg.LoginEmailLimit}
}

func RegisterThrottle(cfg config.AuthRateLimitConfig) ThrottlePolicy {
	return ThrottlePolicy{Name: "register", Window: cfg.RegisterWindow, PerIP: cfg.RegisterIPLimit, PerEmail: cfg.RegisterEmailLimit}
}

// ReviewThrottle counts review submissions per reviewer email. The per-IP
// budget for the same route lives in IPRateLimit.
func ReviewThrottle(cfg config.RateLimitConfig) ThrottlePolicy {
	return ThrottlePolicy{Name: "review_submit", Window: cfg.ReviewSubmitWindow, PerEmail: cfg.ReviewSubmitEmailLimit}
}

func (p ThrottlePolicy) enabled() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

func (p ThrottlePolicy) key(scope, subject string) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		name = "default"
	}
	return "nf:rl:" + name + ":" + scope + ":" + subject
}

func (p ThrottlePolicy) retryAfter() string {
	return strconv.Itoa(int(math.Ceil(p.Window.Seconds())))
}

// Throttle enforces policy in front of a JSON endpoint. The request body is
// handed on unchanged after the email is read from it.
func Throttle(policy ThrottlePolicy, store counterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.PerIP > 0 {
				if ip := clientIP(r); ip != "" {
					if !checkCounter(ctx, logg, w, store, policy, "ip", ip, policy.PerIP) {
						return
					}
				}
			}

			if policy.PerEmail > 0 {
				email, err := peekEmail(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				if email != "" && !checkCounter(ctx, logg, w, store, policy, "email", hashEmail(email), policy.PerEmail) {
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkCounter bumps one counter and writes the rejection when it is over
// budget. It reports whether the request may continue.
func checkCounter(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store counterStore, policy ThrottlePolicy, scope, subject string, limit int) bool {
	count, err := store.IncrWithTTL(ctx, policy.key(scope, subject), policy.Window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if count <= int64(limit) {
		return true
	}
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"policy":   policy.Name,
			"scope":    scope,
			"subject":  subject,
			"attempts": count,
			"limit":    limit,
		})
		logg.Warn(logCtx, "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", policy.retryAfter())
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later").
		WithDetails(map[string]any{"scope": scope}))
	return false
}

// peekEmail reads the leading part of the body for an "email" field and
// restores the stream. Bodies larger than the peek window are not counted.
func peekEmail(r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxThrottlePeek+1))
	if err != nil {
		return "", err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if len(head) > maxThrottlePeek {
		return "", nil
	}
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(head, &body) != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(body.Email)), nil
}

func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

// clientIP prefers the first parseable X-Forwarded-For hop, then X-Real-IP,
// then the socket peer.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
