package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox"
)

type contextKey string

const (
	ctxUserID  contextKey = "user_id"
	ctxRole    contextKey = "actor_role"
	ctxDomain  contextKey = "session_domain"
	ctxEmail   contextKey = "email"
	ctxSession contextKey = "session_id"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// UserUUIDFromContext parses the authenticated user id.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func DomainFromContext(ctx context.Context) enums.SessionDomain {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxDomain).(enums.SessionDomain); ok {
		return v
	}
	return ""
}

func EmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxEmail).(string); ok {
		return v
	}
	return ""
}

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSession).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext describes the authenticated caller for outbox envelopes.
// It returns nil for anonymous requests.
func ActorFromContext(ctx context.Context) *outbox.ActorRef {
	userID, ok := UserUUIDFromContext(ctx)
	if !ok {
		return nil
	}
	return &outbox.ActorRef{
		UserID: userID,
		Role:   RoleFromContext(ctx),
		Domain: DomainFromContext(ctx),
	}
}

// WithIdentity injects an authenticated identity into the context.
func WithIdentity(ctx context.Context, userID string, role enums.Role, domain enums.SessionDomain) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRole, string(role))
	return context.WithValue(ctx, ctxDomain, domain)
}
