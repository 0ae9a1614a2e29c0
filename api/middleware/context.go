package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/pkg/enums"
)

type contextKey string

const (
	ctxPrincipal contextKey = "principal"
	ctxRole      contextKey = "actor_role"
)

// Principal is the caller identity carried by a verified access token.
type Principal struct {
	UserID    uuid.UUID
	Email     string
	FullName  string
	Phone     string
	TokenID   string
	ExpiresAt time.Time
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(ctxPrincipal).(Principal)
	return p, ok && p.UserID != uuid.Nil
}

// UserIDFromContext returns the caller id or uuid.Nil for anonymous requests.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}

func RoleFromContext(ctx context.Context) enums.ProfileRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ProfileRole); ok {
		return v
	}
	return ""
}

// WithPrincipal injects the caller identity into the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, p)
}

// WithRole injects the caller's profile role into the context.
func WithRole(ctx context.Context, role enums.ProfileRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}
