// Package context carries request-scoped correlation values.
package context

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorKey
)

type actor struct {
	id   string
	role string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithActor records the authenticated caller.
func WithActor(ctx context.Context, id, role string) context.Context {
	return context.WithValue(ctx, actorKey, actor{id: id, role: role})
}

// ActorFromContext returns the authenticated caller's id and role, or
// empty strings for anonymous requests.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey).(actor)
	if !ok {
		return "", ""
	}
	return value.id, value.role
}
