package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	actorKey     ctxKey = "actor"
	requestIDKey ctxKey = "request_id"
)

// Actor identifies the workspace user behind a request.
type Actor struct {
	UserID string
	TeamID string
}

// WithActor stores the acting user in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromCtx extracts the acting user from the context.
// Returns false if the value is missing or has no user id.
func ActorFromCtx(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	if !ok || a.UserID == "" {
		return Actor{}, false
	}
	return a, true
}

// WithRequestID stores the request (correlation) ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx extracts the request ID from the context.
// Returns an empty string if absent.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// EnsureRequestID returns ctx unchanged when it already carries a request ID,
// otherwise it attaches a new random one.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIDFromCtx(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}
