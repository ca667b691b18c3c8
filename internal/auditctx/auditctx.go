// Package auditctx threads request identity from the HTTP edge into the
// services so that state-changing operations can be logged with their origin.
package auditctx

import (
	"context"

	"go.uber.org/zap"
)

// Actor is the authenticated caller behind a request.
type Actor struct {
	UserID    string
	Email     string
	IPAddress string
	UserAgent string
}

type (
	actorKey     struct{}
	requestIDKey struct{}
)

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(orBackground(ctx), actorKey{}, actor)
}

// FromContext returns the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return orBackground(ctx)
	}
	return context.WithValue(orBackground(ctx), requestIDKey{}, id)
}

// RequestID returns the correlation id of the originating request, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Fields renders what ctx knows about its origin as log fields. Background
// contexts (scheduler sweeps, tests) yield nil.
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if actor, ok := FromContext(ctx); ok {
		fields = append(fields,
			zap.String("client_ip", actor.IPAddress),
			zap.String("user_agent", actor.UserAgent),
		)
	}
	return fields
}
