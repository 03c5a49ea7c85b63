package domain

import "context"

// Actor identifies who initiated a request. It travels as an explicit value
// through the call chain; there is no goroutine-local session state.
type Actor struct {
	UserID int64
	Email  string
}

// DirectAPIActor is the identity used when no gateway headers were supplied.
func DirectAPIActor() Actor {
	return Actor{UserID: 1, Email: "direct-api-user@example.com"}
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor attached to ctx, falling back to the
// direct-API identity.
func ActorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorContextKey{}).(Actor); ok {
		return actor
	}
	return DirectAPIActor()
}
