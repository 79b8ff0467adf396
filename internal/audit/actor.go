package audit

import "context"

// Actor identifies who performed a mutation. A zero Actor represents a
// system-initiated change (seeders, scheduled tasks, migrations).
type Actor struct {
	ID        *uint
	ClientIP  string
	UserAgent string
}

type actorContextKey struct{}

var actorKey = actorContextKey{}

// WithActor attaches the acting user to the context carried through the
// persistence layer into the capture pipeline.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the acting user from the context. The zero value
// is returned for system-initiated changes.
func ActorFromContext(ctx context.Context) Actor {
	if ctx == nil {
		return Actor{}
	}
	if value := ctx.Value(actorKey); value != nil {
		if actor, ok := value.(Actor); ok {
			return actor
		}
	}
	return Actor{}
}
