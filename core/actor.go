package core

import "context"

// SystemActor is used when a mutation is not attributed to anyone (CLI, background jobs..).
const SystemActor = "system"

// Actor identifies who performed a mutation. It is only used for audit logs.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type actorCtxKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

func ActorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorCtxKey{}).(Actor); ok && actor.ID != "" {
		return actor
	}
	return Actor{ID: SystemActor}
}
