package shared

import "context"

// Actor is the authenticated caller supplied by the identity gateway.
type Actor struct {
	UserID int64
	RoleID int64
}

// Valid reports whether both ids are present.
func (a Actor) Valid() bool {
	return a.UserID > 0 && a.RoleID > 0
}

type actorContextKey struct{}

// ContextWithActor stores the acting identity in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting identity from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || !actor.Valid() {
		return Actor{}, false
	}
	return actor, true
}
