// Package actor identifies who performs an action. The API gateway
// authenticates dashboard users and forwards their ID in X-User-ID;
// scheduled and event-driven work runs as the system actor.
package actor

import (
	"context"

	"github.com/google/uuid"
)

// SystemID identifies background work
const SystemID = "00000000-0000-0000-0000-000000000000"

// Actor is the user or process behind an action
type Actor struct {
	ID string `json:"id"`
}

// IsSystem reports whether the actor is the system. A nil actor is the system.
func (a *Actor) IsSystem() bool {
	return a == nil || a.ID == SystemID
}

// System returns the actor used for background work
func System() *Actor {
	return &Actor{ID: SystemID}
}

// Parse validates a forwarded user ID and returns the actor for it
func Parse(raw string) (*Actor, bool) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return nil, false
	}
	return &Actor{ID: id.String()}, true
}

type contextKey struct{}

// WithActor attaches the actor to ctx
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor in ctx, or nil for system operations
func FromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(contextKey{}).(*Actor)
	return a
}

// UserID returns the ID of the user in ctx, or nil when the system acts
func UserID(ctx context.Context) *string {
	a := FromContext(ctx)
	if a.IsSystem() {
		return nil
	}
	id := a.ID
	return &id
}
