// Package cache holds read-through caches of normalized scope state.
//
// Cached scopes serve list reads only. Anything that plans a write reads the
// scope inside its own transaction instead.
package cache

import (
	"context"
	"time"

	"snipshelf/internal/ordering"
	"snipshelf/internal/store"
)

const (
	DefaultScopeTTL = 30 * time.Second
	MaxScopeTTL     = 10 * time.Minute
)

// ScopeCache stores the normalized item list of a scope.
type ScopeCache interface {
	// Get reports a miss with ok=false and a nil error.
	Get(ctx context.Context, scope ordering.Scope) (items []store.Item, ok bool, err error)
	Set(ctx context.Context, scope ordering.Scope, items []store.Item) error
	Invalidate(ctx context.Context, scope ordering.Scope) error
}

// BoundTTL clamps ttl into (0, MaxScopeTTL], using DefaultScopeTTL for
// non-positive values.
func BoundTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultScopeTTL
	}
	if ttl > MaxScopeTTL {
		return MaxScopeTTL
	}
	return ttl
}

// Nop never stores anything. Used when no cache backend is configured.
type Nop struct{}

func (Nop) Get(context.Context, ordering.Scope) ([]store.Item, bool, error) {
	return nil, false, nil
}

func (Nop) Set(context.Context, ordering.Scope, []store.Item) error { return nil }

func (Nop) Invalidate(context.Context, ordering.Scope) error { return nil }
