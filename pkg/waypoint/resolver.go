package waypoint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"rallynav/pkg/model"
	"rallynav/pkg/store"
)

// Resolver looks names up in the user table, then the FAA table.
// Hits are cached; misses are not, so a newly imported or created
// waypoint is found on the next lookup.
type Resolver struct {
	st    store.WaypointStore
	cache *lru.Cache[string, model.Waypoint]
}

// NewResolver creates a resolver with an LRU cache of the given size.
func NewResolver(st store.WaypointStore, size int) (*Resolver, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, model.Waypoint](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create waypoint cache: %w", err)
	}
	return &Resolver{st: st, cache: c}, nil
}

// Lookup returns the waypoint named name (case-insensitive).
func (r *Resolver) Lookup(ctx context.Context, name string) (model.Waypoint, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if w, ok := r.cache.Get(key); ok {
		return w, nil
	}

	w, err := r.st.GetUserWaypoint(ctx, key)
	if err != nil {
		return model.Waypoint{}, fmt.Errorf("failed to query user waypoints: %w", err)
	}
	if w == nil {
		w, err = r.st.GetFAAWaypoint(ctx, key)
		if err != nil {
			return model.Waypoint{}, fmt.Errorf("failed to query FAA waypoints: %w", err)
		}
	}
	if w == nil {
		return model.Waypoint{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	r.cache.Add(key, *w)
	return *w, nil
}

// SaveUserWaypoint normalizes and stores a user waypoint, replacing any
// existing one of the same name.
func (r *Resolver) SaveUserWaypoint(ctx context.Context, w model.Waypoint) (model.Waypoint, error) {
	w, err := Normalize(w)
	if err != nil {
		return w, err
	}
	if err := r.st.SaveUserWaypoint(ctx, &w); err != nil {
		return w, fmt.Errorf("failed to save waypoint: %w", err)
	}
	r.cache.Remove(w.Name)
	slog.Info("User waypoint saved", "name", w.Name)
	return w, nil
}

// DeleteUserWaypoint removes a user waypoint. Deleting a missing name is an ErrNotFound.
func (r *Resolver) DeleteUserWaypoint(ctx context.Context, name string) error {
	key := strings.ToUpper(strings.TrimSpace(name))
	existing, err := r.st.GetUserWaypoint(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to query user waypoints: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err := r.st.DeleteUserWaypoint(ctx, key); err != nil {
		return fmt.Errorf("failed to delete waypoint: %w", err)
	}
	r.cache.Remove(key)
	slog.Info("User waypoint deleted", "name", key)
	return nil
}

// Purge drops every cached entry, e.g. after a reference import.
func (r *Resolver) Purge() {
	r.cache.Purge()
}
