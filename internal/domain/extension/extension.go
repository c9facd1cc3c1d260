// Package extension provides the extension point registry: named,
// interface-typed hooks plugins expose to each other while enabled.
package extension

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
)

// Registry errors.
var (
	ErrDuplicatePoint = errors.New("extension point already registered")
	ErrNilHandler     = errors.New("extension handler is required")
)

// Handler is the callable behind an extension point.
type Handler func(ctx context.Context, payload interface{}) (interface{}, error)

// Point describes one registered extension point.
type Point struct {
	// OwnerID is the plugin that registered the point.
	OwnerID string
	// Name is the point's unique name within the owner.
	Name string
	// Interface is the declared interface signature callers match on.
	Interface string

	handler Handler
	revoked *atomic.Bool
}

// key returns the registry key for the point.
func (p *Point) key() string {
	return p.OwnerID + "/" + p.Name
}

// Handle is a caller's reference to an extension point. Handles may be
// cached; once the owner leaves the enabled state every outstanding
// handle fails fast instead of invoking stale code.
type Handle struct {
	point *Point
}

// OwnerID returns the owning plugin.
func (h *Handle) OwnerID() string {
	return h.point.OwnerID
}

// Name returns the extension point name.
func (h *Handle) Name() string {
	return h.point.Name
}

// Interface returns the declared interface signature.
func (h *Handle) Interface() string {
	return h.point.Interface
}

// Invoke calls the extension point handler. A revoked handle returns a
// state conflict without touching the handler.
func (h *Handle) Invoke(ctx context.Context, payload interface{}) (interface{}, error) {
	if h.point.revoked.Load() {
		return nil, &lifecycle.StateConflictError{
			PluginID: h.point.OwnerID,
			State:    lifecycle.StateDisabled,
			Op:       fmt.Sprintf("invoke extension %s", h.point.Name),
		}
	}
	return h.point.handler(ctx, payload)
}

// Registry holds all live extension points. Registration is only valid
// while the owner is enabled; the host enforces that and revokes owners
// the moment they leave the enabled state.
type Registry struct {
	mu     sync.RWMutex
	points map[string]*Point
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{points: make(map[string]*Point)}
}

// Register adds an extension point for an owner.
func (r *Registry) Register(ownerID, name, iface string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("%w: %s/%s", ErrNilHandler, ownerID, name)
	}

	p := &Point{
		OwnerID:   ownerID,
		Name:      name,
		Interface: iface,
		handler:   handler,
		revoked:   &atomic.Bool{},
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.points[p.key()]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicatePoint, ownerID, name)
	}
	r.points[p.key()] = p
	return nil
}

// RevokeOwner atomically removes all of an owner's extension points.
// Outstanding handles to them fail from this moment on.
func (r *Registry) RevokeOwner(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, p := range r.points {
		if p.OwnerID == ownerID {
			p.revoked.Store(true)
			delete(r.points, key)
		}
	}
}

// Query returns handles for every live point declaring the interface,
// sorted by owner then name. An empty iface matches all points.
func (r *Registry) Query(iface string) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var handles []*Handle
	for _, p := range r.points {
		if iface == "" || p.Interface == iface {
			handles = append(handles, &Handle{point: p})
		}
	}
	sort.Slice(handles, func(i, j int) bool {
		if handles[i].OwnerID() != handles[j].OwnerID() {
			return handles[i].OwnerID() < handles[j].OwnerID()
		}
		return handles[i].Name() < handles[j].Name()
	})
	return handles
}

// Lookup returns a handle to one named point of an owner.
func (r *Registry) Lookup(ownerID, name string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.points[ownerID+"/"+name]
	if !ok {
		return nil, false
	}
	return &Handle{point: p}, true
}

// Count returns the number of live extension points.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.points)
}
