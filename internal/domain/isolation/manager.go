package isolation

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/hangar/internal/domain/capability"
)

// Manager owns the boundaries of all enabled plugins and mediates calls
// across them.
type Manager struct {
	mu         sync.RWMutex
	policy     *capability.Policy
	boundaries map[string]*Boundary
}

// NewManager creates a manager enforcing the given host policy.
func NewManager(policy *capability.Policy) *Manager {
	if policy == nil {
		policy = capability.RestrictedPolicy()
	}
	return &Manager{
		policy:     policy,
		boundaries: make(map[string]*Boundary),
	}
}

// Grant creates the boundary for a plugin being enabled. A plugin can
// hold at most one boundary at a time.
func (m *Manager) Grant(pluginID string, declared capability.Set) (*Boundary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.boundaries[pluginID]; exists {
		return nil, fmt.Errorf("%w: plugin %q", ErrBoundaryExists, pluginID)
	}

	b := newBoundary(pluginID, declared, m.policy)
	m.boundaries[pluginID] = b
	return b, nil
}

// Release revokes a plugin's boundary. Releasing a plugin without a
// boundary is a no-op.
func (m *Manager) Release(pluginID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.boundaries[pluginID]; ok {
		b.release()
		delete(m.boundaries, pluginID)
	}
}

// BoundaryFor returns the active boundary for a plugin.
func (m *Manager) BoundaryFor(pluginID string) (*Boundary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.boundaries[pluginID]
	return b, ok
}

// Active returns the plugin IDs that currently hold a boundary.
func (m *Manager) Active() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.boundaries))
	for id := range m.boundaries {
		result = append(result, id)
	}
	return result
}

// Mediate runs fn on behalf of a plugin after checking the required
// capability against its boundary. A panic inside fn is recovered and
// surfaced as an error so plugin code can never crash the host.
func (m *Manager) Mediate(ctx context.Context, pluginID string, required capability.Capability, fn func(context.Context) error) (err error) {
	b, ok := m.BoundaryFor(pluginID)
	if !ok {
		return &ViolationError{
			PluginID:   pluginID,
			Capability: required.String(),
			Reason:     "no active boundary",
		}
	}
	if err := b.Check(required); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %q panicked: %v", pluginID, r)
		}
	}()
	return fn(ctx)
}
