// Package isolation mediates every call a plugin makes into the host.
// Each enabled plugin gets a Boundary holding exactly the capabilities
// the host chose to grant it; calls requiring anything else fail with a
// ViolationError before reaching host internals.
package isolation

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/hangar/internal/domain/capability"
)

// Boundary is the isolation boundary for one enabled plugin. The granted
// set is fixed at construction; changing a plugin's effective grants
// means releasing the boundary and creating a new one.
type Boundary struct {
	pluginID  string
	grantID   string
	granted   capability.Set
	grantedAt time.Time
	released  atomic.Bool
}

// newBoundary computes the effective grant for a plugin: the manifest's
// declared capabilities filtered through the host policy. Declared
// capabilities the policy does not permit are silently excluded, not
// errors; the plugin discovers them at call time.
func newBoundary(pluginID string, declared capability.Set, policy *capability.Policy) *Boundary {
	return &Boundary{
		pluginID:  pluginID,
		grantID:   uuid.New().String(),
		granted:   policy.Allowed(declared),
		grantedAt: time.Now().UTC(),
	}
}

// PluginID returns the plugin this boundary belongs to.
func (b *Boundary) PluginID() string {
	return b.pluginID
}

// GrantID uniquely identifies this boundary instance. A plugin that is
// disabled and re-enabled gets a fresh grant ID.
func (b *Boundary) GrantID() string {
	return b.grantID
}

// GrantedAt returns when the boundary was created.
func (b *Boundary) GrantedAt() time.Time {
	return b.grantedAt
}

// Granted returns a copy of the effective capability set.
func (b *Boundary) Granted() capability.Set {
	return b.granted.Clone()
}

// Check verifies the boundary permits a capability. It fails if the
// boundary has been released or the capability was never granted.
func (b *Boundary) Check(c capability.Capability) error {
	if b.released.Load() {
		return &ViolationError{
			PluginID:   b.pluginID,
			Capability: c.String(),
			Reason:     "boundary released",
		}
	}
	if !b.granted.Matches(c) {
		return &ViolationError{
			PluginID:   b.pluginID,
			Capability: c.String(),
			Reason:     "capability not granted",
		}
	}
	return nil
}

// Released reports whether the boundary has been revoked.
func (b *Boundary) Released() bool {
	return b.released.Load()
}

// release marks the boundary revoked. In-flight calls that already
// passed Check are allowed to finish; new checks fail.
func (b *Boundary) release() {
	b.released.Store(true)
}
