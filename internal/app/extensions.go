package app

import (
	"context"

	"github.com/felixgeelhaar/hangar/internal/domain/capability"
	"github.com/felixgeelhaar/hangar/internal/domain/extension"
	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
)

// RegisterExtension registers a named extension point for an enabled
// plugin. Plugins in any other state cannot publish extension points.
func (h *Host) RegisterExtension(ownerID, name, iface string, handler extension.Handler) error {
	if state := h.stateOf(ownerID); state != lifecycle.StateEnabled {
		return &lifecycle.StateConflictError{
			PluginID: ownerID,
			State:    state,
			Op:       "register extension " + name,
		}
	}
	return h.extensions.Register(ownerID, name, iface, handler)
}

// QueryExtensions returns handles to every live extension point
// declaring the interface.
func (h *Host) QueryExtensions(iface string) []*extension.Handle {
	return h.extensions.Query(iface)
}

// InvokeExtension calls an extension point on behalf of callerID. The
// call is mediated by the caller's isolation boundary and requires the
// plugins:call capability; a panicking handler is converted to an
// error, never propagated raw.
func (h *Host) InvokeExtension(ctx context.Context, callerID string, handle *extension.Handle, payload interface{}) (interface{}, error) {
	var result interface{}
	err := h.isolation.Mediate(ctx, callerID, capability.CapPluginsCall, func(ctx context.Context) error {
		out, err := handle.Invoke(ctx, payload)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
