package isolation

import (
	"errors"
	"fmt"
)

// Isolation errors.
var (
	ErrBoundaryExists   = errors.New("isolation boundary already granted")
	ErrBoundaryReleased = errors.New("isolation boundary released")
)

// ViolationError indicates a plugin attempted a call outside its granted
// capability set.
type ViolationError struct {
	// PluginID is the calling plugin.
	PluginID string
	// Capability is the capability the call required.
	Capability string
	// Reason describes the violation.
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("isolation violation by plugin %q: %s: %s", e.PluginID, e.Capability, e.Reason)
}

// IsViolation returns true if the error is an isolation violation.
func IsViolation(err error) bool {
	var ve *ViolationError
	return errors.As(err, &ve)
}
