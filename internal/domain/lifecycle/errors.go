package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

// HookExecutionError indicates a lifecycle hook returned an error.
type HookExecutionError struct {
	// PluginID is the plugin whose hook failed.
	PluginID string
	// Hook is the hook name ("pre_enable", "post_install").
	Hook string
	// Err is the hook's error.
	Err error
}

func (e *HookExecutionError) Error() string {
	return fmt.Sprintf("plugin %q: hook %s failed: %v", e.PluginID, e.Hook, e.Err)
}

func (e *HookExecutionError) Unwrap() error {
	return e.Err
}

// IsHookExecutionError returns true if the error is a hook execution
// error.
func IsHookExecutionError(err error) bool {
	var he *HookExecutionError
	return errors.As(err, &he)
}

// TimeoutError indicates a hook exceeded its execution deadline. The
// hook goroutine is not interrupted; the host stops waiting for it.
type TimeoutError struct {
	// PluginID is the plugin whose hook timed out.
	PluginID string
	// Hook is the hook name.
	Hook string
	// Timeout is the deadline that was exceeded.
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("plugin %q: hook %s exceeded timeout of %s", e.PluginID, e.Hook, e.Timeout)
}

// IsTimeoutError returns true if the error is a hook timeout.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// StateConflictError indicates an operation is not valid in the
// plugin's current state.
type StateConflictError struct {
	// PluginID is the plugin in conflict.
	PluginID string
	// State is the plugin's state at the time of the request.
	State State
	// Op describes the rejected operation.
	Op string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("plugin %q: operation %s invalid in state %s", e.PluginID, e.Op, e.State)
}

// IsStateConflict returns true if the error is a state conflict.
func IsStateConflict(err error) bool {
	var se *StateConflictError
	return errors.As(err, &se)
}
