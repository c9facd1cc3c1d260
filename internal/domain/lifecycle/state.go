// Package lifecycle provides the per-plugin lifecycle state machine and
// the hook contract around its transitions.
package lifecycle

// State represents a plugin's current lifecycle state.
type State string

const (
	// StateUninstalled indicates the plugin is not installed.
	StateUninstalled State = "uninstalled"
	// StateInstalled indicates the plugin is installed but never enabled.
	StateInstalled State = "installed"
	// StateDisabled indicates the plugin is installed and explicitly disabled.
	StateDisabled State = "disabled"
	// StateEnabling indicates an enable transition is in progress.
	StateEnabling State = "enabling"
	// StateEnabled indicates the plugin is active.
	StateEnabled State = "enabled"
	// StateDisabling indicates a disable transition is in progress.
	StateDisabling State = "disabling"
	// StateUpdating indicates an update transition is in progress.
	StateUpdating State = "updating"
	// StateUninstalling indicates an uninstall transition is in progress.
	StateUninstalling State = "uninstalling"
	// StateError indicates the last transition failed.
	StateError State = "error"
)

// Transient reports whether the state only exists while a transition is
// in flight.
func (s State) Transient() bool {
	switch s {
	case StateEnabling, StateDisabling, StateUpdating, StateUninstalling:
		return true
	}
	return false
}

// Event types for the plugin state machine.
const (
	EventInstall          = "INSTALL"
	EventEnable           = "ENABLE"
	EventEnabled          = "ENABLED"
	EventDisable          = "DISABLE"
	EventDisabled         = "DISABLED"
	EventUpdate           = "UPDATE"
	EventUpdatedInstalled = "UPDATED_INSTALLED"
	EventUpdatedDisabled  = "UPDATED_DISABLED"
	EventUpdatedEnabled   = "UPDATED_ENABLED"
	EventUninstall        = "UNINSTALL"
	EventUninstalled      = "UNINSTALLED"
	EventFail             = "FAIL"
)

// transitions is the authoritative transition table. Events not listed
// for a state are conflicts; the machine validates against this table
// before driving the interpreter.
var transitions = map[State]map[string]State{
	StateUninstalled: {
		EventInstall: StateInstalled,
	},
	StateInstalled: {
		EventEnable:    StateEnabling,
		EventUpdate:    StateUpdating,
		EventUninstall: StateUninstalling,
	},
	StateDisabled: {
		EventEnable:    StateEnabling,
		EventUpdate:    StateUpdating,
		EventUninstall: StateUninstalling,
	},
	StateEnabling: {
		EventEnabled: StateEnabled,
		EventFail:    StateError,
	},
	StateEnabled: {
		EventDisable:   StateDisabling,
		EventUpdate:    StateUpdating,
		EventUninstall: StateUninstalling,
	},
	StateDisabling: {
		EventDisabled: StateDisabled,
		EventFail:     StateError,
	},
	StateUpdating: {
		EventUpdatedInstalled: StateInstalled,
		EventUpdatedDisabled:  StateDisabled,
		EventUpdatedEnabled:   StateEnabled,
		EventFail:             StateError,
	},
	StateUninstalling: {
		EventUninstalled: StateUninstalled,
		EventFail:        StateError,
	},
	StateError: {
		EventUninstall: StateUninstalling,
	},
}

// Verb identifies a lifecycle operation for hook naming and event
// selection.
type Verb string

const (
	VerbInstall   Verb = "install"
	VerbEnable    Verb = "enable"
	VerbDisable   Verb = "disable"
	VerbUpdate    Verb = "update"
	VerbUninstall Verb = "uninstall"
)

// PreHook returns the hook name invoked before the verb's effect.
func (v Verb) PreHook() string {
	return "pre_" + string(v)
}

// PostHook returns the hook name invoked after the verb's effect.
func (v Verb) PostHook() string {
	return "post_" + string(v)
}

// beginEvent returns the event that opens a verb's transition, or ""
// when the verb has no transient state (install).
func (v Verb) beginEvent() string {
	switch v {
	case VerbEnable:
		return EventEnable
	case VerbDisable:
		return EventDisable
	case VerbUpdate:
		return EventUpdate
	case VerbUninstall:
		return EventUninstall
	}
	return ""
}

// completeEvent returns the event that closes a verb's transition.
// Update restores the state category held before the transition began.
func (v Verb) completeEvent(prior State) string {
	switch v {
	case VerbInstall:
		return EventInstall
	case VerbEnable:
		return EventEnabled
	case VerbDisable:
		return EventDisabled
	case VerbUninstall:
		return EventUninstalled
	case VerbUpdate:
		switch prior {
		case StateDisabled:
			return EventUpdatedDisabled
		case StateEnabled:
			return EventUpdatedEnabled
		default:
			return EventUpdatedInstalled
		}
	}
	return ""
}
