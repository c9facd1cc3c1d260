package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/statekit"
)

// Context holds the runtime context for a plugin state machine.
// This is used by statekit as the context type.
type Context struct {
	PluginID string
}

// Machine is the lifecycle state machine for one plugin. All event
// dispatch is serialized; a Machine never interleaves two transitions.
type Machine struct {
	pluginID string

	mu     sync.Mutex
	interp *statekit.Interpreter[Context]

	errMu    sync.Mutex
	lastErr  error
	failedAt time.Time
}

// NewMachine creates a plugin state machine starting at initial. The
// initial state comes from the repository record, so a host restart
// resumes where the plugin left off.
func NewMachine(pluginID string, initial State) (*Machine, error) {
	if _, ok := transitions[initial]; !ok {
		return nil, fmt.Errorf("unknown lifecycle state %q", initial)
	}

	m := &Machine{pluginID: pluginID}
	interp, err := buildPluginMachine(pluginID, initial, m)
	if err != nil {
		return nil, fmt.Errorf("failed to build state machine: %w", err)
	}
	m.interp = interp
	m.interp.Start()
	return m, nil
}

// buildPluginMachine constructs the plugin state machine using statekit.
// The machine pointer is captured by the failure action so error
// payloads land on the owning Machine.
func buildPluginMachine(pluginID string, initial State, m *Machine) (*statekit.Interpreter[Context], error) {
	machine, err := statekit.NewMachine[Context]("plugin-" + pluginID).
		WithInitial(statekit.StateID(initial)).
		WithContext(Context{PluginID: pluginID}).
		WithAction("recordFailure", func(_ *Context, event statekit.Event) {
			if payload, ok := event.Payload.(map[string]interface{}); ok {
				if err, ok := payload["error"].(error); ok {
					m.recordFailure(err)
				}
			}
		}).
		// Not installed
		State(statekit.StateID(StateUninstalled)).
		On(EventInstall).Target(statekit.StateID(StateInstalled)).Done().
		// Installed, never enabled
		State(statekit.StateID(StateInstalled)).
		On(EventEnable).Target(statekit.StateID(StateEnabling)).
		On(EventUpdate).Target(statekit.StateID(StateUpdating)).
		On(EventUninstall).Target(statekit.StateID(StateUninstalling)).Done().
		// Explicitly disabled
		State(statekit.StateID(StateDisabled)).
		On(EventEnable).Target(statekit.StateID(StateEnabling)).
		On(EventUpdate).Target(statekit.StateID(StateUpdating)).
		On(EventUninstall).Target(statekit.StateID(StateUninstalling)).Done().
		// Enable in progress
		State(statekit.StateID(StateEnabling)).
		On(EventEnabled).Target(statekit.StateID(StateEnabled)).
		On(EventFail).Target(statekit.StateID(StateError)).Done().
		// Active
		State(statekit.StateID(StateEnabled)).
		On(EventDisable).Target(statekit.StateID(StateDisabling)).
		On(EventUpdate).Target(statekit.StateID(StateUpdating)).
		On(EventUninstall).Target(statekit.StateID(StateUninstalling)).Done().
		// Disable in progress
		State(statekit.StateID(StateDisabling)).
		On(EventDisabled).Target(statekit.StateID(StateDisabled)).
		On(EventFail).Target(statekit.StateID(StateError)).Done().
		// Update in progress; completion restores the prior category
		State(statekit.StateID(StateUpdating)).
		On(EventUpdatedInstalled).Target(statekit.StateID(StateInstalled)).
		On(EventUpdatedDisabled).Target(statekit.StateID(StateDisabled)).
		On(EventUpdatedEnabled).Target(statekit.StateID(StateEnabled)).
		On(EventFail).Target(statekit.StateID(StateError)).Done().
		// Uninstall in progress
		State(statekit.StateID(StateUninstalling)).
		On(EventUninstalled).Target(statekit.StateID(StateUninstalled)).
		On(EventFail).Target(statekit.StateID(StateError)).Done().
		// Failed; only uninstall leads out
		State(statekit.StateID(StateError)).
		OnEntry("recordFailure").
		On(EventUninstall).Target(statekit.StateID(StateUninstalling)).Done().
		Build()

	if err != nil {
		return nil, err
	}

	return statekit.NewInterpreter(machine), nil
}

// PluginID returns the plugin this machine belongs to.
func (m *Machine) PluginID() string {
	return m.pluginID
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State(m.interp.State().Value)
}

// LastError returns the error recorded by the most recent failed
// transition, if any.
func (m *Machine) LastError() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

// FailedAt returns when the machine last entered the error state.
func (m *Machine) FailedAt() time.Time {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.failedAt
}

// Close stops the interpreter. The machine must not be used afterwards.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interp.Stop()
}

func (m *Machine) recordFailure(err error) {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	m.lastErr = err
	m.failedAt = time.Now().UTC()
}

// fire validates the event against the transition table, then drives
// the interpreter. Invalid events are state conflicts.
func (m *Machine) fire(event, op string, payload map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := State(m.interp.State().Value)
	if _, ok := transitions[current][event]; !ok {
		return &StateConflictError{PluginID: m.pluginID, State: current, Op: op}
	}
	m.interp.Send(statekit.Event{Type: statekit.EventType(event), Payload: payload})
	return nil
}

// Begin opens a verb's transition, entering its transient state.
// Install has no transient state and begins as a no-op.
func (m *Machine) Begin(verb Verb) error {
	event := verb.beginEvent()
	if event == "" {
		return nil
	}
	return m.fire(event, string(verb), nil)
}

// Complete closes a verb's transition. For update, prior selects the
// state category to restore.
func (m *Machine) Complete(verb Verb, prior State) error {
	return m.fire(verb.completeEvent(prior), string(verb), nil)
}

// Fail moves the machine to the error state, recording err. States
// with no failure transition (uninstalled) record the error without
// moving.
func (m *Machine) Fail(err error) {
	payload := map[string]interface{}{"error": err}
	if fireErr := m.fire(EventFail, "fail", payload); fireErr != nil {
		m.recordFailure(err)
	}
}

// Run drives a complete transition for verb: the begin event, the pre
// hook, the effect, the completion event, then the post hook. A failing
// pre hook aborts before the effect; a failing effect or completion
// moves the machine to error; a failing post hook keeps the new state
// and is returned as a warning. Side-effect rollback belongs to the
// effect closure.
func (m *Machine) Run(ctx context.Context, verb Verb, runner HookRunner, timeout time.Duration, effect func(context.Context) error) ([]string, error) {
	prior := m.Current()

	if err := m.Begin(verb); err != nil {
		return nil, err
	}

	if err := RunWithTimeout(ctx, runner, m.pluginID, verb.PreHook(), timeout); err != nil {
		m.Fail(err)
		return nil, err
	}

	if effect != nil {
		if err := effect(ctx); err != nil {
			m.Fail(err)
			return nil, err
		}
	}

	if err := m.Complete(verb, prior); err != nil {
		m.Fail(err)
		return nil, err
	}

	var warnings []string
	if err := RunWithTimeout(ctx, runner, m.pluginID, verb.PostHook(), timeout); err != nil {
		warnings = append(warnings, err.Error())
	}
	return warnings, nil
}
