// Package app wires the plugin host together: signature verification,
// manifest validation, dependency resolution, lifecycle state machines,
// capability isolation, and extension points, in that order per
// operation.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/hangar/internal/domain/capability"
	"github.com/felixgeelhaar/hangar/internal/domain/config"
	"github.com/felixgeelhaar/hangar/internal/domain/extension"
	"github.com/felixgeelhaar/hangar/internal/domain/isolation"
	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
	"github.com/felixgeelhaar/hangar/internal/domain/manifest"
	"github.com/felixgeelhaar/hangar/internal/domain/repository"
	"github.com/felixgeelhaar/hangar/internal/domain/sandbox"
	"github.com/felixgeelhaar/hangar/internal/domain/signing"
	"github.com/felixgeelhaar/hangar/internal/ports"
)

// Host is the plugin host core. One Host owns the repository, the
// per-plugin state machines, and every boundary between plugin code and
// host internals.
type Host struct {
	cfg        *config.Config
	logger     ports.Logger
	verifier   *signing.Verifier
	store      *repository.Store
	stateFile  *repository.StateFile
	isolation  *isolation.Manager
	extensions *extension.Registry
	hostHooks  *lifecycle.GoHookRunner
	wasmHooks  *sandbox.HookRunner
	runtime    *sandbox.Runtime
	events     *eventBus

	mu       sync.Mutex
	machines map[string]*lifecycle.Machine
	locks    map[string]*sync.Mutex

	// declaredEnabled remembers plugins the statefile recorded as
	// enabled; Reconcile re-enables them after a restart.
	declaredEnabled map[string]bool
}

// New creates a host from configuration and loads persisted plugin
// state. Plugins recorded as enabled come back as disabled until
// Reconcile re-activates them in dependency order.
func New(ctx context.Context, cfg *config.Config, logger ports.Logger) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	keystore, err := signing.LoadKeystore(cfg.Directories.Keystore, cfg.Directories.KeystoreMeta)
	if err != nil {
		if !errors.Is(err, signing.ErrKeystoreNotFound) {
			return nil, err
		}
		logger.Warn(ctx, "keystore not found, all packages will fail verification",
			ports.F("path", cfg.Directories.Keystore))
		keystore = signing.NewKeystore()
	}

	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.Timeout = cfg.HookTimeout()
	runtime, err := sandbox.NewRuntime(ctx, sandboxCfg, logger)
	if err != nil {
		return nil, err
	}

	h := &Host{
		cfg:             cfg,
		logger:          logger,
		verifier:        signing.NewVerifier(keystore),
		store:           repository.NewStore(),
		stateFile:       repository.NewStateFile(cfg.Directories.StateFile),
		isolation:       isolation.NewManager(buildPolicy(cfg.Policy)),
		extensions:      extension.NewRegistry(),
		hostHooks:       lifecycle.NewGoHookRunner(),
		wasmHooks:       sandbox.NewHookRunner(runtime),
		runtime:         runtime,
		events:          newEventBus(),
		machines:        make(map[string]*lifecycle.Machine),
		locks:           make(map[string]*sync.Mutex),
		declaredEnabled: make(map[string]bool),
	}

	if err := h.loadState(ctx); err != nil {
		_ = runtime.Close()
		return nil, err
	}
	return h, nil
}

// buildPolicy converts the config policy section into the capability
// policy enforced by the isolation manager.
func buildPolicy(p config.Policy) *capability.Policy {
	b := capability.NewPolicyBuilder().
		GrantStrings(p.Grants...).
		BlockStrings(p.Blocks...).
		RequireApproval(p.RequireApproval)
	for _, s := range p.Approvals {
		if c, err := capability.Parse(s); err == nil {
			b.Approve(c)
		}
	}
	return b.Build()
}

// loadState restores records from the statefile and re-reads each
// plugin's descriptor from its install directory. Previously enabled
// plugins are held at disabled until reconciliation.
func (h *Host) loadState(ctx context.Context) error {
	records, err := h.stateFile.Load()
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.State == lifecycle.StateEnabled {
			h.declaredEnabled[rec.ID()] = true
			rec.State = lifecycle.StateDisabled
		}

		data, err := os.ReadFile(filepath.Join(rec.InstallPath, manifest.Filename))
		if err == nil {
			if m, perr := manifest.Parse(data); perr == nil {
				rec.Manifest = m
			} else {
				err = perr
			}
		}
		if err != nil {
			h.logger.Warn(ctx, "plugin descriptor unreadable, marking error",
				ports.F("plugin", rec.ID()), ports.F("error", err.Error()))
			rec.State = lifecycle.StateError
			rec.LastError = err.Error()
			delete(h.declaredEnabled, rec.ID())
		}

		h.store.Put(rec)
	}
	return nil
}

// Close stops the sandbox runtime and all state machines. The host must
// not be used afterwards.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, m := range h.machines {
		m.Close()
	}
	h.machines = make(map[string]*lifecycle.Machine)
	return h.runtime.Close()
}

// Subscribe returns a channel of lifecycle events.
func (h *Host) Subscribe() <-chan Event {
	return h.events.Subscribe()
}

// Hooks exposes the in-process hook runner so hosts can register Go
// handlers for plugin hooks.
func (h *Host) Hooks() *lifecycle.GoHookRunner {
	return h.hostHooks
}

// lockFor returns the serialization lock for one plugin identifier.
func (h *Host) lockFor(id string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	lk, ok := h.locks[id]
	if !ok {
		lk = &sync.Mutex{}
		h.locks[id] = lk
	}
	return lk
}

// machineFor returns the plugin's state machine, creating it from the
// repository record on first use.
func (h *Host) machineFor(id string) (*lifecycle.Machine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.machines[id]; ok {
		return m, nil
	}

	rec, ok := h.store.Get(id)
	if !ok {
		return nil, &repository.NotFoundError{PluginID: id}
	}
	m, err := lifecycle.NewMachine(id, rec.State)
	if err != nil {
		return nil, err
	}
	h.machines[id] = m
	return m, nil
}

// dropMachine forgets a plugin's machine after uninstall.
func (h *Host) dropMachine(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.machines[id]; ok {
		m.Close()
		delete(h.machines, id)
	}
}

// stateOf returns the plugin's current state, or uninstalled for
// unknown identifiers.
func (h *Host) stateOf(id string) lifecycle.State {
	m, err := h.machineFor(id)
	if err != nil {
		return lifecycle.StateUninstalled
	}
	return m.Current()
}

func (h *Host) dispatch() hookDispatch {
	return hookDispatch{host: h.hostHooks, wasm: h.wasmHooks}
}

// persist writes the repository to the statefile. Persistence failures
// are logged, not fatal: the in-memory state stays authoritative.
func (h *Host) persist(ctx context.Context) {
	if err := h.stateFile.Save(h.store.List()); err != nil {
		h.logger.Error(ctx, "failed to persist plugin state", ports.F("error", err.Error()))
	}
}

// recordOutcome updates a record after a transition.
func (h *Host) recordOutcome(ctx context.Context, id string, state lifecycle.State, transitionErr error, warnings []string) {
	err := h.store.Mutate(id, func(r *repository.Record) {
		r.State = state
		if transitionErr != nil {
			r.LastError = transitionErr.Error()
		} else {
			r.LastError = ""
		}
		r.Warnings = append(r.Warnings, warnings...)
	})
	if err != nil {
		h.logger.Error(ctx, "failed to update plugin record", ports.F("plugin", id))
		return
	}
	h.persist(ctx)
}

// cleanupEnableArtifacts rolls back a partially applied enable.
func (h *Host) cleanupEnableArtifacts(id string) {
	h.extensions.RevokeOwner(id)
	h.isolation.Release(id)
	h.wasmHooks.RemoveModule(id)
}

// retryRemoveAll removes a directory with bounded retries, falling back
// to a forced attempt. The returned warning is empty on clean removal.
func retryRemoveAll(path string) string {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if lastErr = os.RemoveAll(path); lastErr == nil {
			return ""
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return fmt.Sprintf("forced removal of %s failed: %v", path, lastErr)
}
