package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/hangar/internal/domain/capability"
	"github.com/felixgeelhaar/hangar/internal/domain/config"
	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
	"github.com/felixgeelhaar/hangar/internal/domain/manifest"
	"github.com/felixgeelhaar/hangar/internal/domain/repository"
	"github.com/felixgeelhaar/hangar/internal/domain/resolver"
	"github.com/felixgeelhaar/hangar/internal/domain/signing"
	"github.com/felixgeelhaar/hangar/internal/ports"
)

// Install verifies, extracts, and registers a plugin package. The
// package signature is checked before any of its bytes are parsed; a
// package failing verification is quarantined and never touches the
// repository. Install is atomic: on any failure, partial files are
// removed and no record is created.
func (h *Host) Install(ctx context.Context, pkgPath string) (string, error) {
	contentHash, err := h.verifier.VerifyPackage(pkgPath)
	if err != nil {
		if signing.IsVerificationError(err) {
			if dest, qerr := signing.Quarantine(pkgPath, h.cfg.Directories.Quarantine); qerr != nil {
				h.logger.Error(ctx, "failed to quarantine package",
					ports.F("package", pkgPath), ports.F("error", qerr.Error()))
			} else {
				h.logger.Warn(ctx, "package quarantined", ports.F("dest", dest))
			}
		}
		return "", err
	}

	if err := os.MkdirAll(h.cfg.Directories.InstallRoot, 0o755); err != nil {
		return "", fmt.Errorf("failed to create install root: %w", err)
	}
	tmpDir, err := os.MkdirTemp(h.cfg.Directories.InstallRoot, ".install-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	if err := extractArchive(pkgPath, tmpDir); err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, manifest.Filename))
	if err != nil {
		merr := &manifest.Error{}
		merr.Addf("package does not contain %s", manifest.Filename)
		return "", merr
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return "", err
	}

	lk := h.lockFor(m.ID)
	lk.Lock()
	defer lk.Unlock()

	if h.store.Has(m.ID) {
		return "", &lifecycle.StateConflictError{
			PluginID: m.ID,
			State:    h.stateOf(m.ID),
			Op:       "install",
		}
	}

	machine, err := lifecycle.NewMachine(m.ID, lifecycle.StateUninstalled)
	if err != nil {
		return "", err
	}

	installPath := filepath.Join(h.cfg.Directories.InstallRoot, m.ID)
	warnings, err := machine.Run(ctx, lifecycle.VerbInstall, h.dispatch(), h.cfg.HookTimeout(), func(context.Context) error {
		return os.Rename(tmpDir, installPath)
	})
	if err != nil {
		machine.Close()
		_ = os.RemoveAll(installPath)
		h.events.Emit(m.ID, lifecycle.StateUninstalled, machine.Current(), err)
		return "", err
	}

	now := time.Now().UTC()
	h.store.Put(&repository.Record{
		Manifest:    m,
		State:       lifecycle.StateInstalled,
		InstallPath: installPath,
		ContentHash: contentHash,
		Warnings:    warnings,
		InstalledAt: now,
		UpdatedAt:   now,
	})

	h.mu.Lock()
	h.machines[m.ID] = machine
	h.mu.Unlock()

	h.persist(ctx)
	h.events.Emit(m.ID, lifecycle.StateUninstalled, lifecycle.StateInstalled, nil)
	h.logger.Info(ctx, "plugin installed", ports.F("plugin", m.String()))
	return m.ID, nil
}

// Enable activates a plugin. Every dependency must be installed,
// satisfy its version range, and already be enabled. Enabling an
// enabled plugin is a no-op success.
func (h *Host) Enable(ctx context.Context, id string) error {
	lk := h.lockFor(id)
	lk.Lock()
	defer lk.Unlock()
	return h.enableLocked(ctx, id)
}

func (h *Host) enableLocked(ctx context.Context, id string) error {
	rec, ok := h.store.Get(id)
	if !ok {
		return &repository.NotFoundError{PluginID: id}
	}
	machine, err := h.machineFor(id)
	if err != nil {
		return err
	}
	if machine.Current() == lifecycle.StateEnabled {
		return nil
	}

	if err := h.checkDependencies(rec); err != nil {
		return err
	}

	from := machine.Current()

	wasmLoaded := false
	if strings.HasSuffix(rec.Manifest.EntryPoint, ".wasm") {
		modulePath := filepath.Join(rec.InstallPath, rec.Manifest.EntryPoint)
		if err := h.wasmHooks.LoadModule(id, modulePath); err != nil {
			_ = machine.Begin(lifecycle.VerbEnable)
			machine.Fail(err)
			h.recordOutcome(ctx, id, machine.Current(), err, nil)
			h.events.Emit(id, from, machine.Current(), err)
			return err
		}
		wasmLoaded = true
	}

	granted := false
	warnings, err := machine.Run(ctx, lifecycle.VerbEnable, h.dispatch(), h.cfg.HookTimeout(), func(context.Context) error {
		declared, perr := capability.ParseSet(rec.Manifest.Capabilities)
		if perr != nil {
			return perr
		}
		if _, gerr := h.isolation.Grant(id, declared); gerr != nil {
			return gerr
		}
		granted = true
		return nil
	})
	if err != nil {
		if granted {
			h.isolation.Release(id)
		}
		if wasmLoaded {
			h.wasmHooks.RemoveModule(id)
		}
		h.recordOutcome(ctx, id, machine.Current(), err, nil)
		h.events.Emit(id, from, machine.Current(), err)
		return err
	}

	h.recordOutcome(ctx, id, lifecycle.StateEnabled, nil, warnings)
	h.events.Emit(id, from, lifecycle.StateEnabled, nil)
	h.logger.Info(ctx, "plugin enabled", ports.F("plugin", id))
	return nil
}

// checkDependencies verifies a plugin's dependencies are installed,
// version-satisfied, and enabled.
func (h *Host) checkDependencies(rec *repository.Record) error {
	for _, dep := range rec.Manifest.Dependencies {
		depRec, ok := h.store.Get(dep.ID)
		if !ok {
			return &resolver.UnresolvedDependencyError{
				PluginID:     rec.ID(),
				DependencyID: dep.ID,
				Range:        dep.Range,
				Reason:       "not installed",
			}
		}
		if dep.Range != "" {
			rng, err := manifest.ParseRange(dep.Range)
			if err != nil {
				return fmt.Errorf("plugin %q: %w", rec.ID(), err)
			}
			if !rng.Satisfies(depRec.Version()) {
				return &resolver.UnresolvedDependencyError{
					PluginID:     rec.ID(),
					DependencyID: dep.ID,
					Range:        dep.Range,
					Reason:       fmt.Sprintf("installed version %s does not satisfy %s", depRec.Version(), dep.Range),
				}
			}
		}
		if h.stateOf(dep.ID) != lifecycle.StateEnabled {
			return &resolver.UnresolvedDependencyError{
				PluginID:     rec.ID(),
				DependencyID: dep.ID,
				Range:        dep.Range,
				Reason:       "not enabled",
			}
		}
	}
	return nil
}

// Disable deactivates a plugin. Enabled dependents are handled first
// according to the configured policy: cascade disables the whole
// reverse-dependency closure, dependents before dependencies; reject
// refuses while any enabled dependent remains.
func (h *Host) Disable(ctx context.Context, id string) error {
	if !h.store.Has(id) {
		return &repository.NotFoundError{PluginID: id}
	}

	dependents := h.enabledDependents(id)
	if len(dependents) > 0 {
		if h.cfg.DisablePolicy == config.DisableReject {
			return &lifecycle.StateConflictError{
				PluginID: id,
				State:    lifecycle.StateEnabled,
				Op:       fmt.Sprintf("disable (enabled dependents: %s)", strings.Join(dependents, ", ")),
			}
		}
		for _, dep := range dependents {
			if err := h.disableOne(ctx, dep); err != nil {
				return err
			}
		}
	}

	return h.disableOne(ctx, id)
}

// enabledDependents returns the enabled transitive dependents of id,
// dependents first. The closure walks the raw requires edges of the
// stored manifests so an unresolvable plugin elsewhere in the store
// cannot hide a dependent from the disable policy.
func (h *Host) enabledDependents(id string) []string {
	dependents := make(map[string][]string)
	for _, rec := range h.store.List() {
		for _, dep := range rec.Manifest.Dependencies {
			dependents[dep.ID] = append(dependents[dep.ID], rec.ID())
		}
	}

	visited := map[string]bool{id: true}
	var enabled []string
	var visit func(string)
	visit = func(target string) {
		for _, dep := range dependents[target] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			visit(dep)
			if h.stateOf(dep) == lifecycle.StateEnabled {
				enabled = append(enabled, dep)
			}
		}
	}
	visit(id)
	return enabled
}

func (h *Host) disableOne(ctx context.Context, id string) error {
	lk := h.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	machine, err := h.machineFor(id)
	if err != nil {
		return err
	}
	from := machine.Current()
	if from == lifecycle.StateDisabled || from == lifecycle.StateInstalled {
		return nil
	}

	warnings, err := machine.Run(ctx, lifecycle.VerbDisable, h.dispatch(), h.cfg.HookTimeout(), func(context.Context) error {
		h.extensions.RevokeOwner(id)
		h.isolation.Release(id)
		return nil
	})
	if err != nil {
		h.cleanupEnableArtifacts(id)
		h.recordOutcome(ctx, id, machine.Current(), err, nil)
		h.events.Emit(id, from, machine.Current(), err)
		return err
	}

	// The module stays loaded through post_disable so the plugin's own
	// hook can still run; it goes away with the boundary afterwards.
	h.wasmHooks.RemoveModule(id)

	h.recordOutcome(ctx, id, lifecycle.StateDisabled, nil, warnings)
	h.events.Emit(id, from, lifecycle.StateDisabled, nil)
	h.logger.Info(ctx, "plugin disabled", ports.F("plugin", id))
	return nil
}

// Update replaces an installed plugin with a new package. The new
// package goes through the full verification and validation path, and
// the plugin returns to its prior state category afterwards.
func (h *Host) Update(ctx context.Context, id, pkgPath string) error {
	lk := h.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	rec, ok := h.store.Get(id)
	if !ok {
		return &repository.NotFoundError{PluginID: id}
	}
	machine, err := h.machineFor(id)
	if err != nil {
		return err
	}

	contentHash, err := h.verifier.VerifyPackage(pkgPath)
	if err != nil {
		if signing.IsVerificationError(err) {
			if _, qerr := signing.Quarantine(pkgPath, h.cfg.Directories.Quarantine); qerr != nil {
				h.logger.Error(ctx, "failed to quarantine package", ports.F("error", qerr.Error()))
			}
		}
		return err
	}

	tmpDir, err := os.MkdirTemp(h.cfg.Directories.InstallRoot, ".update-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	if err := extractArchive(pkgPath, tmpDir); err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(tmpDir, manifest.Filename))
	if err != nil {
		merr := &manifest.Error{ID: id}
		merr.Addf("package does not contain %s", manifest.Filename)
		return merr
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return err
	}
	if m.ID != id {
		merr := &manifest.Error{ID: id}
		merr.Addf("package manifest id %q does not match plugin %q", m.ID, id)
		return merr
	}
	if err := h.checkDependentRanges(id, m.Version); err != nil {
		return err
	}

	prior := machine.Current()
	warnings, err := machine.Run(ctx, lifecycle.VerbUpdate, h.dispatch(), h.cfg.HookTimeout(), func(context.Context) error {
		if prior == lifecycle.StateEnabled {
			h.extensions.RevokeOwner(id)
			h.isolation.Release(id)
			h.wasmHooks.RemoveModule(id)
		}

		backup := rec.InstallPath + ".old"
		_ = os.RemoveAll(backup)
		if err := os.Rename(rec.InstallPath, backup); err != nil {
			return fmt.Errorf("failed to stage old version: %w", err)
		}
		if err := os.Rename(tmpDir, rec.InstallPath); err != nil {
			_ = os.Rename(backup, rec.InstallPath)
			return fmt.Errorf("failed to place new version: %w", err)
		}
		_ = os.RemoveAll(backup)

		if prior == lifecycle.StateEnabled {
			declared, perr := capability.ParseSet(m.Capabilities)
			if perr != nil {
				return perr
			}
			if _, gerr := h.isolation.Grant(id, declared); gerr != nil {
				return gerr
			}
			if strings.HasSuffix(m.EntryPoint, ".wasm") {
				if lerr := h.wasmHooks.LoadModule(id, filepath.Join(rec.InstallPath, m.EntryPoint)); lerr != nil {
					return lerr
				}
			}
		}
		return nil
	})
	if err != nil {
		h.cleanupEnableArtifacts(id)
		h.recordOutcome(ctx, id, machine.Current(), err, nil)
		h.events.Emit(id, prior, machine.Current(), err)
		return err
	}

	uerr := h.store.Mutate(id, func(r *repository.Record) {
		r.Manifest = m
		r.ContentHash = contentHash
		r.State = machine.Current()
		r.LastError = ""
		r.Warnings = append(r.Warnings, warnings...)
	})
	if uerr != nil {
		return uerr
	}
	h.persist(ctx)
	h.events.Emit(id, prior, machine.Current(), nil)
	h.logger.Info(ctx, "plugin updated", ports.F("plugin", m.String()))
	return nil
}

// checkDependentRanges rejects an update that would break the declared
// version range of any installed dependent.
func (h *Host) checkDependentRanges(id, newVersion string) error {
	for _, rec := range h.store.List() {
		for _, dep := range rec.Manifest.Dependencies {
			if dep.ID != id || dep.Range == "" {
				continue
			}
			rng, err := manifest.ParseRange(dep.Range)
			if err != nil {
				continue
			}
			if !rng.Satisfies(newVersion) {
				return &resolver.UnresolvedDependencyError{
					PluginID:     rec.ID(),
					DependencyID: id,
					Range:        dep.Range,
					Reason:       fmt.Sprintf("update to %s would not satisfy %s", newVersion, dep.Range),
				}
			}
		}
	}
	return nil
}

// Uninstall removes a plugin. It is best-effort and always eligible,
// error state included: hooks that fail become warnings, and directory
// cleanup is retried before the failure is recorded as a non-fatal
// warning. An identifier the host has never seen is a not-found error.
func (h *Host) Uninstall(ctx context.Context, id string) error {
	rec, ok := h.store.Get(id)
	if !ok {
		return &repository.NotFoundError{PluginID: id}
	}

	if h.stateOf(id) == lifecycle.StateEnabled {
		if err := h.Disable(ctx, id); err != nil {
			return err
		}
	}

	lk := h.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	machine, err := h.machineFor(id)
	if err != nil {
		return err
	}
	from := machine.Current()

	if err := machine.Begin(lifecycle.VerbUninstall); err != nil {
		return err
	}

	var warnings []string
	if err := lifecycle.RunWithTimeout(ctx, h.dispatch(), id, lifecycle.VerbUninstall.PreHook(), h.cfg.HookTimeout()); err != nil {
		warnings = append(warnings, err.Error())
	}

	h.cleanupEnableArtifacts(id)

	if rec.InstallPath != "" {
		if w := retryRemoveAll(rec.InstallPath); w != "" {
			warnings = append(warnings, w)
		}
	}

	if err := machine.Complete(lifecycle.VerbUninstall, from); err != nil {
		machine.Fail(err)
		h.recordOutcome(ctx, id, machine.Current(), err, warnings)
		return err
	}

	if err := lifecycle.RunWithTimeout(ctx, h.dispatch(), id, lifecycle.VerbUninstall.PostHook(), h.cfg.HookTimeout()); err != nil {
		warnings = append(warnings, err.Error())
	}
	h.hostHooks.Unregister(id)

	h.store.Remove(id)
	h.dropMachine(id)
	h.persist(ctx)
	h.events.Emit(id, from, lifecycle.StateUninstalled, nil)

	for _, w := range warnings {
		h.logger.Warn(ctx, "uninstall warning", ports.F("plugin", id), ports.F("warning", w))
	}
	h.logger.Info(ctx, "plugin uninstalled", ports.F("plugin", id))
	return nil
}

// List returns copies of all plugin records, sorted by identifier.
func (h *Host) List() []*repository.Record {
	return h.store.List()
}
