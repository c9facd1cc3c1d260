package app

import (
	"context"
	"errors"
	"sync"

	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
	"github.com/felixgeelhaar/hangar/internal/domain/manifest"
	"github.com/felixgeelhaar/hangar/internal/domain/resolver"
)

// EnableAll activates every installed plugin. Independent branches of
// the dependency graph run in parallel; each plugin waits on channels
// for its dependencies to reach enabled before starting, so nothing
// busy-waits. Cancellation lets the hook in flight finish, then halts
// the remaining plugins without attempting their hooks.
func (h *Host) EnableAll(ctx context.Context) error {
	g, err := h.buildGraph()
	if err != nil {
		return err
	}
	order := g.ActivationOrder()

	var sem chan struct{}
	if h.cfg.Activation.Parallelism > 0 {
		sem = make(chan struct{}, h.cfg.Activation.Parallelism)
	}

	done := make(map[string]chan struct{}, len(order))
	for _, id := range order {
		done[id] = make(chan struct{})
	}

	var (
		mu       sync.Mutex
		failures = make(map[string]error)
	)
	setErr := func(id string, err error) {
		mu.Lock()
		failures[id] = err
		mu.Unlock()
	}
	errOf := func(id string) error {
		mu.Lock()
		defer mu.Unlock()
		return failures[id]
	}

	var wg sync.WaitGroup
	for _, id := range order {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer close(done[id])

			for _, dep := range g.Dependencies(id) {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					setErr(id, ctx.Err())
					return
				}
				if errOf(dep) != nil {
					setErr(id, &resolver.UnresolvedDependencyError{
						PluginID:     id,
						DependencyID: dep,
						Reason:       "not enabled",
					})
					return
				}
			}

			if ctx.Err() != nil {
				setErr(id, ctx.Err())
				return
			}
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					setErr(id, ctx.Err())
					return
				}
			}

			if err := h.Enable(ctx, id); err != nil {
				setErr(id, err)
			}
		}(id)
	}
	wg.Wait()

	var errs []error
	for _, id := range order {
		if err := errOf(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reconcile re-enables the plugins the statefile declared enabled
// before the last shutdown, in dependency order. Plugins left disabled
// stay disabled; re-enabling an already enabled plugin is a no-op, so
// reconciliation is idempotent.
func (h *Host) Reconcile(ctx context.Context) error {
	h.mu.Lock()
	declared := h.declaredEnabled
	h.declaredEnabled = make(map[string]bool)
	h.mu.Unlock()

	if len(declared) == 0 {
		return nil
	}

	g, err := h.buildGraph()
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range g.ActivationOrder() {
		if !declared[id] {
			continue
		}
		if err := h.Enable(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildGraph resolves the dependency graph over every stored manifest.
func (h *Host) buildGraph() (*resolver.Graph, error) {
	records := h.store.List()
	manifests := make([]*manifest.Manifest, 0, len(records))
	for _, rec := range records {
		manifests = append(manifests, rec.Manifest)
	}
	return resolver.Build(manifests)
}

// DeclaredEnabled reports whether a plugin is still awaiting
// reconciliation after a restart.
func (h *Host) DeclaredEnabled(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.declaredEnabled[id]
}

// EnabledPlugins returns the identifiers currently in the enabled
// state, sorted.
func (h *Host) EnabledPlugins() []string {
	var ids []string
	for _, rec := range h.store.List() {
		if rec.State == lifecycle.StateEnabled {
			ids = append(ids, rec.ID())
		}
	}
	return ids
}
