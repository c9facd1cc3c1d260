package sandbox

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// HookRunner executes lifecycle hooks exported by plugin WASM entry
// points. Plugins without a loaded module succeed as no-ops, so hosts
// can mix WASM plugins with ones whose hooks are registered in-process.
type HookRunner struct {
	runtime *Runtime

	mu      sync.RWMutex
	modules map[string]*Module
}

// NewHookRunner creates a runner backed by the given runtime.
func NewHookRunner(runtime *Runtime) *HookRunner {
	return &HookRunner{
		runtime: runtime,
		modules: make(map[string]*Module),
	}
}

// LoadModule reads a plugin's entry-point module from disk and makes
// its exported hooks callable.
func (r *HookRunner) LoadModule(pluginID, path string) error {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("plugin %q: reading module: %w", pluginID, err)
	}

	module := NewModule(pluginID, bytes)
	if err := module.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[pluginID] = module
	return nil
}

// RemoveModule forgets a plugin's module. Subsequent hooks for the
// plugin are no-ops.
func (r *HookRunner) RemoveModule(pluginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, pluginID)
}

// Loaded returns true if a module is loaded for the plugin.
func (r *HookRunner) Loaded(pluginID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[pluginID]
	return ok
}

// Run executes the named hook from the plugin's module, if both the
// module and the export exist.
func (r *HookRunner) Run(ctx context.Context, pluginID, hook string) error {
	r.mu.RLock()
	module := r.modules[pluginID]
	r.mu.RUnlock()

	if module == nil {
		return nil
	}

	_, err := r.runtime.Invoke(ctx, module, hook)
	return err
}
