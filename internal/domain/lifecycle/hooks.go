package lifecycle

import (
	"context"
	"sync"
	"time"
)

// Hook is a single lifecycle callback.
type Hook func(ctx context.Context) error

// HookRunner executes a named lifecycle hook for a plugin. Plugins
// without the requested hook succeed immediately.
type HookRunner interface {
	Run(ctx context.Context, pluginID, hook string) error
}

// GoHookRunner dispatches hooks to handlers registered in-process by
// the host or by tests.
type GoHookRunner struct {
	mu    sync.RWMutex
	hooks map[string]map[string]Hook
}

// NewGoHookRunner creates an empty runner.
func NewGoHookRunner() *GoHookRunner {
	return &GoHookRunner{hooks: make(map[string]map[string]Hook)}
}

// Register installs a handler for one plugin hook, replacing any
// previous handler.
func (r *GoHookRunner) Register(pluginID, hook string, fn Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hooks[pluginID] == nil {
		r.hooks[pluginID] = make(map[string]Hook)
	}
	r.hooks[pluginID][hook] = fn
}

// Unregister removes all handlers for a plugin.
func (r *GoHookRunner) Unregister(pluginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hooks, pluginID)
}

// Run executes the plugin's handler for the hook, if one is registered.
func (r *GoHookRunner) Run(ctx context.Context, pluginID, hook string) error {
	r.mu.RLock()
	fn := r.hooks[pluginID][hook]
	r.mu.RUnlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// RunWithTimeout executes a hook under a deadline. On timeout the hook
// goroutine keeps running unobserved; the caller gets a TimeoutError
// and moves on. Hook errors are wrapped in HookExecutionError so the
// failing hook is always named.
func RunWithTimeout(ctx context.Context, runner HookRunner, pluginID, hook string, timeout time.Duration) error {
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(hookCtx, pluginID, hook)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &HookExecutionError{PluginID: pluginID, Hook: hook, Err: err}
		}
		return nil
	case <-hookCtx.Done():
		if ctx.Err() != nil {
			return &HookExecutionError{PluginID: pluginID, Hook: hook, Err: ctx.Err()}
		}
		return &TimeoutError{PluginID: pluginID, Hook: hook, Timeout: timeout}
	}
}
