package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/felixgeelhaar/hangar/internal/ports"
)

// Runtime wraps a wazero runtime shared by all plugin hook invocations.
type Runtime struct {
	runtime wazero.Runtime
	config  Config
	logger  ports.Logger

	mu            sync.Mutex
	hostInstalled bool
	closed        bool
}

// NewRuntime creates a wazero-backed runtime with WASI available to
// plugin modules.
func NewRuntime(ctx context.Context, config Config, logger ports.Logger) (*Runtime, error) {
	cfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true)

	r := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	return &Runtime{
		runtime: r,
		config:  config,
		logger:  logger,
	}, nil
}

// Invoke runs one exported function from a plugin module. The module is
// compiled and instantiated per call, so no plugin state survives
// between invocations. A module that does not export fn succeeds
// without running anything.
func (r *Runtime) Invoke(ctx context.Context, module *Module, fn string) (*InvokeResult, error) {
	if err := module.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRuntimeClosed
	}
	if !r.hostInstalled {
		if err := r.installHostModule(ctx); err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("failed to register host functions: %w", err)
		}
		r.hostInstalled = true
	}
	r.mu.Unlock()

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	start := time.Now()

	compiled, err := r.runtime.CompileModule(ctx, module.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compile: %w", ErrModuleInvalid, err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	modConfig := wazero.NewModuleConfig().
		WithName(module.PluginID).
		WithStartFunctions("_initialize")

	instance, err := r.runtime.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrExecutionTimeout
		}
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	defer func() { _ = instance.Close(ctx) }()

	result := &InvokeResult{}

	hookFn := instance.ExportedFunction(fn)
	if hookFn == nil {
		result.Duration = time.Since(start)
		return result, nil
	}

	if _, err := hookFn.Call(ctx); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrExecutionTimeout
		}
		return nil, fmt.Errorf("plugin %q: %s failed: %w", module.PluginID, fn, err)
	}

	result.Invoked = true
	result.Duration = time.Since(start)
	return result, nil
}

// Available returns true if the runtime can execute modules.
func (r *Runtime) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

// Close releases runtime resources.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.runtime.Close(context.Background())
}

// installHostModule exposes host log functions to plugin code.
func (r *Runtime) installHostModule(ctx context.Context) error {
	builder := r.runtime.NewHostModuleBuilder("hangar")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			if r.logger != nil {
				r.logger.Info(ctx, readString(m, ptr, length), ports.F("plugin", m.Name()))
			}
		}).
		Export("log_info")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			if r.logger != nil {
				r.logger.Warn(ctx, readString(m, ptr, length), ports.F("plugin", m.Name()))
			}
		}).
		Export("log_warn")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			if r.logger != nil {
				r.logger.Error(ctx, readString(m, ptr, length), ports.F("plugin", m.Name()))
			}
		}).
		Export("log_error")

	_, err := builder.Instantiate(ctx)
	return err
}

// readString reads a string from WASM memory.
func readString(m api.Module, ptr, length uint32) string {
	if m == nil {
		return ""
	}
	mem := m.Memory()
	if mem == nil {
		return ""
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return ""
	}
	return string(data)
}
