// Package sandbox executes plugin WASM entry points inside a wazero
// runtime. Lifecycle hooks exported by a plugin module run here so
// plugin code never shares an address space boundary with the host
// beyond what the runtime exposes.
package sandbox

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Sandbox errors.
var (
	ErrModuleInvalid    = errors.New("invalid plugin module")
	ErrExecutionTimeout = errors.New("sandbox execution timeout")
	ErrRuntimeClosed    = errors.New("sandbox runtime closed")
)

// Limits defines resource constraints for plugin execution.
type Limits struct {
	// MaxMemoryBytes limits memory allocation. Enforcement relies on
	// the module's own declared limits; the host records the cap for
	// validation.
	MaxMemoryBytes uint64

	// MaxOutputBytes limits stdout/stderr size.
	MaxOutputBytes int64
}

// Config holds sandbox configuration.
type Config struct {
	// Timeout bounds a single hook invocation.
	Timeout time.Duration

	// Limits for resource consumption.
	Limits Limits
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Limits: Limits{
			MaxMemoryBytes: 64 * 1024 * 1024,
			MaxOutputBytes: 1024 * 1024,
		},
	}
}

// Module is a plugin's WASM entry point ready for execution.
type Module struct {
	// PluginID owns the module.
	PluginID string

	// Bytes is the raw WASM binary.
	Bytes []byte

	// Checksum is the hex SHA-256 of Bytes, verified before every
	// execution when set.
	Checksum string
}

// NewModule builds a module and records its checksum.
func NewModule(pluginID string, bytes []byte) *Module {
	sum := sha256.Sum256(bytes)
	return &Module{
		PluginID: pluginID,
		Bytes:    bytes,
		Checksum: hex.EncodeToString(sum[:]),
	}
}

// Validate checks the module is executable.
func (m *Module) Validate() error {
	if m.PluginID == "" {
		return fmt.Errorf("%w: plugin ID is required", ErrModuleInvalid)
	}
	if len(m.Bytes) == 0 {
		return fmt.Errorf("%w: module bytes are required", ErrModuleInvalid)
	}
	if m.Checksum != "" {
		sum := sha256.Sum256(m.Bytes)
		if hex.EncodeToString(sum[:]) != m.Checksum {
			return fmt.Errorf("%w: checksum mismatch for plugin %q", ErrModuleInvalid, m.PluginID)
		}
	}
	return nil
}

// InvokeResult holds the outcome of one hook invocation.
type InvokeResult struct {
	// Invoked is false when the module does not export the function;
	// that is a successful no-op, not an error.
	Invoked bool

	// Duration of the invocation.
	Duration time.Duration
}
