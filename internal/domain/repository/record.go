// Package repository owns the authoritative plugin records and their
// durable persistence across host restarts.
package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
	"github.com/felixgeelhaar/hangar/internal/domain/manifest"
)

// NotFoundError indicates an operation named a plugin the repository
// has never seen.
type NotFoundError struct {
	// PluginID is the unknown identifier.
	PluginID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("plugin %q not found", e.PluginID)
}

// IsNotFound returns true if the error is a not-found error.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// Record is the authoritative entry for one installed plugin.
type Record struct {
	// Manifest is the plugin's parsed descriptor.
	Manifest *manifest.Manifest

	// State is the current lifecycle state.
	State lifecycle.State

	// InstallPath is the plugin-scoped install directory.
	InstallPath string

	// ContentHash is the hex SHA-256 of the installed package.
	ContentHash string

	// LastError is the message of the most recent failed transition.
	LastError string

	// Warnings accumulates non-fatal problems (failed post hooks,
	// forced cleanup).
	Warnings []string

	// InstalledAt is when the plugin was first installed.
	InstalledAt time.Time

	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time
}

// ID returns the plugin identifier.
func (r *Record) ID() string {
	if r.Manifest == nil {
		return ""
	}
	return r.Manifest.ID
}

// Version returns the installed plugin version.
func (r *Record) Version() string {
	if r.Manifest == nil {
		return ""
	}
	return r.Manifest.Version
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.Manifest != nil {
		clone.Manifest = r.Manifest.Clone()
	}
	if r.Warnings != nil {
		clone.Warnings = make([]string, len(r.Warnings))
		copy(clone.Warnings, r.Warnings)
	}
	return &clone
}
