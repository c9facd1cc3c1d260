package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// CyclicDependencyError indicates the manifest set contains a dependency
// cycle. No partial order is produced.
type CyclicDependencyError struct {
	// Cycle lists the participating plugin identifiers, first repeated
	// last to close the loop.
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// IsCyclicDependency returns true if the error is a cyclic dependency
// error.
func IsCyclicDependency(err error) bool {
	var ce *CyclicDependencyError
	return errors.As(err, &ce)
}

// UnresolvedDependencyError indicates a dependency is missing or does
// not satisfy its declared version range.
type UnresolvedDependencyError struct {
	// PluginID is the plugin whose requirement failed.
	PluginID string
	// DependencyID is the missing or mismatched dependency.
	DependencyID string
	// Range is the declared version constraint, if any.
	Range string
	// Reason describes the failure ("not installed", "version 0.9.0
	// does not satisfy >=1.0.0", "not enabled").
	Reason string
}

func (e *UnresolvedDependencyError) Error() string {
	req := e.DependencyID
	if e.Range != "" {
		req = fmt.Sprintf("%s (%s)", e.DependencyID, e.Range)
	}
	return fmt.Sprintf("plugin %q: dependency %s unresolved: %s", e.PluginID, req, e.Reason)
}

// IsUnresolvedDependency returns true if the error is an unresolved
// dependency error.
func IsUnresolvedDependency(err error) bool {
	var ue *UnresolvedDependencyError
	return errors.As(err, &ue)
}
