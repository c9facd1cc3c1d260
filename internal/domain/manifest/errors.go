package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic handling.
var (
	// ErrDescriptorNotFound indicates plugin.yaml was not found in a package.
	ErrDescriptorNotFound = errors.New("plugin.yaml not found")
)

// Error collects the validation failures of one descriptor.
type Error struct {
	// ID is the plugin identifier, when one could be read.
	ID string
	// Problems are the individual validation failures.
	Problems []string
}

func (e *Error) Error() string {
	subject := "manifest"
	if e.ID != "" {
		subject = fmt.Sprintf("manifest for %q", e.ID)
	}
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s invalid: %s", subject, e.Problems[0])
	}
	return fmt.Sprintf("%s invalid: %s", subject, strings.Join(e.Problems, "; "))
}

// Add appends a validation failure.
func (e *Error) Add(msg string) {
	e.Problems = append(e.Problems, msg)
}

// Addf appends a formatted validation failure.
func (e *Error) Addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// HasProblems returns true if any failure was recorded.
func (e *Error) HasProblems() bool {
	return len(e.Problems) > 0
}

// IsManifestError returns true if the error is a descriptor validation
// failure.
func IsManifestError(err error) bool {
	var me *Error
	return errors.As(err, &me)
}
