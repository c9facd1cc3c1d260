// Package capability provides the capability vocabulary plugins request
// and the host policy that limits what is actually granted.
package capability

import (
	"errors"
	"fmt"
	"strings"
)

// Capability errors.
var (
	ErrInvalidCapability    = errors.New("invalid capability")
	ErrCapabilityDenied     = errors.New("capability denied")
	ErrCapabilityNotGranted = errors.New("capability not granted")
	ErrDangerousCapability  = errors.New("dangerous capability requires approval")
)

// Category represents a capability category.
type Category string

// Category constants.
const (
	CategoryFiles   Category = "files"
	CategoryNetwork Category = "network"
	CategoryShell   Category = "shell"
	CategoryPlugins Category = "plugins"
	CategoryHost    Category = "host"
	CategorySecrets Category = "secrets"
)

// Action represents a capability action within a category.
type Action string

// Action constants.
const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionExecute Action = "execute"
	ActionFetch   Action = "fetch"
	ActionCall    Action = "call"
	ActionQuery   Action = "query"
)

// Capability represents a single permission a plugin may be granted.
// Format: "category:action" (e.g., "files:read", "plugins:call").
type Capability struct {
	category Category
	action   Action
	raw      string
}

// New creates a capability from category and action.
func New(category Category, action Action) Capability {
	return Capability{
		category: category,
		action:   action,
		raw:      string(category) + ":" + string(action),
	}
}

// Parse parses a capability string.
func Parse(s string) (Capability, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Capability{}, fmt.Errorf("%w: empty capability", ErrInvalidCapability)
	}

	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Capability{}, fmt.Errorf("%w: must be category:action format", ErrInvalidCapability)
	}

	category := Category(parts[0])
	if !isValidCategory(category) {
		return Capability{}, fmt.Errorf("%w: unknown category %q", ErrInvalidCapability, category)
	}

	return Capability{
		category: category,
		action:   Action(parts[1]),
		raw:      s,
	}, nil
}

// MustParse parses a capability or panics.
func MustParse(s string) Capability {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Category returns the capability category.
func (c Capability) Category() Category {
	return c.category
}

// Action returns the capability action.
func (c Capability) Action() Action {
	return c.action
}

// String returns the string representation.
func (c Capability) String() string {
	return c.raw
}

// IsZero returns true if the capability is empty.
func (c Capability) IsZero() bool {
	return c.raw == ""
}

// IsDangerous returns true if this capability is considered dangerous.
func (c Capability) IsDangerous() bool {
	for _, dangerous := range DangerousCapabilities {
		if c.category == dangerous.category && c.action == dangerous.action {
			return true
		}
	}
	return false
}

// Matches checks if this capability matches another.
// Supports wildcards: "files:*" matches any files capability.
func (c Capability) Matches(other Capability) bool {
	if c.category != other.category {
		return false
	}
	if c.action == "*" || other.action == "*" {
		return true
	}
	return c.action == other.action
}

// Well-known capabilities.
var (
	CapFilesRead    = New(CategoryFiles, ActionRead)
	CapFilesWrite   = New(CategoryFiles, ActionWrite)
	CapNetworkFetch = New(CategoryNetwork, ActionFetch)
	CapShellExecute = New(CategoryShell, ActionExecute)
	CapPluginsCall  = New(CategoryPlugins, ActionCall)
	CapPluginsQuery = New(CategoryPlugins, ActionQuery)
	CapHostRead     = New(CategoryHost, ActionRead)
	CapSecretsRead  = New(CategorySecrets, ActionRead)
	CapSecretsWrite = New(CategorySecrets, ActionWrite)
)

// DangerousCapabilities lists capabilities that require explicit approval.
var DangerousCapabilities = []Capability{
	CapShellExecute,
	CapSecretsRead,
	CapSecretsWrite,
}

func isValidCategory(c Category) bool {
	switch c {
	case CategoryFiles, CategoryNetwork, CategoryShell,
		CategoryPlugins, CategoryHost, CategorySecrets:
		return true
	default:
		return false
	}
}
