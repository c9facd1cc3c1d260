// Package manifest parses and validates plugin descriptors.
package manifest

import (
	"fmt"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Filename is the descriptor file expected inside every plugin package.
const Filename = "plugin.yaml"

// MaxSize is the maximum accepted descriptor size in bytes.
const MaxSize = 1 << 20

// Manifest describes a plugin's identity, version, dependencies, and
// requested capabilities. A Manifest is immutable once parsed; callers
// that need to hold on to one should use Clone.
type Manifest struct {
	// ID is the unique, stable plugin identifier (e.g., "media-tools").
	ID string `yaml:"id"`
	// Version is the semantic version (e.g., "1.2.0").
	Version string `yaml:"version"`
	// DisplayName is the human-readable name shown in listings.
	DisplayName string `yaml:"displayName,omitempty"`
	// Description is a brief description of the plugin.
	Description string `yaml:"description,omitempty"`
	// Author is the plugin author.
	Author string `yaml:"author,omitempty"`
	// Dependencies lists required plugins with version ranges.
	Dependencies []Dependency `yaml:"dependencies,omitempty"`
	// Capabilities lists requested capabilities ("category:action").
	Capabilities []string `yaml:"capabilities,omitempty"`
	// EntryPoint is the plugin's entry module, relative to the package
	// root (e.g., "plugin.wasm").
	EntryPoint string `yaml:"entryPoint,omitempty"`
	// Signature carries the embedded signature, if the package does not
	// ship a detached one.
	Signature *SignatureRef `yaml:"signature,omitempty"`
}

// Dependency declares a requirement on another plugin.
type Dependency struct {
	// ID is the required plugin identifier.
	ID string `yaml:"id"`
	// Range is a semver constraint (e.g., ">=1.0.0", "^2.1.0").
	Range string `yaml:"range,omitempty"`
}

// SignatureRef carries signature material embedded in the descriptor.
type SignatureRef struct {
	// Type is the signature type; only "ed25519" is currently supported.
	Type string `yaml:"type"`
	// KeyID identifies the signing key in the host keystore.
	KeyID string `yaml:"keyId"`
	// Data is the base64-encoded signature bytes.
	Data string `yaml:"data"`
}

// Parse decodes and validates a raw descriptor. It is a pure transform:
// no side effects, all validation failures accumulated into a single
// *Error.
func Parse(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, &Error{Problems: []string{"descriptor is empty"}}
	}
	if len(data) > MaxSize {
		return nil, &Error{Problems: []string{fmt.Sprintf("descriptor size %d bytes exceeds limit of %d bytes", len(data), MaxSize)}}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &Error{Problems: []string{fmt.Sprintf("malformed descriptor: %v", err)}}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for required fields, version format,
// dependency range syntax, and capability request syntax.
func (m *Manifest) Validate() error {
	e := &Error{ID: m.ID}

	if m.ID == "" {
		e.Add("id is required")
	} else if err := validateIDFormat(m.ID); err != nil {
		e.Add(err.Error())
	}

	if m.Version == "" {
		e.Add("version is required")
	} else if !semver.IsValid(canonical(m.Version)) {
		e.Addf("version %q is not valid semantic versioning", m.Version)
	}

	for i, dep := range m.Dependencies {
		if dep.ID == "" {
			e.Addf("dependencies[%d].id is required", i)
			continue
		}
		if dep.ID == m.ID {
			e.Addf("dependencies[%d]: plugin cannot depend on itself", i)
		}
		if dep.Range != "" {
			if _, err := ParseRange(dep.Range); err != nil {
				e.Addf("dependencies[%d]: %v", i, err)
			}
		}
	}

	for i, c := range m.Capabilities {
		if err := validateCapabilitySyntax(c); err != nil {
			e.Addf("capabilities[%d]: %v", i, err)
		}
	}

	if m.Signature != nil {
		if m.Signature.Type == "" {
			e.Add("signature.type is required when a signature is embedded")
		}
		if m.Signature.KeyID == "" {
			e.Add("signature.keyId is required when a signature is embedded")
		}
		if m.Signature.Data == "" {
			e.Add("signature.data is required when a signature is embedded")
		}
	}

	if e.HasProblems() {
		return e
	}
	return nil
}

// validateIDFormat checks plugin identifier naming rules.
func validateIDFormat(id string) error {
	if len(id) < 2 {
		return fmt.Errorf("plugin id %q is too short (minimum 2 characters)", id)
	}
	if len(id) > 64 {
		return fmt.Errorf("plugin id %q is too long (maximum 64 characters)", id)
	}
	first := id[0]
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')) {
		return fmt.Errorf("plugin id %q must start with a letter", id)
	}
	for i, c := range id {
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isLetter && !isDigit && c != '-' && c != '_' && c != '.' {
			return fmt.Errorf("plugin id %q contains invalid character %q at position %d", id, c, i)
		}
	}
	return nil
}

// validateCapabilitySyntax checks the "category:action" shape without
// enforcing the host vocabulary; the capability domain owns that.
func validateCapabilitySyntax(s string) error {
	if s == "" {
		return fmt.Errorf("capability cannot be empty")
	}
	sep := -1
	for i, c := range s {
		if c == ':' {
			sep = i
			break
		}
	}
	if sep <= 0 || sep == len(s)-1 {
		return fmt.Errorf("capability %q must be in category:action format", s)
	}
	return nil
}

// String returns a human-readable plugin description.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s@%s", m.ID, m.Version)
}

// Clone creates a deep copy of the Manifest.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	clone := &Manifest{
		ID:          m.ID,
		Version:     m.Version,
		DisplayName: m.DisplayName,
		Description: m.Description,
		Author:      m.Author,
		EntryPoint:  m.EntryPoint,
	}
	if m.Dependencies != nil {
		clone.Dependencies = make([]Dependency, len(m.Dependencies))
		copy(clone.Dependencies, m.Dependencies)
	}
	if m.Capabilities != nil {
		clone.Capabilities = make([]string, len(m.Capabilities))
		copy(clone.Capabilities, m.Capabilities)
	}
	if m.Signature != nil {
		sig := *m.Signature
		clone.Signature = &sig
	}
	return clone
}
