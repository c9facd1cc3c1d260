package capability

import (
	"fmt"
)

// Policy defines the host-side capability limits. A plugin is never
// granted more than the policy allows, regardless of what its manifest
// declares.
type Policy struct {
	// granted capabilities available for plugins to request
	granted Set

	// blocked capabilities that are explicitly denied
	blocked Set

	// approved dangerous capabilities (operator confirmed)
	approved Set

	// requireApproval when true requires approval for dangerous capabilities
	requireApproval bool
}

// NewPolicy creates a new empty policy.
func NewPolicy() *Policy {
	return &Policy{
		granted:         NewSet(),
		blocked:         NewSet(),
		approved:        NewSet(),
		requireApproval: true,
	}
}

// PolicyBuilder builds a Policy.
type PolicyBuilder struct {
	policy *Policy
}

// NewPolicyBuilder creates a new policy builder.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{
		policy: NewPolicy(),
	}
}

// Grant adds capabilities to the granted set.
func (b *PolicyBuilder) Grant(caps ...Capability) *PolicyBuilder {
	for _, c := range caps {
		b.policy.granted.Add(c)
	}
	return b
}

// GrantStrings parses and grants capabilities from strings.
func (b *PolicyBuilder) GrantStrings(strs ...string) *PolicyBuilder {
	for _, s := range strs {
		if c, err := Parse(s); err == nil {
			b.policy.granted.Add(c)
		}
	}
	return b
}

// Block adds capabilities to the blocked set.
func (b *PolicyBuilder) Block(caps ...Capability) *PolicyBuilder {
	for _, c := range caps {
		b.policy.blocked.Add(c)
	}
	return b
}

// BlockStrings parses and blocks capabilities from strings.
func (b *PolicyBuilder) BlockStrings(strs ...string) *PolicyBuilder {
	for _, s := range strs {
		if c, err := Parse(s); err == nil {
			b.policy.blocked.Add(c)
		}
	}
	return b
}

// Approve marks dangerous capabilities as approved.
func (b *PolicyBuilder) Approve(caps ...Capability) *PolicyBuilder {
	for _, c := range caps {
		b.policy.approved.Add(c)
	}
	return b
}

// RequireApproval sets whether dangerous capabilities need approval.
func (b *PolicyBuilder) RequireApproval(require bool) *PolicyBuilder {
	b.policy.requireApproval = require
	return b
}

// Build creates the policy.
func (b *PolicyBuilder) Build() *Policy {
	return b.policy
}

// Granted returns the granted capabilities.
func (p *Policy) Granted() Set {
	return p.granted
}

// Blocked returns the blocked capabilities.
func (p *Policy) Blocked() Set {
	return p.blocked
}

// Check verifies if a capability is allowed by the policy.
func (p *Policy) Check(c Capability) error {
	if p.blocked.Matches(c) {
		return fmt.Errorf("%w: %s is blocked by policy", ErrCapabilityDenied, c)
	}
	if !p.granted.Matches(c) {
		return fmt.Errorf("%w: %s", ErrCapabilityNotGranted, c)
	}
	if c.IsDangerous() && p.requireApproval && !p.approved.Has(c) {
		return fmt.Errorf("%w: %s", ErrDangerousCapability, c)
	}
	return nil
}

// Allowed filters the requested set down to what the policy permits:
// the intersection of the request with the granted set, minus anything
// blocked or awaiting approval. This is the grant computation used when
// an isolation boundary is constructed.
func (p *Policy) Allowed(requested Set) Set {
	result := NewSet()
	for _, c := range requested.List() {
		if p.Check(c) == nil {
			result.Add(c)
		}
	}
	return result
}

// DefaultPolicy grants the capabilities a well-behaved plugin commonly
// needs and keeps dangerous ones behind approval.
func DefaultPolicy() *Policy {
	return NewPolicyBuilder().
		Grant(CapFilesRead, CapFilesWrite, CapNetworkFetch, CapPluginsCall, CapPluginsQuery, CapHostRead).
		RequireApproval(true).
		Build()
}

// RestrictedPolicy grants nothing; every capability check fails.
func RestrictedPolicy() *Policy {
	return NewPolicy()
}
