package capability

import "sort"

// Set is a collection of capabilities keyed by their string form. The
// zero value is usable for lookups; use NewSet to build one that will
// be mutated.
type Set map[string]Capability

// NewSet creates a set holding the given capabilities.
func NewSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s.Add(c)
	}
	return s
}

// ParseSet parses a set from string representations.
func ParseSet(strs []string) (Set, error) {
	s := make(Set, len(strs))
	for _, str := range strs {
		c, err := Parse(str)
		if err != nil {
			return nil, err
		}
		s.Add(c)
	}
	return s, nil
}

// Add adds a capability to the set. Zero capabilities are ignored.
func (s Set) Add(c Capability) {
	if !c.IsZero() {
		s[c.String()] = c
	}
}

// Has checks if the set contains the exact capability.
func (s Set) Has(c Capability) bool {
	_, ok := s[c.String()]
	return ok
}

// Matches checks if any capability in the set matches the given one.
// Uses pattern matching (e.g., "files:*" matches "files:read").
func (s Set) Matches(c Capability) bool {
	for _, member := range s {
		if member.Matches(c) {
			return true
		}
	}
	return false
}

// List returns all capabilities sorted by their string form.
func (s Set) List() []Capability {
	result := make([]Capability, 0, len(s))
	for _, c := range s {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].String() < result[j].String()
	})
	return result
}

// Strings returns all capabilities as sorted strings.
func (s Set) Strings() []string {
	result := make([]string, 0, len(s))
	for k := range s {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// Intersection returns a new set with capabilities matched by both
// sets. Wildcards on either side count as a match; the narrower
// capability is kept, so an intersection never widens a grant.
func (s Set) Intersection(other Set) Set {
	result := NewSet()
	for _, c := range s {
		if other.Matches(c) {
			result.Add(c)
		}
	}
	return result
}

// Difference returns a new set with capabilities in s not matched by
// other.
func (s Set) Difference(other Set) Set {
	result := NewSet()
	for _, c := range s {
		if !other.Matches(c) {
			result.Add(c)
		}
	}
	return result
}

// Clone creates a copy of the set.
func (s Set) Clone() Set {
	result := make(Set, len(s))
	for k, c := range s {
		result[k] = c
	}
	return result
}
