package manifest

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Range is a parsed semver constraint. The zero value matches any version.
// Supported operators: =, >=, <=, >, <, ^ (same major), ~ (same minor).
type Range struct {
	op      string
	version string
	raw     string
}

// ParseRange parses a version range expression.
func ParseRange(s string) (Range, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Range{}, nil
	}

	var op, v string
	switch {
	case strings.HasPrefix(raw, ">="):
		op, v = ">=", raw[2:]
	case strings.HasPrefix(raw, "<="):
		op, v = "<=", raw[2:]
	case strings.HasPrefix(raw, ">"):
		op, v = ">", raw[1:]
	case strings.HasPrefix(raw, "<"):
		op, v = "<", raw[1:]
	case strings.HasPrefix(raw, "^"):
		op, v = "^", raw[1:]
	case strings.HasPrefix(raw, "~"):
		op, v = "~", raw[1:]
	case strings.HasPrefix(raw, "="):
		op, v = "=", raw[1:]
	default:
		op, v = "=", raw
	}

	v = canonical(strings.TrimSpace(v))
	if !semver.IsValid(v) {
		return Range{}, fmt.Errorf("invalid version range %q", s)
	}
	return Range{op: op, version: v, raw: raw}, nil
}

// MustParseRange parses a range or panics. Intended for tests and
// compile-time constants.
func MustParseRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Satisfies reports whether version meets the constraint.
func (r Range) Satisfies(version string) bool {
	if r.raw == "" {
		return true
	}
	v := canonical(version)
	if !semver.IsValid(v) {
		return false
	}

	cmp := semver.Compare(v, r.version)
	switch r.op {
	case "=":
		return cmp == 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "^":
		return cmp >= 0 && semver.Major(v) == semver.Major(r.version)
	case "~":
		return cmp >= 0 && semver.MajorMinor(v) == semver.MajorMinor(r.version)
	default:
		return cmp == 0
	}
}

// IsZero reports whether the range matches any version.
func (r Range) IsZero() bool {
	return r.raw == ""
}

// String returns the original range expression.
func (r Range) String() string {
	return r.raw
}

// canonical normalizes a version string to the "vMAJOR.MINOR.PATCH" form
// expected by golang.org/x/mod/semver.
func canonical(v string) string {
	if v == "" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}
