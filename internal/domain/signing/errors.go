package signing

import (
	"errors"
	"fmt"
)

// Signing errors.
var (
	ErrSignatureMissing = errors.New("signature missing")
	ErrUntrustedKey     = errors.New("untrusted signing key")
	ErrKeystoreNotFound = errors.New("keystore not found")
)

// VerificationError indicates a package failed signature verification.
// The package must be quarantined and never parsed further.
type VerificationError struct {
	// Package is the package path that failed verification.
	Package string
	// KeyID is the signing key involved, when known.
	KeyID string
	// Reason describes the failure.
	Reason string
}

func (e *VerificationError) Error() string {
	if e.KeyID != "" {
		return fmt.Sprintf("signature verification failed for %s (key %s): %s", e.Package, e.KeyID, e.Reason)
	}
	return fmt.Sprintf("signature verification failed for %s: %s", e.Package, e.Reason)
}

// IsVerificationError returns true if the error is a signature
// verification failure.
func IsVerificationError(err error) bool {
	var ve *VerificationError
	return errors.As(err, &ve)
}
