package signing

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DetachedExt is the extension of the detached signature file expected
// next to a package archive.
const DetachedExt = ".sig"

// Detached is the on-disk detached signature format.
type Detached struct {
	// KeyID identifies the signing key in the host keystore.
	KeyID string `yaml:"keyId"`
	// Signature is the base64-encoded ed25519 signature over the
	// SHA-256 hash of the package archive.
	Signature string `yaml:"signature"`
}

// Verifier authenticates package archives against the trusted keystore.
type Verifier struct {
	keystore *Keystore
}

// NewVerifier creates a verifier backed by the given keystore.
func NewVerifier(keystore *Keystore) *Verifier {
	return &Verifier{keystore: keystore}
}

// VerifyPackage authenticates the archive at pkgPath using the detached
// signature at pkgPath + ".sig". It returns the hex-encoded SHA-256
// content hash on success. On any failure it returns a
// *VerificationError; the caller must quarantine the package and must
// not parse it further.
func (v *Verifier) VerifyPackage(pkgPath string) (string, error) {
	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return "", &VerificationError{Package: pkgPath, Reason: fmt.Sprintf("reading package: %v", err)}
	}

	sigData, err := os.ReadFile(pkgPath + DetachedExt)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &VerificationError{Package: pkgPath, Reason: ErrSignatureMissing.Error()}
		}
		return "", &VerificationError{Package: pkgPath, Reason: fmt.Sprintf("reading signature: %v", err)}
	}

	var sig Detached
	if err := yaml.Unmarshal(sigData, &sig); err != nil {
		return "", &VerificationError{Package: pkgPath, Reason: fmt.Sprintf("malformed signature file: %v", err)}
	}

	hash := sha256.Sum256(data)
	if err := v.VerifyContent(hash[:], sig.KeyID, sig.Signature); err != nil {
		var ve *VerificationError
		if errors.As(err, &ve) {
			ve.Package = pkgPath
			return "", ve
		}
		return "", err
	}

	return hex.EncodeToString(hash[:]), nil
}

// VerifyContent checks an ed25519 signature over an already-computed
// content hash against the trusted keystore.
func (v *Verifier) VerifyContent(contentHash []byte, keyID, signature string) error {
	key, ok := v.keystore.Lookup(keyID)
	if !ok {
		return &VerificationError{KeyID: keyID, Reason: ErrUntrustedKey.Error()}
	}

	sigBytes, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return &VerificationError{KeyID: keyID, Reason: fmt.Sprintf("invalid signature encoding: %v", err)}
	}

	if !ed25519.Verify(key.PublicKey, contentHash, sigBytes) {
		return &VerificationError{KeyID: keyID, Reason: "signature does not match content"}
	}
	return nil
}

// Sign produces a detached signature for the content at path. It exists
// for publishing tooling and tests; the host itself only verifies.
func Sign(priv ed25519.PrivateKey, keyID, path string) (*Detached, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	hash := sha256.Sum256(data)
	sig := ed25519.Sign(priv, hash[:])
	return &Detached{
		KeyID:     keyID,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// WriteDetached writes the signature file for the package at pkgPath.
func WriteDetached(pkgPath string, sig *Detached) error {
	data, err := yaml.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encoding signature: %w", err)
	}
	return os.WriteFile(pkgPath+DetachedExt, data, 0o600)
}
