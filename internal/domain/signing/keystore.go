// Package signing authenticates plugin packages before any plugin bytes
// are parsed or executed.
package signing

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
	"gopkg.in/ini.v1"
)

// TrustedKey is one entry in the host keystore.
type TrustedKey struct {
	// KeyID is the identifier signatures reference.
	KeyID string
	// PublicKey is the ed25519 verification key.
	PublicKey ed25519.PublicKey
	// Comment is free-form operator metadata from the keystore sidecar.
	Comment string
}

// Fingerprint returns the SHA-256 fingerprint of the public key.
func (k TrustedKey) Fingerprint() string {
	hash := sha256.Sum256(k.PublicKey)
	return "SHA256:" + hex.EncodeToString(hash[:])
}

// Keystore holds the trusted signing keys. Read-only after load.
type Keystore struct {
	keys map[string]TrustedKey
}

// NewKeystore creates an empty keystore.
func NewKeystore() *Keystore {
	return &Keystore{keys: make(map[string]TrustedKey)}
}

// AddKey adds a trusted key.
func (ks *Keystore) AddKey(keyID string, publicKey ed25519.PublicKey) {
	ks.keys[keyID] = TrustedKey{KeyID: keyID, PublicKey: publicKey}
}

// Lookup returns the trusted key for keyID.
func (ks *Keystore) Lookup(keyID string) (TrustedKey, bool) {
	k, ok := ks.keys[keyID]
	return k, ok
}

// Keys returns all trusted keys.
func (ks *Keystore) Keys() []TrustedKey {
	result := make([]TrustedKey, 0, len(ks.keys))
	for _, k := range ks.keys {
		result = append(result, k)
	}
	return result
}

// Count returns the number of trusted keys.
func (ks *Keystore) Count() int {
	return len(ks.keys)
}

// LoadKeystore reads trusted keys from an allowed-signers style file.
// Each non-comment line is "<key-id> <key-type> <base64-key> [comment]",
// the key material in OpenSSH authorized-keys encoding. Only ed25519
// keys are accepted. An optional INI sidecar at metaPath carries per-key
// comments ([<key-id>] sections with a "comment" field); pass "" to skip.
func LoadKeystore(path, metaPath string) (*Keystore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeystoreNotFound, path)
		}
		return nil, fmt.Errorf("reading keystore: %w", err)
	}

	ks := NewKeystore()
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("keystore %s line %d: expected <key-id> <key-type> <key>", path, i+1)
		}
		keyID := fields[0]

		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.Join(fields[1:], " ")))
		if err != nil {
			return nil, fmt.Errorf("keystore %s line %d: %w", path, i+1, err)
		}

		cryptoPub, ok := pub.(ssh.CryptoPublicKey)
		if !ok {
			return nil, fmt.Errorf("keystore %s line %d: unsupported key type %s", path, i+1, pub.Type())
		}
		edKey, ok := cryptoPub.CryptoPublicKey().(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("keystore %s line %d: key %q is not ed25519", path, i+1, keyID)
		}

		ks.keys[keyID] = TrustedKey{KeyID: keyID, PublicKey: edKey}
	}

	if metaPath != "" {
		if err := ks.loadMetadata(metaPath); err != nil {
			return nil, err
		}
	}
	return ks, nil
}

// loadMetadata merges the INI sidecar into already-loaded keys. Sections
// for unknown key IDs are ignored; they may belong to rotated keys.
func (ks *Keystore) loadMetadata(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("loading keystore metadata: %w", err)
	}

	for _, section := range cfg.Sections() {
		key, ok := ks.keys[section.Name()]
		if !ok {
			continue
		}
		key.Comment = section.Key("comment").String()
		ks.keys[section.Name()] = key
	}
	return nil
}
