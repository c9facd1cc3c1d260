package signing

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Quarantine moves a package that failed verification out of the active
// install path. The quarantined copy keeps the original file name with a
// timestamp prefix so repeated failures do not collide. The detached
// signature file, if present, travels with it. Returns the quarantined
// package path.
func Quarantine(pkgPath, quarantineDir string) (string, error) {
	if err := os.MkdirAll(quarantineDir, 0o700); err != nil {
		return "", fmt.Errorf("creating quarantine directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	dest := filepath.Join(quarantineDir, stamp+"-"+filepath.Base(pkgPath))

	if err := moveFile(pkgPath, dest); err != nil {
		return "", fmt.Errorf("quarantining package: %w", err)
	}

	// Best effort for the signature file; a missing one is expected when
	// the failure was an absent signature.
	sigPath := pkgPath + DetachedExt
	if _, err := os.Stat(sigPath); err == nil {
		_ = moveFile(sigPath, dest+DetachedExt)
	}

	return dest, nil
}

// moveFile renames src to dest, falling back to copy-and-remove when the
// rename crosses filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
