package keypair

import (
	"fmt"
	"os"
)

const ownerReadWrite os.FileMode = 0600

// SecureFileStore persists secret material to a new file.
type SecureFileStore interface {
	// WriteSecure creates path, which must not exist yet, and writes data to
	// durable storage with the strongest access restriction the
	// implementation supports.
	WriteSecure(path string, data []byte) error
}

// PlainStore writes and syncs the file without tightening permissions
// beyond the mode requested at creation.
type PlainStore struct{}

func (PlainStore) WriteSecure(path string, data []byte) error {
	return writeSynced(path, data, nil)
}

// writeSynced runs create, write, sync and then harden, in that order.
// Nothing fallible runs between creation and the harden step except the
// write and sync themselves; on any failure the partial file is removed.
func writeSynced(path string, data []byte, harden func(*os.File) error) (err error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, ownerReadWrite)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, closeErr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if _, err = file.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if harden != nil {
		if err = harden(file); err != nil {
			return fmt.Errorf("failed to restrict permissions on %s: %w", path, err)
		}
	}
	return nil
}
