//go:build unix

package keypair

import (
	"os"

	"golang.org/x/sys/unix"
)

// PosixStore sets the file mode to owner read/write on the open descriptor
// right after the data has been synced.
type PosixStore struct{}

func (PosixStore) WriteSecure(path string, data []byte) error {
	return writeSynced(path, data, func(file *os.File) error {
		return unix.Fchmod(int(file.Fd()), uint32(ownerReadWrite))
	})
}

// DefaultStore returns the store for the current platform.
func DefaultStore() SecureFileStore {
	return PosixStore{}
}
