//go:build !unix

package keypair

// DefaultStore returns the store for the current platform. Non-unix
// platforms have no owner-only mode bits, so permissions are left as
// created.
func DefaultStore() SecureFileStore {
	return PlainStore{}
}
