package keypair

import (
	"fmt"
	"os"
	"path/filepath"
)

// PrivateKeyFile is the name of the identity file inside the data directory.
const PrivateKeyFile = "private-key.txt"

// Path returns the identity file location for a data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, PrivateKeyFile)
}

// GenerateOrLoad returns the identity stored in dataDir, generating and
// persisting a new one through store if none exists yet. created reports
// whether a new identity was written.
func GenerateOrLoad(dataDir string, store SecureFileStore) (identity *Identity, created bool, err error) {
	path := Path(dataDir)

	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.Mode().IsRegular() {
			return nil, false, fmt.Errorf("identity path %s is not a regular file", path)
		}
		identity, err = Load(path)
		return identity, false, err
	case os.IsNotExist(err):
	default:
		return nil, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	identity, err = Generate()
	if err != nil {
		return nil, false, err
	}
	if err := Save(identity, path, store); err != nil {
		return nil, false, err
	}
	return identity, true, nil
}

// Load reads a hex-encoded private key from path.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	identity, err := FromHex(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return identity, nil
}

// Save writes the hex-encoded private key to a new file at path.
func Save(identity *Identity, path string, store SecureFileStore) error {
	return store.WriteSecure(path, []byte(identity.PrivateKeyHex()))
}
