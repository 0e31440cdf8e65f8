package keypair

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrDecode is returned when a stored private key cannot be decoded.
var ErrDecode = errors.New("failed to decode private key")

// Identity is the node's network identity key pair.
type Identity struct {
	privateKey *ecdsa.PrivateKey
}

// Generate creates a new identity from a cryptographically secure source.
func Generate() (*Identity, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &Identity{privateKey: key}, nil
}

// FromHex decodes a hex-encoded private key. Surrounding whitespace is
// ignored so hand-edited files with a trailing newline still load.
func FromHex(privateKeyHex string) (*Identity, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &Identity{privateKey: key}, nil
}

// PrivateKey returns the underlying private key.
func (id *Identity) PrivateKey() *ecdsa.PrivateKey {
	return id.privateKey
}

// PrivateKeyHex returns the on-disk encoding of the private key.
func (id *Identity) PrivateKeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(id.privateKey))
}

// PublicKey returns the public half of the key pair.
func (id *Identity) PublicKey() *ecdsa.PublicKey {
	return &id.privateKey.PublicKey
}

// PublicKeyHex returns the compressed public key, hex encoded. This is the
// identifier peers see.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(crypto.CompressPubkey(&id.privateKey.PublicKey))
}

// Address returns the Ethereum-style address derived from the public key.
func (id *Identity) Address() common.Address {
	return crypto.PubkeyToAddress(id.privateKey.PublicKey)
}

// Equal reports whether both identities hold the same public key.
func (id *Identity) Equal(other *Identity) bool {
	if id == nil || other == nil {
		return id == other
	}
	return id.privateKey.PublicKey.Equal(&other.privateKey.PublicKey)
}

// String returns the public identifier. The private key is never printed.
func (id *Identity) String() string {
	return id.PublicKeyHex()
}
