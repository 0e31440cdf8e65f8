package interfaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ContentID is a 32-byte SHA-256 hash uniquely identifying a blob.
type ContentID [32]byte

func NewContentIDFromHex(source string) (ContentID, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return ContentID{}, errors.New("invalid content ID length: hex string must be 64 characters")
	}

	idBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var id ContentID
	copy(id[:], idBytes)
	return id, nil
}

// ComputeID calculates the content ID of data.
func ComputeID(data []byte) ContentID {
	return ContentID(sha256.Sum256(data))
}

// String returns hex representation.
func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 bytes in hex, for logging.
func (id ContentID) Short() string {
	return hex.EncodeToString(id[:8])
}

// StorageBackendLocation is a parsed blob mirror URI.
type StorageBackendLocation struct {
	Raw    string
	Scheme string
	Host   string
	Path   string
	Query  url.Values
	User   *url.Userinfo
}

// NewStorageBackendLocation parses and validates a location URI.
// URIs follow [scheme]://[auth@]host[:port][/path][?params].
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "file", "s3", "ipfs":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		User:   parsed.User,
	}, nil
}

// String returns the original URI string with any password masked.
func (loc StorageBackendLocation) String() string {
	if _, hasPassword := loc.User.Password(); !hasPassword {
		return loc.Raw
	}
	u, err := url.Parse(loc.Raw)
	if err != nil {
		return loc.Scheme + "://<redacted>"
	}
	return u.Redacted()
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend provides content-addressed blob storage.
type StorageBackend interface {
	// Fetch retrieves data by content ID.
	Fetch(ctx context.Context, id ContentID) ([]byte, error)

	// Store saves data and returns its content ID.
	Store(ctx context.Context, data []byte) (ContentID, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports file://, s3://, ipfs://
	StorageBackendFor(location StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(primary StorageBackend, locations []StorageBackendLocation) (StorageBackend, error)
}
