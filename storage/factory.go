package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruteri/node-launcher/interfaces"
)

// StorageBackendFactory creates blob backends from location URIs.
type StorageBackendFactory struct {
	log *slog.Logger
}

func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{log: logger}
}

// StorageBackendFor creates a storage backend from a location URI.
//
// Supported schemes:
//   - file:///absolute/path
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=..&endpoint=..&path_style=true
//   - ipfs://host:port/mfs/root?timeout=30s
func (sf *StorageBackendFactory) StorageBackendFor(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	switch location.Scheme {
	case "ipfs":
		return sf.createIPFSBackend(location)
	case "s3":
		return sf.createS3Backend(location)
	case "file":
		return sf.createFileBackend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %s", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// CreateMultiBackend puts primary in front of the mirrors created from
// locations. A mirror that cannot be created fails the whole call.
func (sf *StorageBackendFactory) CreateMultiBackend(primary interfaces.StorageBackend, locations []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locations)+1)
	backends = append(backends, primary)

	for _, location := range locations {
		backend, err := sf.StorageBackendFor(location)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob mirror %s: %w", location, err)
		}
		sf.log.Info("Blob mirror configured", slog.String("backend", backend.Name()))
		backends = append(backends, backend)
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

func (sf *StorageBackendFactory) createIPFSBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	host, port, found := strings.Cut(location.Host, ":")
	if !found || port == "" {
		port = "5001"
	}

	timeout := 30 * time.Second
	if raw := location.GetParam("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = parsed
	}

	root := location.Path
	if root == "" || root == "/" {
		root = DefaultIPFSRoot
	}

	return NewIPFSBackend(host, port, root, timeout, sf.log)
}

func (sf *StorageBackendFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	opts := S3Options{
		Bucket:    location.Host,
		Prefix:    strings.TrimPrefix(location.Path, "/"),
		Region:    location.GetParam("region"),
		Endpoint:  location.GetParam("endpoint"),
		PathStyle: location.GetParamBool("path_style"),
	}
	if location.User != nil {
		opts.AccessKey = location.User.Username()
		opts.SecretKey, _ = location.User.Password()
	}

	return NewS3Backend(opts, sf.log)
}

func (sf *StorageBackendFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, location)
	}

	return NewFileBackend(filepath.FromSlash(path), sf.log)
}
