package datadir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// BlobsDir is the subdirectory the node stores and serves blobs from.
	BlobsDir = "blobs"

	// DefaultAppID names the production data directory.
	DefaultAppID = "node-launcher"

	tempDirPattern = "node-launcher-*"
)

// ErrUnresolvable is returned when the platform cannot supply a data directory.
var ErrUnresolvable = errors.New("unable to resolve application data directory")

// Options selects how the data directory is resolved.
type Options struct {
	// Dev selects an ephemeral temporary directory.
	Dev bool

	// AppID is appended to the platform data directory in production mode.
	AppID string

	// Root, when set, is used as-is instead of the platform directory.
	// Ignored in dev mode.
	Root string

	// platformDir is swapped out in tests.
	platformDir func() (string, error)
}

// DataDir is an owned handle on the resolved data directory.
type DataDir struct {
	path      string
	ephemeral bool

	closeOnce sync.Once
	closeErr  error
}

// Resolve determines the data directory root and makes sure the blob
// subdirectory exists beneath it.
func Resolve(opts Options) (*DataDir, error) {
	dir, err := resolveRoot(opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir.BlobsPath(), 0755); err != nil {
		dir.Close()
		return nil, fmt.Errorf("failed to create blobs directory %s: %w", dir.BlobsPath(), err)
	}

	return dir, nil
}

func resolveRoot(opts Options) (*DataDir, error) {
	if opts.Dev {
		path, err := os.MkdirTemp("", tempDirPattern)
		if err != nil {
			return nil, fmt.Errorf("failed to create temporary data directory: %w", err)
		}
		return &DataDir{path: path, ephemeral: true}, nil
	}

	if opts.Root != "" {
		path, err := filepath.Abs(opts.Root)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnresolvable, err)
		}
		return &DataDir{path: path}, nil
	}

	appID := opts.AppID
	if appID == "" {
		appID = DefaultAppID
	}

	platformDir := opts.platformDir
	if platformDir == nil {
		platformDir = PlatformDataDir
	}

	base, err := platformDir()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	if !filepath.IsAbs(base) {
		return nil, fmt.Errorf("%w: platform data directory %q is not absolute", ErrUnresolvable, base)
	}

	return &DataDir{path: filepath.Join(base, appID)}, nil
}

// PlatformDataDir returns the per-user data directory of the host platform.
func PlatformDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		dir := os.Getenv("APPDATA")
		if dir == "" {
			return "", errors.New("%APPDATA% is not defined")
		}
		return dir, nil
	case "darwin", "ios":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); filepath.IsAbs(dir) {
			return dir, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}

// Path returns the absolute data directory root.
func (d *DataDir) Path() string {
	return d.path
}

// BlobsPath returns the blob storage subdirectory.
func (d *DataDir) BlobsPath() string {
	return filepath.Join(d.path, BlobsDir)
}

// Join returns a path beneath the data directory root.
func (d *DataDir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}

// Ephemeral reports whether the directory is removed on Close.
func (d *DataDir) Ephemeral() bool {
	return d.ephemeral
}

// Close removes an ephemeral directory. It is a no-op for persistent
// directories and safe to call more than once.
func (d *DataDir) Close() error {
	d.closeOnce.Do(func() {
		if d.ephemeral {
			d.closeErr = os.RemoveAll(d.path)
		}
	})
	return d.closeErr
}
