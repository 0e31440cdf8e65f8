package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/node-launcher/interfaces"
)

// FileBackend stores blobs on the local file system, one file per blob,
// sharded by the first byte of the content ID.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a file storage backend rooted at baseDir,
// creating the directory if needed.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: "file://" + filepath.ToSlash(baseDir),
	}, nil
}

// Fetch reads a blob. Returns ErrContentNotFound if the file doesn't exist.
func (b *FileBackend) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	filePath := b.getFilePath(id)

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if interfaces.ComputeID(data) != id {
		b.log.Warn("Blob content does not match its id", slog.String("path", filePath))
		return nil, fmt.Errorf("corrupted blob %s", id.Short())
	}

	b.log.Debug("Fetched content from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Store writes a blob through a temporary file and rename, so readers never
// see a partial blob. Storing existing content is a no-op.
func (b *FileBackend) Store(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)
	filePath := b.getFilePath(id)

	if _, err := os.Stat(filePath); err == nil {
		return id, nil
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return id, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".blob-*")
	if err != nil {
		return id, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return id, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return id, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return id, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return id, fmt.Errorf("failed to move blob into place: %w", err)
	}

	b.log.Debug("Stored content in file",
		slog.String("path", filePath),
		slog.String("contentID", id.String()))

	return id, nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	info, err := os.Stat(b.baseDir)
	if err != nil || !info.IsDir() {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) getFilePath(id interfaces.ContentID) string {
	idStr := id.String()
	return filepath.Join(b.baseDir, idStr[:2], idStr)
}
