package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/node-launcher/interfaces"
)

// DefaultIPFSRoot is the MFS directory blobs are mirrored into.
const DefaultIPFSRoot = "/node-launcher/blobs"

// IPFSBackend mirrors blobs into the mutable file system of an IPFS node,
// one file per content ID, so they can be looked up without a CID index.
type IPFSBackend struct {
	shell       *shell.Shell
	apiAddr     string
	root        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend connects to the IPFS API at host:port.
func NewIPFSBackend(host, port, root string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	if host == "" {
		return nil, fmt.Errorf("missing IPFS host")
	}
	if root == "" {
		root = DefaultIPFSRoot
	}
	apiAddr := fmt.Sprintf("%s:%s", host, port)

	sh := shell.NewShell(apiAddr)
	sh.SetTimeout(timeout)

	return &IPFSBackend{
		shell:       sh,
		apiAddr:     apiAddr,
		root:        path.Clean("/" + root),
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s?timeout=%s", apiAddr, root, timeout),
	}, nil
}

// Fetch reads a mirrored blob.
func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	start := time.Now()
	filePath := b.getFilePath(id)

	reader, err := b.shell.FilesRead(ctx, filePath)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") || strings.Contains(err.Error(), "not exist") {
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to fetch data from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("path", filePath),
		slog.String("content_id", id.Short()),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store writes the blob into MFS and returns its content ID.
func (b *IPFSBackend) Store(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)
	filePath := b.getFilePath(id)

	err := b.shell.FilesWrite(ctx, filePath, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true),
	)
	if err != nil {
		return id, fmt.Errorf("failed to add data to IPFS: %w", err)
	}

	b.log.Debug("Stored content in IPFS",
		slog.String("path", filePath),
		slog.String("contentID", id.String()))

	return id, nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return "ipfs-" + b.apiAddr
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) getFilePath(id interfaces.ContentID) string {
	return path.Join(b.root, id.String())
}
