package interfaces

import (
	"context"

	"github.com/ruteri/node-launcher/config"
	"github.com/ruteri/node-launcher/keypair"
	"github.com/ruteri/node-launcher/manifest"
)

// Node is a started background node.
type Node interface {
	// Migrate brings the persisted schema state in line with the lock file.
	// It reports whether anything had to change.
	Migrate(ctx context.Context, lockFile *manifest.LockFile) (bool, error)

	// OnExit is closed when the node asks to be shut down.
	OnExit() <-chan struct{}

	// Shutdown stops the node and releases its resources.
	Shutdown(ctx context.Context) error
}

// NodeStarter starts nodes.
type NodeStarter interface {
	Start(ctx context.Context, identity *keypair.Identity, cfg config.Configuration) (Node, error)
}

// NodeStarterFunc adapts a function to NodeStarter.
type NodeStarterFunc func(ctx context.Context, identity *keypair.Identity, cfg config.Configuration) (Node, error)

func (f NodeStarterFunc) Start(ctx context.Context, identity *keypair.Identity, cfg config.Configuration) (Node, error) {
	return f(ctx, identity, cfg)
}
