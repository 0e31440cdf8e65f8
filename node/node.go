// Package node is a reference implementation of the node contract. It keeps
// its schema state in SQLite, stores blobs on disk with optional mirrors,
// and serves a small HTTP API on loopback.
//
// The peer-to-peer settings of the configuration (QUIC port, mDNS, direct
// and relay addresses, relay mode) belong to the networking layer, which
// this node does not implement; they are reported at startup only.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/node-launcher/config"
	"github.com/ruteri/node-launcher/httpserver"
	"github.com/ruteri/node-launcher/interfaces"
	"github.com/ruteri/node-launcher/keypair"
	"github.com/ruteri/node-launcher/manifest"
	"github.com/ruteri/node-launcher/metrics"
	"github.com/ruteri/node-launcher/storage"
	"golang.org/x/sync/errgroup"
)

// DefaultListenHost keeps the API reachable from the host application only.
const DefaultListenHost = "127.0.0.1"

var ErrUnsupportedDatabase = errors.New("unsupported database url")

// Options configures nodes created by a Starter.
type Options struct {
	Log     *slog.Logger
	Metrics *metrics.Metrics

	// Gatherer backs the metrics server started when metrics_addr is set.
	Gatherer prometheus.Gatherer

	ListenHost    string
	EnablePprof   bool
	DrainDuration time.Duration
	MaxBlobSize   int64
}

// Starter starts reference nodes.
type Starter struct {
	opts Options
}

func NewStarter(opts Options) *Starter {
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	if opts.ListenHost == "" {
		opts.ListenHost = DefaultListenHost
	}
	return &Starter{opts: opts}
}

// Node is a running reference node.
type Node struct {
	cfg      config.Configuration
	identity *keypair.Identity
	log      *slog.Logger
	metrics  *metrics.Metrics

	store      *Store
	blobs      interfaces.StorageBackend
	httpSrv    *httpserver.Server
	metricsSrv *metrics.MetricsServer
	group      *errgroup.Group

	exit     chan struct{}
	exitOnce sync.Once

	shutdownOnce sync.Once
	shutdownErr  error
}

var _ interfaces.NodeStarter = (*Starter)(nil)
var _ interfaces.Node = (*Node)(nil)

// Start opens the database, binds the API listener and starts serving.
// Nothing is left running when it returns an error.
func (s *Starter) Start(ctx context.Context, identity *keypair.Identity, cfg config.Configuration) (interfaces.Node, error) {
	log := s.opts.Log.With("node", identity.PublicKeyHex())

	dbPath, ok := cfg.SQLitePath()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabase, config.RedactURL(cfg.DatabaseURL))
	}
	store, err := OpenStore(dbPath, cfg.DatabaseMaxConnections)
	if err != nil {
		return nil, err
	}
	if err := store.BindIdentity(ctx, identity.PublicKeyHex()); err != nil {
		store.Close()
		return nil, err
	}

	blobs, err := s.blobBackend(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	handler := httpserver.NewHandler(identity, store, blobs, s.opts.Metrics, s.opts.MaxBlobSize, log)
	httpSrv := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               net.JoinHostPort(s.opts.ListenHost, strconv.Itoa(int(cfg.HTTPPort))),
		EnablePprof:              s.opts.EnablePprof,
		Log:                      log,
		DrainDuration:            s.opts.DrainDuration,
		GracefulShutdownDuration: 5 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             60 * time.Second,
	}, handler)
	if err := httpSrv.Listen(); err != nil {
		store.Close()
		return nil, err
	}

	n := &Node{
		cfg:      cfg,
		identity: identity,
		log:      log,
		metrics:  s.opts.Metrics,
		store:    store,
		blobs:    blobs,
		httpSrv:  httpSrv,
		group:    &errgroup.Group{},
		exit:     make(chan struct{}),
	}
	if cfg.MetricsAddr != "" && s.opts.Gatherer != nil {
		n.metricsSrv = metrics.NewServer(cfg.MetricsAddr, s.opts.Gatherer)
	}

	n.serve()

	log.Info("Node started",
		slog.String("httpAddress", httpSrv.Addr().String()),
		slog.String("blobs", blobs.LocationURI()),
		slog.Int("quicPort", int(cfg.QUICPort)),
		slog.Bool("mdns", cfg.MDNS),
		slog.Bool("relayMode", cfg.RelayMode),
		slog.Any("directNodeAddresses", cfg.DirectNodeAddresses),
		slog.Any("relayAddresses", cfg.RelayAddresses))
	return n, nil
}

func (s *Starter) blobBackend(cfg config.Configuration) (interfaces.StorageBackend, error) {
	local, err := storage.NewFileBackend(cfg.BlobsBasePath, s.opts.Log)
	if err != nil {
		return nil, err
	}
	if len(cfg.BlobMirrors) == 0 {
		return local, nil
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(cfg.BlobMirrors))
	for _, uri := range cfg.BlobMirrors {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}
	return storage.NewStorageBackendFactory(s.opts.Log).CreateMultiBackend(local, locations)
}

// serve runs the servers; any of them failing asks the node to exit.
func (n *Node) serve() {
	n.group.Go(func() error {
		err := n.httpSrv.Serve()
		if err != nil {
			n.log.Error("HTTP server failed", "err", err)
			n.RequestExit()
		}
		return err
	})

	if n.metricsSrv != nil {
		n.group.Go(func() error {
			n.log.Info("Starting metrics server", "metricsAddress", n.cfg.MetricsAddr)
			err := n.metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				n.log.Error("Metrics server failed", "err", err)
				n.RequestExit()
				return err
			}
			return nil
		})
	}
}

// Migrate records the lock file schemas accepted by allow_schema_ids.
func (n *Node) Migrate(ctx context.Context, lockFile *manifest.LockFile) (bool, error) {
	result, err := n.store.Migrate(ctx, lockFile, n.cfg.AllowSchemaIDs)
	if err != nil {
		n.metrics.IncrementMigration("failed")
		return false, err
	}

	if result.Changed() {
		n.metrics.IncrementMigration("applied")
		n.log.Info("Schema migration applied",
			slog.Any("added", result.Added),
			slog.Any("updated", result.Updated),
			slog.Any("removed", result.Removed))
	} else {
		n.metrics.IncrementMigration("unchanged")
	}

	n.updateSchemasActive(ctx)
	return result.Changed(), nil
}

func (n *Node) updateSchemasActive(ctx context.Context) {
	ids, err := n.store.SchemaIDs(ctx)
	if err != nil {
		n.log.Debug("Failed to count active schemas", "err", err)
		return
	}
	n.metrics.SetSchemasActive(len(ids))
}

func (n *Node) OnExit() <-chan struct{} {
	return n.exit
}

// RequestExit asks the owner of the node to shut it down.
func (n *Node) RequestExit() {
	n.exitOnce.Do(func() {
		close(n.exit)
	})
}

// HTTPAddr is the address the API is bound to.
func (n *Node) HTTPAddr() net.Addr {
	return n.httpSrv.Addr()
}

// Blobs returns the node's blob storage.
func (n *Node) Blobs() interfaces.StorageBackend {
	return n.blobs
}

// Shutdown stops the servers and closes the database. Later calls return
// the result of the first.
func (n *Node) Shutdown(ctx context.Context) error {
	n.shutdownOnce.Do(func() {
		var errs []error
		if err := n.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
		if n.metricsSrv != nil {
			if err := n.metricsSrv.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server: %w", err))
			}
		}
		if err := n.group.Wait(); err != nil {
			errs = append(errs, err)
		}
		if err := n.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
		n.shutdownErr = errors.Join(errs...)
	})
	return n.shutdownErr
}
