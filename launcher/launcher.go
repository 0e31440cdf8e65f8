// Package launcher is the composition root: it resolves the data directory,
// identity, configuration and manifest in order, then hands them to the
// startup coordinator and keeps the result for the host.
package launcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/node-launcher/common"
	"github.com/ruteri/node-launcher/config"
	"github.com/ruteri/node-launcher/datadir"
	"github.com/ruteri/node-launcher/interfaces"
	"github.com/ruteri/node-launcher/keypair"
	"github.com/ruteri/node-launcher/manifest"
	"github.com/ruteri/node-launcher/metrics"
	"github.com/ruteri/node-launcher/node"
	"github.com/ruteri/node-launcher/startup"
)

// DefaultResourceDir holds the bundled config.toml and schemas/schema.lock.
const DefaultResourceDir = "resources"

// Options configures Launch.
type Options struct {
	DataDir     datadir.Options
	ResourceDir string

	// LookupEnv reads configuration overrides; nil uses the process environment.
	LookupEnv config.LookupFunc

	// KeyStore persists a newly generated identity; nil uses keypair.DefaultStore.
	KeyStore keypair.SecureFileStore

	// Starter starts the node; nil uses the reference node.
	Starter interfaces.NodeStarter

	Startup startup.Config

	// NodeLogging is the base for the node logger. The node's log_level
	// setting decides its level and whether it logs at all.
	NodeLogging common.LoggingOpts

	EnablePprof bool
	Log         *slog.Logger

	// Registry collects metrics; nil creates a fresh one.
	Registry *prometheus.Registry
}

// State is the read-only view of a launched node shared with the host.
type State struct {
	httpPort  uint16
	publicKey string
	dataDir   string
}

func (s State) HTTPPort() uint16 {
	return s.httpPort
}

func (s State) PublicKey() string {
	return s.publicKey
}

func (s State) DataDir() string {
	return s.dataDir
}

// App is a launched node together with the resources that back it.
type App struct {
	dataDir  *datadir.DataDir
	identity *keypair.Identity
	config   *config.Result
	lockFile *manifest.LockFile
	handle   *startup.ReadyHandle
	state    State
	log      *slog.Logger
}

// Launch runs every startup step and returns once the node is ready. On
// failure everything acquired so far, including a dev data directory, is
// released and the error is a *StepError.
func Launch(ctx context.Context, opts Options) (app *App, err error) {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	resourceDir := opts.ResourceDir
	if resourceDir == "" {
		resourceDir = DefaultResourceDir
	}
	keyStore := opts.KeyStore
	if keyStore == nil {
		keyStore = keypair.DefaultStore()
	}
	registry := opts.Registry
	if registry == nil {
		registry = metrics.NewRegistry()
	}

	dir, err := datadir.Resolve(opts.DataDir)
	if err != nil {
		return nil, &StepError{Step: StepDataDir, Path: opts.DataDir.Root, Err: err}
	}
	defer func() {
		if err != nil {
			if closeErr := dir.Close(); closeErr != nil {
				log.Error("Failed to remove data directory", "path", dir.Path(), "err", closeErr)
			}
		}
	}()
	log.Info("Data directory resolved", slog.String("path", dir.Path()), slog.Bool("ephemeral", dir.Ephemeral()))

	identity, created, err := keypair.GenerateOrLoad(dir.Path(), keyStore)
	if err != nil {
		return nil, &StepError{Step: StepIdentity, Path: keypair.Path(dir.Path()), Err: err}
	}
	log.Info("Node identity ready", slog.String("publicKey", identity.PublicKeyHex()), slog.Bool("created", created))

	bundled := filepath.Join(resourceDir, config.FileName)
	resolved, err := config.Resolve(dir.Path(), bundled, opts.LookupEnv)
	if err != nil {
		return nil, &StepError{Step: StepConfig, Path: config.Path(dir.Path()), Err: err}
	}
	if resolved.Provisioned {
		log.Info("Default configuration copied", slog.String("from", bundled), slog.String("to", resolved.Path))
	}
	if len(resolved.Undecoded) > 0 {
		log.Warn("Ignoring unknown configuration keys", slog.Any("keys", resolved.Undecoded))
	}

	lockFile, err := manifest.Load(resourceDir)
	if err != nil {
		return nil, &StepError{Step: StepManifest, Path: manifest.Path(resourceDir), Err: err}
	}
	log.Info("Schema lock file loaded", slog.Int("schemas", lockFile.Len()), slog.String("digest", lockFile.Digest()))

	m := metrics.New(metricsNamespace, registry)
	starter := opts.Starter
	if starter == nil {
		starter = node.NewStarter(node.Options{
			Log:         nodeLogger(opts.NodeLogging, resolved.Config.LogLevel),
			Metrics:     m,
			Gatherer:    registry,
			EnablePprof: opts.EnablePprof,
		})
	}

	startupCfg := opts.Startup
	startupCfg.Log = log
	startupCfg.Metrics = m
	coordinator := startup.NewCoordinator(starter, startupCfg)

	handle, err := coordinator.Bootstrap(ctx, identity, resolved.Config.Clone(), lockFile)
	if err != nil {
		return nil, &StepError{Step: StepStartup, Path: dir.Path(), Err: err}
	}

	return &App{
		dataDir:  dir,
		identity: identity,
		config:   resolved,
		lockFile: lockFile,
		handle:   handle,
		state: State{
			httpPort:  handle.HTTPPort(),
			publicKey: identity.PublicKeyHex(),
			dataDir:   dir.Path(),
		},
		log: log,
	}, nil
}

const metricsNamespace = "node_launcher"

func nodeLogger(base common.LoggingOpts, level string) *slog.Logger {
	opts := base
	lvl, enabled := common.LevelFromEnv(level)
	opts.Level = &lvl
	opts.Disabled = !enabled
	if opts.Service != "" {
		opts.Service += "-node"
	}
	return common.SetupLogger(&opts)
}

// HTTPPort is the port of the node API.
func (a *App) HTTPPort() uint16 {
	return a.state.httpPort
}

// State returns the read-only view shared with the host.
func (a *App) State() State {
	return a.state
}

// Config returns a copy of the resolved configuration.
func (a *App) Config() config.Configuration {
	return a.config.Config.Clone()
}

// Identity returns the node identity.
func (a *App) Identity() *keypair.Identity {
	return a.identity
}

// Handle returns the startup handle tracking the node.
func (a *App) Handle() *startup.ReadyHandle {
	return a.handle
}

// Done is closed once the node has shut down.
func (a *App) Done() <-chan struct{} {
	return a.handle.Done()
}

// Close stops the node if it is still running and releases the data
// directory. Dev data directories are removed, but only once the node has
// shut down: after a stop timeout the directory is kept and Close may be
// called again.
func (a *App) Close(ctx context.Context) error {
	stopErr := a.handle.Stop(ctx)
	if errors.Is(stopErr, startup.ErrShutdownTimeout) {
		a.log.Error("Node did not stop in time, keeping data directory", "path", a.dataDir.Path(), "err", stopErr)
		return stopErr
	}
	if stopErr != nil {
		a.log.Error("Node did not stop cleanly", "err", stopErr)
	}
	return errors.Join(stopErr, a.dataDir.Close())
}
