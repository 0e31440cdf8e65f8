// Package startup launches the node in the background and blocks the caller
// until the node reports that it is ready.
//
// Initialization runs in a single goroutine which starts the node, applies
// the schema migration and, when a migration was applied, waits a grace
// period before signalling readiness. The signal travels over a channel of
// capacity one and is sent at most once: nil for ready, an error otherwise.
// The caller's wait is bounded by a timeout and its context. Once ready the
// goroutine stays with the node and shuts it down when the node asks to exit
// or the handle is stopped.
package startup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/node-launcher/config"
	"github.com/ruteri/node-launcher/interfaces"
	"github.com/ruteri/node-launcher/keypair"
	"github.com/ruteri/node-launcher/manifest"
	"github.com/ruteri/node-launcher/metrics"
	"go.uber.org/atomic"
)

const (
	DefaultGracePeriod     = time.Second
	DefaultReadyTimeout    = 2 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second
)

// Config tunes a Coordinator. Zero durations take the defaults.
type Config struct {
	GracePeriod     time.Duration
	ReadyTimeout    time.Duration
	ShutdownTimeout time.Duration

	// OnTransition is called from the initialization goroutine after every
	// state change.
	OnTransition func(Transition)

	Log     *slog.Logger
	Metrics *metrics.Metrics
}

// Coordinator bootstraps one node.
type Coordinator struct {
	starter interfaces.NodeStarter
	cfg     Config
	log     *slog.Logger
	started atomic.Bool
}

func NewCoordinator(starter interfaces.NodeStarter, cfg Config) *Coordinator {
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Coordinator{
		starter: starter,
		cfg:     cfg,
		log:     log,
	}
}

// Bootstrap starts the node and waits until it is ready, failed, the ready
// timeout expired or ctx was cancelled. Cancelling ctx after Bootstrap
// returned shuts the node down. It may be called once per Coordinator.
func (c *Coordinator) Bootstrap(ctx context.Context, identity *keypair.Identity, cfg config.Configuration, lockFile *manifest.LockFile) (*ReadyHandle, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	h := &ReadyHandle{
		cfg:    cfg.Clone(),
		states: stateLog{hook: c.cfg.OnTransition},
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancelRun,
	}
	ready := make(chan error, 1)

	go c.run(runCtx, h, ready, identity, h.cfg.Clone(), lockFile)

	start := time.Now()
	waitCtx, cancelWait := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancelWait()

	select {
	case <-waitCtx.Done():
		cancelRun()
		if ctx.Err() != nil {
			c.cfg.Metrics.ObserveReadyWait("cancelled", time.Since(start))
			return nil, fmt.Errorf("waiting for node: %w", ctx.Err())
		}
		c.cfg.Metrics.ObserveReadyWait("timeout", time.Since(start))
		c.log.Error("Node did not become ready in time", slog.Duration("timeout", c.cfg.ReadyTimeout))
		return nil, ErrReadyTimeout
	case err, ok := <-ready:
		if !ok {
			cancelRun()
			c.cfg.Metrics.ObserveReadyWait("dropped", time.Since(start))
			return nil, ErrProducerDropped
		}
		if err != nil {
			cancelRun()
			c.cfg.Metrics.ObserveReadyWait("failed", time.Since(start))
			return nil, err
		}
	}

	c.cfg.Metrics.ObserveReadyWait("ready", time.Since(start))
	c.log.Info("Node ready",
		slog.Duration("wait", time.Since(start)),
		slog.Bool("migrated", h.Migrated()),
		slog.Int("httpPort", int(h.HTTPPort())))
	return h, nil
}

func (c *Coordinator) run(ctx context.Context, h *ReadyHandle, ready chan<- error, identity *keypair.Identity, cfg config.Configuration, lockFile *manifest.LockFile) {
	defer close(h.done)
	defer close(ready)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Node initialization panicked", "panic", r)
			if h.node != nil {
				h.shutdownErr = c.shutdown(ctx, h.node)
			}
			h.states.set(Failed)
		}
	}()

	h.states.set(Initializing)

	node, err := c.starter.Start(ctx, identity, cfg)
	if err != nil {
		c.fail(h, ready, nil, &StartupError{Step: StepStart, Err: err})
		return
	}
	h.node = node

	if ctx.Err() != nil {
		c.fail(h, ready, node, &StartupError{Step: StepStart, Err: ctx.Err()})
		return
	}

	migrated, err := node.Migrate(ctx, lockFile)
	if err != nil {
		c.fail(h, ready, node, &StartupError{Step: StepMigrate, Err: err})
		return
	}
	h.migrated.Store(migrated)

	if migrated {
		h.states.set(MigrationPending)
		c.log.Info("Schema migration applied, waiting before signalling readiness", slog.Duration("grace", c.cfg.GracePeriod))

		timer := time.NewTimer(c.cfg.GracePeriod)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.fail(h, ready, node, &StartupError{Step: StepMigrate, Err: ctx.Err()})
			return
		case <-timer.C:
		}
	}

	h.states.set(Ready)
	h.states.set(Serving)
	ready <- nil

	select {
	case <-node.OnExit():
		c.log.Info("Node requested exit")
	case <-h.stop:
		c.log.Info("Node stop requested")
	case <-ctx.Done():
		c.log.Info("Node context cancelled")
	}

	h.states.set(ExitRequested)
	h.shutdownErr = c.shutdown(ctx, node)
	h.states.set(ShutDown)
}

// fail shuts a started node down before reporting err, so the caller never
// proceeds while the node still holds its resources.
func (c *Coordinator) fail(h *ReadyHandle, ready chan<- error, node interfaces.Node, err error) {
	c.log.Error("Node initialization failed", "err", err)
	if node != nil {
		h.shutdownErr = c.shutdown(context.Background(), node)
	}
	h.states.set(Failed)
	ready <- err
}

func (c *Coordinator) shutdown(ctx context.Context, node interfaces.Node) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ShutdownTimeout)
	defer cancel()

	if err := node.Shutdown(ctx); err != nil {
		c.log.Error("Node shutdown failed", "err", err)
		return err
	}
	c.log.Info("Node shut down")
	return nil
}

// ReadyHandle is returned once the node is ready and tracks it until it
// shuts down.
type ReadyHandle struct {
	cfg      config.Configuration
	node     interfaces.Node
	states   stateLog
	migrated atomic.Bool

	stop     chan struct{}
	stopOnce atomic.Bool
	done     chan struct{}
	cancel   context.CancelFunc

	shutdownErr error
}

// HTTPPort is the port the node API listens on.
func (h *ReadyHandle) HTTPPort() uint16 {
	return h.cfg.HTTPPort
}

// Config returns a copy of the configuration the node was started with.
func (h *ReadyHandle) Config() config.Configuration {
	return h.cfg.Clone()
}

// Node returns the running node.
func (h *ReadyHandle) Node() interfaces.Node {
	return h.node
}

// Migrated reports whether startup applied a schema migration.
func (h *ReadyHandle) Migrated() bool {
	return h.migrated.Load()
}

// State returns the current lifecycle state.
func (h *ReadyHandle) State() State {
	return h.states.state()
}

// Transitions returns the transitions recorded so far.
func (h *ReadyHandle) Transitions() []Transition {
	return h.states.snapshot()
}

// Done is closed once the node has shut down.
func (h *ReadyHandle) Done() <-chan struct{} {
	return h.done
}

// Stop asks the node to shut down and waits for it, bounded by ctx.
func (h *ReadyHandle) Stop(ctx context.Context) error {
	if h.stopOnce.CompareAndSwap(false, true) {
		close(h.stop)
	}

	select {
	case <-h.done:
		h.cancel()
		return h.shutdownErr
	case <-ctx.Done():
		return errors.Join(ErrShutdownTimeout, ctx.Err())
	}
}

// Wait blocks until the node has shut down on its own and returns the
// shutdown error.
func (h *ReadyHandle) Wait() error {
	<-h.done
	h.cancel()
	return h.shutdownErr
}
