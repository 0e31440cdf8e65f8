package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"
)

type HTTPServerConfig struct {
	ListenAddr  string
	EnablePprof bool
	Log         *slog.Logger

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv      *http.Server
	listener net.Listener
	handler  *Handler
}

func New(cfg *HTTPServerConfig, handler *Handler) *Server {
	srv := &Server{
		cfg:     cfg,
		log:     cfg.Log,
		handler: handler,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)

	mux.With(srv.httpLogger).Get("/api/node", srv.handler.HandleNodeInfo)
	mux.With(srv.httpLogger).Post("/api/blobs", srv.handler.HandleStoreBlob)
	mux.With(srv.httpLogger).Get("/api/blobs/{id}", srv.handler.HandleFetchBlob)

	// Health and diagnostic endpoints
	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !srv.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !srv.isReady.Swap(false) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already draining"}`))
		return
	}

	srv.log.Info("Server marked as not ready")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"draining"}`))
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if srv.isReady.Swap(true) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already ready"}`))
		return
	}

	srv.log.Info("Server marked as ready")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// Handler returns the router, for tests.
func (srv *Server) Handler() http.Handler {
	return srv.srv.Handler
}

// Listen binds the listen address, so a port conflict surfaces before
// serving starts.
func (srv *Server) Listen() error {
	ln, err := net.Listen("tcp", srv.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.cfg.ListenAddr, err)
	}
	srv.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (srv *Server) Addr() net.Addr {
	if srv.listener == nil {
		return nil
	}
	return srv.listener.Addr()
}

// Serve blocks until the server is shut down. It returns nil after a
// graceful shutdown.
func (srv *Server) Serve() error {
	if srv.listener == nil {
		if err := srv.Listen(); err != nil {
			return err
		}
	}

	srv.log.Info("Starting HTTP server", "listenAddress", srv.listener.Addr().String())
	if err := srv.srv.Serve(srv.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown marks the server as not ready, waits the drain duration, then
// stops accepting requests.
func (srv *Server) Shutdown(ctx context.Context) error {
	srv.isReady.Store(false)
	if srv.cfg.DrainDuration > 0 {
		select {
		case <-time.After(srv.cfg.DrainDuration):
		case <-ctx.Done():
		}
	}

	if srv.cfg.GracefulShutdownDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, srv.cfg.GracefulShutdownDuration)
		defer cancel()
	}

	err := srv.srv.Shutdown(ctx)
	if srv.listener != nil {
		// no-op when Serve already closed it
		srv.listener.Close()
	}
	if err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
		return err
	}
	srv.log.Info("HTTP server gracefully stopped")
	return nil
}
