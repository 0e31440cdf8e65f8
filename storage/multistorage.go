package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/node-launcher/interfaces"
)

// MultiStorageBackend combines a primary backend with mirrors. Writes must
// succeed on the primary and are copied to every available mirror; reads
// fall back through the backends in order.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a multi-storage backend. The first backend
// is the primary.
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch returns the blob from the first backend that has it.
func (m *MultiStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("content_id", id.Short()))
			continue
		}

		data, err := backend.Fetch(ctx, id)
		if err == nil {
			m.log.Debug("Fetched content",
				slog.String("backend_name", backend.Name()),
				slog.String("content_id", id.Short()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrContentNotFound) {
			notFound++
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("content_id", id.Short()),
			"err", err)
	}

	if len(errs) == 0 {
		if notFound == 0 {
			return nil, interfaces.ErrBackendUnavailable
		}
		return nil, interfaces.ErrContentNotFound
	}
	return nil, fmt.Errorf("all backends failed to fetch %s: %w", id.Short(), errors.Join(errs...))
}

// Store saves data to the primary backend, then to every available mirror.
// Mirror failures are logged, not returned.
func (m *MultiStorageBackend) Store(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	if len(m.backends) == 0 {
		return interfaces.ContentID{}, interfaces.ErrBackendUnavailable
	}

	primary := m.backends[0]
	id, err := primary.Store(ctx, data)
	if err != nil {
		return id, fmt.Errorf("%s: %w", primary.Name(), err)
	}

	for _, mirror := range m.backends[1:] {
		if !mirror.Available(ctx) {
			m.log.Debug("Mirror unavailable", slog.String("backend_name", mirror.Name()))
			continue
		}

		mirrorID, err := mirror.Store(ctx, data)
		if err != nil {
			m.log.Warn("Failed to mirror blob",
				slog.String("backend_name", mirror.Name()),
				slog.String("content_id", id.Short()),
				"err", err)
			continue
		}
		if mirrorID != id {
			m.log.Warn("Inconsistent hashes from backends",
				slog.String("backend_name", mirror.Name()),
				slog.String("expected_id", id.String()),
				slog.String("actual_id", mirrorID.String()))
		}
	}

	return id, nil
}

// Available checks if any backend is available.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend.
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI lists the location of every backend.
func (m *MultiStorageBackend) LocationURI() string {
	locations := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
