package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/node-launcher/interfaces"
	"github.com/ruteri/node-launcher/keypair"
	"github.com/ruteri/node-launcher/metrics"
)

// DefaultMaxBlobSize is the largest blob accepted by default (16MB).
const DefaultMaxBlobSize = 16 << 20

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// SchemaSource reports the schemas the node currently serves.
type SchemaSource interface {
	SchemaIDs(ctx context.Context) ([]string, error)
	LockDigest(ctx context.Context) (string, error)
}

// NodeInfoResponse is returned by GET /api/node.
type NodeInfoResponse struct {
	PublicKey  string   `json:"public_key"`
	Address    string   `json:"address"`
	SchemaIDs  []string `json:"schema_ids"`
	LockDigest string   `json:"lock_digest"`
}

// StoreBlobResponse is returned by POST /api/blobs.
type StoreBlobResponse struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
}

// Handler serves the node API.
type Handler struct {
	identity    *keypair.Identity
	schemas     SchemaSource
	blobs       interfaces.StorageBackend
	metrics     *metrics.Metrics
	maxBlobSize int64
	log         *slog.Logger
}

func NewHandler(identity *keypair.Identity, schemas SchemaSource, blobs interfaces.StorageBackend, m *metrics.Metrics, maxBlobSize int64, log *slog.Logger) *Handler {
	if maxBlobSize <= 0 {
		maxBlobSize = DefaultMaxBlobSize
	}
	return &Handler{
		identity:    identity,
		schemas:     schemas,
		blobs:       blobs,
		metrics:     m,
		maxBlobSize: maxBlobSize,
		log:         log,
	}
}

// HandleNodeInfo returns the node's public identity and schema set.
//
// URL format: GET /api/node
func (h *Handler) HandleNodeInfo(w http.ResponseWriter, r *http.Request) {
	ids, err := h.schemas.SchemaIDs(r.Context())
	if err != nil {
		h.log.Error("Failed to list schemas", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	digest, err := h.schemas.LockDigest(r.Context())
	if err != nil {
		h.log.Error("Failed to read lock digest", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, NodeInfoResponse{
		PublicKey:  h.identity.PublicKeyHex(),
		Address:    h.identity.Address().Hex(),
		SchemaIDs:  ids,
		LockDigest: digest,
	})
}

// HandleStoreBlob stores the request body.
//
// URL format: POST /api/blobs
func (h *Handler) HandleStoreBlob(w http.ResponseWriter, r *http.Request) {
	id, size, err := h.storeBlob(w, r)
	if err != nil {
		h.writeError(w, "store", err)
		return
	}

	h.metrics.IncrementBlobRequest("store", "ok")
	h.metrics.AddBlobBytes(size)
	h.writeJSON(w, http.StatusCreated, StoreBlobResponse{ID: id.String(), Size: size})
}

func (h *Handler) storeBlob(w http.ResponseWriter, r *http.Request) (interfaces.ContentID, int, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBlobSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return interfaces.ContentID{}, 0, &RequestError{StatusCode: http.StatusRequestEntityTooLarge, Err: fmt.Errorf("blob exceeds %d bytes", maxErr.Limit)}
		}
		return interfaces.ContentID{}, 0, &RequestError{StatusCode: http.StatusBadRequest, Err: errors.New("failed to read request body")}
	}
	if len(data) == 0 {
		return interfaces.ContentID{}, 0, &RequestError{StatusCode: http.StatusBadRequest, Err: errors.New("empty blob")}
	}

	id, err := h.blobs.Store(r.Context(), data)
	if err != nil {
		return id, 0, fmt.Errorf("failed to store blob: %w", err)
	}

	h.log.Debug("Stored blob", slog.String("id", id.String()), slog.Int("size", len(data)))
	return id, len(data), nil
}

// HandleFetchBlob returns a blob.
//
// URL format: GET /api/blobs/{id}
func (h *Handler) HandleFetchBlob(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.NewContentIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "fetch", &RequestError{StatusCode: http.StatusBadRequest, Err: err})
		return
	}

	data, err := h.blobs.Fetch(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrContentNotFound) {
			err = &RequestError{StatusCode: http.StatusNotFound, Err: err}
		}
		h.writeError(w, "fetch", err)
		return
	}

	h.metrics.IncrementBlobRequest("fetch", "ok")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode
	} else if errors.Is(err, interfaces.ErrBackendUnavailable) {
		status = http.StatusServiceUnavailable
	}

	h.metrics.IncrementBlobRequest(op, http.StatusText(status))
	if status >= http.StatusInternalServerError {
		h.log.Error("Blob request failed", slog.String("op", op), "err", err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
