package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ruteri/node-launcher/interfaces"
	"github.com/ruteri/node-launcher/keypair"
	"github.com/ruteri/node-launcher/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSchemas struct {
	ids    []string
	digest string
	err    error
}

func (s staticSchemas) SchemaIDs(ctx context.Context) ([]string, error) {
	return s.ids, s.err
}

func (s staticSchemas) LockDigest(ctx context.Context) (string, error) {
	return s.digest, s.err
}

func newTestServer(t *testing.T, schemas SchemaSource, maxBlobSize int64) (*Server, *keypair.Identity) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	identity, err := keypair.Generate()
	require.NoError(t, err)

	blobs, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)

	handler := NewHandler(identity, schemas, blobs, nil, maxBlobSize, logger)
	srv := New(&HTTPServerConfig{ListenAddr: "127.0.0.1:0", Log: logger}, handler)
	return srv, identity
}

func do(srv *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(method, path, body))
	return rr
}

func TestHandleNodeInfo(t *testing.T) {
	srv, identity := newTestServer(t, staticSchemas{ids: []string{"sprites_01"}, digest: "abcd"}, 0)

	rr := do(srv, http.MethodGet, "/api/node", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp NodeInfoResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, identity.PublicKeyHex(), resp.PublicKey)
	assert.Equal(t, identity.Address().Hex(), resp.Address)
	assert.Equal(t, []string{"sprites_01"}, resp.SchemaIDs)
	assert.Equal(t, "abcd", resp.LockDigest)
}

func TestHandleNodeInfo_StoreError(t *testing.T) {
	srv, _ := newTestServer(t, staticSchemas{err: errors.New("database is locked")}, 0)

	rr := do(srv, http.MethodGet, "/api/node", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "locked")
}

func TestBlobRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, staticSchemas{}, 0)
	data := []byte("png bytes")

	rr := do(srv, http.MethodPost, "/api/blobs", bytes.NewReader(data))
	require.Equal(t, http.StatusCreated, rr.Code)

	var stored StoreBlobResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&stored))
	assert.Equal(t, interfaces.ComputeID(data).String(), stored.ID)
	assert.Equal(t, len(data), stored.Size)

	rr = do(srv, http.MethodGet, "/api/blobs/"+stored.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, data, rr.Body.Bytes())
}

func TestBlobErrors(t *testing.T) {
	srv, _ := newTestServer(t, staticSchemas{}, 8)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "empty body", method: http.MethodPost, path: "/api/blobs", body: "", status: http.StatusBadRequest},
		{name: "too large", method: http.MethodPost, path: "/api/blobs", body: "0123456789", status: http.StatusRequestEntityTooLarge},
		{name: "malformed id", method: http.MethodGet, path: "/api/blobs/xyz", status: http.StatusBadRequest},
		{name: "unknown id", method: http.MethodGet, path: "/api/blobs/" + interfaces.ComputeID([]byte("nope")).String(), status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, tt.method, tt.path, strings.NewReader(tt.body))
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
