/*
Package httpserver implements the HTTP API of the reference node.

The server listens on loopback only and is what the host application talks
to once startup has completed. It exposes the node identity and schema set,
content-addressed blob storage, and the usual health endpoints.

# API Endpoints

  - GET /api/node - Public key, address, accepted schema ids and lock digest
  - POST /api/blobs - Store the request body as a blob, returns its id
  - GET /api/blobs/{id} - Fetch a blob by its hex SHA-256 id
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready
  - /debug/* - pprof, when enabled

Requests are logged through the go-utils slog middleware. Blob bodies are
capped by HTTPServerConfig.MaxBlobSize.
*/
package httpserver
