// Package interfaces defines the contracts between the launcher and the
// components it drives, separating them from their implementations.
//
// # Node Contract
//
// Node: a running background node. Migrate reconciles its persisted schema
// state with the bundled lock file, OnExit signals that the node wants to
// stop, and Shutdown stops it.
//
// NodeStarter: starts a node from an identity and a configuration. The
// startup coordinator depends on this interface only; the reference node
// and test doubles both implement it.
//
// # Storage Interfaces
//
// StorageBackend: content-addressed blob storage (file, S3, IPFS).
//
// StorageBackendFactory: creates storage backends from location URIs and
// combines several of them into one redundant backend.
//
// # Types
//
//   - ContentID: 32-byte SHA-256 hash identifying a blob
//   - StorageBackendLocation: parsed blob mirror URI
package interfaces
