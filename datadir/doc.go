// Package datadir resolves the writable per-install data directory that holds
// every piece of persisted node state: the identity file, config.toml, the
// SQLite database and the blob store.
//
// Two modes are supported:
//
//   - Development: a fresh temporary directory is created for the run and
//     removed again by [DataDir.Close]. The composition root owns the handle
//     and defers Close, so the directory never outlives the process.
//   - Production: the platform's per-application data directory
//     (XDG data home on Linux, Application Support on macOS, %APPDATA% on
//     Windows) joined with the application identifier. It persists across runs.
//
// In both modes [Resolve] creates the blob subdirectory before returning.
package datadir
