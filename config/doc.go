// Package config resolves the node configuration from layered sources.
//
// Layers are applied in a fixed order, later layers winning point-wise per
// field (see [Precedence]):
//
//  1. compiled defaults ([DefaultConfigFile])
//  2. config.toml in the data directory, seeded from the bundled default on
//     first run
//  3. values derived from the data directory: database_url becomes
//     sqlite:<dir>/db.sqlite3 and blobs_base_path becomes <dir>/blobs
//  4. environment variables, one per field, named after the upper-cased TOML
//     key (HTTP_PORT, DATABASE_URL, ...)
//
// The merged record is validated into a [Configuration]; every failure names
// the offending field and the layer it came from. Unknown TOML keys are
// tolerated and reported back to the caller so they can be logged.
package config
