package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// FileName is the config file kept in the data directory.
	FileName = "config.toml"

	// DatabaseFile is the SQLite database kept in the data directory.
	DatabaseFile = "db.sqlite3"

	// BlobsDir is the blob subdirectory of the data directory.
	BlobsDir = "blobs"

	sqliteScheme = "sqlite:"
)

var logLevels = []string{"off", "error", "warn", "info", "debug", "trace"}

// ConfigFile is the raw, unvalidated record every layer writes into.
type ConfigFile struct {
	LogLevel               string    `toml:"log_level"`
	AllowSchemaIDs         SchemaIDs `toml:"allow_schema_ids"`
	DatabaseURL            string    `toml:"database_url"`
	DatabaseMaxConnections int64     `toml:"database_max_connections"`
	HTTPPort               int64     `toml:"http_port"`
	QUICPort               int64     `toml:"quic_port"`
	BlobsBasePath          string    `toml:"blobs_base_path"`
	BlobMirrors            []string  `toml:"blob_mirrors"`
	MDNS                   bool      `toml:"mdns"`
	DirectNodeAddresses    []string  `toml:"direct_node_addresses"`
	RelayAddresses         []string  `toml:"relay_addresses"`
	RelayMode              bool      `toml:"relay_mode"`
	WorkerPoolSize         int64     `toml:"worker_pool_size"`
	MetricsAddr            string    `toml:"metrics_addr"`
}

// DefaultConfigFile returns the compiled-in defaults.
func DefaultConfigFile() ConfigFile {
	return ConfigFile{
		LogLevel:               "off",
		AllowSchemaIDs:         AllSchemas(),
		DatabaseURL:            "sqlite::memory:",
		DatabaseMaxConnections: 32,
		HTTPPort:               2020,
		QUICPort:               2022,
		MDNS:                   true,
		WorkerPoolSize:         16,
	}
}

// Configuration is the validated node configuration.
type Configuration struct {
	LogLevel               string
	AllowSchemaIDs         SchemaIDs
	DatabaseURL            string
	DatabaseMaxConnections int
	HTTPPort               uint16
	QUICPort               uint16
	BlobsBasePath          string
	BlobMirrors            []string
	MDNS                   bool
	DirectNodeAddresses    []string
	RelayAddresses         []string
	RelayMode              bool
	WorkerPoolSize         int
	MetricsAddr            string
}

// DatabaseURLFor derives the database url for a data directory.
func DatabaseURLFor(dataDir string) string {
	return sqliteScheme + filepath.Join(dataDir, DatabaseFile)
}

// BlobsPathFor derives the blob directory for a data directory.
func BlobsPathFor(dataDir string) string {
	return filepath.Join(dataDir, BlobsDir)
}

// SQLitePath returns the database file path when DatabaseURL uses the
// sqlite scheme.
func (c Configuration) SQLitePath() (string, bool) {
	if !strings.HasPrefix(c.DatabaseURL, sqliteScheme) {
		return "", false
	}
	path := strings.TrimPrefix(c.DatabaseURL, sqliteScheme)
	return strings.TrimPrefix(path, "//"), true
}

// Clone returns a deep copy, so the copy can be handed to another goroutine.
func (c Configuration) Clone() Configuration {
	out := c
	out.AllowSchemaIDs = c.AllowSchemaIDs.clone()
	out.BlobMirrors = slices.Clone(c.BlobMirrors)
	out.DirectNodeAddresses = slices.Clone(c.DirectNodeAddresses)
	out.RelayAddresses = slices.Clone(c.RelayAddresses)
	return out
}

// Validate checks every field and converts the record into a Configuration.
// sources attributes each failure to the layer that set the field; it may be nil.
func (f ConfigFile) Validate(sources map[string]Layer) (*Configuration, error) {
	fail := func(key string, value any, err error) error {
		source := LayerDefault
		if s, ok := sources[key]; ok {
			source = s
		}
		return &FieldError{Field: key, Source: source, Value: fmt.Sprint(value), Err: err}
	}

	if !slices.Contains(logLevels, strings.ToLower(f.LogLevel)) {
		return nil, fail("log_level", f.LogLevel, fmt.Errorf("must be one of %s", strings.Join(logLevels, ", ")))
	}
	if !f.AllowSchemaIDs.All {
		for _, id := range f.AllowSchemaIDs.IDs {
			if strings.TrimSpace(id) == "" {
				return nil, fail("allow_schema_ids", f.AllowSchemaIDs, errors.New("empty schema id"))
			}
		}
	}
	if err := validateDatabaseURL(f.DatabaseURL); err != nil {
		return nil, fail("database_url", RedactURL(f.DatabaseURL), err)
	}
	if f.DatabaseMaxConnections < 1 || f.DatabaseMaxConnections > 1024 {
		return nil, fail("database_max_connections", f.DatabaseMaxConnections, errors.New("must be between 1 and 1024"))
	}
	httpPort, err := port(f.HTTPPort)
	if err != nil {
		return nil, fail("http_port", f.HTTPPort, err)
	}
	quicPort, err := port(f.QUICPort)
	if err != nil {
		return nil, fail("quic_port", f.QUICPort, err)
	}
	if f.BlobsBasePath == "" || !filepath.IsAbs(f.BlobsBasePath) {
		return nil, fail("blobs_base_path", f.BlobsBasePath, errors.New("must be an absolute path"))
	}
	for _, mirror := range f.BlobMirrors {
		if err := validateMirror(mirror); err != nil {
			return nil, fail("blob_mirrors", RedactURL(mirror), err)
		}
	}
	for _, addr := range f.DirectNodeAddresses {
		if err := validateHostPort(addr); err != nil {
			return nil, fail("direct_node_addresses", addr, err)
		}
	}
	for _, addr := range f.RelayAddresses {
		if err := validateHostPort(addr); err != nil {
			return nil, fail("relay_addresses", addr, err)
		}
	}
	if f.WorkerPoolSize < 1 || f.WorkerPoolSize > 4096 {
		return nil, fail("worker_pool_size", f.WorkerPoolSize, errors.New("must be between 1 and 4096"))
	}
	if f.MetricsAddr != "" {
		if err := validateHostPort(f.MetricsAddr); err != nil {
			return nil, fail("metrics_addr", f.MetricsAddr, err)
		}
	}

	cfg := Configuration{
		LogLevel:               strings.ToLower(f.LogLevel),
		AllowSchemaIDs:         f.AllowSchemaIDs.clone(),
		DatabaseURL:            f.DatabaseURL,
		DatabaseMaxConnections: int(f.DatabaseMaxConnections),
		HTTPPort:               httpPort,
		QUICPort:               quicPort,
		BlobsBasePath:          f.BlobsBasePath,
		BlobMirrors:            slices.Clone(f.BlobMirrors),
		MDNS:                   f.MDNS,
		DirectNodeAddresses:    slices.Clone(f.DirectNodeAddresses),
		RelayAddresses:         slices.Clone(f.RelayAddresses),
		RelayMode:              f.RelayMode,
		WorkerPoolSize:         int(f.WorkerPoolSize),
		MetricsAddr:            f.MetricsAddr,
	}
	return &cfg, nil
}

func port(value int64) (uint16, error) {
	if value < 1 || value > 65535 {
		return 0, errors.New("must be between 1 and 65535")
	}
	return uint16(value), nil
}

// url.Parse errors quote the input, credentials included.
var errMalformedURL = errors.New("malformed url")

// RedactURL masks the password of a URL so it can be logged or reported.
// Unparseable values that may carry credentials are masked entirely.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if strings.Contains(raw, "@") {
			return "<redacted>"
		}
		return raw
	}
	return u.Redacted()
}

func validateDatabaseURL(raw string) error {
	if strings.HasPrefix(raw, sqliteScheme) {
		if strings.TrimPrefix(raw, sqliteScheme) == "" {
			return errors.New("missing sqlite database path")
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errMalformedURL
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return nil
	default:
		return fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

func validateMirror(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errMalformedURL
	}
	switch u.Scheme {
	case "file", "s3", "ipfs":
		return nil
	default:
		return fmt.Errorf("unsupported blob mirror scheme %q", u.Scheme)
	}
}

func validateHostPort(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if portStr == "" {
		return errors.New("missing port")
	}
	return nil
}
