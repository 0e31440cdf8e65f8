package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Layer identifies a configuration source.
type Layer int

const (
	LayerDefault Layer = iota
	LayerFile
	LayerDataDir
	LayerEnv
)

// Precedence is the order layers are applied in; later layers win.
var Precedence = [...]Layer{LayerDefault, LayerFile, LayerDataDir, LayerEnv}

func (l Layer) String() string {
	switch l {
	case LayerDefault:
		return "default"
	case LayerFile:
		return "file"
	case LayerDataDir:
		return "data-dir"
	case LayerEnv:
		return "env"
	default:
		return "unknown"
	}
}

var (
	// ErrParse is returned when config.toml cannot be parsed.
	ErrParse = errors.New("failed to parse config file")
)

// FieldError reports a field that failed to parse or validate.
type FieldError struct {
	Field  string
	Source Layer
	Value  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %q (from %s): %v", e.Field, e.Value, e.Source, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Field binds one configuration key to its environment variable.
type Field struct {
	Key string
	Env string
	set func(f *ConfigFile, raw string) error
}

// EnvName returns the environment variable overriding a TOML key.
func EnvName(key string) string {
	return strings.ToUpper(key)
}

func field(key string, set func(f *ConfigFile, raw string) error) Field {
	return Field{Key: key, Env: EnvName(key), set: set}
}

// Fields lists every configuration field that can be overridden from the
// environment, in declaration order.
var Fields = []Field{
	field("log_level", func(f *ConfigFile, raw string) error {
		f.LogLevel = strings.TrimSpace(raw)
		return nil
	}),
	field("allow_schema_ids", func(f *ConfigFile, raw string) error {
		return f.AllowSchemaIDs.parse(raw)
	}),
	field("database_url", func(f *ConfigFile, raw string) error {
		f.DatabaseURL = raw
		return nil
	}),
	field("database_max_connections", intSetter(func(f *ConfigFile) *int64 { return &f.DatabaseMaxConnections })),
	field("http_port", intSetter(func(f *ConfigFile) *int64 { return &f.HTTPPort })),
	field("quic_port", intSetter(func(f *ConfigFile) *int64 { return &f.QUICPort })),
	field("blobs_base_path", func(f *ConfigFile, raw string) error {
		f.BlobsBasePath = raw
		return nil
	}),
	field("blob_mirrors", func(f *ConfigFile, raw string) error {
		f.BlobMirrors = splitList(raw)
		return nil
	}),
	field("mdns", boolSetter(func(f *ConfigFile) *bool { return &f.MDNS })),
	field("direct_node_addresses", func(f *ConfigFile, raw string) error {
		f.DirectNodeAddresses = splitList(raw)
		return nil
	}),
	field("relay_addresses", func(f *ConfigFile, raw string) error {
		f.RelayAddresses = splitList(raw)
		return nil
	}),
	field("relay_mode", boolSetter(func(f *ConfigFile) *bool { return &f.RelayMode })),
	field("worker_pool_size", intSetter(func(f *ConfigFile) *int64 { return &f.WorkerPoolSize })),
	field("metrics_addr", func(f *ConfigFile, raw string) error {
		f.MetricsAddr = strings.TrimSpace(raw)
		return nil
	}),
}

func intSetter(target func(*ConfigFile) *int64) func(*ConfigFile, string) error {
	return func(f *ConfigFile, raw string) error {
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return err
		}
		*target(f) = v
		return nil
	}
}

func boolSetter(target func(*ConfigFile) *bool) func(*ConfigFile, string) error {
	return func(f *ConfigFile, raw string) error {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*target(f) = v
		return nil
	}
}
