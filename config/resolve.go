package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// LookupFunc reads an environment variable. os.LookupEnv is the default.
type LookupFunc func(key string) (string, bool)

// Result is a resolved configuration plus how it was assembled.
type Result struct {
	Config *Configuration

	// Path is the config file inside the data directory.
	Path string

	// Provisioned is true when the bundled default was copied into place.
	Provisioned bool

	// Sources records which layer last set each field.
	Sources map[string]Layer

	// Undecoded lists keys present in the file that no field consumed.
	Undecoded []string
}

// Path returns the config file location for a data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Resolve builds the configuration for dataDir. bundledDefault is the
// read-only default config shipped with the application; it is copied into
// the data directory on first run. A nil lookupEnv uses os.LookupEnv.
func Resolve(dataDir, bundledDefault string, lookupEnv LookupFunc) (*Result, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	res := &Result{
		Path:    Path(dataDir),
		Sources: make(map[string]Layer, len(Fields)),
	}

	provisioned, err := provision(res.Path, bundledDefault)
	if err != nil {
		return nil, err
	}
	res.Provisioned = provisioned

	raw := DefaultConfigFile()
	for _, layer := range Precedence {
		var err error
		switch layer {
		case LayerDefault:
			for _, f := range Fields {
				res.Sources[f.Key] = LayerDefault
			}
		case LayerFile:
			res.Undecoded, err = decodeFile(res.Path, &raw, res.Sources)
		case LayerDataDir:
			raw.DatabaseURL = DatabaseURLFor(dataDir)
			raw.BlobsBasePath = BlobsPathFor(dataDir)
			res.Sources["database_url"] = LayerDataDir
			res.Sources["blobs_base_path"] = LayerDataDir
		case LayerEnv:
			err = applyEnv(&raw, lookupEnv, res.Sources)
		}
		if err != nil {
			return nil, err
		}
	}

	cfg, err := raw.Validate(res.Sources)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", res.Path, err)
	}
	res.Config = cfg
	return res, nil
}

// provision copies the bundled default into place when path is missing.
func provision(path, bundledDefault string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := copyFile(bundledDefault, path); err != nil {
		return false, err
	}
	return true, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open bundled default config %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dst, closeErr)
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	return nil
}

func decodeFile(path string, raw *ConfigFile, sources map[string]Layer) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	meta, err := toml.Decode(string(data), raw)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrParse, path, err)
	}

	for _, f := range Fields {
		if meta.IsDefined(f.Key) {
			sources[f.Key] = LayerFile
		}
	}

	var undecoded []string
	for _, key := range meta.Undecoded() {
		undecoded = append(undecoded, key.String())
	}
	return undecoded, nil
}

func applyEnv(raw *ConfigFile, lookupEnv LookupFunc, sources map[string]Layer) error {
	for _, f := range Fields {
		value, ok := lookupEnv(f.Env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := f.set(raw, value); err != nil {
			return &FieldError{Field: f.Key, Source: LayerEnv, Value: value, Err: fmt.Errorf("%s: %w", f.Env, err)}
		}
		sources[f.Key] = LayerEnv
	}
	return nil
}
