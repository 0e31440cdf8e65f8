// Package manifest loads the schema lock file bundled with the application.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// SchemasDir is the resource subdirectory holding the lock file.
	SchemasDir = "schemas"

	// LockFileName is the lock file name inside SchemasDir.
	LockFileName = "schema.lock"

	// Version is the only supported lock file version.
	Version = 1
)

var (
	ErrParse   = errors.New("failed to parse schema lock file")
	ErrInvalid = errors.New("invalid schema lock file")
)

// Schema describes one schema the deployment expects.
type Schema struct {
	ID          string            `toml:"id"`
	Name        string            `toml:"name"`
	Description string            `toml:"description"`
	Fields      map[string]string `toml:"fields"`
}

// LockFile is the immutable set of schemas a deployment ships with.
type LockFile struct {
	version int
	schemas []Schema
}

type lockFileTOML struct {
	Version int      `toml:"version"`
	Schemas []Schema `toml:"schemas"`
}

// Path returns the lock file location inside a resource directory.
func Path(resourceDir string) string {
	return filepath.Join(resourceDir, SchemasDir, LockFileName)
}

// Load reads and validates the lock file under resourceDir. The file is
// opened read-only.
func Load(resourceDir string) (*LockFile, error) {
	path := Path(resourceDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema lock file: %w", err)
	}
	lf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lf, nil
}

// Parse decodes and validates lock file contents.
func Parse(data []byte) (*LockFile, error) {
	var raw lockFileTOML
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if raw.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalid, raw.Version)
	}

	seen := make(map[string]struct{}, len(raw.Schemas))
	for i, s := range raw.Schemas {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("%w: schema %d has no id", ErrInvalid, i)
		}
		if _, ok := seen[s.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate schema id %s", ErrInvalid, s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	schemas := make([]Schema, len(raw.Schemas))
	for i, s := range raw.Schemas {
		schemas[i] = s.clone()
	}
	return &LockFile{version: raw.Version, schemas: schemas}, nil
}

func (s Schema) clone() Schema {
	s.Fields = maps.Clone(s.Fields)
	return s
}

func (s Schema) equal(o Schema) bool {
	return s.ID == o.ID && s.Name == o.Name && s.Description == o.Description && maps.Equal(s.Fields, o.Fields)
}

// Version returns the lock file format version.
func (l *LockFile) Version() int {
	return l.version
}

// Schemas returns a copy of the schemas in file order.
func (l *LockFile) Schemas() []Schema {
	out := make([]Schema, len(l.schemas))
	for i, s := range l.schemas {
		out[i] = s.clone()
	}
	return out
}

// Schema looks up a schema by id.
func (l *LockFile) Schema(id string) (Schema, bool) {
	for _, s := range l.schemas {
		if s.ID == id {
			return s.clone(), true
		}
	}
	return Schema{}, false
}

// SchemaIDs returns the schema ids in file order.
func (l *LockFile) SchemaIDs() []string {
	ids := make([]string, len(l.schemas))
	for i, s := range l.schemas {
		ids[i] = s.ID
	}
	return ids
}

// Len returns the number of schemas.
func (l *LockFile) Len() int {
	return len(l.schemas)
}

// Equal reports whether both lock files describe the same schemas.
func (l *LockFile) Equal(o *LockFile) bool {
	if l == nil || o == nil {
		return l == o
	}
	return l.version == o.version && slices.EqualFunc(l.schemas, o.schemas, Schema.equal)
}

// Digest is the hex sha256 of the canonical schema content: schemas sorted
// by id, fields sorted by name. File order does not affect it.
func (l *LockFile) Digest() string {
	schemas := slices.SortedFunc(slices.Values(l.schemas), func(a, b Schema) int {
		return strings.Compare(a.ID, b.ID)
	})

	h := sha256.New()
	for _, s := range schemas {
		fmt.Fprintf(h, "%q %q %q\n", s.ID, s.Name, s.Description)
		for _, name := range slices.Sorted(maps.Keys(s.Fields)) {
			fmt.Fprintf(h, "\t%q %q\n", name, s.Fields[name])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
