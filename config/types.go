package config

import (
	"fmt"
	"slices"
	"strings"
)

// SchemaIDs is either the wildcard "*" or an explicit list of schema ids.
type SchemaIDs struct {
	All bool
	IDs []string
}

// AllSchemas matches every schema id.
func AllSchemas() SchemaIDs {
	return SchemaIDs{All: true}
}

// Allows reports whether id passes the filter.
func (s SchemaIDs) Allows(id string) bool {
	return s.All || slices.Contains(s.IDs, id)
}

// UnmarshalTOML accepts "*" or an array of strings.
func (s *SchemaIDs) UnmarshalTOML(value any) error {
	switch v := value.(type) {
	case string:
		return s.parse(v)
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			id, ok := item.(string)
			if !ok {
				return fmt.Errorf("schema id must be a string, got %T", item)
			}
			ids = append(ids, id)
		}
		*s = SchemaIDs{IDs: ids}
		return nil
	default:
		return fmt.Errorf(`expected "*" or a list of schema ids, got %T`, value)
	}
}

// parse reads the environment form: "*" or a comma separated list.
func (s *SchemaIDs) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "*" {
		*s = AllSchemas()
		return nil
	}
	if strings.Contains(raw, "*") {
		return fmt.Errorf(`wildcard "*" cannot be combined with schema ids`)
	}
	*s = SchemaIDs{IDs: splitList(raw)}
	return nil
}

func (s SchemaIDs) String() string {
	if s.All {
		return "*"
	}
	return strings.Join(s.IDs, ",")
}

func (s SchemaIDs) clone() SchemaIDs {
	return SchemaIDs{All: s.All, IDs: slices.Clone(s.IDs)}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
