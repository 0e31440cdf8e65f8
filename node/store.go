package node

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"path/filepath"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ruteri/node-launcher/config"
	"github.com/ruteri/node-launcher/manifest"
)

//go:embed schema.sql
var schemaSQL string

const (
	metaLockDigest = "lock_digest"
	metaPublicKey  = "public_key"
)

// ErrIdentityMismatch is returned when the database belongs to another node.
var ErrIdentityMismatch = errors.New("database was created by a different node identity")

// MigrationResult describes what Migrate changed.
type MigrationResult struct {
	Added   []string
	Updated []string
	Removed []string
}

// Changed reports whether the migration touched the schema state.
func (r MigrationResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Updated) > 0 || len(r.Removed) > 0
}

// Store keeps the node's persisted schema state in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens the SQLite database at path, creating it if needed.
// ":memory:" opens a private in-memory database.
func OpenStore(path string, maxConns int) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Every in-memory connection is a separate database.
	if path == ":memory:" || maxConns < 1 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// dsn sets the pragmas through connection parameters so every pooled
// connection gets them. The path is percent-encoded so '?', '#' and '%'
// in directory names stay part of the file name.
func dsn(path string) string {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=on"
	}
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")
	u := url.URL{Scheme: "file", OmitHost: true, Path: filepath.ToSlash(path), RawQuery: params.Encode()}
	return u.String()
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BindIdentity records the node public key on first use and rejects a
// database created by another identity.
func (s *Store) BindIdentity(ctx context.Context, publicKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored, err := getMeta(ctx, tx, metaPublicKey)
	if err != nil {
		return err
	}
	if stored != "" && stored != publicKey {
		return fmt.Errorf("%w: stored %s", ErrIdentityMismatch, stored)
	}
	if stored == "" {
		if err := setMeta(ctx, tx, metaPublicKey, publicKey); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Migrate reconciles schema_state with the lock file, restricted to the
// allowed schema ids. Rows whose name, description or fields differ from the
// lock file are rewritten. The whole migration runs in one transaction, so a
// failure leaves the previous state in place.
func (s *Store) Migrate(ctx context.Context, lockFile *manifest.LockFile, allow config.SchemaIDs) (result MigrationResult, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	existing, err := schemaRows(ctx, tx)
	if err != nil {
		return result, err
	}

	wanted := make(map[string]struct{})
	now := time.Now().Unix()
	for _, schema := range lockFile.Schemas() {
		if !allow.Allows(schema.ID) {
			continue
		}
		wanted[schema.ID] = struct{}{}

		row, err := newSchemaRow(schema)
		if err != nil {
			return result, err
		}
		stored, ok := existing[schema.ID]
		switch {
		case !ok:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO schema_state (schema_id, name, description, fields, recorded_at) VALUES (?, ?, ?, ?, ?)`,
				schema.ID, row.name, row.description, row.fields, now)
			if err != nil {
				return result, fmt.Errorf("failed to record schema %s: %w", schema.ID, err)
			}
			result.Added = append(result.Added, schema.ID)
		case stored != row:
			_, err = tx.ExecContext(ctx,
				`UPDATE schema_state SET name = ?, description = ?, fields = ?, recorded_at = ? WHERE schema_id = ?`,
				row.name, row.description, row.fields, now, schema.ID)
			if err != nil {
				return result, fmt.Errorf("failed to update schema %s: %w", schema.ID, err)
			}
			result.Updated = append(result.Updated, schema.ID)
		}
	}

	for _, id := range slices.Sorted(maps.Keys(existing)) {
		if _, ok := wanted[id]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_state WHERE schema_id = ?`, id); err != nil {
			return result, fmt.Errorf("failed to remove schema %s: %w", id, err)
		}
		result.Removed = append(result.Removed, id)
	}

	if err := setMeta(ctx, tx, metaLockDigest, lockFile.Digest()); err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit migration: %w", err)
	}
	return result, nil
}

// schemaRow is the persisted form of a schema, comparable with ==.
type schemaRow struct {
	name        string
	description string
	fields      string
}

func newSchemaRow(schema manifest.Schema) (schemaRow, error) {
	fields := schema.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	// encoding/json sorts map keys, so equal field sets encode identically.
	encoded, err := json.Marshal(fields)
	if err != nil {
		return schemaRow{}, fmt.Errorf("failed to encode fields of %s: %w", schema.ID, err)
	}
	return schemaRow{name: schema.Name, description: schema.Description, fields: string(encoded)}, nil
}

func schemaRows(ctx context.Context, q querier) (map[string]schemaRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT schema_id, name, description, fields FROM schema_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	out := make(map[string]schemaRow)
	for rows.Next() {
		var id string
		var row schemaRow
		if err := rows.Scan(&id, &row.name, &row.description, &row.fields); err != nil {
			return nil, fmt.Errorf("failed to scan schema: %w", err)
		}
		out[id] = row
	}
	return out, rows.Err()
}

// SchemaIDs lists the recorded schema ids in ascending order.
func (s *Store) SchemaIDs(ctx context.Context) ([]string, error) {
	return schemaIDs(ctx, s.db)
}

// LockDigest returns the digest of the last migrated lock file.
func (s *Store) LockDigest(ctx context.Context) (string, error) {
	return getMeta(ctx, s.db, metaLockDigest)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func schemaIDs(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT schema_id FROM schema_state ORDER BY schema_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan schema id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getMeta(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM node_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func setMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO node_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
