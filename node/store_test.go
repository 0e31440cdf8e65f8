package node

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/node-launcher/config"
	"github.com/ruteri/node-launcher/manifest"
	"github.com/stretchr/testify/require"
)

func lockFile(t *testing.T, ids ...string) *manifest.LockFile {
	t.Helper()
	content := "version = 1\n"
	for _, id := range ids {
		content += "[[schemas]]\nid = \"" + id + "\"\nname = \"" + id + "\"\n[schemas.fields]\ntitle = \"str\"\n"
	}
	lf, err := manifest.Parse([]byte(content))
	require.NoError(t, err)
	return lf
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DatabaseFile)
	s, err := OpenStore(path, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpenStoreIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DatabaseFile)
	for i := 0; i < 3; i++ {
		s, err := OpenStore(path, 4)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}
}

func TestOpenStoreKeepsDatabaseInDirectory(t *testing.T) {
	for _, name := range []string{"what?now", "node#1", "50%25off", "with space"} {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.Mkdir(dir, 0755))
			path := filepath.Join(dir, config.DatabaseFile)

			s, err := OpenStore(path, 4)
			require.NoError(t, err)
			defer s.Close()

			_, err = s.Migrate(context.Background(), lockFile(t, "a"), config.AllSchemas())
			require.NoError(t, err)
			require.FileExists(t, path)

			entries, err := os.ReadDir(filepath.Dir(dir))
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, name, entries[0].Name())
		})
	}
}

func TestDSN(t *testing.T) {
	require.Equal(t, "file::memory:?_foreign_keys=on", dsn(":memory:"))
	require.Equal(t,
		"file:/data/a%3Fb%23c%25d/db.sqlite3?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
		dsn("/data/a?b#c%d/db.sqlite3"))
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	result, err := s.Migrate(ctx, lockFile(t, "a", "b"), config.AllSchemas())
	require.NoError(t, err)
	require.True(t, result.Changed())
	require.Equal(t, []string{"a", "b"}, result.Added)

	result, err = s.Migrate(ctx, lockFile(t, "a", "b"), config.AllSchemas())
	require.NoError(t, err)
	require.False(t, result.Changed())

	result, err = s.Migrate(ctx, lockFile(t, "b", "c"), config.AllSchemas())
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, result.Added)
	require.Equal(t, []string{"a"}, result.Removed)

	ids, err := s.SchemaIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, ids)

	digest, err := s.LockDigest(ctx)
	require.NoError(t, err)
	require.Equal(t, lockFile(t, "b", "c").Digest(), digest)
}

func TestMigrateUpdatesChangedSchemas(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.Migrate(ctx, lockFile(t, "a", "b"), config.AllSchemas())
	require.NoError(t, err)

	changed, err := manifest.Parse([]byte(`version = 1
[[schemas]]
id = "a"
name = "a"
[schemas.fields]
title = "str"
[[schemas]]
id = "b"
name = "b"
[schemas.fields]
title = "int"
`))
	require.NoError(t, err)

	result, err := s.Migrate(ctx, changed, config.AllSchemas())
	require.NoError(t, err)
	require.True(t, result.Changed())
	require.Equal(t, []string{"b"}, result.Updated)
	require.Empty(t, result.Added)
	require.Empty(t, result.Removed)

	var fields string
	require.NoError(t, s.db.QueryRow(`SELECT fields FROM schema_state WHERE schema_id = 'b'`).Scan(&fields))
	require.JSONEq(t, `{"title":"int"}`, fields)

	digest, err := s.LockDigest(ctx)
	require.NoError(t, err)
	require.Equal(t, changed.Digest(), digest)

	result, err = s.Migrate(ctx, changed, config.AllSchemas())
	require.NoError(t, err)
	require.False(t, result.Changed())
}

func TestMigrateHonorsAllowList(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.Migrate(ctx, lockFile(t, "a", "b", "c"), config.SchemaIDs{IDs: []string{"b"}})
	require.NoError(t, err)

	ids, err := s.SchemaIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, ids)
}

func TestMigrateFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.Migrate(ctx, lockFile(t, "a"), config.AllSchemas())
	require.NoError(t, err)
	digest, err := s.LockDigest(ctx)
	require.NoError(t, err)

	_, err = s.db.Exec(`CREATE TRIGGER reject_bad BEFORE INSERT ON schema_state
		WHEN NEW.schema_id = 'bad'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	_, err = s.Migrate(ctx, lockFile(t, "b", "bad"), config.AllSchemas())
	require.Error(t, err)

	ids, err := s.SchemaIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids)

	after, err := s.LockDigest(ctx)
	require.NoError(t, err)
	require.Equal(t, digest, after)
}

func TestMigratePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), config.DatabaseFile)

	s, err := OpenStore(path, 4)
	require.NoError(t, err)
	_, err = s.Migrate(ctx, lockFile(t, "a"), config.AllSchemas())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenStore(path, 4)
	require.NoError(t, err)
	defer s.Close()

	result, err := s.Migrate(ctx, lockFile(t, "a"), config.AllSchemas())
	require.NoError(t, err)
	require.False(t, result.Changed())
}

func TestBindIdentity(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	require.NoError(t, s.BindIdentity(ctx, "02aa"))
	require.NoError(t, s.BindIdentity(ctx, "02aa"))
	require.ErrorIs(t, s.BindIdentity(ctx, "03bb"), ErrIdentityMismatch)
}

func TestInMemoryStore(t *testing.T) {
	s, err := OpenStore(":memory:", 8)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Migrate(context.Background(), lockFile(t, "a"), config.AllSchemas())
	require.NoError(t, err)
	ids, err := s.SchemaIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids)
}
