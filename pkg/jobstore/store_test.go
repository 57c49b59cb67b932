package jobstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()

	dsn, err := buildDSN(Config{Path: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, ":memory:", dsn)

	dsn, err = buildDSN(Config{Path: filepath.Join(dir, "sub", "jobs.db")})
	require.NoError(t, err)
	assert.Equal(t, "file:"+filepath.Join(dir, "sub", "jobs.db"), dsn)
	assert.DirExists(t, filepath.Join(dir, "sub"))

	dsn, err = buildDSN(Config{URL: "libsql://db.example.io", AuthToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "libsql://db.example.io?authToken=tok", dsn)

	dsn, err = buildDSN(Config{URL: "libsql://db.example.io?authToken=keep", AuthToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "libsql://db.example.io?authToken=keep", dsn)

	_, err = buildDSN(Config{})
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT schema_version FROM schema_meta WHERE id = 1").Scan(&version))
	assert.Equal(t, SchemaVersion, version)

	var rerun int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pragma_table_info('job_pairs') WHERE name = 'rerun_count'").Scan(&rerun))
	assert.Equal(t, 1, rerun)
}

func TestOpen_FileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")
	db, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, Migrate(ctx, db))
	assert.FileExists(t, path)
}

func TestGlobalPaused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	paused, err := s.GlobalPaused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)

	require.NoError(t, s.SetGlobalPaused(ctx, true))
	paused, err = s.GlobalPaused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	require.NoError(t, s.SetGlobalPaused(ctx, false))
	paused, err = s.GlobalPaused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetJob(ctx, 404)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.GetPairState(ctx, 404)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, _, err = s.GetPair(ctx, 404)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.SetJobFlag(ctx, 404, FlagPaused, true)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.GetPipeline(ctx, 404)
	assert.True(t, errors.Is(err, ErrNotFound))
}
