package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/ClassifyEverything/internal/logic/classify"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB_AppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)
	assert.False(t, dirty)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestOpenDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Insert(context.Background(), NewRecord(uuid.New(), "rear", time.Now(), []classify.Observation{{Identifier: "cat", Confidence: 0.8}}, nil)))
	require.NoError(t, db.Close())

	db, err = OpenDB(path)
	require.NoError(t, err)
	defer db.Close()
	recs, err := db.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.MigrateDown(MigrationsFS()))

	version, _, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.EqualValues(t, 0, version)

	_, err = db.Recent(context.Background(), 1)
	assert.Error(t, err, "table should be gone")
}

func TestMigrateUp_CustomFS(t *testing.T) {
	db := openTestDB(t)
	migrationsFS := fstest.MapFS{
		"000001_init.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE IF NOT EXISTS t1 (id INTEGER PRIMARY KEY);")},
		"000001_init.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE IF EXISTS t1;")},
	}
	// Already at version 1 from the embedded migrations: nothing to do.
	assert.NoError(t, db.MigrateUp(migrationsFS))
}

func TestNewRecord(t *testing.T) {
	id := uuid.New()
	at := time.Unix(1700000000, 0)

	r := NewRecord(id, "rear", at, []classify.Observation{{Identifier: "dog", Confidence: 0.6}, {Identifier: "wolf", Confidence: 0.3}}, nil)
	assert.Equal(t, "dog", r.Label)
	assert.InDelta(t, 0.6, r.Confidence, 1e-6)
	assert.Empty(t, r.Error)

	r = NewRecord(id, "rear", at, nil, errors.New("inference failed"))
	assert.Empty(t, r.Label)
	assert.Equal(t, "inference failed", r.Error)

	r = NewRecord(id, "rear", at, []classify.Observation{}, nil)
	assert.Empty(t, r.Label)
	assert.Empty(t, r.Error)
}

func TestInsertAndRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	var ids []uuid.UUID
	for i, label := range []string{"cat", "dog", "fox"} {
		id := uuid.New()
		ids = append(ids, id)
		obs := []classify.Observation{{Identifier: label, Confidence: 0.5}}
		require.NoError(t, db.Insert(ctx, NewRecord(id, "rear", base.Add(time.Duration(i)*time.Minute), obs, nil)))
	}

	recs, err := db.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ids[2], recs[0].RequestID, "newest first")
	assert.Equal(t, "fox", recs[0].Label)
	assert.Equal(t, ids[1], recs[1].RequestID)
	assert.True(t, recs[0].CapturedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, []classify.Observation{{Identifier: "fox", Confidence: 0.5}}, recs[0].Observations)
}

func TestInsert_Duplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	r := NewRecord(uuid.New(), "rear", time.Now(), nil, errors.New("x"))
	require.NoError(t, db.Insert(ctx, r))
	assert.Error(t, db.Insert(ctx, r))
}

func TestInsert_FailureKeepsEmptyObservations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Insert(ctx, NewRecord(uuid.New(), "rear", time.Now(), nil, errors.New("boom"))))

	recs, err := db.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "boom", recs[0].Error)
	assert.Empty(t, recs[0].Observations)
}

func TestLabelCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, label := range []string{"cat", "dog", "cat", "", "bird", "cat", "dog"} {
		var obs []classify.Observation
		if label != "" {
			obs = []classify.Observation{{Identifier: label, Confidence: 0.9}}
		} else {
			obs = []classify.Observation{}
		}
		require.NoError(t, db.Insert(ctx, NewRecord(uuid.New(), "rear", time.Now(), obs, nil)))
	}

	counts, err := db.LabelCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LabelCount{{"cat", 3}, {"dog", 2}, {"bird", 1}}, counts)
}

func TestLabelCounts_Empty(t *testing.T) {
	counts, err := openTestDB(t).LabelCounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}
