package entries

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturne-journal/nocturne/internal/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE entries (
  local_id  INTEGER PRIMARY KEY,
  remote_id INTEGER,
  payload   TEXT NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func TestReplaceAllAndGetAll_RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	rid := int64(900)
	in := []models.JournalEntry{
		{LocalID: 30, Transcript: "newest"},
		{LocalID: 20, RemoteID: &rid, Transcript: "synced"},
		{LocalID: 10, Transcript: "oldest", IsFavorite: true},
	}
	require.NoError(t, r.ReplaceAll(ctx, in))

	got, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// newest-first by local id
	assert.Equal(t, int64(30), got[0].LocalID)
	assert.Equal(t, int64(20), got[1].LocalID)
	assert.Equal(t, int64(10), got[2].LocalID)

	require.NotNil(t, got[1].RemoteID)
	assert.Equal(t, int64(900), *got[1].RemoteID)
	assert.True(t, got[2].IsFavorite)
}

func TestReplaceAll_ReplacesPreviousList(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.ReplaceAll(ctx, []models.JournalEntry{{LocalID: 1}, {LocalID: 2}}))
	require.NoError(t, r.ReplaceAll(ctx, []models.JournalEntry{{LocalID: 3}}))

	got, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].LocalID)
}

func TestGetAll_Empty(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	got, err := r.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
