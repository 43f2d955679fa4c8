package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/koopa0/chatbot-rag/db"
	"github.com/koopa0/chatbot-rag/internal/log"
	"github.com/koopa0/chatbot-rag/internal/registry"
)

// setupStore starts a PostgreSQL container, runs migrations, and returns a
// Store backed by it. Requires Docker; skipped with -short.
func setupStore(t *testing.T) *registry.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("chatbot_test"),
		postgres.WithUsername("chatbot_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "starting postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return registry.New(pool, log.NewNop())
}

func TestStore_InsertAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	inserted, err := store.Insert(ctx, "notes.pdf", "abc123", []string{"rec-1", "rec-2"})
	require.NoError(t, err)
	assert.Positive(t, inserted.ID)
	assert.Equal(t, "notes.pdf", inserted.FileName)
	assert.Equal(t, "abc123", inserted.FileKey)
	assert.Equal(t, []string{"rec-1", "rec-2"}, inserted.RecordIDs)
	assert.WithinDuration(t, time.Now(), inserted.CreatedAt, time.Minute)

	got, err := store.GetByID(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, inserted.ID, got.ID)
	assert.Equal(t, inserted.RecordIDs, got.RecordIDs)
}

func TestStore_Insert_EmptyRecordIDs(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	inserted, err := store.Insert(ctx, "empty.txt", "deadbeef", nil)
	require.NoError(t, err)
	assert.Empty(t, inserted.RecordIDs)
	assert.NotNil(t, inserted.RecordIDs)
}

func TestStore_Insert_DuplicateNamesAllowed(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first, err := store.Insert(ctx, "report.docx", "key-a", []string{"r1"})
	require.NoError(t, err)
	second, err := store.Insert(ctx, "report.docx", "key-b", []string{"r2"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestStore_List_InsertionOrder(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	names := []string{"first.md", "second.md", "third.md"}
	for _, name := range names {
		_, err := store.Insert(ctx, name, "key-"+name, nil)
		require.NoError(t, err)
	}

	files, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 3)
	for i, name := range names {
		assert.Equal(t, name, files[i].FileName)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetByID(context.Background(), 999999)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestStore_DeleteByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	inserted, err := store.Insert(ctx, "gone.txt", "key", []string{"r1"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteByID(ctx, inserted.ID))

	_, err = store.GetByID(ctx, inserted.ID)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestStore_DeleteByID_NotFound(t *testing.T) {
	store := setupStore(t)

	err := store.DeleteByID(context.Background(), 424242)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}
