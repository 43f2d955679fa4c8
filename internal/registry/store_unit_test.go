package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/koopa0/chatbot-rag/internal/log"
)

// fakeDBTX returns canned results; enough to exercise error mapping without
// a database.
type fakeDBTX struct {
	execTag  pgconn.CommandTag
	execErr  error
	queryErr error
	scanErr  error
}

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(...any) error { return r.err }

func (f *fakeDBTX) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return f.execTag, f.execErr
}

func (f *fakeDBTX) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, f.queryErr
}

func (f *fakeDBTX) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{err: f.scanErr}
}

func TestStore_GetByID_MapsNoRowsToNotFound(t *testing.T) {
	store := New(&fakeDBTX{scanErr: pgx.ErrNoRows}, log.NewNop())

	_, err := store.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetByID_WrapsOtherErrors(t *testing.T) {
	store := New(&fakeDBTX{scanErr: errors.New("connection reset")}, log.NewNop())

	_, err := store.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrWrite)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_Insert_WrapsFailure(t *testing.T) {
	store := New(&fakeDBTX{scanErr: errors.New("constraint violation")}, log.NewNop())

	_, err := store.Insert(context.Background(), "a.txt", "key", nil)
	assert.ErrorIs(t, err, ErrWrite)
}

func TestStore_List_WrapsQueryFailure(t *testing.T) {
	store := New(&fakeDBTX{queryErr: errors.New("connection reset")}, log.NewNop())

	_, err := store.List(context.Background())
	assert.ErrorIs(t, err, ErrWrite)
}

func TestStore_DeleteByID_ZeroRowsIsNotFound(t *testing.T) {
	store := New(&fakeDBTX{execTag: pgconn.NewCommandTag("DELETE 0")}, log.NewNop())

	err := store.DeleteByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteByID_OneRowSucceeds(t *testing.T) {
	store := New(&fakeDBTX{execTag: pgconn.NewCommandTag("DELETE 1")}, log.NewNop())

	assert.NoError(t, store.DeleteByID(context.Background(), 42))
}
