package dbx

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docName = "quota/quota_management.json"

func setupDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectLock(mock sqlmock.Sqlmock) *sqlmock.ExpectedExec {
	return mock.ExpectExec(regexp.QuoteMeta(QueryLockDocument)).WithArgs(docName)
}

func TestLockDocument_LocksThenCommits(t *testing.T) {
	db, mock := setupDB(t)
	mock.ExpectBegin()
	expectLock(mock).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := LockDocument(context.Background(), db, docName, func(ctx context.Context, tx Execer) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO documents(name) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockDocument_LockFailureSkipsCallback(t *testing.T) {
	db, mock := setupDB(t)
	mock.ExpectBegin()
	expectLock(mock).WillReturnError(errors.New("canceling statement due to lock timeout"))
	mock.ExpectRollback()

	called := false
	err := LockDocument(context.Background(), db, docName, func(context.Context, Execer) error {
		called = true
		return nil
	})
	require.EqualError(t, err, "lock "+docName+": canceling statement due to lock timeout")
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockDocument_RollsBackOnCallbackError(t *testing.T) {
	db, mock := setupDB(t)
	mock.ExpectBegin()
	expectLock(mock).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := LockDocument(context.Background(), db, docName, func(context.Context, Execer) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockDocument_RollsBackOnPanic(t *testing.T) {
	db, mock := setupDB(t)
	mock.ExpectBegin()
	expectLock(mock).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "kaput", func() {
		_ = LockDocument(context.Background(), db, docName, func(context.Context, Execer) error {
			panic("kaput")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockDocument_BeginAndCommitErrors(t *testing.T) {
	db, mock := setupDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("no conn"))
	err := LockDocument(context.Background(), db, docName, func(context.Context, Execer) error { return nil })
	require.EqualError(t, err, "begin: no conn")

	mock.ExpectBegin()
	expectLock(mock).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))
	err = LockDocument(context.Background(), db, docName, func(context.Context, Execer) error { return nil })
	require.EqualError(t, err, "commit: serialization failure")
	require.NoError(t, mock.ExpectationsWereMet())
}
