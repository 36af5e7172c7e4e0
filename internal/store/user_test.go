package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactsbook/apiserver/types"
)

var userRowColumns = []string{
	"id", "username", "email", "password_hash", "avatar", "confirmed", "refresh_token", "created_at", "updated_at",
}

func newUserRepoWithMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(db), mock
}

func TestUserRepository_GetByEmail(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(7, "alice", "a@x.io", "hash", nil, true, "rt-1", now, now)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*username,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("a@x.io").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.Avatar)
	assert.True(t, user.Confirmed)
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, "rt-1", *user.RefreshToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).
		WithArgs("ghost@x.io").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@x.io")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_Create(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+users\s*\(username,\s*email,\s*password_hash,.*RETURNING\s+id$`).
		WithArgs("alice", "a@x.io", "hash", sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	user, err := repo.Create(context.Background(), types.User{Username: "alice", Email: "a@x.io", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, 42, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_Conflict(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), types.User{Username: "alice", Email: "a@x.io", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserRepository_Create_DBError(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), types.User{Username: "alice", Email: "a@x.io"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create user: db down")
}

func TestUserRepository_SetRefreshToken(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	token := "rt-2"

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+refresh_token\s*=\s*\$1`).
		WithArgs(token, sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+refresh_token\s*=\s*\$1`).
		WithArgs(nil, sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetRefreshToken(context.Background(), 7, &token))
	require.NoError(t, repo.SetRefreshToken(context.Background(), 7, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SetConfirmed_Missing(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+confirmed\s*=\s*TRUE`).
		WithArgs(sqlmock.AnyArg(), "ghost@x.io").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetConfirmed(context.Background(), "ghost@x.io")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_SetAvatar(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(7, "alice", "a@x.io", "hash", "http://cdn/avatars/alice", true, nil, now, now)
	mock.ExpectQuery(`(?s)UPDATE\s+users\s+SET\s+avatar\s*=\s*\$1.*RETURNING`).
		WithArgs("http://cdn/avatars/alice", sqlmock.AnyArg(), "a@x.io").
		WillReturnRows(rows)

	user, err := repo.SetAvatar(context.Background(), "a@x.io", "http://cdn/avatars/alice")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/avatars/alice", user.Avatar)
	assert.Nil(t, user.RefreshToken)
}
