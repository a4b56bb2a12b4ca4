package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoleRepo(t *testing.T) (*RoleRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRoleRepo(db), mock
}

func TestRoleCreateDuplicateName(t *testing.T) {
	repo, mock := newRoleRepo(t)

	mock.ExpectExec("INSERT INTO roles").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'admin' for key 'roles.uq_roles_name'"))

	_, err := repo.Create(context.Background(), "admin", "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRoleListBatchesGrants(t *testing.T) {
	repo, mock := newRoleRepo(t)
	now := time.Now()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM roles").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT .+ FROM roles ORDER BY id").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
			AddRow(1, "admin", "", now, now).
			AddRow(2, "user", "", now, now))
	// One IN-query covers the whole page.
	mock.ExpectQuery("FROM roles_permissions rp JOIN permissions p").
		WithArgs(uint64(1), uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "id", "name", "description", "created_at", "updated_at"}).
			AddRow(1, 2, "read_user", "", now, now).
			AddRow(1, 5, "manage_roles", "", now, now).
			AddRow(2, 2, "read_user", "", now, now))

	roles, total, err := repo.List(context.Background(), 0, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, roles, 2)
	assert.Len(t, roles[0].Permissions, 2)
	assert.Len(t, roles[1].Permissions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleDeleteRejectedWhileInUse(t *testing.T) {
	repo, mock := newRoleRepo(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE role_id=").
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	err := repo.Delete(context.Background(), 2)
	assert.ErrorIs(t, err, ErrRoleInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleDeleteRemovesGrantsFirst(t *testing.T) {
	repo, mock := newRoleRepo(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE role_id=").
		WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM roles_permissions WHERE role_id=").
		WithArgs(uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM roles WHERE id=").
		WithArgs(uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), 4)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleDeleteUnknownID(t *testing.T) {
	repo, mock := newRoleRepo(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE role_id=").
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM roles_permissions WHERE role_id=").
		WithArgs(uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM roles WHERE id=").
		WithArgs(uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRoleGrantDuplicate(t *testing.T) {
	repo, mock := newRoleRepo(t)

	mock.ExpectQuery("SELECT 1 FROM roles WHERE id=").
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectExec("INSERT INTO roles_permissions").
		WithArgs(uint64(1), uint64(2)).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry '1-2' for key 'roles_permissions.PRIMARY'"))

	err := repo.Grant(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRoleGrantUnknownRole(t *testing.T) {
	repo, mock := newRoleRepo(t)

	mock.ExpectQuery("SELECT 1 FROM roles WHERE id=").
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"one"}))

	err := repo.Grant(context.Background(), 42, 2)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRoleRevokeMissingGrant(t *testing.T) {
	repo, mock := newRoleRepo(t)

	mock.ExpectExec("DELETE FROM roles_permissions WHERE role_id=").
		WithArgs(uint64(1), uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Revoke(context.Background(), 1, 2)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
