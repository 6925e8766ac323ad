package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"go-member-portal/internal/model"
)

func TestGetOverrides(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT route, role, level FROM route_permissions").
		WillReturnRows(sqlmock.NewRows([]string{"route", "role", "level"}).
			AddRow("/api/v1/minutes", "board", "write").
			AddRow("/api/v1/members", "member", "read").
			AddRow("/api/v1/vendors", "chair", "banana"))

	repo := NewPermissionRepository(db)
	overrides, err := repo.GetOverrides(context.Background())
	require.NoError(t, err)
	require.Len(t, overrides, 3)
	require.Equal(t, model.LevelWrite, overrides[PermissionKey{Route: "/api/v1/minutes", Role: model.RoleBoard}])
	require.Equal(t, model.LevelRead, overrides[PermissionKey{Route: "/api/v1/members", Role: model.RoleMember}])
	// Unknown levels collapse to none instead of widening access.
	require.Equal(t, model.LevelNone, overrides[PermissionKey{Route: "/api/v1/vendors", Role: model.RoleChair}])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOverrideWritesAuditRowInSameTx(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT level FROM route_permissions").
		WithArgs("/api/v1/minutes", "board").
		WillReturnRows(sqlmock.NewRows([]string{"level"}).AddRow("read"))
	mock.ExpectExec("INSERT INTO route_permissions").
		WithArgs("/api/v1/minutes", "board", "write", "steward-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_entries").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "steward-1", "steward", "permission.override",
			"route=/api/v1/minutes role=board read->write", "10.0.0.9").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	repo := NewPermissionRepository(db)
	err = repo.SetOverride(context.Background(), "/api/v1/minutes", model.RoleBoard, model.LevelWrite,
		"steward-1", model.RoleSteward, "10.0.0.9")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOverrideRollsBackWhenAuditInsertFails(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT level FROM route_permissions").
		WithArgs("/api/v1/minutes", "board").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO route_permissions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_entries").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	repo := NewPermissionRepository(db)
	err = repo.SetOverride(context.Background(), "/api/v1/minutes", model.RoleBoard, model.LevelWrite,
		"steward-1", model.RoleSteward, "10.0.0.9")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
