package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"go-member-portal/internal/model"
)

func TestAuditAppend(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entry := model.AuditEntry{
		ID:         "01JC0000000000000000000000",
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Actor:      "user-7",
		Role:       "board",
		Action:     model.AuditActionElevate,
		Detail:     "window=2h",
		ClientIP:   "192.0.2.1",
	}

	mock.ExpectExec("INSERT INTO audit_entries").
		WithArgs(entry.ID, entry.OccurredAt, entry.Actor, entry.Role, entry.Action, entry.Detail, entry.ClientIP).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewAuditRepository(db)
	require.NoError(t, repo.Append(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditListFiltersAndPaging(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM audit_entries WHERE actor = \$1 AND action = \$2`).
		WithArgs("user-7", "elevate").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT id, occurred_at, actor, role, action, detail, client_ip").
		WithArgs("user-7", "elevate", 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "occurred_at", "actor", "role", "action", "detail", "client_ip"}).
			AddRow("01JC1", time.Now().UTC(), "user-7", "board", "elevate", "", ""))

	repo := NewAuditRepository(db)
	entries, meta, err := repo.List(context.Background(), model.AuditQuery{
		Actor:  "user-7",
		Action: "elevate",
		Page:   2,
		Limit:  2,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 3, meta.Total)
	require.Equal(t, 2, meta.TotalPages)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditListRejectsBadTimestamps(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAuditRepository(db)
	_, _, err = repo.List(context.Background(), model.AuditQuery{From: "yesterday"})
	require.ErrorIs(t, err, model.ErrInvalidInput)
}
