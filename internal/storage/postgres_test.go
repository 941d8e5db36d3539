package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtracker/internal/core"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewWithDB(sqlx.NewDb(db, "postgres"), DriverPostgres)
	require.NoError(t, err)
	return s, mock
}

func TestPostgres_InsertInstanceIfAbsentUsesDollarPlaceholders(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO bill_instances (id,bill_id,user_id,period,amount_cents,due_date,description,is_paid,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) ON CONFLICT (bill_id, period) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "bill-1", "user-1", "2024-12", int64(5000), "2025-01-01", "", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	i := core.BillInstance{BillID: "bill-1", UserID: "user-1", Period: "2024-12", Amount: core.Money{Cents: 5000}, DueDate: "2025-01-01"}
	created, err := s.InsertInstanceIfAbsent(context.Background(), &i)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetProfileComputesBillCount(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "street", "city", "country", "color", "bill_count", "created_at", "updated_at"}).
		AddRow("p-1", "user-1", "Home", "1 Main", "Rome", "IT", "", int64(3), int64(1700000000000), int64(1700000000000))
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM bills b WHERE b.profile_id = p.id) AS bill_count")).
		WithArgs("p-1").
		WillReturnRows(rows)

	p, err := s.GetProfile(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.BillCount)
	assert.Equal(t, core.DefaultProfileColor, p.Color)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteBillRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)
	now := int64(1730800800000)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM bill_instances WHERE bill_id = $1 RETURNING id, bill_id")).
		WithArgs("bill-1").
		WillReturnRows(deletedInstanceRows().
			AddRow("inst-1", "bill-1", "user-1", "2024-11", 5000, "2024-12-01", "", false, now, now))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bills WHERE id = $1")).
		WithArgs("bill-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	removed, err := s.DeleteBill(context.Background(), "bill-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Nil(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func deletedInstanceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "bill_id", "user_id", "period", "amount_cents",
		"due_date", "description", "is_paid", "created_at", "updated_at",
	})
}

func TestPostgres_DeleteProfileReturnsRemovedInstances(t *testing.T) {
	s, mock := newMockStore(t)
	now := int64(1730800800000)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM bill_instances WHERE bill_id IN (SELECT id FROM bills WHERE profile_id = $1) RETURNING id")).
		WithArgs("profile-1").
		WillReturnRows(deletedInstanceRows().
			AddRow("inst-1", "bill-1", "user-1", "2024-11", 5000, "2024-12-01", "", false, now, now).
			AddRow("inst-2", "bill-2", "user-1", "2024-11", 1250, "2024-12-10", "late", true, now, now))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bills WHERE profile_id = $1")).
		WithArgs("profile-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM profiles WHERE id = $1")).
		WithArgs("profile-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := s.DeleteProfile(context.Background(), "profile-1")
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Equal(t, "inst-1", removed[0].ID)
	assert.Equal(t, "bill-2", removed[1].BillID)
	assert.Equal(t, int64(1250), removed[1].Amount.Cents)
	assert.True(t, removed[1].IsPaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
