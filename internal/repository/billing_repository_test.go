package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/maktab-hq/maktab-api/internal/models"
)

func newBillingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBillingRepositoryCreateAndFindMaster(t *testing.T) {
	db, mock, cleanup := newBillingRepoMock(t)
	defer cleanup()
	repo := NewBillingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO billing_masters")).
		WithArgs(sqlmock.AnyArg(), "campus-1", "student-1", 6, 2026, 900.0, 500.0, 150.0, 25.0, 0.0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	master := &models.BillingMaster{
		CampusID:     "campus-1",
		StudentID:    "student-1",
		Month:        6,
		Year:         2026,
		TuitionFee:   900,
		AdmissionFee: 500,
		MiscCharges:  150,
		FineCharges:  25,
	}
	require.NoError(t, repo.CreateMaster(context.Background(), master))
	require.NotEmpty(t, master.ID)

	rows := sqlmock.NewRows([]string{"id", "campus_id", "student_id", "month", "year", "tuition_fee", "admission_fee", "misc_charges", "fine_charges", "previous_dues", "created_at", "updated_at"}).
		AddRow(master.ID, "campus-1", "student-1", 6, 2026, 900.0, 500.0, 150.0, 25.0, 0.0, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, campus_id, student_id, month, year, tuition_fee, admission_fee, misc_charges, fine_charges, previous_dues, created_at, updated_at FROM billing_masters WHERE student_id = $1 AND month = $2 AND year = $3")).
		WithArgs("student-1", 6, 2026).
		WillReturnRows(rows)

	fetched, err := repo.FindMaster(context.Background(), "student-1", models.Period{Month: time.June, Year: 2026})
	require.NoError(t, err)
	require.Equal(t, master.ID, fetched.ID)
	require.InDelta(t, 1575, fetched.TotalPayable(), 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingRepositoryLatestMasterBeforeNone(t *testing.T) {
	db, mock, cleanup := newBillingRepoMock(t)
	defer cleanup()
	repo := NewBillingRepository(db)

	mock.ExpectQuery("SELECT .+ FROM billing_masters").
		WithArgs("student-1", 2026, 6).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	master, err := repo.LatestMasterBefore(context.Background(), "student-1", models.Period{Month: time.June, Year: 2026})
	require.NoError(t, err)
	require.Nil(t, master)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingRepositoryPaidTotal(t *testing.T) {
	db, mock, cleanup := newBillingRepoMock(t)
	defer cleanup()
	repo := NewBillingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount_paid), 0) FROM billing_transactions WHERE master_id = $1")).
		WithArgs("master-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1400.0))

	total, err := repo.PaidTotal(context.Background(), "master-1")
	require.NoError(t, err)
	require.InDelta(t, 1400, total, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingRepositoryCreateTransactionAndList(t *testing.T) {
	db, mock, cleanup := newBillingRepoMock(t)
	defer cleanup()
	repo := NewBillingRepository(db)

	receivedBy := "user-1"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO billing_transactions")).
		WithArgs(sqlmock.AnyArg(), "master-1", 500.0, sqlmock.AnyArg(), "user-1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	txn := &models.BillingTransaction{
		MasterID:   "master-1",
		AmountPaid: 500,
		ReceivedBy: &receivedBy,
	}
	require.NoError(t, repo.CreateTransaction(context.Background(), txn))
	require.False(t, txn.PaidAt.IsZero())

	rows := sqlmock.NewRows([]string{"id", "master_id", "amount_paid", "paid_at", "received_by", "remarks", "created_at"}).
		AddRow(txn.ID, "master-1", 500.0, txn.PaidAt, "user-1", nil, txn.CreatedAt)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, master_id, amount_paid, paid_at, received_by, remarks, created_at")).
		WithArgs("master-1").
		WillReturnRows(rows)

	txns, err := repo.ListTransactions(context.Background(), "master-1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.InDelta(t, 500, txns[0].AmountPaid, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingRepositoryMonthlyRevenueScoped(t *testing.T) {
	db, mock, cleanup := newBillingRepoMock(t)
	defer cleanup()
	repo := NewBillingRepository(db)

	from := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"month", "year", "collected"}).
		AddRow(7, 2026, 118000.0).
		AddRow(8, 2026, 120500.0)
	mock.ExpectQuery("SELECT EXTRACT.+ FROM billing_transactions").
		WithArgs(from, "campus-1").
		WillReturnRows(rows)

	points, err := repo.MonthlyRevenue(context.Background(), models.ScopeForCampus("campus-1"), from)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, 8, points[1].Month)
	require.InDelta(t, 120500, points[1].Collected, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}
