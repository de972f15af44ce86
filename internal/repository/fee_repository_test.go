package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupanel/school-admin-api/internal/models"
)

func TestInvoicesOverdueFilterUsesDerivedState(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	at := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "school_id", "invoice_number", "student_id", "academic_year_id", "academic_term_id", "fee_category_id", "total_amount", "paid_amount", "status", "due_date", "created_at", "updated_at", "student_name", "fee_category"}).
		AddRow("i1", "s1", "INV-202605-ABC123", "st1", "y1", "t1", "fc1", 500.0, 100.0, "partial", at.AddDate(0, -1, 0), at, at, "Jane Doe", "Tuition")

	mock.ExpectQuery("SELECT i.id, i.school_id, i.invoice_number").
		WithArgs("s1", "y1", "t1", at).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM invoices i")).
		WithArgs("s1", "y1", "t1", at).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	invoices, total, err := repo.Invoices(context.Background(), models.InvoiceFilter{
		SchoolID: "s1",
		YearID:   "y1",
		TermID:   "t1",
		Status:   models.InvoiceStatusOverdue,
		Page:     1,
		PageSize: 10,
	}, at)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Jane Doe", invoices[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentAppliesToInvoice(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	invoiceID := "i1"
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE invoices SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := &models.PaymentTransaction{
		SchoolID:      "s1",
		StudentID:     "st1",
		InvoiceID:     &invoiceID,
		FeeCategoryID: "fc1",
		Amount:        250,
		Method:        models.PaymentMethodCash,
		Status:        models.TransactionStatusSuccess,
		Reference:     "TXN-AB12CD34",
		RecordedBy:    "u1",
	}
	require.NoError(t, repo.RecordPayment(context.Background(), payment))
	assert.NotEmpty(t, payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentRollsBackOnMissingInvoice(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	invoiceID := "missing"
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE invoices SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RecordPayment(context.Background(), &models.PaymentTransaction{
		SchoolID:      "s1",
		StudentID:     "st1",
		InvoiceID:     &invoiceID,
		FeeCategoryID: "fc1",
		Amount:        250,
		Method:        models.PaymentMethodCash,
		Status:        models.TransactionStatusSuccess,
		Reference:     "TXN-DEADBEEF",
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentWithoutInvoiceSkipsApply(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.RecordPayment(context.Background(), &models.PaymentTransaction{
		SchoolID:      "s1",
		StudentID:     "st1",
		FeeCategoryID: "fc1",
		Amount:        100,
		Method:        models.PaymentMethodMobileMoney,
		Status:        models.TransactionStatusSuccess,
		Reference:     "TXN-00FF00FF",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutstandingTotalsSplitsOnDueDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	at := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"pending", "overdue"}).AddRow(1200.0, 450.0)
	mock.ExpectQuery("SELECT\\s+COALESCE\\(SUM\\(CASE WHEN due_date").
		WithArgs("s1", "y1", "t1", at).
		WillReturnRows(rows)

	pending, overdue, err := repo.OutstandingTotals(context.Background(), "s1", "y1", "t1", at)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, pending)
	assert.Equal(t, 450.0, overdue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonthlyTotalsKeyedByMonth(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"month", "amount"}).
		AddRow("2025-06", 300.0).
		AddRow("2026-01", 150.0)
	mock.ExpectQuery("SELECT TO_CHAR\\(DATE_TRUNC").
		WithArgs("s1", since).
		WillReturnRows(rows)

	totals, err := repo.MonthlyTotals(context.Background(), "s1", since)
	require.NoError(t, err)
	assert.Equal(t, 300.0, totals["2025-06"])
	assert.Equal(t, 150.0, totals["2026-01"])
	assert.Len(t, totals, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectedBetween(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 3, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM payment_transactions")).
		WithArgs("s1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(875.5))

	total, err := repo.CollectedBetween(context.Background(), "s1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 875.5, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
