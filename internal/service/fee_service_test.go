package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupanel/school-admin-api/internal/models"
	appErrors "github.com/edupanel/school-admin-api/pkg/errors"
)

type mockFeeRepo struct {
	invoices        []models.InvoiceDetail
	invoicesTotal   int
	invoicesErr     error
	invoiceByID     *models.Invoice
	invoiceErr      error
	createdInvoice  *models.Invoice
	createErr       error
	recordedPayment *models.PaymentTransaction
	recordErr       error
	transactions    []models.TransactionDetail
	txTotal         int
	txErr           error
	txByID          *models.TransactionDetail
	txByIDErr       error
	collected       float64
	collectedErr    error
	pending         float64
	overdue         float64
	outstandingErr  error
	invoiced        float64
	paid            float64
	totalsErr       error
	methods         []models.PaymentMethodSummary
	methodsErr      error
	monthly         map[string]float64
	monthlyErr      error
	student         *models.Student
	studentErr      error
	category        *models.FeeCategory
	categoryErr     error
}

func (m *mockFeeRepo) Invoices(ctx context.Context, filter models.InvoiceFilter, at time.Time) ([]models.InvoiceDetail, int, error) {
	if m.invoicesErr != nil {
		return nil, 0, m.invoicesErr
	}
	return m.invoices, m.invoicesTotal, nil
}

func (m *mockFeeRepo) InvoiceByID(ctx context.Context, schoolID, id string) (*models.Invoice, error) {
	if m.invoiceErr != nil {
		return nil, m.invoiceErr
	}
	return m.invoiceByID, nil
}

func (m *mockFeeRepo) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if m.createErr != nil {
		return m.createErr
	}
	invoice.ID = "generated"
	m.createdInvoice = invoice
	return nil
}

func (m *mockFeeRepo) RecordPayment(ctx context.Context, payment *models.PaymentTransaction) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	payment.ID = "generated"
	m.recordedPayment = payment
	return nil
}

func (m *mockFeeRepo) Transactions(ctx context.Context, schoolID string, page, size int) ([]models.TransactionDetail, int, error) {
	if m.txErr != nil {
		return nil, 0, m.txErr
	}
	return m.transactions, m.txTotal, nil
}

func (m *mockFeeRepo) TransactionByID(ctx context.Context, schoolID, id string) (*models.TransactionDetail, error) {
	if m.txByIDErr != nil {
		return nil, m.txByIDErr
	}
	return m.txByID, nil
}

func (m *mockFeeRepo) CollectedBetween(ctx context.Context, schoolID string, from, to time.Time) (float64, error) {
	if m.collectedErr != nil {
		return 0, m.collectedErr
	}
	return m.collected, nil
}

func (m *mockFeeRepo) OutstandingTotals(ctx context.Context, schoolID, yearID, termID string, at time.Time) (float64, float64, error) {
	if m.outstandingErr != nil {
		return 0, 0, m.outstandingErr
	}
	return m.pending, m.overdue, nil
}

func (m *mockFeeRepo) InvoiceTotals(ctx context.Context, schoolID, yearID, termID string) (float64, float64, error) {
	if m.totalsErr != nil {
		return 0, 0, m.totalsErr
	}
	return m.invoiced, m.paid, nil
}

func (m *mockFeeRepo) MethodDistribution(ctx context.Context, schoolID string, from, to time.Time) ([]models.PaymentMethodSummary, error) {
	if m.methodsErr != nil {
		return nil, m.methodsErr
	}
	return m.methods, nil
}

func (m *mockFeeRepo) MonthlyTotals(ctx context.Context, schoolID string, since time.Time) (map[string]float64, error) {
	if m.monthlyErr != nil {
		return nil, m.monthlyErr
	}
	return m.monthly, nil
}

func (m *mockFeeRepo) FindStudent(ctx context.Context, schoolID, id string) (*models.Student, error) {
	if m.studentErr != nil {
		return nil, m.studentErr
	}
	return m.student, nil
}

func (m *mockFeeRepo) FindFeeCategory(ctx context.Context, schoolID, id string) (*models.FeeCategory, error) {
	if m.categoryErr != nil {
		return nil, m.categoryErr
	}
	return m.category, nil
}

type mockTermRepo struct {
	year    *models.AcademicYear
	yearErr error
	term    *models.AcademicTerm
	termErr error
}

func (m *mockTermRepo) ActiveYear(ctx context.Context, schoolID string) (*models.AcademicYear, error) {
	if m.yearErr != nil {
		return nil, m.yearErr
	}
	return m.year, nil
}

func (m *mockTermRepo) ActiveTerm(ctx context.Context, schoolID, yearID string) (*models.AcademicTerm, error) {
	if m.termErr != nil {
		return nil, m.termErr
	}
	return m.term, nil
}

func activeTermFixture() *mockTermRepo {
	return &mockTermRepo{
		year: &models.AcademicYear{ID: "y1", SchoolID: "s1", Name: "2025/2026", Status: "active", IsCurrent: true},
		term: &models.AcademicTerm{
			ID: "t1", SchoolID: "s1", AcademicYearID: "y1", Name: "Term 3", Status: "active", IsCurrent: true,
			StartDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func newFeeService(repo *mockFeeRepo, terms *mockTermRepo, audit *mockAudit) *FeeService {
	svc := NewFeeService(repo, terms, audit, nil, nil, nil, FeeServiceConfig{PageSize: 10, TrendMonths: 12})
	svc.now = func() time.Time { return time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC) }
	return svc
}

func TestSummaryTrendZeroFillsTrailingYear(t *testing.T) {
	repo := &mockFeeRepo{monthly: map[string]float64{"2026-08": 500, "2026-02": 120}}
	svc := newFeeService(repo, activeTermFixture(), nil)

	summary := svc.Summary(context.Background(), "s1")
	require.Len(t, summary.Trend, 12)
	assert.Equal(t, "Sep 2025", summary.Trend[0].Label)
	assert.Equal(t, "Aug 2026", summary.Trend[11].Label)
	assert.Equal(t, 500.0, summary.Trend[11].Amount)
	assert.Equal(t, 120.0, summary.Trend[5].Amount)
	for _, i := range []int{0, 1, 2, 3, 4, 6, 7, 8, 9, 10} {
		assert.Zero(t, summary.Trend[i].Amount, "month %d should be zero", i)
	}
}

func TestSummaryNoActivePeriodYieldsZeroMetrics(t *testing.T) {
	repo := &mockFeeRepo{collected: 999, invoiced: 1000, paid: 500}
	terms := &mockTermRepo{yearErr: sql.ErrNoRows}
	svc := newFeeService(repo, terms, nil)

	summary := svc.Summary(context.Background(), "s1")
	assert.Empty(t, summary.AcademicYear)
	assert.Zero(t, summary.Stats.PendingAmount)
	assert.Zero(t, summary.Stats.OverdueAmount)
	assert.Zero(t, summary.Stats.CollectionRate)
	assert.Empty(t, summary.Methods)
	assert.Len(t, summary.Trend, 12)
}

func TestSummaryCollectionRate(t *testing.T) {
	repo := &mockFeeRepo{invoiced: 900, paid: 300}
	svc := newFeeService(repo, activeTermFixture(), nil)

	summary := svc.Summary(context.Background(), "s1")
	assert.Equal(t, 33.3, summary.Stats.CollectionRate)
}

func TestSummaryCollectionRateZeroWhenNothingInvoiced(t *testing.T) {
	repo := &mockFeeRepo{invoiced: 0, paid: 0}
	svc := newFeeService(repo, activeTermFixture(), nil)

	summary := svc.Summary(context.Background(), "s1")
	assert.Zero(t, summary.Stats.CollectionRate)
}

func TestSummaryAggregateFailureDegradesToZero(t *testing.T) {
	repo := &mockFeeRepo{collectedErr: errors.New("timeout"), pending: 800, overdue: 200}
	svc := newFeeService(repo, activeTermFixture(), nil)

	summary := svc.Summary(context.Background(), "s1")
	assert.Zero(t, summary.Stats.TotalCollected)
	assert.Zero(t, summary.Stats.TodayCollection)
	assert.Equal(t, 800.0, summary.Stats.PendingAmount)
	assert.Equal(t, 200.0, summary.Stats.OverdueAmount)
}

func TestInvoicesDeriveDisplayStatus(t *testing.T) {
	now := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	repo := &mockFeeRepo{
		invoices: []models.InvoiceDetail{
			{Invoice: models.Invoice{TotalAmount: 500, PaidAmount: 500, Status: models.InvoiceStatusPending, DueDate: now.AddDate(0, 1, 0)}},
			{Invoice: models.Invoice{TotalAmount: 500, PaidAmount: 100, Status: models.InvoiceStatusPending, DueDate: now.AddDate(0, -1, 0)}},
			{Invoice: models.Invoice{TotalAmount: 500, PaidAmount: 100, Status: models.InvoiceStatusPending, DueDate: now.AddDate(0, 1, 0)}},
			{Invoice: models.Invoice{TotalAmount: 500, PaidAmount: 0, Status: models.InvoiceStatusOverdue, DueDate: now.AddDate(0, 1, 0)}},
		},
		invoicesTotal: 4,
	}
	svc := newFeeService(repo, activeTermFixture(), nil)

	rows, pagination, err := svc.Invoices(context.Background(), models.InvoiceFilter{SchoolID: "s1", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, models.InvoiceStatusPaid, rows[0].CurrentStatus)
	assert.Equal(t, models.InvoiceStatusOverdue, rows[1].CurrentStatus)
	assert.Equal(t, models.InvoiceStatusPartial, rows[2].CurrentStatus)
	assert.Equal(t, models.InvoiceStatusPending, rows[3].CurrentStatus)
	assert.Equal(t, 400.0, rows[1].BalanceDue)
	assert.Equal(t, 4, pagination.TotalCount)
}

func TestInvoicesNoActivePeriodEmptyList(t *testing.T) {
	repo := &mockFeeRepo{invoices: []models.InvoiceDetail{{}}, invoicesTotal: 1}
	terms := &mockTermRepo{yearErr: sql.ErrNoRows}
	svc := newFeeService(repo, terms, nil)

	rows, pagination, err := svc.Invoices(context.Background(), models.InvoiceFilter{SchoolID: "s1", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, pagination.TotalCount)
}

func TestParseInvoiceFilterDropsInvalidValues(t *testing.T) {
	svc := newFeeService(&mockFeeRepo{}, activeTermFixture(), nil)

	filter := svc.ParseInvoiceFilter("s1", InvoiceListQuery{
		Status:   "cancelled",
		DateFrom: "30-08-2026",
		DateTo:   "soon",
		Page:     "-2",
	})
	assert.Empty(t, filter.Status)
	assert.Nil(t, filter.DateFrom)
	assert.Nil(t, filter.DateTo)
	assert.Equal(t, 1, filter.Page)
}

func TestRecordPaymentGeneratesReference(t *testing.T) {
	repo := &mockFeeRepo{
		student:  &models.Student{ID: "st1", SchoolID: "s1"},
		category: &models.FeeCategory{ID: "fc1", SchoolID: "s1", Name: "Tuition"},
	}
	audit := &mockAudit{}
	svc := newFeeService(repo, activeTermFixture(), audit)

	payment, err := svc.RecordPayment(context.Background(), "s1", Actor{UserID: "u1"}, RecordPaymentRequest{
		StudentID:     "st1",
		FeeCategoryID: "fc1",
		Amount:        150,
		Method:        "CASH",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, payment.Reference)
	assert.Equal(t, models.PaymentMethodCash, payment.Method)
	assert.Equal(t, models.TransactionStatusSuccess, payment.Status)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionPaymentRecord, audit.entries[0].Action)
}

func TestRecordPaymentRejectsUnknownMethod(t *testing.T) {
	svc := newFeeService(&mockFeeRepo{}, activeTermFixture(), nil)

	_, err := svc.RecordPayment(context.Background(), "s1", Actor{UserID: "u1"}, RecordPaymentRequest{
		StudentID:     "st1",
		FeeCategoryID: "fc1",
		Amount:        150,
		Method:        "barter",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRecordPaymentUnknownStudent(t *testing.T) {
	repo := &mockFeeRepo{studentErr: sql.ErrNoRows}
	audit := &mockAudit{}
	svc := newFeeService(repo, activeTermFixture(), audit)

	_, err := svc.RecordPayment(context.Background(), "s1", Actor{UserID: "u1"}, RecordPaymentRequest{
		StudentID:     "ghost",
		FeeCategoryID: "fc1",
		Amount:        150,
		Method:        "cash",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Empty(t, audit.entries)
}

func TestGenerateInvoiceDefaultsAmountFromCategory(t *testing.T) {
	repo := &mockFeeRepo{
		student:  &models.Student{ID: "st1", SchoolID: "s1"},
		category: &models.FeeCategory{ID: "fc1", SchoolID: "s1", Name: "Tuition", DefaultAmount: 750},
	}
	svc := newFeeService(repo, activeTermFixture(), &mockAudit{})

	invoice, err := svc.GenerateInvoice(context.Background(), "s1", Actor{UserID: "u1"}, GenerateInvoiceRequest{
		StudentID:     "st1",
		FeeCategoryID: "fc1",
		DueDate:       "2026-10-01",
	})
	require.NoError(t, err)
	assert.Equal(t, 750.0, invoice.TotalAmount)
	assert.Equal(t, models.InvoiceStatusPending, invoice.Status)
	assert.Equal(t, "y1", invoice.AcademicYearID)
	assert.Equal(t, "t1", invoice.AcademicTermID)
	assert.NotEmpty(t, invoice.InvoiceNumber)
}

func TestGenerateInvoiceRequiresActivePeriod(t *testing.T) {
	repo := &mockFeeRepo{student: &models.Student{ID: "st1"}, category: &models.FeeCategory{ID: "fc1"}}
	terms := &mockTermRepo{yearErr: sql.ErrNoRows}
	svc := newFeeService(repo, terms, nil)

	_, err := svc.GenerateInvoice(context.Background(), "s1", Actor{UserID: "u1"}, GenerateInvoiceRequest{
		StudentID:     "st1",
		FeeCategoryID: "fc1",
		DueDate:       "2026-10-01",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTransactionsDataset(t *testing.T) {
	repo := &mockFeeRepo{
		transactions: []models.TransactionDetail{
			{
				PaymentTransaction: models.PaymentTransaction{
					Reference: "TXN-11AA22BB",
					Amount:    320.5,
					Method:    models.PaymentMethodBankTransfer,
					Status:    models.TransactionStatusSuccess,
					CreatedAt: time.Date(2026, 7, 4, 9, 30, 0, 0, time.UTC),
				},
				StudentName: "John Okello",
				FeeCategory: "Library",
			},
		},
		txTotal: 1,
	}
	svc := newFeeService(repo, activeTermFixture(), nil)

	dataset, err := svc.TransactionsDataset(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, dataset.Rows, 1)
	assert.Equal(t, "TXN-11AA22BB", dataset.Rows[0]["Reference"])
	assert.Equal(t, "320.50", dataset.Rows[0]["Amount"])
	assert.Equal(t, "John Okello", dataset.Rows[0]["Student"])
}
