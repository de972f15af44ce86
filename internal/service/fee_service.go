package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edupanel/school-admin-api/internal/models"
	appErrors "github.com/edupanel/school-admin-api/pkg/errors"
	"github.com/edupanel/school-admin-api/pkg/export"
)

type feeRepository interface {
	Invoices(ctx context.Context, filter models.InvoiceFilter, at time.Time) ([]models.InvoiceDetail, int, error)
	InvoiceByID(ctx context.Context, schoolID, id string) (*models.Invoice, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	RecordPayment(ctx context.Context, payment *models.PaymentTransaction) error
	Transactions(ctx context.Context, schoolID string, page, size int) ([]models.TransactionDetail, int, error)
	TransactionByID(ctx context.Context, schoolID, id string) (*models.TransactionDetail, error)
	CollectedBetween(ctx context.Context, schoolID string, from, to time.Time) (float64, error)
	OutstandingTotals(ctx context.Context, schoolID, yearID, termID string, at time.Time) (pending, overdue float64, err error)
	InvoiceTotals(ctx context.Context, schoolID, yearID, termID string) (invoiced, paid float64, err error)
	MethodDistribution(ctx context.Context, schoolID string, from, to time.Time) ([]models.PaymentMethodSummary, error)
	MonthlyTotals(ctx context.Context, schoolID string, since time.Time) (map[string]float64, error)
	FindStudent(ctx context.Context, schoolID, id string) (*models.Student, error)
	FindFeeCategory(ctx context.Context, schoolID, id string) (*models.FeeCategory, error)
}

type termRepository interface {
	ActiveYear(ctx context.Context, schoolID string) (*models.AcademicYear, error)
	ActiveTerm(ctx context.Context, schoolID, yearID string) (*models.AcademicTerm, error)
}

// FeeSummary is the fee dashboard payload.
type FeeSummary struct {
	AcademicYear string                        `json:"academic_year,omitempty"`
	AcademicTerm string                        `json:"academic_term,omitempty"`
	Stats        models.FeeStats               `json:"stats"`
	Methods      []models.PaymentMethodSummary `json:"payment_methods"`
	Trend        []models.MonthlyCollection    `json:"monthly_trend"`
}

// FeeServiceConfig tunes the fees module.
type FeeServiceConfig struct {
	PageSize        int
	SummaryCacheTTL time.Duration
	TrendMonths     int
}

// FeeService handles fee dashboard aggregation and payment workflows.
type FeeService struct {
	repo      feeRepository
	terms     termRepository
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       FeeServiceConfig
}

// NewFeeService constructs the service.
func NewFeeService(repo feeRepository, terms termRepository, audit auditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg FeeServiceConfig) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.TrendMonths <= 0 {
		cfg.TrendMonths = 12
	}
	svc := &FeeService{repo: repo, terms: terms, audit: audit, cache: cache, validator: validate, logger: logger, now: time.Now, cfg: cfg}
	svc.validator.RegisterValidation("paymethod", func(fl validator.FieldLevel) bool {
		switch models.PaymentMethod(strings.ToLower(fl.Field().String())) {
		case models.PaymentMethodCash, models.PaymentMethodBankTransfer, models.PaymentMethodMobileMoney,
			models.PaymentMethodCheque, models.PaymentMethodCard, models.PaymentMethodOnline:
			return true
		default:
			return false
		}
	})
	return svc
}

// activePeriod resolves the school's active year and term. A missing period
// is not an error: invoice-scoped metrics fall back to zero/empty.
func (s *FeeService) activePeriod(ctx context.Context, schoolID string) (*models.AcademicYear, *models.AcademicTerm) {
	year, err := s.terms.ActiveYear(ctx, schoolID)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Error("active year lookup failed", zap.String("school_id", schoolID), zap.Error(err))
		}
		return nil, nil
	}
	term, err := s.terms.ActiveTerm(ctx, schoolID, year.ID)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Error("active term lookup failed", zap.String("school_id", schoolID), zap.Error(err))
		}
		return year, nil
	}
	return year, term
}

// Summary composes the fee dashboard. Every aggregate fails open: a query
// error zeroes that aggregate, logs the cause and the dashboard still
// renders.
func (s *FeeService) Summary(ctx context.Context, schoolID string) *FeeSummary {
	cacheKey := fmt.Sprintf("fees:summary:%s", schoolID)
	if s.cache != nil {
		var cached FeeSummary
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached
		}
	}

	now := s.now().UTC()
	summary := &FeeSummary{
		Methods: []models.PaymentMethodSummary{},
		Trend:   s.emptyTrend(now),
	}

	year, term := s.activePeriod(ctx, schoolID)
	if year != nil {
		summary.AcademicYear = year.Name
	}
	if term != nil {
		summary.AcademicTerm = term.Name
	}

	if term != nil {
		if collected, err := s.repo.CollectedBetween(ctx, schoolID, term.StartDate, term.EndDate); err != nil {
			s.logger.Error("total collected degraded to zero", zap.String("school_id", schoolID), zap.Error(err))
		} else {
			summary.Stats.TotalCollected = collected
		}

		if pending, overdue, err := s.repo.OutstandingTotals(ctx, schoolID, year.ID, term.ID, now); err != nil {
			s.logger.Error("outstanding totals degraded to zero", zap.String("school_id", schoolID), zap.Error(err))
		} else {
			summary.Stats.PendingAmount = pending
			summary.Stats.OverdueAmount = overdue
		}

		if invoiced, paid, err := s.repo.InvoiceTotals(ctx, schoolID, year.ID, term.ID); err != nil {
			s.logger.Error("invoice totals degraded to zero", zap.String("school_id", schoolID), zap.Error(err))
		} else {
			summary.Stats.CollectionRate = collectionRate(invoiced, paid)
		}

		if methods, err := s.repo.MethodDistribution(ctx, schoolID, term.StartDate, term.EndDate); err != nil {
			s.logger.Error("method distribution degraded to empty", zap.String("school_id", schoolID), zap.Error(err))
		} else if methods != nil {
			summary.Methods = methods
		}
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if today, err := s.repo.CollectedBetween(ctx, schoolID, dayStart, dayStart.Add(24*time.Hour)); err != nil {
		s.logger.Error("today collection degraded to zero", zap.String("school_id", schoolID), zap.Error(err))
	} else {
		summary.Stats.TodayCollection = today
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	since := monthStart.AddDate(0, -(s.cfg.TrendMonths - 1), 0)
	if totals, err := s.repo.MonthlyTotals(ctx, schoolID, since); err != nil {
		s.logger.Error("monthly trend degraded to zeros", zap.String("school_id", schoolID), zap.Error(err))
	} else {
		summary.Trend = s.buildTrend(now, totals)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.SummaryCacheTTL); err != nil {
			s.logger.Warn("fee summary cache write failed", zap.Error(err))
		}
	}
	return summary
}

// emptyTrend produces the trailing window with every month zeroed.
func (s *FeeService) emptyTrend(now time.Time) []models.MonthlyCollection {
	return s.buildTrend(now, nil)
}

// buildTrend zero-fills the trailing months, oldest first, ending at the
// current month.
func (s *FeeService) buildTrend(now time.Time, totals map[string]float64) []models.MonthlyCollection {
	months := s.cfg.TrendMonths
	trend := make([]models.MonthlyCollection, 0, months)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := months - 1; i >= 0; i-- {
		bucket := monthStart.AddDate(0, -i, 0)
		trend = append(trend, models.MonthlyCollection{
			Label:  bucket.Format("Jan 2006"),
			Amount: totals[bucket.Format("2006-01")],
		})
	}
	return trend
}

func collectionRate(invoiced, paid float64) float64 {
	if invoiced <= 0 {
		return 0
	}
	return math.Round(paid/invoiced*1000) / 10
}

// InvoiceListQuery carries raw invoice filter values.
type InvoiceListQuery struct {
	Status   string
	Search   string
	DateFrom string
	DateTo   string
	Page     string
}

// ParseInvoiceFilter whitelists invoice filter values; invalid values are
// silently dropped.
func (s *FeeService) ParseInvoiceFilter(schoolID string, q InvoiceListQuery) models.InvoiceFilter {
	filter := models.InvoiceFilter{SchoolID: schoolID, Page: 1, PageSize: s.cfg.PageSize}

	switch models.InvoiceStatus(strings.ToLower(q.Status)) {
	case models.InvoiceStatusPending, models.InvoiceStatusPartial, models.InvoiceStatusPaid, models.InvoiceStatusOverdue:
		filter.Status = models.InvoiceStatus(strings.ToLower(q.Status))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		filter.Search = search
	}
	if from, err := time.Parse("2006-01-02", q.DateFrom); err == nil {
		filter.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", q.DateTo); err == nil {
		end := to.Add(24*time.Hour - time.Nanosecond)
		filter.DateTo = &end
	}
	if page, err := strconv.Atoi(q.Page); err == nil && page >= 1 {
		filter.Page = page
	}
	return filter
}

// Invoices lists the active period's invoices with derived display status.
// Without an active year/term the listing is empty rather than an error.
func (s *FeeService) Invoices(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, *models.Pagination, error) {
	year, term := s.activePeriod(ctx, filter.SchoolID)
	if year == nil || term == nil {
		return []models.InvoiceDetail{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
	}
	filter.YearID = year.ID
	filter.TermID = term.ID

	now := s.now().UTC()
	rows, total, err := s.repo.Invoices(ctx, filter, now)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	for i := range rows {
		rows[i].BalanceDue = rows[i].Balance()
		rows[i].CurrentStatus = rows[i].DisplayStatus(now)
	}
	return rows, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Transactions lists payment transactions, newest first.
func (s *FeeService) Transactions(ctx context.Context, schoolID string, page int) ([]models.TransactionDetail, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	rows, total, err := s.repo.Transactions(ctx, schoolID, page, s.cfg.PageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return rows, models.NewPagination(page, s.cfg.PageSize, total), nil
}

// TransactionsDataset assembles the full transaction log for CSV export.
func (s *FeeService) TransactionsDataset(ctx context.Context, schoolID string) (*export.Dataset, error) {
	const exportLimit = 10000
	rows, _, err := s.repo.Transactions(ctx, schoolID, 1, exportLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export transactions")
	}

	dataset := &export.Dataset{
		Headers: []string{"Reference", "Date", "Student", "Fee Category", "Method", "Status", "Amount"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, tx := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Reference":    tx.Reference,
			"Date":         tx.CreatedAt.Format("2006-01-02 15:04"),
			"Student":      tx.StudentName,
			"Fee Category": tx.FeeCategory,
			"Method":       string(tx.Method),
			"Status":       string(tx.Status),
			"Amount":       strconv.FormatFloat(tx.Amount, 'f', 2, 64),
		})
	}
	return dataset, nil
}

// Transaction returns one transaction for receipt rendering.
func (s *FeeService) Transaction(ctx context.Context, schoolID, id string) (*models.TransactionDetail, error) {
	detail, err := s.repo.TransactionByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transaction not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get transaction")
	}
	return detail, nil
}

// RecordPaymentRequest describes a payment submission.
type RecordPaymentRequest struct {
	StudentID     string  `json:"student_id" validate:"required"`
	InvoiceID     *string `json:"invoice_id"`
	FeeCategoryID string  `json:"fee_category_id" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Method        string  `json:"payment_method" validate:"required,paymethod"`
	Reference     string  `json:"transaction_reference"`
}

// RecordPayment persists a successful payment and applies it to the target
// invoice.
func (s *FeeService) RecordPayment(ctx context.Context, schoolID string, actor Actor, req RecordPaymentRequest) (*models.PaymentTransaction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	if _, err := s.repo.FindStudent(ctx, schoolID, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.repo.FindFeeCategory(ctx, schoolID, req.FeeCategoryID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee category")
	}
	if req.InvoiceID != nil {
		if _, err := s.repo.InvoiceByID(ctx, schoolID, *req.InvoiceID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
		}
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = fmt.Sprintf("TXN-%s", strings.ToUpper(uuid.NewString()[:8]))
	}

	payment := &models.PaymentTransaction{
		SchoolID:      schoolID,
		StudentID:     req.StudentID,
		InvoiceID:     req.InvoiceID,
		FeeCategoryID: req.FeeCategoryID,
		Amount:        req.Amount,
		Method:        models.PaymentMethod(strings.ToLower(req.Method)),
		Status:        models.TransactionStatusSuccess,
		Reference:     reference,
		RecordedBy:    actor.UserID,
	}
	if err := s.repo.RecordPayment(ctx, payment); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.writeAudit(ctx, schoolID, actor, models.AuditActionPaymentRecord, payment.ID, map[string]interface{}{
		"amount":    payment.Amount,
		"method":    payment.Method,
		"reference": payment.Reference,
	})
	s.invalidateSummary(ctx, schoolID)
	return payment, nil
}

// GenerateInvoiceRequest describes an invoice generation submission. A nil
// amount falls back to the fee category's default.
type GenerateInvoiceRequest struct {
	StudentID     string   `json:"student_id" validate:"required"`
	FeeCategoryID string   `json:"fee_category_id" validate:"required"`
	Amount        *float64 `json:"amount" validate:"omitempty,gt=0"`
	DueDate       string   `json:"due_date" validate:"required"`
}

// GenerateInvoice creates an invoice in the active year/term. Unlike the
// read side, generation requires an active period and fails without one.
func (s *FeeService) GenerateInvoice(ctx context.Context, schoolID string, actor Actor, req GenerateInvoiceRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must be YYYY-MM-DD")
	}

	year, term := s.activePeriod(ctx, schoolID)
	if year == nil || term == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no active academic year or term")
	}

	if _, err := s.repo.FindStudent(ctx, schoolID, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	category, err := s.repo.FindFeeCategory(ctx, schoolID, req.FeeCategoryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee category")
	}

	amount := category.DefaultAmount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invoice amount must be positive")
	}

	invoice := &models.Invoice{
		SchoolID:       schoolID,
		InvoiceNumber:  fmt.Sprintf("INV-%s-%s", s.now().UTC().Format("200601"), strings.ToUpper(uuid.NewString()[:6])),
		StudentID:      req.StudentID,
		AcademicYearID: year.ID,
		AcademicTermID: term.ID,
		FeeCategoryID:  req.FeeCategoryID,
		TotalAmount:    amount,
		PaidAmount:     0,
		Status:         models.InvoiceStatusPending,
		DueDate:        dueDate,
	}
	if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}

	s.writeAudit(ctx, schoolID, actor, models.AuditActionInvoiceGenerate, invoice.ID, map[string]interface{}{
		"invoice_number": invoice.InvoiceNumber,
		"amount":         invoice.TotalAmount,
	})
	s.invalidateSummary(ctx, schoolID)
	return invoice, nil
}

func (s *FeeService) writeAudit(ctx context.Context, schoolID string, actor Actor, action, id string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	var payload []byte
	if details != nil {
		payload, _ = json.Marshal(details)
	}
	entry := &models.AuditLog{
		SchoolID:   schoolID,
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "fees",
		ResourceID: &id,
		NewValues:  payload,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *FeeService) invalidateSummary(ctx context.Context, schoolID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("fees:summary:%s", schoolID)); err != nil {
		s.logger.Warn("fee summary cache invalidate failed", zap.Error(err))
	}
}
