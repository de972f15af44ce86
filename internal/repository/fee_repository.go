package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupanel/school-admin-api/internal/models"
)

// FeeRepository provides persistence for invoices and payment transactions.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository creates the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// Invoices returns one page of invoices with student and category names. The
// status dimension filters on the derived state (balance + due date), never on
// the stored column.
func (r *FeeRepository) Invoices(ctx context.Context, filter models.InvoiceFilter, at time.Time) ([]models.InvoiceDetail, int, error) {
	base := `FROM invoices i
JOIN students s ON s.id = i.student_id
JOIN fee_categories fc ON fc.id = i.fee_category_id
WHERE i.school_id = $1`
	args := []interface{}{filter.SchoolID}

	var conditions []string
	if filter.YearID != "" {
		args = append(args, filter.YearID)
		conditions = append(conditions, fmt.Sprintf("i.academic_year_id = $%d", len(args)))
	}
	if filter.TermID != "" {
		args = append(args, filter.TermID)
		conditions = append(conditions, fmt.Sprintf("i.academic_term_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, at.UTC())
		now := len(args)
		switch filter.Status {
		case models.InvoiceStatusPaid:
			conditions = append(conditions, "i.paid_amount >= i.total_amount")
		case models.InvoiceStatusOverdue:
			conditions = append(conditions, fmt.Sprintf("(i.paid_amount < i.total_amount AND i.due_date < $%d)", now))
		case models.InvoiceStatusPartial:
			conditions = append(conditions, fmt.Sprintf("(i.paid_amount > 0 AND i.paid_amount < i.total_amount AND i.due_date >= $%d)", now))
		case models.InvoiceStatusPending:
			conditions = append(conditions, fmt.Sprintf("(i.paid_amount = 0 AND i.due_date >= $%d)", now))
		}
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(i.invoice_number) LIKE $%d)", len(args), len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("i.created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("i.created_at <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT i.id, i.school_id, i.invoice_number, i.student_id, i.academic_year_id, i.academic_term_id,
i.fee_category_id, i.total_amount, i.paid_amount, i.status, i.due_date, i.created_at, i.updated_at,
s.full_name AS student_name, fc.name AS fee_category
%s ORDER BY i.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var invoices []models.InvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// InvoiceByID returns an invoice belonging to the school.
func (r *FeeRepository) InvoiceByID(ctx context.Context, schoolID, id string) (*models.Invoice, error) {
	query := `SELECT id, school_id, invoice_number, student_id, academic_year_id, academic_term_id,
fee_category_id, total_amount, paid_amount, status, due_date, created_at, updated_at
FROM invoices WHERE school_id = $1 AND id = $2`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, schoolID, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// CreateInvoice inserts a new invoice.
func (r *FeeRepository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	query := `INSERT INTO invoices (id, school_id, invoice_number, student_id, academic_year_id, academic_term_id, fee_category_id, total_amount, paid_amount, status, due_date, created_at, updated_at)
VALUES (:id, :school_id, :invoice_number, :student_id, :academic_year_id, :academic_term_id, :fee_category_id, :total_amount, :paid_amount, :status, :due_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// RecordPayment inserts the transaction and, when it targets an invoice,
// applies the amount and recomputes the stored invoice status from the new
// balance. Both writes share one database transaction.
func (r *FeeRepository) RecordPayment(ctx context.Context, payment *models.PaymentTransaction) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback()

	insert := `INSERT INTO payment_transactions (id, school_id, student_id, invoice_id, fee_category_id, amount, payment_method, status, transaction_reference, recorded_by, created_at)
VALUES (:id, :school_id, :student_id, :invoice_id, :fee_category_id, :amount, :payment_method, :status, :transaction_reference, :recorded_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	if payment.InvoiceID != nil && payment.Status == models.TransactionStatusSuccess {
		apply := `UPDATE invoices SET
    paid_amount = paid_amount + $3,
    status = CASE
        WHEN paid_amount + $3 >= total_amount THEN 'paid'
        WHEN due_date < $4 THEN 'overdue'
        WHEN paid_amount + $3 > 0 THEN 'partial'
        ELSE 'pending'
    END,
    updated_at = $4
WHERE school_id = $1 AND id = $2`
		res, err := tx.ExecContext(ctx, apply, payment.SchoolID, *payment.InvoiceID, payment.Amount, payment.CreatedAt)
		if err != nil {
			return fmt.Errorf("apply payment to invoice: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment tx: %w", err)
	}
	return nil
}

// Transactions returns one page of payment transactions, newest first.
func (r *FeeRepository) Transactions(ctx context.Context, schoolID string, page, size int) ([]models.TransactionDetail, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	offset := (page - 1) * size

	base := `FROM payment_transactions pt
JOIN students s ON s.id = pt.student_id
JOIN fee_categories fc ON fc.id = pt.fee_category_id
WHERE pt.school_id = $1`

	query := fmt.Sprintf(`SELECT pt.id, pt.school_id, pt.student_id, pt.invoice_id, pt.fee_category_id, pt.amount,
pt.payment_method, pt.status, pt.transaction_reference, pt.recorded_by, pt.created_at,
s.full_name AS student_name, fc.name AS fee_category
%s ORDER BY pt.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var transactions []models.TransactionDetail
	if err := r.db.SelectContext(ctx, &transactions, query, schoolID); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, schoolID); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	return transactions, total, nil
}

// TransactionByID returns a transaction with its joins for receipt rendering.
func (r *FeeRepository) TransactionByID(ctx context.Context, schoolID, id string) (*models.TransactionDetail, error) {
	query := `SELECT pt.id, pt.school_id, pt.student_id, pt.invoice_id, pt.fee_category_id, pt.amount,
pt.payment_method, pt.status, pt.transaction_reference, pt.recorded_by, pt.created_at,
s.full_name AS student_name, fc.name AS fee_category
FROM payment_transactions pt
JOIN students s ON s.id = pt.student_id
JOIN fee_categories fc ON fc.id = pt.fee_category_id
WHERE pt.school_id = $1 AND pt.id = $2`
	var detail models.TransactionDetail
	if err := r.db.GetContext(ctx, &detail, query, schoolID, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CollectedBetween sums successful transaction amounts in [from, to).
func (r *FeeRepository) CollectedBetween(ctx context.Context, schoolID string, from, to time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payment_transactions
WHERE school_id = $1 AND status = 'success' AND created_at >= $2 AND created_at < $3`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, schoolID, from.UTC(), to.UTC()); err != nil {
		return 0, fmt.Errorf("sum collected: %w", err)
	}
	return total, nil
}

// OutstandingTotals sums open balances split into pending (due today or
// later) and overdue (past due) buckets for the year/term.
func (r *FeeRepository) OutstandingTotals(ctx context.Context, schoolID, yearID, termID string, at time.Time) (pending, overdue float64, err error) {
	query := `SELECT
    COALESCE(SUM(CASE WHEN due_date >= $4 THEN total_amount - paid_amount ELSE 0 END), 0) AS pending,
    COALESCE(SUM(CASE WHEN due_date < $4 THEN total_amount - paid_amount ELSE 0 END), 0) AS overdue
FROM invoices
WHERE school_id = $1 AND academic_year_id = $2 AND academic_term_id = $3 AND paid_amount < total_amount`
	row := struct {
		Pending float64 `db:"pending"`
		Overdue float64 `db:"overdue"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, schoolID, yearID, termID, at.UTC()); err != nil {
		return 0, 0, fmt.Errorf("outstanding totals: %w", err)
	}
	return row.Pending, row.Overdue, nil
}

// InvoiceTotals sums invoiced and paid amounts for the year/term, feeding the
// collection rate.
func (r *FeeRepository) InvoiceTotals(ctx context.Context, schoolID, yearID, termID string) (invoiced, paid float64, err error) {
	query := `SELECT COALESCE(SUM(total_amount), 0) AS invoiced, COALESCE(SUM(paid_amount), 0) AS paid
FROM invoices
WHERE school_id = $1 AND academic_year_id = $2 AND academic_term_id = $3`
	row := struct {
		Invoiced float64 `db:"invoiced"`
		Paid     float64 `db:"paid"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, schoolID, yearID, termID); err != nil {
		return 0, 0, fmt.Errorf("invoice totals: %w", err)
	}
	return row.Invoiced, row.Paid, nil
}

// MethodDistribution aggregates successful transactions per payment method in
// [from, to), biggest amounts first.
func (r *FeeRepository) MethodDistribution(ctx context.Context, schoolID string, from, to time.Time) ([]models.PaymentMethodSummary, error) {
	query := `SELECT payment_method, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount
FROM payment_transactions
WHERE school_id = $1 AND status = 'success' AND created_at >= $2 AND created_at < $3
GROUP BY payment_method
ORDER BY amount DESC`
	var summaries []models.PaymentMethodSummary
	if err := r.db.SelectContext(ctx, &summaries, query, schoolID, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("method distribution: %w", err)
	}
	return summaries, nil
}

// MonthlyTotals returns successful collection sums grouped by calendar month
// since the given time. Months without transactions are absent; the service
// zero-fills the trailing window.
func (r *FeeRepository) MonthlyTotals(ctx context.Context, schoolID string, since time.Time) (map[string]float64, error) {
	query := `SELECT TO_CHAR(DATE_TRUNC('month', created_at), 'YYYY-MM') AS month, COALESCE(SUM(amount), 0) AS amount
FROM payment_transactions
WHERE school_id = $1 AND status = 'success' AND created_at >= $2
GROUP BY 1
ORDER BY 1`
	rows := []struct {
		Month  string  `db:"month"`
		Amount float64 `db:"amount"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, schoolID, since.UTC()); err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	totals := make(map[string]float64, len(rows))
	for _, row := range rows {
		totals[row.Month] = row.Amount
	}
	return totals, nil
}

// FindStudent confirms the student belongs to the school.
func (r *FeeRepository) FindStudent(ctx context.Context, schoolID, id string) (*models.Student, error) {
	var student models.Student
	err := r.db.GetContext(ctx, &student,
		"SELECT id, school_id, full_name, class_id FROM students WHERE school_id = $1 AND id = $2", schoolID, id)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// FindFeeCategory confirms the fee category belongs to the school.
func (r *FeeRepository) FindFeeCategory(ctx context.Context, schoolID, id string) (*models.FeeCategory, error) {
	var category models.FeeCategory
	err := r.db.GetContext(ctx, &category,
		"SELECT id, school_id, name, default_amount, created_at FROM fee_categories WHERE school_id = $1 AND id = $2", schoolID, id)
	if err != nil {
		return nil, err
	}
	return &category, nil
}
