package models

import "time"

// InvoiceStatus is the stored invoice state. Display status is always derived
// from balance and due date; the stored column is only recomputed on payment.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// Invoice represents a billed amount for a student within a year/term.
type Invoice struct {
	ID             string        `db:"id" json:"id"`
	SchoolID       string        `db:"school_id" json:"school_id"`
	InvoiceNumber  string        `db:"invoice_number" json:"invoice_number"`
	StudentID      string        `db:"student_id" json:"student_id"`
	AcademicYearID string        `db:"academic_year_id" json:"academic_year_id"`
	AcademicTermID string        `db:"academic_term_id" json:"academic_term_id"`
	FeeCategoryID  string        `db:"fee_category_id" json:"fee_category_id"`
	TotalAmount    float64       `db:"total_amount" json:"total_amount"`
	PaidAmount     float64       `db:"paid_amount" json:"paid_amount"`
	Status         InvoiceStatus `db:"status" json:"status"`
	DueDate        time.Time     `db:"due_date" json:"due_date"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Balance is the outstanding amount on the invoice.
func (i *Invoice) Balance() float64 {
	return i.TotalAmount - i.PaidAmount
}

// DisplayStatus resolves the user-facing status from balance and due date,
// regardless of the stored column.
func (i *Invoice) DisplayStatus(at time.Time) InvoiceStatus {
	switch {
	case i.Balance() <= 0:
		return InvoiceStatusPaid
	case i.DueDate.Before(at):
		return InvoiceStatusOverdue
	case i.PaidAmount > 0:
		return InvoiceStatusPartial
	default:
		return InvoiceStatusPending
	}
}

// InvoiceDetail joins the student onto the invoice for listing.
type InvoiceDetail struct {
	Invoice
	StudentName   string        `db:"student_name" json:"student_name"`
	FeeCategory   string        `db:"fee_category" json:"fee_category"`
	BalanceDue    float64       `db:"-" json:"balance"`
	CurrentStatus InvoiceStatus `db:"-" json:"display_status"`
}

// InvoiceFilter captures validated invoice listing criteria.
type InvoiceFilter struct {
	SchoolID string
	YearID   string
	TermID   string
	Status   InvoiceStatus
	Search   string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

// PaymentMethod is the enumerated set of accepted payment channels.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodOnline       PaymentMethod = "online"
)

// TransactionStatus is the state of a payment transaction.
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// PaymentTransaction records a single payment event.
type PaymentTransaction struct {
	ID            string            `db:"id" json:"id"`
	SchoolID      string            `db:"school_id" json:"school_id"`
	StudentID     string            `db:"student_id" json:"student_id"`
	InvoiceID     *string           `db:"invoice_id" json:"invoice_id,omitempty"`
	FeeCategoryID string            `db:"fee_category_id" json:"fee_category_id"`
	Amount        float64           `db:"amount" json:"amount"`
	Method        PaymentMethod     `db:"payment_method" json:"payment_method"`
	Status        TransactionStatus `db:"status" json:"status"`
	Reference     string            `db:"transaction_reference" json:"transaction_reference"`
	RecordedBy    string            `db:"recorded_by" json:"recorded_by"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// TransactionDetail joins the student onto a transaction for listing.
type TransactionDetail struct {
	PaymentTransaction
	StudentName string `db:"student_name" json:"student_name"`
	FeeCategory string `db:"fee_category" json:"fee_category"`
}

// FeeCategory names a type of charge with its default amount.
type FeeCategory struct {
	ID            string    `db:"id" json:"id"`
	SchoolID      string    `db:"school_id" json:"school_id"`
	Name          string    `db:"name" json:"name"`
	DefaultAmount float64   `db:"default_amount" json:"default_amount"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// FeeStats holds the fee dashboard tiles for the active term.
type FeeStats struct {
	TotalCollected  float64 `json:"total_collected"`
	PendingAmount   float64 `json:"pending_amount"`
	OverdueAmount   float64 `json:"overdue_amount"`
	TodayCollection float64 `json:"today_collection"`
	CollectionRate  float64 `json:"collection_rate"`
}

// PaymentMethodSummary aggregates transactions per method.
type PaymentMethodSummary struct {
	Method PaymentMethod `db:"payment_method" json:"payment_method"`
	Count  int           `db:"count" json:"count"`
	Amount float64       `db:"amount" json:"amount"`
}

// MonthlyCollection is one bucket of the trailing twelve month trend.
type MonthlyCollection struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}
