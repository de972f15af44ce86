package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin               = "LOGIN"
	AuditActionAnnouncementCreate  = "ANNOUNCEMENT_CREATE"
	AuditActionAnnouncementUpdate  = "ANNOUNCEMENT_UPDATE"
	AuditActionAnnouncementDelete  = "ANNOUNCEMENT_DELETE"
	AuditActionAnnouncementPublish = "ANNOUNCEMENT_PUBLISH"
	AuditActionAnnouncementHide    = "ANNOUNCEMENT_UNPUBLISH"
	AuditActionAnnouncementArchive = "ANNOUNCEMENT_ARCHIVE"
	AuditActionPaymentRecord       = "PAYMENT_RECORD"
	AuditActionInvoiceGenerate     = "INVOICE_GENERATE"
)

// AuditLog represents an audit trail record. Writes are fire-and-forget:
// failures never abort the mutation they describe.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
