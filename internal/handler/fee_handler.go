package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edupanel/school-admin-api/internal/service"
	appErrors "github.com/edupanel/school-admin-api/pkg/errors"
	"github.com/edupanel/school-admin-api/pkg/export"
	"github.com/edupanel/school-admin-api/pkg/response"
)

// FeeHandler wires HTTP endpoints to the fee service.
type FeeHandler struct {
	service *service.FeeService
	csv     *export.CSVExporter
	receipt *export.ReceiptExporter
}

// NewFeeHandler creates a new handler.
func NewFeeHandler(svc *service.FeeService) *FeeHandler {
	return &FeeHandler{
		service: svc,
		csv:     export.NewCSVExporter(),
		receipt: export.NewReceiptExporter(),
	}
}

// Summary godoc
// @Summary Fee dashboard
// @Description Collection totals, outstanding amounts, method distribution and the monthly trend
// @Tags Fees
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /fees/summary [get]
func (h *FeeHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, h.service.Summary(c.Request.Context(), claims.SchoolID), nil)
}

// Invoices godoc
// @Summary List invoices
// @Description Invoices of the active academic term with derived display status
// @Tags Fees
// @Produce json
// @Param status query string false "pending, partial, paid or overdue"
// @Param search query string false "Match on student name or invoice number"
// @Param date_from query string false "Due date lower bound (YYYY-MM-DD)"
// @Param date_to query string false "Due date upper bound (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /fees/invoices [get]
func (h *FeeHandler) Invoices(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := h.service.ParseInvoiceFilter(claims.SchoolID, service.InvoiceListQuery{
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Page:     c.Query("page"),
	})

	items, pagination, err := h.service.Invoices(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GenerateInvoice godoc
// @Summary Generate invoice
// @Description Creates an invoice for a student in the active year and term
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.GenerateInvoiceRequest true "Invoice payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/invoices [post]
func (h *FeeHandler) GenerateInvoice(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	invoice, err := h.service.GenerateInvoice(c.Request.Context(), claims.SchoolID, actorFromContext(c, claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// Transactions godoc
// @Summary List payment transactions
// @Tags Fees
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /fees/transactions [get]
func (h *FeeHandler) Transactions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	items, pagination, err := h.service.Transactions(c.Request.Context(), claims.SchoolID, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ExportTransactions godoc
// @Summary Export transactions as CSV
// @Tags Fees
// @Produce text/csv
// @Success 200 {string} string "CSV payload"
// @Failure 401 {object} response.Envelope
// @Router /fees/transactions/export [get]
func (h *FeeHandler) ExportTransactions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dataset, err := h.service.TransactionsDataset(c.Request.Context(), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.csv.Render(*dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="transactions.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}

// RecordPayment godoc
// @Summary Record payment
// @Description Records a payment transaction and applies it to the invoice atomically
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/payments [post]
func (h *FeeHandler) RecordPayment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	payment, err := h.service.RecordPayment(c.Request.Context(), claims.SchoolID, actorFromContext(c, claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Receipt godoc
// @Summary Download payment receipt
// @Tags Fees
// @Produce application/pdf
// @Param id path string true "Transaction ID"
// @Success 200 {string} string "PDF payload"
// @Failure 404 {object} response.Envelope
// @Router /fees/transactions/{id}/receipt [get]
func (h *FeeHandler) Receipt(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tx, err := h.service.Transaction(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.receipt.Render(export.Receipt{
		SchoolName:  claims.SchoolName,
		Reference:   tx.Reference,
		StudentName: tx.StudentName,
		FeeCategory: tx.FeeCategory,
		Method:      string(tx.Method),
		Amount:      tx.Amount,
		PaidAt:      tx.CreatedAt,
	})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, tx.Reference))
	c.Data(http.StatusOK, "application/pdf", payload)
}
