package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"payconfirm/internal/domain"
	"payconfirm/internal/middleware"
	"payconfirm/internal/service"
)

// PaymentHandler handles HTTP requests for payment confirmation.
type PaymentHandler struct {
	confirmations *service.ConfirmationService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(confirmations *service.ConfirmationService) *PaymentHandler {
	return &PaymentHandler{confirmations: confirmations}
}

// ConfirmResponse is the HTTP response for confirmation operations.
type ConfirmResponse struct {
	Success     bool                `json:"success"`
	Status      string              `json:"status"`
	PaymentID   string              `json:"paymentId"`
	Final       bool                `json:"final"`
	Message     string              `json:"message"`
	BankDetails *domain.BankDetails `json:"bankDetails,omitempty"`
}

// LedgerEntryResponse is the HTTP response for the admin lookup.
type LedgerEntryResponse struct {
	PaymentID string    `json:"paymentId"`
	Rail      string    `json:"rail"`
	Status    string    `json:"status"`
	RawStatus string    `json:"rawStatus"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Confirm handles POST /v1/payments/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req service.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: invalid request body", service.ErrInvalidRequest))
		return
	}

	res, err := h.confirmations.Confirm(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondConfirm(c, res)
}

// AssertPaid handles POST /v1/payments/:id/assert-paid
func (h *PaymentHandler) AssertPaid(c *gin.Context) {
	var req service.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: invalid request body", service.ErrInvalidRequest))
		return
	}

	paymentID := c.Param("id")
	if req.PaymentID != "" && req.PaymentID != paymentID {
		respondError(c, fmt.Errorf("%w: paymentId does not match path", service.ErrInvalidRequest))
		return
	}
	req.PaymentID = paymentID

	res, err := h.confirmations.AssertPaid(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondConfirm(c, res)
}

// GetPayment handles GET /v1/admin/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	entry, err := h.confirmations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, LedgerEntryResponse{
		PaymentID: entry.PaymentID,
		Rail:      string(entry.Rail),
		Status:    string(entry.Status),
		RawStatus: entry.RawStatus,
		Version:   entry.Version,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	})
}

// respondConfirm writes a confirmation result. A non-final result is not
// stored for Idempotency-Key replay so that a poll under the same key
// reaches the rail again.
func respondConfirm(c *gin.Context, res *service.ConfirmResult) {
	if !res.Final() {
		middleware.SkipIdempotencyCache(c)
	}
	respondJSON(c, http.StatusOK, toConfirmResponse(res))
}

func toConfirmResponse(res *service.ConfirmResult) ConfirmResponse {
	return ConfirmResponse{
		Success:     res.Success(),
		Status:      string(res.Status),
		PaymentID:   res.PaymentID,
		Final:       res.Final(),
		Message:     statusMessage(res.Status),
		BankDetails: res.BankDetails,
	}
}

func statusMessage(status domain.ConfirmationStatus) string {
	switch status {
	case domain.StatusConfirmed:
		return "Payment confirmed"
	case domain.StatusAwaitingManualTransfer:
		return "Awaiting bank transfer"
	case domain.StatusFailed:
		return "Payment failed"
	default:
		return "Awaiting payment provider"
	}
}
