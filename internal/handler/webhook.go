package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"payconfirm/internal/domain"
	"payconfirm/internal/service"
)

// MaxWebhookBody caps the size of an accepted webhook body.
const MaxWebhookBody = 64 << 10

// WebhookHandler handles rail webhook deliveries.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// WebhookResponse acknowledges an accepted delivery.
type WebhookResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"eventId,omitempty"`
	Handled  bool   `json:"handled"`
}

// Card handles POST /v1/webhooks/card
func (h *WebhookHandler) Card(c *gin.Context) {
	h.ingest(c, domain.RailCard)
}

// Gateway handles POST /v1/webhooks/gateway
func (h *WebhookHandler) Gateway(c *gin.Context) {
	h.ingest(c, domain.RailGateway)
}

func (h *WebhookHandler) ingest(c *gin.Context, kind domain.RailKind) {
	header, err := h.webhooks.SignatureHeader(kind)
	if err != nil {
		respondError(c, err)
		return
	}

	// The signature covers the exact bytes sent, so the body is never
	// decoded and re-encoded before verification.
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "webhook body too large"})
			return
		}
		respondError(c, fmt.Errorf("%w: unreadable body", service.ErrInvalidRequest))
		return
	}

	out, err := h.webhooks.Ingest(c.Request.Context(), kind, body, c.GetHeader(header))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, WebhookResponse{
		Received: true,
		EventID:  out.EventID,
		Handled:  out.Handled,
	})
}
