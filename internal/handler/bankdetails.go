package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"payconfirm/internal/domain"
)

// BankLookup resolves transfer instructions by currency.
type BankLookup interface {
	Lookup(currency string) (domain.BankDetails, bool)
	Currencies() []string
}

// BankDetailsHandler serves transfer instructions for the bank transfer rail.
type BankDetailsHandler struct {
	banks BankLookup
}

// NewBankDetailsHandler creates a new BankDetailsHandler.
func NewBankDetailsHandler(banks BankLookup) *BankDetailsHandler {
	return &BankDetailsHandler{banks: banks}
}

// List handles GET /v1/bank-details
func (h *BankDetailsHandler) List(c *gin.Context) {
	respondJSON(c, http.StatusOK, gin.H{"currencies": h.banks.Currencies()})
}

// Get handles GET /v1/bank-details/:currency
func (h *BankDetailsHandler) Get(c *gin.Context) {
	currency := strings.ToUpper(c.Param("currency"))

	details, ok := h.banks.Lookup(currency)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unsupported currency: " + currency})
		return
	}

	respondJSON(c, http.StatusOK, details)
}
