package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldquote/backend/internal/services"
)

// InvoiceHandler handles REST requests for invoices.
type InvoiceHandler struct {
	invoiceService services.IInvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceService services.IInvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// GetByToken handles GET /v1/invoice/:token. This is the unauthenticated
// client-facing view; the token is the only credential.
func (h *InvoiceHandler) GetByToken(c *gin.Context) {
	invoice, err := h.invoiceService.FindByAccessToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// List handles GET /v1/invoice
func (h *InvoiceHandler) List(c *gin.Context) {
	limit, offset := listPagination(c)
	invoices, err := h.invoiceService.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

// GetByProject handles GET /v1/project/:id/invoice
func (h *InvoiceHandler) GetByProject(c *gin.Context) {
	invoice, err := h.invoiceService.FindByProjectID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}
