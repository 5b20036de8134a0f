package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldquote/backend/internal/api/middleware"
	"fieldquote/backend/internal/models"
	"fieldquote/backend/internal/services"
)

// QuotationHandler handles REST requests for the quotation lifecycle.
type QuotationHandler struct {
	quotationService services.IQuotationService
}

// NewQuotationHandler creates a new QuotationHandler.
func NewQuotationHandler(quotationService services.IQuotationService) *QuotationHandler {
	return &QuotationHandler{quotationService: quotationService}
}

// Create handles POST /v1/quotation
func (h *QuotationHandler) Create(c *gin.Context) {
	var input models.QuotationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	actorID := c.GetString(middleware.ContextKeyActorID)
	quotation, warning, err := h.quotationService.Create(c.Request.Context(), actorID, &input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := gin.H{"quotation": quotation}
	if warning != "" {
		resp["warning"] = warning
	}
	c.JSON(http.StatusCreated, resp)
}

// List handles GET /v1/quotation
func (h *QuotationHandler) List(c *gin.Context) {
	limit, offset := listPagination(c)
	quotations, err := h.quotationService.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotations": quotations})
}

// Get handles GET /v1/quotation/:number
func (h *QuotationHandler) Get(c *gin.Context) {
	quotation, err := h.quotationService.FindByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotation)
}

// Update handles PATCH /v1/quotation/:number
func (h *QuotationHandler) Update(c *gin.Context) {
	var patch models.QuotationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	actorID := c.GetString(middleware.ContextKeyActorID)
	quotation, warning, err := h.quotationService.Update(c.Request.Context(), actorID, c.Param("number"), &patch)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := gin.H{"quotation": quotation}
	if warning != "" {
		resp["warning"] = warning
	}
	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /v1/quotation/:number
func (h *QuotationHandler) Delete(c *gin.Context) {
	actorID := c.GetString(middleware.ContextKeyActorID)
	if err := h.quotationService.Delete(c.Request.Context(), actorID, c.Param("number")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
