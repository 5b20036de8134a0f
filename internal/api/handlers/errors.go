package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldquote/backend/internal/ledger"
	"fieldquote/backend/internal/services"
)

// respondServiceError maps service-layer errors onto HTTP statuses. Anything
// unrecognized is an internal error and its detail stays out of the response.
func respondServiceError(c *gin.Context, err error) {
	var vErr *services.ValidationError
	var opErr *ledger.OverpaymentError
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrNoChanges):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No changes detected"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "The record was modified concurrently, please retry"})
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.As(err, &opErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": opErr.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
