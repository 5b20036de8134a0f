package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// listPagination reads limit/offset query parameters for list endpoints.
// Unparseable or out-of-range values fall back to the defaults.
func listPagination(c *gin.Context) (limit, offset int64) {
	limit = defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			offset = v
		}
	}
	return limit, offset
}
