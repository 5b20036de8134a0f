package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fieldquote/backend/internal/api/middleware"
	"fieldquote/backend/internal/models"
	"fieldquote/backend/internal/services"
)

// Site photos stay well under this; anything larger is rejected before decode.
const maxImageUploadBytes = 20 << 20

// ProjectHandler handles REST requests for projects.
type ProjectHandler struct {
	projectService services.IProjectService
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService services.IProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List handles GET /v1/project
func (h *ProjectHandler) List(c *gin.Context) {
	limit, offset := listPagination(c)
	projects, err := h.projectService.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Get handles GET /v1/project/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projectService.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// Update handles PATCH /v1/project/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var patch models.ProjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	actorID := c.GetString(middleware.ContextKeyActorID)
	project, warning, err := h.projectService.Update(c.Request.Context(), actorID, c.Param("id"), &patch)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := gin.H{"project": project}
	if warning != "" {
		resp["warning"] = warning
	}
	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /v1/project/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	actorID := c.GetString(middleware.ContextKeyActorID)
	if err := h.projectService.Delete(c.Request.Context(), actorID, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AttachImage handles POST /v1/project/:id/image (multipart form, field "image")
func (h *ProjectHandler) AttachImage(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file required"})
		return
	}
	if fileHeader.Size > maxImageUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageUploadBytes))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}

	actorID := c.GetString(middleware.ContextKeyActorID)
	img, err := h.projectService.AttachImage(c.Request.Context(), actorID, c.Param("id"), data, fileHeader.Filename)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image": img})
}

// RemoveImage handles DELETE /v1/project/:id/image/*key. Object keys contain
// slashes, so the key is a wildcard segment.
func (h *ProjectHandler) RemoveImage(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image key required"})
		return
	}

	actorID := c.GetString(middleware.ContextKeyActorID)
	if err := h.projectService.RemoveImage(c.Request.Context(), actorID, c.Param("id"), key); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
