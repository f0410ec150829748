package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"sitebrief-backend-go/internal/core"
	"sitebrief-backend-go/internal/models"
)

// PromptHandler handles API endpoints for prompt lifecycle and sharing.
type PromptHandler struct {
	promptService core.PromptService
}

// NewPromptHandler creates a new PromptHandler.
func NewPromptHandler(ps core.PromptService) *PromptHandler {
	return &PromptHandler{promptService: ps}
}

// mapPromptErrorToStatus maps errors from core.PromptService to HTTP status codes.
func mapPromptErrorToStatus(c *gin.Context, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		statusCode = http.StatusUnauthorized
		errResponse = ErrorResponse{Error: core.ErrUnauthenticated.Error()}
	case errors.Is(err, core.ErrPromptNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrPromptNotFound.Error()}
	case errors.Is(err, core.ErrPermissionDenied):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.ErrPermissionDenied.Error()}
	case errors.Is(err, core.ErrInvalidShareMode):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrInvalidShareMode.Error()}
	default:
		log.Printf("Internal Server Error: %v", err)
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// CreatePrompt handles POST /prompts
func (h *PromptHandler) CreatePrompt(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	var req models.CreatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	createdPrompt, err := h.promptService.CreatePrompt(c.Request.Context(), userID.(string), req)
	if err != nil {
		mapPromptErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusCreated, createdPrompt)
}

// GetPrompt handles GET /prompts/:promptId. Authentication is optional here:
// anonymous callers can read public prompts, so the route uses the optional
// token middleware and an absent userID means an anonymous caller.
func (h *PromptHandler) GetPrompt(c *gin.Context) {
	callerID := c.GetString("userID")
	promptID := c.Param("promptId")
	if promptID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Prompt ID is required"})
		return
	}

	prompt, err := h.promptService.GetPrompt(c.Request.Context(), callerID, promptID)
	if err != nil {
		mapPromptErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

// GetAccess handles GET /prompts/:promptId/access. Also optionally
// authenticated, so the UI can ask "what may I do here" before rendering.
func (h *PromptHandler) GetAccess(c *gin.Context) {
	callerID := c.GetString("userID")
	promptID := c.Param("promptId")
	if promptID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Prompt ID is required"})
		return
	}

	access, err := h.promptService.GetAccess(c.Request.Context(), callerID, promptID)
	if err != nil {
		mapPromptErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, access)
}

// ListPrompts handles GET /prompts
func (h *PromptHandler) ListPrompts(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	prompts, err := h.promptService.ListPrompts(c.Request.Context(), userID.(string))
	if err != nil {
		mapPromptErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, prompts)
}

// UpdateSharing handles PATCH /prompts/:promptId/sharing
func (h *PromptHandler) UpdateSharing(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	promptID := c.Param("promptId")
	if promptID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Prompt ID is required"})
		return
	}

	var req models.UpdateSharingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	updatedPrompt, err := h.promptService.UpdateSharing(c.Request.Context(), userID.(string), promptID, req)
	if err != nil {
		mapPromptErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, updatedPrompt)
}

// DeletePrompt handles DELETE /prompts/:promptId
func (h *PromptHandler) DeletePrompt(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	promptID := c.Param("promptId")
	if promptID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Prompt ID is required"})
		return
	}

	if err := h.promptService.DeletePrompt(c.Request.Context(), userID.(string), promptID); err != nil {
		mapPromptErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Prompt deleted successfully"})
}

// RemoveCollaborator handles DELETE /prompts/:promptId/collaborators/:targetUserId
func (h *PromptHandler) RemoveCollaborator(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	promptID := c.Param("promptId")
	targetUserID := c.Param("targetUserId")
	if promptID == "" || targetUserID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Prompt ID and target user ID are required"})
		return
	}

	if err := h.promptService.RemoveCollaborator(c.Request.Context(), userID.(string), promptID, targetUserID); err != nil {
		mapPromptErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Collaborator removed"})
}
