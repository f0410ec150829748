package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"sitebrief-backend-go/internal/core"
	"sitebrief-backend-go/internal/maps"
	"sitebrief-backend-go/internal/models"
)

// GenerationHandler handles brief generation dispatch and maps link expansion.
type GenerationHandler struct {
	generationService core.GenerationService
	expander          maps.LinkExpander // optional; nil disables /maps/expand
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(gs core.GenerationService, expander maps.LinkExpander) *GenerationHandler {
	return &GenerationHandler{generationService: gs, expander: expander}
}

// mapGenerationErrorToStatus maps generation service errors to HTTP status codes.
func mapGenerationErrorToStatus(c *gin.Context, err error) {
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
	case errors.Is(err, core.ErrGenerationQuotaExceeded):
		statusCode = http.StatusPaymentRequired
		errResponse = ErrorResponse{Error: core.ErrGenerationQuotaExceeded.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrGenerationUnavailable):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: core.ErrGenerationUnavailable.Error()}
	case errors.Is(err, maps.ErrUnsupportedLink):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: maps.ErrUnsupportedLink.Error(), Details: err.Error()}
	default:
		log.Printf("Internal Server Error: %v", err)
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// RequestGeneration handles POST /prompts/:promptId/generate
func (h *GenerationHandler) RequestGeneration(c *gin.Context) {
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

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	job, err := h.generationService.RequestGeneration(c.Request.Context(), userID.(string), promptID, req)
	if err != nil {
		mapGenerationErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// ExpandLink handles POST /maps/expand. It resolves a maps link (short or
// long) to business details without touching any prompt.
func (h *GenerationHandler) ExpandLink(c *gin.Context) {
	if _, exists := c.Get("userID"); !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	if h.expander == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Link expansion is not available"})
		return
	}

	var req models.ExpandLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	business, err := h.expander.Expand(c.Request.Context(), req.URL)
	if err != nil {
		mapGenerationErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, business)
}
