package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"sitebrief-backend-go/internal/core"
	"sitebrief-backend-go/internal/models"
)

// InviteHandler handles collaboration invite API endpoints.
type InviteHandler struct {
	inviteService core.InviteService
}

// NewInviteHandler creates a new InviteHandler.
func NewInviteHandler(is core.InviteService) *InviteHandler {
	return &InviteHandler{inviteService: is}
}

// mapInviteErrorToStatus maps errors from core.InviteService to HTTP status
// codes. An unusable invite answers 410 Gone; plan limits answer 402.
func mapInviteErrorToStatus(c *gin.Context, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		statusCode = http.StatusUnauthorized
		errResponse = ErrorResponse{Error: core.ErrUnauthenticated.Error()}
	case errors.Is(err, core.ErrPromptNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrPromptNotFound.Error()}
	case errors.Is(err, core.ErrInviteNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrInviteNotFound.Error()}
	case errors.Is(err, core.ErrPermissionDenied):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.ErrPermissionDenied.Error()}
	case errors.Is(err, core.ErrInviteInvalid):
		statusCode = http.StatusGone
		errResponse = ErrorResponse{Error: core.ErrInviteInvalid.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrCollaboratorLimitExceeded):
		statusCode = http.StatusPaymentRequired
		errResponse = ErrorResponse{Error: core.ErrCollaboratorLimitExceeded.Error(), Details: err.Error()}
	default:
		log.Printf("Internal Server Error: %v", err)
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// CreateInvite handles POST /prompts/:promptId/invites
func (h *InviteHandler) CreateInvite(c *gin.Context) {
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

	var req models.CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	invite, err := h.inviteService.CreateInvite(c.Request.Context(), userID.(string), promptID, req)
	if err != nil {
		mapInviteErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusCreated, invite)
}

// ListInvites handles GET /prompts/:promptId/invites
func (h *InviteHandler) ListInvites(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	invites, err := h.inviteService.ListInvites(c.Request.Context(), userID.(string), c.Param("promptId"))
	if err != nil {
		mapInviteErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, invites)
}

// RevokeInvite handles DELETE /prompts/:promptId/invites/:inviteId
func (h *InviteHandler) RevokeInvite(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	promptID := c.Param("promptId")
	inviteID := c.Param("inviteId")
	if promptID == "" || inviteID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Prompt ID and invite ID are required"})
		return
	}

	if err := h.inviteService.RevokeInvite(c.Request.Context(), userID.(string), promptID, inviteID); err != nil {
		mapInviteErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Invite revoked"})
}

// AcceptInvite handles POST /invites/accept. The token travels in the body,
// not the path, so it never lands in access logs.
func (h *InviteHandler) AcceptInvite(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	userEmail := c.GetString("userEmail")

	var req models.AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	invite, err := h.inviteService.AcceptInvite(c.Request.Context(), userID.(string), userEmail, req.Token)
	if err != nil {
		mapInviteErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, invite)
}
