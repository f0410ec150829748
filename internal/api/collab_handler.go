package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sitebrief-backend-go/internal/core"
	"sitebrief-backend-go/internal/models"
)

// CollabHandler handles the real-time collaboration endpoints: presence
// sessions, section locks and the edit log.
type CollabHandler struct {
	presenceService core.PresenceService
	lockService     core.LockService
	editService     core.EditService
}

// NewCollabHandler creates a new CollabHandler.
func NewCollabHandler(ps core.PresenceService, ls core.LockService, es core.EditService) *CollabHandler {
	return &CollabHandler{presenceService: ps, lockService: ls, editService: es}
}

// mapCollabErrorToStatus maps collaboration service errors to HTTP status codes.
// A held lock answers 423 Locked so clients can distinguish contention from
// a permissions problem.
func mapCollabErrorToStatus(c *gin.Context, err error) {
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
	case errors.Is(err, core.ErrSectionLocked):
		statusCode = http.StatusLocked
		errResponse = ErrorResponse{Error: core.ErrSectionLocked.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrInvalidSection):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrInvalidSection.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrInvalidOperation):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrInvalidOperation.Error(), Details: err.Error()}
	default:
		log.Printf("Internal Server Error: %v", err)
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// sectionIndexParam parses the :sectionIndex path parameter.
func sectionIndexParam(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("sectionIndex"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Section index must be an integer"})
		return 0, false
	}
	return idx, true
}

// --- Presence sessions ---

// JoinSession handles POST /prompts/:promptId/sessions
func (h *CollabHandler) JoinSession(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	promptID := c.Param("promptId")

	session, err := h.presenceService.Join(c.Request.Context(), userID.(string), promptID)
	if err != nil {
		mapCollabErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// LeaveSession handles DELETE /prompts/:promptId/sessions/me
func (h *CollabHandler) LeaveSession(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	if err := h.presenceService.Leave(c.Request.Context(), userID.(string), c.Param("promptId")); err != nil {
		mapCollabErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Session closed"})
}

// UpdateCursor handles PUT /prompts/:promptId/sessions/me/cursor
func (h *CollabHandler) UpdateCursor(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	var req models.UpdateCursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	if err := h.presenceService.UpdateCursor(c.Request.Context(), userID.(string), c.Param("promptId"), req); err != nil {
		mapCollabErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Cursor updated"})
}

// SetTyping handles PUT /prompts/:promptId/sessions/me/typing
func (h *CollabHandler) SetTyping(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	var req models.SetTypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	if err := h.presenceService.SetTyping(c.Request.Context(), userID.(string), c.Param("promptId"), req.IsTyping); err != nil {
		mapCollabErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Typing state updated"})
}

// ListSessions handles GET /prompts/:promptId/sessions. Optionally
// authenticated; anonymous viewers of a public prompt get an empty roster.
func (h *CollabHandler) ListSessions(c *gin.Context) {
	callerID := c.GetString("userID")

	collaborators, err := h.presenceService.ListActive(c.Request.Context(), callerID, c.Param("promptId"))
	if err != nil {
		mapCollabErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, collaborators)
}

// --- Section locks ---

// AcquireLock handles POST /prompts/:promptId/sections/:sectionIndex/lock
func (h *CollabHandler) AcquireLock(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	sectionIndex, ok := sectionIndexParam(c)
	if !ok {
		return
	}

	lock, err := h.lockService.Acquire(c.Request.Context(), userID.(string), c.Param("promptId"), sectionIndex)
	if err != nil {
		mapCollabErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, lock)
}

// ReleaseLock handles DELETE /prompts/:promptId/sections/:sectionIndex/lock
func (h *CollabHandler) ReleaseLock(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	sectionIndex, ok := sectionIndexParam(c)
	if !ok {
		return
	}

	if err := h.lockService.Release(c.Request.Context(), userID.(string), c.Param("promptId"), sectionIndex); err != nil {
		mapCollabErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Lock released"})
}

// ListLocks handles GET /prompts/:promptId/locks. Optionally authenticated.
func (h *CollabHandler) ListLocks(c *gin.Context) {
	callerID := c.GetString("userID")

	locks, err := h.lockService.ListActive(c.Request.Context(), callerID, c.Param("promptId"))
	if err != nil {
		mapCollabErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, locks)
}

// --- Edit log ---

// ApplyEdit handles POST /prompts/:promptId/edits
func (h *CollabHandler) ApplyEdit(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	var req models.ApplyEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	record, err := h.editService.ApplyEdit(c.Request.Context(), userID.(string), c.Param("promptId"), req)
	if err != nil {
		mapCollabErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// GetHistory handles GET /prompts/:promptId/edits?limit=N. Uses optional
// authentication; an empty userID means an anonymous caller, and the access
// gate decides whether the prompt's history is visible to them.
func (h *CollabHandler) GetHistory(c *gin.Context) {
	userID := c.GetString("userID")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	history, err := h.editService.GetHistory(c.Request.Context(), userID, c.Param("promptId"), limit)
	if err != nil {
		mapCollabErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
