package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sitebrief-backend-go/internal/config"
	"sitebrief-backend-go/internal/core"
	"sitebrief-backend-go/internal/db"
	"sitebrief-backend-go/internal/maps"
	"sitebrief-backend-go/internal/middleware"
)

// SetupRoutes configures all application routes with their handlers and
// middleware. Global middleware (logging, recovery, CORS) is applied to the
// router before this is called, in main.go.
//
// Read endpoints on a prompt (the prompt itself, its access descriptor, the
// presence roster, the lock table and the edit history) use optional
// authentication so public prompts work for anonymous visitors; everything
// that writes requires a verified token.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	userService core.UserService,
	promptService core.PromptService,
	presenceService core.PresenceService,
	lockService core.LockService,
	editService core.EditService,
	inviteService core.InviteService,
	generationService core.GenerationService,
	expander maps.LinkExpander,
) {
	firebaseAuthClient := db.GetFirebaseAuthClient()
	if firebaseAuthClient == nil {
		logger.Fatal("CRITICAL_SETUP_ERROR: Firebase Auth client is not initialized. AuthMiddleware cannot be created, and routes will not be set up.")
	}
	authMW := middleware.NewAuthMiddleware(firebaseAuthClient)

	authHandler := NewAuthHandler(userService)
	userHandler := NewUserHandler(userService)
	promptHandler := NewPromptHandler(promptService)
	collabHandler := NewCollabHandler(presenceService, lockService, editService)
	inviteHandler := NewInviteHandler(inviteService)
	generationHandler := NewGenerationHandler(generationService, expander)

	apiV1 := router.Group("/api/v1")
	{
		usersGroup := apiV1.Group("/users")
		{
			usersGroup.POST("/initialize", authMW.VerifyToken(), authHandler.InitializeUserProfile)
			usersGroup.GET("/me", authMW.VerifyToken(), userHandler.GetCurrentUserProfile)
		}

		promptsGroup := apiV1.Group("/prompts")
		{
			promptsGroup.POST("", authMW.VerifyToken(), promptHandler.CreatePrompt)
			promptsGroup.GET("", authMW.VerifyToken(), promptHandler.ListPrompts)
			promptsGroup.GET("/:promptId", authMW.VerifyTokenOptional(), promptHandler.GetPrompt)
			promptsGroup.GET("/:promptId/access", authMW.VerifyTokenOptional(), promptHandler.GetAccess)
			promptsGroup.PATCH("/:promptId/sharing", authMW.VerifyToken(), promptHandler.UpdateSharing)
			promptsGroup.DELETE("/:promptId", authMW.VerifyToken(), promptHandler.DeletePrompt)
			promptsGroup.DELETE("/:promptId/collaborators/:targetUserId", authMW.VerifyToken(), promptHandler.RemoveCollaborator)

			// Presence sessions
			promptsGroup.POST("/:promptId/sessions", authMW.VerifyToken(), collabHandler.JoinSession)
			promptsGroup.GET("/:promptId/sessions", authMW.VerifyTokenOptional(), collabHandler.ListSessions)
			promptsGroup.DELETE("/:promptId/sessions/me", authMW.VerifyToken(), collabHandler.LeaveSession)
			promptsGroup.PUT("/:promptId/sessions/me/cursor", authMW.VerifyToken(), collabHandler.UpdateCursor)
			promptsGroup.PUT("/:promptId/sessions/me/typing", authMW.VerifyToken(), collabHandler.SetTyping)

			// Section locks
			promptsGroup.POST("/:promptId/sections/:sectionIndex/lock", authMW.VerifyToken(), collabHandler.AcquireLock)
			promptsGroup.DELETE("/:promptId/sections/:sectionIndex/lock", authMW.VerifyToken(), collabHandler.ReleaseLock)
			promptsGroup.GET("/:promptId/locks", authMW.VerifyTokenOptional(), collabHandler.ListLocks)

			// Edit log
			promptsGroup.POST("/:promptId/edits", authMW.VerifyToken(), collabHandler.ApplyEdit)
			promptsGroup.GET("/:promptId/edits", authMW.VerifyTokenOptional(), collabHandler.GetHistory)

			// Invites scoped to a prompt
			promptsGroup.POST("/:promptId/invites", authMW.VerifyToken(), inviteHandler.CreateInvite)
			promptsGroup.GET("/:promptId/invites", authMW.VerifyToken(), inviteHandler.ListInvites)
			promptsGroup.DELETE("/:promptId/invites/:inviteId", authMW.VerifyToken(), inviteHandler.RevokeInvite)

			// Generation dispatch
			promptsGroup.POST("/:promptId/generate", authMW.VerifyToken(), generationHandler.RequestGeneration)
		}

		invitesGroup := apiV1.Group("/invites")
		{
			invitesGroup.POST("/accept", authMW.VerifyToken(), inviteHandler.AcceptInvite)
		}

		mapsGroup := apiV1.Group("/maps")
		{
			mapsGroup.POST("/expand", authMW.VerifyToken(), generationHandler.ExpandLink)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Sitebrief backend is healthy."})
	})

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
