package core

import (
	"context"

	"sitebrief-backend-go/internal/models"
)

// UserService defines the interface for user-related operations.
type UserService interface {
	// GetOrCreate retrieves a user by ID. If the user doesn't exist, it creates
	// a new one with default values (the Identity Resolver's first-sight path).
	GetOrCreate(ctx context.Context, userID, email, displayName, photoURL string) (*models.User, bool, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// PromptService defines the interface for prompt lifecycle and sharing operations.
type PromptService interface {
	CreatePrompt(ctx context.Context, callerID string, req models.CreatePromptRequest) (*models.Prompt, error)
	GetPrompt(ctx context.Context, callerID, promptID string) (*models.Prompt, error)
	GetAccess(ctx context.Context, callerID, promptID string) (*PromptAccess, error)
	ListPrompts(ctx context.Context, callerID string) ([]*models.Prompt, error)
	UpdateSharing(ctx context.Context, callerID, promptID string, req models.UpdateSharingRequest) (*models.Prompt, error)
	DeletePrompt(ctx context.Context, callerID, promptID string) error
	RemoveCollaborator(ctx context.Context, callerID, promptID, targetUserID string) error
}

// PresenceService defines the interface for document session tracking.
type PresenceService interface {
	Join(ctx context.Context, callerID, promptID string) (*models.Session, error)
	Leave(ctx context.Context, callerID, promptID string) error
	UpdateCursor(ctx context.Context, callerID, promptID string, req models.UpdateCursorRequest) error
	SetTyping(ctx context.Context, callerID, promptID string, isTyping bool) error
	ListActive(ctx context.Context, callerID, promptID string) ([]*models.ActiveCollaborator, error)
}

// LockService defines the interface for per-section edit locks.
type LockService interface {
	Acquire(ctx context.Context, callerID, promptID string, sectionIndex int) (*models.SectionLock, error)
	Release(ctx context.Context, callerID, promptID string, sectionIndex int) error
	ListActive(ctx context.Context, callerID, promptID string) ([]*models.ActiveLock, error)
}

// EditService defines the interface for the edit/version log.
type EditService interface {
	ApplyEdit(ctx context.Context, callerID, promptID string, req models.ApplyEditRequest) (*models.EditRecord, error)
	GetHistory(ctx context.Context, callerID, promptID string, limit int) ([]*models.EditHistoryEntry, error)
}

// InviteService defines the interface for collaboration invites.
type InviteService interface {
	CreateInvite(ctx context.Context, callerID, promptID string, req models.CreateInviteRequest) (*models.Invite, error)
	AcceptInvite(ctx context.Context, callerID, callerEmail, token string) (*models.Invite, error)
	RevokeInvite(ctx context.Context, callerID, promptID, inviteID string) error
	ListInvites(ctx context.Context, callerID, promptID string) ([]*models.Invite, error)
}

// GenerationService defines the interface for dispatching brief generation jobs
// and applying their results. The text generation itself is an external
// collaborator; this service only publishes jobs and receives finished sections.
type GenerationService interface {
	RequestGeneration(ctx context.Context, callerID, promptID string, req models.GenerateRequest) (*GenerationJob, error)
	ApplyGeneratedSections(ctx context.Context, userID, promptID string, sections []models.Section) error
	// ConsumeResults subscribes to the worker's results queue and applies
	// finished briefs as they arrive.
	ConsumeResults() error
}

// Mailer defines the interface for sending notification emails.
type Mailer interface {
	Send(recipient, subject, body string) error
}
