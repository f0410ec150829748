package db

import (
	"context"
	"time"

	"sitebrief-backend-go/internal/models"
)

// UserRepository defines the interface for user data storage operations.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	// IncrementGenerationsUsed atomically bumps the user's generation counter.
	// Implementations must use a server-side increment, not read-then-write.
	IncrementGenerationsUsed(ctx context.Context, userID string) error
}

// EditMutator is applied to the current prompt state inside a storage
// transaction. It mutates the prompt in place (sections, version, updatedAt) and
// returns the edit record to append. Returning an error aborts the transaction.
type EditMutator func(prompt *models.Prompt) (*models.EditRecord, error)

// PromptRepository defines the interface for prompt data storage operations.
type PromptRepository interface {
	Create(ctx context.Context, prompt *models.Prompt) (string, error) // Returns new prompt ID
	GetByID(ctx context.Context, promptID string) (*models.Prompt, error)
	GetByOwnerID(ctx context.Context, ownerID string) ([]*models.Prompt, error)
	// UpdateFields patches only the named document fields, so sharing or
	// metadata writes can never clobber sections or the version counter that
	// a concurrent ApplyEdit is advancing. Keys are Firestore field paths.
	UpdateFields(ctx context.Context, promptID string, fields map[string]interface{}) error
	Delete(ctx context.Context, promptID string) error
	// ApplyEdit runs mutate against a fresh read of the prompt and writes the
	// updated prompt together with the returned edit record in one transaction.
	// This is the only path allowed to advance the prompt's version.
	ApplyEdit(ctx context.Context, promptID string, mutate EditMutator) (*models.EditRecord, error)
}

// SessionRepository defines the interface for presence session storage.
// Sessions are keyed by the deterministic "{promptID}_{userID}" document ID.
type SessionRepository interface {
	// Upsert creates the session or, if one exists, refreshes lastActiveAt while
	// preserving joinedAt. The read-then-write runs in one transaction.
	Upsert(ctx context.Context, promptID, userID string, now time.Time) (*models.Session, error)
	// Delete removes the session. Deleting an absent session is not an error.
	Delete(ctx context.Context, promptID, userID string) error
	// UpdateCursor patches the cursor and bumps lastActiveAt on an existing
	// session. Returns ErrNotFound if no session exists; it never creates one.
	UpdateCursor(ctx context.Context, promptID, userID string, cursor models.Cursor, now time.Time) error
	// SetTyping patches the typing flag and bumps lastActiveAt on an existing
	// session. Returns ErrNotFound if no session exists.
	SetTyping(ctx context.Context, promptID, userID string, isTyping bool, now time.Time) error
	GetByPromptID(ctx context.Context, promptID string) ([]*models.Session, error)
	DeleteByPromptID(ctx context.Context, promptID string) error // cascade on prompt delete
}

// LockMutator decides the next state of a section lock given the current one
// (nil when no lock row exists). It returns the lock to store, the existing
// pointer unchanged to keep it as-is, or nil to delete it. Returning an error
// aborts the transaction.
type LockMutator func(existing *models.SectionLock) (*models.SectionLock, error)

// LockRepository defines the interface for section lock storage.
// Locks are keyed by the deterministic "{promptID}_{sectionIndex}" document ID.
type LockRepository interface {
	// Mutate runs fn against a fresh read of the lock row inside one
	// transaction, making the acquire/release read-modify-write indivisible
	// from concurrent callers targeting the same section.
	Mutate(ctx context.Context, promptID string, sectionIndex int, fn LockMutator) (*models.SectionLock, error)
	GetByPromptID(ctx context.Context, promptID string) ([]*models.SectionLock, error)
	DeleteByPromptID(ctx context.Context, promptID string) error // cascade on prompt delete
}

// EditRepository defines the read side of the append-only edit log. Records are
// written by PromptRepository.ApplyEdit, in the same transaction as the content.
type EditRepository interface {
	// GetByPromptID returns up to limit records, newest first.
	GetByPromptID(ctx context.Context, promptID string, limit int) ([]*models.EditRecord, error)
	DeleteByPromptID(ctx context.Context, promptID string) error // cascade on prompt delete
}

// AcceptMutator validates and applies an invite acceptance against fresh reads
// of the invite and its prompt. It mutates both in place; returning an error
// aborts the transaction.
type AcceptMutator func(invite *models.Invite, prompt *models.Prompt) error

// InviteRepository defines the interface for collaboration invite storage.
type InviteRepository interface {
	Create(ctx context.Context, invite *models.Invite) (string, error) // Returns new invite ID
	GetByID(ctx context.Context, inviteID string) (*models.Invite, error)
	GetByToken(ctx context.Context, token string) (*models.Invite, error)
	GetByPromptID(ctx context.Context, promptID string) ([]*models.Invite, error)
	Update(ctx context.Context, invite *models.Invite) error
	// Accept re-reads the invite and prompt inside one transaction, applies fn
	// and writes both back, so two racing acceptances cannot both succeed.
	Accept(ctx context.Context, inviteID, promptID string, fn AcceptMutator) (*models.Invite, error)
	DeleteByPromptID(ctx context.Context, promptID string) error // cascade on prompt delete
}
