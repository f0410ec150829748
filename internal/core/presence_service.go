package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"sitebrief-backend-go/internal/db"
	"sitebrief-backend-go/internal/models"
)

// SessionLivenessTimeout is how long a session counts as active without a
// heartbeat. It deliberately matches LockTimeout: a user who can no longer
// heartbeat loses their lock on the same horizon.
const SessionLivenessTimeout = 5 * time.Minute

// presenceService implements the PresenceService interface.
type presenceService struct {
	sessionRepo db.SessionRepository
	promptRepo  db.PromptRepository
	userRepo    db.UserRepository
	now         func() time.Time
}

// NewPresenceService creates a new PresenceService instance.
func NewPresenceService(sr db.SessionRepository, pr db.PromptRepository, ur db.UserRepository) PresenceService {
	return &presenceService{
		sessionRepo: sr,
		promptRepo:  pr,
		userRepo:    ur,
		now:         time.Now,
	}
}

// Join creates or refreshes the caller's session on a prompt. Idempotent:
// joining again refreshes lastActiveAt on the existing row rather than
// creating a second one.
func (s *presenceService) Join(ctx context.Context, callerID, promptID string) (*models.Session, error) {
	if s.sessionRepo == nil || s.promptRepo == nil {
		return nil, errors.New("presenceService: component not initialized")
	}
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}
	if granted, _ := Authorize(prompt, callerID, CapabilityView); !granted {
		return nil, fmt.Errorf("%w: caller may not join prompt '%s'", ErrPermissionDenied, promptID)
	}

	session, err := s.sessionRepo.Upsert(ctx, promptID, callerID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session for prompt '%s': %w", promptID, err)
	}
	return session, nil
}

// Leave deletes the caller's session if present. It silently succeeds when the
// session is absent or the caller identity could not be resolved: leave races
// logout and must never throw.
func (s *presenceService) Leave(ctx context.Context, callerID, promptID string) error {
	if s.sessionRepo == nil {
		return errors.New("presenceService: component not initialized")
	}
	if callerID == "" || promptID == "" {
		return nil
	}
	if err := s.sessionRepo.Delete(ctx, promptID, callerID); err != nil {
		return fmt.Errorf("failed to delete session for prompt '%s': %w", promptID, err)
	}
	return nil
}

// UpdateCursor patches the caller's caret location and counts as a heartbeat.
// It silently no-ops when no session exists; it never creates one.
func (s *presenceService) UpdateCursor(ctx context.Context, callerID, promptID string, req models.UpdateCursorRequest) error {
	if s.sessionRepo == nil {
		return errors.New("presenceService: component not initialized")
	}
	if callerID == "" {
		return nil
	}

	cursor := models.Cursor{SectionIndex: req.SectionIndex, Position: req.Position}
	err := s.sessionRepo.UpdateCursor(ctx, promptID, callerID, cursor, s.now().UTC())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to update cursor for prompt '%s': %w", promptID, err)
	}
	return nil
}

// SetTyping patches the caller's typing indicator and counts as a heartbeat.
// Silently no-ops when no session exists.
func (s *presenceService) SetTyping(ctx context.Context, callerID, promptID string, isTyping bool) error {
	if s.sessionRepo == nil {
		return errors.New("presenceService: component not initialized")
	}
	if callerID == "" {
		return nil
	}

	err := s.sessionRepo.SetTyping(ctx, promptID, callerID, isTyping, s.now().UTC())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to update typing status for prompt '%s': %w", promptID, err)
	}
	return nil
}

// ListActive returns the live sessions for a prompt, enriched with profile
// fields and with typing users first. Stale sessions are filtered out but not
// deleted here; reads stay cheap and expiry stays lazy. Anonymous callers
// without view access get an empty result rather than an error.
func (s *presenceService) ListActive(ctx context.Context, callerID, promptID string) ([]*models.ActiveCollaborator, error) {
	if s.sessionRepo == nil || s.promptRepo == nil || s.userRepo == nil {
		return nil, errors.New("presenceService: component not initialized")
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}
	if granted, _ := Authorize(prompt, callerID, CapabilityView); !granted {
		if callerID == "" {
			return []*models.ActiveCollaborator{}, nil
		}
		return nil, fmt.Errorf("%w: caller may not view prompt '%s'", ErrPermissionDenied, promptID)
	}

	sessions, err := s.sessionRepo.GetByPromptID(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for prompt '%s': %w", promptID, err)
	}

	now := s.now().UTC()
	active := make([]*models.ActiveCollaborator, 0, len(sessions))
	for _, session := range sessions {
		if !session.IsLive(now, SessionLivenessTimeout) {
			continue
		}
		entry := &models.ActiveCollaborator{Session: *session}
		if user, userErr := s.userRepo.GetByID(ctx, session.UserID); userErr == nil && user != nil {
			entry.DisplayName = user.DisplayName
			entry.PhotoURL = user.PhotoURL
		} else if userErr != nil && !errors.Is(userErr, db.ErrNotFound) {
			log.Printf("Warning: failed to load profile for user '%s': %v", session.UserID, userErr)
		}
		active = append(active, entry)
	}

	// Typing users sort first; otherwise keep the repository's order.
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].IsTyping && !active[j].IsTyping
	})

	return active, nil
}
