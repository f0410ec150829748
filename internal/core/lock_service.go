package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sitebrief-backend-go/internal/db"
	"sitebrief-backend-go/internal/models"
)

// LockTimeout is the lifetime of a section lock from acquisition or refresh.
// Matches SessionLivenessTimeout so a vanished client loses presence and lock
// together.
const LockTimeout = 5 * time.Minute

// ErrSectionLocked is returned when a live lock on the section is held by a
// different user. Recoverable: the caller may retry after expiry.
var ErrSectionLocked = errors.New("section is locked by another user")

// lockService implements the LockService interface.
type lockService struct {
	lockRepo   db.LockRepository
	promptRepo db.PromptRepository
	userRepo   db.UserRepository
	now        func() time.Time
}

// NewLockService creates a new LockService instance.
func NewLockService(lr db.LockRepository, pr db.PromptRepository, ur db.UserRepository) LockService {
	return &lockService{
		lockRepo:   lr,
		promptRepo: pr,
		userRepo:   ur,
		now:        time.Now,
	}
}

// Acquire grants the caller an exclusive, time-bounded claim on one section.
// The decision runs inside one storage transaction, so two concurrent callers
// cannot both observe "no lock" and both succeed:
//
//   - no lock row: create one owned by the caller.
//   - caller already owns it: refresh the expiry (re-entrant).
//   - another user owns it and it is still live: fail with ErrSectionLocked.
//   - another user owns it but it has expired: reap it and acquire fresh.
//
// Reap-on-contention means an expired lock is only guaranteed to be cleaned up
// when someone next tries to acquire that exact section.
func (s *lockService) Acquire(ctx context.Context, callerID, promptID string, sectionIndex int) (*models.SectionLock, error) {
	if s.lockRepo == nil || s.promptRepo == nil {
		return nil, errors.New("lockService: component not initialized")
	}
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}
	if granted, _ := Authorize(prompt, callerID, CapabilityEdit); !granted {
		return nil, fmt.Errorf("%w: caller may not edit prompt '%s'", ErrPermissionDenied, promptID)
	}
	if sectionIndex < 0 || sectionIndex >= len(prompt.Sections) {
		return nil, fmt.Errorf("%w: index %d, prompt has %d section(s)", ErrInvalidSection, sectionIndex, len(prompt.Sections))
	}

	now := s.now().UTC()
	lock, err := s.lockRepo.Mutate(ctx, promptID, sectionIndex, func(existing *models.SectionLock) (*models.SectionLock, error) {
		if existing != nil && existing.OwnerID != callerID && !existing.IsExpired(now) {
			return nil, fmt.Errorf("%w: section %d of prompt '%s' is held by user '%s'",
				ErrSectionLocked, sectionIndex, promptID, existing.OwnerID)
		}
		// Fresh acquisition, re-entrant refresh, or reap of an expired lock
		// held by someone else: all end in a row owned by the caller.
		return &models.SectionLock{
			PromptID:     promptID,
			SectionIndex: sectionIndex,
			OwnerID:      callerID,
			LockedAt:     now,
			ExpiresAt:    now.Add(LockTimeout),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// Release deletes the lock only if the caller owns it; in every other case it
// is a silent no-op. It never errors on state: the lock may already have
// expired and been reaped by a competing acquirer.
func (s *lockService) Release(ctx context.Context, callerID, promptID string, sectionIndex int) error {
	if s.lockRepo == nil {
		return errors.New("lockService: component not initialized")
	}
	if callerID == "" || promptID == "" {
		return nil
	}

	_, err := s.lockRepo.Mutate(ctx, promptID, sectionIndex, func(existing *models.SectionLock) (*models.SectionLock, error) {
		if existing == nil || existing.OwnerID != callerID {
			return existing, nil // keep whatever is there, including nothing
		}
		return nil, nil // delete the caller's own lock
	})
	if err != nil {
		return fmt.Errorf("failed to release lock on section %d of prompt '%s': %w", sectionIndex, promptID, err)
	}
	return nil
}

// ListActive returns all live locks on a prompt, enriched with the holder's
// display name and flagged relative to the caller. Expired locks are filtered
// but not deleted here (lazy expiry; reaping happens at acquisition).
// Anonymous callers without view access get an empty result.
func (s *lockService) ListActive(ctx context.Context, callerID, promptID string) ([]*models.ActiveLock, error) {
	if s.lockRepo == nil || s.promptRepo == nil || s.userRepo == nil {
		return nil, errors.New("lockService: component not initialized")
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}
	if granted, _ := Authorize(prompt, callerID, CapabilityView); !granted {
		if callerID == "" {
			return []*models.ActiveLock{}, nil
		}
		return nil, fmt.Errorf("%w: caller may not view prompt '%s'", ErrPermissionDenied, promptID)
	}

	locks, err := s.lockRepo.GetByPromptID(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks for prompt '%s': %w", promptID, err)
	}

	now := s.now().UTC()
	active := make([]*models.ActiveLock, 0, len(locks))
	for _, lock := range locks {
		if lock.IsExpired(now) {
			continue
		}
		entry := &models.ActiveLock{
			SectionLock: *lock,
			HeldByOther: lock.OwnerID != callerID,
		}
		if user, userErr := s.userRepo.GetByID(ctx, lock.OwnerID); userErr == nil && user != nil {
			entry.HolderName = user.DisplayName
		} else if userErr != nil && !errors.Is(userErr, db.ErrNotFound) {
			log.Printf("Warning: failed to load profile for lock holder '%s': %v", lock.OwnerID, userErr)
		}
		active = append(active, entry)
	}

	return active, nil
}
