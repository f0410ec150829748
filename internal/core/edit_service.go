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

// defaultHistoryLimit caps GetHistory results when the caller passes no limit.
const defaultHistoryLimit = 50

// ErrInvalidOperation is returned for an edit whose operation kind is unknown.
var ErrInvalidOperation = errors.New("invalid edit operation")

// editService implements the EditService interface.
type editService struct {
	promptRepo db.PromptRepository
	editRepo   db.EditRepository
	userRepo   db.UserRepository
	now        func() time.Time
}

// NewEditService creates a new EditService instance.
func NewEditService(pr db.PromptRepository, er db.EditRepository, ur db.UserRepository) EditService {
	return &editService{
		promptRepo: pr,
		editRepo:   er,
		userRepo:   ur,
		now:        time.Now,
	}
}

// ApplyEdit validates and applies one section edit as a single atomic step:
// the content change plus version bump commit together with the audit record,
// or not at all. Section locks are advisory and deliberately not consulted
// here; honoring them is the client's job.
func (s *editService) ApplyEdit(ctx context.Context, callerID, promptID string, req models.ApplyEditRequest) (*models.EditRecord, error) {
	if s.promptRepo == nil {
		return nil, errors.New("editService: component not initialized")
	}
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	switch req.Operation {
	case models.OpInsert, models.OpDelete, models.OpReplace:
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidOperation, req.Operation)
	}

	// Cheap pre-check outside the transaction for a friendly early error.
	// The authoritative check runs again on the transactional snapshot,
	// because sharing settings may change between here and commit.
	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}
	if granted, _ := Authorize(prompt, callerID, CapabilityEdit); !granted {
		return nil, fmt.Errorf("%w: caller may not edit prompt '%s'", ErrPermissionDenied, promptID)
	}

	now := s.now().UTC()
	record, err := s.promptRepo.ApplyEdit(ctx, promptID, func(p *models.Prompt) (*models.EditRecord, error) {
		if granted, _ := Authorize(p, callerID, CapabilityEdit); !granted {
			return nil, fmt.Errorf("%w: caller may not edit prompt '%s'", ErrPermissionDenied, promptID)
		}

		idx := req.SectionIndex
		switch req.Operation {
		case models.OpInsert:
			if idx < 0 || idx > len(p.Sections) {
				return nil, fmt.Errorf("%w: insert index %d, prompt has %d section(s)", ErrInvalidSection, idx, len(p.Sections))
			}
			section := models.Section{Header: req.Header, Content: req.NewContent}
			p.Sections = append(p.Sections, models.Section{})
			copy(p.Sections[idx+1:], p.Sections[idx:])
			p.Sections[idx] = section
		case models.OpDelete:
			if idx < 0 || idx >= len(p.Sections) {
				return nil, fmt.Errorf("%w: delete index %d, prompt has %d section(s)", ErrInvalidSection, idx, len(p.Sections))
			}
			p.Sections = append(p.Sections[:idx], p.Sections[idx+1:]...)
		case models.OpReplace:
			if idx < 0 || idx >= len(p.Sections) {
				return nil, fmt.Errorf("%w: replace index %d, prompt has %d section(s)", ErrInvalidSection, idx, len(p.Sections))
			}
			if req.Header != "" {
				p.Sections[idx].Header = req.Header
			}
			p.Sections[idx].Content = req.NewContent
		}

		p.Version++
		p.UpdatedAt = now
		return &models.EditRecord{
			AuthorID:     callerID,
			SectionIndex: idx,
			Operation:    req.Operation,
			OldContent:   req.OldContent,
			NewContent:   req.NewContent,
			Version:      p.Version,
			Timestamp:    now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetHistory returns the prompt's edit log, newest first, with author profiles
// attached where they can be resolved. History is gated on the view capability
// only, so anonymous callers can read it on public prompts.
func (s *editService) GetHistory(ctx context.Context, callerID, promptID string, limit int) ([]*models.EditHistoryEntry, error) {
	if s.promptRepo == nil || s.editRepo == nil || s.userRepo == nil {
		return nil, errors.New("editService: component not initialized")
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}
	if granted, _ := Authorize(prompt, callerID, CapabilityView); !granted {
		return nil, fmt.Errorf("%w: caller may not view prompt '%s'", ErrPermissionDenied, promptID)
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := s.editRepo.GetByPromptID(ctx, promptID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load edit history for prompt '%s': %w", promptID, err)
	}

	// Resolve each distinct author once per request.
	profiles := make(map[string]*models.User)
	entries := make([]*models.EditHistoryEntry, 0, len(records))
	for _, record := range records {
		entry := &models.EditHistoryEntry{EditRecord: *record}
		user, ok := profiles[record.AuthorID]
		if !ok {
			var userErr error
			user, userErr = s.userRepo.GetByID(ctx, record.AuthorID)
			if userErr != nil {
				if !errors.Is(userErr, db.ErrNotFound) {
					log.Printf("Warning: failed to load profile for edit author '%s': %v", record.AuthorID, userErr)
				}
				user = nil
			}
			profiles[record.AuthorID] = user
		}
		if user != nil {
			entry.AuthorName = user.DisplayName
			entry.AuthorPhotoURL = user.PhotoURL
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
