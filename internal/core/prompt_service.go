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

// Shared sentinel errors for the collaboration services.
var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrPromptNotFound   = errors.New("prompt not found")
	ErrPermissionDenied = errors.New("user does not have permission for this action on the prompt")
	ErrInvalidShareMode = errors.New("invalid share mode")
	ErrInvalidSection   = errors.New("section index out of range")
)

// PromptAccess describes what the caller may do with a prompt, for the UI.
type PromptAccess struct {
	Role                   Role `json:"role"`
	CanView                bool `json:"canView"`
	CanEdit                bool `json:"canEdit"`
	CanInvite              bool `json:"canInvite"`
	CanManageCollaborators bool `json:"canManageCollaborators"`
}

// promptService implements the PromptService interface.
type promptService struct {
	promptRepo  db.PromptRepository
	sessionRepo db.SessionRepository
	lockRepo    db.LockRepository
	editRepo    db.EditRepository
	inviteRepo  db.InviteRepository
}

// NewPromptService creates a new PromptService instance. The session, lock,
// edit and invite repositories are needed for the deletion cascade.
func NewPromptService(
	pr db.PromptRepository,
	sr db.SessionRepository,
	lr db.LockRepository,
	er db.EditRepository,
	ir db.InviteRepository,
) PromptService {
	return &promptService{
		promptRepo:  pr,
		sessionRepo: sr,
		lockRepo:    lr,
		editRepo:    er,
		inviteRepo:  ir,
	}
}

// getPrompt fetches a prompt and maps repository not-found onto the service
// sentinel. Shared by every service in this package that gates on a prompt.
func getPrompt(ctx context.Context, repo db.PromptRepository, promptID string) (*models.Prompt, error) {
	prompt, err := repo.GetByID(ctx, promptID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: prompt with ID '%s'", ErrPromptNotFound, promptID)
		}
		return nil, fmt.Errorf("failed to get prompt '%s' from repository: %w", promptID, err)
	}
	if prompt == nil {
		return nil, fmt.Errorf("%w: prompt with ID '%s' (repository returned nil prompt and nil error)", ErrPromptNotFound, promptID)
	}
	return prompt, nil
}

// CreatePrompt creates a new prompt owned by the caller, at version 0.
func (s *promptService) CreatePrompt(ctx context.Context, callerID string, req models.CreatePromptRequest) (*models.Prompt, error) {
	if s.promptRepo == nil {
		return nil, errors.New("promptService: component not initialized")
	}
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	newPrompt := &models.Prompt{
		OwnerID:         callerID,
		Title:           req.Title,
		BusinessName:    req.BusinessName,
		BusinessAddress: req.BusinessAddress,
		MapsURL:         req.MapsURL,
		Sections:        req.Sections,
		Collaborators:   []string{},
		Version:         0,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if newPrompt.Sections == nil {
		newPrompt.Sections = []models.Section{}
	}

	promptID, err := s.promptRepo.Create(ctx, newPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt in repository: %w", err)
	}
	newPrompt.ID = promptID

	return newPrompt, nil
}

// GetPrompt retrieves a prompt if the caller holds the view capability.
func (s *promptService) GetPrompt(ctx context.Context, callerID, promptID string) (*models.Prompt, error) {
	if s.promptRepo == nil {
		return nil, errors.New("promptService: component not initialized")
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}

	if granted, _ := Authorize(prompt, callerID, CapabilityView); !granted {
		return nil, fmt.Errorf("%w: caller may not view prompt '%s'", ErrPermissionDenied, promptID)
	}
	return prompt, nil
}

// GetAccess computes the caller's role and capability set for a prompt. This is
// the UI-facing projection of the access gate; it is computed fresh on every call.
func (s *promptService) GetAccess(ctx context.Context, callerID, promptID string) (*PromptAccess, error) {
	if s.promptRepo == nil {
		return nil, errors.New("promptService: component not initialized")
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}

	role := RoleFor(prompt, callerID)
	return &PromptAccess{
		Role:                   role,
		CanView:                role.Can(CapabilityView),
		CanEdit:                role.Can(CapabilityEdit),
		CanInvite:              role.Can(CapabilityInvite),
		CanManageCollaborators: role.Can(CapabilityManageCollaborators),
	}, nil
}

// ListPrompts retrieves the prompts owned by the caller.
func (s *promptService) ListPrompts(ctx context.Context, callerID string) ([]*models.Prompt, error) {
	if s.promptRepo == nil {
		return nil, errors.New("promptService: component not initialized")
	}
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	prompts, err := s.promptRepo.GetByOwnerID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts for user '%s': %w", callerID, err)
	}
	return prompts, nil
}

// UpdateSharing changes a prompt's visibility settings. Owner only.
func (s *promptService) UpdateSharing(ctx context.Context, callerID, promptID string, req models.UpdateSharingRequest) (*models.Prompt, error) {
	if s.promptRepo == nil {
		return nil, errors.New("promptService: component not initialized")
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}

	if granted, _ := Authorize(prompt, callerID, CapabilityManageCollaborators); !granted {
		return nil, fmt.Errorf("%w: only the owner can change sharing settings", ErrPermissionDenied)
	}

	// Patch only the sharing fields. Writing the whole struct back would race
	// a concurrent edit and revert its sections and version.
	fields := map[string]interface{}{}
	if req.ShareMode != nil {
		if *req.ShareMode != models.ShareModeView && *req.ShareMode != models.ShareModeEdit {
			return nil, fmt.Errorf("%w: '%s'", ErrInvalidShareMode, *req.ShareMode)
		}
		prompt.ShareMode = *req.ShareMode
		fields["shareMode"] = *req.ShareMode
	}
	if req.IsPublic != nil {
		prompt.IsPublic = *req.IsPublic
		fields["isPublic"] = *req.IsPublic
	}
	if len(fields) == 0 {
		return prompt, nil
	}
	prompt.UpdatedAt = time.Now().UTC()
	fields["updatedAt"] = prompt.UpdatedAt

	if err := s.promptRepo.UpdateFields(ctx, promptID, fields); err != nil {
		return nil, fmt.Errorf("failed to update sharing for prompt '%s': %w", promptID, err)
	}
	return prompt, nil
}

// DeletePrompt deletes a prompt and cascade-deletes its sessions, locks, edit
// records and invites. Owner only. The cascade is best-effort beyond the prompt
// row itself: rows that survive a partial failure are inert, since every read
// path filters by liveness and every lookup starts from the prompt.
func (s *promptService) DeletePrompt(ctx context.Context, callerID, promptID string) error {
	if s.promptRepo == nil || s.sessionRepo == nil || s.lockRepo == nil || s.editRepo == nil || s.inviteRepo == nil {
		return errors.New("promptService: component not initialized")
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return err
	}

	if prompt.OwnerID != callerID {
		return fmt.Errorf("%w: only the owner can delete prompt '%s'", ErrPermissionDenied, promptID)
	}

	if err := s.promptRepo.Delete(ctx, promptID); err != nil {
		return fmt.Errorf("failed to delete prompt '%s': %w", promptID, err)
	}

	for _, cascade := range []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"sessions", s.sessionRepo.DeleteByPromptID},
		{"locks", s.lockRepo.DeleteByPromptID},
		{"edit records", s.editRepo.DeleteByPromptID},
		{"invites", s.inviteRepo.DeleteByPromptID},
	} {
		if err := cascade.fn(ctx, promptID); err != nil {
			log.Printf("Warning: failed to cascade-delete %s for prompt '%s': %v", cascade.name, promptID, err)
		}
	}

	return nil
}

// RemoveCollaborator removes a user from the prompt's collaborator set. Allowed
// for the owner, or for a collaborator removing themselves.
func (s *promptService) RemoveCollaborator(ctx context.Context, callerID, promptID, targetUserID string) error {
	if s.promptRepo == nil {
		return errors.New("promptService: component not initialized")
	}
	if callerID == "" {
		return ErrUnauthenticated
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return err
	}

	granted, _ := Authorize(prompt, callerID, CapabilityManageCollaborators)
	if !granted && callerID != targetUserID {
		return fmt.Errorf("%w: only the owner can remove other collaborators", ErrPermissionDenied)
	}

	if !prompt.HasCollaborator(targetUserID) {
		// Nothing to remove; treat as success so retries are harmless.
		return nil
	}

	remaining := make([]string, 0, len(prompt.Collaborators))
	for _, id := range prompt.Collaborators {
		if id != targetUserID {
			remaining = append(remaining, id)
		}
	}
	if err := s.promptRepo.UpdateFields(ctx, promptID, map[string]interface{}{
		"collaborators": remaining,
		"updatedAt":     time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to remove collaborator '%s' from prompt '%s': %w", targetUserID, promptID, err)
	}
	return nil
}
