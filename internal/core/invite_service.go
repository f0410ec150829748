package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"sitebrief-backend-go/internal/db"
	"sitebrief-backend-go/internal/models"
)

// Invite error definitions.
var (
	ErrInviteNotFound = errors.New("invite not found")
	// ErrInviteInvalid covers every unusable invite state: unknown token,
	// expired, revoked or already accepted. The message distinguishes them.
	ErrInviteInvalid = errors.New("invite is not valid")
	// ErrCollaboratorLimitExceeded is returned when the prompt owner's plan
	// does not allow another collaborator.
	ErrCollaboratorLimitExceeded = errors.New("collaborator limit exceeded for plan")
)

// inviteService implements the InviteService interface.
type inviteService struct {
	inviteRepo db.InviteRepository
	promptRepo db.PromptRepository
	userRepo   db.UserRepository
	mailer     Mailer // optional; nil disables notification emails
	baseURL    string
	now        func() time.Time
}

// NewInviteService creates a new InviteService instance. The mailer may be nil,
// in which case invites are created without a notification email.
func NewInviteService(ir db.InviteRepository, pr db.PromptRepository, ur db.UserRepository, mailer Mailer, baseURL string) InviteService {
	return &inviteService{
		inviteRepo: ir,
		promptRepo: pr,
		userRepo:   ur,
		mailer:     mailer,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

// CreateInvite issues a pending invite with an unguessable token. Only callers
// with invite capability may create one, and the owner's plan must still have
// room for another collaborator. The notification email is best-effort: a mail
// failure is logged, never surfaced, because the invite link also works when
// shared out of band.
func (s *inviteService) CreateInvite(ctx context.Context, callerID, promptID string, req models.CreateInviteRequest) (*models.Invite, error) {
	if s.inviteRepo == nil || s.promptRepo == nil || s.userRepo == nil {
		return nil, errors.New("inviteService: component not initialized")
	}
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}
	if granted, _ := Authorize(prompt, callerID, CapabilityInvite); !granted {
		return nil, fmt.Errorf("%w: caller may not invite to prompt '%s'", ErrPermissionDenied, promptID)
	}

	if err := s.checkCollaboratorRoom(ctx, prompt); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	invite := &models.Invite{
		PromptID:  promptID,
		InviterID: callerID,
		Token:     uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Status:    models.InviteStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(models.InviteTTL),
	}

	inviteID, err := s.inviteRepo.Create(ctx, invite)
	if err != nil {
		return nil, fmt.Errorf("failed to create invite for prompt '%s': %w", promptID, err)
	}
	invite.ID = inviteID

	s.sendInviteMail(ctx, callerID, prompt, invite)

	return invite, nil
}

// AcceptInvite redeems a token for collaborator access. The status transition
// and the collaborator list update happen in one transaction, so two racing
// acceptances of the same token cannot both win. An expired pending invite is
// marked expired on this read path before the error is returned. An
// email-restricted invite only redeems for a caller whose verified email
// matches, compared case-insensitively.
func (s *inviteService) AcceptInvite(ctx context.Context, callerID, callerEmail, token string) (*models.Invite, error) {
	if s.inviteRepo == nil || s.promptRepo == nil {
		return nil, errors.New("inviteService: component not initialized")
	}
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInviteInvalid)
	}

	invite, err := s.inviteRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown token", ErrInviteInvalid)
		}
		return nil, fmt.Errorf("failed to look up invite token: %w", err)
	}

	now := s.now().UTC()
	if invite.Status == models.InviteStatusPending && invite.IsExpired(now) {
		invite.Status = models.InviteStatusExpired
		if updateErr := s.inviteRepo.Update(ctx, invite); updateErr != nil {
			log.Printf("Warning: failed to mark invite '%s' expired: %v", invite.ID, updateErr)
		}
		return nil, fmt.Errorf("%w: invite expired", ErrInviteInvalid)
	}
	if invite.Status != models.InviteStatusPending {
		return nil, fmt.Errorf("%w: invite is %s", ErrInviteInvalid, invite.Status)
	}
	if invite.Email != "" && !strings.EqualFold(invite.Email, strings.TrimSpace(callerEmail)) {
		return nil, fmt.Errorf("%w: invite is restricted to a different email address", ErrInviteInvalid)
	}

	prompt, err := getPrompt(ctx, s.promptRepo, invite.PromptID)
	if err != nil {
		if errors.Is(err, ErrPromptNotFound) {
			return nil, fmt.Errorf("%w: prompt no longer exists", ErrInviteInvalid)
		}
		return nil, err
	}
	if prompt.OwnerID != callerID && !prompt.HasCollaborator(callerID) {
		if err := s.checkCollaboratorRoom(ctx, prompt); err != nil {
			return nil, err
		}
	}

	accepted, err := s.inviteRepo.Accept(ctx, invite.ID, invite.PromptID, func(inv *models.Invite, p *models.Prompt) error {
		// Re-validate against the transactional snapshot.
		if inv.Status != models.InviteStatusPending {
			return fmt.Errorf("%w: invite is %s", ErrInviteInvalid, inv.Status)
		}
		if inv.IsExpired(now) {
			inv.Status = models.InviteStatusExpired
			return fmt.Errorf("%w: invite expired", ErrInviteInvalid)
		}
		if inv.Email != "" && !strings.EqualFold(inv.Email, strings.TrimSpace(callerEmail)) {
			return fmt.Errorf("%w: invite is restricted to a different email address", ErrInviteInvalid)
		}

		inv.Status = models.InviteStatusAccepted
		inv.AcceptedBy = callerID
		acceptedAt := now
		inv.AcceptedAt = &acceptedAt

		// The owner and existing collaborators redeem without a list change.
		if p.OwnerID != callerID && !p.HasCollaborator(callerID) {
			p.Collaborators = append(p.Collaborators, callerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// RevokeInvite cancels a pending invite. Accepted invites cannot be revoked;
// removing the collaborator afterwards is a separate operation.
func (s *inviteService) RevokeInvite(ctx context.Context, callerID, promptID, inviteID string) error {
	if s.inviteRepo == nil || s.promptRepo == nil {
		return errors.New("inviteService: component not initialized")
	}
	if callerID == "" {
		return ErrUnauthenticated
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return err
	}
	if granted, _ := Authorize(prompt, callerID, CapabilityInvite); !granted {
		return fmt.Errorf("%w: caller may not manage invites for prompt '%s'", ErrPermissionDenied, promptID)
	}

	invite, err := s.inviteRepo.GetByID(ctx, inviteID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: '%s'", ErrInviteNotFound, inviteID)
		}
		return fmt.Errorf("failed to get invite '%s': %w", inviteID, err)
	}
	if invite.PromptID != promptID {
		return fmt.Errorf("%w: '%s'", ErrInviteNotFound, inviteID)
	}
	if invite.Status != models.InviteStatusPending {
		return fmt.Errorf("%w: cannot revoke an invite that is %s", ErrInviteInvalid, invite.Status)
	}

	invite.Status = models.InviteStatusRevoked
	if err := s.inviteRepo.Update(ctx, invite); err != nil {
		return fmt.Errorf("failed to revoke invite '%s': %w", inviteID, err)
	}
	return nil
}

// ListInvites returns all invites for a prompt, any status. Pending invites
// past their expiry are reported as expired without being rewritten.
func (s *inviteService) ListInvites(ctx context.Context, callerID, promptID string) ([]*models.Invite, error) {
	if s.inviteRepo == nil || s.promptRepo == nil {
		return nil, errors.New("inviteService: component not initialized")
	}
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}
	if granted, _ := Authorize(prompt, callerID, CapabilityInvite); !granted {
		return nil, fmt.Errorf("%w: caller may not list invites for prompt '%s'", ErrPermissionDenied, promptID)
	}

	invites, err := s.inviteRepo.GetByPromptID(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites for prompt '%s': %w", promptID, err)
	}

	now := s.now().UTC()
	for _, invite := range invites {
		if invite.Status == models.InviteStatusPending && invite.IsExpired(now) {
			invite.Status = models.InviteStatusExpired
		}
	}
	return invites, nil
}

// checkCollaboratorRoom enforces the prompt owner's plan cap on the
// collaborator list. The cap counts accepted collaborators, not outstanding
// invites, so several pending invites can race for the last slot and the
// transactional accept decides who gets it.
func (s *inviteService) checkCollaboratorRoom(ctx context.Context, prompt *models.Prompt) error {
	owner, err := s.userRepo.GetByID(ctx, prompt.OwnerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: prompt owner '%s' not found", ErrPromptNotFound, prompt.OwnerID)
		}
		return fmt.Errorf("failed to get owner of prompt '%s': %w", prompt.ID, err)
	}

	limits := LimitsForPlan(owner.Plan)
	if len(prompt.Collaborators) >= limits.MaxCollaborators {
		return fmt.Errorf("%w: plan %s allows %d collaborator(s), prompt has %d",
			ErrCollaboratorLimitExceeded, owner.Plan, limits.MaxCollaborators, len(prompt.Collaborators))
	}
	return nil
}

// sendInviteMail delivers the invite link. Failures are logged only.
func (s *inviteService) sendInviteMail(ctx context.Context, callerID string, prompt *models.Prompt, invite *models.Invite) {
	if s.mailer == nil || invite.Email == "" {
		return
	}

	inviterName := callerID
	if inviter, err := s.userRepo.GetByID(ctx, callerID); err == nil && inviter.DisplayName != "" {
		inviterName = inviter.DisplayName
	}

	link := fmt.Sprintf("%s/invites/accept?token=%s", s.baseURL, invite.Token)
	subject := fmt.Sprintf("%s invited you to collaborate on \"%s\"", inviterName, prompt.Title)
	body := fmt.Sprintf(
		"%s invited you to collaborate on the brief \"%s\".\r\n\r\nOpen the link below to accept. The invite expires on %s.\r\n\r\n%s\r\n",
		inviterName, prompt.Title, invite.ExpiresAt.Format(time.RFC1123), link,
	)

	if err := s.mailer.Send(invite.Email, subject, body); err != nil {
		log.Printf("Warning: failed to send invite email to '%s': %v", invite.Email, err)
	}
}
