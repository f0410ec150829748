package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"sitebrief-backend-go/internal/models"
)

func newTestPromptService(prompts *fakePromptRepo) (PromptService, *fakeSessionRepo, *fakeLockRepo, *fakeInviteRepo) {
	sessions := newFakeSessionRepo()
	locks := newFakeLockRepo()
	invites := newFakeInviteRepo(prompts)
	svc := NewPromptService(prompts, sessions, locks, &fakeEditRepo{prompts: prompts}, invites)
	return svc, sessions, locks, invites
}

func TestCreatePrompt(t *testing.T) {
	prompts := newFakePromptRepo()
	svc, _, _, _ := newTestPromptService(prompts)

	prompt, err := svc.CreatePrompt(context.Background(), "alice", models.CreatePromptRequest{
		Title:    "Bakery Brief",
		MapsURL:  "https://maps.google.com/?q=Corner+Bakery",
		Sections: []models.Section{{Header: "Intro", Content: "Welcome"}},
	})
	if err != nil {
		t.Fatalf("CreatePrompt() error = %v", err)
	}
	if prompt.ID == "" || prompt.OwnerID != "alice" || prompt.Version != 0 {
		t.Errorf("prompt = %+v, want owned by alice at version 0", prompt)
	}

	if _, err := svc.CreatePrompt(context.Background(), "", models.CreatePromptRequest{}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous CreatePrompt() error = %v, want ErrUnauthenticated", err)
	}
}

func TestGetPromptVisibility(t *testing.T) {
	private := testPrompt("p1", "alice", 1)
	public := testPrompt("p2", "alice", 1)
	public.IsPublic = true
	public.ShareMode = models.ShareModeView
	prompts := newFakePromptRepo(private, public)
	svc, _, _, _ := newTestPromptService(prompts)

	if _, err := svc.GetPrompt(context.Background(), "alice", "p1"); err != nil {
		t.Errorf("owner GetPrompt() error = %v", err)
	}
	if _, err := svc.GetPrompt(context.Background(), "stranger", "p1"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("stranger GetPrompt() on private error = %v, want ErrPermissionDenied", err)
	}
	if _, err := svc.GetPrompt(context.Background(), "", "p2"); err != nil {
		t.Errorf("anonymous GetPrompt() on public error = %v", err)
	}
	if _, err := svc.GetPrompt(context.Background(), "alice", "nope"); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("GetPrompt() on missing prompt error = %v, want ErrPromptNotFound", err)
	}
}

func TestGetAccess(t *testing.T) {
	prompt := testPrompt("p1", "alice", 1)
	prompt.Collaborators = []string{"bob"}
	prompts := newFakePromptRepo(prompt)
	svc, _, _, _ := newTestPromptService(prompts)

	owner, err := svc.GetAccess(context.Background(), "alice", "p1")
	if err != nil {
		t.Fatalf("GetAccess() error = %v", err)
	}
	if owner.Role != RoleOwner || !owner.CanManageCollaborators {
		t.Errorf("owner access = %+v", owner)
	}

	collab, err := svc.GetAccess(context.Background(), "bob", "p1")
	if err != nil {
		t.Fatalf("GetAccess() error = %v", err)
	}
	if collab.Role != RoleCollaborator || !collab.CanEdit || collab.CanInvite {
		t.Errorf("collaborator access = %+v", collab)
	}

	none, err := svc.GetAccess(context.Background(), "stranger", "p1")
	if err != nil {
		t.Fatalf("GetAccess() error = %v", err)
	}
	if none.CanView {
		t.Errorf("stranger access = %+v, want no view on a private prompt", none)
	}
}

func TestUpdateSharing(t *testing.T) {
	prompts := newFakePromptRepo(testPrompt("p1", "alice", 1))
	svc, _, _, _ := newTestPromptService(prompts)

	public := true
	mode := models.ShareModeEdit
	updated, err := svc.UpdateSharing(context.Background(), "alice", "p1", models.UpdateSharingRequest{
		IsPublic:  &public,
		ShareMode: &mode,
	})
	if err != nil {
		t.Fatalf("UpdateSharing() error = %v", err)
	}
	if !updated.IsPublic || updated.ShareMode != models.ShareModeEdit {
		t.Errorf("updated prompt sharing = public %v mode %q", updated.IsPublic, updated.ShareMode)
	}

	bad := "everyone"
	if _, err := svc.UpdateSharing(context.Background(), "alice", "p1", models.UpdateSharingRequest{ShareMode: &bad}); !errors.Is(err, ErrInvalidShareMode) {
		t.Errorf("UpdateSharing() with bad mode error = %v, want ErrInvalidShareMode", err)
	}
	if _, err := svc.UpdateSharing(context.Background(), "bob", "p1", models.UpdateSharingRequest{IsPublic: &public}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("non-owner UpdateSharing() error = %v, want ErrPermissionDenied", err)
	}
}

func TestUpdateSharingDoesNotClobberConcurrentEdit(t *testing.T) {
	prompts := newFakePromptRepo(testPrompt("p1", "alice", 1))
	svc, _, _, _ := newTestPromptService(prompts)

	// Land an edit between UpdateSharing's read and its write.
	prompts.afterGet = func() {
		prompts.afterGet = nil
		if _, err := prompts.ApplyEdit(context.Background(), "p1", func(p *models.Prompt) (*models.EditRecord, error) {
			p.Sections[0].Content = "Edited meanwhile"
			p.Version++
			return &models.EditRecord{
				AuthorID:  "bob",
				Operation: models.OpReplace,
				Version:   p.Version,
			}, nil
		}); err != nil {
			t.Errorf("interleaved ApplyEdit() error = %v", err)
		}
	}

	public := true
	if _, err := svc.UpdateSharing(context.Background(), "alice", "p1", models.UpdateSharingRequest{IsPublic: &public}); err != nil {
		t.Fatalf("UpdateSharing() error = %v", err)
	}

	stored, err := prompts.GetByID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !stored.IsPublic {
		t.Error("sharing update was lost")
	}
	if stored.Version != 1 {
		t.Errorf("version = %d, want 1 (sharing write must not regress the counter)", stored.Version)
	}
	if stored.Sections[0].Content != "Edited meanwhile" {
		t.Errorf("section content = %q, want the concurrent edit preserved", stored.Sections[0].Content)
	}
}

func TestDeletePromptCascades(t *testing.T) {
	prompt := testPrompt("p1", "alice", 1)
	prompts := newFakePromptRepo(prompt)
	svc, sessions, locks, _ := newTestPromptService(prompts)

	if _, err := sessions.Upsert(context.Background(), "p1", "bob", time.Now()); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := svc.DeletePrompt(context.Background(), "bob", "p1"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("non-owner DeletePrompt() error = %v, want ErrPermissionDenied", err)
	}
	if err := svc.DeletePrompt(context.Background(), "alice", "p1"); err != nil {
		t.Fatalf("DeletePrompt() error = %v", err)
	}

	if _, err := prompts.GetByID(context.Background(), "p1"); err == nil {
		t.Error("prompt still readable after delete")
	}
	remaining, err := sessions.GetByPromptID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetByPromptID() error = %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("sessions after cascade = %d, want 0", len(remaining))
	}
	if got, err := locks.GetByPromptID(context.Background(), "p1"); err != nil || len(got) != 0 {
		t.Errorf("locks after cascade = %v (err %v), want none", got, err)
	}
}

func TestRemoveCollaborator(t *testing.T) {
	prompt := testPrompt("p1", "alice", 1)
	prompt.Collaborators = []string{"bob", "carol"}
	prompts := newFakePromptRepo(prompt)
	svc, _, _, _ := newTestPromptService(prompts)

	// A collaborator cannot remove someone else.
	if err := svc.RemoveCollaborator(context.Background(), "bob", "p1", "carol"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("peer removal error = %v, want ErrPermissionDenied", err)
	}

	// Self-removal is allowed.
	if err := svc.RemoveCollaborator(context.Background(), "bob", "p1", "bob"); err != nil {
		t.Fatalf("self RemoveCollaborator() error = %v", err)
	}
	// The owner can remove anyone.
	if err := svc.RemoveCollaborator(context.Background(), "alice", "p1", "carol"); err != nil {
		t.Fatalf("owner RemoveCollaborator() error = %v", err)
	}

	got, _ := prompts.GetByID(context.Background(), "p1")
	if len(got.Collaborators) != 0 {
		t.Errorf("collaborators = %v, want empty", got.Collaborators)
	}

	// Removing an absent user is a harmless no-op.
	if err := svc.RemoveCollaborator(context.Background(), "alice", "p1", "nobody"); err != nil {
		t.Errorf("absent RemoveCollaborator() error = %v", err)
	}
}
