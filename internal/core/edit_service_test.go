package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"sitebrief-backend-go/internal/models"
)

func newTestEditService(prompts *fakePromptRepo, users *fakeUserRepo) *editService {
	return NewEditService(prompts, &fakeEditRepo{prompts: prompts}, users).(*editService)
}

func TestApplyEditReplace(t *testing.T) {
	prompts := newFakePromptRepo(testPrompt("p1", "alice", 2))
	svc := newTestEditService(prompts, newFakeUserRepo())
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	record, err := svc.ApplyEdit(context.Background(), "alice", "p1", models.ApplyEditRequest{
		SectionIndex: 1,
		Operation:    models.OpReplace,
		OldContent:   "Content 1",
		NewContent:   "Updated content",
	})
	if err != nil {
		t.Fatalf("ApplyEdit() error = %v", err)
	}
	if record.Version != 1 || record.Operation != models.OpReplace {
		t.Errorf("record = %+v, want replace at version 1", record)
	}
	if !record.Timestamp.Equal(base) {
		t.Errorf("record timestamp = %v, want %v", record.Timestamp, base)
	}

	prompt, _ := prompts.GetByID(context.Background(), "p1")
	if prompt.Sections[1].Content != "Updated content" {
		t.Errorf("section content = %q, want replacement applied", prompt.Sections[1].Content)
	}
	if prompt.Sections[1].Header != "Section 1" {
		t.Errorf("section header = %q, want untouched when the request omits it", prompt.Sections[1].Header)
	}
	if prompt.Version != 1 {
		t.Errorf("prompt version = %d, want 1", prompt.Version)
	}
	if !prompt.UpdatedAt.Equal(base) {
		t.Errorf("prompt UpdatedAt = %v, want %v (stamped in the same commit)", prompt.UpdatedAt, base)
	}
}

func TestApplyEditInsertAndDelete(t *testing.T) {
	prompts := newFakePromptRepo(testPrompt("p1", "alice", 2))
	svc := newTestEditService(prompts, newFakeUserRepo())

	if _, err := svc.ApplyEdit(context.Background(), "alice", "p1", models.ApplyEditRequest{
		SectionIndex: 1,
		Operation:    models.OpInsert,
		Header:       "New Section",
		NewContent:   "Inserted",
	}); err != nil {
		t.Fatalf("insert ApplyEdit() error = %v", err)
	}

	prompt, _ := prompts.GetByID(context.Background(), "p1")
	if len(prompt.Sections) != 3 {
		t.Fatalf("section count after insert = %d, want 3", len(prompt.Sections))
	}
	if prompt.Sections[1].Header != "New Section" || prompt.Sections[2].Content != "Content 1" {
		t.Errorf("sections after insert = %+v, want splice at index 1", prompt.Sections)
	}

	if _, err := svc.ApplyEdit(context.Background(), "alice", "p1", models.ApplyEditRequest{
		SectionIndex: 0,
		Operation:    models.OpDelete,
	}); err != nil {
		t.Fatalf("delete ApplyEdit() error = %v", err)
	}

	prompt, _ = prompts.GetByID(context.Background(), "p1")
	if len(prompt.Sections) != 2 || prompt.Sections[0].Header != "New Section" {
		t.Errorf("sections after delete = %+v, want first removed", prompt.Sections)
	}
	if prompt.Version != 2 {
		t.Errorf("prompt version = %d, want 2 after two edits", prompt.Version)
	}
}

func TestApplyEditInsertAtEnd(t *testing.T) {
	prompts := newFakePromptRepo(testPrompt("p1", "alice", 1))
	svc := newTestEditService(prompts, newFakeUserRepo())

	// Insert at len(sections) appends; one past it is out of range.
	if _, err := svc.ApplyEdit(context.Background(), "alice", "p1", models.ApplyEditRequest{
		SectionIndex: 1,
		Operation:    models.OpInsert,
		NewContent:   "Appended",
	}); err != nil {
		t.Fatalf("append insert error = %v", err)
	}
	if _, err := svc.ApplyEdit(context.Background(), "alice", "p1", models.ApplyEditRequest{
		SectionIndex: 3,
		Operation:    models.OpInsert,
	}); !errors.Is(err, ErrInvalidSection) {
		t.Errorf("insert past end error = %v, want ErrInvalidSection", err)
	}
}

func TestApplyEditValidation(t *testing.T) {
	prompts := newFakePromptRepo(testPrompt("p1", "alice", 1))
	svc := newTestEditService(prompts, newFakeUserRepo())

	if _, err := svc.ApplyEdit(context.Background(), "", "p1", models.ApplyEditRequest{Operation: models.OpReplace}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous edit error = %v, want ErrUnauthenticated", err)
	}
	if _, err := svc.ApplyEdit(context.Background(), "alice", "p1", models.ApplyEditRequest{Operation: "merge"}); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("unknown operation error = %v, want ErrInvalidOperation", err)
	}
	if _, err := svc.ApplyEdit(context.Background(), "alice", "p1", models.ApplyEditRequest{SectionIndex: 5, Operation: models.OpReplace}); !errors.Is(err, ErrInvalidSection) {
		t.Errorf("out of range replace error = %v, want ErrInvalidSection", err)
	}
	if _, err := svc.ApplyEdit(context.Background(), "stranger", "p1", models.ApplyEditRequest{Operation: models.OpReplace}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("stranger edit error = %v, want ErrPermissionDenied", err)
	}

	// A failed edit must not advance the version.
	prompt, _ := prompts.GetByID(context.Background(), "p1")
	if prompt.Version != 0 {
		t.Errorf("prompt version after failed edits = %d, want 0", prompt.Version)
	}
}

// Locks are advisory: holding none, or someone else holding one, does not gate
// the edit path. The client honors locks; the service only records edits.
func TestApplyEditIgnoresSectionLocks(t *testing.T) {
	prompt := testPrompt("p1", "alice", 1)
	prompt.Collaborators = []string{"bob"}
	prompts := newFakePromptRepo(prompt)
	locks := newFakeLockRepo()
	editSvc := newTestEditService(prompts, newFakeUserRepo())
	lockSvc := newTestLockService(prompts, locks, newFakeUserRepo())
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	lockSvc.now = func() time.Time { return base }

	if _, err := lockSvc.Acquire(context.Background(), "alice", "p1", 0); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Bob edits the locked section anyway and it succeeds.
	if _, err := editSvc.ApplyEdit(context.Background(), "bob", "p1", models.ApplyEditRequest{
		SectionIndex: 0,
		Operation:    models.OpReplace,
		NewContent:   "Bob's text",
	}); err != nil {
		t.Fatalf("ApplyEdit() on a section locked by another user error = %v", err)
	}
}

func TestVersionAdvancesOncePerEdit(t *testing.T) {
	prompts := newFakePromptRepo(testPrompt("p1", "alice", 1))
	svc := newTestEditService(prompts, newFakeUserRepo())

	for i := 1; i <= 5; i++ {
		record, err := svc.ApplyEdit(context.Background(), "alice", "p1", models.ApplyEditRequest{
			SectionIndex: 0,
			Operation:    models.OpReplace,
			NewContent:   "rev",
		})
		if err != nil {
			t.Fatalf("edit %d error = %v", i, err)
		}
		if record.Version != int64(i) {
			t.Fatalf("edit %d produced version %d", i, record.Version)
		}
	}
}

func TestGetHistory(t *testing.T) {
	prompts := newFakePromptRepo(testPrompt("p1", "alice", 1))
	users := newFakeUserRepo(&models.User{ID: "alice", DisplayName: "Alice", PhotoURL: "https://example.com/a.png"})
	svc := newTestEditService(prompts, users)

	for i := 0; i < 3; i++ {
		if _, err := svc.ApplyEdit(context.Background(), "alice", "p1", models.ApplyEditRequest{
			SectionIndex: 0,
			Operation:    models.OpReplace,
			NewContent:   "rev",
		}); err != nil {
			t.Fatalf("seed edit error = %v", err)
		}
	}

	history, err := svc.GetHistory(context.Background(), "alice", "p1", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Version != 3 || history[2].Version != 1 {
		t.Errorf("history order = versions %d..%d, want newest first", history[0].Version, history[2].Version)
	}
	if history[0].AuthorName != "Alice" {
		t.Errorf("author name = %q, want enrichment from profile", history[0].AuthorName)
	}

	limited, err := svc.GetHistory(context.Background(), "alice", "p1", 2)
	if err != nil {
		t.Fatalf("GetHistory(limit=2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited history length = %d, want 2", len(limited))
	}
}

func TestGetHistoryAccessControl(t *testing.T) {
	private := testPrompt("p1", "alice", 1)
	public := testPrompt("p2", "alice", 1)
	public.IsPublic = true
	public.ShareMode = models.ShareModeView
	prompts := newFakePromptRepo(private, public)
	svc := newTestEditService(prompts, newFakeUserRepo())

	if _, err := svc.GetHistory(context.Background(), "", "p1", 0); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("anonymous GetHistory() on private prompt error = %v, want ErrPermissionDenied", err)
	}
	if _, err := svc.GetHistory(context.Background(), "stranger", "p1", 0); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("stranger GetHistory() error = %v, want ErrPermissionDenied", err)
	}

	// History is gated on view only; public prompts expose it to anonymous
	// callers.
	if _, err := svc.GetHistory(context.Background(), "", "p2", 0); err != nil {
		t.Errorf("anonymous GetHistory() on public prompt error = %v", err)
	}
}
