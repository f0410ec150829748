package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"sitebrief-backend-go/internal/models"
)

func newTestLockService(prompts *fakePromptRepo, locks *fakeLockRepo, users *fakeUserRepo) *lockService {
	return NewLockService(locks, prompts, users).(*lockService)
}

func TestAcquireFreshLock(t *testing.T) {
	prompt := testPrompt("p1", "alice", 3)
	svc := newTestLockService(newFakePromptRepo(prompt), newFakeLockRepo(), newFakeUserRepo())
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	lock, err := svc.Acquire(context.Background(), "alice", "p1", 1)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if lock.OwnerID != "alice" || lock.SectionIndex != 1 {
		t.Errorf("lock = %+v, want owner alice on section 1", lock)
	}
	if got := lock.ExpiresAt.Sub(lock.LockedAt); got != LockTimeout {
		t.Errorf("lock lifetime = %v, want %v", got, LockTimeout)
	}
}

func TestAcquireIsReentrantAndRefreshes(t *testing.T) {
	prompt := testPrompt("p1", "alice", 2)
	svc := newTestLockService(newFakePromptRepo(prompt), newFakeLockRepo(), newFakeUserRepo())
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	first, err := svc.Acquire(context.Background(), "alice", "p1", 0)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	second, err := svc.Acquire(context.Background(), "alice", "p1", 0)
	if err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Errorf("re-acquire did not extend expiry: first %v, second %v", first.ExpiresAt, second.ExpiresAt)
	}
}

func TestAcquireContendedSectionFails(t *testing.T) {
	prompt := testPrompt("p1", "alice", 2)
	prompt.Collaborators = []string{"bob"}
	svc := newTestLockService(newFakePromptRepo(prompt), newFakeLockRepo(), newFakeUserRepo())
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	if _, err := svc.Acquire(context.Background(), "alice", "p1", 0); err != nil {
		t.Fatalf("Acquire() by alice error = %v", err)
	}

	svc.now = func() time.Time { return base.Add(time.Minute) }
	_, err := svc.Acquire(context.Background(), "bob", "p1", 0)
	if !errors.Is(err, ErrSectionLocked) {
		t.Fatalf("Acquire() by bob error = %v, want ErrSectionLocked", err)
	}

	// A different section is free.
	if _, err := svc.Acquire(context.Background(), "bob", "p1", 1); err != nil {
		t.Fatalf("Acquire() on free section error = %v", err)
	}
}

func TestAcquireReapsExpiredLock(t *testing.T) {
	prompt := testPrompt("p1", "alice", 1)
	prompt.Collaborators = []string{"bob"}
	svc := newTestLockService(newFakePromptRepo(prompt), newFakeLockRepo(), newFakeUserRepo())
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	if _, err := svc.Acquire(context.Background(), "alice", "p1", 0); err != nil {
		t.Fatalf("Acquire() by alice error = %v", err)
	}

	// Alice vanishes; past the timeout bob takes over.
	svc.now = func() time.Time { return base.Add(LockTimeout + time.Second) }
	lock, err := svc.Acquire(context.Background(), "bob", "p1", 0)
	if err != nil {
		t.Fatalf("Acquire() over expired lock error = %v", err)
	}
	if lock.OwnerID != "bob" {
		t.Errorf("lock owner = %s, want bob", lock.OwnerID)
	}
}

func TestAcquireValidation(t *testing.T) {
	prompt := testPrompt("p1", "alice", 2)
	svc := newTestLockService(newFakePromptRepo(prompt), newFakeLockRepo(), newFakeUserRepo())

	if _, err := svc.Acquire(context.Background(), "", "p1", 0); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous Acquire() error = %v, want ErrUnauthenticated", err)
	}
	if _, err := svc.Acquire(context.Background(), "alice", "missing", 0); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("Acquire() on missing prompt error = %v, want ErrPromptNotFound", err)
	}
	if _, err := svc.Acquire(context.Background(), "alice", "p1", 2); !errors.Is(err, ErrInvalidSection) {
		t.Errorf("Acquire() past last section error = %v, want ErrInvalidSection", err)
	}
	if _, err := svc.Acquire(context.Background(), "alice", "p1", -1); !errors.Is(err, ErrInvalidSection) {
		t.Errorf("Acquire() with negative index error = %v, want ErrInvalidSection", err)
	}
	if _, err := svc.Acquire(context.Background(), "stranger", "p1", 0); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Acquire() by stranger error = %v, want ErrPermissionDenied", err)
	}
}

func TestReleaseOnlyDeletesOwnLock(t *testing.T) {
	prompt := testPrompt("p1", "alice", 1)
	prompt.Collaborators = []string{"bob"}
	locks := newFakeLockRepo()
	svc := newTestLockService(newFakePromptRepo(prompt), locks, newFakeUserRepo())
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	if _, err := svc.Acquire(context.Background(), "alice", "p1", 0); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Bob releasing alice's lock is a silent no-op.
	if err := svc.Release(context.Background(), "bob", "p1", 0); err != nil {
		t.Fatalf("Release() by non-owner error = %v", err)
	}
	if _, err := svc.Acquire(context.Background(), "bob", "p1", 0); !errors.Is(err, ErrSectionLocked) {
		t.Fatalf("lock should survive a non-owner release, got err = %v", err)
	}

	if err := svc.Release(context.Background(), "alice", "p1", 0); err != nil {
		t.Fatalf("Release() by owner error = %v", err)
	}
	if _, err := svc.Acquire(context.Background(), "bob", "p1", 0); err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
}

func TestReleaseAbsentLockIsNoop(t *testing.T) {
	prompt := testPrompt("p1", "alice", 1)
	svc := newTestLockService(newFakePromptRepo(prompt), newFakeLockRepo(), newFakeUserRepo())

	if err := svc.Release(context.Background(), "alice", "p1", 0); err != nil {
		t.Fatalf("Release() with no lock error = %v", err)
	}
}

func TestListActiveLocks(t *testing.T) {
	prompt := testPrompt("p1", "alice", 3)
	prompt.Collaborators = []string{"bob"}
	users := newFakeUserRepo(&models.User{ID: "alice", DisplayName: "Alice"})
	svc := newTestLockService(newFakePromptRepo(prompt), newFakeLockRepo(), users)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	if _, err := svc.Acquire(context.Background(), "alice", "p1", 0); err != nil {
		t.Fatalf("Acquire() section 0 error = %v", err)
	}
	svc.now = func() time.Time { return base.Add(4 * time.Minute) }
	if _, err := svc.Acquire(context.Background(), "bob", "p1", 2); err != nil {
		t.Fatalf("Acquire() section 2 error = %v", err)
	}

	// At base+6m alice's lock has expired, bob's is live.
	svc.now = func() time.Time { return base.Add(6 * time.Minute) }
	active, err := svc.ListActive(context.Background(), "alice", "p1")
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("ListActive() returned %d locks, want 1", len(active))
	}
	if active[0].SectionIndex != 2 || active[0].OwnerID != "bob" {
		t.Errorf("active lock = %+v, want bob on section 2", active[0])
	}
	if !active[0].HeldByOther {
		t.Error("bob's lock should read as held-by-other for alice")
	}
}

func TestListActiveLocksAnonymousAccess(t *testing.T) {
	private := testPrompt("p1", "alice", 1)
	public := testPrompt("p2", "alice", 1)
	public.IsPublic = true
	public.ShareMode = models.ShareModeView
	svc := newTestLockService(newFakePromptRepo(private, public), newFakeLockRepo(), newFakeUserRepo())

	// Anonymous caller on a private prompt degrades to empty, not an error.
	locks, err := svc.ListActive(context.Background(), "", "p1")
	if err != nil {
		t.Fatalf("anonymous ListActive() on private prompt error = %v", err)
	}
	if len(locks) != 0 {
		t.Errorf("anonymous ListActive() on private prompt = %d locks, want 0", len(locks))
	}

	// An authenticated stranger with no access gets a denial.
	if _, err := svc.ListActive(context.Background(), "stranger", "p1"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("stranger ListActive() error = %v, want ErrPermissionDenied", err)
	}

	// Anyone can see the lock table on a public prompt.
	if _, err := svc.ListActive(context.Background(), "", "p2"); err != nil {
		t.Errorf("anonymous ListActive() on public prompt error = %v", err)
	}
}
