package core

import (
	"context"
	"errors"
	"testing"

	"sitebrief-backend-go/internal/models"
)

func TestGetOrCreateFirstSight(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewUserService(users)

	user, created, err := svc.GetOrCreate(context.Background(), "uid-1", "alice@example.com", "Alice", "https://example.com/a.png")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if !created {
		t.Error("created = false on first sight, want true")
	}
	if user.ID != "uid-1" || user.Plan != "FREE" || user.GenerationsUsed != 0 {
		t.Errorf("new user = %+v, want FREE plan with zero usage", user)
	}

	// Second call finds the stored profile and does not reset anything.
	again, created, err := svc.GetOrCreate(context.Background(), "uid-1", "alice@example.com", "Alice Renamed", "")
	if err != nil {
		t.Fatalf("second GetOrCreate() error = %v", err)
	}
	if created {
		t.Error("created = true on second sight, want false")
	}
	if again.DisplayName != "Alice" {
		t.Errorf("display name = %q, want the stored profile untouched", again.DisplayName)
	}
}

func TestUserGetByID(t *testing.T) {
	users := newFakeUserRepo(&models.User{ID: "uid-1", DisplayName: "Alice"})
	svc := NewUserService(users)

	user, err := svc.GetByID(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if user.DisplayName != "Alice" {
		t.Errorf("user = %+v", user)
	}

	if _, err := svc.GetByID(context.Background(), "uid-404"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() on missing user error = %v, want ErrUserNotFound", err)
	}
}
