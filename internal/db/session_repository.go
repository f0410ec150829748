package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sitebrief-backend-go/internal/models"
)

const sessionsCollection = "sessions"

// sessionDocID builds the deterministic document ID for a (prompt, user) pair.
// One document per pair is what makes join idempotent: a second join can only
// overwrite, never duplicate.
func sessionDocID(promptID, userID string) string {
	return promptID + "_" + userID
}

// firestoreSessionRepository implements the SessionRepository interface using Firestore.
type firestoreSessionRepository struct {
	client *firestore.Client
}

// NewFirestoreSessionRepository creates a new instance of firestoreSessionRepository.
func NewFirestoreSessionRepository(client *firestore.Client) SessionRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for SessionRepository.")
	}
	return &firestoreSessionRepository{client: client}
}

// Upsert creates the session for (promptID, userID) or refreshes lastActiveAt
// on an existing one, preserving joinedAt. The read and the write run in one
// transaction so a concurrent join cannot clobber joinedAt.
func (r *firestoreSessionRepository) Upsert(ctx context.Context, promptID, userID string, now time.Time) (*models.Session, error) {
	if promptID == "" || userID == "" {
		return nil, errors.New("promptID and userID cannot be empty for Upsert operation")
	}

	sessionRef := r.client.Collection(sessionsCollection).Doc(sessionDocID(promptID, userID))
	var result *models.Session

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		session := &models.Session{
			PromptID:     promptID,
			UserID:       userID,
			JoinedAt:     now,
			LastActiveAt: now,
		}

		docSnap, err := tx.Get(sessionRef)
		switch {
		case err == nil:
			var existing models.Session
			if decodeErr := docSnap.DataTo(&existing); decodeErr != nil {
				return fmt.Errorf("failed to decode session data for '%s': %w", sessionRef.ID, decodeErr)
			}
			// Refresh, keeping the original join time and advisory fields.
			existing.LastActiveAt = now
			session = &existing
		case status.Code(err) == codes.NotFound:
			// First join: create fresh.
		default:
			return fmt.Errorf("failed to read session '%s' in transaction: %w", sessionRef.ID, err)
		}

		if err := tx.Set(sessionRef, session); err != nil {
			return fmt.Errorf("failed to write session '%s': %w", sessionRef.ID, err)
		}
		session.ID = sessionRef.ID
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the session for (promptID, userID). Absence is not an error:
// leave must tolerate logout races.
func (r *firestoreSessionRepository) Delete(ctx context.Context, promptID, userID string) error {
	if promptID == "" || userID == "" {
		return nil
	}
	_, err := r.client.Collection(sessionsCollection).Doc(sessionDocID(promptID, userID)).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete session for prompt '%s', user '%s': %w", promptID, userID, err)
	}
	return nil
}

// UpdateCursor patches the cursor and bumps lastActiveAt on an existing session.
// It never creates a session; a heartbeat without a join returns ErrNotFound.
func (r *firestoreSessionRepository) UpdateCursor(ctx context.Context, promptID, userID string, cursor models.Cursor, now time.Time) error {
	sessionRef := r.client.Collection(sessionsCollection).Doc(sessionDocID(promptID, userID))
	_, err := sessionRef.Update(ctx, []firestore.Update{
		{Path: "cursor", Value: &cursor},
		{Path: "lastActiveAt", Value: now},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("session for prompt '%s', user '%s' not found: %w", promptID, userID, ErrNotFound)
		}
		return fmt.Errorf("failed to update cursor for session '%s': %w", sessionRef.ID, err)
	}
	return nil
}

// SetTyping patches the typing flag and bumps lastActiveAt on an existing session.
func (r *firestoreSessionRepository) SetTyping(ctx context.Context, promptID, userID string, isTyping bool, now time.Time) error {
	sessionRef := r.client.Collection(sessionsCollection).Doc(sessionDocID(promptID, userID))
	_, err := sessionRef.Update(ctx, []firestore.Update{
		{Path: "isTyping", Value: isTyping},
		{Path: "lastActiveAt", Value: now},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("session for prompt '%s', user '%s' not found: %w", promptID, userID, ErrNotFound)
		}
		return fmt.Errorf("failed to update typing status for session '%s': %w", sessionRef.ID, err)
	}
	return nil
}

// GetByPromptID retrieves all session rows for a prompt, stale ones included.
// Liveness filtering is the caller's concern (lazy expiry).
func (r *firestoreSessionRepository) GetByPromptID(ctx context.Context, promptID string) ([]*models.Session, error) {
	if promptID == "" {
		return nil, errors.New("promptID cannot be empty for GetByPromptID operation")
	}

	iter := r.client.Collection(sessionsCollection).Where("promptId", "==", promptID).Documents(ctx)
	defer iter.Stop()

	var sessions []*models.Session
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate sessions for prompt '%s': %w", promptID, err)
		}

		var session models.Session
		if err := doc.DataTo(&session); err != nil {
			log.Printf("Error decoding session data (ID: %s) for prompt '%s': %v. Skipping.", doc.Ref.ID, promptID, err)
			continue
		}
		session.ID = doc.Ref.ID
		sessions = append(sessions, &session)
	}

	return sessions, nil
}

// DeleteByPromptID removes every session row for a prompt. Used by the prompt
// deletion cascade.
func (r *firestoreSessionRepository) DeleteByPromptID(ctx context.Context, promptID string) error {
	return deleteByPromptID(ctx, r.client, sessionsCollection, promptID)
}

// deleteByPromptID batch-deletes every document in collection matching promptId.
// Shared by the session, lock, edit record and invite cascades.
func deleteByPromptID(ctx context.Context, client *firestore.Client, collection, promptID string) error {
	if promptID == "" {
		return errors.New("promptID cannot be empty for cascade delete")
	}

	iter := client.Collection(collection).Where("promptId", "==", promptID).Documents(ctx)
	defer iter.Stop()

	bulk := client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate %s for prompt '%s': %w", collection, promptID, err)
		}
		if _, err := bulk.Delete(doc.Ref); err != nil {
			return fmt.Errorf("failed to enqueue delete of %s/%s: %w", collection, doc.Ref.ID, err)
		}
	}
	bulk.End()
	return nil
}
