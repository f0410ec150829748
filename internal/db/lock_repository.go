package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sitebrief-backend-go/internal/models"
)

const sectionLocksCollection = "sectionLocks"

// lockDocID builds the deterministic document ID for a (prompt, section) pair.
// One document per section makes "at most one lock row" structural; the
// transaction in Mutate makes the liveness check on it race-free.
func lockDocID(promptID string, sectionIndex int) string {
	return promptID + "_" + strconv.Itoa(sectionIndex)
}

// firestoreLockRepository implements the LockRepository interface using Firestore.
type firestoreLockRepository struct {
	client *firestore.Client
}

// NewFirestoreLockRepository creates a new instance of firestoreLockRepository.
func NewFirestoreLockRepository(client *firestore.Client) LockRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for LockRepository.")
	}
	return &firestoreLockRepository{client: client}
}

// Mutate runs fn against a fresh read of the lock row for (promptID,
// sectionIndex) inside a Firestore transaction. fn receives nil when no row
// exists. Its return value decides the write: nil deletes the row (no-op when
// absent), the existing pointer unchanged keeps it, any other lock is stored.
// Two concurrent acquisitions of the same section serialize here: one
// transaction commits, the other retries against the committed state.
func (r *firestoreLockRepository) Mutate(ctx context.Context, promptID string, sectionIndex int, fn LockMutator) (*models.SectionLock, error) {
	if promptID == "" {
		return nil, errors.New("promptID cannot be empty for Mutate operation")
	}
	if fn == nil {
		return nil, errors.New("mutator function cannot be nil for Mutate operation")
	}

	lockRef := r.client.Collection(sectionLocksCollection).Doc(lockDocID(promptID, sectionIndex))
	var result *models.SectionLock

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = nil // transaction body may be retried

		var existing *models.SectionLock
		docSnap, err := tx.Get(lockRef)
		switch {
		case err == nil:
			var lock models.SectionLock
			if decodeErr := docSnap.DataTo(&lock); decodeErr != nil {
				return fmt.Errorf("failed to decode lock data for '%s': %w", lockRef.ID, decodeErr)
			}
			lock.ID = docSnap.Ref.ID
			existing = &lock
		case status.Code(err) == codes.NotFound:
			// No lock row for this section.
		default:
			return fmt.Errorf("failed to read lock '%s' in transaction: %w", lockRef.ID, err)
		}

		next, err := fn(existing)
		if err != nil {
			return err
		}

		switch {
		case next == nil:
			if existing != nil {
				if err := tx.Delete(lockRef); err != nil {
					return fmt.Errorf("failed to delete lock '%s': %w", lockRef.ID, err)
				}
			}
		case next == existing:
			// Keep as-is, no write.
			result = existing
		default:
			next.PromptID = promptID
			next.SectionIndex = sectionIndex
			if err := tx.Set(lockRef, next); err != nil {
				return fmt.Errorf("failed to write lock '%s': %w", lockRef.ID, err)
			}
			next.ID = lockRef.ID
			result = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetByPromptID retrieves all lock rows for a prompt, expired ones included.
// Expiry filtering is the caller's concern (lazy expiry).
func (r *firestoreLockRepository) GetByPromptID(ctx context.Context, promptID string) ([]*models.SectionLock, error) {
	if promptID == "" {
		return nil, errors.New("promptID cannot be empty for GetByPromptID operation")
	}

	iter := r.client.Collection(sectionLocksCollection).Where("promptId", "==", promptID).Documents(ctx)
	defer iter.Stop()

	var locks []*models.SectionLock
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate locks for prompt '%s': %w", promptID, err)
		}

		var lock models.SectionLock
		if err := doc.DataTo(&lock); err != nil {
			log.Printf("Error decoding lock data (ID: %s) for prompt '%s': %v. Skipping.", doc.Ref.ID, promptID, err)
			continue
		}
		lock.ID = doc.Ref.ID
		locks = append(locks, &lock)
	}

	return locks, nil
}

// DeleteByPromptID removes every lock row for a prompt. Used by the prompt
// deletion cascade.
func (r *firestoreLockRepository) DeleteByPromptID(ctx context.Context, promptID string) error {
	return deleteByPromptID(ctx, r.client, sectionLocksCollection, promptID)
}
