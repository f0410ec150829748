package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"sitebrief-backend-go/internal/models"
)

// firestoreEditRepository implements the EditRepository interface using
// Firestore. It is the read side of the log; writing happens inside
// PromptRepository.ApplyEdit so the record and the content share a transaction.
type firestoreEditRepository struct {
	client *firestore.Client
}

// NewFirestoreEditRepository creates a new instance of firestoreEditRepository.
func NewFirestoreEditRepository(client *firestore.Client) EditRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for EditRepository.")
	}
	return &firestoreEditRepository{client: client}
}

// GetByPromptID retrieves up to limit edit records for a prompt, newest first.
func (r *firestoreEditRepository) GetByPromptID(ctx context.Context, promptID string, limit int) ([]*models.EditRecord, error) {
	if promptID == "" {
		return nil, errors.New("promptID cannot be empty for GetByPromptID operation")
	}
	if limit <= 0 {
		limit = 50
	}

	query := r.client.Collection(editRecordsCollection).
		Where("promptId", "==", promptID).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var records []*models.EditRecord
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate edit records for prompt '%s': %w", promptID, err)
		}

		var record models.EditRecord
		if err := doc.DataTo(&record); err != nil {
			log.Printf("Error decoding edit record (ID: %s) for prompt '%s': %v. Skipping.", doc.Ref.ID, promptID, err)
			continue
		}
		record.ID = doc.Ref.ID
		records = append(records, &record)
	}

	return records, nil
}

// DeleteByPromptID removes every edit record for a prompt. The log is
// append-only in normal operation; this exists only for the prompt deletion
// cascade.
func (r *firestoreEditRepository) DeleteByPromptID(ctx context.Context, promptID string) error {
	return deleteByPromptID(ctx, r.client, editRecordsCollection, promptID)
}
