package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sitebrief-backend-go/internal/models"
)

const (
	promptsCollection     = "prompts"
	editRecordsCollection = "editRecords"
)

// firestorePromptRepository implements the PromptRepository interface using Firestore.
type firestorePromptRepository struct {
	client *firestore.Client
}

// NewFirestorePromptRepository creates a new instance of firestorePromptRepository.
func NewFirestorePromptRepository(client *firestore.Client) PromptRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for PromptRepository.")
	}
	return &firestorePromptRepository{client: client}
}

// Create adds a new prompt document to Firestore with an auto-generated ID.
// It sets prompt.ID with the new document ID before creation.
func (r *firestorePromptRepository) Create(ctx context.Context, prompt *models.Prompt) (string, error) {
	docRef := r.client.Collection(promptsCollection).NewDoc()
	prompt.ID = docRef.ID

	_, err := docRef.Create(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to create prompt: %w", err)
	}
	return docRef.ID, nil
}

// GetByID retrieves a prompt document from Firestore by its ID.
func (r *firestorePromptRepository) GetByID(ctx context.Context, promptID string) (*models.Prompt, error) {
	if promptID == "" {
		return nil, errors.New("promptID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(promptsCollection).Doc(promptID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("prompt with ID '%s' not found: %w", promptID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get prompt with ID '%s': %w", promptID, err)
	}

	var prompt models.Prompt
	if err := docSnap.DataTo(&prompt); err != nil {
		return nil, fmt.Errorf("failed to decode prompt data for ID '%s': %w", promptID, err)
	}
	prompt.ID = docSnap.Ref.ID

	return &prompt, nil
}

// GetByOwnerID retrieves all prompts owned by a specific user, newest first.
func (r *firestorePromptRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]*models.Prompt, error) {
	if ownerID == "" {
		return nil, errors.New("ownerID cannot be empty for GetByOwnerID operation")
	}

	query := r.client.Collection(promptsCollection).
		Where("ownerId", "==", ownerID).
		OrderBy("createdAt", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var prompts []*models.Prompt
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate prompts for owner '%s': %w", ownerID, err)
		}

		var prompt models.Prompt
		if err := doc.DataTo(&prompt); err != nil {
			log.Printf("Error decoding prompt data (ID: %s) for owner '%s': %v. Skipping.", doc.Ref.ID, ownerID, err)
			continue
		}
		prompt.ID = doc.Ref.ID
		prompts = append(prompts, &prompt)
	}

	return prompts, nil
}

// UpdateFields patches only the named fields of a prompt document. Sections
// and the version counter belong to ApplyEdit and must never appear here; a
// field-path update leaves everything unnamed untouched even when it races an
// edit transaction.
func (r *firestorePromptRepository) UpdateFields(ctx context.Context, promptID string, fields map[string]interface{}) error {
	if promptID == "" {
		return errors.New("promptID cannot be empty for UpdateFields operation")
	}
	if len(fields) == 0 {
		return errors.New("no fields given for UpdateFields operation")
	}

	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}

	_, err := r.client.Collection(promptsCollection).Doc(promptID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("prompt with ID '%s' not found for update: %w", promptID, ErrNotFound)
		}
		return fmt.Errorf("failed to update prompt with ID '%s': %w", promptID, err)
	}
	return nil
}

// Delete removes a prompt document from Firestore. Cascading deletes of the
// prompt's sessions, locks, edit records and invites are the service layer's
// responsibility.
func (r *firestorePromptRepository) Delete(ctx context.Context, promptID string) error {
	if promptID == "" {
		return errors.New("promptID cannot be empty for Delete operation")
	}
	_, err := r.client.Collection(promptsCollection).Doc(promptID).Delete(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("prompt with ID '%s' not found for deletion: %w", promptID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete prompt with ID '%s': %w", promptID, err)
	}
	return nil
}

// ApplyEdit runs mutate against a fresh read of the prompt inside a Firestore
// transaction, then writes the mutated prompt and creates the returned edit
// record in that same transaction. Two concurrent edits therefore cannot both
// read the same version: Firestore retries one of them against the new state,
// which keeps the version sequence contiguous.
func (r *firestorePromptRepository) ApplyEdit(ctx context.Context, promptID string, mutate EditMutator) (*models.EditRecord, error) {
	if promptID == "" {
		return nil, errors.New("promptID cannot be empty for ApplyEdit operation")
	}
	if mutate == nil {
		return nil, errors.New("mutate function cannot be nil for ApplyEdit operation")
	}

	promptRef := r.client.Collection(promptsCollection).Doc(promptID)
	var applied *models.EditRecord

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = nil // transaction body may be retried

		docSnap, err := tx.Get(promptRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("prompt with ID '%s' not found: %w", promptID, ErrNotFound)
			}
			return fmt.Errorf("failed to read prompt '%s' in transaction: %w", promptID, err)
		}

		var prompt models.Prompt
		if err := docSnap.DataTo(&prompt); err != nil {
			return fmt.Errorf("failed to decode prompt data for ID '%s': %w", promptID, err)
		}
		prompt.ID = docSnap.Ref.ID

		record, err := mutate(&prompt)
		if err != nil {
			return err
		}
		if record == nil {
			return errors.New("edit mutator returned a nil record")
		}
		record.PromptID = promptID

		recordRef := r.client.Collection(editRecordsCollection).NewDoc()
		record.ID = recordRef.ID

		if err := tx.Set(promptRef, &prompt); err != nil {
			return fmt.Errorf("failed to write prompt '%s' in transaction: %w", promptID, err)
		}
		if err := tx.Create(recordRef, record); err != nil {
			return fmt.Errorf("failed to append edit record for prompt '%s': %w", promptID, err)
		}

		applied = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}
