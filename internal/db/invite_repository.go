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

const invitesCollection = "invites"

// firestoreInviteRepository implements the InviteRepository interface using Firestore.
type firestoreInviteRepository struct {
	client *firestore.Client
}

// NewFirestoreInviteRepository creates a new instance of firestoreInviteRepository.
func NewFirestoreInviteRepository(client *firestore.Client) InviteRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for InviteRepository.")
	}
	return &firestoreInviteRepository{client: client}
}

// Create adds a new invite document to Firestore with an auto-generated ID.
func (r *firestoreInviteRepository) Create(ctx context.Context, invite *models.Invite) (string, error) {
	docRef := r.client.Collection(invitesCollection).NewDoc()
	invite.ID = docRef.ID

	_, err := docRef.Create(ctx, invite)
	if err != nil {
		return "", fmt.Errorf("failed to create invite: %w", err)
	}
	return docRef.ID, nil
}

// GetByID retrieves an invite document from Firestore by its ID.
func (r *firestoreInviteRepository) GetByID(ctx context.Context, inviteID string) (*models.Invite, error) {
	if inviteID == "" {
		return nil, errors.New("inviteID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(invitesCollection).Doc(inviteID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("invite with ID '%s' not found: %w", inviteID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invite with ID '%s': %w", inviteID, err)
	}

	var invite models.Invite
	if err := docSnap.DataTo(&invite); err != nil {
		return nil, fmt.Errorf("failed to decode invite data for ID '%s': %w", inviteID, err)
	}
	invite.ID = docSnap.Ref.ID

	return &invite, nil
}

// GetByToken retrieves an invite by its unique token string.
func (r *firestoreInviteRepository) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty for GetByToken operation")
	}

	iter := r.client.Collection(invitesCollection).Where("token", "==", token).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, fmt.Errorf("invite with token not found: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query invite by token: %w", err)
	}

	var invite models.Invite
	if err := doc.DataTo(&invite); err != nil {
		return nil, fmt.Errorf("failed to decode invite data for ID '%s': %w", doc.Ref.ID, err)
	}
	invite.ID = doc.Ref.ID

	return &invite, nil
}

// GetByPromptID retrieves all invites for a prompt.
func (r *firestoreInviteRepository) GetByPromptID(ctx context.Context, promptID string) ([]*models.Invite, error) {
	if promptID == "" {
		return nil, errors.New("promptID cannot be empty for GetByPromptID operation")
	}

	iter := r.client.Collection(invitesCollection).Where("promptId", "==", promptID).Documents(ctx)
	defer iter.Stop()

	var invites []*models.Invite
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate invites for prompt '%s': %w", promptID, err)
		}

		var invite models.Invite
		if err := doc.DataTo(&invite); err != nil {
			log.Printf("Error decoding invite data (ID: %s) for prompt '%s': %v. Skipping.", doc.Ref.ID, promptID, err)
			continue
		}
		invite.ID = doc.Ref.ID
		invites = append(invites, &invite)
	}

	return invites, nil
}

// Update modifies an existing invite document in Firestore.
func (r *firestoreInviteRepository) Update(ctx context.Context, invite *models.Invite) error {
	if invite.ID == "" {
		return errors.New("invite ID cannot be empty for Update operation")
	}
	_, err := r.client.Collection(invitesCollection).Doc(invite.ID).Set(ctx, invite, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update invite with ID '%s': %w", invite.ID, err)
	}
	return nil
}

// Accept re-reads the invite and its prompt inside one transaction, applies fn
// to both and writes them back together. The fresh reads mean a second
// acceptance of the same token observes status "accepted" and fails inside fn,
// no matter how closely the two requests raced.
func (r *firestoreInviteRepository) Accept(ctx context.Context, inviteID, promptID string, fn AcceptMutator) (*models.Invite, error) {
	if inviteID == "" || promptID == "" {
		return nil, errors.New("inviteID and promptID cannot be empty for Accept operation")
	}
	if fn == nil {
		return nil, errors.New("mutator function cannot be nil for Accept operation")
	}

	inviteRef := r.client.Collection(invitesCollection).Doc(inviteID)
	promptRef := r.client.Collection(promptsCollection).Doc(promptID)
	var accepted *models.Invite

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		accepted = nil // transaction body may be retried

		inviteSnap, err := tx.Get(inviteRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("invite with ID '%s' not found: %w", inviteID, ErrNotFound)
			}
			return fmt.Errorf("failed to read invite '%s' in transaction: %w", inviteID, err)
		}
		var invite models.Invite
		if err := inviteSnap.DataTo(&invite); err != nil {
			return fmt.Errorf("failed to decode invite data for ID '%s': %w", inviteID, err)
		}
		invite.ID = inviteSnap.Ref.ID

		promptSnap, err := tx.Get(promptRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("prompt with ID '%s' not found: %w", promptID, ErrNotFound)
			}
			return fmt.Errorf("failed to read prompt '%s' in transaction: %w", promptID, err)
		}
		var prompt models.Prompt
		if err := promptSnap.DataTo(&prompt); err != nil {
			return fmt.Errorf("failed to decode prompt data for ID '%s': %w", promptID, err)
		}
		prompt.ID = promptSnap.Ref.ID

		if err := fn(&invite, &prompt); err != nil {
			return err
		}

		if err := tx.Set(inviteRef, &invite); err != nil {
			return fmt.Errorf("failed to write invite '%s': %w", inviteID, err)
		}
		if err := tx.Set(promptRef, &prompt); err != nil {
			return fmt.Errorf("failed to write prompt '%s': %w", promptID, err)
		}

		accepted = &invite
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// DeleteByPromptID removes every invite for a prompt. Used by the prompt
// deletion cascade.
func (r *firestoreInviteRepository) DeleteByPromptID(ctx context.Context, promptID string) error {
	return deleteByPromptID(ctx, r.client, invitesCollection, promptID)
}
