package models

import "time"

// Share modes for public prompts.
const (
	ShareModeView = "view"
	ShareModeEdit = "edit"
)

// Section is one addressable unit of a prompt. Section order is semantically
// meaningful: the index is the key used by locks and edits.
type Section struct {
	Header  string `json:"header" firestore:"header"`
	Content string `json:"content" firestore:"content"`
}

// Prompt represents the shared multi-section website brief being collaboratively edited.
type Prompt struct {
	ID              string    `json:"id" firestore:"-"` // Document ID, auto-generated
	OwnerID         string    `json:"ownerId" firestore:"ownerId"` // Firebase Auth UID of the owner, immutable
	Title           string    `json:"title" firestore:"title"`
	BusinessName    string    `json:"businessName,omitempty" firestore:"businessName,omitempty"`
	BusinessAddress string    `json:"businessAddress,omitempty" firestore:"businessAddress,omitempty"`
	MapsURL         string    `json:"mapsUrl,omitempty" firestore:"mapsUrl,omitempty"`
	Sections        []Section `json:"sections" firestore:"sections"`
	// Collaborators holds user IDs granted edit rights. The owner is never a member.
	Collaborators []string `json:"collaborators" firestore:"collaborators"`
	// Version advances by exactly one on every accepted edit and never decreases.
	Version   int64     `json:"version" firestore:"version"`
	IsPublic  bool      `json:"isPublic" firestore:"isPublic"`
	ShareMode string    `json:"shareMode,omitempty" firestore:"shareMode,omitempty"` // "view" or "edit", meaningful only when IsPublic
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// HasCollaborator reports whether userID is in the prompt's collaborator set.
func (p *Prompt) HasCollaborator(userID string) bool {
	for _, id := range p.Collaborators {
		if id == userID {
			return true
		}
	}
	return false
}
