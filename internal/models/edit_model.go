package models

import "time"

// Edit operation kinds.
const (
	OpInsert  = "insert"
	OpDelete  = "delete"
	OpReplace = "replace"
)

// EditRecord is an append-only log entry capturing one accepted mutation to a
// section and the document version that resulted from it. Records are never
// mutated or deleted after creation (prompt deletion cascade aside).
type EditRecord struct {
	ID           string    `json:"id" firestore:"-"`
	PromptID     string    `json:"promptId" firestore:"promptId"`
	AuthorID     string    `json:"authorId" firestore:"authorId"`
	SectionIndex int       `json:"sectionIndex" firestore:"sectionIndex"`
	Operation    string    `json:"operation" firestore:"operation"` // "insert", "delete" or "replace"
	OldContent   string    `json:"oldContent,omitempty" firestore:"oldContent,omitempty"`
	NewContent   string    `json:"newContent,omitempty" firestore:"newContent,omitempty"`
	// Version equals the prompt's version *after* this edit was applied.
	Version   int64     `json:"version" firestore:"version"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
}

// EditHistoryEntry is an edit record enriched with the author's profile for display.
type EditHistoryEntry struct {
	EditRecord
	AuthorName     string `json:"authorName,omitempty"`
	AuthorPhotoURL string `json:"authorPhotoURL,omitempty"`
}
