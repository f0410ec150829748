package models

import "time"

// Cursor is the last known caret location of a collaborator. Advisory only.
type Cursor struct {
	SectionIndex int `json:"sectionIndex" firestore:"sectionIndex"`
	Position     int `json:"position" firestore:"position"`
}

// Session is a presence record: one per (prompt, user) pair. The document ID is
// the deterministic "{promptID}_{userID}", which makes join idempotent at the
// storage layer.
type Session struct {
	ID           string    `json:"id" firestore:"-"`
	PromptID     string    `json:"promptId" firestore:"promptId"`
	UserID       string    `json:"userId" firestore:"userId"`
	JoinedAt     time.Time `json:"joinedAt" firestore:"joinedAt"`
	LastActiveAt time.Time `json:"lastActiveAt" firestore:"lastActiveAt"`
	Cursor       *Cursor   `json:"cursor,omitempty" firestore:"cursor,omitempty"`
	IsTyping     bool      `json:"isTyping" firestore:"isTyping"`
}

// IsLive reports whether the session counts as active at the given instant.
// Stale sessions are filtered on read, not eagerly deleted.
func (s *Session) IsLive(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActiveAt) < timeout
}

// ActiveCollaborator is a live session enriched with the user's profile for display.
type ActiveCollaborator struct {
	Session
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}
