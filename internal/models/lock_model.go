package models

import "time"

// SectionLock is a time-bounded exclusive claim by one user on one section index.
// The document ID is the deterministic "{promptID}_{sectionIndex}", so at most one
// lock row can exist per section; the expiry check makes it at most one *live* lock.
type SectionLock struct {
	ID           string    `json:"id" firestore:"-"`
	PromptID     string    `json:"promptId" firestore:"promptId"`
	SectionIndex int       `json:"sectionIndex" firestore:"sectionIndex"`
	OwnerID      string    `json:"ownerId" firestore:"ownerId"`
	LockedAt     time.Time `json:"lockedAt" firestore:"lockedAt"`
	ExpiresAt    time.Time `json:"expiresAt" firestore:"expiresAt"`
}

// IsExpired reports whether the lock is logically dead, regardless of deletion.
func (l *SectionLock) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// ActiveLock is a live lock enriched with the holder's profile and, relative to
// the caller, whether another user holds it.
type ActiveLock struct {
	SectionLock
	HolderName  string `json:"holderName,omitempty"`
	HeldByOther bool   `json:"heldByOther"`
}
