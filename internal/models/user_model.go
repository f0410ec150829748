package models

import "time"

// User represents a user in the system.
type User struct {
	ID              string    `json:"id" firestore:"-"` // Firebase Auth UID, used as the document ID
	Email           string    `json:"email" firestore:"email"`
	DisplayName     string    `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	PhotoURL        string    `json:"photoURL,omitempty" firestore:"photoURL,omitempty"`
	Plan            string    `json:"plan" firestore:"plan"` // e.g., "FREE", "PRO", "ENTERPRISE"
	GenerationsUsed int64     `json:"generationsUsed" firestore:"generationsUsed"`
	CreatedAt       time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt       time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
