package models

import "time"

// Invite statuses. Accepted, expired and revoked are terminal.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusExpired  = "expired"
	InviteStatusRevoked  = "revoked"
)

// InviteTTL is how long an invite stays acceptable after creation.
const InviteTTL = 7 * 24 * time.Hour

// Invite is an out-of-band grant token that, once accepted, adds the accepter to
// the prompt's collaborator set.
type Invite struct {
	ID        string `json:"id" firestore:"-"`
	PromptID  string `json:"promptId" firestore:"promptId"`
	InviterID string `json:"inviterId" firestore:"inviterId"`
	Token     string `json:"token" firestore:"token"`
	// Email, when set, restricts acceptance to a caller with this address.
	Email      string     `json:"email,omitempty" firestore:"email,omitempty"`
	Status     string     `json:"status" firestore:"status"`
	CreatedAt  time.Time  `json:"createdAt" firestore:"createdAt"`
	ExpiresAt  time.Time  `json:"expiresAt" firestore:"expiresAt"`
	AcceptedBy string     `json:"acceptedBy,omitempty" firestore:"acceptedBy,omitempty"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty" firestore:"acceptedAt,omitempty"`
}

// IsExpired reports whether the invite has outlived its acceptance window.
// The status transition to "expired" happens lazily, on detection.
func (i *Invite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
