package models

// CreatePromptRequest represents the request body for creating a new prompt.
type CreatePromptRequest struct {
	Title           string    `json:"title" binding:"required"`
	MapsURL         string    `json:"mapsUrl,omitempty"`
	BusinessName    string    `json:"businessName,omitempty"`
	BusinessAddress string    `json:"businessAddress,omitempty"`
	Sections        []Section `json:"sections,omitempty"`
}

// UpdateSharingRequest represents the request body for changing a prompt's visibility.
// Pointers are used to distinguish between fields not provided and explicit values.
type UpdateSharingRequest struct {
	IsPublic  *bool   `json:"isPublic,omitempty"`
	ShareMode *string `json:"shareMode,omitempty"` // "view" or "edit"
}

// UpdateCursorRequest represents a presence heartbeat carrying the caret location.
type UpdateCursorRequest struct {
	SectionIndex int `json:"sectionIndex"`
	Position     int `json:"position"`
}

// SetTypingRequest represents the request body for the typing indicator.
type SetTypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// ApplyEditRequest represents the request body for applying one section edit.
// Header sets the section header on "insert"; on "replace" an empty Header
// leaves the existing header in place, so headers are renamed but never
// cleared through this path.
type ApplyEditRequest struct {
	SectionIndex int    `json:"sectionIndex"`
	Operation    string `json:"operation" binding:"required"` // "insert", "delete" or "replace"
	Header       string `json:"header,omitempty"`
	OldContent   string `json:"oldContent,omitempty"`
	NewContent   string `json:"newContent,omitempty"`
}

// CreateInviteRequest represents the request body for creating a collaboration invite.
type CreateInviteRequest struct {
	Email string `json:"email,omitempty"` // optional acceptance restriction
}

// AcceptInviteRequest represents the request body for redeeming an invite token.
type AcceptInviteRequest struct {
	Token string `json:"token" binding:"required"`
}

// GenerateRequest represents the request body for dispatching a brief generation job.
// MapsURL may be omitted when the prompt already carries a maps link.
type GenerateRequest struct {
	MapsURL string `json:"mapsUrl,omitempty"`
}

// ExpandLinkRequest represents the request body for expanding a Google Maps link.
type ExpandLinkRequest struct {
	URL string `json:"url" binding:"required"`
}
