package core

import "sitebrief-backend-go/internal/models"

// Capability is the unit of access checked before any privileged operation.
type Capability string

const (
	CapabilityView                Capability = "view"
	CapabilityEdit                Capability = "edit"
	CapabilityInvite              Capability = "invite"
	CapabilityManageCollaborators Capability = "manage-collaborators"
)

// Role is the relationship between a caller and a prompt, checked in
// precedence order: owner > collaborator > public > none.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleCollaborator Role = "collaborator"
	RolePublicEditor Role = "public-editor"
	RolePublicViewer Role = "public-viewer"
	RoleNone         Role = "none"
)

// RoleFor computes the caller's role for a prompt. An empty callerID means an
// anonymous caller: they can reach public-viewer at most, never public-editor,
// regardless of the prompt's share mode.
func RoleFor(prompt *models.Prompt, callerID string) Role {
	if prompt == nil {
		return RoleNone
	}
	if callerID != "" {
		if prompt.OwnerID == callerID {
			return RoleOwner
		}
		if prompt.HasCollaborator(callerID) {
			return RoleCollaborator
		}
	}
	if prompt.IsPublic {
		if callerID != "" && prompt.ShareMode == models.ShareModeEdit {
			return RolePublicEditor
		}
		return RolePublicViewer
	}
	return RoleNone
}

// Can reports whether the role grants the capability. Only the owner may
// invite or manage collaborators.
func (r Role) Can(capability Capability) bool {
	switch r {
	case RoleOwner:
		return true
	case RoleCollaborator, RolePublicEditor:
		return capability == CapabilityView || capability == CapabilityEdit
	case RolePublicViewer:
		return capability == CapabilityView
	default:
		return false
	}
}

// Authorize is the single access decision point consulted before every
// privileged operation. It is a pure function of the current prompt and caller
// state and must be re-evaluated on every call: collaborator sets and share
// settings can change between calls, so the result is never cached.
func Authorize(prompt *models.Prompt, callerID string, capability Capability) (bool, Role) {
	role := RoleFor(prompt, callerID)
	return role.Can(capability), role
}
