package model

import "time"

type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// NormalizeRole maps a stored role onto a Role. Older rows use the
// writer/reviewer/reader vocabulary. Unknown values fall back to viewer.
func NormalizeRole(role string) Role {
	switch role {
	case string(RoleOwner):
		return RoleOwner
	case string(RoleEditor), "writer":
		return RoleEditor
	case string(RoleViewer), "reviewer", "reader":
		return RoleViewer
	default:
		return RoleViewer
	}
}

// ParseRole is the strict variant used for request input.
func ParseRole(role string) (Role, bool) {
	switch Role(role) {
	case RoleOwner, RoleEditor, RoleViewer:
		return Role(role), true
	default:
		return "", false
	}
}

// Collaborator is one roster entry. Online, LastSeen and Cursor are advisory
// display state: nothing in the backend derives them from a transport and
// Cursor is never persisted.
type Collaborator struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Avatar   string     `json:"avatar,omitempty"`
	Role     Role       `json:"role"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
	Cursor   *int       `json:"cursor,omitempty"`
}

func (c Collaborator) Info() CollaboratorInfo {
	name := c.Name
	if name == "" {
		name = c.Email
	}
	return CollaboratorInfo{ID: c.ID, Name: name, Role: c.Role, Avatar: c.Avatar}
}
