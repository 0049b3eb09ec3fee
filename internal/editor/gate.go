package editor

import (
	"naskah/internal/document/model"
	"naskah/pkg/apperr"
)

// RoleLookup is the part of a roster the gate reads.
type RoleLookup interface {
	Get(id string) (model.Collaborator, bool)
}

// EffectiveRole is the role of actingUserID in roster. Users that are not
// on the roster are viewers.
func EffectiveRole(actingUserID string, roster RoleLookup) model.Role {
	if roster == nil || actingUserID == "" {
		return model.RoleViewer
	}
	c, ok := roster.Get(actingUserID)
	if !ok {
		return model.RoleViewer
	}
	switch c.Role {
	case model.RoleOwner, model.RoleEditor:
		return c.Role
	default:
		return model.RoleViewer
	}
}

func CanEdit(role model.Role) bool {
	return role == model.RoleOwner || role == model.RoleEditor
}

func CanManageCollaborators(role model.Role) bool {
	return role == model.RoleOwner
}

// Gate binds an acting user to a roster. The role is looked up on every
// check so roster changes apply immediately.
type Gate struct {
	UserID string
	Roster RoleLookup
}

func (g Gate) Role() model.Role {
	return EffectiveRole(g.UserID, g.Roster)
}

func (g Gate) RequireEdit() error {
	if role := g.Role(); !CanEdit(role) {
		return apperr.Wrap(apperr.CodePermissionDenied, "editing requires the editor or owner role", roleError(role))
	}
	return nil
}

func (g Gate) RequireManage() error {
	if role := g.Role(); !CanManageCollaborators(role) {
		return apperr.Wrap(apperr.CodePermissionDenied, "only the owner can manage collaborators", roleError(role))
	}
	return nil
}

type roleError model.Role

func (r roleError) Error() string {
	return "acting role is " + string(r)
}
