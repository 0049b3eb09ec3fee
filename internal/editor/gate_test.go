package editor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naskah/internal/document/model"
	"naskah/pkg/apperr"
)

func TestEffectiveRole(t *testing.T) {
	roster, err := NewRoster(nil,
		model.Collaborator{ID: "owner", Role: model.RoleOwner},
		model.Collaborator{ID: "ed", Role: model.RoleEditor},
		model.Collaborator{ID: "vi", Role: model.RoleViewer},
	)
	require.NoError(t, err)

	cases := []struct {
		name string
		user string
		want model.Role
	}{
		{name: "owner", user: "owner", want: model.RoleOwner},
		{name: "editor", user: "ed", want: model.RoleEditor},
		{name: "viewer", user: "vi", want: model.RoleViewer},
		{name: "stranger", user: "nobody", want: model.RoleViewer},
		{name: "anonymous", user: "", want: model.RoleViewer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EffectiveRole(tc.user, roster))
		})
	}

	assert.Equal(t, model.RoleViewer, EffectiveRole("owner", nil))
}

func TestCapabilities(t *testing.T) {
	cases := []struct {
		role   model.Role
		edit   bool
		manage bool
	}{
		{model.RoleOwner, true, true},
		{model.RoleEditor, true, false},
		{model.RoleViewer, false, false},
		{model.Role("admin"), false, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.edit, CanEdit(tc.role), "CanEdit(%s)", tc.role)
		assert.Equal(t, tc.manage, CanManageCollaborators(tc.role), "CanManageCollaborators(%s)", tc.role)
	}
}

func TestGateRequire(t *testing.T) {
	roster, err := NewRoster(nil,
		model.Collaborator{ID: "owner", Role: model.RoleOwner},
		model.Collaborator{ID: "ed", Role: model.RoleEditor},
	)
	require.NoError(t, err)

	assert.NoError(t, Gate{UserID: "ed", Roster: roster}.RequireEdit())
	assert.True(t, errors.Is(Gate{UserID: "ed", Roster: roster}.RequireManage(), apperr.ErrPermissionDenied))
	assert.True(t, errors.Is(Gate{UserID: "x", Roster: roster}.RequireEdit(), apperr.ErrPermissionDenied))

	// Role changes take effect on the next check.
	require.NoError(t, roster.ChangeRole("ed", model.RoleViewer))
	assert.Error(t, Gate{UserID: "ed", Roster: roster}.RequireEdit())
}
