package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(CodeNotFound, "document doc-1", sql.ErrNoRows)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrPermissionDenied))
	assert.True(t, errors.Is(err, sql.ErrNoRows), "wrapped cause stays reachable")

	outer := fmt.Errorf("open session: %w", err)
	assert.True(t, errors.Is(outer, ErrNotFound))
	assert.Equal(t, CodeNotFound, CodeOf(outer))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "INVALID_ROLE: invalid role", ErrInvalidRole.Error())
	assert.Equal(t, "PERSISTENCE_FAILURE: save: boom",
		Wrap(CodePersistence, "save", errors.New("boom")).Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrCannotRemoveOwner, http.StatusForbidden},
		{ErrInvalidRole, http.StatusBadRequest},
		{ErrDuplicate, http.StatusConflict},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrPersistence, http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}
