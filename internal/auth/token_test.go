package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naskah/internal/document/model"
)

var testSecret = []byte("super-secret-jwt-token-with-at-least-32-characters")

func TestIssueAndParseToken(t *testing.T) {
	user := model.SessionUser{ID: "user-1", Name: "Avery", Email: "avery@example.com", Avatar: "https://cdn/avery.png"}
	signed, err := IssueToken(testSecret, user, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, signed)
	require.NoError(t, err)
	assert.Equal(t, user, claims.User())
	assert.NotEmpty(t, claims.TokenID())
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt(), time.Minute)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	signed, err := IssueToken(testSecret, model.SessionUser{ID: "user-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, signed)
	assert.True(t, errors.Is(err, ErrExpiredToken))
}

func TestParseTokenRejectsBadInput(t *testing.T) {
	signed, err := IssueToken(testSecret, model.SessionUser{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken([]byte("another-secret"), signed)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = ParseToken(testSecret, "not.a.token")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = ParseToken(nil, signed)
	assert.True(t, errors.Is(err, ErrNoSecret))

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, noSubject)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, none)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenIDFallsBackToSubject(t *testing.T) {
	issued := time.Unix(1700000000, 0)
	c := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", IssuedAt: jwt.NewNumericDate(issued)}}
	assert.Equal(t, "user-1:1700000000", c.TokenID())

	c.ID = "jti-1"
	assert.Equal(t, "jti-1", c.TokenID())
}
