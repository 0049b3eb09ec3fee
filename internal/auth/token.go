// Package auth verifies Supabase access tokens and carries the resulting
// user through a request.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"naskah/internal/document/model"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	ErrNoSecret     = errors.New("server is not configured to validate JWTs")
)

type UserMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Claims is the subset of a Supabase access token we read.
type Claims struct {
	Email        string       `json:"email,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (c Claims) User() model.SessionUser {
	return model.SessionUser{
		ID:     c.Subject,
		Name:   c.UserMetadata.FullName,
		Email:  c.Email,
		Avatar: c.UserMetadata.AvatarURL,
	}
}

// TokenID identifies the token for revocation. Tokens without a jti fall
// back to the subject and issue time.
func (c Claims) TokenID() string {
	if c.ID != "" {
		return c.ID
	}
	if c.IssuedAt != nil {
		return fmt.Sprintf("%s:%d", c.Subject, c.IssuedAt.Unix())
	}
	return c.Subject
}

func (c Claims) ExpiresAt() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// ParseToken verifies an HS256 token signed with secret.
func ParseToken(secret []byte, tokenString string) (Claims, error) {
	if len(secret) == 0 {
		return Claims{}, ErrNoSecret
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		// Ensure the signing method is HMAC (Supabase default)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Claims{}, ErrExpiredToken
	}
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: sub claim is missing", ErrInvalidToken)
	}
	return claims, nil
}

// IssueToken signs claims the way Supabase does. Used by tests and local
// tooling; production tokens come from Supabase.
func IssueToken(secret []byte, user model.SessionUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:        user.Email,
		UserMetadata: UserMetadata{FullName: user.Name, AvatarURL: user.Avatar},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
