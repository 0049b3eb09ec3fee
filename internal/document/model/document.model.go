package model

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"naskah/pkg/apperr"
)

const (
	DefaultTitle   = "Untitled Document"
	MaxTitleLength = 255
)

// Document is the value persisted by the repository. Content is the editor's
// markup and is never interpreted by the backend.
type Document struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	OwnerID       string    `json:"owner_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Collaborators []string  `json:"collaborators,omitempty"`
}

// Validate checks the document before it crosses the persistence boundary.
func (d Document) Validate() error {
	if d.ID == "" {
		return apperr.New(apperr.CodeInvalidInput, "document id is required")
	}
	if utf8.RuneCountInString(d.Title) > MaxTitleLength {
		return apperr.New(apperr.CodeInvalidInput, "document title is too long")
	}
	if !d.CreatedAt.IsZero() && !d.UpdatedAt.IsZero() && d.UpdatedAt.Before(d.CreatedAt) {
		return apperr.New(apperr.CodeInvalidInput, "updated_at precedes created_at")
	}
	return nil
}

type CollaboratorInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

type DocumentSummary struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	UpdatedAt time.Time          `json:"updated_at"`
	Snippet   string             `json:"snippet"`
	IsOwner   bool               `json:"is_owner"`
	Collab    []CollaboratorInfo `json:"collab"`
}

// SessionUser is the authenticated user of a session.
type SessionUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

type CreateDocResponse struct {
	DocID string `json:"document_id"`
}

type CreateDocRequest struct {
	Title string `json:"title"`
}

type UpdateDocRequest struct {
	Title string `json:"title"`
}

type InviteRequest struct {
	DocID string `json:"document_id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type ChangeRoleRequest struct {
	DocID  string `json:"document_id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type SaveDocRequest struct {
	DocID   string          `json:"document_id"`
	Title   *string         `json:"title,omitempty"`
	Content json.RawMessage `json:"content"`
}

type SaveDocResponse struct {
	DocID     string    `json:"document_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
