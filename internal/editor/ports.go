package editor

import (
	"context"

	"go.uber.org/zap"

	"naskah/internal/document/model"
)

// DocumentSaver persists a document and returns the stored row, whose
// UpdatedAt is authoritative.
type DocumentSaver interface {
	SaveDocument(ctx context.Context, doc model.Document) (model.Document, error)
}

// DocumentStore is the persistence collaborator an edit session needs.
type DocumentStore interface {
	DocumentSaver
	LoadDocument(ctx context.Context, id string) (model.Document, error)
}

// CollaboratorStore persists roster changes. ListCollaborators includes the
// owner.
type CollaboratorStore interface {
	ListCollaborators(ctx context.Context, docID string) ([]model.Collaborator, error)
	AddCollaborator(ctx context.Context, docID string, c model.Collaborator) error
	RemoveCollaborator(ctx context.Context, docID, userID string) error
	UpdateCollaboratorRole(ctx context.Context, docID, userID string, role model.Role) error
}

// Directory resolves invitees to registered users.
type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (model.SessionUser, error)
}

// SessionProvider is the authentication collaborator: the current user and
// a hook for when the session ends.
type SessionProvider interface {
	CurrentUser() (model.SessionUser, bool)
	OnSessionEnd(fn func())
}

type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notifier shows a message to the user. It is fire-and-forget.
type Notifier interface {
	Notify(kind NoticeKind, title, description string)
}

// LogNotifier writes notices to a logger. It is the fallback when a session
// has no user-facing channel.
type LogNotifier struct {
	Logger *zap.SugaredLogger
}

func (n LogNotifier) Notify(kind NoticeKind, title, description string) {
	if n.Logger == nil {
		return
	}
	if kind == NoticeError {
		n.Logger.Warnw(title, "description", description)
		return
	}
	n.Logger.Infow(title, "description", description)
}
