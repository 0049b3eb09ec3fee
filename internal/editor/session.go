package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"naskah/internal/document/model"
	"naskah/pkg/apperr"
	"naskah/pkg/logger"
)

// Opener builds edit sessions. Directory is optional; without it invitees
// are added by email only.
type Opener struct {
	Documents     DocumentStore
	Collaborators CollaboratorStore
	Directory     Directory
	Clock         Clock
	QuietPeriod   time.Duration
	Logger        *zap.SugaredLogger
}

// Session is one user's editing session over one document.
type Session struct {
	user     model.SessionUser
	docID    string
	roster   *Roster
	gate     Gate
	ctrl     *Controller
	store    CollaboratorStore
	dir      Directory
	notifier Notifier
	log      *zap.SugaredLogger

	closeOnce sync.Once
	closeErr  error
}

// Open loads docID for the current user of auth. A missing document is
// reported as apperr.ErrNotFound.
func (o *Opener) Open(ctx context.Context, auth SessionProvider, docID string, notifier Notifier) (*Session, error) {
	user, ok := auth.CurrentUser()
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}

	log := o.Logger
	if log == nil {
		log = logger.Named("editor")
	}
	log = log.With("document_id", docID, "user_id", user.ID)
	if notifier == nil {
		notifier = LogNotifier{Logger: log}
	}

	doc, err := o.Documents.LoadDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", docID, err)
	}
	members, err := o.Collaborators.ListCollaborators(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load collaborators of %s: %w", docID, err)
	}
	roster, err := NewRoster(o.Clock, members...)
	if err != nil {
		return nil, fmt.Errorf("roster of %s: %w", docID, err)
	}
	doc.Collaborators = roster.IDs()

	s := &Session{
		user:     user,
		docID:    docID,
		roster:   roster,
		gate:     Gate{UserID: user.ID, Roster: roster},
		store:    o.Collaborators,
		dir:      o.Directory,
		notifier: notifier,
		log:      log,
	}
	// Debounced saves outlive the request that opened the session.
	s.ctrl = NewController(context.WithoutCancel(ctx), doc, o.Documents, ControllerOptions{
		Clock:       o.Clock,
		QuietPeriod: o.QuietPeriod,
		Notifier:    notifier,
		Logger:      log,
		Authorize:   func() error { return s.deny(s.gate.RequireEdit()) },
	})

	auth.OnSessionEnd(func() {
		if err := s.Close(context.Background()); err != nil {
			log.Errorf("Failed to close edit session on session end: %v", err)
		}
	})

	log.Infof("Opened edit session as %s", s.Role())
	return s, nil
}

func (s *Session) User() model.SessionUser { return s.user }

func (s *Session) DocumentID() string { return s.docID }

func (s *Session) Role() model.Role { return s.gate.Role() }

func (s *Session) Status() Status { return s.ctrl.Status() }

func (s *Session) Document() model.Document {
	doc := s.ctrl.Document()
	doc.Collaborators = s.roster.IDs()
	return doc
}

func (s *Session) Collaborators() []model.Collaborator { return s.roster.List() }

func (s *Session) Subscribe(fn func(Status)) { s.ctrl.Subscribe(fn) }

// Edit applies an edit from the rich-text editor. Viewers get
// apperr.ErrPermissionDenied and nothing is scheduled.
func (s *Session) Edit(u Update) error {
	return s.ctrl.Edit(u)
}

func (s *Session) SaveNow(ctx context.Context) error {
	return s.ctrl.SaveNow(ctx)
}

// Invite adds email to the roster with role and persists it.
func (s *Session) Invite(ctx context.Context, email string, role model.Role) (model.Collaborator, error) {
	if err := s.deny(s.gate.RequireManage()); err != nil {
		return model.Collaborator{}, err
	}

	var (
		c   model.Collaborator
		err error
	)
	if s.dir != nil {
		if err := checkInviteRole(role); err != nil {
			return model.Collaborator{}, err
		}
		addr, err := parseEmail(email)
		if err != nil {
			return model.Collaborator{}, err
		}
		user, err := s.dir.FindUserByEmail(ctx, addr.Address)
		if err != nil {
			return model.Collaborator{}, fmt.Errorf("find invitee: %w", err)
		}
		c, err = s.roster.InviteUser(user, role)
		if err != nil {
			return model.Collaborator{}, err
		}
	} else {
		c, err = s.roster.Invite(email, role)
		if err != nil {
			return model.Collaborator{}, err
		}
	}

	if err := s.store.AddCollaborator(ctx, s.docID, c); err != nil {
		s.roster.withdraw(c.ID)
		return model.Collaborator{}, apperr.Wrap(apperr.CodePersistence, "add collaborator", err)
	}
	s.log.Infof("Invited %s as %s", c.Email, c.Role)
	s.notifier.Notify(NoticeInfo, "Collaborator invited", c.Email+" can now access this document as "+string(c.Role)+".")
	return c, nil
}

func (s *Session) Remove(ctx context.Context, collaboratorID string) error {
	if err := s.deny(s.gate.RequireManage()); err != nil {
		return err
	}
	removed, at, err := s.roster.remove(collaboratorID)
	if err != nil {
		return err
	}
	if err := s.store.RemoveCollaborator(ctx, s.docID, collaboratorID); err != nil {
		s.roster.reinstate(removed, at)
		return apperr.Wrap(apperr.CodePersistence, "remove collaborator", err)
	}
	s.log.Infof("Removed collaborator %s", collaboratorID)
	return nil
}

func (s *Session) ChangeRole(ctx context.Context, collaboratorID string, role model.Role) error {
	if err := s.deny(s.gate.RequireManage()); err != nil {
		return err
	}
	prev, err := s.roster.changeRole(collaboratorID, role)
	if err != nil {
		return err
	}
	if err := s.store.UpdateCollaboratorRole(ctx, s.docID, collaboratorID, role); err != nil {
		s.roster.revertRole(collaboratorID, role, prev)
		return apperr.Wrap(apperr.CodePersistence, "change collaborator role", err)
	}
	s.log.Infof("Changed role of %s to %s", collaboratorID, role)
	return nil
}

// ApplyInvite, ApplyRemoval and ApplyRoleChange mirror a roster change that
// was already persisted elsewhere. They are not gated.
func (s *Session) ApplyInvite(c model.Collaborator) error {
	if err := checkInviteRole(c.Role); err != nil {
		return err
	}
	_, err := s.roster.add(c)
	return err
}

func (s *Session) ApplyRemoval(userID string) error {
	if err := s.roster.Remove(userID); err != nil {
		return err
	}
	s.dropEditsIfDenied(userID)
	return nil
}

func (s *Session) ApplyRoleChange(userID string, role model.Role) error {
	if err := s.roster.ChangeRole(userID, role); err != nil {
		return err
	}
	s.dropEditsIfDenied(userID)
	return nil
}

// dropEditsIfDenied discards the unsaved buffer once this session's user
// can no longer edit.
func (s *Session) dropEditsIfDenied(changedID string) {
	if changedID != s.user.ID || s.gate.RequireEdit() == nil {
		return
	}
	s.ctrl.Discard()
}

// Close flushes pending edits. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.ctrl.Close(ctx)
		s.log.Infof("Closed edit session")
	})
	return s.closeErr
}

func (s *Session) deny(err error) error {
	if err == nil {
		return nil
	}
	s.log.Warnf("Permission denied for %s (role %s): %v", s.user.ID, s.Role(), err)
	s.notifier.Notify(NoticeError, "Permission denied", "You do not have permission to do that.")
	return err
}
