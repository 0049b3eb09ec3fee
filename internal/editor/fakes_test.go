package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"naskah/internal/document/model"
	"naskah/pkg/apperr"
)

var testStart = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// fakeStore is an in-memory DocumentStore and CollaboratorStore. Saves stamp
// UpdatedAt from the clock, like the database's NOW().
type fakeStore struct {
	mu      sync.Mutex
	clock   Clock
	docs    map[string]model.Document
	members map[string][]model.Collaborator
	saves   []model.Document
	saveErr error
	// block, when set, holds SaveDocument until it is closed.
	block   chan struct{}
	entered chan struct{}
	collErr error
	// collHook runs inside every roster write, before it fails or succeeds.
	collHook func()
}

func newFakeStore(clock Clock) *fakeStore {
	return &fakeStore{
		clock:   clock,
		docs:    make(map[string]model.Document),
		members: make(map[string][]model.Collaborator),
	}
}

func (s *fakeStore) put(doc model.Document, members ...model.Collaborator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	s.members[doc.ID] = members
}

func (s *fakeStore) LoadDocument(_ context.Context, id string) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return model.Document{}, apperr.New(apperr.CodeNotFound, "document "+id)
	}
	return doc, nil
}

func (s *fakeStore) SaveDocument(_ context.Context, doc model.Document) (model.Document, error) {
	s.mu.Lock()
	block, entered := s.block, s.entered
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, doc)
	if s.saveErr != nil {
		return model.Document{}, s.saveErr
	}
	stored := s.docs[doc.ID]
	stored.Title = doc.Title
	stored.Content = doc.Content
	stored.UpdatedAt = s.clock.Now().Add(time.Millisecond)
	s.docs[doc.ID] = stored
	return stored, nil
}

func (s *fakeStore) ListCollaborators(_ context.Context, docID string) ([]model.Collaborator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Collaborator(nil), s.members[docID]...), nil
}

func (s *fakeStore) AddCollaborator(_ context.Context, docID string, c model.Collaborator) error {
	if s.collHook != nil {
		s.collHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collErr != nil {
		return s.collErr
	}
	s.members[docID] = append(s.members[docID], c)
	return nil
}

func (s *fakeStore) RemoveCollaborator(_ context.Context, docID, userID string) error {
	if s.collHook != nil {
		s.collHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collErr != nil {
		return s.collErr
	}
	kept := s.members[docID][:0]
	for _, c := range s.members[docID] {
		if c.ID != userID {
			kept = append(kept, c)
		}
	}
	s.members[docID] = kept
	return nil
}

func (s *fakeStore) UpdateCollaboratorRole(_ context.Context, docID, userID string, role model.Role) error {
	if s.collHook != nil {
		s.collHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collErr != nil {
		return s.collErr
	}
	for i, c := range s.members[docID] {
		if c.ID == userID {
			s.members[docID][i].Role = role
		}
	}
	return nil
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *fakeStore) lastSave() model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

type notice struct {
	kind        NoticeKind
	title, desc string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(kind NoticeKind, title, description string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{kind, title, description})
}

func (n *recordingNotifier) count(kind NoticeKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, nt := range n.notices {
		if nt.kind == kind {
			total++
		}
	}
	return total
}

type fakeAuth struct {
	user  model.SessionUser
	ok    bool
	hooks []func()
}

func (a *fakeAuth) CurrentUser() (model.SessionUser, bool) { return a.user, a.ok }

func (a *fakeAuth) OnSessionEnd(fn func()) { a.hooks = append(a.hooks, fn) }

func (a *fakeAuth) end() {
	for _, fn := range a.hooks {
		fn()
	}
}

type fakeDirectory map[string]model.SessionUser

func (d fakeDirectory) FindUserByEmail(_ context.Context, email string) (model.SessionUser, error) {
	u, ok := d[email]
	if !ok {
		return model.SessionUser{}, apperr.New(apperr.CodeNotFound, "user not found with that email")
	}
	return u, nil
}

var errBoom = errors.New("connection reset by peer")
