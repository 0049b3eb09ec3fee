package editor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"naskah/internal/document/model"
	"naskah/pkg/apperr"
	"naskah/pkg/logger"
)

// State of the edit buffer relative to storage.
type State int

const (
	StateClean State = iota
	StateDirty
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is what the UI shows: "Saving..." or "Saved 2 minutes ago".
// InFlight is true while a save is outstanding, which can overlap with
// StateDirty when the user keeps typing.
type Status struct {
	State     State     `json:"state"`
	LastSaved time.Time `json:"last_saved"`
	InFlight  bool      `json:"in_flight"`
}

// Update carries the fields an edit changes; nil fields are left alone.
type Update struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

type ControllerOptions struct {
	Clock       Clock
	QuietPeriod time.Duration
	Notifier    Notifier
	Logger      *zap.SugaredLogger
	// Authorize is consulted before every mutation.
	Authorize func() error
}

// Controller owns the in-memory copy of an open document and keeps it in
// sync with storage: edits mark it dirty, the debouncer decides when to
// flush, and a flush that fails leaves it dirty.
type Controller struct {
	mu        sync.Mutex
	ctx       context.Context
	store     DocumentSaver
	debouncer *Debouncer
	clock     Clock
	notifier  Notifier
	log       *zap.SugaredLogger
	authorize func() error

	doc       model.Document
	state     State
	lastSaved time.Time
	revision  uint64
	inFlight  bool
	queued    bool
	closed    bool
	discarded bool

	subscribers []func(Status)
}

// NewController starts a controller over doc, which must be the value just
// loaded from storage. ctx is used for flushes triggered by the debouncer.
func NewController(ctx context.Context, doc model.Document, store DocumentSaver, opts ControllerOptions) *Controller {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("autosave")
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	c := &Controller{
		ctx:       ctx,
		store:     store,
		clock:     opts.Clock,
		notifier:  opts.Notifier,
		log:       opts.Logger,
		authorize: opts.Authorize,
		doc:       doc,
		state:     StateClean,
		lastSaved: doc.UpdatedAt,
	}
	c.debouncer = NewDebouncer(opts.Clock, opts.QuietPeriod, func(string, string) {
		if err := c.flush(c.ctx); err != nil {
			c.log.Debugf("Autosave of %s did not complete: %v", c.docID(), err)
		}
	})
	return c
}

// Edit applies u to the in-memory document. It is a no-op when nothing
// changes, so re-sending the current content never produces a save.
func (c *Controller) Edit(u Update) error {
	if c.authorize != nil {
		if err := c.authorize(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.closed || c.discarded {
		c.mu.Unlock()
		return apperr.New(apperr.CodeInvalidInput, "edit session is closed")
	}
	changed := false
	if u.Title != nil && *u.Title != c.doc.Title {
		c.doc.Title = *u.Title
		changed = true
	}
	if u.Content != nil && *u.Content != c.doc.Content {
		c.doc.Content = *u.Content
		changed = true
	}
	if !changed {
		c.mu.Unlock()
		return nil
	}
	c.revision++
	c.state = StateDirty
	c.debouncer.Notify(c.doc.Title, c.doc.Content)
	status := c.statusLocked()
	c.mu.Unlock()

	c.publish(status)
	return nil
}

// SaveNow flushes immediately instead of waiting for the quiet period. It is
// the user's retry after a failed save.
func (c *Controller) SaveNow(ctx context.Context) error {
	if c.authorize != nil {
		if err := c.authorize(); err != nil {
			return err
		}
	}
	c.debouncer.Cancel()
	return c.flush(ctx)
}

// Close stops autosaving and writes a dirty buffer one last time.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.debouncer.Cancel()
	return c.flush(ctx)
}

// Discard drops unsaved edits and stops any later flush. It is used when
// the user loses edit rights while the buffer is dirty. A save already in
// flight is not recalled.
func (c *Controller) Discard() {
	c.debouncer.Cancel()
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return
	}
	c.discarded = true
	c.queued = false
	dirty := c.state == StateDirty
	c.mu.Unlock()

	if dirty {
		c.log.Warnf("Discarded unsaved edits of %s", c.docID())
		c.notifier.Notify(NoticeError, "Changes not saved", "You can no longer edit this document. Your unsaved changes were discarded.")
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Document returns a copy of the in-memory document.
func (c *Controller) Document() model.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyDocument(c.doc)
}

// Subscribe registers fn to receive every status transition.
func (c *Controller) Subscribe(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *Controller) flush(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDirty || c.discarded {
		c.mu.Unlock()
		return nil
	}
	if c.inFlight {
		// Picked up when the outstanding save returns.
		c.queued = true
		c.mu.Unlock()
		return nil
	}
	c.inFlight = true
	c.state = StateSaving
	rev := c.revision
	snapshot := copyDocument(c.doc)
	snapshot.UpdatedAt = c.clock.Now()
	status := c.statusLocked()
	c.mu.Unlock()
	c.publish(status)

	saved, err := c.store.SaveDocument(ctx, snapshot)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.state = StateDirty
		c.queued = false
		// Edits made while the save was in flight never got their own
		// debounce cycle. The snapshot that failed is not retried.
		rearm := c.revision != rev && !c.closed && !c.discarded
		title, content := c.doc.Title, c.doc.Content
		status := c.statusLocked()
		c.mu.Unlock()

		c.log.Errorf("Failed to save document %s: %v", snapshot.ID, err)
		c.notifier.Notify(NoticeError, "Failed to save", "Your changes are kept and will be saved with your next edit.")
		c.publish(status)
		if rearm && !c.debouncer.Pending() {
			c.debouncer.Notify(title, content)
		}
		return apperr.Wrap(apperr.CodePersistence, "save document "+snapshot.ID, err)
	}

	c.reconcileLocked(saved, snapshot.UpdatedAt)
	if c.revision == rev {
		c.state = StateClean
	} else {
		c.state = StateDirty
	}
	again := c.state == StateDirty && c.queued
	c.queued = false
	status = c.statusLocked()
	c.mu.Unlock()

	c.log.Infof("Auto-saved document: %s", snapshot.ID)
	c.publish(status)
	if again {
		return c.flush(ctx)
	}
	return nil
}

// reconcileLocked adopts the timestamp returned by storage. The local
// timestamp sent with the save is only used when storage returns none, and
// UpdatedAt never moves backwards.
func (c *Controller) reconcileLocked(saved model.Document, sent time.Time) {
	ts := saved.UpdatedAt
	if ts.IsZero() {
		ts = sent
	}
	if ts.Before(c.doc.UpdatedAt) {
		c.log.Warnf("Storage returned updated_at %s older than %s for %s; keeping the newer value",
			ts.Format(time.RFC3339Nano), c.doc.UpdatedAt.Format(time.RFC3339Nano), c.doc.ID)
		ts = c.doc.UpdatedAt
	}
	c.doc.UpdatedAt = ts
	c.lastSaved = ts
	if c.doc.CreatedAt.IsZero() {
		c.doc.CreatedAt = saved.CreatedAt
	}
}

func (c *Controller) statusLocked() Status {
	return Status{State: c.state, LastSaved: c.lastSaved, InFlight: c.inFlight}
}

func (c *Controller) publish(status Status) {
	c.mu.Lock()
	subs := make([]func(Status), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(status)
	}
}

func (c *Controller) docID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.ID
}

func copyDocument(d model.Document) model.Document {
	if d.Collaborators != nil {
		d.Collaborators = append([]string(nil), d.Collaborators...)
	}
	return d
}
