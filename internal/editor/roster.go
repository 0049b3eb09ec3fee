package editor

import (
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"

	"naskah/internal/document/model"
	"naskah/pkg/apperr"
)

// Roster is the collaborator list of one document. It holds exactly one
// owner for its whole lifetime.
type Roster struct {
	mu      sync.RWMutex
	clock   Clock
	ownerID string
	order   []string
	entries map[string]model.Collaborator
}

// NewRoster builds a roster from stored entries. The owner is listed first.
func NewRoster(clock Clock, collaborators ...model.Collaborator) (*Roster, error) {
	if clock == nil {
		clock = RealClock{}
	}
	r := &Roster{clock: clock, entries: make(map[string]model.Collaborator, len(collaborators))}

	var rest []string
	for _, c := range collaborators {
		if c.ID == "" {
			return nil, apperr.New(apperr.CodeInvalidInput, "collaborator id is required")
		}
		if _, dup := r.entries[c.ID]; dup {
			return nil, apperr.New(apperr.CodeDuplicate, "collaborator "+c.ID+" is listed twice")
		}
		if _, ok := model.ParseRole(string(c.Role)); !ok {
			return nil, apperr.New(apperr.CodeInvalidRole, "collaborator "+c.ID+" has role "+string(c.Role))
		}
		if c.Role == model.RoleOwner {
			if r.ownerID != "" {
				return nil, apperr.New(apperr.CodeInvalidRole, "a document has exactly one owner")
			}
			r.ownerID = c.ID
		} else {
			rest = append(rest, c.ID)
		}
		r.entries[c.ID] = c
	}
	if r.ownerID == "" {
		return nil, apperr.New(apperr.CodeInvalidRole, "a document has exactly one owner")
	}
	r.order = append([]string{r.ownerID}, rest...)
	return r, nil
}

// Invite adds a collaborator known only by email.
func (r *Roster) Invite(email string, role model.Role) (model.Collaborator, error) {
	if err := checkInviteRole(role); err != nil {
		return model.Collaborator{}, err
	}
	addr, err := parseEmail(email)
	if err != nil {
		return model.Collaborator{}, err
	}
	return r.add(model.Collaborator{
		ID:    uuid.NewString(),
		Name:  addr.Name,
		Email: strings.ToLower(addr.Address),
		Role:  role,
	})
}

// InviteUser adds a registered user.
func (r *Roster) InviteUser(user model.SessionUser, role model.Role) (model.Collaborator, error) {
	if err := checkInviteRole(role); err != nil {
		return model.Collaborator{}, err
	}
	if user.ID == "" {
		return model.Collaborator{}, apperr.New(apperr.CodeInvalidInput, "user id is required")
	}
	return r.add(model.Collaborator{
		ID:     user.ID,
		Name:   user.Name,
		Email:  strings.ToLower(user.Email),
		Avatar: user.Avatar,
		Role:   role,
	})
}

func (r *Roster) Remove(id string) error {
	_, _, err := r.remove(id)
	return err
}

// remove deletes id and returns the entry with its position in the order.
func (r *Roster) remove(id string) (model.Collaborator, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == r.ownerID {
		return model.Collaborator{}, 0, apperr.ErrCannotRemoveOwner
	}
	c, ok := r.entries[id]
	if !ok {
		return model.Collaborator{}, 0, apperr.New(apperr.CodeNotFound, "collaborator "+id+" is not on the roster")
	}
	delete(r.entries, id)
	at := len(r.order)
	for i, other := range r.order {
		if other == id {
			at = i
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return c, at, nil
}

// ChangeRole updates a non-owner's role. Ownership cannot be granted.
func (r *Roster) ChangeRole(id string, role model.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == r.ownerID {
		return apperr.ErrCannotDemoteOwner
	}
	c, ok := r.entries[id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "collaborator "+id+" is not on the roster")
	}
	if err := checkInviteRole(role); err != nil {
		return err
	}
	c.Role = role
	r.entries[id] = c
	return nil
}

// changeRole is ChangeRole that also returns the role it replaced.
func (r *Roster) changeRole(id string, role model.Role) (model.Role, error) {
	prev, ok := r.Get(id)
	if !ok {
		return "", apperr.New(apperr.CodeNotFound, "collaborator "+id+" is not on the roster")
	}
	if err := r.ChangeRole(id, role); err != nil {
		return "", err
	}
	return prev.Role, nil
}

// SetPresence updates the advisory online/cursor display state.
func (r *Roster) SetPresence(id string, online bool, cursor *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "collaborator "+id+" is not on the roster")
	}
	c.Online = online
	if online {
		c.LastSeen = nil
		if cursor != nil {
			pos := *cursor
			c.Cursor = &pos
		}
	} else {
		seen := r.clock.Now()
		c.LastSeen = &seen
		c.Cursor = nil
	}
	r.entries[id] = c
	return nil
}

func (r *Roster) Get(id string) (model.Collaborator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.entries[id]
	return c, ok
}

func (r *Roster) Owner() model.Collaborator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[r.ownerID]
}

func (r *Roster) List() []model.Collaborator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Collaborator, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *Roster) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// withdraw undoes add. Entries removed since are left alone.
func (r *Roster) withdraw(id string) {
	_, _, _ = r.remove(id)
}

// reinstate undoes remove, unless c was added back since.
func (r *Roster) reinstate(c model.Collaborator, at int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[c.ID]; ok {
		return
	}
	if at > len(r.order) {
		at = len(r.order)
	}
	r.entries[c.ID] = c
	r.order = append(r.order[:at], append([]string{c.ID}, r.order[at:]...)...)
}

// revertRole sets id back to prev if it still holds role.
func (r *Roster) revertRole(id string, role, prev model.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.entries[id]
	if !ok || c.Role != role {
		return
	}
	c.Role = prev
	r.entries[id] = c
}

func (r *Roster) add(c model.Collaborator) (model.Collaborator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[c.ID]; ok {
		return model.Collaborator{}, apperr.New(apperr.CodeDuplicate, "user is already a collaborator")
	}
	for _, existing := range r.entries {
		if c.Email != "" && strings.EqualFold(existing.Email, c.Email) {
			return model.Collaborator{}, apperr.New(apperr.CodeDuplicate, c.Email+" is already a collaborator")
		}
	}
	c.Online = false
	c.LastSeen = nil
	c.Cursor = nil
	r.entries[c.ID] = c
	r.order = append(r.order, c.ID)
	return c, nil
}

func checkInviteRole(role model.Role) error {
	switch role {
	case model.RoleEditor, model.RoleViewer:
		return nil
	case model.RoleOwner:
		return apperr.New(apperr.CodeInvalidRole, "ownership cannot be granted")
	default:
		return apperr.New(apperr.CodeInvalidRole, "role must be editor or viewer")
	}
}

func parseEmail(email string) (*mail.Address, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidInput, "invalid email address", err)
	}
	return addr, nil
}
