package socket

import (
	"encoding/json"
	"sync"
	"time"

	"naskah/internal/document/model"
	"naskah/internal/editor"
	"naskah/pkg/logger"
)

const (
	EditType = "EDIT" // Title and/or content changed in the editor
	SaveType = "SAVE" // Explicit save, also the retry after a failure

	SnapshotType = "SNAPSHOT" // Document, role and roster on open
	StatusType   = "STATUS"   // Autosave state changed
	NotifyType   = "NOTIFY"   // Toast for the user
	SavedType    = "SAVED"    // Another connection saved the document
	RosterType   = "ROSTER"   // Collaborators changed
	ErrorType    = "ERROR"    // A request from this connection failed
)

type WSMessage struct {
	Type    string          `json:"type"`
	DocID   string          `json:"document_id"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Outbound is a message for every connection on a document except From,
// which may be nil.
type Outbound struct {
	Message WSMessage
	From    *Client
}

type EditPayload = editor.Update

type SnapshotPayload struct {
	Document      model.Document       `json:"document"`
	Role          model.Role           `json:"role"`
	Status        editor.Status        `json:"status"`
	Collaborators []model.Collaborator `json:"collaborators"`
}

type NotifyPayload struct {
	Kind        editor.NoticeKind `json:"kind"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
}

type SavedPayload struct {
	UpdatedAt time.Time `json:"updated_at"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Hub tracks which connections have which document open. Every connection
// owns its own edit session; the hub only fans out notices between them.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan Outbound
	Register   chan *Client
	Unregister chan *Client
	Opener     *editor.Opener
	mu         sync.Mutex
}

func NewHub(opener *editor.Opener) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan Outbound),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Opener:     opener,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.DocID] == nil {
				h.Rooms[client.DocID] = make(map[*Client]bool)
			}
			h.Rooms[client.DocID][client] = true
			h.mu.Unlock()

			client.sendSnapshot()
			logger.Sugar.Infof("User %s joined document %s as %s", client.UserID, client.DocID, client.session.Role())

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.Rooms[client.DocID][client]; ok {
				delete(h.Rooms[client.DocID], client)
				client.closeSend()
				if len(h.Rooms[client.DocID]) == 0 {
					delete(h.Rooms, client.DocID)
					logger.Sugar.Infof("Closed empty room: %s", client.DocID)
				}
			}
			h.mu.Unlock()

		case out := <-h.Broadcast:
			payload, err := json.Marshal(out.Message)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}
			for _, client := range h.clients(out.Message.DocID) {
				if client == out.From {
					continue
				}
				if !client.send(payload) {
					// The client is lagging; closing the connection makes its
					// readPump unregister it.
					logger.Sugar.Warnf("Client %s's send buffer is full. Disconnecting.", client.UserID)
					client.Conn.Close()
				}
			}
		}
	}
}

// clients returns the connections on docID. The slice is safe to use
// without the lock.
func (h *Hub) clients(docID string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Client, 0, len(h.Rooms[docID]))
	for client := range h.Rooms[docID] {
		out = append(out, client)
	}
	return out
}

// NotifySaved tells every connection on docID that userID saved it outside
// a connection, through the REST API.
func (h *Hub) NotifySaved(docID, userID string, updatedAt time.Time) {
	h.notifySaved(nil, docID, userID, updatedAt)
}

// notifySaved skips from, the connection whose session did the save. The
// same user's other tabs are told.
func (h *Hub) notifySaved(from *Client, docID, userID string, updatedAt time.Time) {
	payload, _ := json.Marshal(SavedPayload{UpdatedAt: updatedAt})
	h.Broadcast <- Outbound{
		Message: WSMessage{Type: SavedType, DocID: docID, UserID: userID, Payload: payload},
		From:    from,
	}
}

// RemoveDocument disconnects every client of a deleted document. Their
// sessions are closed by the read pumps as the connections drop.
func (h *Hub) RemoveDocument(docID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.Rooms[docID]; ok {
		for client := range clients {
			client.closeSend()
			client.Conn.Close()
		}
		delete(h.Rooms, docID)
	}
}

// MemberInvited, MemberRemoved and RoleChanged push a roster change made
// through the API into the open sessions of docID.
func (h *Hub) MemberInvited(docID string, c model.Collaborator) {
	h.applyRoster(docID, func(s *editor.Session) error { return s.ApplyInvite(c) })
}

func (h *Hub) MemberRemoved(docID, userID string) {
	h.applyRoster(docID, func(s *editor.Session) error { return s.ApplyRemoval(userID) })
	for _, client := range h.clients(docID) {
		if client.UserID == userID {
			client.Conn.Close()
		}
	}
}

func (h *Hub) RoleChanged(docID, userID string, role model.Role) {
	h.applyRoster(docID, func(s *editor.Session) error { return s.ApplyRoleChange(userID, role) })
}

func (h *Hub) applyRoster(docID string, apply func(*editor.Session) error) {
	for _, client := range h.clients(docID) {
		if err := apply(client.session); err != nil {
			logger.Sugar.Warnf("Roster of %s out of sync for user %s: %v", docID, client.UserID, err)
		}
		client.sendJSON(RosterType, client.session.Collaborators())
	}
}
