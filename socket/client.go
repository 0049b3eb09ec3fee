package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"naskah/internal/editor"
	"naskah/pkg/apperr"
	"naskah/pkg/logger"
)

const (
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows us to connect from our Next.js dev server
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AuthSession is the authenticated session behind a connection. End runs
// the session-end hooks, which flush the edit session.
type AuthSession interface {
	editor.SessionProvider
	End()
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	DocID  string
	UserID string
	Send   chan []byte

	session *editor.Session
	auth    AuthSession

	mu        sync.Mutex
	closed    bool
	lastSaved time.Time
}

func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, auth AuthSession) {
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		auth.End()
		return
	}
	user, ok := auth.CurrentUser()
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		auth.End()
		return
	}

	client := &Client{
		Hub:    hub,
		DocID:  docID,
		UserID: user.ID,
		Send:   make(chan []byte, sendBuffer),
		auth:   auth,
	}

	session, err := hub.Opener.Open(r.Context(), auth, docID, wsNotifier{client})
	if err != nil {
		logger.Sugar.Warnf("Connection rejected: user %s on document %s: %v", user.ID, docID, err)
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		auth.End()
		return
	}
	client.session = session
	client.lastSaved = session.Status().LastSaved

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		auth.End()
		return
	}
	client.Conn = conn
	// A revoked token ends the session; drop the connection with it.
	auth.OnSessionEnd(func() { conn.Close() })

	session.Subscribe(client.onStatus)
	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
		// Ending the auth session closes the edit session, which flushes
		// whatever is still dirty.
		c.auth.End()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		switch msg.Type {
		case EditType:
			var edit EditPayload
			if err := json.Unmarshal(msg.Payload, &edit); err != nil {
				c.sendError(apperr.Wrap(apperr.CodeInvalidInput, "malformed edit", err))
				continue
			}
			if err := c.session.Edit(edit); err != nil {
				c.sendError(err)
			}
		case SaveType:
			if err := c.session.SaveNow(context.Background()); err != nil {
				c.sendError(err)
			}
		default:
			logger.Sugar.Warnf("Ignoring message of type %q from user %s", msg.Type, c.UserID)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// onStatus forwards autosave transitions to the browser. A completed save
// is also announced to the other connections on the document.
func (c *Client) onStatus(status editor.Status) {
	c.sendJSON(StatusType, status)
	if c.markSaved(status.LastSaved) {
		go c.Hub.notifySaved(c, c.DocID, c.UserID, status.LastSaved)
	}
}

// markSaved records t and reports whether it is newer than the last save
// this client has seen. LastSaved only moves on a successful save.
func (c *Client) markSaved(t time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !t.After(c.lastSaved) {
		return false
	}
	c.lastSaved = t
	return true
}

func (c *Client) sendSnapshot() {
	c.sendJSON(SnapshotType, SnapshotPayload{
		Document:      c.session.Document(),
		Role:          c.session.Role(),
		Status:        c.session.Status(),
		Collaborators: c.session.Collaborators(),
	})
}

func (c *Client) sendError(err error) {
	code := apperr.CodeOf(err)
	var appErr *apperr.Error
	message := err.Error()
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.sendJSON(ErrorType, ErrorPayload{Code: string(code), Message: message})
}

func (c *Client) sendJSON(msgType string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s payload: %v", msgType, err)
		return
	}
	raw, _ := json.Marshal(WSMessage{Type: msgType, DocID: c.DocID, UserID: c.UserID, Payload: payload})
	if !c.send(raw) {
		logger.Sugar.Warnf("Client %s's send buffer was full, dropped %s", c.UserID, msgType)
	}
}

// send queues raw without blocking. It reports false when the buffer is
// full; a closed client drops silently.
func (c *Client) send(raw []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- raw:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}
