package socket

import "naskah/internal/editor"

// wsNotifier delivers session notices to one connection as NOTIFY messages.
type wsNotifier struct {
	client *Client
}

func (n wsNotifier) Notify(kind editor.NoticeKind, title, description string) {
	n.client.sendJSON(NotifyType, NotifyPayload{Kind: kind, Title: title, Description: description})
}
