package router

import (
	"net/http"

	"naskah/config"
	"naskah/internal/auth"
	docHandler "naskah/internal/document"
	"naskah/internal/document/repository"
	"naskah/internal/document/service"
	"naskah/middleware"
	"naskah/socket"
)

// Setup wires the REST API and the WebSocket endpoint. revocations may be
// nil, in which case logouts only end live sessions.
func Setup(docRepo *repository.DocumentRepository, hub *socket.Hub, cfg config.Config, revocations *auth.RevocationStore, sessions *auth.Registry) http.Handler {
	mux := http.NewServeMux()

	var checker middleware.RevocationChecker
	var revoker auth.Revoker
	if revocations != nil {
		checker = revocations
		revoker = revocations
	}
	authenticate := middleware.AuthMiddleware([]byte(cfg.JWTSecret), checker)

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.ClaimsFromContext(r.Context())
		session := auth.NewTokenSession(claims)
		sessions.Track(session)
		socket.ServeWs(hub, w, r, session)
	})
	mux.Handle("/ws", authenticate(wsHandler))

	// REST API
	docService := service.NewDocumentService(docRepo, hub)
	docHandler := docHandler.NewDocumentHandler(docService)
	logout := &auth.LogoutHandler{Revocations: revoker, Sessions: sessions}

	mux.Handle("/api/documents/create", authenticate(http.HandlerFunc(docHandler.CreateDocument)))
	mux.Handle("/api/documents/delete", authenticate(http.HandlerFunc(docHandler.DeleteDocument)))
	mux.Handle("/api/documents/update", authenticate(http.HandlerFunc(docHandler.UpdateDocument)))
	mux.Handle("/api/documents", authenticate(http.HandlerFunc(docHandler.GetDocuments)))
	mux.Handle("/api/documents/invite", authenticate(http.HandlerFunc(docHandler.AddCollaborator)))
	mux.Handle("/api/documents/members", authenticate(http.HandlerFunc(docHandler.GetDocumentMembers)))
	mux.Handle("/api/documents/members/remove", authenticate(http.HandlerFunc(docHandler.RemoveCollaborator)))
	mux.Handle("/api/documents/members/role", authenticate(http.HandlerFunc(docHandler.ChangeRole)))
	mux.Handle("/api/documents/save", authenticate(http.HandlerFunc(docHandler.SaveDocument)))
	mux.Handle("/api/auth/logout", authenticate(http.HandlerFunc(logout.Logout)))

	return middleware.CORSMiddleware(cfg.CORSOrigin, mux)
}
