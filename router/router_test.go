package router

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naskah/config"
	"naskah/internal/auth"
	"naskah/internal/document/model"
	"naskah/internal/document/repository"
	"naskah/internal/editor"
	"naskah/socket"
)

var secret = "test-secret"

func setupRouter(t *testing.T) (http.Handler, *auth.RevocationStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := miniredis.RunT(t)
	store, err := auth.NewRevocationStore("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repo := repository.NewDocumentRepository(db)
	hub := socket.NewHub(&editor.Opener{
		Documents:     repo,
		Collaborators: repo,
		Directory:     repo,
		Clock:         editor.NewManualClock(time.Now()),
		QuietPeriod:   time.Second,
	})
	go hub.Run()

	cfg := config.Config{JWTSecret: secret, CORSOrigin: "http://localhost:3000"}
	return Setup(repo, hub, cfg, store, auth.NewRegistry()), store, mock
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := auth.IssueToken([]byte(secret), model.SessionUser{ID: "user-1", Email: "u@example.com"}, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestRoutesRequireToken(t *testing.T) {
	h, _, _ := setupRouter(t)

	for _, path := range []string{"/api/documents", "/api/documents/save", "/api/auth/logout", "/ws"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestPreflightSkipsAuth(t *testing.T) {
	h, _, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/documents/save", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h, store, mock := setupRouter(t)
	tok := token(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	claims, err := auth.ParseToken([]byte(secret), tok)
	require.NoError(t, err)
	revoked, err := store.IsRevoked(context.Background(), claims.TokenID())
	require.NoError(t, err)
	assert.True(t, revoked)

	// The same token is now refused everywhere.
	req = httptest.NewRequest(http.MethodGet, "/api/documents?token="+tok, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDocumentsRoute(t *testing.T) {
	h, _, mock := setupRouter(t)

	mock.ExpectQuery("UNION").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "owner_id", "created_at", "updated_at"}))

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEditorAndRESTShareRepository(t *testing.T) {
	h, _, mock := setupRouter(t)
	tok := token(t)

	// One connection pool serves both the socket's edit session and the API.
	mock.ExpectQuery("FROM documents WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("UNION").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "owner_id", "created_at", "updated_at"}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?docId=missing&token="+tok, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
