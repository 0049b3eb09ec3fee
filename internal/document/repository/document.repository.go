package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"naskah/internal/document/model"
	"naskah/pkg/apperr"
	"naskah/pkg/logger"
)

// Postgres error codes we translate.
const (
	pqForeignKeyViolation = "23503"
)

// emptyContent is what a new document starts with: an empty Quill delta.
const emptyContent = `{"ops":[]}`

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

const documentColumns = `id, title, content, owner_id, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.Title, &d.Content, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, ownerID, title string) (model.Document, error) {
	if title == "" {
		title = model.DefaultTitle
	}
	doc := model.Document{ID: uuid.NewString(), Title: title, OwnerID: ownerID}
	if err := doc.Validate(); err != nil {
		return model.Document{}, err
	}

	row := r.DB.QueryRowContext(ctx,
		`INSERT INTO documents (id, title, content, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING `+documentColumns,
		doc.ID, doc.Title, emptyContent, ownerID)
	created, err := scanDocument(row)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document: %v", err)
		return model.Document{}, apperr.Wrap(apperr.CodePersistence, "create document", err)
	}
	return created, nil
}

func (r *DocumentRepository) LoadDocument(ctx context.Context, id string) (model.Document, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, apperr.Wrap(apperr.CodeNotFound, "document "+id, err)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load document %s: %v", id, err)
		return model.Document{}, apperr.Wrap(apperr.CodePersistence, "load document "+id, err)
	}
	return doc, nil
}

// SaveDocument writes title and content. The database assigns updated_at;
// the returned document carries that value.
func (r *DocumentRepository) SaveDocument(ctx context.Context, doc model.Document) (model.Document, error) {
	if err := doc.Validate(); err != nil {
		return model.Document{}, err
	}
	row := r.DB.QueryRowContext(ctx,
		`UPDATE documents SET title = $1, content = $2, updated_at = NOW() WHERE id = $3
		RETURNING `+documentColumns,
		doc.Title, doc.Content, doc.ID)
	saved, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, apperr.Wrap(apperr.CodeNotFound, "document "+doc.ID, err)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to save document %s: %v", doc.ID, err)
		return model.Document{}, apperr.Wrap(apperr.CodePersistence, "save document "+doc.ID, err)
	}
	saved.Collaborators = doc.Collaborators
	return saved, nil
}

func (r *DocumentRepository) UpdateTitle(ctx context.Context, docID, title string) (model.Document, error) {
	row := r.DB.QueryRowContext(ctx,
		`UPDATE documents SET title = $1, updated_at = NOW() WHERE id = $2
		RETURNING `+documentColumns,
		title, docID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, apperr.Wrap(apperr.CodeNotFound, "document "+docID, err)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update title for doc %s: %v", docID, err)
		return model.Document{}, apperr.Wrap(apperr.CodePersistence, "update title", err)
	}
	return doc, nil
}

func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", id, err)
		return apperr.Wrap(apperr.CodePersistence, "delete document "+id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.CodeNotFound, "document "+id)
	}
	return nil
}

// ListDocuments returns the documents userID owns or collaborates on,
// most recently updated first.
func (r *DocumentRepository) ListDocuments(ctx context.Context, userID string) ([]model.Document, error) {
	query := `
		SELECT ` + documentColumns + ` FROM documents WHERE owner_id = $1
		UNION
		SELECT d.id, d.title, d.content, d.owner_id, d.created_at, d.updated_at
		FROM documents d JOIN collaborators c ON d.id = c.document_id WHERE c.user_id = $1
		ORDER BY updated_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get documents for user %s: %v", userID, err)
		return nil, apperr.Wrap(apperr.CodePersistence, "list documents", err)
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			logger.Sugar.Warnf("Skipping unreadable document row: %v", err)
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "list documents", err)
	}
	return docs, nil
}

// ListCollaborators returns the owner followed by every collaborator.
func (r *DocumentRepository) ListCollaborators(ctx context.Context, docID string) ([]model.Collaborator, error) {
	query := `
		SELECT u.id, u.email,
			COALESCE(u.raw_user_meta_data->>'full_name', ''),
			COALESCE(u.raw_user_meta_data->>'avatar_url', ''),
			'owner' AS role
		FROM documents d JOIN auth.users u ON d.owner_id = u.id WHERE d.id = $1
		UNION ALL
		SELECT u.id, u.email,
			COALESCE(u.raw_user_meta_data->>'full_name', ''),
			COALESCE(u.raw_user_meta_data->>'avatar_url', ''),
			c.role
		FROM collaborators c
		JOIN documents d ON d.id = c.document_id
		JOIN auth.users u ON c.user_id = u.id
		WHERE c.document_id = $1 AND c.user_id <> d.owner_id`
	rows, err := r.DB.QueryContext(ctx, query, docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get document members for doc %s: %v", docID, err)
		return nil, apperr.Wrap(apperr.CodePersistence, "list collaborators", err)
	}
	defer rows.Close()

	var members []model.Collaborator
	for rows.Next() {
		var (
			c    model.Collaborator
			role string
		)
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.Avatar, &role); err != nil {
			logger.Sugar.Warnf("Skipping unreadable collaborator row: %v", err)
			continue
		}
		c.Role = model.NormalizeRole(role)
		members = append(members, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "list collaborators", err)
	}
	return members, nil
}

func (r *DocumentRepository) AddCollaborator(ctx context.Context, docID string, c model.Collaborator) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO collaborators (document_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (document_id, user_id) DO UPDATE SET role = $3`, docID, c.ID, string(c.Role))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return apperr.Wrap(apperr.CodeNotFound, "document or user does not exist", err)
		}
		logger.Sugar.Errorf("Failed to add collaborator %s to doc %s: %v", c.ID, docID, err)
		return apperr.Wrap(apperr.CodePersistence, "add collaborator", err)
	}
	return nil
}

func (r *DocumentRepository) RemoveCollaborator(ctx context.Context, docID, userID string) error {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM collaborators WHERE document_id = $1 AND user_id = $2", docID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to remove collaborator %s from doc %s: %v", userID, docID, err)
		return apperr.Wrap(apperr.CodePersistence, "remove collaborator", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.CodeNotFound, "collaborator "+userID)
	}
	return nil
}

func (r *DocumentRepository) UpdateCollaboratorRole(ctx context.Context, docID, userID string, role model.Role) error {
	result, err := r.DB.ExecContext(ctx, "UPDATE collaborators SET role = $3 WHERE document_id = $1 AND user_id = $2", docID, userID, string(role))
	if err != nil {
		logger.Sugar.Errorf("Failed to update role of %s on doc %s: %v", userID, docID, err)
		return apperr.Wrap(apperr.CodePersistence, "update collaborator role", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.CodeNotFound, "collaborator "+userID)
	}
	return nil
}

// FindUserByEmail looks the user up in Supabase's auth.users.
func (r *DocumentRepository) FindUserByEmail(ctx context.Context, email string) (model.SessionUser, error) {
	var u model.SessionUser
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, email,
			COALESCE(raw_user_meta_data->>'full_name', ''),
			COALESCE(raw_user_meta_data->>'avatar_url', '')
		FROM auth.users WHERE lower(email) = lower($1)`, email).Scan(&u.ID, &u.Email, &u.Name, &u.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionUser{}, apperr.Wrap(apperr.CodeNotFound, "user not found with that email", err)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get user by email %s: %v", email, err)
		return model.SessionUser{}, apperr.Wrap(apperr.CodePersistence, "find user", err)
	}
	return u, nil
}

func (r *DocumentRepository) CheckAccess(ctx context.Context, docID, userID string) (bool, error) {
	var hasAccess bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM documents WHERE id = $1 AND owner_id = $2
			UNION
			SELECT 1 FROM collaborators WHERE document_id = $1 AND user_id = $2
		)`, docID, userID).Scan(&hasAccess)
	if err != nil {
		logger.Sugar.Errorf("Failed to check access for user %s on doc %s: %v", userID, docID, err)
		return false, apperr.Wrap(apperr.CodePersistence, "check access", err)
	}
	return hasAccess, nil
}
