package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"naskah/internal/document/model"
	"naskah/internal/document/repository"
	"naskah/internal/editor"
	"naskah/pkg/apperr"
	"naskah/pkg/logger"
)

const snippetLength = 100

// Rooms is the live side of a document: the connections that have it open.
type Rooms interface {
	NotifySaved(docID, userID string, updatedAt time.Time)
	RemoveDocument(docID string)
	MemberInvited(docID string, c model.Collaborator)
	MemberRemoved(docID, userID string)
	RoleChanged(docID, userID string, role model.Role)
}

type DocumentService struct {
	Repo *repository.DocumentRepository
	Hub  Rooms
}

func NewDocumentService(repo *repository.DocumentRepository, hub Rooms) *DocumentService {
	return &DocumentService{Repo: repo, Hub: hub}
}

func (s *DocumentService) CreateDocument(ctx context.Context, userID, title string) (model.Document, error) {
	title = strings.TrimSpace(title)
	if err := checkTitle(title, true); err != nil {
		return model.Document{}, err
	}
	return s.Repo.CreateDocument(ctx, userID, title)
}

// GetDocuments lists what userID owns or was invited to, with a plain-text
// snippet and the members of each document.
func (s *DocumentService) GetDocuments(ctx context.Context, userID string) ([]model.DocumentSummary, error) {
	docs, err := s.Repo.ListDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		summary := model.DocumentSummary{
			ID:        doc.ID,
			Title:     doc.Title,
			UpdatedAt: doc.UpdatedAt,
			Snippet:   getSnippetFromContent(doc.Content),
			IsOwner:   doc.OwnerID == userID,
			Collab:    []model.CollaboratorInfo{},
		}
		members, err := s.Repo.ListCollaborators(ctx, doc.ID)
		if err != nil {
			logger.Sugar.Warnf("Listing documents without members of %s: %v", doc.ID, err)
		}
		for _, m := range members {
			summary.Collab = append(summary.Collab, m.Info())
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *DocumentService) UpdateTitle(ctx context.Context, userID, docID, title string) (model.Document, error) {
	title = strings.TrimSpace(title)
	if err := checkTitle(title, false); err != nil {
		return model.Document{}, err
	}
	gate, _, err := s.gate(ctx, userID, docID)
	if err != nil {
		return model.Document{}, err
	}
	if err := gate.RequireEdit(); err != nil {
		return model.Document{}, err
	}

	doc, err := s.Repo.UpdateTitle(ctx, docID, title)
	if err != nil {
		return model.Document{}, err
	}
	s.Hub.NotifySaved(docID, userID, doc.UpdatedAt)
	return doc, nil
}

// SaveDocument is the explicit save of the REST API. Content is stored as
// sent: a JSON string is unquoted, anything else is kept verbatim.
func (s *DocumentService) SaveDocument(ctx context.Context, userID string, req model.SaveDocRequest) (model.SaveDocResponse, error) {
	if req.DocID == "" {
		return model.SaveDocResponse{}, apperr.New(apperr.CodeInvalidInput, "document_id is required")
	}
	if len(req.Content) == 0 || string(req.Content) == "null" {
		return model.SaveDocResponse{}, apperr.New(apperr.CodeInvalidInput, "content cannot be empty")
	}

	gate, _, err := s.gate(ctx, userID, req.DocID)
	if err != nil {
		return model.SaveDocResponse{}, err
	}
	if err := gate.RequireEdit(); err != nil {
		return model.SaveDocResponse{}, err
	}

	doc, err := s.Repo.LoadDocument(ctx, req.DocID)
	if err != nil {
		return model.SaveDocResponse{}, err
	}
	doc.Content = contentString(req.Content)
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if err := checkTitle(title, false); err != nil {
			return model.SaveDocResponse{}, err
		}
		doc.Title = title
	}

	saved, err := s.Repo.SaveDocument(ctx, doc)
	if err != nil {
		return model.SaveDocResponse{}, err
	}
	s.Hub.NotifySaved(saved.ID, userID, saved.UpdatedAt)
	return model.SaveDocResponse{DocID: saved.ID, UpdatedAt: saved.UpdatedAt}, nil
}

func (s *DocumentService) DeleteDocument(ctx context.Context, userID, docID string) error {
	_, roster, err := s.gate(ctx, userID, docID)
	if err != nil {
		return err
	}
	if roster.Owner().ID != userID {
		return apperr.New(apperr.CodePermissionDenied, "only the owner can delete a document")
	}

	if err := s.Repo.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	s.Hub.RemoveDocument(docID)
	return nil
}

// Members returns the roster of docID to anyone who can open it.
func (s *DocumentService) Members(ctx context.Context, userID, docID string) ([]model.CollaboratorInfo, error) {
	hasAccess, err := s.Repo.CheckAccess(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	if !hasAccess {
		return nil, apperr.New(apperr.CodePermissionDenied, "unauthorized or document not found")
	}
	_, roster, err := s.gate(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	members := roster.List()
	infos := make([]model.CollaboratorInfo, 0, len(members))
	for _, m := range members {
		infos = append(infos, m.Info())
	}
	return infos, nil
}

func (s *DocumentService) InviteCollaborator(ctx context.Context, userID string, req model.InviteRequest) (model.Collaborator, error) {
	role, ok := model.ParseRole(req.Role)
	if !ok || role == model.RoleOwner {
		return model.Collaborator{}, apperr.New(apperr.CodeInvalidRole, "role must be editor or viewer")
	}
	if strings.TrimSpace(req.Email) == "" {
		return model.Collaborator{}, apperr.New(apperr.CodeInvalidInput, "email is required")
	}

	gate, roster, err := s.gate(ctx, userID, req.DocID)
	if err != nil {
		return model.Collaborator{}, err
	}
	if err := gate.RequireManage(); err != nil {
		return model.Collaborator{}, err
	}

	invitee, err := s.Repo.FindUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return model.Collaborator{}, err
	}
	c, err := roster.InviteUser(invitee, role)
	if err != nil {
		return model.Collaborator{}, err
	}
	if err := s.Repo.AddCollaborator(ctx, req.DocID, c); err != nil {
		return model.Collaborator{}, err
	}
	s.Hub.MemberInvited(req.DocID, c)
	return c, nil
}

func (s *DocumentService) RemoveCollaborator(ctx context.Context, userID, docID, targetID string) error {
	gate, roster, err := s.gate(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := gate.RequireManage(); err != nil {
		return err
	}
	if err := roster.Remove(targetID); err != nil {
		return err
	}
	if err := s.Repo.RemoveCollaborator(ctx, docID, targetID); err != nil {
		return err
	}
	s.Hub.MemberRemoved(docID, targetID)
	return nil
}

func (s *DocumentService) ChangeRole(ctx context.Context, userID string, req model.ChangeRoleRequest) error {
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return apperr.New(apperr.CodeInvalidRole, "unknown role "+req.Role)
	}
	gate, roster, err := s.gate(ctx, userID, req.DocID)
	if err != nil {
		return err
	}
	if err := gate.RequireManage(); err != nil {
		return err
	}
	if err := roster.ChangeRole(req.UserID, role); err != nil {
		return err
	}
	if err := s.Repo.UpdateCollaboratorRole(ctx, req.DocID, req.UserID, role); err != nil {
		return err
	}
	s.Hub.RoleChanged(req.DocID, req.UserID, role)
	return nil
}

// gate loads the roster of docID and binds userID to it. The roster is
// always led by the owner, so an empty one means the document is gone.
func (s *DocumentService) gate(ctx context.Context, userID, docID string) (editor.Gate, *editor.Roster, error) {
	if docID == "" {
		return editor.Gate{}, nil, apperr.New(apperr.CodeInvalidInput, "docId is required")
	}
	members, err := s.Repo.ListCollaborators(ctx, docID)
	if err != nil {
		return editor.Gate{}, nil, err
	}
	if len(members) == 0 {
		return editor.Gate{}, nil, apperr.New(apperr.CodeNotFound, "document "+docID)
	}
	roster, err := editor.NewRoster(nil, members...)
	if err != nil {
		return editor.Gate{}, nil, err
	}
	return editor.Gate{UserID: userID, Roster: roster}, roster, nil
}

func checkTitle(title string, allowEmpty bool) error {
	if title == "" && !allowEmpty {
		return apperr.New(apperr.CodeInvalidInput, "title cannot be empty")
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return apperr.New(apperr.CodeInvalidInput, "title is too long")
	}
	return nil
}

func contentString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// getSnippetFromContent renders the start of a document as plain text.
// Content is either a Quill delta or HTML from the editor.
func getSnippetFromContent(content string) string {
	type QuillOp struct {
		Insert interface{} `json:"insert"`
	}
	type QuillDelta struct {
		Ops []QuillOp `json:"ops"`
	}

	var sb strings.Builder
	var delta QuillDelta
	if err := json.Unmarshal([]byte(content), &delta); err == nil {
		for _, op := range delta.Ops {
			if str, ok := op.Insert.(string); ok {
				sb.WriteString(str)
			}
			if sb.Len() > snippetLength {
				break
			}
		}
	} else {
		sb.WriteString(stripTags(content))
	}

	res := strings.Join(strings.Fields(sb.String()), " ")
	if utf8.RuneCountInString(res) > snippetLength {
		return string([]rune(res)[:snippetLength]) + "..."
	}
	return res
}

// stripTags drops markup, leaving a space where each tag was.
func stripTags(html string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
			sb.WriteByte(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
