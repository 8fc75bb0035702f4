package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
)

// DocumentService manages document metadata. Client portals only see the
// categories listed on their token.
type DocumentService struct {
	ops scopedOps[domain.ProjectDocument]
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(writer *Writer, authorizer *access.Authorizer, logger *zap.Logger) *DocumentService {
	repo := repository.NewScopedRepository[domain.ProjectDocument](writer.DB(), access.ResourceDocument)
	return &DocumentService{ops: newScopedOps(writer, authorizer, repo, logger)}
}

// List returns the documents of a project, optionally of one category
func (s *DocumentService) List(ctx context.Context, projectID uuid.UUID, category string) ([]domain.ProjectDocument, error) {
	if category != "" {
		return s.ops.list(ctx, "title ASC", "project_id = ? AND category = ?", projectID, category)
	}
	return s.ops.list(ctx, "category ASC, title ASC", "project_id = ?", projectID)
}

// GetByID returns a document the caller may read
func (s *DocumentService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProjectDocument, error) {
	return s.ops.get(ctx, id)
}

// Create files document metadata under a category
func (s *DocumentService) Create(ctx context.Context, projectID uuid.UUID, req *domain.CreateDocumentRequest) (*domain.ProjectDocument, error) {
	doc := &domain.ProjectDocument{
		ProjectID:   projectID,
		Category:    strings.TrimSpace(req.Category),
		Title:       strings.TrimSpace(req.Title),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
	}
	return s.ops.create(ctx, projectID, doc, Pipeline[domain.ProjectDocument]{})
}

// Delete removes document metadata
func (s *DocumentService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.ops.remove(ctx, id, Pipeline[domain.ProjectDocument]{})
}
