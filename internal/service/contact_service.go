package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/mapper"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
)

// ContactService handles the global contact directory. Any signed-in user
// may read and edit it; only admins delete.
type ContactService struct {
	ops scopedOps[domain.Contact]
}

// NewContactService creates a new contact service
func NewContactService(writer *Writer, authorizer *access.Authorizer, logger *zap.Logger) *ContactService {
	repo := repository.NewScopedRepository[domain.Contact](writer.DB(), access.ResourceContact)
	return &ContactService{ops: newScopedOps(writer, authorizer, repo, logger)}
}

// List returns a page of contacts, optionally filtered by name, company or email
func (s *ContactService) List(ctx context.Context, page, pageSize int, search string) (*domain.PaginatedResponse, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	scope := s.ops.scope(ctx, p, access.OpRead)
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	if scope.Empty() {
		resp := mapper.ToPaginatedResponse([]domain.Contact{}, 0, page, pageSize)
		return &resp, nil
	}

	var query interface{}
	var args []interface{}
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = "LOWER(name) LIKE ? OR LOWER(company) LIKE ? OR LOWER(email) LIKE ?"
		args = []interface{}{pattern, pattern, pattern}
	}

	contacts, total, err := s.ops.repo.ListPage(ctx, scope, page, pageSize, "name ASC", query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}
	resp := mapper.ToPaginatedResponse(contacts, total, page, pageSize)
	return &resp, nil
}

// GetByID returns a contact
func (s *ContactService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	return s.ops.get(ctx, id)
}

// Create adds a contact to the directory
func (s *ContactService) Create(ctx context.Context, req *domain.CreateContactRequest) (*domain.Contact, error) {
	contact := &domain.Contact{
		Name:       strings.TrimSpace(req.Name),
		Company:    req.Company,
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      req.Phone,
		Discipline: req.Discipline,
	}
	return s.ops.create(ctx, uuid.Nil, contact, Pipeline[domain.Contact]{})
}

// Update changes the set fields of a contact
func (s *ContactService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateContactRequest) (*domain.Contact, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Discipline != nil {
		updates["discipline"] = *req.Discipline
	}
	return s.ops.update(ctx, id, updates, Pipeline[domain.Contact]{})
}

// Delete removes a contact
func (s *ContactService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.ops.remove(ctx, id, Pipeline[domain.Contact]{})
}
