package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"gorm.io/gorm"
)

// maxListRows caps unpaginated child lists (entries of a schedule, items of a section)
const maxListRows = 1000

// ScopedRepository provides row-scoped CRUD for one resource. Every read, update
// and delete is filtered by an access.Scope, so a denied caller observes empty
// results and zero affected rows.
type ScopedRepository[T any] struct {
	db       *gorm.DB
	resource access.Resource
	binding  access.Binding
}

// NewScopedRepository creates a repository for a bound resource
func NewScopedRepository[T any](db *gorm.DB, resource access.Resource) *ScopedRepository[T] {
	binding, ok := access.BindingFor(resource)
	if !ok {
		panic(fmt.Sprintf("repository: no table binding for resource %q", resource))
	}
	return &ScopedRepository[T]{db: db, resource: resource, binding: binding}
}

// WithTx returns a copy of the repository bound to tx
func (r *ScopedRepository[T]) WithTx(tx *gorm.DB) *ScopedRepository[T] {
	return &ScopedRepository[T]{db: tx, resource: r.resource, binding: r.binding}
}

// Resource returns the resource this repository serves
func (r *ScopedRepository[T]) Resource() access.Resource {
	return r.resource
}

// Binding returns the table binding of the resource
func (r *ScopedRepository[T]) Binding() access.Binding {
	return r.binding
}

func (r *ScopedRepository[T]) scoped(ctx context.Context, scope access.Scope) *gorm.DB {
	return ApplyAccessScope(r.db.WithContext(ctx).Model(new(T)), r.binding, scope)
}

// Get returns the row with id if scope admits it, nil otherwise
func (r *ScopedRepository[T]) Get(ctx context.Context, scope access.Scope, id uuid.UUID) (*T, error) {
	var entity T
	err := r.scoped(ctx, scope).Where(r.binding.Table+".id = ?", id).First(&entity).Error
	return notFound(&entity, err)
}

// List returns rows admitted by scope that match the optional condition
func (r *ScopedRepository[T]) List(ctx context.Context, scope access.Scope, order string, query interface{}, args ...interface{}) ([]T, error) {
	var entities []T
	q := r.scoped(ctx, scope)
	if query != nil {
		q = q.Where(query, args...)
	}
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Limit(maxListRows).Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

// ListPage returns one page of rows admitted by scope and the total count
func (r *ScopedRepository[T]) ListPage(ctx context.Context, scope access.Scope, page, pageSize int, order string, query interface{}, args ...interface{}) ([]T, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	q := r.scoped(ctx, scope)
	if query != nil {
		q = q.Where(query, args...)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entities []T
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Offset((page - 1) * pageSize).Limit(pageSize).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

// Create inserts entity. Authorization of creates is decided before the insert.
func (r *ScopedRepository[T]) Create(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

// Update applies column updates to the row with id if scope admits it
func (r *ScopedRepository[T]) Update(ctx context.Context, scope access.Scope, id uuid.UUID, updates map[string]interface{}) (int64, error) {
	result := r.scoped(ctx, scope).Where(r.binding.Table+".id = ?", id).Updates(updates)
	return result.RowsAffected, result.Error
}

// Save writes every column of entity (identified by its primary key) if scope admits the row
func (r *ScopedRepository[T]) Save(ctx context.Context, scope access.Scope, entity *T) (int64, error) {
	q := ApplyAccessScope(r.db.WithContext(ctx).Model(entity), r.binding, scope)
	result := q.Select("*").Omit("id", "created_at").Updates(entity)
	return result.RowsAffected, result.Error
}

// Delete removes the row with id if scope admits it
func (r *ScopedRepository[T]) Delete(ctx context.Context, scope access.Scope, id uuid.UUID) (int64, error) {
	q := ApplyAccessScope(r.db.WithContext(ctx), r.binding, scope)
	result := q.Where(r.binding.Table+".id = ?", id).Delete(new(T))
	return result.RowsAffected, result.Error
}

// ResolveProject returns the root project of the row with id, ignoring scope
func (r *ScopedRepository[T]) ResolveProject(ctx context.Context, id uuid.UUID) (uuid.UUID, bool, error) {
	return ResolveProject(ctx, r.db, r.binding, id)
}
