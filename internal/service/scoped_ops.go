package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// scopedOps runs the authorized read and write paths of one resource.
// Authorization is decided before a transaction opens; inside the transaction
// only the precomputed scope is applied.
type scopedOps[T any] struct {
	writer *Writer
	authz  *access.Authorizer
	repo   *repository.ScopedRepository[T]
	logger *zap.Logger
}

func newScopedOps[T any](writer *Writer, authz *access.Authorizer, repo *repository.ScopedRepository[T], logger *zap.Logger) scopedOps[T] {
	return scopedOps[T]{writer: writer, authz: authz, repo: repo, logger: logger}
}

func (o scopedOps[T]) entityType() string {
	return string(o.repo.Resource())
}

// scope returns the caller's row filter; lookup errors yield an empty scope
func (o scopedOps[T]) scope(ctx context.Context, p *auth.Principal, op access.Operation) access.Scope {
	scope, err := o.authz.Scope(ctx, p, o.repo.Resource(), op)
	if err != nil {
		o.logger.Warn("access scope lookup failed, denying",
			zap.String("resource", o.entityType()),
			zap.String("operation", string(op)),
			zap.Error(err))
		return access.Scope{}
	}
	return scope
}

// resolveProject returns the root project of a row. Rows of resources without
// a project resolve to uuid.Nil.
func (o scopedOps[T]) resolveProject(ctx context.Context, id uuid.UUID) (uuid.UUID, bool, error) {
	if !o.repo.Binding().Scoped() {
		return uuid.Nil, true, nil
	}
	projectID, found, err := o.repo.ResolveProject(ctx, id)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to resolve project of %s: %w", o.entityType(), err)
	}
	return projectID, found, nil
}

// get returns the row if the caller may read it
func (o scopedOps[T]) get(ctx context.Context, id uuid.UUID) (*T, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	scope := o.scope(ctx, p, access.OpRead)
	if scope.Empty() {
		return nil, nil
	}
	entity, err := o.repo.Get(ctx, scope, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", o.entityType(), err)
	}
	return entity, nil
}

// list returns the readable rows matching an optional condition
func (o scopedOps[T]) list(ctx context.Context, order string, query interface{}, args ...interface{}) ([]T, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	scope := o.scope(ctx, p, access.OpRead)
	if scope.Empty() {
		return []T{}, nil
	}
	entities, err := o.repo.List(ctx, scope, order, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", o.entityType(), err)
	}
	if entities == nil {
		entities = []T{}
	}
	return entities, nil
}

// create inserts entity under projectID if the caller may create there.
// hooks.Persist is supplied here; the other steps come from the caller.
func (o scopedOps[T]) create(ctx context.Context, projectID uuid.UUID, entity *T, hooks Pipeline[T]) (*T, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	allowed := o.authz.Authorize(ctx, p, access.Request{
		Resource:  o.repo.Resource(),
		Operation: access.OpCreate,
		ProjectID: projectID,
	})
	if !allowed {
		return nil, nil
	}

	hooks.Persist = func(ctx context.Context, tx *gorm.DB, m *Mutation[T]) (int64, error) {
		if err := o.repo.WithTx(tx).Create(ctx, m.After); err != nil {
			return 0, err
		}
		return 1, nil
	}

	m := &Mutation[T]{
		Principal:  p,
		ChangeType: domain.ChangeCreated,
		EntityType: o.entityType(),
		ProjectID:  projectRef(projectID),
		After:      entity,
	}
	persisted, err := Run(ctx, o.writer, hooks, m)
	if err != nil || !persisted {
		return nil, err
	}
	return m.After, nil
}

// update applies column updates to the row with id if the caller may update
// it. Portal callers are additionally checked against the columns they touch.
// hooks.Derive runs with Before loaded and may adjust updates.
func (o scopedOps[T]) update(ctx context.Context, id uuid.UUID, updates map[string]interface{}, hooks Pipeline[T]) (*T, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	p := auth.PrincipalOrAnonymous(ctx)
	scope := o.scope(ctx, p, access.OpUpdate)
	if scope.Empty() {
		return nil, nil
	}

	projectID, found, err := o.resolveProject(ctx, id)
	if err != nil || !found {
		return nil, err
	}

	if p.Portal != nil && !p.IsAuthenticated() {
		fields := make([]string, 0, len(updates))
		for column := range updates {
			fields = append(fields, column)
		}
		allowed := o.authz.Authorize(ctx, p, access.Request{
			Resource:  o.repo.Resource(),
			Operation: access.OpUpdate,
			ProjectID: projectID,
			Fields:    fields,
		})
		if !allowed {
			return nil, nil
		}
	}

	derive := hooks.Derive
	hooks.Derive = func(ctx context.Context, tx *gorm.DB, m *Mutation[T]) error {
		before, err := o.repo.WithTx(tx).Get(ctx, scope, id)
		if err != nil {
			return err
		}
		m.Before = before
		if before == nil || derive == nil {
			return nil
		}
		return derive(ctx, tx, m)
	}
	hooks.Persist = func(ctx context.Context, tx *gorm.DB, m *Mutation[T]) (int64, error) {
		if m.Before == nil {
			return 0, nil
		}
		rows, err := o.repo.WithTx(tx).Update(ctx, scope, id, updates)
		if err != nil || rows == 0 {
			return rows, err
		}
		after, err := o.repo.WithTx(tx).Get(ctx, access.Scope{All: true}, id)
		if err != nil {
			return 0, err
		}
		m.After = after
		return rows, nil
	}

	m := &Mutation[T]{
		Principal:  p,
		ChangeType: domain.ChangeUpdated,
		EntityType: o.entityType(),
		EntityID:   id,
		ProjectID:  projectRef(projectID),
	}
	persisted, err := Run(ctx, o.writer, hooks, m)
	if err != nil || !persisted {
		return nil, err
	}
	return m.After, nil
}

// remove deletes the row with id if the caller may delete it
func (o scopedOps[T]) remove(ctx context.Context, id uuid.UUID, hooks Pipeline[T]) (bool, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	scope := o.scope(ctx, p, access.OpDelete)
	if scope.Empty() {
		return false, nil
	}

	projectID, found, err := o.resolveProject(ctx, id)
	if err != nil || !found {
		return false, err
	}

	hooks.Persist = func(ctx context.Context, tx *gorm.DB, m *Mutation[T]) (int64, error) {
		before, err := o.repo.WithTx(tx).Get(ctx, scope, id)
		if err != nil || before == nil {
			return 0, err
		}
		m.Before = before
		return o.repo.WithTx(tx).Delete(ctx, scope, id)
	}

	m := &Mutation[T]{
		Principal:  p,
		ChangeType: domain.ChangeDeleted,
		EntityType: o.entityType(),
		EntityID:   id,
		ProjectID:  projectRef(projectID),
	}
	return Run(ctx, o.writer, hooks, m)
}

func projectRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
