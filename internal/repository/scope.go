package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// DefaultSortConfig returns a default sort configuration (created_at DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{
		Field: "createdAt",
		Order: SortOrderDesc,
	}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the SQL ORDER BY clause from field mapping and sort config
// fieldMap maps API field names to database column names
// Returns the default sort if field is not in whitelist
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}

	return column + " " + order
}

// ApplyAccessScope restricts a query on binding.Table to the rows admitted by scope.
// Project membership is resolved through the binding's parent chain as nested
// IN subqueries, so the protected table is never joined against itself.
func ApplyAccessScope(query *gorm.DB, binding access.Binding, scope access.Scope) *gorm.DB {
	if scope.All {
		return query
	}

	var conds []string
	var args []interface{}

	if binding.Scoped() && len(scope.ProjectIDs) > 0 {
		conds = append(conds, projectCondition(binding))
		args = append(args, scope.ProjectIDs)
	}
	if scope.SelfColumn != "" && scope.SelfID != uuid.Nil {
		conds = append(conds, binding.Table+"."+scope.SelfColumn+" = ?")
		args = append(args, scope.SelfID)
	}

	if len(conds) == 0 {
		return query.Where("1 = 0")
	}
	query = query.Where("("+strings.Join(conds, " OR ")+")", args...)

	if scope.Categories != nil && binding.CategoryColumn != "" {
		if len(scope.Categories) == 0 {
			return query.Where("1 = 0")
		}
		query = query.Where(binding.Table+"."+binding.CategoryColumn+" IN ?", scope.Categories)
	}
	return query
}

// projectCondition renders "<first hop> IN (SELECT id FROM parent WHERE ... project_column IN ?)"
func projectCondition(b access.Binding) string {
	if len(b.Parents) == 0 {
		return b.Table + "." + b.ProjectColumn + " IN ?"
	}

	last := b.Parents[len(b.Parents)-1]
	cond := last.Table + "." + b.ProjectColumn + " IN ?"
	for i := len(b.Parents) - 1; i >= 0; i-- {
		hop := b.Parents[i]
		owner := b.Table
		if i > 0 {
			owner = b.Parents[i-1].Table
		}
		cond = fmt.Sprintf("%s.%s IN (SELECT %s.id FROM %s WHERE %s)", owner, hop.Column, hop.Table, hop.Table, cond)
	}
	return cond
}

// ResolveProject walks the binding's parent chain from row id to its root project
// without any access scope. ok is false when a row on the chain does not exist.
func ResolveProject(ctx context.Context, db *gorm.DB, binding access.Binding, id uuid.UUID) (uuid.UUID, bool, error) {
	if !binding.Scoped() {
		return uuid.Nil, false, nil
	}

	table := binding.Table
	current := id
	for _, hop := range binding.Parents {
		next, ok, err := pluckOne(ctx, db, table, hop.Column, current)
		if err != nil || !ok {
			return uuid.Nil, false, err
		}
		table = hop.Table
		current = next
	}
	return pluckOne(ctx, db, table, binding.ProjectColumn, current)
}

func pluckOne(ctx context.Context, db *gorm.DB, table, column string, id uuid.UUID) (uuid.UUID, bool, error) {
	var values []uuid.UUID
	err := db.WithContext(ctx).Table(table).Where("id = ?", id).Limit(1).Pluck(column, &values).Error
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to resolve %s.%s: %w", table, column, err)
	}
	if len(values) == 0 || values[0] == uuid.Nil {
		return uuid.Nil, false, nil
	}
	return values[0], true, nil
}

// notFound maps gorm.ErrRecordNotFound to (nil, nil)
func notFound[T any](v *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
