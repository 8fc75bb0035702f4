package access

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/metrics"
	"go.uber.org/zap"
)

// Request describes a single-row authorization question. ProjectID is the
// resolved root project of the row; OwnerID is the value of the rule's self
// column. Fields lists the columns an update touches.
type Request struct {
	Resource  Resource
	Operation Operation
	ProjectID uuid.UUID
	OwnerID   uuid.UUID
	Category  string
	Fields    []string
}

// Scope is the per-row filter a principal may see for one resource and
// operation. Rows match when All is set, or when their project is in
// ProjectIDs, or when SelfColumn equals SelfID. A non-nil Categories further
// restricts rows to those categories.
type Scope struct {
	All        bool
	ProjectIDs []uuid.UUID
	SelfColumn string
	SelfID     uuid.UUID
	Categories []string
}

// Empty reports whether the scope admits no rows at all
func (s Scope) Empty() bool {
	if s.All {
		return false
	}
	if s.SelfColumn != "" && s.SelfID != uuid.Nil {
		return false
	}
	if len(s.ProjectIDs) == 0 {
		return true
	}
	return s.Categories != nil && len(s.Categories) == 0
}

// Authorizer evaluates a policy set against principals
type Authorizer struct {
	policy  *PolicySet
	facts   Facts
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthorizer creates an authorizer for the given policy set
func NewAuthorizer(policy *PolicySet, facts Facts, m *metrics.Metrics, logger *zap.Logger) *Authorizer {
	return &Authorizer{
		policy:  policy,
		facts:   facts,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for portal token checks
func (a *Authorizer) SetClock(now func() time.Time) {
	a.now = now
}

// PolicyVersion returns the active policy version
func (a *Authorizer) PolicyVersion() string {
	return a.policy.Version
}

// Authorize decides a single-row request. Lookup errors deny.
func (a *Authorizer) Authorize(ctx context.Context, p *auth.Principal, req Request) bool {
	allowed, err := a.authorize(ctx, p, req)
	if err != nil {
		a.logger.Warn("authorization lookup failed, denying",
			zap.String("resource", string(req.Resource)),
			zap.String("operation", string(req.Operation)),
			zap.String("principal_kind", p.KindString()),
			zap.Error(err))
		allowed = false
	}
	if !allowed {
		a.logger.Debug("authorization denied",
			zap.String("resource", string(req.Resource)),
			zap.String("operation", string(req.Operation)),
			zap.String("principal_kind", p.KindString()),
			zap.String("project_id", req.ProjectID.String()))
	}
	a.metrics.ObserveDecision(string(req.Resource), string(req.Operation), allowed)
	return allowed
}

func (a *Authorizer) authorize(ctx context.Context, p *auth.Principal, req Request) (bool, error) {
	if p.IsService() {
		return true, nil
	}
	rule, ok := a.policy.Rule(req.Resource, req.Operation)
	if !ok {
		return false, nil
	}
	if IsAdmin(p) {
		return true, nil
	}

	if p.IsAuthenticated() {
		if rule.Authenticated {
			return true, nil
		}
		if rule.Self != nil && req.OwnerID != uuid.Nil && req.OwnerID == p.UserID {
			return true, nil
		}
		if rule.Project != nil && req.ProjectID != uuid.Nil {
			allowed, err := a.projectClauseAllows(ctx, p, rule.Project, req.ProjectID)
			if err != nil || allowed {
				return allowed, err
			}
		}
		return false, nil
	}

	if rule.Portal != nil && p.Portal != nil {
		return a.portalClauseAllows(ctx, p, rule.Portal, req)
	}
	return false, nil
}

func (a *Authorizer) projectClauseAllows(ctx context.Context, p *auth.Principal, clause *ProjectClause, projectID uuid.UUID) (bool, error) {
	creator, err := IsProjectCreator(ctx, a.facts, p, projectID)
	if err != nil || creator {
		return creator, err
	}
	m, err := a.facts.Membership(ctx, projectID, p.UserID)
	if err != nil {
		return false, err
	}
	return clause.admits(m), nil
}

func (a *Authorizer) portalClauseAllows(ctx context.Context, p *auth.Principal, clause *PortalClause, req Request) (bool, error) {
	grant := p.Portal
	if !clause.allowsClass(grant.Class) {
		return false, nil
	}
	if req.Operation == OpUpdate && !clause.allowsFields(req.Fields) {
		return false, nil
	}
	if clause.CategoryFiltered && (req.Category == "" || !slices.Contains(grant.DocumentTabs, req.Category)) {
		return false, nil
	}
	return hasValidPortalToken(ctx, a.facts, p, req.ProjectID, grant.Class, a.now())
}

// Scope returns the row filter for a resource and operation. An error means the
// facts could not be read; callers treat it as an empty scope.
func (a *Authorizer) Scope(ctx context.Context, p *auth.Principal, res Resource, op Operation) (Scope, error) {
	if p.IsService() {
		return Scope{All: true}, nil
	}
	rule, ok := a.policy.Rule(res, op)
	if !ok {
		return Scope{}, nil
	}
	if IsAdmin(p) {
		return Scope{All: true}, nil
	}

	var scope Scope
	if p.IsAuthenticated() {
		if rule.Authenticated {
			return Scope{All: true}, nil
		}
		if rule.Self != nil {
			scope.SelfColumn = rule.Self.Column
			scope.SelfID = p.UserID
		}
		if rule.Project != nil {
			ids, err := a.facts.AccessibleProjects(ctx, p.UserID, rule.Project.MinRole, rule.Project.Positions)
			if err != nil {
				return Scope{}, err
			}
			scope.ProjectIDs = ids
		}
		return scope, nil
	}

	if rule.Portal == nil || p.Portal == nil || !rule.Portal.allowsClass(p.Portal.Class) {
		return Scope{}, nil
	}
	valid, err := hasValidPortalToken(ctx, a.facts, p, p.Portal.ProjectID, p.Portal.Class, a.now())
	if err != nil {
		return Scope{}, err
	}
	if !valid {
		return Scope{}, nil
	}
	scope.ProjectIDs = []uuid.UUID{p.Portal.ProjectID}
	if rule.Portal.CategoryFiltered {
		scope.Categories = append([]string{}, p.Portal.DocumentTabs...)
	}
	return scope, nil
}
