package access

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
)

// Facts answers the membership and token questions predicates are built on.
// Implementations read project_members, projects and portal_tokens only, so no
// predicate ever queries the table it protects.
type Facts interface {
	// Membership returns the caller's membership row, nil when there is none
	Membership(ctx context.Context, projectID, userID uuid.UUID) (*domain.ProjectMember, error)
	// ProjectCreator returns the creator of a project; ok is false when the project does not exist
	ProjectCreator(ctx context.Context, projectID uuid.UUID) (creator uuid.UUID, ok bool, err error)
	// PortalTokenActive reports whether the token is active and unexpired at now
	PortalTokenActive(ctx context.Context, tokenID uuid.UUID, now time.Time) (bool, error)
	// AccessibleProjects lists projects the user created or is a member of with at
	// least minRole or one of positions
	AccessibleProjects(ctx context.Context, userID uuid.UUID, minRole domain.MemberRole, positions []domain.Position) ([]uuid.UUID, error)
}

// IsAdmin reports whether the principal is an authenticated admin
func IsAdmin(p *auth.Principal) bool {
	return p.IsAdmin()
}

// IsProjectMember reports whether a membership row exists for the caller and project
func IsProjectMember(ctx context.Context, facts Facts, p *auth.Principal, projectID uuid.UUID) (bool, error) {
	if !p.IsAuthenticated() || projectID == uuid.Nil {
		return false, nil
	}
	m, err := facts.Membership(ctx, projectID, p.UserID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// IsProjectCreator reports whether the caller created the project
func IsProjectCreator(ctx context.Context, facts Facts, p *auth.Principal, projectID uuid.UUID) (bool, error) {
	if !p.IsAuthenticated() || projectID == uuid.Nil {
		return false, nil
	}
	creator, ok, err := facts.ProjectCreator(ctx, projectID)
	if err != nil {
		return false, err
	}
	return ok && creator == p.UserID, nil
}

// HasProjectAccess is member OR admin OR creator, evaluated cheapest first
func HasProjectAccess(ctx context.Context, facts Facts, p *auth.Principal, projectID uuid.UUID) (bool, error) {
	if IsAdmin(p) {
		return true, nil
	}
	member, err := IsProjectMember(ctx, facts, p, projectID)
	if err != nil || member {
		return member, err
	}
	return IsProjectCreator(ctx, facts, p, projectID)
}

// HasValidContractorPortalToken reports whether the caller presents a live
// contractor grant for exactly this project
func HasValidContractorPortalToken(ctx context.Context, facts Facts, p *auth.Principal, projectID uuid.UUID, now time.Time) (bool, error) {
	return hasValidPortalToken(ctx, facts, p, projectID, domain.PortalTokenContractor, now)
}

// HasValidClientPortalToken reports whether the caller presents a live client
// grant for exactly this project
func HasValidClientPortalToken(ctx context.Context, facts Facts, p *auth.Principal, projectID uuid.UUID, now time.Time) (bool, error) {
	return hasValidPortalToken(ctx, facts, p, projectID, domain.PortalTokenClient, now)
}

func hasValidPortalToken(ctx context.Context, facts Facts, p *auth.Principal, projectID uuid.UUID, class domain.PortalTokenClass, now time.Time) (bool, error) {
	if p == nil || p.Kind != auth.KindAnonymous || p.Portal == nil {
		return false, nil
	}
	grant := p.Portal
	if projectID == uuid.Nil || grant.ProjectID != projectID || grant.Class != class {
		return false, nil
	}
	// Re-checked against the store so a revoke applies to requests already in flight.
	return facts.PortalTokenActive(ctx, grant.TokenID, now)
}
