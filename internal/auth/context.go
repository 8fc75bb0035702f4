package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/domain"
)

// PrincipalKind classifies the caller of a request
type PrincipalKind string

const (
	// KindAuthenticated is a user with a verified session
	KindAuthenticated PrincipalKind = "authenticated"
	// KindAnonymous is a caller without a session, optionally holding a portal grant
	KindAnonymous PrincipalKind = "anonymous"
	// KindService is a trusted backend job; it bypasses every access predicate
	KindService PrincipalKind = "service"
)

// PortalGrant is the project scope a validated portal token maps to
type PortalGrant struct {
	TokenID      uuid.UUID
	ProjectID    uuid.UUID
	Class        domain.PortalTokenClass
	DocumentTabs []string
	ExpiresAt    time.Time
}

// Principal is the resolved caller of a request
type Principal struct {
	Kind        PrincipalKind
	UserID      uuid.UUID
	Email       string
	DisplayName string
	Role        domain.Role
	Portal      *PortalGrant
}

// ServicePrincipal returns the principal used by trusted backend jobs
func ServicePrincipal() *Principal {
	return &Principal{Kind: KindService, DisplayName: "System"}
}

// AnonymousPrincipal returns a principal holding only a portal grant (which may be nil)
func AnonymousPrincipal(grant *PortalGrant) *Principal {
	return &Principal{Kind: KindAnonymous, Portal: grant}
}

// UserPrincipal returns an authenticated principal with an already resolved role
func UserPrincipal(userID uuid.UUID, role domain.Role) *Principal {
	return &Principal{Kind: KindAuthenticated, UserID: userID, Role: role}
}

// IsService reports whether the caller is a trusted backend job
func (p *Principal) IsService() bool {
	return p != nil && p.Kind == KindService
}

// IsAuthenticated reports whether the caller holds a verified session
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.Kind == KindAuthenticated && p.UserID != uuid.Nil
}

// IsAdmin reports whether the caller is an authenticated admin
func (p *Principal) IsAdmin() bool {
	return p.IsAuthenticated() && p.Role == domain.RoleAdmin
}

// ActorID returns the user id to record as actor, or nil for portal and service callers
func (p *Principal) ActorID() *uuid.UUID {
	if !p.IsAuthenticated() {
		return nil
	}
	id := p.UserID
	return &id
}

// KindString returns the principal kind, "none" for a nil principal
func (p *Principal) KindString() string {
	if p == nil {
		return "none"
	}
	return string(p.Kind)
}

// RequestMeta carries network metadata recorded in audit and access logs
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type contextKey string

const (
	principalKey   contextKey = "principal"
	requestMetaKey contextKey = "requestMeta"
)

// WithPrincipal adds the principal to the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext extracts the principal from the context
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// PrincipalOrAnonymous returns the principal in ctx, or an anonymous principal
// without grant. Code paths that forget to attach a principal therefore fail closed.
func PrincipalOrAnonymous(ctx context.Context) *Principal {
	if p, ok := FromContext(ctx); ok {
		return p
	}
	return AnonymousPrincipal(nil)
}

// WithRequestMeta adds request metadata to the context
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey, meta)
}

// RequestMetaFromContext extracts request metadata, zero value if absent
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey).(RequestMeta)
	return meta
}

// ToDTO converts the principal for API responses
func (p *Principal) ToDTO() domain.PrincipalDTO {
	dto := domain.PrincipalDTO{Kind: p.KindString()}
	if p.IsAuthenticated() {
		id := p.UserID
		dto.UserID = &id
		dto.Email = p.Email
		dto.Role = p.Role
	}
	if p != nil && p.Portal != nil {
		projectID := p.Portal.ProjectID
		dto.PortalClass = string(p.Portal.Class)
		dto.ProjectID = &projectID
		dto.DocumentTabs = p.Portal.DocumentTabs
	}
	return dto
}
