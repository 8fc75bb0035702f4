package access

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/straye-as/project-access-api/internal/domain"
)

const (
	PolicyCollaborative = domain.PolicyCollaborative
	PolicyScoped        = domain.PolicyScoped
)

// ErrUnknownPolicyVersion is returned by LookupPolicy for an unregistered version
var ErrUnknownPolicyVersion = errors.New("unknown policy version")

// ProjectClause admits the project creator and members whose role is at least
// MinRole or whose position is one of Positions.
type ProjectClause struct {
	MinRole   domain.MemberRole
	Positions []domain.Position
}

func (c *ProjectClause) admits(m *domain.ProjectMember) bool {
	if m == nil {
		return false
	}
	if m.Role.AtLeast(c.MinRole) {
		return true
	}
	return m.Position != domain.PositionNone && slices.Contains(c.Positions, m.Position)
}

// SelfClause admits an authenticated caller whose id is stored in Column of the row
type SelfClause struct {
	Column string
}

// PortalClause admits anonymous callers holding a valid grant of one of Classes
// for the row's project. Fields, when set, bounds the columns an update may touch.
// CategoryFiltered restricts rows to the grant's document tabs.
type PortalClause struct {
	Classes          []domain.PortalTokenClass
	Fields           []string
	CategoryFiltered bool
}

func (c *PortalClause) allowsClass(class domain.PortalTokenClass) bool {
	return slices.Contains(c.Classes, class)
}

func (c *PortalClause) allowsFields(fields []string) bool {
	if len(c.Fields) == 0 {
		return true
	}
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !slices.Contains(c.Fields, f) {
			return false
		}
	}
	return true
}

// Rule is the access rule of one (resource, operation) pair. Clauses are ORed;
// admins always pass and a zero Rule admits admins only.
type Rule struct {
	Authenticated bool
	Project       *ProjectClause
	Self          *SelfClause
	Portal        *PortalClause
}

// PolicySet is a versioned rule table. A missing rule denies everyone except
// service principals.
type PolicySet struct {
	Version string
	rules   map[Resource]map[Operation]Rule
}

// Rule returns the rule for a resource and operation
func (ps *PolicySet) Rule(r Resource, op Operation) (Rule, bool) {
	ops, ok := ps.rules[r]
	if !ok {
		return Rule{}, false
	}
	rule, ok := ops[op]
	return rule, ok
}

// LookupPolicy returns the policy set registered under version
func LookupPolicy(version string) (*PolicySet, error) {
	switch version {
	case PolicyScoped:
		return ScopedPolicy(), nil
	case PolicyCollaborative:
		return CollaborativePolicy(), nil
	}
	return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownPolicyVersion, version,
		strings.Join(domain.PolicyVersions(), ", "))
}

var (
	contractorOnly = []domain.PortalTokenClass{domain.PortalTokenContractor}
	clientOnly     = []domain.PortalTokenClass{domain.PortalTokenClient}
	anyPortal      = []domain.PortalTokenClass{domain.PortalTokenContractor, domain.PortalTokenClient}
)

func members() *ProjectClause { return &ProjectClause{MinRole: domain.MemberRoleMember} }
func editors() *ProjectClause { return &ProjectClause{MinRole: domain.MemberRoleEditor} }
func owners() *ProjectClause  { return &ProjectClause{MinRole: domain.MemberRoleOwner} }

func engineers() *ProjectClause {
	return &ProjectClause{
		MinRole:   domain.MemberRoleEditor,
		Positions: []domain.Position{domain.PositionPrimary, domain.PositionSecondary},
	}
}

func editorsRule() Rule { return Rule{Project: editors()} }

// ScopedPolicy returns the scoped-v2 rule table: members read, editors write,
// owners or the primary engineer delete the project, final-account writes are
// open to editors and to primary/secondary engineers.
func ScopedPolicy() *PolicySet {
	finalAccountRules := map[Operation]Rule{
		OpRead:   {Project: members()},
		OpCreate: {Project: engineers()},
		OpUpdate: {Project: engineers()},
		OpDelete: {Project: engineers()},
	}

	return &PolicySet{
		Version: PolicyScoped,
		rules: map[Resource]map[Operation]Rule{
			ResourceProject: {
				OpRead:   {Project: members(), Portal: &PortalClause{Classes: anyPortal}},
				OpCreate: {Authenticated: true},
				OpUpdate: editorsRule(),
				OpDelete: {Project: &ProjectClause{MinRole: domain.MemberRoleOwner, Positions: []domain.Position{domain.PositionPrimary}}},
			},
			ResourceProjectMember: {
				OpRead:   {Project: members(), Self: &SelfClause{Column: "user_id"}},
				OpCreate: {Project: owners()},
				OpUpdate: {Project: owners()},
				OpDelete: {Project: owners(), Self: &SelfClause{Column: "user_id"}},
			},
			ResourcePortalToken: {
				OpRead:   editorsRule(),
				OpCreate: editorsRule(),
				OpUpdate: editorsRule(),
				OpDelete: {Project: owners()},
			},
			ResourceTenant: {
				OpRead:   {Project: members(), Portal: &PortalClause{Classes: clientOnly}},
				OpCreate: editorsRule(),
				OpUpdate: editorsRule(),
				OpDelete: editorsRule(),
			},
			ResourceCableSchedule: {
				OpRead:   {Project: members(), Portal: &PortalClause{Classes: anyPortal}},
				OpCreate: editorsRule(),
				OpUpdate: editorsRule(),
				OpDelete: editorsRule(),
			},
			ResourceCableEntry: {
				OpRead:   {Project: members(), Portal: &PortalClause{Classes: anyPortal}},
				OpCreate: editorsRule(),
				OpUpdate: {
					Project: editors(),
					Portal: &PortalClause{
						Classes: contractorOnly,
						Fields:  []string{"contractor_installed", "measured_length", "installed_at"},
					},
				},
				OpDelete: editorsRule(),
			},
			ResourceFinalAccount:        finalAccountRules,
			ResourceFinalAccountBill:    finalAccountRules,
			ResourceFinalAccountSection: finalAccountRules,
			ResourceFinalAccountItem:    finalAccountRules,
			ResourceProcurementItem: {
				OpRead:   {Project: members(), Portal: &PortalClause{Classes: contractorOnly}},
				OpCreate: editorsRule(),
				OpUpdate: {
					Project: editors(),
					Portal: &PortalClause{
						Classes: contractorOnly,
						Fields:  []string{"order_date", "expected_delivery_date"},
					},
				},
				OpDelete: editorsRule(),
			},
			ResourceProcurementDelivery: {
				OpRead:   {Project: members(), Portal: &PortalClause{Classes: contractorOnly}},
				OpCreate: {Project: editors(), Portal: &PortalClause{Classes: contractorOnly}},
				OpUpdate: editorsRule(),
				OpDelete: editorsRule(),
			},
			ResourceRoadmapItem: {
				OpRead:   {Project: members(), Portal: &PortalClause{Classes: clientOnly}},
				OpCreate: editorsRule(),
				OpUpdate: editorsRule(),
				OpDelete: editorsRule(),
			},
			ResourceDocument: {
				OpRead:   {Project: members(), Portal: &PortalClause{Classes: clientOnly, CategoryFiltered: true}},
				OpCreate: editorsRule(),
				OpUpdate: editorsRule(),
				OpDelete: editorsRule(),
			},
			ResourceContact: {
				OpRead:   {Authenticated: true},
				OpCreate: {Authenticated: true},
				OpUpdate: {Authenticated: true},
				OpDelete: {},
			},
			ResourceAuditRecord: {
				OpRead: {Project: members()},
			},
			ResourceNotification: {
				OpRead:   {Self: &SelfClause{Column: "user_id"}},
				OpUpdate: {Self: &SelfClause{Column: "user_id"}},
				OpDelete: {Self: &SelfClause{Column: "user_id"}},
			},
			ResourceUserRole: {
				OpRead:   {Self: &SelfClause{Column: "user_id"}},
				OpUpdate: {},
			},
		},
	}
}

// CollaborativePolicy returns collaborative-v1: the scoped-v2 table with every
// project clause widened to any member.
func CollaborativePolicy() *PolicySet {
	base := ScopedPolicy()
	rules := make(map[Resource]map[Operation]Rule, len(base.rules))
	for res, ops := range base.rules {
		widened := make(map[Operation]Rule, len(ops))
		for op, rule := range ops {
			if rule.Project != nil {
				rule.Project = members()
			}
			widened[op] = rule
		}
		rules[res] = widened
	}
	return &PolicySet{Version: PolicyCollaborative, rules: rules}
}
