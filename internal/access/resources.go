package access

// Resource names a protected entity type
type Resource string

const (
	ResourceProject             Resource = "project"
	ResourceProjectMember       Resource = "project_member"
	ResourcePortalToken         Resource = "portal_token"
	ResourceTenant              Resource = "tenant"
	ResourceCableSchedule       Resource = "cable_schedule"
	ResourceCableEntry          Resource = "cable_entry"
	ResourceFinalAccount        Resource = "final_account"
	ResourceFinalAccountBill    Resource = "final_account_bill"
	ResourceFinalAccountSection Resource = "final_account_section"
	ResourceFinalAccountItem    Resource = "final_account_item"
	ResourceProcurementItem     Resource = "procurement_item"
	ResourceProcurementDelivery Resource = "procurement_delivery"
	ResourceRoadmapItem         Resource = "roadmap_item"
	ResourceDocument            Resource = "document"
	ResourceContact             Resource = "contact"
	ResourceAuditRecord         Resource = "audit_record"
	ResourceNotification        Resource = "notification"
	ResourceUserRole            Resource = "user_role"
)

// Operation is one of the four row operations
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Operations lists every operation in a stable order
var Operations = []Operation{OpRead, OpCreate, OpUpdate, OpDelete}

// ParentHop is one step up the ownership chain: Column on the current table
// references the id of Table.
type ParentHop struct {
	Column string
	Table  string
}

// Binding describes how rows of a resource trace back to a project.
// ProjectColumn lives on the last table of the chain (or on Table itself when
// Parents is empty). An empty ProjectColumn marks a resource with no project.
type Binding struct {
	Table          string
	Parents        []ParentHop
	ProjectColumn  string
	CategoryColumn string
}

// Scoped reports whether rows of the resource belong to a project
func (b Binding) Scoped() bool {
	return b.ProjectColumn != ""
}

var bindings = map[Resource]Binding{
	ResourceProject:       {Table: "projects", ProjectColumn: "id"},
	ResourceProjectMember: {Table: "project_members", ProjectColumn: "project_id"},
	ResourcePortalToken:   {Table: "portal_tokens", ProjectColumn: "project_id"},
	ResourceTenant:        {Table: "tenants", ProjectColumn: "project_id"},
	ResourceCableSchedule: {Table: "cable_schedules", ProjectColumn: "project_id"},
	ResourceCableEntry: {
		Table:         "cable_entries",
		Parents:       []ParentHop{{Column: "schedule_id", Table: "cable_schedules"}},
		ProjectColumn: "project_id",
	},
	ResourceFinalAccount: {Table: "final_accounts", ProjectColumn: "project_id"},
	ResourceFinalAccountBill: {
		Table:         "final_account_bills",
		Parents:       []ParentHop{{Column: "final_account_id", Table: "final_accounts"}},
		ProjectColumn: "project_id",
	},
	ResourceFinalAccountSection: {
		Table: "final_account_sections",
		Parents: []ParentHop{
			{Column: "bill_id", Table: "final_account_bills"},
			{Column: "final_account_id", Table: "final_accounts"},
		},
		ProjectColumn: "project_id",
	},
	ResourceFinalAccountItem: {
		Table: "final_account_items",
		Parents: []ParentHop{
			{Column: "section_id", Table: "final_account_sections"},
			{Column: "bill_id", Table: "final_account_bills"},
			{Column: "final_account_id", Table: "final_accounts"},
		},
		ProjectColumn: "project_id",
	},
	ResourceProcurementItem: {Table: "procurement_items", ProjectColumn: "project_id"},
	ResourceProcurementDelivery: {
		Table:         "procurement_deliveries",
		Parents:       []ParentHop{{Column: "procurement_item_id", Table: "procurement_items"}},
		ProjectColumn: "project_id",
	},
	ResourceRoadmapItem:  {Table: "roadmap_items", ProjectColumn: "project_id"},
	ResourceDocument:     {Table: "project_documents", ProjectColumn: "project_id", CategoryColumn: "category"},
	ResourceContact:      {Table: "contacts"},
	ResourceAuditRecord:  {Table: "audit_records", ProjectColumn: "project_id"},
	ResourceNotification: {Table: "notifications"},
	ResourceUserRole:     {Table: "user_roles"},
}

// BindingFor returns the table binding of a resource
func BindingFor(r Resource) (Binding, bool) {
	b, ok := bindings[r]
	return b, ok
}

// Resources lists every bound resource
func Resources() []Resource {
	out := make([]Resource, 0, len(bindings))
	for r := range bindings {
		out = append(out, r)
	}
	return out
}
