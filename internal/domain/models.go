package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseModel holds the id and timestamps shared by every mutable entity.
// Ids are generated in Go so the same models work on postgres and sqlite.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate assigns an id when the caller did not
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// GetID returns the entity id
func (m *BaseModel) GetID() uuid.UUID {
	return m.ID
}

// Role is the global role of an authenticated user
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
	RoleClient    Role = "client"
)

// IsValid reports whether r is a known global role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser, RoleClient:
		return true
	}
	return false
}

// Authorization policy versions selectable through configuration
const (
	// PolicyCollaborative lets any project member perform any project-scoped operation
	PolicyCollaborative = "collaborative-v1"
	// PolicyScoped narrows writes by member role and engineering position
	PolicyScoped = "scoped-v2"
)

// PolicyVersions lists the registered authorization policy versions
func PolicyVersions() []string {
	return []string{PolicyCollaborative, PolicyScoped}
}

// MemberRole is the role a user holds within one project
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleEditor MemberRole = "editor"
	MemberRoleMember MemberRole = "member"
)

// Rank orders member roles; unknown roles rank below member.
func (r MemberRole) Rank() int {
	switch r {
	case MemberRoleOwner:
		return 3
	case MemberRoleEditor:
		return 2
	case MemberRoleMember:
		return 1
	}
	return 0
}

// IsValid reports whether r is a known member role
func (r MemberRole) IsValid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r grants at least the rights of min
func (r MemberRole) AtLeast(min MemberRole) bool {
	return r.Rank() >= min.Rank()
}

// Position is an optional engineering position held within a project
type Position string

const (
	PositionNone      Position = ""
	PositionPrimary   Position = "primary"
	PositionSecondary Position = "secondary"
	PositionAdmin     Position = "admin"
	PositionOversight Position = "oversight"
)

// IsValid reports whether p is a known position (including none)
func (p Position) IsValid() bool {
	switch p {
	case PositionNone, PositionPrimary, PositionSecondary, PositionAdmin, PositionOversight:
		return true
	}
	return false
}

// Exclusive reports whether at most one member per project may hold p
func (p Position) Exclusive() bool {
	return p == PositionPrimary || p == PositionSecondary
}

// User is an account holder
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	DisplayName string    `gorm:"type:varchar(200);not null;column:display_name" json:"displayName"`
	Confirmed   bool      `gorm:"not null;default:false" json:"confirmed"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null" json:"updatedAt"`
}

// UserRole stores the single global role of a user. It is kept apart from users so
// role lookups never read the table they guard.
type UserRole struct {
	UserID    uuid.UUID  `gorm:"type:uuid;primaryKey;column:user_id" json:"userId"`
	Role      Role       `gorm:"type:varchar(20);not null" json:"role"`
	GrantedBy *uuid.UUID `gorm:"type:uuid;column:granted_by" json:"grantedBy,omitempty"`
	UpdatedAt time.Time  `gorm:"not null" json:"updatedAt"`
}

// AdminSeed holds exactly one row once the first admin has been seeded
type AdminSeed struct {
	ID       int       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;column:user_id" json:"userId"`
	SeededAt time.Time `gorm:"not null;column:seeded_at" json:"seededAt"`
}

// ProjectStatus represents the lifecycle state of a project
type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

// Project is the root scoping entity
type Project struct {
	BaseModel
	Name                  string          `gorm:"type:varchar(200);not null" json:"name"`
	Description           string          `gorm:"type:text" json:"description,omitempty"`
	Status                ProjectStatus   `gorm:"type:varchar(20);not null;default:'planning';index" json:"status"`
	CreatedBy             uuid.UUID       `gorm:"type:uuid;not null;index;column:created_by" json:"createdBy"`
	SupplyVoltage         int             `gorm:"column:supply_voltage" json:"supplyVoltage,omitempty"`
	ConnectedLoadKVA      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;column:connected_load_kva" json:"connectedLoadKva"`
	ContractValue         decimal.Decimal `gorm:"type:numeric(16,2);not null;default:0;column:contract_value" json:"contractValue"`
	TenantScheduleVersion int             `gorm:"not null;default:0;column:tenant_schedule_version" json:"tenantScheduleVersion"`
}

// ProjectMember links a user to a project. ExclusivePosition mirrors Position only
// for primary/secondary so the unique index enforces one holder per project.
type ProjectMember struct {
	BaseModel
	ProjectID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_project_members_project_user;uniqueIndex:idx_project_members_exclusive_position;column:project_id" json:"projectId"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_project_members_project_user;index;column:user_id" json:"userId"`
	Role              MemberRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	Position          Position   `gorm:"type:varchar(20);not null;default:''" json:"position,omitempty"`
	ExclusivePosition *Position  `gorm:"type:varchar(20);uniqueIndex:idx_project_members_exclusive_position;column:exclusive_position" json:"-"`
	InvitedBy         *uuid.UUID `gorm:"type:uuid;column:invited_by" json:"invitedBy,omitempty"`
}

// SetPosition updates Position and keeps ExclusivePosition in sync
func (m *ProjectMember) SetPosition(p Position) {
	m.Position = p
	if p.Exclusive() {
		exclusive := p
		m.ExclusivePosition = &exclusive
		return
	}
	m.ExclusivePosition = nil
}

// PortalTokenClass distinguishes contractor and client portals
type PortalTokenClass string

const (
	PortalTokenContractor PortalTokenClass = "contractor"
	PortalTokenClient     PortalTokenClass = "client"
)

// IsValid reports whether c is a known token class
func (c PortalTokenClass) IsValid() bool {
	return c == PortalTokenContractor || c == PortalTokenClient
}

// PortalToken grants time-boxed, project-scoped access without an account.
// Only the SHA-256 hash of the secret is stored.
type PortalToken struct {
	BaseModel
	ProjectID      uuid.UUID        `gorm:"type:uuid;not null;index;column:project_id" json:"projectId"`
	Class          PortalTokenClass `gorm:"type:varchar(20);not null" json:"class"`
	TokenHash      string           `gorm:"type:varchar(64);not null;uniqueIndex;column:token_hash" json:"-"`
	ShortCode      string           `gorm:"type:varchar(8);not null;uniqueIndex;column:short_code" json:"shortCode"`
	Label          string           `gorm:"type:varchar(200)" json:"label,omitempty"`
	DocumentTabs   []string         `gorm:"type:jsonb;serializer:json;column:document_tabs" json:"documentTabs,omitempty"`
	Active         bool             `gorm:"not null;default:true" json:"active"`
	ExpiresAt      time.Time        `gorm:"not null;index;column:expires_at" json:"expiresAt"`
	AutoRenew      bool             `gorm:"not null;default:false;column:auto_renew" json:"autoRenew"`
	RenewalCount   int              `gorm:"not null;default:0;column:renewal_count" json:"renewalCount"`
	LastRenewedAt  *time.Time       `gorm:"column:last_renewed_at" json:"lastRenewedAt,omitempty"`
	AccessCount    int64            `gorm:"not null;default:0;column:access_count" json:"accessCount"`
	LastAccessedAt *time.Time       `gorm:"column:last_accessed_at" json:"lastAccessedAt,omitempty"`
	CreatedBy      uuid.UUID        `gorm:"type:uuid;not null;column:created_by" json:"createdBy"`
}

// IsValidAt reports whether the token grants access at t
func (t *PortalToken) IsValidAt(now time.Time) bool {
	return t.Active && t.ExpiresAt.After(now)
}

// PortalAccessLog records one successful portal validation. It has no principal
// because portal callers are anonymous.
type PortalAccessLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TokenID    uuid.UUID `gorm:"type:uuid;not null;index;column:token_id" json:"tokenId"`
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;index;column:project_id" json:"projectId"`
	AccessedAt time.Time `gorm:"not null;column:accessed_at" json:"accessedAt"`
	IPAddress  string    `gorm:"type:varchar(64);column:ip_address" json:"ipAddress,omitempty"`
	UserAgent  string    `gorm:"type:text;column:user_agent" json:"userAgent,omitempty"`
}

// BeforeCreate assigns an id when the caller did not
func (l *PortalAccessLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Tenant is a shop or unit on a project's tenant schedule
type Tenant struct {
	BaseModel
	ProjectID   uuid.UUID       `gorm:"type:uuid;not null;index;column:project_id" json:"projectId"`
	ShopNumber  string          `gorm:"type:varchar(50);not null;column:shop_number" json:"shopNumber"`
	Name        string          `gorm:"type:varchar(200);not null" json:"name"`
	AreaM2      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0;column:area_m2" json:"areaM2"`
	BreakerSize string          `gorm:"type:varchar(50);column:breaker_size" json:"breakerSize,omitempty"`
	Status      string          `gorm:"type:varchar(50);not null;default:'pending'" json:"status"`
}

// CableSchedule groups cable entries of a project
type CableSchedule struct {
	BaseModel
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index;column:project_id" json:"projectId"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	Revision  string    `gorm:"type:varchar(20)" json:"revision,omitempty"`
}

// CableEntry is one cable run on a schedule
type CableEntry struct {
	BaseModel
	ScheduleID          uuid.UUID           `gorm:"type:uuid;not null;index;column:schedule_id" json:"scheduleId"`
	CableTag            string              `gorm:"type:varchar(100);not null;column:cable_tag" json:"cableTag"`
	FromLocation        string              `gorm:"type:varchar(200);column:from_location" json:"fromLocation,omitempty"`
	ToLocation          string              `gorm:"type:varchar(200);column:to_location" json:"toLocation,omitempty"`
	CableType           string              `gorm:"type:varchar(100);column:cable_type" json:"cableType,omitempty"`
	DesignLength        decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0;column:design_length" json:"designLength"`
	MeasuredLength      decimal.NullDecimal `gorm:"type:numeric(12,2);column:measured_length" json:"measuredLength"`
	ContractorInstalled bool                `gorm:"not null;default:false;column:contractor_installed" json:"contractorInstalled"`
	InstalledAt         *time.Time          `gorm:"column:installed_at" json:"installedAt,omitempty"`
}

// FinalAccount is the closing account of a project
type FinalAccount struct {
	BaseModel
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index;column:project_id" json:"projectId"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	Status    string    `gorm:"type:varchar(50);not null;default:'draft'" json:"status"`
}

// FinalAccountBill is a bill within a final account
type FinalAccountBill struct {
	BaseModel
	FinalAccountID uuid.UUID `gorm:"type:uuid;not null;index;column:final_account_id" json:"finalAccountId"`
	BillNumber     int       `gorm:"not null;column:bill_number" json:"billNumber"`
	Name           string    `gorm:"type:varchar(200);not null" json:"name"`
}

// FinalAccountSection is a section within a bill
type FinalAccountSection struct {
	BaseModel
	BillID      uuid.UUID `gorm:"type:uuid;not null;index;column:bill_id" json:"billId"`
	SectionCode string    `gorm:"type:varchar(50);column:section_code" json:"sectionCode,omitempty"`
	Name        string    `gorm:"type:varchar(200);not null" json:"name"`
}

// ItemType selects how a line item total is derived
type ItemType string

const (
	ItemTypeQuantity   ItemType = "quantity"
	ItemTypePrimeCost  ItemType = "prime_cost"
	ItemTypePercentage ItemType = "percentage"
	ItemTypeSubHeader  ItemType = "sub_header"
)

// IsValid reports whether t is a known item type
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeQuantity, ItemTypePrimeCost, ItemTypePercentage, ItemTypeSubHeader:
		return true
	}
	return false
}

// FinalAccountItem is a BOQ line item. Total is derived unless supplied explicitly.
type FinalAccountItem struct {
	BaseModel
	SectionID       uuid.UUID       `gorm:"type:uuid;not null;index;column:section_id" json:"sectionId"`
	ItemCode        string          `gorm:"type:varchar(50);column:item_code" json:"itemCode,omitempty"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	ItemType        ItemType        `gorm:"type:varchar(20);not null;default:'quantity';column:item_type" json:"itemType"`
	Unit            string          `gorm:"type:varchar(20)" json:"unit,omitempty"`
	Quantity        decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0" json:"quantity"`
	SupplyRate      decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0;column:supply_rate" json:"supplyRate"`
	InstallRate     decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0;column:install_rate" json:"installRate"`
	PrimeCostAmount decimal.Decimal `gorm:"type:numeric(16,2);not null;default:0;column:prime_cost_amount" json:"primeCostAmount"`
	Percentage      decimal.Decimal `gorm:"type:numeric(8,4);not null;default:0" json:"percentage"`
	ReferenceItemID *uuid.UUID      `gorm:"type:uuid;column:reference_item_id" json:"referenceItemId,omitempty"`
	Total           decimal.Decimal `gorm:"type:numeric(16,2);not null;default:0" json:"total"`
	// TotalOverridden marks a total supplied explicitly; it is never derived again
	TotalOverridden bool            `gorm:"not null;default:false;column:total_overridden" json:"totalOverridden"`
}

// ProcurementStatus is the lifecycle state of a procurement item
type ProcurementStatus string

const (
	ProcurementPending   ProcurementStatus = "pending"
	ProcurementQuoted    ProcurementStatus = "quoted"
	ProcurementOrdered   ProcurementStatus = "ordered"
	ProcurementInTransit ProcurementStatus = "in_transit"
	ProcurementDelivered ProcurementStatus = "delivered"
	ProcurementCancelled ProcurementStatus = "cancelled"
)

// IsValid reports whether s is a known procurement status
func (s ProcurementStatus) IsValid() bool {
	switch s {
	case ProcurementPending, ProcurementQuoted, ProcurementOrdered, ProcurementInTransit, ProcurementDelivered, ProcurementCancelled:
		return true
	}
	return false
}

// ProcurementItem is an item ordered for a project
type ProcurementItem struct {
	BaseModel
	ProjectID            uuid.UUID         `gorm:"type:uuid;not null;index;column:project_id" json:"projectId"`
	RoadmapItemID        *uuid.UUID        `gorm:"type:uuid;index;column:roadmap_item_id" json:"roadmapItemId,omitempty"`
	Description          string            `gorm:"type:text;not null" json:"description"`
	Supplier             string            `gorm:"type:varchar(200)" json:"supplier,omitempty"`
	Status               ProcurementStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	OrderDate            *time.Time        `gorm:"column:order_date" json:"orderDate,omitempty"`
	ExpectedDeliveryDate *time.Time        `gorm:"column:expected_delivery_date" json:"expectedDeliveryDate,omitempty"`
}

// ProcurementDelivery confirms a (partial) delivery of a procurement item
type ProcurementDelivery struct {
	BaseModel
	ProcurementItemID  uuid.UUID       `gorm:"type:uuid;not null;index;column:procurement_item_id" json:"procurementItemId"`
	DeliveredAt        time.Time       `gorm:"not null;column:delivered_at" json:"deliveredAt"`
	ReceivedBy         string          `gorm:"type:varchar(200);column:received_by" json:"receivedBy,omitempty"`
	Quantity           decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0" json:"quantity"`
	Note               string          `gorm:"type:text" json:"note,omitempty"`
	SubmittedViaPortal bool            `gorm:"not null;default:false;column:submitted_via_portal" json:"submittedViaPortal"`
}

// ProcurementStatusHistory is an append-only log of status transitions
type ProcurementStatusHistory struct {
	ID                uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ProcurementItemID *uuid.UUID         `gorm:"type:uuid;index;column:procurement_item_id" json:"procurementItemId,omitempty"`
	ProjectID         uuid.UUID          `gorm:"type:uuid;not null;index;column:project_id" json:"projectId"`
	FromStatus        *ProcurementStatus `gorm:"type:varchar(20);column:from_status" json:"fromStatus,omitempty"`
	ToStatus          ProcurementStatus  `gorm:"type:varchar(20);not null;column:to_status" json:"toStatus"`
	ChangedBy         *uuid.UUID         `gorm:"type:uuid;column:changed_by" json:"changedBy,omitempty"`
	ActorKind         string             `gorm:"type:varchar(20);not null;column:actor_kind" json:"actorKind"`
	ChangedAt         time.Time          `gorm:"not null;column:changed_at" json:"changedAt"`
}

// TableName overrides the default table name to match the migration
func (ProcurementStatusHistory) TableName() string {
	return "procurement_status_history"
}

// BeforeCreate assigns an id when the caller did not
func (h *ProcurementStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// RoadmapItem is a milestone on the project roadmap
type RoadmapItem struct {
	BaseModel
	ProjectID   uuid.UUID  `gorm:"type:uuid;not null;index;column:project_id" json:"projectId"`
	Title       string     `gorm:"type:varchar(200);not null" json:"title"`
	DueDate     *time.Time `gorm:"column:due_date" json:"dueDate,omitempty"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

// ProjectDocument is document metadata filed under a category (portal document tab)
type ProjectDocument struct {
	BaseModel
	ProjectID   uuid.UUID `gorm:"type:uuid;not null;index;column:project_id" json:"projectId"`
	Category    string    `gorm:"type:varchar(50);not null;index" json:"category"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title"`
	FileName    string    `gorm:"type:varchar(255);column:file_name" json:"fileName,omitempty"`
	ContentType string    `gorm:"type:varchar(100);column:content_type" json:"contentType,omitempty"`
	Size        int64     `gorm:"not null;default:0" json:"size"`
}

// Contact is an entry in the global contact directory
type Contact struct {
	BaseModel
	Name       string `gorm:"type:varchar(200);not null" json:"name"`
	Company    string `gorm:"type:varchar(200)" json:"company,omitempty"`
	Email      string `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone      string `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Discipline string `gorm:"type:varchar(100)" json:"discipline,omitempty"`
}

// ChangeType is the transition recorded by an audit record
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// AuditRecord is an immutable history row. EntityID is NULL for deletes so the
// record outlives its subject.
type AuditRecord struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EntityType    string     `gorm:"type:varchar(50);not null;index:idx_audit_records_entity;column:entity_type" json:"entityType"`
	EntityID      *uuid.UUID `gorm:"type:uuid;index:idx_audit_records_entity;column:entity_id" json:"entityId"`
	ProjectID     *uuid.UUID `gorm:"type:uuid;index;column:project_id" json:"projectId,omitempty"`
	ChangeType    ChangeType `gorm:"type:varchar(20);not null;column:change_type" json:"changeType"`
	OldValues     *string    `gorm:"type:jsonb;column:old_values" json:"oldValues"`
	NewValues     *string    `gorm:"type:jsonb;column:new_values" json:"newValues"`
	ChangedFields []string   `gorm:"type:jsonb;serializer:json;column:changed_fields" json:"changedFields"`
	ChangedBy     *uuid.UUID `gorm:"type:uuid;column:changed_by" json:"changedBy,omitempty"`
	ActorKind     string     `gorm:"type:varchar(20);not null;column:actor_kind" json:"actorKind"`
	IPAddress     string     `gorm:"type:varchar(64);column:ip_address" json:"ipAddress,omitempty"`
	UserAgent     string     `gorm:"type:text;column:user_agent" json:"userAgent,omitempty"`
	RequestID     string     `gorm:"type:varchar(100);column:request_id" json:"requestId,omitempty"`
	ChangedAt     time.Time  `gorm:"not null;index;column:changed_at" json:"changedAt"`
}

// BeforeCreate assigns an id when the caller did not
func (a *AuditRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTenantScheduleChanged NotificationType = "tenant_schedule_changed"
	NotificationProcurementDelivered  NotificationType = "procurement_delivered"
	NotificationMemberAdded           NotificationType = "member_added"
)

// Notification represents a user notification
type Notification struct {
	BaseModel
	UserID     uuid.UUID        `gorm:"type:uuid;not null;index;column:user_id" json:"userId"`
	ProjectID  *uuid.UUID       `gorm:"type:uuid;index;column:project_id" json:"projectId,omitempty"`
	Type       NotificationType `gorm:"type:varchar(50);not null" json:"type"`
	Title      string           `gorm:"type:varchar(200);not null" json:"title"`
	Message    string           `gorm:"type:varchar(500);not null" json:"message"`
	Read       bool             `gorm:"column:read;not null;default:false;index" json:"read"`
	ReadAt     *time.Time       `gorm:"column:read_at" json:"readAt,omitempty"`
	EntityID   *uuid.UUID       `gorm:"type:uuid;column:entity_id" json:"entityId,omitempty"`
	EntityType string           `gorm:"type:varchar(50);column:entity_type" json:"entityType,omitempty"`
}

// ImportPayload stores a decoded document envelope for re-processing
type ImportPayload struct {
	BaseModel
	ProjectID     uuid.UUID   `gorm:"type:uuid;not null;index;column:project_id" json:"projectId"`
	Kind          PayloadKind `gorm:"type:varchar(50);not null" json:"kind"`
	SchemaVersion int         `gorm:"not null;column:schema_version" json:"schemaVersion"`
	Data          string      `gorm:"type:jsonb;not null" json:"data"`
	CreatedBy     *uuid.UUID  `gorm:"type:uuid;column:created_by" json:"createdBy,omitempty"`
}

// AuditExport records one completed audit export. The latest row's (Until, UntilID)
// is the watermark of the next export.
type AuditExport struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Until       time.Time  `gorm:"not null;index" json:"until"`
	UntilID     *uuid.UUID `gorm:"type:uuid;column:until_id" json:"untilId,omitempty"`
	RecordCount int        `gorm:"not null;column:record_count" json:"recordCount"`
	StorageKey  string     `gorm:"type:varchar(255);not null;column:storage_key" json:"storageKey"`
	ExportedAt  time.Time  `gorm:"not null;column:exported_at" json:"exportedAt"`
}

// BeforeCreate assigns an id when the caller did not
func (e *AuditExport) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
