package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// PaginatedResponse wraps a page of results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// PrincipalDTO describes the resolved caller
type PrincipalDTO struct {
	Kind         string     `json:"kind"`
	UserID       *uuid.UUID `json:"userId,omitempty"`
	Email        string     `json:"email,omitempty"`
	Role         Role       `json:"role,omitempty"`
	PortalClass  string     `json:"portalClass,omitempty"`
	ProjectID    *uuid.UUID `json:"projectId,omitempty"`
	DocumentTabs []string   `json:"documentTabs,omitempty"`
}

// SignupRequest creates the profile of the authenticated caller
type SignupRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	DisplayName string `json:"displayName" validate:"required,max=200"`
	Confirmed   bool   `json:"confirmed"`
}

// SetRoleRequest changes a user's global role
type SetRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=admin moderator user client"`
}

// CreateProjectRequest creates a project owned by the caller
type CreateProjectRequest struct {
	Name             string          `json:"name" validate:"required,max=200"`
	Description      string          `json:"description"`
	Status           ProjectStatus   `json:"status" validate:"omitempty,oneof=planning active completed archived"`
	SupplyVoltage    int             `json:"supplyVoltage" validate:"gte=0"`
	ConnectedLoadKVA decimal.Decimal `json:"connectedLoadKva"`
	ContractValue    decimal.Decimal `json:"contractValue"`
}

// UpdateProjectRequest changes the set fields of a project
type UpdateProjectRequest struct {
	Name          *string          `json:"name" validate:"omitempty,max=200"`
	Description   *string          `json:"description"`
	Status        *ProjectStatus   `json:"status" validate:"omitempty,oneof=planning active completed archived"`
	ContractValue *decimal.Decimal `json:"contractValue"`
}

// AddMemberRequest invites a user into a project
type AddMemberRequest struct {
	UserID   uuid.UUID  `json:"userId" validate:"required"`
	Role     MemberRole `json:"role" validate:"required,oneof=owner editor member"`
	Position Position   `json:"position" validate:"omitempty,oneof=primary secondary admin oversight"`
}

// AssignPositionRequest sets or clears a member's position
type AssignPositionRequest struct {
	Position Position `json:"position" validate:"omitempty,oneof=primary secondary admin oversight"`
}

// CreatePortalTokenRequest issues a portal token
type CreatePortalTokenRequest struct {
	Class         PortalTokenClass `json:"class" validate:"required,oneof=contractor client"`
	Label         string           `json:"label" validate:"max=200"`
	DocumentTabs  []string         `json:"documentTabs" validate:"omitempty,dive,required,max=50"`
	ExpiresInDays int              `json:"expiresInDays" validate:"gte=0,lte=365"`
	AutoRenew     bool             `json:"autoRenew"`
}

// PortalTokenCreatedDTO carries the plaintext secret, returned exactly once
type PortalTokenCreatedDTO struct {
	Token  *PortalToken `json:"token"`
	Secret string       `json:"secret"`
}

// ValidatePortalTokenRequest presents either the secret or the short code
type ValidatePortalTokenRequest struct {
	Token string `json:"token" validate:"required_without=Code"`
	Code  string `json:"code" validate:"required_without=Token"`
}

// PortalValidationDTO is the structured validation result
type PortalValidationDTO struct {
	IsValid      bool       `json:"isValid"`
	ProjectID    *uuid.UUID `json:"projectId,omitempty"`
	Class        string     `json:"class,omitempty"`
	DocumentTabs []string   `json:"documentTabs,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// CreateTenantRequest adds a tenant to the schedule
type CreateTenantRequest struct {
	ShopNumber  string          `json:"shopNumber" validate:"required,max=50"`
	Name        string          `json:"name" validate:"required,max=200"`
	AreaM2      decimal.Decimal `json:"areaM2"`
	BreakerSize string          `json:"breakerSize" validate:"max=50"`
	Status      string          `json:"status" validate:"max=50"`
}

// UpdateTenantRequest changes the set fields of a tenant
type UpdateTenantRequest struct {
	ShopNumber  *string          `json:"shopNumber" validate:"omitempty,max=50"`
	Name        *string          `json:"name" validate:"omitempty,max=200"`
	AreaM2      *decimal.Decimal `json:"areaM2"`
	BreakerSize *string          `json:"breakerSize" validate:"omitempty,max=50"`
	Status      *string          `json:"status" validate:"omitempty,max=50"`
}

// CreateCableScheduleRequest adds a cable schedule
type CreateCableScheduleRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Revision string `json:"revision" validate:"max=20"`
}

// CreateCableEntryRequest adds a cable run
type CreateCableEntryRequest struct {
	CableTag     string          `json:"cableTag" validate:"required,max=100"`
	FromLocation string          `json:"fromLocation" validate:"max=200"`
	ToLocation   string          `json:"toLocation" validate:"max=200"`
	CableType    string          `json:"cableType" validate:"max=100"`
	DesignLength decimal.Decimal `json:"designLength"`
}

// UpdateCableEntryRequest changes the set fields of a cable entry
type UpdateCableEntryRequest struct {
	CableTag            *string          `json:"cableTag" validate:"omitempty,max=100"`
	FromLocation        *string          `json:"fromLocation" validate:"omitempty,max=200"`
	ToLocation          *string          `json:"toLocation" validate:"omitempty,max=200"`
	CableType           *string          `json:"cableType" validate:"omitempty,max=100"`
	DesignLength        *decimal.Decimal `json:"designLength"`
	MeasuredLength      *decimal.Decimal `json:"measuredLength"`
	ContractorInstalled *bool            `json:"contractorInstalled"`
	InstalledAt         *time.Time       `json:"installedAt"`
}

// Fields lists the columns the request updates
func (r *UpdateCableEntryRequest) Fields() []string {
	return setFields(map[string]bool{
		"cable_tag":            r.CableTag != nil,
		"from_location":        r.FromLocation != nil,
		"to_location":          r.ToLocation != nil,
		"cable_type":           r.CableType != nil,
		"design_length":        r.DesignLength != nil,
		"measured_length":      r.MeasuredLength != nil,
		"contractor_installed": r.ContractorInstalled != nil,
		"installed_at":         r.InstalledAt != nil,
	})
}

// CreateFinalAccountRequest adds a final account
type CreateFinalAccountRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Status string `json:"status" validate:"max=50"`
}

// CreateBillRequest adds a bill to a final account
type CreateBillRequest struct {
	BillNumber int    `json:"billNumber" validate:"gte=0"`
	Name       string `json:"name" validate:"required,max=200"`
}

// CreateSectionRequest adds a section to a bill
type CreateSectionRequest struct {
	SectionCode string `json:"sectionCode" validate:"max=50"`
	Name        string `json:"name" validate:"required,max=200"`
}

// CreateItemRequest adds a line item; Total overrides the derived value when non-zero
type CreateItemRequest struct {
	ItemCode        string           `json:"itemCode" validate:"max=50"`
	Description     string           `json:"description" validate:"required"`
	ItemType        ItemType         `json:"itemType" validate:"omitempty,oneof=quantity prime_cost percentage sub_header"`
	Unit            string           `json:"unit" validate:"max=20"`
	Quantity        decimal.Decimal  `json:"quantity"`
	SupplyRate      decimal.Decimal  `json:"supplyRate"`
	InstallRate     decimal.Decimal  `json:"installRate"`
	PrimeCostAmount decimal.Decimal  `json:"primeCostAmount"`
	Percentage      decimal.Decimal  `json:"percentage"`
	ReferenceItemID *uuid.UUID       `json:"referenceItemId"`
	Total           *decimal.Decimal `json:"total"`
}

// UpdateItemRequest changes the set fields of a line item
type UpdateItemRequest struct {
	Description     *string          `json:"description"`
	ItemType        *ItemType        `json:"itemType" validate:"omitempty,oneof=quantity prime_cost percentage sub_header"`
	Unit            *string          `json:"unit" validate:"omitempty,max=20"`
	Quantity        *decimal.Decimal `json:"quantity"`
	SupplyRate      *decimal.Decimal `json:"supplyRate"`
	InstallRate     *decimal.Decimal `json:"installRate"`
	PrimeCostAmount *decimal.Decimal `json:"primeCostAmount"`
	Percentage      *decimal.Decimal `json:"percentage"`
	ReferenceItemID *uuid.UUID       `json:"referenceItemId"`
	Total           *decimal.Decimal `json:"total"`
}

// CreateProcurementItemRequest adds a procurement item
type CreateProcurementItemRequest struct {
	Description          string            `json:"description" validate:"required"`
	Supplier             string            `json:"supplier" validate:"max=200"`
	Status               ProcurementStatus `json:"status" validate:"omitempty,oneof=pending quoted ordered in_transit delivered cancelled"`
	RoadmapItemID        *uuid.UUID        `json:"roadmapItemId"`
	OrderDate            *time.Time        `json:"orderDate"`
	ExpectedDeliveryDate *time.Time        `json:"expectedDeliveryDate"`
}

// UpdateProcurementItemRequest changes the set fields of a procurement item
type UpdateProcurementItemRequest struct {
	Description          *string            `json:"description"`
	Supplier             *string            `json:"supplier" validate:"omitempty,max=200"`
	Status               *ProcurementStatus `json:"status" validate:"omitempty,oneof=pending quoted ordered in_transit delivered cancelled"`
	RoadmapItemID        *uuid.UUID         `json:"roadmapItemId"`
	OrderDate            *time.Time         `json:"orderDate"`
	ExpectedDeliveryDate *time.Time         `json:"expectedDeliveryDate"`
}

// Fields lists the columns the request updates
func (r *UpdateProcurementItemRequest) Fields() []string {
	return setFields(map[string]bool{
		"description":            r.Description != nil,
		"supplier":               r.Supplier != nil,
		"status":                 r.Status != nil,
		"roadmap_item_id":        r.RoadmapItemID != nil,
		"order_date":             r.OrderDate != nil,
		"expected_delivery_date": r.ExpectedDeliveryDate != nil,
	})
}

// CreateDeliveryRequest confirms a delivery
type CreateDeliveryRequest struct {
	DeliveredAt *time.Time      `json:"deliveredAt"`
	ReceivedBy  string          `json:"receivedBy" validate:"max=200"`
	Quantity    decimal.Decimal `json:"quantity"`
	Note        string          `json:"note"`
}

// CreateRoadmapItemRequest adds a roadmap milestone
type CreateRoadmapItemRequest struct {
	Title   string     `json:"title" validate:"required,max=200"`
	DueDate *time.Time `json:"dueDate"`
}

// CreateDocumentRequest files document metadata under a category
type CreateDocumentRequest struct {
	Category    string `json:"category" validate:"required,max=50"`
	Title       string `json:"title" validate:"required,max=200"`
	FileName    string `json:"fileName" validate:"max=255"`
	ContentType string `json:"contentType" validate:"max=100"`
	Size        int64  `json:"size" validate:"gte=0"`
}

// CreateContactRequest adds a directory contact
type CreateContactRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Company    string `json:"company" validate:"max=200"`
	Email      string `json:"email" validate:"omitempty,email,max=255"`
	Phone      string `json:"phone" validate:"max=50"`
	Discipline string `json:"discipline" validate:"max=100"`
}

// UserDTO is a user together with its resolved global role
type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	Confirmed   bool      `json:"confirmed"`
	CreatedAt   string    `json:"createdAt"`
}

// AuditRecordDTO exposes an audit record with its snapshots as raw JSON
type AuditRecordDTO struct {
	ID            uuid.UUID       `json:"id"`
	EntityType    string          `json:"entityType"`
	EntityID      *uuid.UUID      `json:"entityId"`
	ProjectID     *uuid.UUID      `json:"projectId,omitempty"`
	ChangeType    ChangeType      `json:"changeType"`
	OldValues     json.RawMessage `json:"oldValues"`
	NewValues     json.RawMessage `json:"newValues"`
	ChangedFields []string        `json:"changedFields"`
	ChangedBy     *uuid.UUID      `json:"changedBy,omitempty"`
	ActorKind     string          `json:"actorKind"`
	RequestID     string          `json:"requestId,omitempty"`
	ChangedAt     string          `json:"changedAt"`
}

// AuditSummaryDTO counts the audit records of a project by change type
type AuditSummaryDTO struct {
	ProjectID uuid.UUID `json:"projectId"`
	Created   int64     `json:"created"`
	Updated   int64     `json:"updated"`
	Deleted   int64     `json:"deleted"`
	Total     int64     `json:"total"`
}

// NotificationDTO represents a notification in API responses
type NotificationDTO struct {
	ID         uuid.UUID        `json:"id"`
	ProjectID  *uuid.UUID       `json:"projectId,omitempty"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Read       bool             `json:"read"`
	CreatedAt  string           `json:"createdAt"`
	EntityID   *uuid.UUID       `json:"entityId,omitempty"`
	EntityType string           `json:"entityType,omitempty"`
}

// UnreadCountDTO is the number of unread notifications of the caller
type UnreadCountDTO struct {
	Count int64 `json:"count"`
}

// ProcurementHistoryDTO is one procurement status transition
type ProcurementHistoryDTO struct {
	FromStatus *ProcurementStatus `json:"fromStatus"`
	ToStatus   ProcurementStatus  `json:"toStatus"`
	ChangedBy  *uuid.UUID         `json:"changedBy,omitempty"`
	ActorKind  string             `json:"actorKind"`
	ChangedAt  string             `json:"changedAt"`
}

func setFields(flags map[string]bool) []string {
	fields := make([]string, 0, len(flags))
	for name, set := range flags {
		if set {
			fields = append(fields, name)
		}
	}
	return fields
}

// ImportResultDTO summarises a bill of quantities import
type ImportResultDTO struct {
	PayloadID uuid.UUID `json:"payloadId"`
	BillID    uuid.UUID `json:"billId"`
	Sections  int       `json:"sections"`
	Items     int       `json:"items"`
}

// UpdateRoadmapItemRequest changes the set fields of a roadmap milestone
type UpdateRoadmapItemRequest struct {
	Title     *string    `json:"title" validate:"omitempty,max=200"`
	DueDate   *time.Time `json:"dueDate"`
	Completed *bool      `json:"completed"`
}

// UpdateContactRequest changes the set fields of a contact
type UpdateContactRequest struct {
	Name       *string `json:"name" validate:"omitempty,max=200"`
	Company    *string `json:"company" validate:"omitempty,max=200"`
	Email      *string `json:"email" validate:"omitempty,email,max=255"`
	Phone      *string `json:"phone" validate:"omitempty,max=50"`
	Discipline *string `json:"discipline" validate:"omitempty,max=100"`
}

// MeDTO describes the caller and, for users with a profile, the profile
type MeDTO struct {
	Principal PrincipalDTO `json:"principal"`
	User      *UserDTO     `json:"user,omitempty"`
}
