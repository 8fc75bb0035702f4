package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const entityImportPayload = "import_payload"

var hundred = decimal.NewFromInt(100)

// DeriveItemTotal computes the total of a line item. A non-zero explicit total
// is kept verbatim, except on sub headers which are always zero. referenceTotal
// is the total of the sibling a percentage item refers to, nil when missing.
func DeriveItemTotal(item *domain.FinalAccountItem, explicit *decimal.Decimal, referenceTotal *decimal.Decimal) decimal.Decimal {
	if item.ItemType == domain.ItemTypeSubHeader {
		return decimal.Zero
	}
	if explicit != nil && !explicit.IsZero() {
		return *explicit
	}

	switch item.ItemType {
	case domain.ItemTypePrimeCost:
		return item.PrimeCostAmount
	case domain.ItemTypePercentage:
		if referenceTotal == nil {
			return decimal.Zero
		}
		return referenceTotal.Mul(item.Percentage).Div(hundred)
	default:
		return item.Quantity.Mul(item.SupplyRate.Add(item.InstallRate))
	}
}

// totalOverridden reports whether explicit replaces the derived total of item
func totalOverridden(item *domain.FinalAccountItem, explicit *decimal.Decimal) bool {
	return item.ItemType != domain.ItemTypeSubHeader && explicit != nil && !explicit.IsZero()
}

// FinalAccountService manages final accounts and their bill of quantities
type FinalAccountService struct {
	writer   *Writer
	accounts scopedOps[domain.FinalAccount]
	bills    scopedOps[domain.FinalAccountBill]
	sections scopedOps[domain.FinalAccountSection]
	items    scopedOps[domain.FinalAccountItem]
	logger   *zap.Logger
}

// NewFinalAccountService creates a new FinalAccountService instance
func NewFinalAccountService(writer *Writer, authorizer *access.Authorizer, logger *zap.Logger) *FinalAccountService {
	db := writer.DB()
	return &FinalAccountService{
		writer:   writer,
		accounts: newScopedOps(writer, authorizer, repository.NewScopedRepository[domain.FinalAccount](db, access.ResourceFinalAccount), logger),
		bills:    newScopedOps(writer, authorizer, repository.NewScopedRepository[domain.FinalAccountBill](db, access.ResourceFinalAccountBill), logger),
		sections: newScopedOps(writer, authorizer, repository.NewScopedRepository[domain.FinalAccountSection](db, access.ResourceFinalAccountSection), logger),
		items:    newScopedOps(writer, authorizer, repository.NewScopedRepository[domain.FinalAccountItem](db, access.ResourceFinalAccountItem), logger),
		logger:   logger,
	}
}

// ListAccounts returns the final accounts of a project
func (s *FinalAccountService) ListAccounts(ctx context.Context, projectID uuid.UUID) ([]domain.FinalAccount, error) {
	return s.accounts.list(ctx, "created_at ASC", "project_id = ?", projectID)
}

// CreateAccount adds a final account to a project
func (s *FinalAccountService) CreateAccount(ctx context.Context, projectID uuid.UUID, req *domain.CreateFinalAccountRequest) (*domain.FinalAccount, error) {
	status := req.Status
	if status == "" {
		status = "draft"
	}
	account := &domain.FinalAccount{
		ProjectID: projectID,
		Name:      strings.TrimSpace(req.Name),
		Status:    status,
	}
	return s.accounts.create(ctx, projectID, account, Pipeline[domain.FinalAccount]{})
}

// ListBills returns the bills of a final account
func (s *FinalAccountService) ListBills(ctx context.Context, finalAccountID uuid.UUID) ([]domain.FinalAccountBill, error) {
	return s.bills.list(ctx, "bill_number ASC", "final_account_id = ?", finalAccountID)
}

// CreateBill adds a bill to a final account
func (s *FinalAccountService) CreateBill(ctx context.Context, finalAccountID uuid.UUID, req *domain.CreateBillRequest) (*domain.FinalAccountBill, error) {
	projectID, found, err := s.accounts.resolveProject(ctx, finalAccountID)
	if err != nil || !found {
		return nil, err
	}
	bill := &domain.FinalAccountBill{
		FinalAccountID: finalAccountID,
		BillNumber:     req.BillNumber,
		Name:           strings.TrimSpace(req.Name),
	}
	return s.bills.create(ctx, projectID, bill, Pipeline[domain.FinalAccountBill]{})
}

// ListSections returns the sections of a bill
func (s *FinalAccountService) ListSections(ctx context.Context, billID uuid.UUID) ([]domain.FinalAccountSection, error) {
	return s.sections.list(ctx, "section_code ASC", "bill_id = ?", billID)
}

// CreateSection adds a section to a bill
func (s *FinalAccountService) CreateSection(ctx context.Context, billID uuid.UUID, req *domain.CreateSectionRequest) (*domain.FinalAccountSection, error) {
	projectID, found, err := s.bills.resolveProject(ctx, billID)
	if err != nil || !found {
		return nil, err
	}
	section := &domain.FinalAccountSection{
		BillID:      billID,
		SectionCode: req.SectionCode,
		Name:        strings.TrimSpace(req.Name),
	}
	return s.sections.create(ctx, projectID, section, Pipeline[domain.FinalAccountSection]{})
}

// ListItems returns the line items of a section
func (s *FinalAccountService) ListItems(ctx context.Context, sectionID uuid.UUID) ([]domain.FinalAccountItem, error) {
	return s.items.list(ctx, "item_code ASC, created_at ASC", "section_id = ?", sectionID)
}

// GetItem returns a line item the caller may read
func (s *FinalAccountService) GetItem(ctx context.Context, id uuid.UUID) (*domain.FinalAccountItem, error) {
	return s.items.get(ctx, id)
}

// CreateItem adds a line item to a section with its total derived
func (s *FinalAccountService) CreateItem(ctx context.Context, sectionID uuid.UUID, req *domain.CreateItemRequest) (*domain.FinalAccountItem, error) {
	projectID, found, err := s.sections.resolveProject(ctx, sectionID)
	if err != nil || !found {
		return nil, err
	}

	itemType := req.ItemType
	if itemType == "" {
		itemType = domain.ItemTypeQuantity
	}
	if !itemType.IsValid() {
		return nil, fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, itemType)
	}

	item := &domain.FinalAccountItem{
		SectionID:       sectionID,
		ItemCode:        req.ItemCode,
		Description:     req.Description,
		ItemType:        itemType,
		Unit:            req.Unit,
		Quantity:        req.Quantity,
		SupplyRate:      req.SupplyRate,
		InstallRate:     req.InstallRate,
		PrimeCostAmount: req.PrimeCostAmount,
		Percentage:      req.Percentage,
		ReferenceItemID: req.ReferenceItemID,
	}

	return s.items.create(ctx, projectID, item, Pipeline[domain.FinalAccountItem]{
		Derive: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.FinalAccountItem]) error {
			ref, err := referenceTotal(ctx, tx, m.After)
			if err != nil {
				return err
			}
			m.After.Total = DeriveItemTotal(m.After, req.Total, ref)
			m.After.TotalOverridden = totalOverridden(m.After, req.Total)
			return nil
		},
	})
}

// UpdateItem changes the set fields of a line item. The total is derived again
// when a pricing input changes or a total is supplied.
func (s *FinalAccountService) UpdateItem(ctx context.Context, id uuid.UUID, req *domain.UpdateItemRequest) (*domain.FinalAccountItem, error) {
	if req.ItemType != nil && !req.ItemType.IsValid() {
		return nil, fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, *req.ItemType)
	}

	updates := map[string]interface{}{}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Unit != nil {
		updates["unit"] = *req.Unit
	}
	repriced := req.ItemType != nil || req.Quantity != nil || req.SupplyRate != nil ||
		req.InstallRate != nil || req.PrimeCostAmount != nil || req.Percentage != nil ||
		req.ReferenceItemID != nil || req.Total != nil
	if !repriced && len(updates) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	if repriced {
		// recomputed in Derive once the current row is loaded
		updates["total"] = decimal.Zero
	}

	return s.items.update(ctx, id, updates, Pipeline[domain.FinalAccountItem]{
		Derive: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.FinalAccountItem]) error {
			if !repriced {
				return nil
			}
			merged := *m.Before
			applyItemUpdate(&merged, req, updates)
			ref, err := referenceTotal(ctx, tx, &merged)
			if err != nil {
				return err
			}
			updates["total"] = DeriveItemTotal(&merged, req.Total, ref)
			updates["total_overridden"] = totalOverridden(&merged, req.Total)
			return nil
		},
		Propagate: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.FinalAccountItem]) error {
			if !repriced || m.After.Total.Equal(m.Before.Total) {
				return nil
			}
			dependents, err := percentageDependents(ctx, tx, m.After.ID)
			if err != nil {
				return err
			}
			total := m.After.Total
			return s.repriceDependents(ctx, tx, m, dependents, &total)
		},
	})
}

// DeleteItem removes a line item. Percentage items referring to it lose the
// reference and their derived totals drop to zero; overridden totals are kept.
func (s *FinalAccountService) DeleteItem(ctx context.Context, id uuid.UUID) (bool, error) {
	var dependents []domain.FinalAccountItem
	return s.items.remove(ctx, id, Pipeline[domain.FinalAccountItem]{
		// collected before the delete, which clears reference_item_id on postgres
		Derive: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.FinalAccountItem]) error {
			var err error
			dependents, err = percentageDependents(ctx, tx, id)
			return err
		},
		Propagate: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.FinalAccountItem]) error {
			return s.repriceDependents(ctx, tx, m, dependents, nil)
		},
	})
}

// percentageDependents loads the percentage items of the same section that refer to id
func percentageDependents(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]domain.FinalAccountItem, error) {
	var dependents []domain.FinalAccountItem
	err := tx.WithContext(ctx).
		Where("reference_item_id = ? AND item_type = ?", id, domain.ItemTypePercentage).
		Where("section_id IN (?)", tx.Model(&domain.FinalAccountItem{}).Select("section_id").Where("id = ?", id)).
		Find(&dependents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load dependent items: %w", err)
	}
	return dependents, nil
}

// repriceDependents derives the totals of dependents again from refTotal,
// nil when the referenced item is gone. Each changed item gets its own audit record.
func (s *FinalAccountService) repriceDependents(ctx context.Context, tx *gorm.DB, m *Mutation[domain.FinalAccountItem], dependents []domain.FinalAccountItem, refTotal *decimal.Decimal) error {
	for i := range dependents {
		before := dependents[i]
		after := before
		updates := map[string]interface{}{}
		if refTotal == nil {
			after.ReferenceItemID = nil
			updates["reference_item_id"] = nil
		}
		if !before.TotalOverridden {
			after.Total = DeriveItemTotal(&after, nil, refTotal)
			updates["total"] = after.Total
		}
		if refTotal != nil && after.Total.Equal(before.Total) {
			continue
		}

		if err := tx.WithContext(ctx).Model(&domain.FinalAccountItem{}).
			Where("id = ?", before.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to reprice item %s: %w", before.ID, err)
		}
		s.writer.auditSideEffect(ctx, tx, AuditEntry{
			EntityType: string(access.ResourceFinalAccountItem),
			EntityID:   before.ID,
			ProjectID:  m.ProjectID,
			ChangeType: domain.ChangeUpdated,
			OldValues:  &before,
			NewValues:  &after,
			Principal:  m.Principal,
			Meta:       m.Meta,
		})
	}
	return nil
}

// Import creates a bill with its sections and items from a BOQ envelope in one
// transaction. Explicit totals in the document are preserved. Returns nil when
// the caller may not write to the final account.
func (s *FinalAccountService) Import(ctx context.Context, finalAccountID uuid.UUID, env domain.PayloadEnvelope) (*domain.ImportResultDTO, error) {
	payload, err := domain.DecodePayload(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	boq, ok := payload.(domain.BOQImportV1)
	if !ok {
		return nil, fmt.Errorf("%w: %w: expected %s, got %s", ErrInvalidInput, domain.ErrUnsupportedPayload, domain.PayloadBOQImport, payload.PayloadKind())
	}
	if strings.TrimSpace(boq.BillName) == "" {
		return nil, fmt.Errorf("%w: bill name is required", ErrInvalidInput)
	}

	projectID, found, err := s.accounts.resolveProject(ctx, finalAccountID)
	if err != nil || !found {
		return nil, err
	}

	p := auth.PrincipalOrAnonymous(ctx)
	for _, res := range []access.Resource{access.ResourceFinalAccountBill, access.ResourceFinalAccountSection, access.ResourceFinalAccountItem} {
		if !s.accounts.authz.Authorize(ctx, p, access.Request{Resource: res, Operation: access.OpCreate, ProjectID: projectID}) {
			return nil, nil
		}
	}

	plan, err := planImport(finalAccountID, boq)
	if err != nil {
		return nil, err
	}

	record := &domain.ImportPayload{
		ProjectID:     projectID,
		Kind:          env.Kind,
		SchemaVersion: env.SchemaVersion,
		Data:          string(env.Data),
		CreatedBy:     p.ActorID(),
	}

	pipeline := Pipeline[domain.ImportPayload]{
		Persist: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.ImportPayload]) (int64, error) {
			db := tx.WithContext(ctx)
			if err := db.Create(m.After).Error; err != nil {
				return 0, err
			}
			if err := db.Create(plan.bill).Error; err != nil {
				return 0, err
			}
			if len(plan.sections) > 0 {
				if err := db.Create(plan.sections).Error; err != nil {
					return 0, err
				}
			}
			if len(plan.items) > 0 {
				if err := db.Create(plan.items).Error; err != nil {
					return 0, err
				}
			}
			return 1, nil
		},
		Audit: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.ImportPayload]) error {
			entries := []AuditEntry{
				s.createdEntry(m, entityImportPayload, m.After.ID, m.After),
				s.createdEntry(m, string(access.ResourceFinalAccountBill), plan.bill.ID, plan.bill),
			}
			for _, section := range plan.sections {
				entries = append(entries, s.createdEntry(m, string(access.ResourceFinalAccountSection), section.ID, section))
			}
			for _, item := range plan.items {
				entries = append(entries, s.createdEntry(m, string(access.ResourceFinalAccountItem), item.ID, item))
			}
			for _, entry := range entries {
				if _, err := s.writer.audit.Record(ctx, tx, entry); err != nil {
					return err
				}
			}
			return nil
		},
	}

	m := &Mutation[domain.ImportPayload]{
		Principal:  p,
		ChangeType: domain.ChangeCreated,
		EntityType: entityImportPayload,
		ProjectID:  projectRef(projectID),
		After:      record,
	}
	persisted, err := Run(ctx, s.writer, pipeline, m)
	if err != nil || !persisted {
		return nil, err
	}

	s.logger.Info("bill of quantities imported",
		zap.String("final_account_id", finalAccountID.String()),
		zap.String("bill_id", plan.bill.ID.String()),
		zap.Int("sections", len(plan.sections)),
		zap.Int("items", len(plan.items)))

	return &domain.ImportResultDTO{
		PayloadID: record.ID,
		BillID:    plan.bill.ID,
		Sections:  len(plan.sections),
		Items:     len(plan.items),
	}, nil
}

func (s *FinalAccountService) createdEntry(m *Mutation[domain.ImportPayload], entityType string, id uuid.UUID, values interface{}) AuditEntry {
	return AuditEntry{
		EntityType: entityType,
		EntityID:   id,
		ProjectID:  m.ProjectID,
		ChangeType: domain.ChangeCreated,
		NewValues:  values,
		Principal:  m.Principal,
		Meta:       m.Meta,
	}
}

type importPlan struct {
	bill     *domain.FinalAccountBill
	sections []*domain.FinalAccountSection
	items    []*domain.FinalAccountItem
}

// planImport assigns ids and totals up front so percentage items can refer to
// any sibling in their section, regardless of order.
func planImport(finalAccountID uuid.UUID, boq domain.BOQImportV1) (*importPlan, error) {
	plan := &importPlan{
		bill: &domain.FinalAccountBill{
			FinalAccountID: finalAccountID,
			BillNumber:     boq.BillNumber,
			Name:           strings.TrimSpace(boq.BillName),
		},
	}
	plan.bill.ID = uuid.New()

	for _, sec := range boq.Sections {
		section := &domain.FinalAccountSection{
			BillID:      plan.bill.ID,
			SectionCode: sec.Code,
			Name:        strings.TrimSpace(sec.Name),
		}
		section.ID = uuid.New()
		if section.Name == "" {
			section.Name = sec.Code
		}
		plan.sections = append(plan.sections, section)

		byCode := make(map[string]*domain.FinalAccountItem, len(sec.Items))
		planned := make([]*domain.FinalAccountItem, 0, len(sec.Items))
		for _, in := range sec.Items {
			itemType := in.ItemType
			if itemType == "" {
				itemType = domain.ItemTypeQuantity
			}
			if !itemType.IsValid() {
				return nil, fmt.Errorf("%w: item %s has unknown type %q", ErrInvalidInput, in.Code, in.ItemType)
			}
			item := &domain.FinalAccountItem{
				SectionID:       section.ID,
				ItemCode:        in.Code,
				Description:     in.Description,
				ItemType:        itemType,
				Unit:            in.Unit,
				Quantity:        in.Quantity,
				SupplyRate:      in.SupplyRate,
				InstallRate:     in.InstallRate,
				PrimeCostAmount: in.PrimeCostAmount,
				Percentage:      in.Percentage,
			}
			item.ID = uuid.New()
			if in.Code != "" {
				byCode[in.Code] = item
			}
			planned = append(planned, item)
		}

		// non-percentage totals first, percentages read them
		for i, in := range sec.Items {
			if planned[i].ItemType != domain.ItemTypePercentage {
				planned[i].Total = DeriveItemTotal(planned[i], in.Total, nil)
				planned[i].TotalOverridden = totalOverridden(planned[i], in.Total)
			}
		}
		for i, in := range sec.Items {
			item := planned[i]
			if item.ItemType != domain.ItemTypePercentage {
				continue
			}
			var ref *decimal.Decimal
			if target, ok := byCode[in.ReferenceCode]; ok && target != item {
				refID := target.ID
				item.ReferenceItemID = &refID
				total := target.Total
				ref = &total
			}
			item.Total = DeriveItemTotal(item, in.Total, ref)
			item.TotalOverridden = totalOverridden(item, in.Total)
		}
		plan.items = append(plan.items, planned...)
	}
	return plan, nil
}

// referenceTotal loads the total of the sibling a percentage item refers to
func referenceTotal(ctx context.Context, tx *gorm.DB, item *domain.FinalAccountItem) (*decimal.Decimal, error) {
	if item.ItemType != domain.ItemTypePercentage || item.ReferenceItemID == nil {
		return nil, nil
	}
	var ref domain.FinalAccountItem
	err := tx.WithContext(ctx).
		Select("id", "total").
		Where("id = ? AND section_id = ?", *item.ReferenceItemID, item.SectionID).
		First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load referenced item: %w", err)
	}
	return &ref.Total, nil
}

func applyItemUpdate(item *domain.FinalAccountItem, req *domain.UpdateItemRequest, updates map[string]interface{}) {
	if req.ItemType != nil {
		item.ItemType = *req.ItemType
		updates["item_type"] = *req.ItemType
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
		updates["quantity"] = *req.Quantity
	}
	if req.SupplyRate != nil {
		item.SupplyRate = *req.SupplyRate
		updates["supply_rate"] = *req.SupplyRate
	}
	if req.InstallRate != nil {
		item.InstallRate = *req.InstallRate
		updates["install_rate"] = *req.InstallRate
	}
	if req.PrimeCostAmount != nil {
		item.PrimeCostAmount = *req.PrimeCostAmount
		updates["prime_cost_amount"] = *req.PrimeCostAmount
	}
	if req.Percentage != nil {
		item.Percentage = *req.Percentage
		updates["percentage"] = *req.Percentage
	}
	if req.ReferenceItemID != nil {
		ref := *req.ReferenceItemID
		item.ReferenceItemID = &ref
		updates["reference_item_id"] = ref
	}
}
