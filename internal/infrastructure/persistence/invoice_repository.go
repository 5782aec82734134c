package persistence

import (
	"context"
	"errors"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements intercompany.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForGroup finds an invoice and its lines within a group
func (r *GormInvoiceRepository) FindByIDForGroup(ctx context.Context, groupID, id uuid.UUID) (*intercompany.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", byPosition).
		Where("group_id = ? AND id = ?", groupID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpenIntercompany returns the one non-void, unsettled intercompany
// invoice for (seller, buyer, period), or nil. Credit notes never match.
func (r *GormInvoiceRepository) FindOpenIntercompany(ctx context.Context, groupID, sellerID, buyerID uuid.UUID, period valueobject.Period) (*intercompany.Invoice, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).
		Preload("Lines", byPosition).
		Where("group_id = ? AND seller_id = ? AND buyer_id = ? AND period = ?", groupID, sellerID, buyerID, period.String()).
		Where("type = ? AND is_credit_note = ?", intercompany.InvoiceTypeIntercompany, false).
		Where("status IN ?", []intercompany.InvoiceStatus{
			intercompany.InvoiceStatusDraft,
			intercompany.InvoiceStatusIssued,
			intercompany.InvoiceStatusPartPaid,
		}).
		Order("created_at ASC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForGroup lists invoices of a group matching the filter, by number
func (r *GormInvoiceRepository) FindAllForGroup(ctx context.Context, groupID uuid.UUID, filter intercompany.InvoiceFilter) ([]intercompany.Invoice, error) {
	query := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Preload("Lines", byPosition).
		Where("group_id = ?", groupID)
	if filter.Period != nil {
		query = query.Where("period = ?", filter.Period.String())
	}
	if filter.CompanyID != nil {
		query = query.Where("(seller_id = ? OR buyer_id = ?)", *filter.CompanyID, *filter.CompanyID)
	}
	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.BuyerID != nil {
		query = query.Where("buyer_id = ?", *filter.BuyerID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.ExcludeVoid {
		query = query.Where("status <> ?", intercompany.InvoiceStatusVoid)
	}
	if filter.RelatedInvoiceID != nil {
		query = query.Where("related_invoice_id = ?", *filter.RelatedInvoiceID)
	}

	var rows []models.InvoiceModel
	if err := query.Order("created_at ASC, number ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]intercompany.Invoice, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// Save writes the invoice header and replaces its lines
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *intercompany.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", model.ID).Delete(&models.InvoiceLineModel{}).Error; err != nil {
			return err
		}
		if len(model.Lines) == 0 {
			return nil
		}
		return tx.Create(&model.Lines).Error
	})
}

var _ intercompany.InvoiceRepository = (*GormInvoiceRepository)(nil)
