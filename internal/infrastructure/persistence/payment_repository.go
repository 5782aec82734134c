package persistence

import (
	"context"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements intercompany.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByInvoice lists the payments recorded against an invoice, oldest first
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]intercompany.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("payment_date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]intercompany.Payment, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// Save creates or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, p *intercompany.Payment) error {
	return r.db.WithContext(ctx).Save(models.PaymentModelFromDomain(p)).Error
}

// GormWhtCreditNoteRepository implements intercompany.WhtCreditNoteRepository using GORM
type GormWhtCreditNoteRepository struct {
	db *gorm.DB
}

// NewGormWhtCreditNoteRepository creates a new GormWhtCreditNoteRepository
func NewGormWhtCreditNoteRepository(db *gorm.DB) *GormWhtCreditNoteRepository {
	return &GormWhtCreditNoteRepository{db: db}
}

// FindAllForGroup lists WHT credit notes of a group matching the filter
func (r *GormWhtCreditNoteRepository) FindAllForGroup(ctx context.Context, groupID uuid.UUID, filter intercompany.WhtCreditNoteFilter) ([]intercompany.WhtCreditNote, error) {
	query := r.db.WithContext(ctx).Model(&models.WhtCreditNoteModel{}).Where("group_id = ?", groupID)
	if filter.IssuerID != nil {
		query = query.Where("issuer_id = ?", *filter.IssuerID)
	}
	if filter.BeneficiaryID != nil {
		query = query.Where("beneficiary_id = ?", *filter.BeneficiaryID)
	}
	if filter.CompanyID != nil {
		query = query.Where("(issuer_id = ? OR beneficiary_id = ?)", *filter.CompanyID, *filter.CompanyID)
	}
	if filter.Period != nil {
		query = query.Where("period = ?", filter.Period.String())
	}
	if filter.TaxType != nil {
		query = query.Where("tax_type = ?", *filter.TaxType)
	}
	if filter.UnremittedOnly {
		query = query.Where("remittance_date IS NULL")
	}

	var rows []models.WhtCreditNoteModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]intercompany.WhtCreditNote, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// SaveAll upserts a batch of credit notes
func (r *GormWhtCreditNoteRepository) SaveAll(ctx context.Context, notes []intercompany.WhtCreditNote) error {
	if len(notes) == 0 {
		return nil
	}
	rows := make([]*models.WhtCreditNoteModel, 0, len(notes))
	for i := range notes {
		rows = append(rows, models.WhtCreditNoteModelFromDomain(&notes[i]))
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"remittance_date", "receipt_ref"}),
		}).
		Create(&rows).Error
}

var (
	_ intercompany.PaymentRepository       = (*GormPaymentRepository)(nil)
	_ intercompany.WhtCreditNoteRepository = (*GormWhtCreditNoteRepository)(nil)
)
