package models

import (
	"time"

	"github.com/erp/icledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VatReturnModel is the persistence model for a VatReturn.
type VatReturnModel struct {
	ID         uuid.UUID           `gorm:"type:uuid;primary_key"`
	GroupID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	CompanyID  uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_vat_return_company_period,priority:1"`
	Period     string              `gorm:"type:varchar(7);not null;uniqueIndex:idx_vat_return_company_period,priority:2"`
	OutputVat  decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	InputVat   decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	NetVat     decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Status     tax.VatReturnStatus `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	FiledAt    *time.Time
	PaymentRef string    `gorm:"type:varchar(100)"`
	ArchiveKey string    `gorm:"type:varchar(500)"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (VatReturnModel) TableName() string {
	return "vat_returns"
}

// ToDomain converts the persistence model to a domain VatReturn.
func (m *VatReturnModel) ToDomain() *tax.VatReturn {
	return &tax.VatReturn{
		ID:         m.ID,
		GroupID:    m.GroupID,
		CompanyID:  m.CompanyID,
		Period:     parsePeriod(m.Period),
		OutputVat:  m.OutputVat,
		InputVat:   m.InputVat,
		NetVat:     m.NetVat,
		Status:     m.Status,
		FiledAt:    m.FiledAt,
		PaymentRef: m.PaymentRef,
		ArchiveKey: m.ArchiveKey,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// VatReturnModelFromDomain creates a new persistence model from a domain VatReturn.
func VatReturnModelFromDomain(r *tax.VatReturn) *VatReturnModel {
	return &VatReturnModel{
		ID:         r.ID,
		GroupID:    r.GroupID,
		CompanyID:  r.CompanyID,
		Period:     r.Period.String(),
		OutputVat:  r.OutputVat,
		InputVat:   r.InputVat,
		NetVat:     r.NetVat,
		Status:     r.Status,
		FiledAt:    r.FiledAt,
		PaymentRef: r.PaymentRef,
		ArchiveKey: r.ArchiveKey,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
