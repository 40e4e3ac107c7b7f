package repository

import (
	"time"

	"github.com/tracerx/tracerx/internal/domain"
)

// BatchRecordModel is the persistence model for the drug_batches table.
type BatchRecordModel struct {
	BatchID       string        `gorm:"type:varchar(64);primaryKey"`
	DrugName      string        `gorm:"type:varchar(100);not null"`
	Manufacturer  string        `gorm:"type:varchar(255)"`
	Expiry        string        `gorm:"type:varchar(32)"`
	TokenID       *string       `gorm:"type:varchar(64)"`
	TransactionID *string       `gorm:"type:varchar(128)"`
	Status        domain.Status `gorm:"type:varchar(20);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (BatchRecordModel) TableName() string {
	return "drug_batches"
}

func batchModelFromDomain(r *domain.BatchRecord) *BatchRecordModel {
	if r == nil {
		return nil
	}

	return &BatchRecordModel{
		BatchID:       r.BatchID,
		DrugName:      r.DrugName,
		Manufacturer:  r.Manufacturer,
		Expiry:        r.Expiry,
		TokenID:       r.TokenID,
		TransactionID: r.TransactionID,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchRecordModel) *domain.BatchRecord {
	if m == nil {
		return nil
	}

	return &domain.BatchRecord{
		BatchID:       m.BatchID,
		DrugName:      m.DrugName,
		Manufacturer:  m.Manufacturer,
		Expiry:        m.Expiry,
		TokenID:       m.TokenID,
		TransactionID: m.TransactionID,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
