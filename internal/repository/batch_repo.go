package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tracerx/tracerx/internal/domain"
	"gorm.io/gorm"
)

// BatchRepository is the Batch Registry port. Status moves are guarded
// single-statement updates so a record can never hold RECORDED without the
// token id that justifies it.
type BatchRepository interface {
	Create(ctx context.Context, record *domain.BatchRecord) error
	GetByBatchID(ctx context.Context, batchID string) (*domain.BatchRecord, error)
	SetTransactionID(ctx context.Context, batchID string, txID string) error
	MarkMinted(ctx context.Context, batchID string, tokenID string) error
	MarkRecorded(ctx context.Context, batchID string) error
	MarkFailed(ctx context.Context, batchID string) error
	ReopenFailed(ctx context.Context, batchID string) error
	ListMinted(ctx context.Context, limit int) ([]domain.BatchRecord, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.BatchRecord, error)
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, record *domain.BatchRecord) error {
	model := batchModelFromDomain(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolationError(err) {
			return domain.ErrConflict
		}
		return err
	}
	if record != nil {
		*record = *batchModelToDomain(model)
	}
	return nil
}

func (r *GormBatchRepo) GetByBatchID(ctx context.Context, batchID string) (*domain.BatchRecord, error) {
	var model BatchRecordModel
	err := r.db.WithContext(ctx).First(&model, "batch_id = ?", batchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) SetTransactionID(ctx context.Context, batchID string, txID string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchRecordModel{}).
		Where("batch_id = ? AND status = ?", batchID, domain.StatusPending).
		Update("transaction_id", txID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// MarkMinted records the ledger-confirmed token id. Guarded on PENDING so
// two racing confirmations cannot both claim the transition.
func (r *GormBatchRepo) MarkMinted(ctx context.Context, batchID string, tokenID string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchRecordModel{}).
		Where("batch_id = ? AND status = ?", batchID, domain.StatusPending).
		Updates(map[string]any{
			"status":   domain.StatusMinted,
			"token_id": tokenID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// MarkRecorded finalizes a registration. The token_id guard keeps the
// invariant that a RECORDED row always references a minted token.
func (r *GormBatchRepo) MarkRecorded(ctx context.Context, batchID string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchRecordModel{}).
		Where("batch_id = ? AND status = ? AND token_id IS NOT NULL", batchID, domain.StatusMinted).
		Update("status", domain.StatusRecorded)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// MarkFailed is only legal from PENDING. A confirmed mint is never discarded.
func (r *GormBatchRepo) MarkFailed(ctx context.Context, batchID string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchRecordModel{}).
		Where("batch_id = ? AND status = ?", batchID, domain.StatusPending).
		Update("status", domain.StatusFailed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// ReopenFailed resets a FAILED row so a fresh submission may mint again.
// The compare-and-set on FAILED means only one of several concurrent
// re-submissions wins the PENDING slot.
func (r *GormBatchRepo) ReopenFailed(ctx context.Context, batchID string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchRecordModel{}).
		Where("batch_id = ? AND status = ?", batchID, domain.StatusFailed).
		Updates(map[string]any{
			"status":         domain.StatusPending,
			"token_id":       nil,
			"transaction_id": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormBatchRepo) ListMinted(ctx context.Context, limit int) ([]domain.BatchRecord, error) {
	var models []BatchRecordModel
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusMinted).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.BatchRecord, 0, len(models))
	for i := range models {
		records = append(records, *batchModelToDomain(&models[i]))
	}
	return records, nil
}

func (r *GormBatchRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.BatchRecord, error) {
	var models []BatchRecordModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", domain.StatusPending, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.BatchRecord, 0, len(models))
	for i := range models {
		records = append(records, *batchModelToDomain(&models[i]))
	}
	return records, nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
