package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/tracerx/tracerx/internal/domain"
	"github.com/tracerx/tracerx/internal/repository"
)

// VerifierService serves verification lookups. It reads only the Batch
// Registry and never touches the ledger: trust is anchored at RECORDED time.
type VerifierService struct {
	batches repository.BatchRepository
}

func NewVerifierService(batches repository.BatchRepository) (*VerifierService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	return &VerifierService{batches: batches}, nil
}

// VerifyBatch returns the full record for a RECORDED batch. A batch with no
// record yields ErrNotFound; a batch that exists but is not yet RECORDED
// yields the record together with ErrNotRecorded so callers can distinguish
// "unknown batch" from "registration in progress".
func (s *VerifierService) VerifyBatch(ctx context.Context, batchID string) (*domain.BatchRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	trimmed := strings.TrimSpace(batchID)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: batchId is required", domain.ErrValidation)
	}

	record, err := s.batches.GetByBatchID(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	if !record.Verifiable() {
		return record, fmt.Errorf("%w: batch %q has status %s", domain.ErrNotRecorded, trimmed, record.Status)
	}

	return record, nil
}
