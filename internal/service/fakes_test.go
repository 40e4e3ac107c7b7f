package service

import (
	"context"
	"time"

	"github.com/tracerx/tracerx/internal/domain"
	"github.com/tracerx/tracerx/internal/ledger"
	"github.com/tracerx/tracerx/internal/queue"
)

type fakeBatchRepo struct {
	createFn           func(ctx context.Context, record *domain.BatchRecord) error
	getByBatchIDFn     func(ctx context.Context, batchID string) (*domain.BatchRecord, error)
	setTransactionIDFn func(ctx context.Context, batchID string, txID string) error
	markMintedFn       func(ctx context.Context, batchID string, tokenID string) error
	markRecordedFn     func(ctx context.Context, batchID string) error
	markFailedFn       func(ctx context.Context, batchID string) error
	reopenFailedFn     func(ctx context.Context, batchID string) error
	listMintedFn       func(ctx context.Context, limit int) ([]domain.BatchRecord, error)
	listStalePendingFn func(ctx context.Context, olderThan time.Time, limit int) ([]domain.BatchRecord, error)
}

func (f *fakeBatchRepo) Create(ctx context.Context, record *domain.BatchRecord) error {
	if f.createFn == nil {
		return nil
	}
	return f.createFn(ctx, record)
}

func (f *fakeBatchRepo) GetByBatchID(ctx context.Context, batchID string) (*domain.BatchRecord, error) {
	if f.getByBatchIDFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.getByBatchIDFn(ctx, batchID)
}

func (f *fakeBatchRepo) SetTransactionID(ctx context.Context, batchID string, txID string) error {
	if f.setTransactionIDFn == nil {
		return nil
	}
	return f.setTransactionIDFn(ctx, batchID, txID)
}

func (f *fakeBatchRepo) MarkMinted(ctx context.Context, batchID string, tokenID string) error {
	if f.markMintedFn == nil {
		return nil
	}
	return f.markMintedFn(ctx, batchID, tokenID)
}

func (f *fakeBatchRepo) MarkRecorded(ctx context.Context, batchID string) error {
	if f.markRecordedFn == nil {
		return nil
	}
	return f.markRecordedFn(ctx, batchID)
}

func (f *fakeBatchRepo) MarkFailed(ctx context.Context, batchID string) error {
	if f.markFailedFn == nil {
		return nil
	}
	return f.markFailedFn(ctx, batchID)
}

func (f *fakeBatchRepo) ReopenFailed(ctx context.Context, batchID string) error {
	if f.reopenFailedFn == nil {
		return nil
	}
	return f.reopenFailedFn(ctx, batchID)
}

func (f *fakeBatchRepo) ListMinted(ctx context.Context, limit int) ([]domain.BatchRecord, error) {
	if f.listMintedFn == nil {
		return nil, nil
	}
	return f.listMintedFn(ctx, limit)
}

func (f *fakeBatchRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.BatchRecord, error) {
	if f.listStalePendingFn == nil {
		return nil, nil
	}
	return f.listStalePendingFn(ctx, olderThan, limit)
}

type fakeGateway struct {
	submitFn      func(ctx context.Context, params ledger.CreateTokenParams) (string, error)
	waitReceiptFn func(ctx context.Context, txID string) (*ledger.Receipt, error)

	submitCalls  int
	receiptCalls int
}

func (f *fakeGateway) SubmitTokenCreate(ctx context.Context, params ledger.CreateTokenParams) (string, error) {
	f.submitCalls++
	if f.submitFn == nil {
		return "0.0.5005@1700000000.000000001", nil
	}
	return f.submitFn(ctx, params)
}

func (f *fakeGateway) WaitReceipt(ctx context.Context, txID string) (*ledger.Receipt, error) {
	f.receiptCalls++
	if f.waitReceiptFn == nil {
		return &ledger.Receipt{TokenID: "0.0.1001", TransactionID: txID}, nil
	}
	return f.waitReceiptFn(ctx, txID)
}

type fakeKeyLock struct {
	acquireFn func(ctx context.Context, key string) (string, bool, error)
	releaseFn func(ctx context.Context, key string, token string) error

	releases int
}

func (f *fakeKeyLock) Acquire(ctx context.Context, key string) (string, bool, error) {
	if f.acquireFn == nil {
		return "lock-token", true, nil
	}
	return f.acquireFn(ctx, key)
}

func (f *fakeKeyLock) Release(ctx context.Context, key string, token string) error {
	f.releases++
	if f.releaseFn == nil {
		return nil
	}
	return f.releaseFn(ctx, key, token)
}

type fakeAlertPublisher struct {
	publishFn func(ctx context.Context, msg queue.AlertMessage) error

	published []queue.AlertMessage
}

func (f *fakeAlertPublisher) Publish(ctx context.Context, msg queue.AlertMessage) error {
	f.published = append(f.published, msg)
	if f.publishFn == nil {
		return nil
	}
	return f.publishFn(ctx, msg)
}

func (f *fakeAlertPublisher) Close() error { return nil }

type fakeResolver struct {
	outcomeFn func(ctx context.Context, txID string) (ledger.Outcome, string, error)
}

func (f *fakeResolver) TransactionOutcome(ctx context.Context, txID string) (ledger.Outcome, string, error) {
	if f.outcomeFn == nil {
		return ledger.OutcomeUnknown, "", nil
	}
	return f.outcomeFn(ctx, txID)
}
