package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tracerx/tracerx/internal/ledger"
	"github.com/tracerx/tracerx/internal/observability"
	"github.com/tracerx/tracerx/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultReconcileInterval = 30 * time.Second
	defaultReconcileLimit    = 100
	defaultPendingStaleAfter = 2 * time.Minute
)

// TransactionResolver resolves the final outcome of a submitted transaction,
// typically through a mirror node.
type TransactionResolver interface {
	TransactionOutcome(ctx context.Context, txID string) (ledger.Outcome, string, error)
}

// Reconciler repairs the two inconsistent states a crash or timeout can
// leave behind: MINTED rows missing only the registry finalization, and
// stale PENDING rows whose ledger outcome was never observed. It retries
// the registry write with the already-known token id and never mints.
type Reconciler struct {
	batches    repository.BatchRepository
	resolver   TransactionResolver
	logger     *zap.Logger
	metrics    *observability.Metrics
	interval   time.Duration
	limit      int
	staleAfter time.Duration
	now        func() time.Time
}

func NewReconciler(
	batches repository.BatchRepository,
	resolver TransactionResolver,
	interval time.Duration,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Reconciler, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("transaction resolver is required")
	}
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		batches:    batches,
		resolver:   resolver,
		logger:     logger,
		metrics:    metrics,
		interval:   interval,
		limit:      defaultReconcileLimit,
		staleAfter: defaultPendingStaleAfter,
		now:        time.Now,
	}, nil
}

func (r *Reconciler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial sweep so crash leftovers do not wait for the first ticker edge.
	if err := r.sweep(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("reconciler initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("reconciler sweep failed", zap.Error(err))
			}
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) error {
	if err := r.repairMinted(ctx); err != nil {
		return err
	}
	return r.resolveStalePending(ctx)
}

func (r *Reconciler) repairMinted(ctx context.Context) error {
	minted, err := r.batches.ListMinted(ctx, r.limit)
	if err != nil {
		return fmt.Errorf("failed to list minted batches: %w", err)
	}

	for i := range minted {
		record := minted[i]
		if err := r.batches.MarkRecorded(ctx, record.BatchID); err != nil {
			r.logger.Error("failed to finalize minted batch",
				zap.String("batchId", record.BatchID),
				zap.Error(err),
			)
			continue
		}

		r.metrics.IncReconcileRepaired()
		r.logger.Info("minted batch finalized by reconciliation",
			zap.String("batchId", record.BatchID),
			zap.Stringp("tokenId", record.TokenID),
		)
	}

	return nil
}

func (r *Reconciler) resolveStalePending(ctx context.Context) error {
	olderThan := r.now().Add(-r.staleAfter)
	pending, err := r.batches.ListStalePending(ctx, olderThan, r.limit)
	if err != nil {
		return fmt.Errorf("failed to list stale pending batches: %w", err)
	}

	for i := range pending {
		record := pending[i]
		logger := r.logger.With(zap.String("batchId", record.BatchID))

		if record.TransactionID == nil || *record.TransactionID == "" {
			// The crash happened before the submit was persisted. The ledger
			// reference is gone; only an operator can resolve this.
			logger.Warn("stale pending batch has no transaction id, leaving for operator review")
			continue
		}

		outcome, tokenID, err := r.resolver.TransactionOutcome(ctx, *record.TransactionID)
		if err != nil {
			logger.Error("failed to resolve transaction outcome", zap.Error(err))
			continue
		}

		r.metrics.IncReconcileResolution(string(outcome))

		switch outcome {
		case ledger.OutcomeSuccess:
			if tokenID == "" {
				logger.Error("transaction succeeded but mirror returned no token id")
				continue
			}
			if err := r.batches.MarkMinted(ctx, record.BatchID, tokenID); err != nil {
				logger.Error("failed to mark resolved batch as minted", zap.Error(err))
				continue
			}
			if err := r.batches.MarkRecorded(ctx, record.BatchID); err != nil {
				logger.Error("failed to finalize resolved batch", zap.Error(err))
				continue
			}
			r.metrics.IncReconcileRepaired()
			logger.Info("indeterminate mint resolved as success",
				zap.String("tokenId", tokenID),
				zap.String("transactionId", *record.TransactionID),
			)
		case ledger.OutcomeFailed:
			if err := r.batches.MarkFailed(ctx, record.BatchID); err != nil {
				logger.Error("failed to mark resolved batch as failed", zap.Error(err))
				continue
			}
			logger.Info("indeterminate mint resolved as failed, batch may be resubmitted")
		case ledger.OutcomeUnknown:
			// Mirror has not seen the transaction yet; keep waiting.
			logger.Debug("transaction outcome still unknown")
		}
	}

	return nil
}

var _ TransactionResolver = (*ledger.MirrorClient)(nil)
