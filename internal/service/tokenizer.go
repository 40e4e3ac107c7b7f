package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tracerx/tracerx/internal/domain"
	"github.com/tracerx/tracerx/internal/ledger"
	"github.com/tracerx/tracerx/internal/lock"
	"github.com/tracerx/tracerx/internal/observability"
	"github.com/tracerx/tracerx/internal/queue"
	"github.com/tracerx/tracerx/internal/repository"
	"go.uber.org/zap"
)

const defaultLedgerTimeout = 30 * time.Second

// PartialFailureError reports a token confirmed on the ledger whose registry
// write failed. It must never trigger a second mint; reconciliation retries
// the registry write with the already-known token id.
type PartialFailureError struct {
	BatchID       string
	TokenID       string
	TransactionID string
	Cause         error
}

func (e *PartialFailureError) Error() string {
	if e == nil {
		return "<nil>"
	}
	reference := e.TokenID
	if reference == "" {
		reference = e.TransactionID
	}
	return fmt.Sprintf("partial failure: token %s minted for batch %s but registry write failed: %v",
		reference, e.BatchID, e.Cause)
}

func (e *PartialFailureError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// TokenizerService orchestrates the mint-then-record sequence for batch
// registrations: exactly one ledger mutation and one registry record per
// successful call, with per-batch mutual exclusion across the whole flow.
type TokenizerService struct {
	batches       repository.BatchRepository
	gateway       ledger.Gateway
	mintLocks     lock.KeyLock
	alerts        queue.AlertPublisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	ledgerTimeout time.Duration
}

func NewTokenizerService(
	batches repository.BatchRepository,
	gateway ledger.Gateway,
	mintLocks lock.KeyLock,
	alerts queue.AlertPublisher,
	ledgerTimeout time.Duration,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*TokenizerService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("ledger gateway is required")
	}
	if mintLocks == nil {
		return nil, fmt.Errorf("mint lock is required")
	}
	if alerts == nil {
		return nil, fmt.Errorf("alert publisher is required")
	}
	if ledgerTimeout <= 0 {
		ledgerTimeout = defaultLedgerTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TokenizerService{
		batches:       batches,
		gateway:       gateway,
		mintLocks:     mintLocks,
		alerts:        alerts,
		logger:        logger,
		metrics:       metrics,
		ledgerTimeout: ledgerTimeout,
	}, nil
}

// RegisterBatch mints one finite-supply token for the submission and records
// the batch-to-token mapping. Duplicate submissions for a RECORDED batch are
// rejected without touching the ledger.
func (s *TokenizerService) RegisterBatch(ctx context.Context, submission *domain.BatchSubmission) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := prepareSubmission(submission); err != nil {
		return "", err
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("batchId", submission.BatchID))

	lockToken, acquired, err := s.mintLocks.Acquire(ctx, submission.BatchID)
	if err != nil {
		return "", fmt.Errorf("failed to acquire mint lock: %w", err)
	}
	if !acquired {
		return "", fmt.Errorf("%w: registration for batch %q already in flight", domain.ErrConflict, submission.BatchID)
	}
	defer func() {
		// Release on a fresh context so a request timeout cannot strand the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.mintLocks.Release(releaseCtx, submission.BatchID, lockToken); err != nil {
			logger.Warn("failed to release mint lock", zap.Error(err))
		}
	}()

	if err := s.ensurePendingRecord(ctx, submission); err != nil {
		return "", err
	}

	symbol := domain.DeriveSymbol(submission.BatchID)

	mintStart := time.Now()
	txID, err := s.gateway.SubmitTokenCreate(ctx, ledger.CreateTokenParams{
		Name:      submission.DrugName,
		Symbol:    symbol,
		MaxSupply: domain.MaxTokenSupply,
	})
	if err != nil {
		return "", s.handleMintFailure(ctx, logger, submission.BatchID, "", err)
	}

	logger = logger.With(zap.String("transactionId", txID))
	if err := s.batches.SetTransactionID(ctx, submission.BatchID, txID); err != nil {
		// The mint is already in flight; reconciliation loses its ledger
		// reference but the record stays PENDING and auditable.
		logger.Error("failed to persist transaction id", zap.Error(err))
	}

	receiptCtx, cancel := context.WithTimeout(ctx, s.ledgerTimeout)
	defer cancel()

	receipt, err := s.gateway.WaitReceipt(receiptCtx, txID)
	if err != nil {
		return "", s.handleMintFailure(ctx, logger, submission.BatchID, txID, err)
	}
	s.metrics.ObserveMintDuration(time.Since(mintStart))

	if err := s.batches.MarkMinted(ctx, submission.BatchID, receipt.TokenID); err != nil {
		return "", s.handlePartialFailure(ctx, logger, submission.BatchID, receipt.TokenID, txID, err)
	}

	if err := s.batches.MarkRecorded(ctx, submission.BatchID); err != nil {
		return "", s.handlePartialFailure(ctx, logger, submission.BatchID, receipt.TokenID, txID, err)
	}

	s.metrics.IncTokenMinted()
	logger.Info("batch registered",
		zap.String("tokenId", receipt.TokenID),
		zap.String("symbol", symbol),
	)

	return receipt.TokenID, nil
}

// ensurePendingRecord claims the PENDING slot for this batch. The insert's
// unique constraint is the compare-and-set that makes concurrent submissions
// safe even without the mint lock.
func (s *TokenizerService) ensurePendingRecord(ctx context.Context, submission *domain.BatchSubmission) error {
	existing, err := s.batches.GetByBatchID(ctx, submission.BatchID)
	if errors.Is(err, domain.ErrNotFound) {
		record := &domain.BatchRecord{
			BatchID:      submission.BatchID,
			DrugName:     submission.DrugName,
			Manufacturer: submission.Manufacturer,
			Expiry:       submission.Expiry,
			Status:       domain.StatusPending,
		}
		if err := s.batches.Create(ctx, record); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("%w: registration for batch %q already in flight", domain.ErrConflict, submission.BatchID)
			}
			return fmt.Errorf("failed to create pending record: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check existing record: %w", err)
	}

	switch existing.Status {
	case domain.StatusRecorded:
		return fmt.Errorf("%w: batch %q is already registered", domain.ErrValidation, submission.BatchID)
	case domain.StatusPending:
		return fmt.Errorf("%w: registration for batch %q already in flight", domain.ErrConflict, submission.BatchID)
	case domain.StatusMinted:
		// A token exists; only the registry write is missing. Re-minting is
		// forbidden, reconciliation finishes the job.
		return fmt.Errorf("%w: batch %q has a minted token awaiting reconciliation", domain.ErrConflict, submission.BatchID)
	case domain.StatusFailed:
		if err := s.batches.ReopenFailed(ctx, submission.BatchID); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("%w: registration for batch %q already in flight", domain.ErrConflict, submission.BatchID)
			}
			return fmt.Errorf("failed to reopen failed record: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unexpected record status %q for batch %q", existing.Status, submission.BatchID)
	}
}

// handleMintFailure distinguishes rejection (safe to mark FAILED and allow a
// fresh submission) from an indeterminate outcome (record stays PENDING and
// reconciliation must resolve it before any retry).
func (s *TokenizerService) handleMintFailure(ctx context.Context, logger *zap.Logger, batchID string, txID string, mintErr error) error {
	if ledger.IsIndeterminate(mintErr) {
		s.metrics.IncMintIndeterminate()
		logger.Error("mint outcome indeterminate, batch left pending", zap.Error(mintErr))

		s.publishAlert(ctx, logger, queue.AlertMessage{
			Kind:          queue.AlertMintIndeterminate,
			BatchID:       batchID,
			TransactionID: txID,
			Detail:        mintErr.Error(),
		})

		return fmt.Errorf("mint outcome indeterminate for batch %q: %w", batchID, mintErr)
	}

	s.metrics.IncMintFailed(ledgerFailureReason(mintErr))
	logger.Warn("ledger rejected mint", zap.Error(mintErr))

	if err := s.batches.MarkFailed(ctx, batchID); err != nil {
		logger.Error("failed to mark batch as failed after ledger rejection", zap.Error(err))
	}

	return fmt.Errorf("mint rejected for batch %q: %w", batchID, mintErr)
}

func (s *TokenizerService) handlePartialFailure(ctx context.Context, logger *zap.Logger, batchID string, tokenID string, txID string, cause error) error {
	s.metrics.IncPartialFailure()
	logger.Error("partial failure: token minted but registry write failed",
		zap.String("tokenId", tokenID),
		zap.Error(cause),
	)

	s.publishAlert(ctx, logger, queue.AlertMessage{
		Kind:          queue.AlertPartialFailure,
		BatchID:       batchID,
		TokenID:       tokenID,
		TransactionID: txID,
		Detail:        cause.Error(),
	})

	return &PartialFailureError{
		BatchID:       batchID,
		TokenID:       tokenID,
		TransactionID: txID,
		Cause:         cause,
	}
}

func (s *TokenizerService) publishAlert(ctx context.Context, logger *zap.Logger, msg queue.AlertMessage) {
	if correlationID, ok := observability.CorrelationIDFromContext(ctx); ok {
		msg.CorrelationID = correlationID
	}

	if err := s.alerts.Publish(ctx, msg); err != nil {
		logger.Error("failed to publish alert",
			zap.String("kind", msg.Kind.String()),
			zap.Error(err),
		)
	}
}

func prepareSubmission(submission *domain.BatchSubmission) error {
	if submission == nil {
		return fmt.Errorf("%w: submission is required", domain.ErrValidation)
	}

	submission.BatchID = strings.TrimSpace(submission.BatchID)
	submission.DrugName = strings.TrimSpace(submission.DrugName)
	submission.Manufacturer = strings.TrimSpace(submission.Manufacturer)
	submission.Expiry = strings.TrimSpace(submission.Expiry)

	return submission.Validate()
}

func ledgerFailureReason(err error) string {
	var ledgerErr *ledger.LedgerError
	if errors.As(err, &ledgerErr) && strings.TrimSpace(ledgerErr.Status) != "" {
		return ledgerErr.Status
	}
	return "unknown"
}
