package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a batch registration.
type Status string

const (
	// StatusPending means a mint was attempted and its outcome is unknown or in flight.
	StatusPending Status = "PENDING"
	// StatusMinted means the ledger confirmed the token but the registry
	// record is not yet final.
	StatusMinted Status = "MINTED"
	// StatusRecorded means the batch is fully registered and verifiable.
	StatusRecorded Status = "RECORDED"
	// StatusFailed means the mint itself failed or was rejected by the ledger.
	StatusFailed Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusMinted, StatusRecorded, StatusFailed:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Token creation policy. Every batch token is finite, zero-decimal and
// starts with an empty supply held by the operator treasury.
const (
	MaxTokenSupply    int64 = 1_000_000
	TokenDecimals     uint  = 0
	TokenSymbolLength       = 10
)

// Field limits for submissions.
const (
	MaxBatchIDLength      = 64
	MaxDrugNameLength     = 100
	MaxManufacturerLength = 255
	MaxExpiryLength       = 32
)

// DeriveSymbol derives the ledger token symbol from a batch identifier by
// taking its first TokenSymbolLength characters. Pure, so retried
// submissions always derive the same symbol.
func DeriveSymbol(batchID string) string {
	runes := []rune(batchID)
	if len(runes) <= TokenSymbolLength {
		return batchID
	}
	return string(runes[:TokenSymbolLength])
}

// BatchSubmission is the transient per-request input for registering a batch.
type BatchSubmission struct {
	DrugName     string
	BatchID      string
	Manufacturer string
	Expiry       string
}

func (s *BatchSubmission) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: submission is required", ErrValidation)
	}
	if s.BatchID == "" {
		return fmt.Errorf("%w: batchId is required", ErrValidation)
	}
	if s.DrugName == "" {
		return fmt.Errorf("%w: drugName is required", ErrValidation)
	}
	if len([]rune(s.BatchID)) > MaxBatchIDLength {
		return fmt.Errorf("%w: batchId exceeds %d characters", ErrValidation, MaxBatchIDLength)
	}
	if len([]rune(s.DrugName)) > MaxDrugNameLength {
		return fmt.Errorf("%w: drugName exceeds %d characters", ErrValidation, MaxDrugNameLength)
	}
	if len([]rune(s.Manufacturer)) > MaxManufacturerLength {
		return fmt.Errorf("%w: manufacturer exceeds %d characters", ErrValidation, MaxManufacturerLength)
	}
	if len([]rune(s.Expiry)) > MaxExpiryLength {
		return fmt.Errorf("%w: expiry exceeds %d characters", ErrValidation, MaxExpiryLength)
	}
	return nil
}

// BatchRecord is the durable fact of a batch registration. Records are
// permanent regulatory data and are never deleted by normal operation.
type BatchRecord struct {
	BatchID      string  `gorm:"type:varchar(64);primaryKey"`
	DrugName     string  `gorm:"type:varchar(100);not null"`
	Manufacturer string  `gorm:"type:varchar(255)"`
	Expiry       string  `gorm:"type:varchar(32)"`
	TokenID      *string `gorm:"type:varchar(64)"`
	// TransactionID is persisted before the receipt wait so an
	// indeterminate outcome can later be resolved against the ledger.
	TransactionID *string `gorm:"type:varchar(128)"`
	Status        Status  `gorm:"type:varchar(20);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Verifiable reports whether the record may be served to verification callers.
func (r *BatchRecord) Verifiable() bool {
	return r != nil && r.Status == StatusRecorded && r.TokenID != nil && *r.TokenID != ""
}
