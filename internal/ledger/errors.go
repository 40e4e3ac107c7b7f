package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LedgerError classifies ledger call failures. Indeterminate errors mean the
// transaction may still have completed on the ledger; callers must leave the
// batch PENDING and resolve it through reconciliation, never by re-minting.
type LedgerError struct {
	Status        string
	Indeterminate bool
	Cause         error
}

func (e *LedgerError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, "ledger error")

	if status := strings.TrimSpace(e.Status); status != "" {
		parts = append(parts, fmt.Sprintf("status=%s", status))
	}
	if e.Indeterminate {
		parts = append(parts, "outcome indeterminate")
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *LedgerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsIndeterminate reports whether an error leaves the mint outcome unknown.
// Context expiry counts: the transaction may have reached the network before
// the deadline fired.
func IsIndeterminate(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr.Indeterminate
	}

	return false
}
