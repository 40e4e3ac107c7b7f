package queue

import (
	"context"
	"fmt"
	"strings"
)

// AlertQueueName is the durable queue operators consume for conditions that
// need human or reconciler attention.
const AlertQueueName = "tracerx.alerts"

// AlertKind classifies operational alerts.
type AlertKind string

const (
	// AlertPartialFailure means a token was minted on the ledger but the
	// registry write failed. The most dangerous condition: an on-ledger
	// resource with no off-ledger record.
	AlertPartialFailure AlertKind = "PARTIAL_FAILURE"
	// AlertMintIndeterminate means a mint was submitted but no receipt was
	// obtained; the outcome must be resolved before any retry.
	AlertMintIndeterminate AlertKind = "MINT_INDETERMINATE"
)

func (k AlertKind) String() string { return string(k) }

func (k AlertKind) IsValid() bool {
	switch k {
	case AlertPartialFailure, AlertMintIndeterminate:
		return true
	}
	return false
}

// AlertMessage is the broker payload for operational alerts.
type AlertMessage struct {
	Kind          AlertKind `json:"kind"`
	BatchID       string    `json:"batchId"`
	TokenID       string    `json:"tokenId,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Detail        string    `json:"detail,omitempty"`
}

func (m AlertMessage) Validate() error {
	if !m.Kind.IsValid() {
		return fmt.Errorf("invalid alert kind %q", m.Kind)
	}
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	if m.Kind == AlertPartialFailure && strings.TrimSpace(m.TokenID) == "" && strings.TrimSpace(m.TransactionID) == "" {
		return fmt.Errorf("partial failure alert needs a token or transaction id")
	}
	return nil
}

// AlertPublisher publishes operational alerts.
type AlertPublisher interface {
	Publish(ctx context.Context, msg AlertMessage) error
	Close() error
}
