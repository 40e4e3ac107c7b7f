package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsIndeterminate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: true},
		{name: "indeterminate ledger error", err: &LedgerError{Status: "TIMEOUT", Indeterminate: true}, want: true},
		{name: "rejected ledger error", err: &LedgerError{Status: "INVALID_TOKEN_SYMBOL"}, want: false},
		{name: "wrapped indeterminate", err: fmt.Errorf("mint: %w", &LedgerError{Indeterminate: true}), want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsIndeterminate(tt.err); got != tt.want {
				t.Fatalf("IsIndeterminate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLedgerErrorMessage(t *testing.T) {
	t.Parallel()

	err := &LedgerError{
		Status:        "TIMEOUT",
		Indeterminate: true,
		Cause:         errors.New("receipt wait expired"),
	}

	msg := err.Error()
	for _, want := range []string{"ledger error", "status=TIMEOUT", "outcome indeterminate", "receipt wait expired"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("Error() = %q, missing %q", msg, want)
		}
	}

	if !errors.Is(err, err.Cause) {
		t.Fatal("LedgerError should unwrap to its cause")
	}
}
