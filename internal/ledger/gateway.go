package ledger

import "context"

// CreateTokenParams describes a finite-supply, zero-decimal token creation.
// The treasury is always the service operator account.
type CreateTokenParams struct {
	Name      string
	Symbol    string
	MaxSupply int64
}

// Receipt is the ledger confirmation that a token creation reached a final,
// queryable outcome.
type Receipt struct {
	TokenID       string
	TransactionID string
}

// Gateway is the outbound ledger port. Token creation is a two-step
// protocol: submit the transaction, then wait for its receipt. A submitted
// transaction without a receipt is indeterminate, never a success.
type Gateway interface {
	SubmitTokenCreate(ctx context.Context, params CreateTokenParams) (string, error)
	WaitReceipt(ctx context.Context, txID string) (*Receipt, error)
}
