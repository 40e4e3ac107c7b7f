package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

var _ Gateway = (*HederaGateway)(nil)

// HederaGateway creates batch tokens on a Hedera network. It is constructed
// once from operator configuration and injected; it holds no per-call state.
type HederaGateway struct {
	client      *hedera.Client
	operatorID  hedera.AccountID
	operatorKey hedera.PrivateKey
}

// NewHederaGateway connects to the named network (testnet, mainnet,
// previewnet) with the operator account as both payer and token treasury.
func NewHederaGateway(network string, operatorID string, operatorKey string) (*HederaGateway, error) {
	client, err := hedera.ClientForName(strings.ToLower(strings.TrimSpace(network)))
	if err != nil {
		return nil, fmt.Errorf("failed to create hedera client for network %q: %w", network, err)
	}

	accountID, err := hedera.AccountIDFromString(strings.TrimSpace(operatorID))
	if err != nil {
		return nil, fmt.Errorf("invalid operator account id: %w", err)
	}

	key, err := hedera.PrivateKeyFromString(strings.TrimSpace(operatorKey))
	if err != nil {
		return nil, fmt.Errorf("invalid operator private key: %w", err)
	}

	client.SetOperator(accountID, key)

	return &HederaGateway{
		client:      client,
		operatorID:  accountID,
		operatorKey: key,
	}, nil
}

func (g *HederaGateway) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *HederaGateway) SubmitTokenCreate(ctx context.Context, params CreateTokenParams) (string, error) {
	if g == nil || g.client == nil {
		return "", fmt.Errorf("ledger gateway is not initialized")
	}
	if strings.TrimSpace(params.Name) == "" {
		return "", fmt.Errorf("token name is required")
	}
	if strings.TrimSpace(params.Symbol) == "" {
		return "", fmt.Errorf("token symbol is required")
	}
	if params.MaxSupply <= 0 {
		return "", fmt.Errorf("max supply must be positive")
	}

	return runWithContext(ctx, func() (string, error) {
		tx, err := hedera.NewTokenCreateTransaction().
			SetTokenName(params.Name).
			SetTokenSymbol(params.Symbol).
			SetTokenType(hedera.TokenTypeFungibleCommon).
			SetSupplyType(hedera.TokenSupplyTypeFinite).
			SetDecimals(0).
			SetInitialSupply(0).
			SetMaxSupply(params.MaxSupply).
			SetTreasuryAccountID(g.operatorID).
			FreezeWith(g.client)
		if err != nil {
			return "", &LedgerError{Status: "FREEZE_FAILED", Cause: err}
		}

		response, err := tx.Sign(g.operatorKey).Execute(g.client)
		if err != nil {
			return "", classifyHederaError(err)
		}

		return response.TransactionID.String(), nil
	})
}

func (g *HederaGateway) WaitReceipt(ctx context.Context, txID string) (*Receipt, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("ledger gateway is not initialized")
	}

	transactionID, err := hedera.TransactionIdFromString(strings.TrimSpace(txID))
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", txID, err)
	}

	return runWithContext(ctx, func() (*Receipt, error) {
		receipt, err := hedera.NewTransactionReceiptQuery().
			SetTransactionID(transactionID).
			Execute(g.client)
		if err != nil {
			return nil, classifyHederaError(err)
		}

		if receipt.Status != hedera.StatusSuccess {
			return nil, &LedgerError{Status: receipt.Status.String()}
		}
		if receipt.TokenID == nil {
			return nil, &LedgerError{Status: "MISSING_TOKEN_ID"}
		}

		return &Receipt{
			TokenID:       receipt.TokenID.String(),
			TransactionID: transactionID.String(),
		}, nil
	})
}

// runWithContext runs a blocking SDK call and abandons the wait when the
// context expires. An abandoned call is indeterminate: the transaction may
// still complete on the network.
func runWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		value, err := fn()
		done <- outcome{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, &LedgerError{Status: "TIMEOUT", Indeterminate: true, Cause: ctx.Err()}
	case result := <-done:
		return result.value, result.err
	}
}

func classifyHederaError(err error) error {
	if err == nil {
		return nil
	}

	var precheck hedera.ErrHederaPreCheckStatus
	if errors.As(err, &precheck) {
		// The network rejected the transaction outright; nothing was minted.
		return &LedgerError{Status: precheck.Status.String(), Cause: err}
	}

	var receiptErr hedera.ErrHederaReceiptStatus
	if errors.As(err, &receiptErr) {
		return &LedgerError{Status: receiptErr.Status.String(), Cause: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &LedgerError{Status: "TIMEOUT", Indeterminate: true, Cause: err}
	}

	// Transport-level failures leave the outcome unknown.
	return &LedgerError{Status: "NETWORK", Indeterminate: true, Cause: err}
}
