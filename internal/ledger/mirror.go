package ledger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultMirrorTimeout = 10 * time.Second

// Outcome is the final state of a transaction as reported by a mirror node.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	// OutcomeUnknown means the mirror node has not (yet) seen the
	// transaction; the batch must stay PENDING.
	OutcomeUnknown Outcome = "UNKNOWN"
)

type mirrorTransaction struct {
	Result   string `json:"result"`
	EntityID string `json:"entity_id"`
}

type mirrorTransactionsResponse struct {
	Transactions []mirrorTransaction `json:"transactions"`
}

// MirrorClient resolves transaction outcomes through a Hedera mirror node
// REST API. It is used only by reconciliation, never on the request path.
type MirrorClient struct {
	client  *resty.Client
	baseURL string
}

func NewMirrorClient(baseURL string) (*MirrorClient, error) {
	client := resty.New()
	client.SetTimeout(defaultMirrorTimeout)
	client.SetRetryCount(0)

	return NewMirrorClientWithClient(baseURL, client)
}

func NewMirrorClientWithClient(baseURL string, client *resty.Client) (*MirrorClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("mirror node url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid mirror node url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultMirrorTimeout)
	}
	client.SetRetryCount(0)

	return &MirrorClient{
		client:  client,
		baseURL: trimmed,
	}, nil
}

// TransactionOutcome returns the mirror-reported result of a transaction and,
// for token creations, the created entity (token) identifier.
func (c *MirrorClient) TransactionOutcome(ctx context.Context, txID string) (Outcome, string, error) {
	if c == nil || c.client == nil {
		return OutcomeUnknown, "", fmt.Errorf("mirror client is not initialized")
	}
	if strings.TrimSpace(txID) == "" {
		return OutcomeUnknown, "", fmt.Errorf("transaction id is required")
	}

	var result mirrorTransactionsResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("%s/api/v1/transactions/%s", c.baseURL, MirrorTransactionID(txID)))
	if err != nil {
		return OutcomeUnknown, "", fmt.Errorf("mirror node request failed: %w", err)
	}

	switch {
	case response.StatusCode() == http.StatusNotFound:
		return OutcomeUnknown, "", nil
	case response.StatusCode() != http.StatusOK:
		return OutcomeUnknown, "", fmt.Errorf("mirror node returned status %d", response.StatusCode())
	}

	if len(result.Transactions) == 0 {
		return OutcomeUnknown, "", nil
	}

	tx := result.Transactions[0]
	if strings.EqualFold(tx.Result, "SUCCESS") {
		return OutcomeSuccess, tx.EntityID, nil
	}

	return OutcomeFailed, "", nil
}

// MirrorTransactionID converts an SDK transaction id (0.0.123@1700000000.000000001)
// to the mirror REST form (0.0.123-1700000000-000000001).
func MirrorTransactionID(txID string) string {
	payer, timestamp, found := strings.Cut(txID, "@")
	if !found {
		return txID
	}
	return payer + "-" + strings.ReplaceAll(timestamp, ".", "-")
}
