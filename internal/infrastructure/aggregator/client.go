package aggregator

import (
	"context"
	"time"
)

// Client is the contract with the external financial-data aggregator.
// Two implementations exist: HTTPClient for the real service and Fake
// for tests and local development.
//
// Every call may fail with a *TransientError (network, timeout, rate
// limit — the caller may retry) or a *PermanentError (revoked
// credential, institution failure — the caller must not retry).
type Client interface {
	// CreateLinkSession opens a short-lived authorization session the
	// user completes in the aggregator's UI.
	CreateLinkSession(ctx context.Context, userID int64) (LinkSession, error)

	// ExchangePublicToken trades a single-use public token for a
	// long-lived access credential and the aggregator's item id.
	ExchangePublicToken(ctx context.Context, publicToken string) (ExchangeResult, error)

	// ListAccounts returns the accounts visible under a credential.
	ListAccounts(ctx context.Context, accessCredential string) ([]AccountData, error)

	// SyncPage returns one page of ledger changes after cursor.
	// An empty cursor requests the first page of a full sync.
	SyncPage(ctx context.Context, accessCredential, cursor string) (Page, error)

	// RevokeItem invalidates the credential at the aggregator.
	RevokeItem(ctx context.Context, accessCredential string) error
}

type LinkSession struct {
	SessionToken string    `json:"session_token"`
	Expiry       time.Time `json:"expiry"`
}

type ExchangeResult struct {
	AccessCredential string `json:"access_credential"`
	ExternalItemID   string `json:"external_item_id"`
}

// AccountData is an account as the aggregator reports it. Balances are
// decimal currency units; conversion to integer minor units happens at
// the domain boundary.
type AccountData struct {
	ExternalAccountID string  `json:"external_account_id"`
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	CurrentBalance    float64 `json:"current_balance"`
	AvailableBalance  float64 `json:"available_balance"`
	Currency          string  `json:"currency"`
}

// TransactionData is a ledger entry as the aggregator reports it.
// Amount is in decimal currency units, positive for outflows.
type TransactionData struct {
	ExternalTransactionID string    `json:"external_transaction_id"`
	ExternalAccountID     string    `json:"external_account_id"`
	Amount                float64   `json:"amount"`
	Description           string    `json:"description"`
	Category              string    `json:"category"`
	PostedAt              time.Time `json:"posted_at"`
	Pending               bool      `json:"pending"`
}

// Page is one page of the aggregator's change feed: three disjoint
// batches plus the cursor protecting them.
type Page struct {
	Added      []TransactionData `json:"added"`
	Modified   []TransactionData `json:"modified"`
	Removed    []string          `json:"removed"`
	NextCursor string            `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}
