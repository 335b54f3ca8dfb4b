package ledger

import "time"

// Account is a bank account materialized under a connection. All
// balances are integer minor currency units. CurrentBalance is derived:
// only the balance reconciler writes it after materialization.
type Account struct {
	ID                int64     `json:"id"`
	ConnectionID      int64     `json:"connection_id"`
	ExternalAccountID string    `json:"external_account_id"`
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	Currency          string    `json:"currency"`
	OpeningBalance    int64     `json:"opening_balance"`
	CurrentBalance    int64     `json:"current_balance"`
	AvailableBalance  int64     `json:"available_balance"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Transaction is one ledger entry. ExternalTransactionID is the natural
// key, unique per connection. Amount is minor units, positive for
// outflows and negative for inflows; the sign is fixed at the single
// aggregator translation point in the sync engine. Removed entries are
// tombstoned via Hidden, never deleted.
type Transaction struct {
	ID                    int64     `json:"id"`
	ConnectionID          int64     `json:"connection_id"`
	AccountID             int64     `json:"account_id"`
	ExternalTransactionID string    `json:"external_transaction_id"`
	Amount                int64     `json:"amount"`
	Description           string    `json:"description"`
	Category              string    `json:"category"`
	PostedAt              time.Time `json:"posted_at"`
	Pending               bool      `json:"pending"`
	Hidden                bool      `json:"hidden"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
