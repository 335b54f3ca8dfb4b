package ledger

import "context"

type Repository interface {
	// UpsertAccount inserts an account or refreshes name/type/currency
	// and available balance on conflict of (connection_id,
	// external_account_id). Opening and current balances are only set
	// on first insert.
	UpsertAccount(ctx context.Context, account *Account) (int64, error)

	GetAccount(ctx context.Context, accountID int64) (*Account, error)
	ListAccounts(ctx context.Context, connectionID int64) ([]Account, error)
	ListAccountsByUser(ctx context.Context, userID int64) ([]Account, error)

	ListTransactions(ctx context.Context, accountID int64, includeHidden bool) ([]Transaction, error)

	// SumVisible returns the sum of non-hidden transaction amounts for
	// an account, read from the then-current ledger.
	SumVisible(ctx context.Context, accountID int64) (int64, error)

	SetCurrentBalance(ctx context.Context, accountID, balance int64) error

	// HideTransactions tombstones every transaction under a
	// connection. Idempotent; returns the number of rows touched.
	HideTransactions(ctx context.Context, connectionID int64) (int64, error)

	// DeleteAccounts removes all accounts under a connection.
	// Idempotent: deleting none is not an error.
	DeleteAccounts(ctx context.Context, connectionID int64) error
}
