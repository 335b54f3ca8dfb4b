package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"bankfeed/internal/domain/ledger"
)

type LedgerRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewLedgerRepository(pool *pgxpool.Pool, log *slog.Logger) *LedgerRepository {
	return &LedgerRepository{
		pool: pool,
		log:  log.With("component", "ledger_repository"),
	}
}

func (r *LedgerRepository) UpsertAccount(ctx context.Context, account *ledger.Account) (int64, error) {
	// Opening and current balances are set only on first insert; a
	// re-materialization must not clobber the reconciled balance.
	const query = `
		INSERT INTO accounts (connection_id, external_account_id, name, type, currency,
		                      opening_balance, current_balance, available_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (connection_id, external_account_id) DO UPDATE
		SET name = EXCLUDED.name,
		    type = EXCLUDED.type,
		    currency = EXCLUDED.currency,
		    available_balance = EXCLUDED.available_balance,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		account.ConnectionID, account.ExternalAccountID, account.Name,
		account.Type, account.Currency, account.OpeningBalance,
		account.CurrentBalance, account.AvailableBalance,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		r.log.Error("failed to upsert account",
			"connection_id", account.ConnectionID,
			"external_account_id", account.ExternalAccountID, "error", err)
		return 0, fmt.Errorf("upsert account: %w", err)
	}

	return account.ID, nil
}

const accountColumns = `
	id, connection_id, external_account_id, name, type, currency,
	opening_balance, current_balance, available_balance, created_at, updated_at`

func (r *LedgerRepository) GetAccount(ctx context.Context, accountID int64) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	var a ledger.Account
	err := scanAccount(r.pool.QueryRow(ctx, query, accountID), &a)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &a, nil
}

func (r *LedgerRepository) ListAccounts(ctx context.Context, connectionID int64) ([]ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE connection_id = $1 ORDER BY id`

	return r.listAccounts(ctx, query, connectionID)
}

func (r *LedgerRepository) ListAccountsByUser(ctx context.Context, userID int64) ([]ledger.Account, error) {
	query := `
		SELECT a.id, a.connection_id, a.external_account_id, a.name, a.type, a.currency,
		       a.opening_balance, a.current_balance, a.available_balance, a.created_at, a.updated_at
		FROM accounts a
		JOIN connections c ON c.id = a.connection_id
		WHERE c.user_id = $1
		ORDER BY a.id`

	return r.listAccounts(ctx, query, userID)
}

func (r *LedgerRepository) listAccounts(ctx context.Context, query string, arg any) ([]ledger.Account, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, accountID int64, includeHidden bool) ([]ledger.Transaction, error) {
	const query = `
		SELECT id, COALESCE(connection_id, 0), COALESCE(account_id, 0), external_transaction_id,
		       amount, description, category, posted_at, pending, hidden, created_at, updated_at
		FROM transactions
		WHERE account_id = $1 AND (hidden = FALSE OR $2)
		ORDER BY posted_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, accountID, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		err := rows.Scan(
			&t.ID, &t.ConnectionID, &t.AccountID, &t.ExternalTransactionID,
			&t.Amount, &t.Description, &t.Category, &t.PostedAt,
			&t.Pending, &t.Hidden, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}

	return txs, rows.Err()
}

func (r *LedgerRepository) SumVisible(ctx context.Context, accountID int64) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE account_id = $1 AND hidden = FALSE`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}

	return sum, nil
}

func (r *LedgerRepository) SetCurrentBalance(ctx context.Context, accountID, balance int64) error {
	const query = `
		UPDATE accounts SET current_balance = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, accountID, balance)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}

	return nil
}

func (r *LedgerRepository) HideTransactions(ctx context.Context, connectionID int64) (int64, error) {
	const query = `
		UPDATE transactions SET hidden = TRUE, updated_at = NOW()
		WHERE connection_id = $1 AND hidden = FALSE`

	tag, err := r.pool.Exec(ctx, query, connectionID)
	if err != nil {
		r.log.Error("failed to tombstone transactions",
			"connection_id", connectionID, "error", err)
		return 0, fmt.Errorf("hide transactions: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *LedgerRepository) DeleteAccounts(ctx context.Context, connectionID int64) error {
	const query = `DELETE FROM accounts WHERE connection_id = $1`

	if _, err := r.pool.Exec(ctx, query, connectionID); err != nil {
		r.log.Error("failed to delete accounts",
			"connection_id", connectionID, "error", err)
		return fmt.Errorf("delete accounts: %w", err)
	}

	return nil
}

func scanAccount(row pgx.Row, a *ledger.Account) error {
	return row.Scan(
		&a.ID, &a.ConnectionID, &a.ExternalAccountID, &a.Name, &a.Type,
		&a.Currency, &a.OpeningBalance, &a.CurrentBalance,
		&a.AvailableBalance, &a.CreatedAt, &a.UpdatedAt,
	)
}
