package client

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"bankfeed/internal/domain/ledger"
)

// CacheStorage is the local read cache: the last account and
// transaction listings fetched from the server, so `accounts` and
// `transactions` keep working offline. It is never authoritative.
type CacheStorage struct {
	db *sql.DB
}

func NewCacheStorage(path string) (*CacheStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	storage := &CacheStorage{db: db}
	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache tables: %w", err)
	}

	return storage, nil
}

func (s *CacheStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY,
			connection_id INTEGER NOT NULL,
			external_account_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			currency TEXT NOT NULL,
			opening_balance INTEGER NOT NULL,
			current_balance INTEGER NOT NULL,
			available_balance INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY,
			account_id INTEGER NOT NULL,
			external_transaction_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			posted_at DATETIME NOT NULL,
			pending BOOLEAN NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id);
	`)
	return err
}

// SaveAccounts replaces the cached account listing.
func (s *CacheStorage) SaveAccounts(accounts []ledger.Account) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cache update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear account cache: %w", err)
	}

	for _, a := range accounts {
		_, err := tx.Exec(`
			INSERT INTO accounts (id, connection_id, external_account_id, name, type,
			                      currency, opening_balance, current_balance, available_balance)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.ConnectionID, a.ExternalAccountID, a.Name, a.Type,
			a.Currency, a.OpeningBalance, a.CurrentBalance, a.AvailableBalance,
		)
		if err != nil {
			return fmt.Errorf("cache account %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

func (s *CacheStorage) ListAccounts() ([]ledger.Account, error) {
	rows, err := s.db.Query(`
		SELECT id, connection_id, external_account_id, name, type,
		       currency, opening_balance, current_balance, available_balance
		FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list cached accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		err := rows.Scan(&a.ID, &a.ConnectionID, &a.ExternalAccountID, &a.Name, &a.Type,
			&a.Currency, &a.OpeningBalance, &a.CurrentBalance, &a.AvailableBalance)
		if err != nil {
			return nil, fmt.Errorf("scan cached account: %w", err)
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

// SaveTransactions replaces the cached listing for one account.
func (s *CacheStorage) SaveTransactions(accountID int64, transactions []ledger.Transaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cache update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM transactions WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("clear transaction cache: %w", err)
	}

	for _, t := range transactions {
		_, err := tx.Exec(`
			INSERT INTO transactions (id, account_id, external_transaction_id, amount,
			                          description, category, posted_at, pending)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, accountID, t.ExternalTransactionID, t.Amount,
			t.Description, t.Category, t.PostedAt, t.Pending,
		)
		if err != nil {
			return fmt.Errorf("cache transaction %d: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

func (s *CacheStorage) ListTransactions(accountID int64) ([]ledger.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, external_transaction_id, amount,
		       description, category, posted_at, pending
		FROM transactions WHERE account_id = ? ORDER BY posted_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list cached transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		err := rows.Scan(&t.ID, &t.AccountID, &t.ExternalTransactionID, &t.Amount,
			&t.Description, &t.Category, &t.PostedAt, &t.Pending)
		if err != nil {
			return nil, fmt.Errorf("scan cached transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

func (s *CacheStorage) Close() error {
	return s.db.Close()
}
