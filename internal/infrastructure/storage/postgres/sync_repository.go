package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	syncdomain "bankfeed/internal/domain/sync"
)

// SyncRepository persists sync pages. Everything a page implies —
// upserts, tombstones, and the cursor advance — commits in one
// transaction, so the stored cursor can never run ahead of (or behind)
// the data it protects.
type SyncRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewSyncRepository(pool *pgxpool.Pool, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		pool: pool,
		log:  log.With("component", "sync_repository"),
	}
}

func (r *SyncRepository) ApplyPage(ctx context.Context, connectionID int64, batch syncdomain.Batch, nextCursor string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertQuery = `
		INSERT INTO transactions (connection_id, account_id, external_transaction_id,
		                          amount, description, category, posted_at, pending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (connection_id, external_transaction_id) DO UPDATE
		SET account_id = EXCLUDED.account_id,
		    amount = EXCLUDED.amount,
		    description = EXCLUDED.description,
		    category = EXCLUDED.category,
		    posted_at = EXCLUDED.posted_at,
		    pending = EXCLUDED.pending,
		    updated_at = NOW()`

	for _, t := range batch.Upserts {
		_, err := tx.Exec(ctx, upsertQuery,
			t.ConnectionID, t.AccountID, t.ExternalTransactionID,
			t.Amount, t.Description, t.Category, t.PostedAt, t.Pending,
		)
		if err != nil {
			return fmt.Errorf("upsert transaction %s: %w", t.ExternalTransactionID, err)
		}
	}

	if len(batch.Tombstones) > 0 {
		const tombstoneQuery = `
			UPDATE transactions SET hidden = TRUE, updated_at = NOW()
			WHERE connection_id = $1 AND external_transaction_id = ANY($2) AND hidden = FALSE`

		if _, err := tx.Exec(ctx, tombstoneQuery, connectionID, batch.Tombstones); err != nil {
			return fmt.Errorf("tombstone transactions: %w", err)
		}
	}

	const cursorQuery = `
		UPDATE connections SET sync_cursor = $2, updated_at = NOW() WHERE id = $1`

	tag, err := tx.Exec(ctx, cursorQuery, connectionID, nextCursor)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("advance cursor: connection %d vanished mid-sync", connectionID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit apply: %w", err)
	}

	r.log.Debug("sync page applied",
		"connection_id", connectionID,
		"upserts", len(batch.Upserts), "tombstones", len(batch.Tombstones),
		"cursor", nextCursor)
	return nil
}
