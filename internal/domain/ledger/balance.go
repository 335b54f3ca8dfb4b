package ledger

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"
)

// Reconciler recomputes derived account balances from the transaction
// ledger. Recompute is idempotent and touches nothing beyond the
// account row.
//
// current_balance = opening_balance - sum(non-hidden amounts), because
// stored amounts are outflow-positive. Callers are serialized per
// connection by the sync engine's lease, so two recomputes for the
// same account never race.
type Reconciler struct {
	repo Repository
	log  *slog.Logger
}

func NewReconciler(repo Repository, log *slog.Logger) *Reconciler {
	return &Reconciler{
		repo: repo,
		log:  log.With("component", "balance_reconciler"),
	}
}

func (r *Reconciler) Recompute(ctx context.Context, accountID int64) error {
	account, err := r.repo.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account %d: %w", accountID, err)
	}

	sum, err := r.repo.SumVisible(ctx, accountID)
	if err != nil {
		return fmt.Errorf("sum transactions for account %d: %w", accountID, err)
	}

	balance := account.OpeningBalance - sum
	if balance == account.CurrentBalance {
		return nil
	}

	if err := r.repo.SetCurrentBalance(ctx, accountID, balance); err != nil {
		return fmt.Errorf("persist balance for account %d: %w", accountID, err)
	}

	r.log.Debug("balance recomputed",
		"account_id", accountID, "balance", balance)
	return nil
}
