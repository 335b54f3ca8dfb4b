package ledger

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"bankfeed/internal/app/server/api/http/middleware/auth"
	"bankfeed/internal/domain/connection"
	"bankfeed/internal/domain/ledger"
)

type Handler struct {
	repo       ledger.Repository
	conns      connection.Repository
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(repo ledger.Repository, conns connection.Repository, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		repo:       repo,
		conns:      conns,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listAccountsOp(), h.listAccounts)
	huma.Register(api, h.listTransactionsOp(), h.listTransactions)
}

func (h *Handler) listAccounts(ctx context.Context, _ *struct{}) (*accountsOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	accounts, err := h.repo.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &accountsOutput{Body: accounts}, nil
}

func (h *Handler) listTransactions(ctx context.Context, input *transactionsInput) (*transactionsOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	account, err := h.repo.GetAccount(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, huma.Error404NotFound("account not found")
		}
		return nil, err
	}

	// Ownership runs through the connection; a foreign account is
	// indistinguishable from a missing one.
	if _, err := h.conns.GetForUser(ctx, userID, account.ConnectionID); err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return nil, huma.Error404NotFound("account not found")
		}
		return nil, err
	}

	transactions, err := h.repo.ListTransactions(ctx, input.AccountID, input.IncludeHidden)
	if err != nil {
		return nil, err
	}

	return &transactionsOutput{Body: transactions}, nil
}
