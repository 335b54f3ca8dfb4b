package ledger

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listAccountsOp() huma.Operation {
	return huma.Operation{
		OperationID: "accounts-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts",
		Summary:     "List the user's accounts",
		Tags:        []string{"ledger"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) listTransactionsOp() huma.Operation {
	return huma.Operation{
		OperationID: "accounts-transactions",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts/{id}/transactions",
		Summary:     "List an account's transactions",
		Tags:        []string{"ledger"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
