package connection

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "connections-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/connections",
		Summary:     "List the user's connections",
		Tags:        []string{"connections"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) syncOp() huma.Operation {
	return huma.Operation{
		OperationID: "connections-sync",
		Method:      http.MethodPost,
		Path:        "/api/v1/connections/{id}/sync",
		Summary:     "Run an incremental sync now",
		Description: "Pulls pending change pages from the aggregator and applies them. Returns 409 when a run is already in flight for this connection.",
		Tags:        []string{"connections"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) unlinkOp() huma.Operation {
	return huma.Operation{
		OperationID: "connections-unlink",
		Method:      http.MethodDelete,
		Path:        "/api/v1/connections/{id}",
		Summary:     "Unlink an institution",
		Description: "Revokes the credential at the aggregator, tombstones the connection's transactions, and deletes its accounts.",
		Tags:        []string{"connections"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
