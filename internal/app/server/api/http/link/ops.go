package link

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) createSessionOp() huma.Operation {
	return huma.Operation{
		OperationID: "link-session-create",
		Method:      http.MethodPost,
		Path:        "/api/v1/link/session",
		Summary:     "Start a link flow",
		Description: "Creates a short-lived aggregator session the client uses to run the institution login flow.",
		Tags:        []string{"link"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) establishOp() huma.Operation {
	return huma.Operation{
		OperationID: "link-establish",
		Method:      http.MethodPost,
		Path:        "/api/v1/link",
		Summary:     "Establish a connection",
		Description: "Exchanges the public token from a completed link flow, stores the credential encrypted, and materializes the account set.",
		Tags:        []string{"link"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
