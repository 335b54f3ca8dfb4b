package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) pingOp() huma.Operation {
	return huma.Operation{
		OperationID: "health-ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Summary:     "Liveness probe",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}
