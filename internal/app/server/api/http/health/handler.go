package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.pingOp(), h.ping)
}

func (h *Handler) ping(_ context.Context, _ *struct{}) (*pingOutput, error) {
	return &pingOutput{
		Body: Response{Status: "Ok"},
	}, nil
}
