package link

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"bankfeed/internal/app/server/api/http/middleware/auth"
	"bankfeed/internal/domain/connection"
	"bankfeed/internal/infrastructure/aggregator"
)

type Handler struct {
	service    connection.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service connection.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.createSessionOp(), h.createSession)
	huma.Register(api, h.establishOp(), h.establish)
}

func (h *Handler) createSession(ctx context.Context, _ *struct{}) (*createSessionOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	session, err := h.service.CreateLinkSession(ctx, userID)
	if err != nil {
		return nil, aggregatorError(err)
	}

	return &createSessionOutput{
		Body: CreateSessionResponse{
			SessionToken: session.SessionToken,
			Expiry:       session.Expiry,
			Status:       "Ok",
		},
	}, nil
}

func (h *Handler) establish(ctx context.Context, input *establishInput) (*establishOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	connID, err := h.service.EstablishLink(ctx, userID, input.Body.PublicToken, input.Body.Institution)
	if err != nil {
		if errors.Is(err, connection.ErrAlreadyLinked) {
			return nil, huma.Error409Conflict("institution already linked")
		}
		return nil, aggregatorError(err)
	}

	return &establishOutput{
		Body: EstablishResponse{ConnectionID: connID, Status: "Ok"},
	}, nil
}

// aggregatorError translates aggregator failures into HTTP errors
// without leaking anything beyond the upstream error code.
func aggregatorError(err error) error {
	if aggregator.IsTransient(err) {
		return huma.Error502BadGateway("aggregator temporarily unavailable")
	}
	if code := aggregator.PermanentCode(err); code != "" {
		return huma.Error422UnprocessableEntity("aggregator rejected the request: " + code)
	}
	return err
}
