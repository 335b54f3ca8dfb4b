package connection

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"bankfeed/internal/app/server/api/http/middleware/auth"
	"bankfeed/internal/domain/connection"
	syncdomain "bankfeed/internal/domain/sync"
	"bankfeed/internal/infrastructure/aggregator"
)

type Handler struct {
	service    connection.Servicer
	conns      connection.Repository
	engine     syncdomain.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(
	service connection.Servicer,
	conns connection.Repository,
	engine syncdomain.Servicer,
	log *slog.Logger,
	mws huma.Middlewares,
) *Handler {
	return &Handler{
		service:    service,
		conns:      conns,
		engine:     engine,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.syncOp(), h.triggerSync)
	huma.Register(api, h.unlinkOp(), h.unlink)
}

func (h *Handler) list(ctx context.Context, _ *struct{}) (*listOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	conns, err := h.service.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &listOutput{Body: conns}, nil
}

// triggerSync runs the sync engine inline so the response can carry the
// applied counts. Ownership is checked first; the engine itself is
// keyed only by connection id.
func (h *Handler) triggerSync(ctx context.Context, input *syncInput) (*syncOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	if _, err := h.conns.GetForUser(ctx, userID, input.ID); err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return nil, huma.Error404NotFound("connection not found")
		}
		return nil, err
	}

	var opts syncdomain.Options
	if input.Body.Cursor != nil {
		opts.CursorOverride = input.Body.Cursor
	}

	result, err := h.engine.Run(ctx, input.ID, opts)
	if err != nil {
		switch {
		case errors.Is(err, syncdomain.ErrSyncInProgress):
			return nil, huma.Error409Conflict("sync already in progress")
		case errors.Is(err, syncdomain.ErrCredentialCorrupt):
			return nil, huma.Error422UnprocessableEntity("stored credential is unreadable; re-link the institution")
		case aggregator.IsTransient(err):
			return nil, huma.Error502BadGateway("aggregator temporarily unavailable")
		case aggregator.IsPermanent(err):
			return nil, huma.Error422UnprocessableEntity(
				"aggregator rejected the sync: " + aggregator.PermanentCode(err))
		default:
			return nil, err
		}
	}

	return &syncOutput{
		Body: SyncResponse{Result: result, Status: "Ok"},
	}, nil
}

func (h *Handler) unlink(ctx context.Context, input *unlinkInput) (*unlinkOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	result, err := h.service.Unlink(ctx, userID, input.ID)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return nil, huma.Error404NotFound("connection not found")
		}
		return nil, err
	}

	status := "Ok"
	if !result.Revoked {
		// Local data is gone but the credential is still live upstream;
		// the client should retry the unlink.
		status = "RetryRequired"
	}

	return &unlinkOutput{
		Body: UnlinkResponse{Result: result, Status: status},
	}, nil
}
