package connection

import (
	"context"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"bankfeed/internal/app/server/api/http/middleware/auth"
	"bankfeed/internal/domain/connection"
	syncdomain "bankfeed/internal/domain/sync"
	"bankfeed/internal/infrastructure/aggregator"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateLinkSession(ctx context.Context, userID int64) (aggregator.LinkSession, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(aggregator.LinkSession), args.Error(1)
}

func (m *mockService) EstablishLink(ctx context.Context, userID int64, publicToken, institution string) (int64, error) {
	args := m.Called(ctx, userID, publicToken, institution)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockService) ListByUser(ctx context.Context, userID int64) ([]connection.Connection, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]connection.Connection), args.Error(1)
}

func (m *mockService) Unlink(ctx context.Context, userID, connectionID int64) (connection.UnlinkResult, error) {
	args := m.Called(ctx, userID, connectionID)
	return args.Get(0).(connection.UnlinkResult), args.Error(1)
}

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, conn *connection.Connection) (int64, error) {
	args := m.Called(ctx, conn)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) Get(ctx context.Context, id int64) (*connection.Connection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connection.Connection), args.Error(1)
}

func (m *mockRepo) GetForUser(ctx context.Context, userID, id int64) (*connection.Connection, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connection.Connection), args.Error(1)
}

func (m *mockRepo) ListByUser(ctx context.Context, userID int64) ([]connection.Connection, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]connection.Connection), args.Error(1)
}

func (m *mockRepo) ListActiveIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockRepo) SetStatus(ctx context.Context, id int64, status connection.Status, detail string) error {
	args := m.Called(ctx, id, status, detail)
	return args.Error(0)
}

func (m *mockRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Run(ctx context.Context, connectionID int64, opts syncdomain.Options) (syncdomain.Result, error) {
	args := m.Called(ctx, connectionID, opts)
	return args.Get(0).(syncdomain.Result), args.Error(1)
}

func authedCtx(userID int64) context.Context {
	return context.WithValue(context.Background(), auth.UserIDKey, userID)
}

func TestHandler_triggerSync(t *testing.T) {
	owned := &connection.Connection{ID: 5, UserID: 1}

	t.Run("success returns applied counts", func(t *testing.T) {
		repo := new(mockRepo)
		engine := new(mockEngine)
		repo.On("GetForUser", mock.Anything, int64(1), int64(5)).Return(owned, nil)
		engine.On("Run", mock.Anything, int64(5), syncdomain.Options{}).
			Return(syncdomain.Result{Added: 3, Removed: 1}, nil)

		h := NewHandler(new(mockService), repo, engine, slog.Default(), huma.Middlewares{})
		out, err := h.triggerSync(authedCtx(1), &syncInput{ID: 5})

		require.NoError(t, err)
		assert.Equal(t, 3, out.Body.Result.Added)
		assert.Equal(t, 1, out.Body.Result.Removed)
		assert.Equal(t, "Ok", out.Body.Status)
	})

	t.Run("concurrent run maps to 409", func(t *testing.T) {
		repo := new(mockRepo)
		engine := new(mockEngine)
		repo.On("GetForUser", mock.Anything, int64(1), int64(5)).Return(owned, nil)
		engine.On("Run", mock.Anything, int64(5), syncdomain.Options{}).
			Return(syncdomain.Result{}, syncdomain.ErrSyncInProgress)

		h := NewHandler(new(mockService), repo, engine, slog.Default(), huma.Middlewares{})
		_, err := h.triggerSync(authedCtx(1), &syncInput{ID: 5})

		require.Error(t, err)
		var status huma.StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, 409, status.GetStatus())
	})

	t.Run("foreign connection maps to 404", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetForUser", mock.Anything, int64(1), int64(5)).
			Return(nil, connection.ErrNotFound)

		h := NewHandler(new(mockService), repo, new(mockEngine), slog.Default(), huma.Middlewares{})
		_, err := h.triggerSync(authedCtx(1), &syncInput{ID: 5})

		require.Error(t, err)
		var status huma.StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, 404, status.GetStatus())
	})

	t.Run("missing user maps to 401", func(t *testing.T) {
		h := NewHandler(new(mockService), new(mockRepo), new(mockEngine), slog.Default(), huma.Middlewares{})
		_, err := h.triggerSync(context.Background(), &syncInput{ID: 5})

		require.Error(t, err)
		var status huma.StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, 401, status.GetStatus())
	})

	t.Run("cursor override reaches the engine", func(t *testing.T) {
		repo := new(mockRepo)
		engine := new(mockEngine)
		empty := ""
		repo.On("GetForUser", mock.Anything, int64(1), int64(5)).Return(owned, nil)
		engine.On("Run", mock.Anything, int64(5), syncdomain.Options{CursorOverride: &empty}).
			Return(syncdomain.Result{}, nil)

		h := NewHandler(new(mockService), repo, engine, slog.Default(), huma.Middlewares{})
		_, err := h.triggerSync(authedCtx(1), &syncInput{ID: 5, Body: SyncRequest{Cursor: &empty}})

		require.NoError(t, err)
		engine.AssertExpectations(t)
	})
}

func TestHandler_unlink(t *testing.T) {
	t.Run("revoked and removed", func(t *testing.T) {
		service := new(mockService)
		service.On("Unlink", mock.Anything, int64(1), int64(5)).
			Return(connection.UnlinkResult{Revoked: true, Removed: true, TransactionsHidden: 50}, nil)

		h := NewHandler(service, new(mockRepo), new(mockEngine), slog.Default(), huma.Middlewares{})
		out, err := h.unlink(authedCtx(1), &unlinkInput{ID: 5})

		require.NoError(t, err)
		assert.Equal(t, "Ok", out.Body.Status)
		assert.Equal(t, int64(50), out.Body.Result.TransactionsHidden)
	})

	t.Run("revoke failure asks for a retry", func(t *testing.T) {
		service := new(mockService)
		service.On("Unlink", mock.Anything, int64(1), int64(5)).
			Return(connection.UnlinkResult{Revoked: false, TransactionsHidden: 50}, nil)

		h := NewHandler(service, new(mockRepo), new(mockEngine), slog.Default(), huma.Middlewares{})
		out, err := h.unlink(authedCtx(1), &unlinkInput{ID: 5})

		require.NoError(t, err)
		assert.Equal(t, "RetryRequired", out.Body.Status)
	})
}
