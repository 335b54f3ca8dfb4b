package health

import (
	"context"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

func TestHandler_ping(t *testing.T) {
	handler := NewHandler(slog.Default(), huma.Middlewares{})

	output, err := handler.ping(context.Background(), &struct{}{})

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.Equal(t, "Ok", output.Body.Status)
}
