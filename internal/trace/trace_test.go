package trace

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestStartWithoutInitIsNoop(t *testing.T) {
	ctx, span := Start(context.Background(), "predict")
	assert.False(t, span.SpanContext().IsValid())
	assert.Equal(t, "", TraceID(ctx))
	End(span, errors.New("ignored"))
}

func TestInitExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(true, &buf))

	ctx, span := Start(context.Background(), "predict", attribute.String("asset", "BTC"))
	assert.NotEmpty(t, TraceID(ctx))
	End(span, nil)

	require.NoError(t, Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"predict"`)
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestID(ctx))
	assert.Equal(t, context.Background(), WithRequestID(context.Background(), ""))
}
