package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestStartEnd_NoopTracer(t *testing.T) {
	ctx, span := Start(context.Background(), "test.op", attribute.String("k", "v"))
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
	assert.NotPanics(t, func() { End(span, errors.New("boom")) })
	assert.NotPanics(t, func() { End(nil, nil) })
}
