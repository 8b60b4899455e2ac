package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{ServiceName: "catalog"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestEndpointOption(t *testing.T) {
	assert.Len(t, endpointOption("localhost:4318"), 2)
	assert.Len(t, endpointOption("https://collector.example.com/v1/traces"), 1)
}
