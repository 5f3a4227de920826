package observability

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "")

	shutdown, err := Setup(context.Background(), Config{
		Endpoint:    "localhost:14318",
		Environment: "test",
		ServiceName: "faqbot-test",
	})

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.Equal(t, "faqbot-test", os.Getenv("OTEL_SERVICE_NAME"))
	assert.Equal(t, "deployment.environment=test", os.Getenv("OTEL_RESOURCE_ATTRIBUTES"))
}

func TestSetup_DefaultEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})

	require.NoError(t, err)
	require.NotNil(t, shutdown)
}
