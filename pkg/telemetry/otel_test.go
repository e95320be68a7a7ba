package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestRedactAttributes(t *testing.T) {
	attrs := []attribute.KeyValue{
		attribute.String("prompt.text", "Contact John"),
		attribute.String("session.masked_text", "Contact [PERSON_0123abcd]"),
		attribute.String("session.id", "3f1c2a9e-7d1b-4c55-9a0e-2b8f7c6d5e4f"),
		attribute.Int("pii.entities.count", 1),
	}

	filtered := RedactAttributes(attrs)
	require.Len(t, filtered, 2)

	set := attribute.NewSet(filtered...)
	id, ok := set.Value("session.id")
	require.True(t, ok)
	assert.Equal(t, "3f1c***5e4f", id.AsString())

	count, ok := set.Value("pii.entities.count")
	require.True(t, ok)
	assert.Equal(t, int64(1), count.AsInt64())

	assert.Empty(t, RedactAttributes(nil))
}

func TestMaskValueShortInput(t *testing.T) {
	assert.Equal(t, "***", maskValue("abc"))
}

func TestSetupProviderWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupProvider(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
