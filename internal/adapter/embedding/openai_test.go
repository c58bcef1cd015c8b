package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendDimensionDefaults(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "key")

	b, err := NewOllamaBackend("nomic-embed-text", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 768, b.Dimension())

	b, err = NewOllamaBackend("mxbai-embed-large", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1024, b.Dimension())

	b, err = NewOpenAIBackend("TEST_EMBED_KEY", "text-embedding-3-large", 0)
	require.NoError(t, err)
	assert.Equal(t, 3072, b.Dimension())

	b, err = NewJinaBackend("TEST_EMBED_KEY", "jina-embeddings-v3", 0)
	require.NoError(t, err)
	assert.Equal(t, 1024, b.Dimension())
}

func TestBackendDimensionOverride(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "key")

	// Configured dimension wins over the per-model default, so models
	// absent from the defaults table still work.
	b, err := NewOllamaBackend("some-finetune", "", 512)
	require.NoError(t, err)
	assert.Equal(t, 512, b.Dimension())

	b, err = NewOpenAIBackend("TEST_EMBED_KEY", "text-embedding-3-small", 256)
	require.NoError(t, err)
	assert.Equal(t, 256, b.Dimension())
}

func TestBackendRequiresAPIKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")

	_, err := NewOpenAIBackend("TEST_EMBED_KEY", "text-embedding-3-small", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_EMBED_KEY")
}
