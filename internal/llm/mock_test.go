package llm

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockServiceEmbedDeterministic(t *testing.T) {
	s := NewMockService(64)
	ctx := context.Background()

	a, err := s.Embed(ctx, "hypertension treatment guidelines")
	require.NoError(t, err)
	b, err := s.Embed(ctx, "hypertension treatment guidelines")
	require.NoError(t, err)
	c, err := s.Embed(ctx, "statute of limitations")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	for _, v := range a {
		assert.GreaterOrEqual(t, v, float32(-1.0))
		assert.LessOrEqual(t, v, float32(1.0))
	}
}

func TestMockServiceGenerate(t *testing.T) {
	s := NewMockService(64)
	ctx := context.Background()

	t.Run("refuses without context", func(t *testing.T) {
		out, err := s.Generate(ctx, "What is the treatment for hypertension?", nil)
		require.NoError(t, err)
		assert.Equal(t, "Insufficient verified evidence available.", out)
	})

	t.Run("grounds in provided context", func(t *testing.T) {
		out, err := s.Generate(ctx, "What is the treatment?", []string{"Lifestyle changes are first-line therapy."})
		require.NoError(t, err)
		assert.Contains(t, out, "Lifestyle changes")
	})

	t.Run("truncates long context on a rune boundary", func(t *testing.T) {
		long := "a" + strings.Repeat("µ", 200)
		out, err := s.Generate(ctx, "What is the treatment?", []string{long})
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(out))
	})
}

func TestMockServiceEmbedBatchOrder(t *testing.T) {
	s := NewMockService(32)
	ctx := context.Background()

	texts := []string{"first", "second", "third"}
	batch, err := s.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := s.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}
