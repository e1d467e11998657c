package rag

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automated-mda/backend/internal/config"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("word%03d", i)
	}
	return strings.Join(w, " ")
}

func TestChunker_WindowArithmetic(t *testing.T) {
	c := NewChunker(100, 20)
	chunks := c.Split(words(250), "Income Statement")

	// windows start at 0, 80, 160, 240
	require.Len(t, chunks, 4)
	starts := []int{0, 80, 160, 240}
	counts := []int{100, 100, 90, 10}
	for i, ch := range chunks {
		assert.Equal(t, starts[i], ch.StartPos)
		assert.Equal(t, counts[i], ch.WordCount)
		assert.Equal(t, "Income Statement", ch.Source)
		assert.Len(t, ch.ID, 12)
		assert.Equal(t, ChunkID(ch.Text), ch.ID)
	}
	assert.True(t, strings.HasPrefix(chunks[1].Text, "word080 "))
	assert.True(t, strings.HasSuffix(chunks[0].Text, " word099"))
}

func TestChunker_SkipsShortWindows(t *testing.T) {
	c := NewChunker(5, 0)
	chunks := c.Split("a b c d e f g h i j k l m n o p q r s t u v w x y z", "notes")
	assert.Empty(t, chunks, "single-letter windows are far below the minimum length")

	// exactly 50 characters is still too short
	fifty := strings.Repeat("x", 50)
	assert.Empty(t, NewChunker(10, 2).Split(fifty, "s"))
	assert.Len(t, NewChunker(10, 2).Split(fifty+"y", "s"), 1)
}

func TestChunker_InvalidParametersFallBack(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Equal(t, DefaultChunkSize, c.Size)
	assert.Equal(t, 0, c.Overlap)

	c = NewChunker(10, 10)
	assert.Equal(t, 0, c.Overlap)

	assert.NotPanics(t, func() { Chunker{}.Split(words(20), "x") })
}

func TestChunkID(t *testing.T) {
	// md5("hello world") = 5eb63bbbe01eeed093cb22bb8f5acdc3
	assert.Equal(t, "5eb63bbbe01e", ChunkID("hello world"))
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Revenue grew strongly in Q2")
	require.NoError(t, err)
	require.Len(t, a, 64)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	b, err := e.Embed(ctx, "revenue GREW strongly in q2!")
	require.NoError(t, err)
	assert.Equal(t, a, b, "embedding ignores case and punctuation")

	_, err = e.Embed(ctx, " ... ")
	assert.ErrorIs(t, err, ErrEmptyText)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Embed(cancelled, "revenue")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(config.EmbeddingConfig{Provider: "hash", Dimensions: 32})
	require.NoError(t, err)
	h, ok := e.(*HashEmbedder)
	require.True(t, ok)
	assert.Equal(t, 32, h.Dimensions)

	_, err = NewEmbedder(config.EmbeddingConfig{Provider: "psychic"})
	assert.Error(t, err)
}

func buildIndex(t *testing.T, docs map[string]string) *Index {
	t.Helper()
	ctx := context.Background()
	emb := NewHashEmbedder(256)
	idx, err := NewIndex("test", emb)
	require.NoError(t, err)

	var chunks []Chunk
	var vecs [][]float32
	for source, text := range docs {
		ch := Chunk{ID: ChunkID(text), Text: text, Source: source, WordCount: len(strings.Fields(text))}
		v, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		chunks = append(chunks, ch)
		vecs = append(vecs, v)
	}
	require.NoError(t, idx.Add(ctx, chunks, vecs))
	return idx
}

func TestIndex_QueryOrdersBySimilarity(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		"Income Statement":    "revenue grew and net sales increased with strong revenue growth this quarter",
		"Balance Sheet":       "total assets liabilities and shareholders equity on the balance sheet",
		"Cash Flow Statement": "operating cash flow investing cash flow and financing cash flow",
	})
	defer idx.Close()
	assert.Equal(t, 3, idx.Count())

	matches, err := idx.Query(context.Background(), "revenue growth and net sales", 2, "")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Income Statement", matches[0].Source)
	assert.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)
}

func TestIndex_QueryClampsAndFilters(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		"Risk Factors":  "competition regulatory compliance and supply chain disruptions are key risks",
		"Balance Sheet": "total assets liabilities and shareholders equity",
	})

	matches, err := idx.Query(context.Background(), "risks", 10, "")
	require.NoError(t, err)
	assert.Len(t, matches, 2, "k is clamped to the collection size")

	matches, err = idx.Query(context.Background(), "anything", 3, "Risk Factors")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Risk Factors", matches[0].Source)

	matches, err = idx.Query(context.Background(), "anything", 3, "Unknown")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIndex_EmptyAndMismatched(t *testing.T) {
	idx, err := NewIndex("empty", NewHashEmbedder(16))
	require.NoError(t, err)

	matches, err := idx.Query(context.Background(), "revenue", 3, "")
	require.NoError(t, err)
	assert.Empty(t, matches)

	err = idx.Add(context.Background(), []Chunk{{ID: "a", Text: "x"}}, nil)
	assert.ErrorIs(t, err, ErrVectorCount)
}
