package rag

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
)

const (
	metaSource   = "source"
	metaStartPos = "start_pos"
)

var ErrVectorCount = errors.New("chunk and vector counts differ")

// Match is one retrieved chunk.
type Match struct {
	ChunkID    string  `json:"chunkId"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Similarity float32 `json:"similarity"`
}

// Index is an in-memory vector collection for one job.
type Index struct {
	embedder   Embedder
	db         *chromem.DB
	collection *chromem.Collection

	mu      sync.RWMutex
	sources map[string]string // chunk id → source
}

// NewIndex creates an empty collection named name. Query text is embedded
// with embedder.
func NewIndex(name string, embedder Embedder) (*Index, error) {
	db := chromem.NewDB()
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	c, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Index{
		embedder:   embedder,
		db:         db,
		collection: c,
		sources:    make(map[string]string),
	}, nil
}

// Add stores chunks with their precomputed vectors. Chunks already present
// (same id) are replaced.
func (x *Index) Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrVectorCount, len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))
	for i, ch := range chunks {
		if seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		docs = append(docs, chromem.Document{
			ID:      ch.ID,
			Content: ch.Text,
			Metadata: map[string]string{
				metaSource:   ch.Source,
				metaStartPos: strconv.Itoa(ch.StartPos),
			},
			Embedding: vectors[i],
		})
	}
	if err := x.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, d := range docs {
		x.sources[d.ID] = d.Metadata[metaSource]
	}
	return nil
}

// Count is the number of stored chunks.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.sources)
}

// Query returns up to k chunks most similar to text, best first. A
// non-empty source restricts results to that source. k is clamped to the
// number of candidate chunks; an empty index yields no matches.
func (x *Index) Query(ctx context.Context, text string, k int, source string) ([]Match, error) {
	available := x.candidates(source)

	if k > available {
		k = available
	}
	if k <= 0 {
		return nil, nil
	}

	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	opts := chromem.QueryOptions{
		QueryEmbedding: vec,
		NResults:       k,
	}
	if source != "" {
		opts.Where = map[string]string{metaSource: source}
	}
	results, err := x.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ChunkID:    r.ID,
			Text:       r.Content,
			Source:     r.Metadata[metaSource],
			Similarity: r.Similarity,
		}
	}
	return matches, nil
}

func (x *Index) candidates(source string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if source == "" {
		return len(x.sources)
	}
	n := 0
	for _, s := range x.sources {
		if s == source {
			n++
		}
	}
	return n
}

// Close drops the collection.
func (x *Index) Close() error {
	return x.db.DeleteCollection(x.collection.Name)
}
