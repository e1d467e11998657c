// Package pipeline runs uploaded statements through the processing stages
// and tracks the resulting jobs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/automated-mda/backend/internal/config"
	"github.com/automated-mda/backend/internal/financials"
	"github.com/automated-mda/backend/internal/mda"
	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/rag"
	"github.com/automated-mda/backend/internal/stage"
)

// Engine holds the components used to turn a statement file into a
// results bundle.
type Engine struct {
	Chunker  rag.Chunker
	Embedder rag.Embedder
	Narrator mda.Narrator
	TopK     int
}

// NewEngine builds an engine from the retrieval and narrative settings.
func NewEngine(ragCfg config.RAGConfig, llmCfg config.LLMConfig) (*Engine, error) {
	embedder, err := rag.NewEmbedder(ragCfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	narrator, err := mda.NewNarrator(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("narrator: %w", err)
	}
	return &Engine{
		Chunker:  rag.NewChunker(ragCfg.ChunkSize, ragCfg.ChunkOverlap),
		Embedder: embedder,
		Narrator: narrator,
		TopK:     ragCfg.TopK,
	}, nil
}

// Input identifies the statement file to process.
type Input struct {
	JobID    string
	FileName string
	Path     string
}

// Run processes in through the first five stages, calling onStage before
// each one starts. The Complete stage is left to the caller, which knows
// when the bundle has been persisted.
func (e *Engine) Run(ctx context.Context, in Input, onStage func(label string)) (*models.ResultsBundle, error) {
	if onStage == nil {
		onStage = func(string) {}
	}
	logger := log.With().Str("job", shortID(in.JobID)).Logger()

	onStage(stage.Validating)
	ds, err := financials.ReadFile(in.Path, in.FileName)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("company", ds.Company).Int("periods", len(ds.Periods)).Int("metrics", len(ds.Metrics())).Msg("Statements validated")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	onStage(stage.Computing)
	kpis := financials.ComputeKPIs(ds)
	deltas := financials.LatestDeltas(ds, financials.ComputeDeltas(ds))
	cards := financials.Cards(ds)
	logger.Debug().Int("kpis", len(kpis)).Int("deltas", len(deltas)).Msg("KPIs computed")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	onStage(stage.Embedding)
	var chunks []rag.Chunk
	for _, doc := range financials.Narrate(ds) {
		chunks = append(chunks, e.Chunker.Split(doc.Text, doc.Source)...)
	}
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		v, err := e.Embedder.Embed(ctx, c.Text)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %s: %w", c.ID, err)
		}
		vectors[i] = v
	}
	logger.Debug().Int("chunks", len(chunks)).Msg("Embeddings generated")

	onStage(stage.Indexing)
	index, err := rag.NewIndex("job-"+in.JobID, e.Embedder)
	if err != nil {
		return nil, err
	}
	defer index.Close()
	if err := index.Add(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("indexing chunks: %w", err)
	}

	onStage(stage.Narrating)
	sections, err := mda.NewGenerator(index, e.Narrator, e.TopK).Generate(ctx, ds, kpis)
	if err != nil {
		return nil, err
	}

	bundle := &models.ResultsBundle{
		ID:          in.JobID,
		JobID:       in.JobID,
		FileName:    in.FileName,
		Company:     ds.Company,
		Period:      ds.LatestPeriod(),
		KPIs:        cards,
		MDASections: sections,
		Deltas:      deltas,
		CreatedAt:   time.Now(),
	}
	bundle.Markdown = mda.Markdown(bundle)
	return bundle, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
