package mda

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/automated-mda/backend/internal/config"
)

const systemPrompt = "You are a financial reporting analyst writing the Management Discussion and Analysis section of a periodic filing. " +
	"Use only the figures and excerpts provided. Write two or three concise paragraphs of plain prose without headings or bullet points."

// LLMNarrator writes sections with a language model and falls back to
// its Fallback narrator when the model call fails.
type LLMNarrator struct {
	Model       llms.Model
	Temperature float64
	Fallback    Narrator
}

// NewLLMNarrator wraps model with a template fallback.
func NewLLMNarrator(model llms.Model, temperature float64) *LLMNarrator {
	return &LLMNarrator{Model: model, Temperature: temperature, Fallback: TemplateNarrator{}}
}

func (n *LLMNarrator) Narrate(ctx context.Context, b Brief) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: systemPrompt}},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: Prompt(b)}},
		},
	}

	resp, err := n.Model.GenerateContent(ctx, messages, llms.WithTemperature(n.Temperature))
	if err == nil && (resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "") {
		err = errors.New("model returned no content")
	}
	if err != nil {
		if ctx.Err() != nil || n.Fallback == nil {
			return "", err
		}
		log.Warn().Err(err).Str("section", b.Section.Title).Msg("LLM narration failed, using template")
		return n.Fallback.Narrate(ctx, b)
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// Prompt is the user message for one section.
func Prompt(b Brief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Company: %s\nPeriod: %s\nSection: %s\nInstructions: %s\n\n", b.Company, b.Period, b.Section.Title, b.Section.Focus)

	sb.WriteString("Key performance indicators:\n")
	if len(b.KPIs) == 0 {
		sb.WriteString("- none computable\n")
	}
	for _, k := range b.KPIs {
		fmt.Fprintf(&sb, "- %s: %s\n", k.Label, k.Format())
	}
	sb.WriteString("\n")
	sb.WriteString(BuildContext(b.Section.Title, b.Excerpts))
	return sb.String()
}

// NewNarrator builds the narrator selected by cfg.
func NewNarrator(cfg config.LLMConfig) (Narrator, error) {
	switch cfg.Provider {
	case "", "template":
		return TemplateNarrator{}, nil
	case "openai":
		opts := []openai.Option{openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer "))}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return NewLLMNarrator(model, cfg.Temperature), nil
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return NewLLMNarrator(model, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
