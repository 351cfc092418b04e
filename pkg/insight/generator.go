package insight

import (
	"context"
	"log/slog"
)

// Generator wires the model clients behind the operations the pipeline
// needs.
type Generator struct {
	llm   *LLMClient
	embed *EmbeddingClient
	log   *slog.Logger
}

// NewGenerator builds the generator.
func NewGenerator(llm *LLMClient, embed *EmbeddingClient) *Generator {
	return &Generator{
		llm:   llm,
		embed: embed,
		log:   slog.With("component", "insight"),
	}
}

// Generate produces the summary, key insights, quotes, and topics for one
// piece of content. maxSeconds bounds valid timestamps (0 when unknown).
func (g *Generator) Generate(ctx context.Context, in PromptInput, maxSeconds float64) (*Insights, error) {
	system, user := BuildInsightPrompt(in)
	raw, err := g.llm.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}
	out, err := ParseInsights(raw, in.HasTranscript(), maxSeconds)
	if err != nil {
		return nil, err
	}
	g.log.Info("Generated insights",
		"kind", in.Kind, "key_insights", len(out.KeyInsights), "quotes", len(out.Quotes))
	return out, nil
}

// GenerateEarnings produces the sectioned earnings-call analysis.
func (g *Generator) GenerateEarnings(ctx context.Context, in PromptInput) (map[string]any, error) {
	system, user := BuildEarningsPrompt(in)
	raw, err := g.llm.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return ParseEarnings(raw)
}

// GenerateThemed produces organization-specific themed notes for private
// content.
func (g *Generator) GenerateThemed(ctx context.Context, in PromptInput, themes []string) (map[string]any, error) {
	system, user := BuildThemedPrompt(in, themes)
	raw, err := g.llm.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return ParseThemed(raw, themes)
}

// Embed returns the embedding vector for article search and similarity.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	return g.embed.Embed(ctx, text)
}
