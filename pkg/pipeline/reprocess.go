package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mediabrief/mediabrief/pkg/insight"
	"github.com/mediabrief/mediabrief/pkg/media"
	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/pipeline/bus"
	"github.com/mediabrief/mediabrief/pkg/transcript"
)

// ReprocessStep is one re-runnable stage of the pipeline.
type ReprocessStep string

const (
	StepAISummary      ReprocessStep = "ai_summary"
	StepThemedInsights ReprocessStep = "themed_insights"
	StepEmbedding      ReprocessStep = "embedding"
	StepVideoFrames    ReprocessStep = "video_frames"
	StepTranscript     ReprocessStep = "transcript"
)

// reprocessOrder fixes step execution order regardless of request order:
// a fresh transcript feeds the summary, which feeds the embedding.
var reprocessOrder = []ReprocessStep{
	StepTranscript, StepVideoFrames, StepAISummary, StepThemedInsights, StepEmbedding,
}

// ReprocessOptions describes one reprocess invocation.
type ReprocessOptions struct {
	ArticleID int64
	IsPrivate bool
	Steps     []ReprocessStep
	// Themes drives themed_insights; defaults to the earnings sections.
	Themes []string
}

// StepStatus reports whether a step can run on the current row.
type StepStatus struct {
	Step      ReprocessStep `json:"step"`
	Available bool          `json:"available"`
	Reason    string        `json:"reason,omitempty"`
}

const (
	reasonNoMedia     = "no stored media"
	reasonNotVideo    = "stored media is not video"
	reasonPrivateOnly = "private articles only"
)

// updater is the store surface shared by public and private rows.
type updater interface {
	UpdateInsights(ctx context.Context, id int64, summary string, summaryHTML *string, insights []models.KeyInsight, quotes []models.Quote, topics []string) error
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error
	UpdateTranscript(ctx context.Context, id int64, transcript string, durationSeconds *int) error
	UpdateFrames(ctx context.Context, id int64, frames []models.Frame) error
}

// ReprocessInfo reports step availability for a persisted article.
func (p *Pipeline) ReprocessInfo(ctx context.Context, articleID int64, isPrivate bool) ([]StepStatus, error) {
	article, _, err := p.loadArticle(ctx, articleID, isPrivate)
	if err != nil {
		return nil, err
	}

	out := make([]StepStatus, 0, len(reprocessOrder))
	for _, step := range reprocessOrder {
		status := StepStatus{Step: step, Available: true}
		if reason := gateStep(step, article, isPrivate); reason != "" {
			status.Available = false
			status.Reason = reason
		}
		out = append(out, status)
	}
	return out, nil
}

// Reprocess re-runs the requested steps on a persisted article, emitting
// per-step events and a terminal completed event with per-step outcomes.
func (p *Pipeline) Reprocess(ctx context.Context, opts ReprocessOptions, b *bus.Bus) {
	defer b.Close()

	em := &emitter{bus: b, start: time.Now()}
	em.emit("started", map[string]any{"article_id": opts.ArticleID, "is_private": opts.IsPrivate})

	article, up, err := p.loadArticle(ctx, opts.ArticleID, opts.IsPrivate)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		perr := classifyErr(err, KindDatabase)
		em.emit("error", map[string]any{"kind": string(perr.Kind), "message": perr.UserMessage()})
		return
	}
	em.emit("article_loaded", map[string]any{"article_id": article.ID, "title": article.Title})

	requested := make(map[ReprocessStep]bool, len(opts.Steps))
	for _, s := range opts.Steps {
		requested[s] = true
	}

	results := map[string]any{}
	for _, step := range reprocessOrder {
		if !requested[step] {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		name := string(step)
		if reason := gateStep(step, article, opts.IsPrivate); reason != "" {
			em.emit(name+"_skipped", map[string]any{"reason": reason})
			results[name] = map[string]any{"status": "skipped", "reason": reason}
			continue
		}

		em.emit(name+"_start", nil)
		detail, err := p.runStep(ctx, step, article, up, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			perr := classifyErr(err, KindInternal)
			p.log.Error("Reprocess step failed", "step", name, "article_id", article.ID, "error", err)
			em.emit(name+"_error", map[string]any{"message": perr.UserMessage()})
			results[name] = map[string]any{"status": "error", "message": perr.UserMessage()}
			continue
		}
		em.emit(name+"_complete", detail)
		results[name] = map[string]any{"status": "complete"}
	}

	em.emit("completed", map[string]any{"article_id": article.ID, "results": results})
}

func (p *Pipeline) loadArticle(ctx context.Context, id int64, isPrivate bool) (*models.Article, updater, error) {
	if isPrivate {
		pa, err := p.private.GetByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return &pa.Article, p.private, nil
	}
	a, err := p.articles.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return a, p.articles, nil
}

// gateStep returns a skip reason, or empty when the step can run.
func gateStep(step ReprocessStep, a *models.Article, isPrivate bool) string {
	switch step {
	case StepTranscript:
		if a.Media.Path == nil {
			return reasonNoMedia
		}
	case StepVideoFrames:
		if a.Media.Path == nil {
			return reasonNoMedia
		}
		if a.ContentSource != models.ContentSourceVideo {
			return reasonNotVideo
		}
	case StepThemedInsights:
		if !isPrivate {
			return reasonPrivateOnly
		}
	}
	return ""
}

func (p *Pipeline) runStep(ctx context.Context, step ReprocessStep, a *models.Article, up updater, opts ReprocessOptions) (map[string]any, error) {
	switch step {
	case StepTranscript:
		return p.reprocessTranscript(ctx, a, up)
	case StepVideoFrames:
		return p.reprocessFrames(ctx, a, up)
	case StepAISummary:
		return p.reprocessSummary(ctx, a, up)
	case StepThemedInsights:
		return p.reprocessThemed(ctx, a, opts)
	case StepEmbedding:
		return p.reprocessEmbedding(ctx, a, up)
	default:
		return nil, fmt.Errorf("unknown reprocess step %q", step)
	}
}

// mediaURL resolves a readable URL for the article's stored media object.
func (p *Pipeline) mediaURL(ctx context.Context, a *models.Article) (string, error) {
	if a.Media.Bucket == nil || a.Media.Path == nil {
		return "", fmt.Errorf("article %d has no stored media", a.ID)
	}
	if a.Media.IsPermanent {
		return p.objects.PublicURL(*a.Media.Bucket, *a.Media.Path), nil
	}
	return p.objects.SignedURL(ctx, *a.Media.Bucket, *a.Media.Path, time.Hour)
}

func (p *Pipeline) reprocessTranscript(ctx context.Context, a *models.Article, up updater) (map[string]any, error) {
	url, err := p.mediaURL(ctx, a)
	if err != nil {
		return nil, err
	}

	tr, err := p.transcripts.Acquire(ctx, transcript.Request{AudioURL: url})
	if err != nil {
		return nil, err
	}
	if tr.Empty() {
		return nil, fmt.Errorf("transcription produced no segments")
	}

	formatted := tr.Format()
	duration := int(tr.Duration())
	if err := up.UpdateTranscript(ctx, a.ID, formatted, &duration); err != nil {
		return nil, err
	}

	a.TranscriptText = &formatted
	a.DurationSeconds = &duration
	return map[string]any{"source": string(tr.Source), "segments": len(tr.Segments)}, nil
}

func (p *Pipeline) reprocessFrames(ctx context.Context, a *models.Article, up updater) (map[string]any, error) {
	url, err := p.mediaURL(ctx, a)
	if err != nil {
		return nil, err
	}

	info, err := p.media.Download(ctx, url, media.KindVideo)
	if err != nil {
		return nil, err
	}
	defer info.Cleanup()

	sampled, err := p.frames.Sample(ctx, info.DownloadPath, a.ID)
	if err != nil {
		return nil, err
	}
	if err := up.UpdateFrames(ctx, a.ID, sampled); err != nil {
		return nil, err
	}

	a.Frames = sampled
	return map[string]any{"count": len(sampled)}, nil
}

func (p *Pipeline) reprocessSummary(ctx context.Context, a *models.Article, up updater) (map[string]any, error) {
	in := p.promptFromRow(a)

	maxSeconds := 0.0
	if a.DurationSeconds != nil {
		maxSeconds = float64(*a.DurationSeconds)
	}

	result, err := p.insights.Generate(ctx, in, maxSeconds)
	if err != nil {
		return nil, err
	}
	if err := up.UpdateInsights(ctx, a.ID, result.Summary, nil, result.KeyInsights, result.Quotes, result.Topics); err != nil {
		return nil, err
	}

	a.SummaryText = result.Summary
	a.KeyInsights = result.KeyInsights
	a.Quotes = result.Quotes
	a.Topics = result.Topics
	return map[string]any{"key_insights": len(result.KeyInsights), "quotes": len(result.Quotes)}, nil
}

func (p *Pipeline) reprocessThemed(ctx context.Context, a *models.Article, opts ReprocessOptions) (map[string]any, error) {
	themes := opts.Themes
	if len(themes) == 0 {
		themes = insight.EarningsThemes
	}

	themed, err := p.insights.GenerateThemed(ctx, p.promptFromRow(a), themes)
	if err != nil {
		return nil, err
	}
	if err := p.private.UpdateThemedInsights(ctx, a.ID, themed); err != nil {
		return nil, err
	}
	return map[string]any{"themes": len(themed)}, nil
}

func (p *Pipeline) reprocessEmbedding(ctx context.Context, a *models.Article, up updater) (map[string]any, error) {
	vec, err := p.insights.Embed(ctx, embeddingText(a))
	if err != nil {
		return nil, err
	}
	if err := up.UpdateEmbedding(ctx, a.ID, vec); err != nil {
		return nil, err
	}
	return map[string]any{"dimensions": len(vec)}, nil
}

// promptFromRow rebuilds the model input from persisted row state.
func (p *Pipeline) promptFromRow(a *models.Article) insight.PromptInput {
	in := insight.PromptInput{
		Kind:      insight.ContextText,
		Title:     a.Title,
		Text:      a.SummaryText,
		SourceURL: a.URL,
	}
	switch a.ContentSource {
	case models.ContentSourceVideo:
		in.Kind = insight.ContextVideo
	case models.ContentSourceAudio:
		in.Kind = insight.ContextAudio
	}
	if a.EarningsAnalysis != nil {
		in.Kind = insight.ContextEarnings
	}
	if a.TranscriptText != nil {
		in.Transcript = *a.TranscriptText
	}
	return in
}

// ParseSteps validates client-supplied step names.
func ParseSteps(raw []string) ([]ReprocessStep, error) {
	valid := map[ReprocessStep]bool{
		StepAISummary: true, StepThemedInsights: true, StepEmbedding: true,
		StepVideoFrames: true, StepTranscript: true,
	}
	out := make([]ReprocessStep, 0, len(raw))
	for _, name := range raw {
		step := ReprocessStep(name)
		if !valid[step] {
			return nil, fmt.Errorf("unknown step %q", name)
		}
		out = append(out, step)
	}
	return out, nil
}
