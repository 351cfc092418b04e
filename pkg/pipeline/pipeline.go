// Package pipeline orchestrates content ingestion from URL submission to
// persisted article.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mediabrief/mediabrief/pkg/auth"
	"github.com/mediabrief/mediabrief/pkg/classify"
	"github.com/mediabrief/mediabrief/pkg/extract"
	"github.com/mediabrief/mediabrief/pkg/fetch"
	"github.com/mediabrief/mediabrief/pkg/frames"
	"github.com/mediabrief/mediabrief/pkg/insight"
	"github.com/mediabrief/mediabrief/pkg/media"
	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/pipeline/bus"
	"github.com/mediabrief/mediabrief/pkg/scrape"
	"github.com/mediabrief/mediabrief/pkg/storage"
	"github.com/mediabrief/mediabrief/pkg/store"
	"github.com/mediabrief/mediabrief/pkg/transcript"
)

// Fetcher retrieves the page behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// MediaExtractor resolves and downloads the playable asset for a page.
type MediaExtractor interface {
	Extract(ctx context.Context, cls classify.Classification, pageURL, pageHTML string) (*media.Info, error)
	Download(ctx context.Context, assetURL string, kind media.Kind) (*media.Info, error)
}

// TranscriptAcquirer produces a timestamped transcript for a media asset.
type TranscriptAcquirer interface {
	Acquire(ctx context.Context, req transcript.Request) (*transcript.Transcript, error)
}

// FrameSampler selects and uploads representative video frames.
type FrameSampler interface {
	Select(ctx context.Context, videoPath string) (*frames.Selection, error)
	Upload(ctx context.Context, sel *frames.Selection, articleID int64) ([]models.Frame, error)
	Sample(ctx context.Context, videoPath string, articleID int64) ([]models.Frame, error)
}

// InsightGenerator produces summaries, themed analyses, and embeddings.
type InsightGenerator interface {
	Generate(ctx context.Context, in insight.PromptInput, maxSeconds float64) (*insight.Insights, error)
	GenerateEarnings(ctx context.Context, in insight.PromptInput) (map[string]any, error)
	GenerateThemed(ctx context.Context, in insight.PromptInput, themes []string) (map[string]any, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ArticleRepo is the article store surface the pipeline uses.
type ArticleRepo interface {
	GetByURL(ctx context.Context, url string) (*models.Article, error)
	GetByID(ctx context.Context, id int64) (*models.Article, error)
	HasAssociation(ctx context.Context, articleID int64, userID string) (bool, error)
	AttachUser(ctx context.Context, articleID int64, userID, orgID string) error
	Save(ctx context.Context, p store.SaveParams) (store.SaveOutcome, error)
	SetMediaPointer(ctx context.Context, id int64, ptr models.MediaPointer) error
	UpdateInsights(ctx context.Context, id int64, summary string, summaryHTML *string, insights []models.KeyInsight, quotes []models.Quote, topics []string) error
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error
	UpdateTranscript(ctx context.Context, id int64, transcript string, durationSeconds *int) error
	UpdateFrames(ctx context.Context, id int64, frames []models.Frame) error
}

// PrivateArticleRepo is the private-article store surface used in
// reprocess mode.
type PrivateArticleRepo interface {
	GetByID(ctx context.Context, id int64) (*models.PrivateArticle, error)
	UpdateInsights(ctx context.Context, id int64, summary string, summaryHTML *string, insights []models.KeyInsight, quotes []models.Quote, topics []string) error
	UpdateThemedInsights(ctx context.Context, id int64, themed map[string]any) error
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error
	UpdateTranscript(ctx context.Context, id int64, transcript string, durationSeconds *int) error
	UpdateFrames(ctx context.Context, id int64, frames []models.Frame) error
}

// ObjectStore is the storage surface the pipeline uses for long-term
// media and reprocess reads.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	SignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	PublicURL(bucket, key string) string
	ExpiringBucket() string
	PermanentBucket() string
}

// Pipeline runs ingestion and reprocess invocations.
type Pipeline struct {
	fetcher     Fetcher
	scrapers    *scrape.Registry
	media       MediaExtractor
	transcripts TranscriptAcquirer
	frames      FrameSampler
	insights    InsightGenerator
	articles    ArticleRepo
	private     PrivateArticleRepo
	objects     ObjectStore

	// extractHTML is swappable in tests.
	extractHTML func(rawHTML, pageURL string) (*extract.Content, error)

	log *slog.Logger
}

// New wires a pipeline from its collaborators.
func New(fetcher Fetcher, scrapers *scrape.Registry, mediaExt MediaExtractor,
	transcripts TranscriptAcquirer, sampler FrameSampler, insights InsightGenerator,
	articles ArticleRepo, private PrivateArticleRepo, objects ObjectStore) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		scrapers:    scrapers,
		media:       mediaExt,
		transcripts: transcripts,
		frames:      sampler,
		insights:    insights,
		articles:    articles,
		private:     private,
		objects:     objects,
		extractHTML: extract.FromHTML,
		log:         slog.With("component", "pipeline"),
	}
}

// Options describes one ingestion invocation.
type Options struct {
	URL            string
	Identity       auth.Identity
	ForceReprocess bool
	DemoVideo      bool
}

// run-scoped emitter that stamps elapsed seconds on every payload.
type emitter struct {
	bus   *bus.Bus
	start time.Time
}

func (e *emitter) emit(name string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["elapsed"] = round1(time.Since(e.start).Seconds())
	e.bus.Emit(name, payload)
}

func round1(f float64) float64 {
	return float64(int(f*10)) / 10
}

// Run executes the ingestion state machine, emitting progress events on b
// and closing it when done. Cancellation ends the stream without an error
// event and leaves no partial row.
func (p *Pipeline) Run(ctx context.Context, opts Options, b *bus.Bus) {
	defer b.Close()

	em := &emitter{bus: b, start: time.Now()}
	em.emit("ping", nil)
	em.emit("started", map[string]any{"url": opts.URL})

	if err := p.run(ctx, opts, em); err != nil {
		if ctx.Err() != nil {
			p.log.Info("Ingestion cancelled", "url", opts.URL)
			return
		}
		p.log.Error("Ingestion failed", "url", opts.URL, "error", err)
		em.emit("error", map[string]any{
			"kind":    string(err.Kind),
			"message": err.UserMessage(),
		})
	}
}

func (p *Pipeline) run(ctx context.Context, opts Options, em *emitter) *Error {
	canonical := classify.Canonical(opts.URL)
	cls := classify.URL(opts.URL)

	// Known URLs short-circuit before any fetching.
	if !opts.ForceReprocess {
		done, err := p.checkDuplicate(ctx, canonical, opts.Identity, em)
		if err != nil {
			return classifyErr(err, KindDatabase)
		}
		if done {
			return nil
		}
	}

	em.emit("fetch_start", map[string]any{"url": canonical})
	page, err := p.fetcher.Fetch(ctx, opts.URL)
	if err != nil {
		return classifyErr(err, KindTimeout)
	}
	em.emit("fetch_complete", map[string]any{"status": page.Status, "used_browser": page.UsedBrowser})
	if ctx.Err() != nil {
		return wrap(KindInternal, ctx.Err())
	}

	cls = classify.Page(page.FinalURL, page.HTML)

	em.emit("content_extract_start", nil)
	content := p.extractContent(cls, page)
	em.emit("content_extracted", map[string]any{
		"title": content.Title, "word_count": content.WordCount, "kind": string(cls.Kind),
	})

	mediaInfo := p.resolveMedia(ctx, cls, page, em)
	defer mediaInfo.Cleanup()
	if ctx.Err() != nil {
		return wrap(KindInternal, ctx.Err())
	}

	tr := p.acquireTranscript(ctx, cls, mediaInfo, content, em)
	if ctx.Err() != nil {
		return wrap(KindInternal, ctx.Err())
	}

	var selection *frames.Selection
	if opts.DemoVideo && mediaInfo != nil && mediaInfo.Kind == media.KindVideo {
		selection = p.selectFrames(ctx, mediaInfo, em)
		defer selection.Cleanup()
	}
	if ctx.Err() != nil {
		return wrap(KindInternal, ctx.Err())
	}

	article, embedding, perr := p.generateInsights(ctx, canonical, cls, content, mediaInfo, tr, em)
	if perr != nil {
		return perr
	}
	if ctx.Err() != nil {
		return wrap(KindInternal, ctx.Err())
	}

	return p.persist(ctx, article, embedding, mediaInfo, selection, opts, em)
}

// checkDuplicate applies the known-URL split: association present means
// duplicate_detected and stop; association absent means silently attach
// and complete.
func (p *Pipeline) checkDuplicate(ctx context.Context, canonical string, id auth.Identity, em *emitter) (bool, error) {
	existing, err := p.articles.GetByURL(ctx, canonical)
	if err != nil {
		if err == store.ErrNotFound {
			return false, nil
		}
		return false, err
	}

	has, err := p.articles.HasAssociation(ctx, existing.ID, id.UserID)
	if err != nil {
		return false, err
	}
	if has {
		em.emit("duplicate_detected", map[string]any{"article_id": existing.ID, "url": existing.URL})
		em.emit("completed", map[string]any{"already_processed": true, "article_id": existing.ID})
		return true, nil
	}

	if err := p.articles.AttachUser(ctx, existing.ID, id.UserID, id.OrganizationID); err != nil {
		return false, err
	}
	em.emit("completed", map[string]any{"already_processed": true, "article_id": existing.ID})
	return true, nil
}

// pageContent is the text side of the ingestion, from the extractor or a
// publisher scraper.
type pageContent struct {
	Title          string
	Text           string
	WordCount      int
	TranscriptText string
	AudioURL       string
	IsEarnings     bool
}

func (p *Pipeline) extractContent(cls classify.Classification, page *fetch.Result) pageContent {
	if cls.Kind == classify.KindPaywalledPublisher && p.scrapers != nil {
		if scraper, err := p.scrapers.For(page.FinalURL); err == nil {
			if res, err := scraper.Scrape(page.FinalURL, page.HTML); err == nil {
				return pageContent{
					Title:          res.Title,
					Text:           res.TranscriptText,
					WordCount:      len(res.TranscriptText) / 5,
					TranscriptText: res.TranscriptText,
					AudioURL:       res.AudioURL,
					IsEarnings:     true,
				}
			}
		}
	}

	c, err := p.extractHTML(page.HTML, page.FinalURL)
	if err != nil {
		p.log.Warn("Text extraction found no content", "url", page.FinalURL, "error", err)
		return pageContent{}
	}
	return pageContent{Title: c.Title, Text: c.Text, WordCount: c.WordCount}
}

// resolveMedia downloads the playable asset when one exists. Failures
// degrade to text-only processing with a warning event.
func (p *Pipeline) resolveMedia(ctx context.Context, cls classify.Classification, page *fetch.Result, em *emitter) *media.Info {
	if cls.Kind == classify.KindArticleHTML && cls.Platform == "" {
		return nil
	}

	em.emit("media_download_start", map[string]any{"kind": string(cls.Kind)})
	info, err := p.media.Extract(ctx, cls, page.FinalURL, page.HTML)
	if err != nil {
		if err != media.ErrNoMedia && ctx.Err() == nil {
			p.log.Warn("Media extraction failed, continuing text-only", "url", page.FinalURL, "error", err)
			em.emit("media_download_error", map[string]any{"message": userMessages[KindClassification]})
		}
		return nil
	}
	em.emit("media_download_complete", map[string]any{
		"media_kind": string(info.Kind), "size_bytes": info.SizeBytes,
	})
	return info
}

func (p *Pipeline) acquireTranscript(ctx context.Context, cls classify.Classification, info *media.Info, content pageContent, em *emitter) *transcript.Transcript {
	req := transcript.Request{CompanionText: content.TranscriptText}
	if cls.Platform == "youtube" {
		req.VideoID = cls.PlatformID
	}
	if info != nil {
		req.AudioPath = info.DownloadPath
		req.AudioContentType = info.ContentType
	} else if content.AudioURL != "" {
		req.AudioURL = content.AudioURL
	}
	if req.VideoID == "" && req.AudioPath == "" && req.AudioURL == "" {
		return &transcript.Transcript{}
	}

	em.emit("transcript_start", nil)
	tr, err := p.transcripts.Acquire(ctx, req)
	if err != nil || tr.Empty() {
		if ctx.Err() == nil {
			em.emit("transcript_complete", map[string]any{"source": "", "available": false})
		}
		return &transcript.Transcript{}
	}
	em.emit("transcript_complete", map[string]any{
		"source": string(tr.Source), "segments": len(tr.Segments), "available": true,
	})
	return tr
}

func (p *Pipeline) selectFrames(ctx context.Context, info *media.Info, em *emitter) *frames.Selection {
	em.emit("frames_start", nil)
	sel, err := p.frames.Select(ctx, info.DownloadPath)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("Frame sampling failed", "error", err)
			em.emit("frames_complete", map[string]any{"count": 0})
		}
		return nil
	}
	em.emit("frames_complete", map[string]any{"count": len(sel.Frames)})
	return sel
}

func (p *Pipeline) generateInsights(ctx context.Context, canonical string, cls classify.Classification,
	content pageContent, info *media.Info, tr *transcript.Transcript, em *emitter) (*models.Article, []float32, *Error) {

	em.emit("ai_start", nil)

	in := insight.PromptInput{
		Kind:       contextKind(content, info),
		Title:      content.Title,
		Text:       content.Text,
		Transcript: tr.Format(),
		SourceURL:  canonical,
	}

	maxSeconds := tr.Duration()
	if info != nil && info.DurationSeconds > maxSeconds {
		maxSeconds = info.DurationSeconds
	}

	result, err := p.insights.Generate(ctx, in, maxSeconds)
	if err != nil {
		return nil, nil, classifyErr(err, KindLLMParse)
	}

	article := buildArticle(canonical, cls, content, info, tr, result)

	if content.IsEarnings {
		sections, err := p.insights.GenerateEarnings(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, wrap(KindInternal, ctx.Err())
			}
			return nil, nil, classifyErr(err, KindLLMParse)
		}
		article.EarningsAnalysis = sections
		article.Topics = appendMissing(article.Topics, "earnings")
	}

	embedding, err := p.insights.Embed(ctx, embeddingText(article))
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, wrap(KindInternal, ctx.Err())
		}
		// Search degrades gracefully without a vector.
		p.log.Warn("Embedding generation failed", "url", canonical, "error", err)
	}

	em.emit("ai_complete", map[string]any{
		"key_insights": len(article.KeyInsights), "quotes": len(article.Quotes),
	})
	return article, embedding, nil
}

func (p *Pipeline) persist(ctx context.Context, article *models.Article, embedding []float32,
	info *media.Info, selection *frames.Selection, opts Options, em *emitter) *Error {

	em.emit("save_start", nil)

	outcome, err := p.articles.Save(ctx, store.SaveParams{
		Article:   article,
		UserID:    opts.Identity.UserID,
		OrgID:     opts.Identity.OrganizationID,
		Embedding: embedding,
		Reprocess: opts.ForceReprocess,
	})
	if err != nil {
		return classifyErr(err, KindDatabase)
	}

	if outcome.AlreadyExisted && !opts.ForceReprocess {
		// Lost the race to a concurrent submission; the association was
		// attached inside Save.
		em.emit("save_complete", map[string]any{"article_id": outcome.ArticleID})
		em.emit("completed", map[string]any{"already_processed": true, "article_id": outcome.ArticleID})
		return nil
	}

	if info != nil && info.DownloadPath != "" {
		if err := p.storeMedia(ctx, outcome.ArticleID, info); err != nil {
			if ctx.Err() != nil {
				return wrap(KindInternal, ctx.Err())
			}
			p.log.Warn("Long-term media upload failed", "article_id", outcome.ArticleID, "error", err)
		}
	}

	if selection != nil && len(selection.Frames) > 0 {
		uploaded, err := p.frames.Upload(ctx, selection, outcome.ArticleID)
		if err != nil {
			p.log.Warn("Frame upload incomplete", "article_id", outcome.ArticleID, "error", err)
		}
		if len(uploaded) > 0 {
			if err := p.articles.UpdateFrames(ctx, outcome.ArticleID, uploaded); err != nil {
				return classifyErr(err, KindDatabase)
			}
		}
	}

	em.emit("save_complete", map[string]any{"article_id": outcome.ArticleID})
	em.emit("completed", map[string]any{
		"article_id": outcome.ArticleID,
		"url":        articlePath(outcome.ArticleID),
	})
	return nil
}

func (p *Pipeline) storeMedia(ctx context.Context, articleID int64, info *media.Info) error {
	ext := filepath.Ext(info.DownloadPath)
	key := storage.MediaKey(storage.VisibilityPublic, articleID, ext)
	bucket := p.objects.ExpiringBucket()

	ptr, err := media.Store(ctx, p.objects, info, bucket, key, false)
	if err != nil {
		return err
	}
	return p.articles.SetMediaPointer(ctx, articleID, *ptr)
}

func contextKind(content pageContent, info *media.Info) insight.ContextKind {
	switch {
	case content.IsEarnings:
		return insight.ContextEarnings
	case info != nil && info.Kind == media.KindVideo:
		return insight.ContextVideo
	case info != nil && info.Kind == media.KindAudio:
		return insight.ContextAudio
	default:
		return insight.ContextText
	}
}

func buildArticle(canonical string, cls classify.Classification, content pageContent,
	info *media.Info, tr *transcript.Transcript, result *insight.Insights) *models.Article {

	article := &models.Article{
		URL:           canonical,
		Title:         content.Title,
		ContentSource: contentSource(content, info),
		Platform:      cls.Platform,
		WordCount:     content.WordCount,
		SummaryText:   result.Summary,
		KeyInsights:   result.KeyInsights,
		Quotes:        result.Quotes,
		Topics:        result.Topics,
	}
	if article.Platform == "" {
		article.Platform = "generic"
	}
	if article.Title == "" && info != nil {
		article.Title = info.Title
	}
	if cls.Platform == "youtube" && cls.PlatformID != "" {
		id := cls.PlatformID
		article.VideoID = &id
	}
	if content.AudioURL != "" {
		u := content.AudioURL
		article.AudioURL = &u
	}
	if !tr.Empty() {
		formatted := tr.Format()
		article.TranscriptText = &formatted
		d := int(tr.Duration())
		article.DurationSeconds = &d
	} else if info != nil && info.DurationSeconds > 0 {
		d := int(info.DurationSeconds)
		article.DurationSeconds = &d
	}
	return article
}

func contentSource(content pageContent, info *media.Info) models.ContentSource {
	switch {
	case info == nil:
		return models.ContentSourceArticle
	case info.Kind == media.KindVideo:
		return models.ContentSourceVideo
	case content.Text != "" && info.Kind == media.KindAudio:
		if content.IsEarnings {
			return models.ContentSourceAudio
		}
		return models.ContentSourceMixed
	default:
		return models.ContentSourceAudio
	}
}

func embeddingText(a *models.Article) string {
	text := a.Title + "\n" + a.SummaryText
	for _, t := range a.Topics {
		text += "\n" + t
	}
	return text
}

func appendMissing(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}

func articlePath(id int64) string {
	return "/article/" + strconv.FormatInt(id, 10)
}
