package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabrief/mediabrief/pkg/auth"
	"github.com/mediabrief/mediabrief/pkg/classify"
	"github.com/mediabrief/mediabrief/pkg/extract"
	"github.com/mediabrief/mediabrief/pkg/fetch"
	"github.com/mediabrief/mediabrief/pkg/frames"
	"github.com/mediabrief/mediabrief/pkg/insight"
	"github.com/mediabrief/mediabrief/pkg/media"
	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/pipeline/bus"
	"github.com/mediabrief/mediabrief/pkg/store"
	"github.com/mediabrief/mediabrief/pkg/transcript"
)

// ---- fakes ----

type fakeFetcher struct {
	html string
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*fetch.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.Result{FinalURL: rawURL, HTML: f.html, Status: 200}, nil
}

type fakeMedia struct {
	info *media.Info
	err  error
}

func (f *fakeMedia) Extract(_ context.Context, _ classify.Classification, _, _ string) (*media.Info, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.info == nil {
		return nil, media.ErrNoMedia
	}
	return f.info, nil
}

func (f *fakeMedia) Download(_ context.Context, _ string, kind media.Kind) (*media.Info, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &media.Info{Kind: kind, DownloadPath: "/tmp/fake"}, nil
}

type fakeTranscripts struct {
	transcript *transcript.Transcript
}

func (f *fakeTranscripts) Acquire(_ context.Context, _ transcript.Request) (*transcript.Transcript, error) {
	if f.transcript == nil {
		return &transcript.Transcript{}, nil
	}
	return f.transcript, nil
}

type fakeFrames struct{}

func (f *fakeFrames) Select(_ context.Context, _ string) (*frames.Selection, error) {
	return &frames.Selection{}, nil
}

func (f *fakeFrames) Upload(_ context.Context, _ *frames.Selection, _ int64) ([]models.Frame, error) {
	return nil, nil
}

func (f *fakeFrames) Sample(_ context.Context, _ string, _ int64) ([]models.Frame, error) {
	return []models.Frame{{StoragePath: "video-frames/article_1/frame_30.jpg", TimestampSeconds: 30}}, nil
}

type fakeInsights struct {
	generateErr error
	embedErr    error
}

func (f *fakeInsights) Generate(_ context.Context, in insight.PromptInput, _ float64) (*insight.Insights, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	out := &insight.Insights{
		Summary: "a summary",
		Topics:  []string{"topic-a", "topic-b"},
	}
	ki := models.KeyInsight{Insight: "something notable"}
	if in.HasTranscript() {
		ts := 42.0
		formatted := "[00:42]"
		ki.TimestampSeconds = &ts
		ki.TimeFormatted = &formatted
	}
	out.KeyInsights = []models.KeyInsight{ki}
	return out, nil
}

func (f *fakeInsights) GenerateEarnings(_ context.Context, _ insight.PromptInput) (map[string]any, error) {
	return map[string]any{
		"key_metrics": []string{"revenue up 12%"}, "business_highlights": []string{},
		"guidance": []string{}, "risks_concerns": []string{}, "positives": []string{},
		"notable_quotes": []map[string]string{},
	}, nil
}

func (f *fakeInsights) GenerateThemed(_ context.Context, _ insight.PromptInput, themes []string) (map[string]any, error) {
	out := map[string]any{}
	for _, t := range themes {
		out[t] = []string{}
	}
	return out, nil
}

func (f *fakeInsights) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return make([]float32, 384), nil
}

// fakeArticles is an in-memory ArticleRepo keyed by canonical URL.
type fakeArticles struct {
	mu           sync.Mutex
	nextID       int64
	byURL        map[string]*models.Article
	associations map[string]bool // "id:user"
	saveErr      error
	frames       map[int64][]models.Frame
	embeddings   map[int64][]float32
	transcripts  map[int64]string
	summaries    map[int64]string
}

func newFakeArticles() *fakeArticles {
	return &fakeArticles{
		nextID:       1,
		byURL:        map[string]*models.Article{},
		associations: map[string]bool{},
		frames:       map[int64][]models.Frame{},
		embeddings:   map[int64][]float32{},
		transcripts:  map[int64]string{},
		summaries:    map[int64]string{},
	}
}

func assocKey(id int64, user string) string { return fmt.Sprintf("%d:%s", id, user) }

func (f *fakeArticles) GetByURL(_ context.Context, url string) (*models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byURL[url]; ok {
		return a, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeArticles) GetByID(_ context.Context, id int64) (*models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byURL {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeArticles) HasAssociation(_ context.Context, id int64, user string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.associations[assocKey(id, user)], nil
}

func (f *fakeArticles) AttachUser(_ context.Context, id int64, user, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.associations[assocKey(id, user)] = true
	return nil
}

func (f *fakeArticles) Save(_ context.Context, p store.SaveParams) (store.SaveOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return store.SaveOutcome{}, f.saveErr
	}
	if existing, ok := f.byURL[p.Article.URL]; ok && !p.Reprocess {
		if p.UserID != "" {
			f.associations[assocKey(existing.ID, p.UserID)] = true
		}
		return store.SaveOutcome{ArticleID: existing.ID, AlreadyExisted: true}, nil
	}
	a := *p.Article
	a.ID = f.nextID
	f.nextID++
	f.byURL[a.URL] = &a
	if p.UserID != "" {
		f.associations[assocKey(a.ID, p.UserID)] = true
	}
	f.embeddings[a.ID] = p.Embedding
	return store.SaveOutcome{ArticleID: a.ID}, nil
}

func (f *fakeArticles) SetMediaPointer(_ context.Context, _ int64, _ models.MediaPointer) error {
	return nil
}

func (f *fakeArticles) UpdateInsights(_ context.Context, id int64, summary string, _ *string, _ []models.KeyInsight, _ []models.Quote, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[id] = summary
	return nil
}

func (f *fakeArticles) UpdateEmbedding(_ context.Context, id int64, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeddings[id] = embedding
	return nil
}

func (f *fakeArticles) UpdateTranscript(_ context.Context, id int64, tr string, _ *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts[id] = tr
	return nil
}

func (f *fakeArticles) UpdateFrames(_ context.Context, id int64, fr []models.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames[id] = fr
	return nil
}

type fakePrivate struct {
	article *models.PrivateArticle
	themed  map[string]any
}

func (f *fakePrivate) GetByID(_ context.Context, _ int64) (*models.PrivateArticle, error) {
	if f.article == nil {
		return nil, store.ErrNotFound
	}
	return f.article, nil
}

func (f *fakePrivate) UpdateInsights(_ context.Context, _ int64, _ string, _ *string, _ []models.KeyInsight, _ []models.Quote, _ []string) error {
	return nil
}

func (f *fakePrivate) UpdateThemedInsights(_ context.Context, _ int64, themed map[string]any) error {
	f.themed = themed
	return nil
}

func (f *fakePrivate) UpdateEmbedding(_ context.Context, _ int64, _ []float32) error { return nil }
func (f *fakePrivate) UpdateTranscript(_ context.Context, _ int64, _ string, _ *int) error {
	return nil
}
func (f *fakePrivate) UpdateFrames(_ context.Context, _ int64, _ []models.Frame) error { return nil }

type fakeObjects struct{}

func (f *fakeObjects) Upload(_ context.Context, _, _ string, _ io.Reader, _ string) error {
	return nil
}
func (f *fakeObjects) SignedURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + bucket + "/" + key, nil
}
func (f *fakeObjects) PublicURL(bucket, key string) string {
	return "https://cdn.example.com/" + bucket + "/" + key
}
func (f *fakeObjects) ExpiringBucket() string  { return "article-media" }
func (f *fakeObjects) PermanentBucket() string { return "uploaded-media" }

// ---- helpers ----

type pipelineFixture struct {
	pipeline *Pipeline
	articles *fakeArticles
	private  *fakePrivate
	insights *fakeInsights
	fetcher  *fakeFetcher
	media    *fakeMedia
}

func newFixture() *pipelineFixture {
	fx := &pipelineFixture{
		articles: newFakeArticles(),
		private:  &fakePrivate{},
		insights: &fakeInsights{},
		fetcher:  &fakeFetcher{html: "<html><body><article><p>" + strings.Repeat("words and more words. ", 30) + "</p></article></body></html>"},
		media:    &fakeMedia{},
	}
	fx.pipeline = New(fx.fetcher, nil, fx.media, &fakeTranscripts{}, &fakeFrames{},
		fx.insights, fx.articles, fx.private, &fakeObjects{})
	fx.pipeline.extractHTML = func(_, _ string) (*extract.Content, error) {
		return &extract.Content{Title: "A Post", Text: "body text", WordCount: 120}, nil
	}
	return fx
}

func collectEvents(t *testing.T, run func(b *bus.Bus)) []bus.Event {
	t.Helper()
	b := bus.New()
	done := make(chan struct{})
	go func() {
		run(b)
		close(done)
	}()

	var events []bus.Event
	for {
		ev, err := b.Next(context.Background(), 5*time.Second)
		if err != nil {
			break
		}
		events = append(events, ev)
	}
	<-done
	return events
}

func eventNames(events []bus.Event) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	return names
}

func findEvent(events []bus.Event, name string) (bus.Event, bool) {
	for _, ev := range events {
		if ev.Name == name {
			return ev, true
		}
	}
	return bus.Event{}, false
}

// ---- ingestion ----

func TestRunTextArticleHappyPath(t *testing.T) {
	fx := newFixture()
	opts := Options{URL: "https://example.com/post?utm=x", Identity: auth.Identity{UserID: "alice"}}

	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Run(context.Background(), opts, b)
	})

	names := eventNames(events)
	assert.Equal(t, []string{
		"ping", "started", "fetch_start", "fetch_complete",
		"content_extract_start", "content_extracted",
		"ai_start", "ai_complete", "save_start", "save_complete", "completed",
	}, names)

	// Canonical URL stored, query stripped.
	saved, err := fx.articles.GetByURL(context.Background(), "https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, "a summary", saved.SummaryText)
	assert.Equal(t, models.ContentSourceArticle, saved.ContentSource)
	assert.NotEmpty(t, saved.Topics)
	assert.Len(t, fx.articles.embeddings[saved.ID], 384)

	completed, _ := findEvent(events, "completed")
	assert.Equal(t, "/article/1", completed.Payload["url"])

	// Every payload carries elapsed.
	for _, ev := range events {
		assert.Contains(t, ev.Payload, "elapsed", "event %s", ev.Name)
	}
}

func TestRunEventOrdering(t *testing.T) {
	fx := newFixture()
	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Run(context.Background(), Options{URL: "https://example.com/p", Identity: auth.Identity{UserID: "u"}}, b)
	})

	names := eventNames(events)
	started := indexOf(names, "started")
	require.GreaterOrEqual(t, started, 0)
	for i, name := range names {
		if strings.HasSuffix(name, "_start") {
			assert.Greater(t, i, started, "%s after started", name)
			complete := strings.TrimSuffix(name, "_start") + "_complete"
			if complete == "content_extract_complete" {
				complete = "content_extracted"
			}
			assert.Greater(t, indexOf(names, complete), i, "%s before %s", name, complete)
		}
	}
	assert.Equal(t, "completed", names[len(names)-1])
}

func indexOf(list []string, want string) int {
	for i, v := range list {
		if v == want {
			return i
		}
	}
	return -1
}

func TestRunDuplicateSameUser(t *testing.T) {
	fx := newFixture()
	opts := Options{URL: "https://example.com/post", Identity: auth.Identity{UserID: "alice"}}

	collectEvents(t, func(b *bus.Bus) { fx.pipeline.Run(context.Background(), opts, b) })
	events := collectEvents(t, func(b *bus.Bus) { fx.pipeline.Run(context.Background(), opts, b) })

	names := eventNames(events)
	assert.Equal(t, []string{"ping", "started", "duplicate_detected", "completed"}, names)

	completed, _ := findEvent(events, "completed")
	assert.Equal(t, true, completed.Payload["already_processed"])

	// Exactly one row, one association.
	assert.Len(t, fx.articles.byURL, 1)
	count := 0
	for _, v := range fx.articles.associations {
		if v {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRunDuplicateNewUserAttachesSilently(t *testing.T) {
	fx := newFixture()
	collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Run(context.Background(), Options{URL: "https://example.com/post", Identity: auth.Identity{UserID: "alice"}}, b)
	})

	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Run(context.Background(), Options{URL: "https://example.com/post", Identity: auth.Identity{UserID: "bob"}}, b)
	})

	names := eventNames(events)
	assert.Equal(t, []string{"ping", "started", "completed"}, names, "no duplicate_detected for a new user")

	completed, _ := findEvent(events, "completed")
	assert.Equal(t, true, completed.Payload["already_processed"])
	assert.Contains(t, completed.Payload, "article_id")

	assert.Len(t, fx.articles.byURL, 1)
	has, _ := fx.articles.HasAssociation(context.Background(), 1, "bob")
	assert.True(t, has)
}

func TestRunCanonicalizationIdempotent(t *testing.T) {
	fx := newFixture()
	collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Run(context.Background(), Options{URL: "https://example.com/post", Identity: auth.Identity{UserID: "alice"}}, b)
	})
	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Run(context.Background(), Options{URL: "https://example.com/post?utm_source=x#frag", Identity: auth.Identity{UserID: "alice"}}, b)
	})

	completed, _ := findEvent(events, "completed")
	assert.Equal(t, true, completed.Payload["already_processed"])
	assert.Len(t, fx.articles.byURL, 1)
}

func TestRunFetchErrorEmitsErrorEvent(t *testing.T) {
	fx := newFixture()
	fx.fetcher.err = fetch.ErrTimeout

	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Run(context.Background(), Options{URL: "https://example.com/slow", Identity: auth.Identity{UserID: "u"}}, b)
	})

	names := eventNames(events)
	assert.Equal(t, "error", names[len(names)-1])
	errEvent, _ := findEvent(events, "error")
	assert.Equal(t, "request timed out, try again", errEvent.Payload["message"])
	_, completed := findEvent(events, "completed")
	assert.False(t, completed)
	assert.Empty(t, fx.articles.byURL)
}

func TestRunCancellationEmitsNoErrorAndNoRow(t *testing.T) {
	fx := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Run(ctx, Options{URL: "https://example.com/post", Identity: auth.Identity{UserID: "u"}}, b)
	})

	_, hasError := findEvent(events, "error")
	assert.False(t, hasError, "cancellation is not an error")
	_, hasCompleted := findEvent(events, "completed")
	assert.False(t, hasCompleted)
	assert.Empty(t, fx.articles.byURL, "no partial row survives cancellation")
}

func TestRunInsightFailure(t *testing.T) {
	fx := newFixture()
	fx.insights.generateErr = errors.New("model returned garbage")

	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Run(context.Background(), Options{URL: "https://example.com/post", Identity: auth.Identity{UserID: "u"}}, b)
	})

	errEvent, ok := findEvent(events, "error")
	require.True(t, ok)
	assert.Equal(t, "AI service returned an unexpected response", errEvent.Payload["message"])
	assert.Empty(t, fx.articles.byURL)
}

func TestRunEmbeddingFailureDegrades(t *testing.T) {
	fx := newFixture()
	fx.insights.embedErr = errors.New("embeddings down")

	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Run(context.Background(), Options{URL: "https://example.com/post", Identity: auth.Identity{UserID: "u"}}, b)
	})

	_, ok := findEvent(events, "completed")
	assert.True(t, ok, "embedding failure does not fail the pipeline")
	assert.Len(t, fx.articles.byURL, 1)
}

// ---- reprocess ----

func seedArticle(fx *pipelineFixture, withMedia bool, source models.ContentSource) *models.Article {
	a := &models.Article{
		ID: 1, URL: "https://example.com/post", Title: "Seed",
		ContentSource: source, SummaryText: "old summary",
	}
	if withMedia {
		bucket, path := "article-media", "article-media/public/1/media.mp4"
		a.Media.Bucket = &bucket
		a.Media.Path = &path
	}
	fx.articles.byURL[a.URL] = a
	fx.articles.nextID = 2
	return a
}

func TestReprocessEmbeddingOnly(t *testing.T) {
	fx := newFixture()
	seedArticle(fx, false, models.ContentSourceArticle)

	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Reprocess(context.Background(), ReprocessOptions{
			ArticleID: 1, Steps: []ReprocessStep{StepEmbedding},
		}, b)
	})

	names := eventNames(events)
	assert.Contains(t, names, "embedding_start")
	assert.Contains(t, names, "embedding_complete")
	for _, name := range names {
		assert.NotContains(t, name, "ai_summary")
		assert.NotContains(t, name, "transcript")
	}

	// Embedding updated, summary untouched.
	assert.Len(t, fx.articles.embeddings[1], 384)
	assert.NotContains(t, fx.articles.summaries, int64(1))

	completed, _ := findEvent(events, "completed")
	results := completed.Payload["results"].(map[string]any)
	assert.Contains(t, results, "embedding")
}

func TestReprocessMediaStepsSkippedWithoutMedia(t *testing.T) {
	fx := newFixture()
	seedArticle(fx, false, models.ContentSourceVideo)

	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Reprocess(context.Background(), ReprocessOptions{
			ArticleID: 1, Steps: []ReprocessStep{StepTranscript, StepVideoFrames},
		}, b)
	})

	names := eventNames(events)
	assert.Contains(t, names, "transcript_skipped")
	assert.Contains(t, names, "video_frames_skipped")
	assert.NotContains(t, names, "transcript_start")

	skipped, _ := findEvent(events, "transcript_skipped")
	assert.Equal(t, reasonNoMedia, skipped.Payload["reason"])

	// Nothing mutated.
	assert.Empty(t, fx.articles.transcripts)
	assert.Empty(t, fx.articles.frames)
}

func TestReprocessThemedInsightsPrivateOnly(t *testing.T) {
	fx := newFixture()
	seedArticle(fx, false, models.ContentSourceArticle)

	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Reprocess(context.Background(), ReprocessOptions{
			ArticleID: 1, Steps: []ReprocessStep{StepThemedInsights},
		}, b)
	})

	skipped, ok := findEvent(events, "themed_insights_skipped")
	require.True(t, ok)
	assert.Equal(t, reasonPrivateOnly, skipped.Payload["reason"])
}

func TestReprocessThemedInsightsOnPrivateArticle(t *testing.T) {
	fx := newFixture()
	fx.private.article = &models.PrivateArticle{
		Article:        models.Article{ID: 3, URL: "https://example.com/priv", SummaryText: "s"},
		OrganizationID: "acme",
	}

	events := collectEvents(t, func(b *bus.Bus) {
		fx.pipeline.Reprocess(context.Background(), ReprocessOptions{
			ArticleID: 3, IsPrivate: true, Steps: []ReprocessStep{StepThemedInsights},
		}, b)
	})

	names := eventNames(events)
	assert.Contains(t, names, "themed_insights_start")
	assert.Contains(t, names, "themed_insights_complete")
	require.NotNil(t, fx.private.themed)
	assert.Contains(t, fx.private.themed, "key_metrics")
}

func TestReprocessInfo(t *testing.T) {
	fx := newFixture()
	seedArticle(fx, false, models.ContentSourceVideo)

	statuses, err := fx.pipeline.ReprocessInfo(context.Background(), 1, false)
	require.NoError(t, err)

	byStep := map[ReprocessStep]StepStatus{}
	for _, s := range statuses {
		byStep[s.Step] = s
	}
	assert.True(t, byStep[StepAISummary].Available)
	assert.True(t, byStep[StepEmbedding].Available)
	assert.False(t, byStep[StepTranscript].Available)
	assert.Equal(t, reasonNoMedia, byStep[StepTranscript].Reason)
	assert.False(t, byStep[StepThemedInsights].Available)
	assert.Equal(t, reasonPrivateOnly, byStep[StepThemedInsights].Reason)
}

func TestParseSteps(t *testing.T) {
	steps, err := ParseSteps([]string{"embedding", "ai_summary"})
	require.NoError(t, err)
	assert.Equal(t, []ReprocessStep{StepEmbedding, StepAISummary}, steps)

	_, err = ParseSteps([]string{"nonsense"})
	assert.Error(t, err)
}

func TestUserMessages(t *testing.T) {
	e := classifyErr(fetch.ErrAuthRequired, KindInternal)
	assert.Equal(t, KindAuthRequired, e.Kind)
	assert.Equal(t, "content requires refreshed authentication", e.UserMessage())

	e = classifyErr(errors.New("boom"), KindDatabase)
	assert.Equal(t, "database error", e.UserMessage())
}
