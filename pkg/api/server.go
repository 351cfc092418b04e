// Package api exposes the HTTP surface: SSE ingestion and reprocess
// streams, discovery control, source subscriptions, and media upload.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediabrief/mediabrief/pkg/auth"
	"github.com/mediabrief/mediabrief/pkg/config"
	"github.com/mediabrief/mediabrief/pkg/discovery"
	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/pipeline"
	"github.com/mediabrief/mediabrief/pkg/pipeline/bus"
	"github.com/mediabrief/mediabrief/pkg/session"
	"github.com/mediabrief/mediabrief/pkg/store"
)

// Runner is the pipeline surface the handlers drive.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options, b *bus.Bus)
	Reprocess(ctx context.Context, opts pipeline.ReprocessOptions, b *bus.Bus)
	ReprocessInfo(ctx context.Context, articleID int64, isPrivate bool) ([]pipeline.StepStatus, error)
}

// ArticleLister pages the public article listing.
type ArticleLister interface {
	List(ctx context.Context, search string, limit, offset int) ([]store.ListItem, error)
}

// PrivateLister pages the org-scoped article listing.
type PrivateLister interface {
	List(ctx context.Context, orgID, search string, limit, offset int) ([]store.ListItem, error)
}

// SourceRepo persists content-source subscriptions.
type SourceRepo interface {
	Create(ctx context.Context, src *models.ContentSourceRow) (*models.ContentSourceRow, error)
	ListByUser(ctx context.Context, userID string) ([]models.ContentSourceRow, error)
	Update(ctx context.Context, id int64, userID string, p store.UpdateParams) (*models.ContentSourceRow, error)
	Delete(ctx context.Context, id int64, userID string) error
}

// QueueRepo reads and transitions discovered queue rows.
type QueueRepo interface {
	List(ctx context.Context, contentType models.QueueContentType, status models.QueueStatus, limit int) ([]models.QueueItem, error)
	UpdateStatus(ctx context.Context, id int64, status models.QueueStatus) error
}

// ObjectUploader is the storage surface for the upload endpoint.
type ObjectUploader interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	PublicURL(bucket, key string) string
	PermanentBucket() string
}

// DiscoveryService triggers sweeps and previews feeds on demand.
type DiscoveryService interface {
	CheckFeeds(ctx context.Context) (discovery.Summary, error)
	CheckHistory(ctx context.Context) (discovery.Summary, error)
	DiscoverFeed(ctx context.Context, rawURL string) (*discovery.FeedInfo, error)
}

// SessionReader exposes the browser-session snapshot for health checks.
type SessionReader interface {
	Get(ctx context.Context) (*session.Snapshot, error)
}

// Deps bundles the server's collaborators.
type Deps struct {
	Verifier  auth.Verifier
	Runner    Runner
	Articles  ArticleLister
	Private   PrivateLister
	Sources   SourceRepo
	Queue     QueueRepo
	Objects   ObjectUploader
	Discovery DiscoveryService
	Sessions  SessionReader
}

// Server is the HTTP API server.
type Server struct {
	cfg  *config.Config
	deps Deps

	httpServer *http.Server
	log        *slog.Logger
}

// NewServer builds the server and its routes.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  slog.With("component", "api"),
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log), securityHeaders(), corsMiddleware(cfg.CORSOrigins))
	s.registerRoutes(router)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.health)

	authed := router.Group("/", requireAuth(s.deps.Verifier))
	{
		authed.GET("/process", s.processStream)

		authed.POST("/reprocess", s.reprocessStream)
		authed.GET("/reprocess/info", s.reprocessInfo)
		authed.GET("/reprocess/list", s.reprocessList)

		authed.POST("/upload-media", s.uploadMedia)

		authed.GET("/sources", s.listSources)
		authed.POST("/sources", s.createSource)
		authed.PATCH("/sources/:id", s.updateSource)
		authed.DELETE("/sources/:id", s.deleteSource)
		authed.POST("/sources/discover", s.discoverSource)

		authed.POST("/podcasts/check", s.checkPodcasts)
		authed.POST("/posts/check", s.checkPosts)
		authed.GET("/podcasts/discovered", s.discoveredPodcasts)
		authed.GET("/posts/discovered", s.discoveredPosts)
		authed.PATCH("/podcasts/discovered/:id", s.updateQueueStatus)
		authed.PATCH("/posts/discovered/:id", s.updateQueueStatus)
	}

	router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not_found", "route not found")
	})
}

// Start runs the HTTP server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info("API server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}
