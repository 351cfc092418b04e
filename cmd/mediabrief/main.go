// mediabrief server — ingests URLs into insight artifacts, runs the
// discovery and retention workers, and serves the HTTP API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mediabrief/mediabrief/pkg/api"
	"github.com/mediabrief/mediabrief/pkg/auth"
	"github.com/mediabrief/mediabrief/pkg/cleanup"
	"github.com/mediabrief/mediabrief/pkg/config"
	"github.com/mediabrief/mediabrief/pkg/database"
	"github.com/mediabrief/mediabrief/pkg/discovery"
	"github.com/mediabrief/mediabrief/pkg/fetch"
	"github.com/mediabrief/mediabrief/pkg/frames"
	"github.com/mediabrief/mediabrief/pkg/insight"
	"github.com/mediabrief/mediabrief/pkg/media"
	"github.com/mediabrief/mediabrief/pkg/pipeline"
	"github.com/mediabrief/mediabrief/pkg/scrape"
	"github.com/mediabrief/mediabrief/pkg/session"
	"github.com/mediabrief/mediabrief/pkg/storage"
	"github.com/mediabrief/mediabrief/pkg/store"
	"github.com/mediabrief/mediabrief/pkg/stt"
	"github.com/mediabrief/mediabrief/pkg/transcript"
	"github.com/mediabrief/mediabrief/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))
	slog.Info("Starting mediabrief",
		"version", version.Full(),
		"environment", cfg.Environment,
		"addr", cfg.ListenAddr)

	ctx := context.Background()

	// Database and stores.
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	stores := store.New(dbClient.DB())
	slog.Info("Connected to PostgreSQL database")

	// Object storage.
	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	// Fetching, classification inputs.
	sessions := session.NewCache(stores.Sessions, cfg.Fetch.SessionCacheTTL)
	fetcher := fetch.New(cfg.Fetch, sessions)
	defer func() {
		if err := fetcher.Close(); err != nil {
			slog.Error("Error closing fetcher", "error", err)
		}
	}()

	mediaExtractor := media.NewExtractor(
		&http.Client{Timeout: 10 * time.Minute}, cfg.Fetch.UserAgent)

	// Transcripts.
	transcripts := transcript.NewAcquirer(transcript.NewYouTubeClient(), stt.NewClient(cfg.STT))

	// Frame sampling.
	detector, err := frames.NewDetector(cfg.Frames.FaceCascadePath, cfg.Frames.UpperBodyCascadePath)
	if err != nil {
		slog.Error("Failed to load detection cascades", "error", err)
		os.Exit(1)
	}
	sampler := frames.NewSampler(objects, detector)

	// Insight oracle clients.
	insights := insight.NewGenerator(
		insight.NewLLMClient(cfg.LLM),
		insight.NewEmbeddingClient(cfg.LLM, getEnv("EMBEDDING_API_URL", "https://api.openai.com")))

	pipe := pipeline.New(fetcher, scrape.NewRegistry(), mediaExtractor, transcripts,
		sampler, insights, stores.Articles, stores.PrivateArticles, objects)

	// Background workers.
	discoverySvc := discovery.New(cfg.Discovery, stores.Sources, stores.Queue, stores.Channels)
	discoveryWorker := discovery.NewWorker(discoverySvc)
	discoveryWorker.Start(ctx)

	cleanupSvc := cleanup.NewService(cfg.Cleanup, objects, stores.Articles, stores.PrivateArticles)
	cleanupSvc.Start(ctx)

	// HTTP server.
	tokens := make(map[string]auth.Identity, len(cfg.APITokens))
	for token, id := range cfg.APITokens {
		tokens[token] = auth.Identity{UserID: id.UserID, OrganizationID: id.OrganizationID}
	}

	server := api.NewServer(cfg, api.Deps{
		Verifier:  auth.NewStaticVerifier(tokens),
		Runner:    pipe,
		Articles:  stores.Articles,
		Private:   stores.PrivateArticles,
		Sources:   stores.Sources,
		Queue:     stores.Queue,
		Objects:   objects,
		Discovery: discoverySvc,
		Sessions:  sessions,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	slog.Info("mediabrief started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Stop accepting requests first, then the workers.
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}

	discoveryWorker.Stop()
	cleanupSvc.Stop()

	slog.Info("mediabrief stopped")
}
