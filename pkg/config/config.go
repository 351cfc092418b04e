// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the umbrella configuration object assembled at startup and
// passed to the subsystems that need it.
type Config struct {
	Environment string
	LogLevel    slog.Level
	ListenAddr  string
	CORSOrigins []string

	// API_TOKENS maps bearer tokens to "user_id:organization_id" pairs,
	// comma-separated: "tok1=alice:acme,tok2=bob:acme".
	APITokens map[string]TokenIdentity

	LLM       LLMConfig
	STT       STTConfig
	Storage   StorageConfig
	Fetch     FetchConfig
	Frames    FramesConfig
	Discovery DiscoveryConfig
	Cleanup   CleanupConfig
}

// FramesConfig configures video frame sampling. Empty cascade paths
// disable the corresponding pigo detector.
type FramesConfig struct {
	FaceCascadePath      string
	UpperBodyCascadePath string
}

// TokenIdentity is the identity a bearer token resolves to.
type TokenIdentity struct {
	UserID         string
	OrganizationID string
}

// LLMConfig configures the insight and embedding oracle clients.
type LLMConfig struct {
	APIURL         string
	APIKey         string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// STTConfig configures the speech-to-text oracle client.
type STTConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// StorageConfig configures the S3-compatible object store and its buckets.
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ExpiringBucket  string
	PermanentBucket string
	FramesBucket    string
	PublicBaseURL   string
}

// FetchConfig configures the content fetcher.
type FetchConfig struct {
	UserAgent       string
	HTTPTimeout     time.Duration
	BrowserTimeout  time.Duration
	BrowserDomains  []string
	SessionCacheTTL time.Duration
}

// DiscoveryConfig configures the periodic discovery workers.
type DiscoveryConfig struct {
	FeedInterval       time.Duration
	HistoryInterval    time.Duration
	PostRecencyDays    int
	MaxEntriesPerFeed  int
	HistoryAPIURL      string
	HistoryAPIKey      string
	HistoryAPIUsername string
}

// CleanupConfig configures the media retention worker.
type CleanupConfig struct {
	RetentionDays int
	Interval      time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),
		LLM: LLMConfig{
			APIURL:         getEnv("LLM_API_URL", "https://api.anthropic.com"),
			APIKey:         os.Getenv("LLM_API_KEY"),
			Model:          getEnv("LLM_MODEL", "claude-sonnet-4-5"),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Timeout:        getDuration("LLM_TIMEOUT", 300*time.Second),
		},
		STT: STTConfig{
			APIURL:  getEnv("STT_API_URL", "https://api.deepgram.com"),
			APIKey:  os.Getenv("STT_API_KEY"),
			Timeout: getDuration("STT_TIMEOUT", 300*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          getEnv("S3_REGION", "auto"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			ExpiringBucket:  getEnv("S3_EXPIRING_BUCKET", "article-media"),
			PermanentBucket: getEnv("S3_PERMANENT_BUCKET", "uploaded-media"),
			FramesBucket:    getEnv("S3_FRAMES_BUCKET", "video-frames"),
			PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		},
		Fetch: FetchConfig{
			UserAgent: getEnv("USER_AGENT",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"),
			HTTPTimeout:     getDuration("FETCH_HTTP_TIMEOUT", 30*time.Second),
			BrowserTimeout:  getDuration("FETCH_BROWSER_TIMEOUT", 30*time.Second),
			BrowserDomains:  splitList(os.Getenv("BROWSER_FETCH_DOMAINS")),
			SessionCacheTTL: getDuration("SESSION_CACHE_TTL", 5*time.Minute),
		},
		Frames: FramesConfig{
			FaceCascadePath:      os.Getenv("FACE_CASCADE_PATH"),
			UpperBodyCascadePath: os.Getenv("UPPERBODY_CASCADE_PATH"),
		},
		Discovery: DiscoveryConfig{
			FeedInterval:       getDuration("DISCOVERY_FEED_INTERVAL", 30*time.Minute),
			HistoryInterval:    getDuration("DISCOVERY_HISTORY_INTERVAL", 1*time.Hour),
			PostRecencyDays:    getInt("RSS_POST_RECENCY_DAYS", 3),
			MaxEntriesPerFeed:  getInt("RSS_MAX_ENTRIES", 10),
			HistoryAPIURL:      getEnv("HISTORY_API_URL", "https://api.pocketcasts.com"),
			HistoryAPIKey:      os.Getenv("HISTORY_API_KEY"),
			HistoryAPIUsername: os.Getenv("HISTORY_API_USERNAME"),
		},
		Cleanup: CleanupConfig{
			RetentionDays: getInt("MEDIA_RETENTION_DAYS", 30),
			Interval:      getDuration("CLEANUP_INTERVAL", 6*time.Hour),
		},
	}

	tokens, err := parseAPITokens(os.Getenv("API_TOKENS"))
	if err != nil {
		return nil, err
	}
	cfg.APITokens = tokens

	return cfg, nil
}

// parseAPITokens parses "token=user:org,token2=user2:org2". The org part
// is optional.
func parseAPITokens(raw string) (map[string]TokenIdentity, error) {
	tokens := make(map[string]TokenIdentity)
	if raw == "" {
		return tokens, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, identity, ok := strings.Cut(pair, "=")
		if !ok || token == "" || identity == "" {
			return nil, fmt.Errorf("invalid API_TOKENS entry %q", pair)
		}
		userID, orgID, _ := strings.Cut(identity, ":")
		if userID == "" {
			return nil, fmt.Errorf("invalid API_TOKENS entry %q: empty user", pair)
		}
		tokens[token] = TokenIdentity{UserID: userID, OrganizationID: orgID}
	}
	return tokens, nil
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
