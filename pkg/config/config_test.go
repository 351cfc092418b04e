package config

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30, cfg.Cleanup.RetentionDays)
	assert.Equal(t, 3, cfg.Discovery.PostRecencyDays)
	assert.Equal(t, 10, cfg.Discovery.MaxEntriesPerFeed)
	assert.Equal(t, "article-media", cfg.Storage.ExpiringBucket)
	assert.Equal(t, "uploaded-media", cfg.Storage.PermanentBucket)
	assert.Equal(t, "video-frames", cfg.Storage.FramesBucket)
	assert.Empty(t, cfg.APITokens)
	assert.Empty(t, cfg.Fetch.BrowserDomains)
}

func TestLoad_Overrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("MEDIA_RETENTION_DAYS", "7")
	os.Setenv("BROWSER_FETCH_DOMAINS", "bloomberg.com, wsj.com")
	os.Setenv("CORS_ORIGINS", "https://app.example.com")
	t.Cleanup(os.Clearenv)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 7, cfg.Cleanup.RetentionDays)
	assert.Equal(t, []string{"bloomberg.com", "wsj.com"}, cfg.Fetch.BrowserDomains)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
}

func TestParseAPITokens(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]TokenIdentity
		wantErr bool
	}{
		{
			name: "empty",
			raw:  "",
			want: map[string]TokenIdentity{},
		},
		{
			name: "user and org",
			raw:  "tok1=alice:acme,tok2=bob:acme",
			want: map[string]TokenIdentity{
				"tok1": {UserID: "alice", OrganizationID: "acme"},
				"tok2": {UserID: "bob", OrganizationID: "acme"},
			},
		},
		{
			name: "user only",
			raw:  "tok=carol",
			want: map[string]TokenIdentity{"tok": {UserID: "carol"}},
		},
		{
			name:    "missing identity",
			raw:     "tok=",
			wantErr: true,
		},
		{
			name:    "missing separator",
			raw:     "garbage",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAPITokens(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
