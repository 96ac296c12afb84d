package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 5001},
		Storage: StorageConfig{
			DownloadDir: "downloads",
			LinksFile:   "downloaded_links.json",
		},
		Tools: ToolsConfig{
			YtDLPPath:       "yt-dlp",
			MetadataTimeout: 15 * time.Second,
			DownloadTimeout: 30 * time.Second,
			ScrapeTimeout:   10 * time.Second,
		},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "missing download dir",
			mutate:  func(c *Config) { c.Storage.DownloadDir = "" },
			wantErr: true,
		},
		{
			name:    "missing links file",
			mutate:  func(c *Config) { c.Storage.LinksFile = "" },
			wantErr: true,
		},
		{
			name:    "zero download timeout",
			mutate:  func(c *Config) { c.Tools.DownloadTimeout = 0 },
			wantErr: true,
		},
		{
			name: "drive enabled without token path",
			mutate: func(c *Config) {
				c.Drive = DriveConfig{Enabled: true, ClientSecretsPath: "cs.json", DocumentName: "d", FolderName: "f"}
			},
			wantErr: true,
		},
		{
			name: "drive enabled complete",
			mutate: func(c *Config) {
				c.Drive = DriveConfig{Enabled: true, ClientSecretsPath: "cs.json", TokenPath: "t.json", DocumentName: "d", FolderName: "f"}
			},
			wantErr: false,
		},
		{
			name: "youtube bad privacy",
			mutate: func(c *Config) {
				c.YouTube = YouTubeConfig{Enabled: true, ClientSecretsPath: "cs.json", TokenPath: "y.json", Privacy: "friends"}
			},
			wantErr: true,
		},
		{
			name: "youtube unlisted",
			mutate: func(c *Config) {
				c.YouTube = YouTubeConfig{Enabled: true, ClientSecretsPath: "cs.json", TokenPath: "y.json", Privacy: "unlisted"}
			},
			wantErr: false,
		},
		{
			name: "youtube disabled ignores privacy",
			mutate: func(c *Config) {
				c.YouTube = YouTubeConfig{Privacy: "friends"}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 5001}, "0.0.0.0:5001"},
		{"localhost", ServerConfig{Host: "localhost", Port: 8080}, "localhost:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Address())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, "downloads", cfg.Storage.DownloadDir)
	assert.Equal(t, "downloaded_links.json", cfg.Storage.LinksFile)
	assert.Equal(t, 15*time.Second, cfg.Tools.MetadataTimeout)
	assert.Equal(t, 30*time.Second, cfg.Tools.DownloadTimeout)
	assert.Equal(t, "best", cfg.Tools.Format)
	assert.Equal(t, "instagram_downloads.json", cfg.Drive.DocumentName)
	assert.Equal(t, "InstagramVideos", cfg.Drive.FolderName)
	assert.Equal(t, "22", cfg.YouTube.CategoryID)
	assert.Empty(t, cfg.Instagram.Username)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
server:
  port: 8080
  api_key: "yaml-api-key"
storage:
  download_dir: "/var/reels"
drive:
  enabled: true
  folder_name: "Reels"
youtube:
  enabled: true
  privacy: "unlisted"
instagram:
  username: "someone"
  password: "secret"
security:
  token_passphrase: "pass"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "yaml-api-key", cfg.Server.APIKey)
	assert.Equal(t, "/var/reels", cfg.Storage.DownloadDir)
	assert.True(t, cfg.Drive.Enabled)
	assert.Equal(t, "Reels", cfg.Drive.FolderName)
	assert.Equal(t, "instagram_downloads.json", cfg.Drive.DocumentName)
	assert.True(t, cfg.YouTube.Enabled)
	assert.Equal(t, "unlisted", cfg.YouTube.Privacy)
	assert.Equal(t, "22", cfg.YouTube.CategoryID)
	assert.Equal(t, "someone", cfg.Instagram.Username)
	assert.Equal(t, "secret", cfg.Instagram.Password)
	assert.Equal(t, "pass", cfg.Security.TokenPassphrase)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 8080\ninstagram:\n  username: \"yaml-user\"\nyoutube:\n  privacy: \"private\"\n"), 0644))

	t.Setenv("INSTAGRAM_USERNAME", "env-user")
	t.Setenv("PORT", "8088")
	t.Setenv("GDRIVE_ENABLED", "true")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-user", cfg.Instagram.Username)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.True(t, cfg.Drive.Enabled)
	assert.Equal(t, "private", cfg.YouTube.Privacy)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  host: \"localhost\n  port: 8080\n"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoad_NonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("YOUTUBE_ENABLED", "true")
	t.Setenv("YOUTUBE_PRIVACY", "everyone")

	_, err := Load("")
	assert.Error(t, err)
}
