package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Instagram InstagramConfig `yaml:"instagram"`
	Tools     ToolsConfig     `yaml:"tools"`
	Drive     DriveConfig     `yaml:"drive"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"HOST"`
	Port         int           `yaml:"port" envconfig:"PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
}

// StorageConfig holds local filesystem layout.
type StorageConfig struct {
	DownloadDir string `yaml:"download_dir" envconfig:"DOWNLOAD_DIR"`
	LinksFile   string `yaml:"links_file" envconfig:"LINKS_FILE"`
}

// InstagramConfig holds source platform login credentials passed to yt-dlp.
type InstagramConfig struct {
	Username string `yaml:"username" envconfig:"INSTAGRAM_USERNAME"`
	Password string `yaml:"password" envconfig:"INSTAGRAM_PASSWORD"`
}

// ToolsConfig holds external tool and scraping configuration.
type ToolsConfig struct {
	YtDLPPath       string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	Format          string        `yaml:"format" envconfig:"YTDLP_FORMAT"`
	MetadataTimeout time.Duration `yaml:"metadata_timeout" envconfig:"METADATA_TIMEOUT"`
	DownloadTimeout time.Duration `yaml:"download_timeout" envconfig:"DOWNLOAD_TIMEOUT"`
	ScrapeTimeout   time.Duration `yaml:"scrape_timeout" envconfig:"SCRAPE_TIMEOUT"`
	UserAgent       string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// DriveConfig holds Google Drive (primary remote store) configuration.
type DriveConfig struct {
	Enabled           bool   `yaml:"enabled" envconfig:"GDRIVE_ENABLED"`
	ClientSecretsPath string `yaml:"client_secrets" envconfig:"GOOGLE_CLIENT_SECRETS"`
	TokenPath         string `yaml:"token_file" envconfig:"GDRIVE_TOKEN_FILE"`
	DocumentName      string `yaml:"document_name" envconfig:"GDRIVE_DOCUMENT_NAME"`
	FolderName        string `yaml:"folder_name" envconfig:"GDRIVE_FOLDER_NAME"`
}

// YouTubeConfig holds relay publisher configuration.
type YouTubeConfig struct {
	Enabled           bool   `yaml:"enabled" envconfig:"YOUTUBE_ENABLED"`
	ClientSecretsPath string `yaml:"client_secrets" envconfig:"YOUTUBE_CLIENT_SECRETS"`
	TokenPath         string `yaml:"token_file" envconfig:"YOUTUBE_TOKEN_FILE"`
	Privacy           string `yaml:"privacy" envconfig:"YOUTUBE_PRIVACY"`
	CategoryID        string `yaml:"category_id" envconfig:"YOUTUBE_CATEGORY_ID"`
}

// SecurityConfig holds secrets used to protect cached credentials.
type SecurityConfig struct {
	// TokenPassphrase encrypts OAuth token caches at rest when set.
	TokenPassphrase string `yaml:"token_passphrase" envconfig:"TOKEN_PASSPHRASE"`
}

// Default returns the configuration used when neither the file nor the
// environment sets a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5001,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Minute,
		},
		Storage: StorageConfig{
			DownloadDir: "downloads",
			LinksFile:   "downloaded_links.json",
		},
		Tools: ToolsConfig{
			YtDLPPath:       "yt-dlp",
			Format:          "best",
			MetadataTimeout: 15 * time.Second,
			DownloadTimeout: 30 * time.Second,
			ScrapeTimeout:   10 * time.Second,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Drive: DriveConfig{
			ClientSecretsPath: "client_secret.json",
			TokenPath:         "token.json",
			DocumentName:      "instagram_downloads.json",
			FolderName:        "InstagramVideos",
		},
		YouTube: YouTubeConfig{
			ClientSecretsPath: "client_secret.json",
			TokenPath:         "youtube_token.json",
			Privacy:           "public",
			CategoryID:        "22",
		},
	}
}

// Load reads configuration from file and environment variables on top of
// Default. Environment variables override file values. Fields carry no
// envconfig default tags, so unset variables leave file values alone.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.Storage.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	if c.Storage.LinksFile == "" {
		return fmt.Errorf("LINKS_FILE is required")
	}
	if c.Tools.YtDLPPath == "" {
		return fmt.Errorf("YTDLP_PATH is required")
	}
	if c.Tools.MetadataTimeout <= 0 || c.Tools.DownloadTimeout <= 0 || c.Tools.ScrapeTimeout <= 0 {
		return fmt.Errorf("tool timeouts must be positive")
	}
	if c.Drive.Enabled {
		if c.Drive.ClientSecretsPath == "" || c.Drive.TokenPath == "" {
			return fmt.Errorf("GOOGLE_CLIENT_SECRETS and GDRIVE_TOKEN_FILE are required when Drive is enabled")
		}
		if c.Drive.DocumentName == "" || c.Drive.FolderName == "" {
			return fmt.Errorf("GDRIVE_DOCUMENT_NAME and GDRIVE_FOLDER_NAME are required when Drive is enabled")
		}
	}
	if c.YouTube.Enabled {
		if c.YouTube.ClientSecretsPath == "" || c.YouTube.TokenPath == "" {
			return fmt.Errorf("YOUTUBE_CLIENT_SECRETS and YOUTUBE_TOKEN_FILE are required when YouTube is enabled")
		}
		switch c.YouTube.Privacy {
		case "public", "unlisted", "private":
		default:
			return fmt.Errorf("YOUTUBE_PRIVACY must be public, unlisted or private")
		}
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
