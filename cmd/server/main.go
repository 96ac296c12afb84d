package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/iconidentify/reelrelay/internal/api"
	"github.com/iconidentify/reelrelay/internal/api/handler"
	"github.com/iconidentify/reelrelay/internal/config"
	"github.com/iconidentify/reelrelay/internal/downloader"
	"github.com/iconidentify/reelrelay/internal/extractor"
	"github.com/iconidentify/reelrelay/internal/repository"
	"github.com/iconidentify/reelrelay/internal/service"
	"github.com/iconidentify/reelrelay/pkg/gauth"
	"github.com/iconidentify/reelrelay/pkg/gdrive"
	"github.com/iconidentify/reelrelay/pkg/youtube"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	authorizeOnly := flag.Bool("authorize", false, "Run Google authorization for enabled services and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reelrelay %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting reelrelay",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.DownloadDir, 0755); err != nil {
		logger.Error("failed to create download directory", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var driveAuth, youtubeAuth *gauth.Authenticator
	if cfg.Drive.Enabled {
		driveAuth = gauth.New(gauth.Config{
			ClientSecretsPath: cfg.Drive.ClientSecretsPath,
			TokenPath:         cfg.Drive.TokenPath,
			Passphrase:        cfg.Security.TokenPassphrase,
			Scopes:            gdrive.Scopes,
		}, logger.With("service", "gdrive"))
	}
	if cfg.YouTube.Enabled {
		youtubeAuth = gauth.New(gauth.Config{
			ClientSecretsPath: cfg.YouTube.ClientSecretsPath,
			TokenPath:         cfg.YouTube.TokenPath,
			Passphrase:        cfg.Security.TokenPassphrase,
			Scopes:            youtube.Scopes,
		}, logger.With("service", "youtube"))
	}

	if *authorizeOnly {
		targets := []struct {
			name string
			auth *gauth.Authenticator
		}{
			{"Google Drive", driveAuth},
			{"YouTube", youtubeAuth},
		}
		for _, t := range targets {
			if t.auth == nil {
				continue
			}
			fmt.Fprintf(os.Stderr, "\nAuthorizing %s\n", t.name)
			if err := t.auth.Authorize(ctx, os.Stdin, os.Stderr); err != nil {
				logger.Error("authorization failed", "service", t.name, "error", err)
				os.Exit(1)
			}
		}
		logger.Info("authorization complete")
		return
	}

	driveAuth = ensureToken(ctx, driveAuth, "gdrive", logger)
	youtubeAuth = ensureToken(ctx, youtubeAuth, "youtube", logger)

	// Ledger backends: Drive document first, local file as fallback.
	localLedger := repository.NewFileLedgerStore(cfg.Storage.LinksFile, logger)
	var primary repository.LedgerStore
	var artifacts service.ArtifactStore
	if driveAuth != nil {
		driveClient := gdrive.NewClient(gdrive.Config{
			DocumentName: cfg.Drive.DocumentName,
			FolderName:   cfg.Drive.FolderName,
		}, driveAuth, logger)

		setup, err := driveClient.Setup(ctx)
		if err != nil {
			logger.Warn("google drive setup failed, local ledger will be used until it recovers", "error", err)
		} else {
			logger.Info("google drive ready",
				"document_id", setup.DocumentID,
				"folder_id", setup.FolderID,
				"entries", setup.Entries,
			)
		}
		primary = repository.NewRemoteLedgerStore("gdrive", driveClient)
		artifacts = driveClient
	}
	ledger := repository.NewLedgerSelector(primary, localLedger, logger)

	ytdlp := downloader.NewYtDLP(downloader.YtDLPConfig{
		Path:            cfg.Tools.YtDLPPath,
		Format:          cfg.Tools.Format,
		MetadataTimeout: cfg.Tools.MetadataTimeout,
		DownloadTimeout: cfg.Tools.DownloadTimeout,
		Username:        cfg.Instagram.Username,
		Password:        cfg.Instagram.Password,
	}, downloader.ExecRunner{}, logger)
	if version, err := ytdlp.Version(ctx); err != nil {
		logger.Warn("yt-dlp not available", "path", cfg.Tools.YtDLPPath, "error", err)
	} else {
		logger.Info("yt-dlp found", "version", version)
	}

	meta := extractor.NewChain(logger,
		extractor.NewToolStrategy(ytdlp),
		extractor.NewScrapeStrategy(downloader.NewPageFetcher(cfg.Tools.ScrapeTimeout, cfg.Tools.UserAgent)),
	)
	fetcher := service.NewFetcher(ytdlp, artifacts, cfg.Storage.DownloadDir, logger)

	var publisher service.Publisher
	if youtubeAuth != nil {
		publisher = youtube.NewClient(youtube.Config{
			Privacy:    cfg.YouTube.Privacy,
			CategoryID: cfg.YouTube.CategoryID,
		}, youtubeAuth, logger)
	}

	pipeline := service.NewPipeline(meta, fetcher, artifacts, publisher, ledger, logger)
	logger.Info("pipeline ready",
		"ledger_primary", ledger.HasPrimary(),
		"relay_enabled", pipeline.RelayEnabled(),
	)

	router := api.NewRouter(
		handler.NewRelayHandler(pipeline, logger),
		handler.NewFetchHandler(pipeline, logger),
		handler.NewHealthHandler(pipeline, ytdlp, cfg.Storage.DownloadDir, logger),
		handler.NewDownloadsHandler(cfg.Storage.DownloadDir),
		cfg.Server.APIKey,
		logger,
	)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// ensureToken returns auth when a cached token exists or consent was just
// granted on the terminal. Without either the service is disabled.
func ensureToken(ctx context.Context, auth *gauth.Authenticator, name string, logger *slog.Logger) *gauth.Authenticator {
	if auth == nil || auth.HasToken() {
		return auth
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Warn("no cached token and no terminal for consent, service disabled; run with -authorize",
			"service", name,
		)
		return nil
	}

	fmt.Fprintf(os.Stderr, "\nAuthorization required for %s\n", name)
	if err := auth.Authorize(ctx, os.Stdin, os.Stderr); err != nil {
		logger.Warn("authorization failed, service disabled", "service", name, "error", err)
		return nil
	}
	return auth
}
