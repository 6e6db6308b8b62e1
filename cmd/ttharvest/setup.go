package main

import (
	"fmt"
	"os"
	"time"

	"ttharvest/internal/browser"
	"ttharvest/pkg/auth"
	"ttharvest/pkg/config"
	"ttharvest/pkg/harvest"
	"ttharvest/pkg/logger"
	"ttharvest/pkg/media"
	"ttharvest/pkg/ratelimit"
	"ttharvest/pkg/retry"
	"ttharvest/pkg/store"
	"ttharvest/pkg/tiktok"
)

// loadConfig loads configuration and initializes logging.
func loadConfig(flags map[string]interface{}) *config.Config {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}

	return cfg
}

// resolveCredentials fills in API credentials from the credential manager
// when the config carries none. appLabel selects a stored app; empty
// means the default.
func resolveCredentials(cfg *config.Config, appLabel string) error {
	if cfg.API.ClientKey != "" && cfg.API.ClientSecret != "" && appLabel == "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var app *auth.App
	if appLabel != "" {
		app, err = manager.Retrieve(appLabel)
		if err != nil {
			return fmt.Errorf("app %q not found; use 'ttharvest auth list' to see stored apps", appLabel)
		}
	} else {
		app, err = manager.RetrieveDefault()
		if err != nil {
			return fmt.Errorf("no API credentials found; run 'ttharvest auth login' or set TTHARVEST_CLIENT_KEY and TTHARVEST_CLIENT_SECRET")
		}
	}

	cfg.API.ClientKey = app.ClientKey
	cfg.API.ClientSecret = app.ClientSecret
	logger.WithField("app", app.Label).Info("Using stored credentials")
	return nil
}

// buildIngestor wires the query path: client, token manager, rate
// limiter, and page fetcher under the page retry policy.
func buildIngestor(cfg *config.Config) *harvest.DayIngestor {
	log := logger.GetLogger()

	client := tiktok.NewClient(cfg.API.BaseURL, cfg.API.Timeout, log)
	tokens := tiktok.NewTokenManager(client, cfg.API.ClientKey, cfg.API.ClientSecret, cfg.API.TokenMargin, log)
	fetcher := tiktok.NewPageFetcher(client, tokens,
		retry.PagePolicy(cfg.Retry.PageAttempts, cfg.Retry.PageDelay, log), log)

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)

	return harvest.NewDayIngestor(fetcher, limiter,
		cfg.Query.Keywords, cfg.Query.Hashtags, cfg.Query.PageSize, log)
}

// buildStore opens the partition and combined stores.
func buildStore(cfg *config.Config) (*store.Store, error) {
	return store.NewStore(cfg.Output.MetadataDir, cfg.Output.CombinedFile, logger.GetLogger())
}

// buildBatchProcessor wires the media phase: detail client, browser
// download agent, and the per-record fetcher behind the worker pool.
func buildBatchProcessor(cfg *config.Config, st *store.Store) (*harvest.BatchProcessor, error) {
	log := logger.GetLogger()

	detail := tiktok.NewClient(tiktok.WebBaseURL, cfg.API.Timeout, log)
	agent := browser.NewAgent(cfg.Media.BrowserPath, 2*time.Minute, log)

	fetcher := media.NewFetcher(detail, agent, cfg.Media.VideoDir, cfg.Media.PrefetchDelay,
		retry.VisibilityPolicy(cfg.Retry.VisibilityAttempts, cfg.Retry.VisibilityCooldown, log),
		retry.DownloadPolicy(cfg.Retry.DownloadAttempts, cfg.Retry.DownloadCooldown, log),
		log)

	return harvest.NewBatchProcessor(st, fetcher, cfg.Output.ProcessedDir, cfg.Media.Workers, log)
}
