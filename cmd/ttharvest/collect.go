package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"ttharvest/pkg/checkpoint"
	"ttharvest/pkg/harvest"
	"ttharvest/pkg/logger"
)

var (
	// Collect command flags
	startDate    string
	endDate      string
	keywordsFile string
	metadataDir  string
	combinedFile string
	rateLimit    int
	appLabel     string
	resumeRun    bool
	withMedia    bool
	videoDir     string
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect post metadata over a date range",
	Long: `Collect post metadata from the TikTok Research API, one query date at a
time across an inclusive date range.

Each date's results are merged into a per-date partition CSV (keyed by the
post's creation date, not the query date) and into the combined dataset.
Merging keeps the first occurrence of each post id, so re-running a range
never duplicates or reorders existing rows. Raw API responses are saved
beside the partitions as JSON.

Credentials come from stored apps ('ttharvest auth login'), environment
variables (TTHARVEST_CLIENT_KEY / TTHARVEST_CLIENT_SECRET), or the
configuration file.`,
	Example: `  # Collect one week of posts for the terms in keywords.txt
  ttharvest collect --start-date 20240101 --end-date 20240107 --keywords-file keywords.txt

  # Resume an interrupted run
  ttharvest collect --start-date 20240101 --end-date 20240107 --keywords-file keywords.txt --resume

  # Collect and immediately run the media phase on each day's partitions
  ttharvest collect --start-date 20240101 --end-date 20240107 --keywords-file keywords.txt --download`,
	Run: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVar(&startDate, "start-date", "", "first query date, YYYYMMDD (required)")
	collectCmd.Flags().StringVar(&endDate, "end-date", "", "last query date, YYYYMMDD, inclusive (required)")
	collectCmd.Flags().StringVar(&keywordsFile, "keywords-file", "", "file with one search term per line")
	collectCmd.Flags().StringVar(&metadataDir, "metadata-dir", "", "directory for per-date partition CSVs and raw dumps")
	collectCmd.Flags().StringVar(&combinedFile, "combined-file", "", "path of the combined dataset CSV")
	collectCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "API requests per minute")
	collectCmd.Flags().StringVarP(&appLabel, "app", "a", "", "use a specific stored app's credentials")
	collectCmd.Flags().BoolVar(&resumeRun, "resume", false, "resume from this range's checkpoint")
	collectCmd.Flags().BoolVar(&withMedia, "download", false, "run the media phase on each day's partitions")
	collectCmd.Flags().StringVar(&videoDir, "video-dir", "", "directory for downloaded videos")
}

func runCollect(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if startDate != "" {
		flags["start-date"] = startDate
	}
	if endDate != "" {
		flags["end-date"] = endDate
	}
	if keywordsFile != "" {
		flags["keywords-file"] = keywordsFile
	}
	if metadataDir != "" {
		flags["metadata-dir"] = metadataDir
	}
	if combinedFile != "" {
		flags["combined-file"] = combinedFile
	}
	if rateLimit > 0 {
		flags["rate-limit"] = rateLimit
	}
	if videoDir != "" {
		flags["video-dir"] = videoDir
	}

	cfg := loadConfig(flags)
	log := logger.GetLogger()

	if cfg.Query.StartDate == "" || cfg.Query.EndDate == "" {
		log.Error("start date and end date are required")
		os.Exit(1)
	}

	if err := cfg.LoadKeywords(); err != nil {
		log.WithError(err).Error("failed to load search terms")
		os.Exit(1)
	}
	if len(cfg.Query.Keywords) == 0 && len(cfg.Query.Hashtags) == 0 {
		log.Error("no search terms configured; provide --keywords-file or set them in the config")
		os.Exit(1)
	}

	if err := resolveCredentials(cfg, appLabel); err != nil {
		log.WithError(err).Error("credential resolution failed")
		os.Exit(1)
	}

	st, err := buildStore(cfg)
	if err != nil {
		log.WithError(err).Error("failed to open stores")
		os.Exit(1)
	}

	checkpoints, err := checkpoint.NewManager(cfg.Query.StartDate, cfg.Query.EndDate)
	if err != nil {
		log.WithError(err).Error("failed to initialize checkpoints")
		os.Exit(1)
	}

	var batch harvest.BatchRunner
	if withMedia || cfg.Media.Enabled {
		processor, err := buildBatchProcessor(cfg, st)
		if err != nil {
			log.WithError(err).Error("failed to initialize media phase")
			os.Exit(1)
		}
		batch = processor
	}

	orchestrator := harvest.NewOrchestrator(buildIngestor(cfg), st, checkpoints, batch, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.InfoWithFields("collection starting", map[string]interface{}{
		"version":    version,
		"start_date": cfg.Query.StartDate,
		"end_date":   cfg.Query.EndDate,
		"terms":      len(cfg.Query.Keywords),
	})

	if err := orchestrator.Run(ctx, cfg.Query.StartDate, cfg.Query.EndDate, resumeRun); err != nil {
		if ctx.Err() != nil {
			log.Warn("collection interrupted; re-run with --resume to continue")
		} else {
			log.WithError(err).Error("collection finished with failures")
		}
		os.Exit(1)
	}
}
