package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"ttharvest/pkg/logger"
)

var (
	// Download command flags
	downloadVideoDir string
	processedDir     string
	workers          int
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <metadata.csv> [more.csv...]",
	Short: "Download and validate videos for collected metadata",
	Long: `Run the media phase over one or more metadata CSVs.

For each record the tool probes the public video page to determine whether
the post is still visible, then drives a headless browser to download the
video and checks that the file on disk is a structurally valid MP4. The
outcome lands in a <stem>_processed.csv with is_public and mp4_is_valid
columns appended; the input rows and their order are preserved.

A record whose visibility cannot be determined is treated as not public.
Failed downloads are logged and recorded, never fatal.`,
	Example: `  # Process one partition
  ttharvest download metadata/metadata_2024-01-03.csv

  # Process several files with two download workers
  ttharvest download metadata/*.csv --workers 2`,
	Args: cobra.MinimumNArgs(1),
	Run:  runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVar(&downloadVideoDir, "video-dir", "", "directory for downloaded videos")
	downloadCmd.Flags().StringVar(&processedDir, "processed-dir", "", "directory for _processed.csv outputs")
	downloadCmd.Flags().IntVar(&workers, "workers", 0, "concurrent download workers")
}

func runDownload(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if downloadVideoDir != "" {
		flags["video-dir"] = downloadVideoDir
	}

	cfg := loadConfig(flags)
	log := logger.GetLogger()

	if processedDir != "" {
		cfg.Output.ProcessedDir = processedDir
	}
	if workers > 0 {
		cfg.Media.Workers = workers
	}

	st, err := buildStore(cfg)
	if err != nil {
		log.WithError(err).Error("failed to open stores")
		os.Exit(1)
	}

	processor, err := buildBatchProcessor(cfg, st)
	if err != nil {
		log.WithError(err).Error("failed to initialize media phase")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, path := range args {
		if ctx.Err() != nil {
			log.Warn("download interrupted")
			os.Exit(1)
		}
		if err := processor.ProcessFile(ctx, path); err != nil {
			log.WithError(err).WithField("file", path).Error("batch failed")
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
