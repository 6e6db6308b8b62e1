package harvest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ttharvest/internal/downloader"
	"ttharvest/pkg/logger"
	"ttharvest/pkg/models"
	"ttharvest/pkg/store"
)

// BatchProcessor runs the media phase over a record CSV: for each record
// it probes visibility, attempts the download, validates the container,
// and writes a <stem>_processed.csv beside the processed directory with
// the per-record outcomes. A record that fails never aborts the batch.
type BatchProcessor struct {
	store        *store.Store
	runner       downloader.MediaRunner
	processedDir string
	workers      int
	logger       logger.Logger
}

// NewBatchProcessor creates a batch processor that fans records out to
// the given number of media workers.
func NewBatchProcessor(st *store.Store, runner downloader.MediaRunner, processedDir string, workers int, log logger.Logger) (*BatchProcessor, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(processedDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create processed directory: %w", err)
	}
	return &BatchProcessor{
		store:        st,
		runner:       runner,
		processedDir: processedDir,
		workers:      workers,
		logger:       log,
	}, nil
}

// ProcessPartition runs the media phase over one partition file.
func (b *BatchProcessor) ProcessPartition(ctx context.Context, dateString string) error {
	return b.ProcessFile(ctx, b.store.PartitionPath(dateString))
}

// ProcessFile runs the media phase over any record CSV. The output lands
// in the processed directory as <stem>_processed.csv, keeping the input's
// row order with is_public and mp4_is_valid appended.
func (b *BatchProcessor) ProcessFile(ctx context.Context, csvPath string) error {
	records, err := store.LoadRecords(csvPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", csvPath, err)
	}
	if len(records) == 0 {
		b.logger.InfoWithFields("no records to process", map[string]interface{}{
			"file": csvPath,
		})
		return nil
	}

	start := time.Now()
	b.logger.InfoWithFields("batch started", map[string]interface{}{
		"file":    csvPath,
		"records": len(records),
		"workers": b.workers,
	})

	results := b.runMediaPhase(records)

	outPath := b.processedPath(csvPath)
	if err := store.WriteProcessed(outPath, records, results); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	valid := 0
	public := 0
	for _, r := range results {
		if r.MediaValid {
			valid++
		}
		if r.IsPublic {
			public++
		}
	}

	b.logger.InfoWithFields("batch finished", map[string]interface{}{
		"file":    csvPath,
		"output":  outPath,
		"records": len(records),
		"public":  public,
		"valid":   valid,
		"elapsed": time.Since(start).String(),
	})

	return nil
}

// runMediaPhase fans records out to the worker pool and collects one
// validation result per record id.
func (b *BatchProcessor) runMediaPhase(records []models.PostRecord) map[string]models.MediaValidationResult {
	pool := downloader.NewWorkerPool(b.workers, b.runner, b.logger)
	pool.Start()

	done := make(chan struct{})
	results := make(map[string]models.MediaValidationResult, len(records))
	go func() {
		defer close(done)
		for result := range pool.Results() {
			results[result.Validation.RecordID] = result.Validation
		}
	}()

	for _, rec := range records {
		if err := pool.Submit(downloader.MediaJob{Record: rec}); err != nil {
			break
		}
	}

	pool.Stop()
	<-done
	return results
}

// processedPath derives the batch output path from the input stem.
func (b *BatchProcessor) processedPath(csvPath string) string {
	base := filepath.Base(csvPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(b.processedDir, stem+"_processed.csv")
}
