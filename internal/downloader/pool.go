// Package downloader bounds the number of in-flight media fetches. The
// default is a single worker; the pool exists so a deployment with a more
// generous rate budget can raise it without touching the orchestrator.
package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ttharvest/pkg/logger"
	"ttharvest/pkg/models"
)

// MediaJob is one record whose media needs fetching
type MediaJob struct {
	Record models.PostRecord
}

// MediaResult is the outcome of one media job
type MediaResult struct {
	Job        MediaJob
	Validation models.MediaValidationResult
	Duration   time.Duration
}

// MediaRunner runs the media phase for a single record
type MediaRunner interface {
	Fetch(ctx context.Context, rec models.PostRecord) models.MediaValidationResult
}

// WorkerPool manages bounded concurrent media fetches
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan MediaJob
	resultQueue chan MediaResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	runner      MediaRunner
	logger      logger.Logger
}

// NewWorkerPool creates a media worker pool
func NewWorkerPool(numWorkers int, runner MediaRunner, log logger.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan MediaJob, numWorkers*2),
		resultQueue: make(chan MediaResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		runner:      runner,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting media worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop gracefully shuts down the worker pool
func (wp *WorkerPool) Stop() {
	wp.logger.Info("Stopping media worker pool...")

	close(wp.jobQueue)

	// Wait for all workers to finish processing remaining jobs
	wp.wg.Wait()

	close(wp.resultQueue)

	wp.cancel()

	wp.logger.Info("Media worker pool stopped")
}

// Submit adds a new media job to the queue
func (wp *WorkerPool) Submit(job MediaJob) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"record_id": job.Record.ID,
			"username":  job.Record.Username,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming media results
func (wp *WorkerPool) Results() <-chan MediaResult {
	return wp.resultQueue
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.DebugWithFields("Worker started", map[string]interface{}{
		"worker_id": id,
	})

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("Worker stopping - context cancelled while sending result", map[string]interface{}{
				"worker_id": id,
			})
			return
		}
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// processJob handles a single media job
func (wp *WorkerPool) processJob(job MediaJob, workerID int) MediaResult {
	start := time.Now()

	wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"record_id": job.Record.ID,
		"username":  job.Record.Username,
	})

	validation := wp.runner.Fetch(wp.ctx, job.Record)

	result := MediaResult{
		Job:        job,
		Validation: validation,
		Duration:   time.Since(start),
	}

	wp.logger.DebugWithFields("Worker completed job", map[string]interface{}{
		"worker_id":   workerID,
		"record_id":   job.Record.ID,
		"is_public":   validation.IsPublic,
		"media_valid": validation.MediaValid,
		"duration":    result.Duration,
	})

	return result
}

// QueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}
