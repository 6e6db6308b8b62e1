package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ttharvest/pkg/checkpoint"
	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/logger"
	"ttharvest/pkg/store"
)

const dayLayout = "20060102"

// BatchRunner post-processes one partition after its day has merged.
// Satisfied by *BatchProcessor.
type BatchRunner interface {
	ProcessPartition(ctx context.Context, dateString string) error
}

// Orchestrator drives a collection run across an inclusive date range.
// Each query date is ingested, merged into the stores, and recorded in
// the run checkpoint before the next date starts.
type Orchestrator struct {
	ingestor    *DayIngestor
	store       *store.Store
	checkpoints *checkpoint.Manager
	batch       BatchRunner
	logger      logger.Logger
}

// NewOrchestrator wires an ingestor to the stores. batch may be nil when
// the media phase is disabled.
func NewOrchestrator(ingestor *DayIngestor, st *store.Store, cp *checkpoint.Manager, batch BatchRunner, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Orchestrator{
		ingestor:    ingestor,
		store:       st,
		checkpoints: cp,
		batch:       batch,
		logger:      log,
	}
}

// Run collects every date in [startDate, endDate] (YYYYMMDD, inclusive).
// Cancellation is honored between days, never mid-day: an in-flight day
// always finishes its merge so the stores stay consistent. With resume
// set, days a previous run completed cleanly are skipped.
func (o *Orchestrator) Run(ctx context.Context, startDate, endDate string, resume bool) error {
	start, err := time.Parse(dayLayout, startDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(dayLayout, endDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return fmt.Errorf("end date %s before start date %s", endDate, startDate)
	}

	var cp *checkpoint.Checkpoint
	if o.checkpoints != nil {
		if resume {
			cp, err = o.checkpoints.Load()
			if err != nil {
				return fmt.Errorf("failed to load checkpoint: %w", err)
			}
		}
		if cp == nil {
			cp, err = o.checkpoints.Create(startDate, endDate)
			if err != nil {
				return err
			}
		}
	}

	runStart := time.Now()
	var partialDays []string

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			o.logger.InfoWithFields("collection interrupted", map[string]interface{}{
				"next_date": day.Format(dayLayout),
			})
			return ctx.Err()
		default:
		}

		date := day.Format(dayLayout)
		if cp != nil && cp.IsDayDone(date) {
			o.logger.DebugWithFields("skipping completed date", map[string]interface{}{
				"date": date,
			})
			continue
		}

		if err := o.runDay(ctx, day, cp); err != nil {
			// A rejected credential pair cannot recover on a later date;
			// every remaining day would just repeat the failed exchange.
			var apiErr *errs.Error
			if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeAuth {
				o.logger.WithError(err).Error("authentication failed, aborting run")
				return fmt.Errorf("authentication failed on %s: %w", date, err)
			}
			partialDays = append(partialDays, date)
		}
	}

	o.logger.InfoWithFields("collection run finished", map[string]interface{}{
		"start_date":   startDate,
		"end_date":     endDate,
		"partial_days": len(partialDays),
		"elapsed":      time.Since(runStart).String(),
	})

	if len(partialDays) > 0 {
		return fmt.Errorf("%d day(s) ended partial: %v", len(partialDays), partialDays)
	}
	return nil
}

// runDay ingests and merges one query date. The query window runs from
// the date to the following day, matching the API's exclusive upper
// bound; the id dedup absorbs any boundary overlap. The day's records
// are persisted even when a page permanently failed, so the returned
// error marks the day partial without losing data.
func (o *Orchestrator) runDay(ctx context.Context, day time.Time, cp *checkpoint.Checkpoint) error {
	dayStart := time.Now()
	date := day.Format(dayLayout)
	nextDate := day.AddDate(0, 0, 1).Format(dayLayout)
	result := o.ingestor.IngestDay(date, nextDate)

	if len(result.Records) > 0 {
		if err := o.store.MergeDay(date, result.Records); err != nil {
			return fmt.Errorf("merge failed for %s: %w", date, err)
		}
	}
	if len(result.RawPages) > 0 {
		if err := o.store.DumpRawPages(date, nextDate, result.RawPages); err != nil {
			// Raw dumps are a debugging aid; losing one never fails the day.
			o.logger.WarnWithFields("raw dump failed", map[string]interface{}{
				"date":  date,
				"error": err.Error(),
			})
		}
	}

	if cp != nil && o.checkpoints != nil {
		if err := o.checkpoints.MarkDay(cp, date, len(result.Records), result.Partial); err != nil {
			o.logger.WarnWithFields("checkpoint update failed", map[string]interface{}{
				"date":  date,
				"error": err.Error(),
			})
		}
	}

	if o.batch != nil && len(result.Records) > 0 {
		for _, dateString := range partitionDates(result) {
			if err := o.batch.ProcessPartition(ctx, dateString); err != nil {
				o.logger.WarnWithFields("media phase failed", map[string]interface{}{
					"date":  dateString,
					"error": err.Error(),
				})
			}
		}
	}

	o.logger.InfoWithFields("day finished", map[string]interface{}{
		"date":    date,
		"records": len(result.Records),
		"pages":   result.Pages,
		"partial": result.Partial,
		"elapsed": time.Since(dayStart).String(),
	})

	if result.Partial {
		return result.Err
	}
	return nil
}

// partitionDates lists the distinct creation dates a day's records merged
// into, in first-seen order. Records partition by when the post was
// created, not by the query date that found them.
func partitionDates(result DayResult) []string {
	var dates []string
	seen := make(map[string]bool)
	for _, rec := range result.Records {
		if !seen[rec.UTC.DateString] {
			seen[rec.UTC.DateString] = true
			dates = append(dates, rec.UTC.DateString)
		}
	}
	return dates
}
