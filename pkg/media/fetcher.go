package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/logger"
	"ttharvest/pkg/models"
	"ttharvest/pkg/retry"
	"ttharvest/pkg/tiktok"
)

// VisibilityChecker answers whether a post is private. The API client
// implements it against the public detail page.
type VisibilityChecker interface {
	FetchVisibility(postURL string) (private bool, err error)
}

// Fetcher runs the media phase for a single record: a visibility check
// and a download-plus-validate pass, each under its own retry budget.
type Fetcher struct {
	detail   VisibilityChecker
	agent    DownloadAgent
	videoDir string

	// prefetchDelay is the politeness pause before every download attempt.
	prefetchDelay time.Duration

	visibilityRetry *retry.Retrier
	downloadRetry   *retry.Retrier

	logger logger.Logger

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

// NewFetcher creates a media fetcher writing videos into videoDir.
func NewFetcher(detail VisibilityChecker, agent DownloadAgent, videoDir string,
	prefetchDelay time.Duration, visibilityRetry, downloadRetry *retry.Retrier, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		detail:          detail,
		agent:           agent,
		videoDir:        videoDir,
		prefetchDelay:   prefetchDelay,
		visibilityRetry: visibilityRetry,
		downloadRetry:   downloadRetry,
		logger:          log,
		sleep:           time.Sleep,
	}
}

// Fetch runs both checks for one record. It never returns an error: every
// permanent failure is folded into the result so the run continues.
func (f *Fetcher) Fetch(ctx context.Context, rec models.PostRecord) models.MediaValidationResult {
	result := models.MediaValidationResult{RecordID: rec.ID}

	result.IsPublic, result.Determined = f.checkVisibility(ctx, rec)
	result.MediaValid = f.downloadAndValidate(ctx, rec)

	return result
}

// checkVisibility queries the detail endpoint under the visibility budget.
// A removed post concludes "not public" immediately; exhausting the retry
// budget fails closed, treating unknown as private.
func (f *Fetcher) checkVisibility(ctx context.Context, rec models.PostRecord) (isPublic, determined bool) {
	var private bool

	err := f.visibilityRetry.WithContext(ctx).Do(func() error {
		var opErr error
		private, opErr = f.detail.FetchVisibility(rec.URL)
		return opErr
	})
	if err != nil {
		var apiErr *errs.Error
		if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeNotFound {
			f.logger.InfoWithFields("post removed, treating as not public", map[string]interface{}{
				"record_id": rec.ID,
				"url":       rec.URL,
			})
			return false, true
		}

		f.logger.WarnWithFields("visibility undetermined, failing closed", map[string]interface{}{
			"record_id": rec.ID,
			"url":       rec.URL,
			"error":     err.Error(),
		})
		return false, false
	}

	return !private, true
}

// downloadAndValidate drives the download collaborator under the download
// budget and validates the container signature of whatever it produced.
func (f *Fetcher) downloadAndValidate(ctx context.Context, rec models.PostRecord) bool {
	shareURL := tiktok.ShareURL(rec.URL)

	err := f.downloadRetry.WithContext(ctx).Do(func() error {
		f.sleep(f.prefetchDelay)

		path, err := f.agent.Download(ctx, shareURL, f.videoDir)
		if err != nil {
			return err
		}

		if !IsValidContainer(path) {
			return errs.NewMediaError(fmt.Sprintf("invalid container signature in %s", path))
		}
		return nil
	})
	if err != nil {
		logger.LogMediaFailure(rec.ID, rec.URL, err)
		return false
	}

	f.logger.DebugWithFields("video downloaded and validated", map[string]interface{}{
		"record_id": rec.ID,
		"file":      tiktok.VideoFilename(rec.Username, rec.ID),
	})
	return true
}
