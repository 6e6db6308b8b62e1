package harvest

import (
	"ttharvest/pkg/logger"
	"ttharvest/pkg/models"
	"ttharvest/pkg/ratelimit"
	"ttharvest/pkg/tiktok"
)

// PageSource fetches one page of query results. Satisfied by
// *tiktok.PageFetcher.
type PageSource interface {
	FetchPage(req tiktok.PageRequest) (*tiktok.Page, error)
}

// DayResult is the outcome of ingesting one query date. A partial result
// still carries the records fetched before the failing page; they are
// merged so a later re-run only has to fill the gap.
type DayResult struct {
	Date     string
	Records  []models.PostRecord
	RawPages []map[string]interface{}
	Pages    int
	// TotalCount is the API-reported number of videos matching the
	// query window, which can exceed len(Records) on a partial day.
	TotalCount int64
	Partial    bool
	Err        error
}

// DayIngestor drains all pages for a single query date.
type DayIngestor struct {
	source   PageSource
	limiter  ratelimit.Limiter
	keywords []string
	hashtags []string
	pageSize int
	logger   logger.Logger
}

// NewDayIngestor creates an ingestor for the given search terms.
func NewDayIngestor(source PageSource, limiter ratelimit.Limiter, keywords, hashtags []string, pageSize int, log logger.Logger) *DayIngestor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DayIngestor{
		source:   source,
		limiter:  limiter,
		keywords: keywords,
		hashtags: hashtags,
		pageSize: pageSize,
		logger:   log,
	}
}

// IngestDay pages through one query date until the API reports no more
// results. Records are deduplicated by id across pages, keeping the
// first occurrence in arrival order. A permanently failed page yields a
// partial result rather than discarding the pages already fetched.
func (d *DayIngestor) IngestDay(startDate, endDate string) DayResult {
	result := DayResult{Date: startDate}
	seen := make(map[string]bool)

	var cursor int64
	var searchID string

	for {
		if d.limiter != nil {
			d.limiter.Wait()
		}

		page, err := d.source.FetchPage(tiktok.PageRequest{
			StartDate: startDate,
			EndDate:   endDate,
			Keywords:  d.keywords,
			Hashtags:  d.hashtags,
			Cursor:    cursor,
			SearchID:  searchID,
			PageSize:  d.pageSize,
		})
		if err != nil {
			logger.LogPageFailure(startDate, result.Pages+1, err)
			result.Partial = true
			result.Err = err
			break
		}

		result.Pages++
		for _, rec := range page.Records {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			result.Records = append(result.Records, rec)
		}
		result.RawPages = append(result.RawPages, page.Raw...)
		if page.TotalCount > 0 {
			result.TotalCount = page.TotalCount
		}

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
		searchID = page.SearchID
	}

	logger.LogDayProgress(startDate, len(result.Records), result.Pages, result.TotalCount, result.Partial)
	return result
}
