package tiktok

import (
	"errors"
	"fmt"

	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/logger"
	"ttharvest/pkg/retry"
)

// PageRequest describes one paginated query against the research API.
// Cursor carries the continuation returned by the previous page and is
// zero on the first call for a date window.
type PageRequest struct {
	StartDate string
	EndDate   string
	Keywords  []string
	Hashtags  []string
	Cursor    int64
	SearchID  string
	PageSize  int
}

// PageFetcher issues single paginated queries. One call returns one page;
// pagination across pages is driven by the ingestion layer.
type PageFetcher struct {
	client  *Client
	tokens  *TokenManager
	retrier *retry.Retrier
	logger  logger.Logger
}

// NewPageFetcher creates a page fetcher bound to a token manager.
func NewPageFetcher(client *Client, tokens *TokenManager, retrier *retry.Retrier, log logger.Logger) *PageFetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &PageFetcher{
		client:  client,
		tokens:  tokens,
		retrier: retrier,
		logger:  log,
	}
}

// FetchPage fetches one page for a date window. Keyword and hashtag
// conditions combine with OR semantics. Transient failures retry under
// the page policy; a rejected token triggers exactly one refresh and a
// single replay before the error surfaces.
func (f *PageFetcher) FetchPage(req PageRequest) (*Page, error) {
	var page *Page

	err := f.retrier.Do(func() error {
		token, err := f.tokens.Token()
		if err != nil {
			return err
		}

		page, err = f.fetchOnce(req, token.Value)
		if err == nil {
			return nil
		}

		// An expired-token response is not a page failure: refresh once
		// and replay immediately.
		var apiErr *errs.Error
		if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeAuth {
			f.logger.WarnWithFields("token rejected mid-pagination, refreshing", map[string]interface{}{
				"start_date": req.StartDate,
				"cursor":     req.Cursor,
			})
			fresh, refreshErr := f.tokens.Refresh()
			if refreshErr != nil {
				return refreshErr
			}
			page, err = f.fetchOnce(req, fresh.Value)
		}
		return err
	})
	if err != nil {
		var apiErr *errs.Error
		if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeAuth {
			return nil, err
		}
		return nil, errs.NewPageFetchError(
			fmt.Sprintf("page fetch failed for %s..%s cursor %d: %v", req.StartDate, req.EndDate, req.Cursor, err), 0)
	}

	return page, nil
}

// fetchOnce performs a single query round trip.
func (f *PageFetcher) fetchOnce(req PageRequest, bearer string) (*Page, error) {
	var conditions []queryCondition
	if len(req.Keywords) > 0 {
		conditions = append(conditions, queryCondition{
			Operation:   "IN",
			FieldName:   "keyword",
			FieldValues: req.Keywords,
		})
	}
	if len(req.Hashtags) > 0 {
		conditions = append(conditions, queryCondition{
			Operation:   "IN",
			FieldName:   "hashtag_name",
			FieldValues: req.Hashtags,
		})
	}

	body := queryRequest{
		Query:     queryFilter{Or: conditions},
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		MaxCount:  ClampPageSize(req.PageSize),
		Cursor:    req.Cursor,
		SearchID:  req.SearchID,
	}

	var resp queryResponse
	if err := f.client.PostJSON(QueryURL(f.client.APIBaseURL()), bearer, body, &resp); err != nil {
		return nil, err
	}

	if resp.Error.Code != "" && resp.Error.Code != "ok" {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: fmt.Sprintf("query rejected: %s: %s (log %s)", resp.Error.Code, resp.Error.Message, resp.Error.LogID),
		}
	}

	page := &Page{
		NextCursor: resp.Data.Cursor,
		HasMore:    resp.Data.HasMore,
		SearchID:   resp.Data.SearchID,
		TotalCount: resp.Data.Total,
		Raw:        resp.Data.Videos,
	}

	for _, video := range resp.Data.Videos {
		rec, err := recordFromVideo(video)
		if err != nil {
			f.logger.WarnWithFields("skipping malformed video object", map[string]interface{}{
				"start_date": req.StartDate,
				"error":      err.Error(),
			})
			continue
		}
		page.Records = append(page.Records, rec)
	}

	f.logger.DebugWithFields("page fetched", map[string]interface{}{
		"start_date": req.StartDate,
		"records":    len(page.Records),
		"has_more":   page.HasMore,
		"cursor":     page.NextCursor,
		"total":      page.TotalCount,
	})

	return page, nil
}
