package tiktok

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/logger"
	"ttharvest/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTokenBody = `{"access_token": "tok_fresh", "expires_in": 7200, "token_type": "Bearer"}`

// newFetcher wires a page fetcher around the handler with a fast retry
// policy. The handler only sees query requests; token exchanges are
// answered internally.
func newFetcher(t *testing.T, attempts int, handler func(req *http.Request) (*http.Response, error)) *PageFetcher {
	t.Helper()
	log := logger.NewTestLogger()
	client := newTestClient(log, func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "/oauth/token/") {
			return newResponse(http.StatusOK, testTokenBody), nil
		}
		return handler(req)
	})
	tokens := NewTokenManager(client, "key", "secret", 5*time.Minute, log)
	return NewPageFetcher(client, tokens, retry.PagePolicy(attempts, time.Millisecond, log), log)
}

func pageBody(ids []string, cursor int64, hasMore bool, searchID string) string {
	videos := make([]map[string]interface{}, 0, len(ids))
	for i, id := range ids {
		videos = append(videos, map[string]interface{}{
			"id":          json.Number(id),
			"username":    fmt.Sprintf("user%d", i),
			"create_time": json.Number("1704067200"),
			"like_count":  json.Number("42"),
		})
	}
	body, _ := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"videos":    videos,
			"cursor":    cursor,
			"has_more":  hasMore,
			"search_id": searchID,
			"total":     len(ids),
		},
		"error": map[string]interface{}{"code": "ok"},
	})
	return string(body)
}

func TestFetchPageDecodesRecords(t *testing.T) {
	fetcher := newFetcher(t, 3, func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, pageBody([]string{"7000000000000000001", "7000000000000000002"}, 100, true, "s1")), nil
	})

	page, err := fetcher.FetchPage(PageRequest{
		StartDate: "20240101",
		EndDate:   "20240101",
		Keywords:  []string{"storm"},
		PageSize:  100,
	})
	require.NoError(t, err)

	assert.Len(t, page.Records, 2)
	assert.Equal(t, "7000000000000000001", page.Records[0].ID)
	assert.Equal(t, "user0", page.Records[0].Username)
	assert.Equal(t, int64(1704067200), page.Records[0].CreateTime)
	assert.Equal(t, "42", page.Records[0].Raw["like_count"])
	assert.Equal(t, int64(100), page.NextCursor)
	assert.True(t, page.HasMore)
	assert.Equal(t, "s1", page.SearchID)
	assert.Equal(t, int64(2), page.TotalCount)
	assert.Len(t, page.Raw, 2)
}

func TestFetchPageBuildsQuery(t *testing.T) {
	var captured queryRequest
	var fields string
	fetcher := newFetcher(t, 3, func(req *http.Request) (*http.Response, error) {
		fields = req.URL.Query().Get("fields")
		raw, _ := io.ReadAll(req.Body)
		require.NoError(t, json.Unmarshal(raw, &captured))
		return newResponse(http.StatusOK, pageBody(nil, 0, false, "")), nil
	})

	_, err := fetcher.FetchPage(PageRequest{
		StartDate: "20240101",
		EndDate:   "20240102",
		Keywords:  []string{"storm", "flood"},
		Hashtags:  []string{"weather"},
		Cursor:    300,
		SearchID:  "s9",
		PageSize:  50,
	})
	require.NoError(t, err)

	assert.Equal(t, QueryFields, fields)
	assert.Equal(t, "20240101", captured.StartDate)
	assert.Equal(t, "20240102", captured.EndDate)
	assert.Equal(t, 50, captured.MaxCount)
	assert.Equal(t, int64(300), captured.Cursor)
	assert.Equal(t, "s9", captured.SearchID)

	require.Len(t, captured.Query.Or, 2)
	assert.Equal(t, "keyword", captured.Query.Or[0].FieldName)
	assert.Equal(t, []string{"storm", "flood"}, captured.Query.Or[0].FieldValues)
	assert.Equal(t, "hashtag_name", captured.Query.Or[1].FieldName)
	assert.Equal(t, []string{"weather"}, captured.Query.Or[1].FieldValues)
	assert.Equal(t, "IN", captured.Query.Or[0].Operation)
}

func TestFetchPageRetriesServerError(t *testing.T) {
	calls := 0
	fetcher := newFetcher(t, 3, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return newResponse(http.StatusServiceUnavailable, ""), nil
		}
		return newResponse(http.StatusOK, pageBody([]string{"7000000000000000001"}, 0, false, "")), nil
	})

	page, err := fetcher.FetchPage(PageRequest{StartDate: "20240101", EndDate: "20240101", Keywords: []string{"storm"}})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, page.Records, 1)
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	calls := 0
	fetcher := newFetcher(t, 3, func(req *http.Request) (*http.Response, error) {
		calls++
		return newResponse(http.StatusServiceUnavailable, ""), nil
	})

	_, err := fetcher.FetchPage(PageRequest{StartDate: "20240101", EndDate: "20240101", Keywords: []string{"storm"}})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypePageFetch, apiErr.Type)
}

func TestFetchPageRefreshesRejectedToken(t *testing.T) {
	log := logger.NewTestLogger()
	exchanges := 0
	var bearers []string
	client := newTestClient(log, func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "/oauth/token/") {
			exchanges++
			body := fmt.Sprintf(`{"access_token": "tok_%d", "expires_in": 7200, "token_type": "Bearer"}`, exchanges)
			return newResponse(http.StatusOK, body), nil
		}
		bearers = append(bearers, req.Header.Get("Authorization"))
		if len(bearers) == 1 {
			// Token expired server-side while the cache still trusted it.
			return newResponse(http.StatusUnauthorized, ""), nil
		}
		return newResponse(http.StatusOK, pageBody([]string{"7000000000000000001"}, 0, false, "")), nil
	})
	tokens := NewTokenManager(client, "key", "secret", 5*time.Minute, log)
	fetcher := NewPageFetcher(client, tokens, retry.PagePolicy(3, time.Millisecond, log), log)

	page, err := fetcher.FetchPage(PageRequest{StartDate: "20240101", EndDate: "20240101", Keywords: []string{"storm"}})
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
	assert.Equal(t, 2, exchanges, "rejection should trigger exactly one fresh exchange")
	require.Len(t, bearers, 2, "rejection should trigger exactly one replay")
	assert.Equal(t, "Bearer tok_1", bearers[0])
	assert.Equal(t, "Bearer tok_2", bearers[1], "replay carries the freshly exchanged token")
}

func TestFetchPageQueryRejected(t *testing.T) {
	body := `{"data": {}, "error": {"code": "invalid_params", "message": "bad date", "log_id": "xyz"}}`
	fetcher := newFetcher(t, 1, func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, body), nil
	})

	_, err := fetcher.FetchPage(PageRequest{StartDate: "20240101", EndDate: "20240101", Keywords: []string{"storm"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_params")
}

func TestFetchPageSkipsMalformedVideos(t *testing.T) {
	body := `{"data": {"videos": [{"username": "no_id"}, {"id": 7000000000000000001}], "cursor": 0, "has_more": false}, "error": {"code": "ok"}}`
	fetcher := newFetcher(t, 1, func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, body), nil
	})

	page, err := fetcher.FetchPage(PageRequest{StartDate: "20240101", EndDate: "20240101", Keywords: []string{"storm"}})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "7000000000000000001", page.Records[0].ID)
	// The raw dump still carries both objects.
	assert.Len(t, page.Raw, 2)
}
