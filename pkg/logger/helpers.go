package logger

// LogRequest logs HTTP request information
func LogRequest(method, url string, statusCode int, duration float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration,
	}

	if statusCode >= 200 && statusCode < 300 {
		GetLogger().InfoWithFields("HTTP request completed", fields)
	} else if statusCode >= 400 && statusCode < 500 {
		GetLogger().WarnWithFields("HTTP request client error", fields)
	} else if statusCode >= 500 {
		GetLogger().ErrorWithFields("HTTP request server error", fields)
	}
}

// LogPageFailure logs a page that permanently failed for a date window.
// Carries enough context to re-run just that day later.
func LogPageFailure(date string, page int, err error) {
	GetLogger().WithFields(map[string]interface{}{
		"date":   date,
		"page":   page,
		"action": "page_failed",
	}).WithError(err).Error("Page fetch permanently failed, day marked partial")
}

// LogMediaFailure logs a record whose media download permanently failed.
func LogMediaFailure(recordID, url string, err error) {
	logger := GetLogger().WithFields(map[string]interface{}{
		"record_id": recordID,
		"url":       url,
		"action":    "media_failed",
	})
	if err != nil {
		logger = logger.WithError(err)
	}
	logger.Error("Failed to download video")
}

// LogRateLimit logs rate limiting events
func LogRateLimit(endpoint string, retryAfter int) {
	GetLogger().WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogDayProgress logs per-day collection progress
func LogDayProgress(date string, records, pages int, total int64, partial bool) {
	GetLogger().WithFields(map[string]interface{}{
		"date":    date,
		"records": records,
		"pages":   pages,
		"total":   total,
		"partial": partial,
	}).Info("Day ingested")
}
