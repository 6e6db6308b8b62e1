package models

import (
	"fmt"
	"time"
)

// AccessToken is a bearer token from the client-credentials exchange.
type AccessToken struct {
	Value     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int64     `json:"expires_in"`
	IssuedAt  time.Time `json:"issued_at"`
}

// ExpiresAt returns the absolute expiry time.
func (t *AccessToken) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Usable reports whether the token may still be presented to the API.
// A token inside the safety margin of its expiry must not be used.
func (t *AccessToken) Usable(now time.Time, margin time.Duration) bool {
	if t == nil || t.Value == "" {
		return false
	}
	return now.Before(t.ExpiresAt().Add(-margin))
}

// UTCTime is the calendar decomposition of a post's create time.
type UTCTime struct {
	Year       int    `json:"utc_year"`
	Month      int    `json:"utc_month"`
	Day        int    `json:"utc_day"`
	Hour       int    `json:"utc_hour"`
	Minute     int    `json:"utc_minute"`
	Second     int    `json:"utc_second"`
	DateString string `json:"utc_date_string"`
	TimeString string `json:"utc_time_string"`
}

// DecomposeEpoch converts epoch seconds to its UTC calendar components.
func DecomposeEpoch(epoch int64) UTCTime {
	ts := time.Unix(epoch, 0).UTC()
	return UTCTime{
		Year:       ts.Year(),
		Month:      int(ts.Month()),
		Day:        ts.Day(),
		Hour:       ts.Hour(),
		Minute:     ts.Minute(),
		Second:     ts.Second(),
		DateString: ts.Format("2006-01-02"),
		TimeString: ts.Format("15:04:05"),
	}
}

// PostRecord is one harvested post. ID is globally unique for the
// lifetime of the collection; the ingestion layer guarantees a record
// with a previously seen id is never persisted twice.
type PostRecord struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	CreateTime int64  `json:"create_time"`

	// URL is the canonical post URL derived from username and id.
	URL string `json:"tiktokurl"`

	// UTC is derived from CreateTime, not from the query date.
	UTC UTCTime `json:"utc"`

	// Raw preserves every other API-returned attribute, stringified for
	// the tabular persistence boundary.
	Raw map[string]string `json:"raw,omitempty"`
}

// CanonicalURL builds the public URL for a post.
func CanonicalURL(username, id string) string {
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", username, id)
}

// Derive fills the computed fields from the identifying ones.
func (r *PostRecord) Derive() {
	r.URL = CanonicalURL(r.Username, r.ID)
	r.UTC = DecomposeEpoch(r.CreateTime)
}

// MediaValidationResult is attached to a record after the media phase.
// It is independent of metadata correctness.
type MediaValidationResult struct {
	RecordID string `json:"record_id"`
	// IsPublic is false both for confirmed-private posts and for posts
	// whose visibility could not be determined (fail-closed).
	IsPublic bool `json:"is_public"`
	// Determined reports whether IsPublic reflects an actual API answer
	// rather than the fail-closed default.
	Determined bool `json:"determined"`
	MediaValid bool `json:"media_valid"`
}
