package tiktok

import (
	"fmt"
	"net/url"
)

const (
	// BaseURL is the base URL for the Research API
	BaseURL = "https://open.tiktokapis.com"

	// TokenEndpoint is the client-credentials exchange endpoint
	TokenEndpoint = "/v2/oauth/token/"

	// QueryEndpoint is the paginated video query endpoint
	QueryEndpoint = "/v2/research/video/query/"

	// QueryFields are the record attributes requested from the query endpoint
	QueryFields = "id,username,create_time,video_description,region_code,like_count,comment_count,share_count,view_count,hashtag_names,music_id"

	// WebBaseURL is the public site serving post detail pages
	WebBaseURL = "https://www.tiktok.com"

	// DefaultPageSize is the default max_count sent per query
	DefaultPageSize = 100

	// MaxPageSize is the maximum the query endpoint allows
	MaxPageSize = 100
)

// TokenURL returns the full token exchange URL
func TokenURL(base string) string {
	if base == "" {
		base = BaseURL
	}
	return base + TokenEndpoint
}

// QueryURL returns the full query URL with the fields parameter set
func QueryURL(base string) string {
	if base == "" {
		base = BaseURL
	}
	params := url.Values{}
	params.Set("fields", QueryFields)
	return fmt.Sprintf("%s%s?%s", base, QueryEndpoint, params.Encode())
}

// ShareURL appends the copy-link query parameters the download collaborator
// expects on a canonical post URL.
func ShareURL(postURL string) string {
	return postURL + "?is_copy_url=1&is_from_webapp=v1"
}

// VideoFilename is the deterministic local name for a downloaded video.
func VideoFilename(username, id string) string {
	return fmt.Sprintf("@%s_video_%s.mp4", username, id)
}

// ClampPageSize bounds a requested page size to what the API accepts.
func ClampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
