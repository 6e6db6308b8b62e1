package tiktok

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ttharvest/pkg/models"
)

// tokenResponse is the body of the client-credentials exchange.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// queryCondition is one filter clause of the video query.
type queryCondition struct {
	Operation   string   `json:"operation"`
	FieldName   string   `json:"field_name"`
	FieldValues []string `json:"field_values"`
}

// queryFilter combines conditions. Keyword and hashtag clauses are
// OR-combined; values inside each clause OR as well.
type queryFilter struct {
	Or []queryCondition `json:"or"`
}

// queryRequest is the body posted to the query endpoint. The cursor is
// echoed back verbatim between pages.
type queryRequest struct {
	Query     queryFilter `json:"query"`
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	MaxCount  int         `json:"max_count"`
	Cursor    int64       `json:"cursor,omitempty"`
	SearchID  string      `json:"search_id,omitempty"`
}

// queryResponse is the body returned by the query endpoint.
type queryResponse struct {
	Data struct {
		Videos   []map[string]interface{} `json:"videos"`
		Cursor   int64                    `json:"cursor"`
		HasMore  bool                     `json:"has_more"`
		SearchID string                   `json:"search_id"`
		Total    int64                    `json:"total"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		LogID   string `json:"log_id"`
	} `json:"error"`
}

// Page is one page of query results. TotalCount is the API-reported
// number of videos matching the window, repeated on every page.
type Page struct {
	Records    []models.PostRecord
	NextCursor int64
	HasMore    bool
	SearchID   string
	TotalCount int64
	// Raw holds the undecoded video objects for the per-day JSON dump.
	Raw []map[string]interface{}
}

// recordFromVideo converts one API video object into a PostRecord,
// preserving unrecognized attributes in Raw.
func recordFromVideo(video map[string]interface{}) (models.PostRecord, error) {
	var rec models.PostRecord

	id, ok := video["id"]
	if !ok {
		return rec, fmt.Errorf("video object missing id")
	}
	rec.ID = stringify(id)

	if username, ok := video["username"]; ok {
		rec.Username = stringify(username)
	}
	if ct, ok := video["create_time"]; ok {
		if num, ok := ct.(json.Number); ok {
			epoch, err := num.Int64()
			if err != nil {
				return rec, fmt.Errorf("invalid create_time for id %s: %w", rec.ID, err)
			}
			rec.CreateTime = epoch
		}
	}

	rec.Raw = make(map[string]string)
	for key, value := range video {
		switch key {
		case "id", "username", "create_time":
			continue
		}
		rec.Raw[key] = stringify(value)
	}

	rec.Derive()
	return rec, nil
}

// stringify flattens a decoded JSON value for the tabular boundary.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ";")
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+stringify(val[k]))
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprintf("%v", val)
	}
}
