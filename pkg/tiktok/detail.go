package tiktok

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	errs "ttharvest/pkg/errors"
)

// detailScriptID marks the embedded JSON document on a post detail page.
const detailScriptID = `id="__UNIVERSAL_DATA_FOR_REHYDRATION__"`

// visibilityPath is the nested location of the private flag inside the
// detail document. Absence of the webapp.video-detail branch means the
// post no longer exists.
var visibilityPath = []string{"__DEFAULT_SCOPE__", "webapp.video-detail", "itemInfo", "itemStruct"}

// ErrPostRemoved reports a detail page whose document lacks the
// video-detail branch entirely.
var ErrPostRemoved = &errs.Error{
	Type:    errs.ErrorTypeNotFound,
	Message: "post detail missing, post removed",
}

// FetchVisibility loads a post's detail page and reports whether the post
// is private. The share URL with copy-link parameters is what the public
// site serves the detail document for.
func (c *Client) FetchVisibility(postURL string) (private bool, err error) {
	resp, err := c.Get(ShareURL(postURL))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return false, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read detail page: %v", err),
		}
	}

	doc, err := extractDetailJSON(string(body))
	if err != nil {
		return false, err
	}

	item, err := digMap(doc, visibilityPath)
	if err != nil {
		return false, ErrPostRemoved
	}

	flag, _ := item["privateItem"].(bool)
	return flag, nil
}

// extractDetailJSON pulls the embedded JSON document out of the page HTML.
func extractDetailJSON(html string) (map[string]interface{}, error) {
	idx := strings.Index(html, detailScriptID)
	if idx < 0 {
		return nil, ErrPostRemoved
	}

	start := strings.Index(html[idx:], ">")
	if start < 0 {
		return nil, ErrPostRemoved
	}
	start += idx + 1

	end := strings.Index(html[start:], "</script>")
	if end < 0 {
		return nil, ErrPostRemoved
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(html[start:start+end]), &doc); err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse detail document: %v", err),
		}
	}

	return doc, nil
}

// digMap walks nested objects along a key path.
func digMap(doc map[string]interface{}, path []string) (map[string]interface{}, error) {
	current := doc
	for _, key := range path {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("missing path element %q", key)
		}
		current = next
	}
	return current, nil
}
