package archive

import (
	"encoding/json"

	"github.com/go-faster/errors"
)

type link struct {
	Href string `json:"href"`
}

type conflictEntry struct {
	Links map[string][]link `json:"_links"`
}

type conflictBody struct {
	conflictEntry
	Embedded *struct {
		Entries []conflictEntry `json:"_entries"`
	} `json:"_embedded"`
	TotalItems *int `json:"total_items"`
}

// ConflictMatches returns the self links of the existing resources a 409 body enumerates.
// The body is either a collection (_embedded._entries) or a single resource.
func ConflictMatches(body []byte) ([]string, error) {
	var b conflictBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, errors.Wrap(err, "decode conflict body")
	}
	if b.Embedded != nil || b.TotalItems != nil {
		var out []string
		if b.Embedded != nil {
			for _, e := range b.Embedded.Entries {
				out = append(out, selfLink(e))
			}
		}
		return out, nil
	}
	if self := selfLink(b.conflictEntry); self != "" {
		return []string{self}, nil
	}
	return nil, nil
}

func selfLink(e conflictEntry) string {
	for _, l := range e.Links["self"] {
		if l.Href != "" {
			return l.Href
		}
	}
	return ""
}
