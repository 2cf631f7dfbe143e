package fhir

import (
	"encoding/json"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode  string   `json:"mode,omitempty"`
	Score *float64 `json:"score,omitempty"`
}

// Search entry modes.
const (
	SearchModeMatch   = "match"
	SearchModeInclude = "include"
	SearchModeOutcome = "outcome"
)

func (b *Bundle) link(relation string) (string, bool) {
	for _, l := range b.Link {
		if l.Relation == relation && l.URL != "" {
			return l.URL, true
		}
	}
	return "", false
}

// NextLink returns the URL of the next page, if the bundle is truncated.
func (b *Bundle) NextLink() (string, bool) {
	return b.link("next")
}

// Matches returns the resources of all entries that matched the search.
// Entries without a search mode are treated as matches.
func (b *Bundle) Matches() []json.RawMessage {
	out := make([]json.RawMessage, 0, len(b.Entry))
	for _, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		if e.Search != nil && e.Search.Mode != "" && e.Search.Mode != SearchModeMatch {
			continue
		}
		out = append(out, e.Resource)
	}
	return out
}

// Outcomes returns the OperationOutcome resources a server added to the
// search result, typically to report ignored or unsupported parameters.
func (b *Bundle) Outcomes() []*OperationOutcome {
	var out []*OperationOutcome
	for _, e := range b.Entry {
		if e.Search == nil || e.Search.Mode != SearchModeOutcome {
			continue
		}
		var oo OperationOutcome
		if err := json.Unmarshal(e.Resource, &oo); err != nil || oo.ResourceType != "OperationOutcome" {
			continue
		}
		out = append(out, &oo)
	}
	return out
}
