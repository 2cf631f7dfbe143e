// Package fhirtest builds FHIR resources for tests that stand in for a FHIR
// server.
package fhirtest

import (
	"encoding/json"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// SearchBundle creates a searchset Bundle from a list of resources with a
// self link and, if next is non-empty, a next link.
func SearchBundle(resources []interface{}, self, next string) *fhir.Bundle {
	entries := make([]fhir.BundleEntry, len(resources))
	for i, r := range resources {
		raw, _ := json.Marshal(r)
		entries[i] = fhir.BundleEntry{
			Resource: raw,
			Search:   &fhir.BundleSearch{Mode: fhir.SearchModeMatch},
		}
	}

	links := []fhir.BundleLink{{Relation: "self", URL: self}}
	if next != "" {
		links = append(links, fhir.BundleLink{Relation: "next", URL: next})
	}

	return &fhir.Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Link:         links,
		Entry:        entries,
	}
}
