// Package mapping resolves clinical concepts to the FHIR search parameters a
// site uses to find them.
package mapping

import (
	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// Mapping describes how one concept is searched for in the data store.
type Mapping struct {
	Key                       fhir.Coding                `json:"key" yaml:"key"`
	ResourceType              string                     `json:"fhirResourceType" yaml:"fhirResourceType"`
	TermCodeSearchParameter   string                     `json:"termCodeSearchParameter" yaml:"termCodeSearchParameter"`
	ValueSearchParameter      string                     `json:"valueSearchParameter,omitempty" yaml:"valueSearchParameter,omitempty"`
	AttributeSearchParameters []AttributeSearchParameter `json:"attributeSearchParameters,omitempty" yaml:"attributeSearchParameters,omitempty"`
	FixedCriteria             []FixedCriterion           `json:"fixedCriteria,omitempty" yaml:"fixedCriteria,omitempty"`
}

// AttributeSearchParameter names the search parameter used for filters on one
// attribute of the concept.
type AttributeSearchParameter struct {
	AttributeKey    fhir.Coding `json:"attributeKey" yaml:"attributeKey"`
	SearchParameter string      `json:"attributeSearchParameter" yaml:"attributeSearchParameter"`
}

// FixedCriterion is a concept constraint added to every search for the
// concept. Its values are alternatives of each other.
type FixedCriterion struct {
	SearchParameter string        `json:"searchParameter" yaml:"searchParameter"`
	Values          []fhir.Coding `json:"value" yaml:"value"`
}

// ValueParam returns the search parameter for value filters.
func (m Mapping) ValueParam() (string, error) {
	if m.ValueSearchParameter == "" {
		return "", &NotFoundError{Kind: KindValue, Key: m.Key}
	}
	return m.ValueSearchParameter, nil
}

// AttributeParam returns the search parameter for filters on the given attribute.
func (m Mapping) AttributeParam(attribute fhir.Coding) (string, error) {
	for _, a := range m.AttributeSearchParameters {
		if a.AttributeKey.Key() == attribute.Key() && a.SearchParameter != "" {
			return a.SearchParameter, nil
		}
	}
	return "", &NotFoundError{Kind: KindAttribute, Key: m.Key, Attribute: &attribute}
}

func (m Mapping) validate() error {
	switch {
	case m.Key.Code == "":
		return errInvalid(m.Key, "key code is required")
	case m.ResourceType == "":
		return errInvalid(m.Key, "fhirResourceType is required")
	case m.TermCodeSearchParameter == "":
		return errInvalid(m.Key, "termCodeSearchParameter is required")
	}
	for _, fc := range m.FixedCriteria {
		if fc.SearchParameter == "" || len(fc.Values) == 0 {
			return errInvalid(m.Key, "fixed criteria need a searchParameter and at least one value")
		}
	}
	return nil
}
