// Package sq models structured feasibility queries and expands their criteria
// into concrete search alternatives.
package sq

import (
	"github.com/alexanderkiel/flare/internal/domain/mapping"
	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// MappingContext resolves concepts to their mapping and attributes of a
// concept to their search parameter. *mapping.Context implements it.
type MappingContext interface {
	Lookup(key fhir.Coding) (mapping.Mapping, error)
	AttributeSearchParameter(key, attribute fhir.Coding) (string, error)
	ExpandConcept(code fhir.Coding) []fhir.Coding
}

// Criterion is a concept, given as alternative term codes, together with
// filters on its value and attributes.
type Criterion struct {
	concepts []fhir.Coding
	filters  []Filter
}

// NewCriterion creates a criterion without filters. The first concept is the
// primary one used for the mapping lookup.
func NewCriterion(concepts ...fhir.Coding) Criterion {
	return Criterion{concepts: append([]fhir.Coding(nil), concepts...)}
}

func (c Criterion) Concepts() []fhir.Coding {
	return append([]fhir.Coding(nil), c.concepts...)
}

func (c Criterion) Filters() []Filter {
	return append([]Filter(nil), c.filters...)
}

// AppendFilter returns a copy of the criterion with filter added at the end.
func (c Criterion) AppendFilter(filter Filter) Criterion {
	filters := make([]Filter, len(c.filters), len(c.filters)+1)
	copy(filters, c.filters)
	c.filters = append(filters, filter)
	return c
}

// Expand returns all search alternatives of the criterion. Every concept
// alternative, after concept tree expansion, is combined with every choice of
// one alternative per filter source. Filter sources are the fixed criteria of
// the mapping followed by the value filter and the attribute filters in
// order. Earlier sources vary slowest.
//
// A missing mapping fails the whole expansion with a *mapping.NotFoundError.
func (c Criterion) Expand(mc MappingContext) ([]ExpandedCriterion, error) {
	if len(c.concepts) == 0 {
		return nil, &ValidationError{Field: "termCodes", Message: "at least one term code is required"}
	}
	m, err := mc.Lookup(c.concepts[0])
	if err != nil {
		return nil, err
	}

	sources := make([][][]ExpandedFilter, 0, len(m.FixedCriteria)+len(c.filters))
	for _, fc := range m.FixedCriteria {
		sources = append(sources, NewConceptFilter(fc.Values...).Expand(fc.SearchParameter))
	}
	for _, f := range c.filters {
		param, err := searchParameter(mc, m, f)
		if err != nil {
			return nil, err
		}
		sources = append(sources, f.Part.Expand(param))
	}

	combinations := product(sources)
	var out []ExpandedCriterion
	for _, concept := range c.expandConcepts(mc) {
		for _, filters := range combinations {
			out = append(out, ExpandedCriterion{
				ResourceType: m.ResourceType,
				ConceptParam: m.TermCodeSearchParameter,
				Concept:      concept,
				Filters:      append([]ExpandedFilter(nil), filters...),
			})
		}
	}
	return out, nil
}

func searchParameter(mc MappingContext, m mapping.Mapping, f Filter) (string, error) {
	if f.Attribute == nil {
		return m.ValueParam()
	}
	return mc.AttributeSearchParameter(m.Key, *f.Attribute)
}

func (c Criterion) expandConcepts(mc MappingContext) []fhir.Coding {
	seen := make(map[fhir.CodingKey]struct{})
	var out []fhir.Coding
	for _, concept := range c.concepts {
		for _, code := range mc.ExpandConcept(concept) {
			if _, dup := seen[code.Key()]; dup {
				continue
			}
			seen[code.Key()] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}

// product returns the Cartesian product of the sources, concatenating the
// chosen slices. No sources yield a single empty combination.
func product(sources [][][]ExpandedFilter) [][]ExpandedFilter {
	combinations := [][]ExpandedFilter{nil}
	for _, alts := range sources {
		next := make([][]ExpandedFilter, 0, len(combinations)*len(alts))
		for _, prefix := range combinations {
			for _, alt := range alts {
				combination := make([]ExpandedFilter, 0, len(prefix)+len(alt))
				combination = append(combination, prefix...)
				next = append(next, append(combination, alt...))
			}
		}
		combinations = next
	}
	return combinations
}
