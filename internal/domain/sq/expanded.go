package sq

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// ExpandedFilter is a filter resolved to a concrete search parameter. It is
// either an ExpandedConceptFilter or an ExpandedComparatorFilter.
type ExpandedFilter interface {
	SearchParameter() string
	expandedFilter()
}

type ExpandedConceptFilter struct {
	Param   string
	Concept fhir.Coding
}

func (f ExpandedConceptFilter) SearchParameter() string { return f.Param }
func (ExpandedConceptFilter) expandedFilter()           {}

type ExpandedComparatorFilter struct {
	Param      string
	Comparator Comparator
	Value      *apd.Decimal
	Unit       *fhir.Coding
}

func (f ExpandedComparatorFilter) SearchParameter() string { return f.Param }
func (ExpandedComparatorFilter) expandedFilter()           {}

// ExpandedCriterion is one fully resolved search alternative of a criterion.
type ExpandedCriterion struct {
	ResourceType string
	ConceptParam string
	Concept      fhir.Coding
	Filters      []ExpandedFilter
}

// AppendFilter returns a copy of the criterion with filter added at the end.
func (e ExpandedCriterion) AppendFilter(filter ExpandedFilter) ExpandedCriterion {
	filters := make([]ExpandedFilter, len(e.Filters), len(e.Filters)+1)
	copy(filters, e.Filters)
	e.Filters = append(filters, filter)
	return e
}

// ToQuery returns the search query of the criterion: the concept parameter
// followed by one parameter per filter, in filter order.
func (e ExpandedCriterion) ToQuery() fhir.Query {
	params := fhir.NewQueryParams(e.ConceptParam, e.Concept.SearchValue())
	for _, f := range e.Filters {
		switch f := f.(type) {
		case ExpandedConceptFilter:
			params = params.AppendCoding(f.Param, f.Concept)
		case ExpandedComparatorFilter:
			params = params.AppendQuantity(f.Param, f.Comparator.Prefix(), f.Value, f.Unit)
		}
	}
	return fhir.NewQuery(e.ResourceType, params)
}
