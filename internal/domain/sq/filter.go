package sq

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// FilterKind is the variant of a FilterPart. It never changes after
// construction.
type FilterKind int

const (
	ConceptFilter FilterKind = iota + 1
	ComparatorFilter
	RangeFilter
)

func (k FilterKind) String() string {
	switch k {
	case ConceptFilter:
		return "concept"
	case ComparatorFilter:
		return "quantity-comparator"
	case RangeFilter:
		return "quantity-range"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

// FilterPart is the unexpanded constraint on a value or attribute. Only the
// fields of its kind are set.
type FilterPart struct {
	kind       FilterKind
	concepts   []fhir.Coding
	comparator Comparator
	value      *apd.Decimal
	lower      *apd.Decimal
	upper      *apd.Decimal
	unit       *fhir.Coding
}

// NewConceptFilter matches if any of the concepts matches.
func NewConceptFilter(concepts ...fhir.Coding) FilterPart {
	return FilterPart{kind: ConceptFilter, concepts: append([]fhir.Coding(nil), concepts...)}
}

// NewComparatorFilter compares a quantity with value. unit may be nil.
func NewComparatorFilter(comparator Comparator, value *apd.Decimal, unit *fhir.Coding) FilterPart {
	return FilterPart{kind: ComparatorFilter, comparator: comparator, value: value, unit: unit}
}

// NewRangeFilter matches quantities between lower and upper, both inclusive.
// unit may be nil.
func NewRangeFilter(lower, upper *apd.Decimal, unit *fhir.Coding) FilterPart {
	return FilterPart{kind: RangeFilter, lower: lower, upper: upper, unit: unit}
}

func (p FilterPart) Kind() FilterKind {
	return p.kind
}

// Concepts returns a copy of the alternatives of a concept filter.
func (p FilterPart) Concepts() []fhir.Coding {
	return append([]fhir.Coding(nil), p.concepts...)
}

func (p FilterPart) Comparator() Comparator { return p.comparator }
func (p FilterPart) Value() *apd.Decimal    { return p.value }
func (p FilterPart) Lower() *apd.Decimal    { return p.lower }
func (p FilterPart) Upper() *apd.Decimal    { return p.upper }
func (p FilterPart) Unit() *fhir.Coding     { return p.unit }

// AppendConcept returns a concept filter with one more alternative. It panics
// on other kinds.
func (p FilterPart) AppendConcept(concept fhir.Coding) FilterPart {
	if p.kind != ConceptFilter {
		panic("sq: AppendConcept on " + p.kind.String() + " filter")
	}
	concepts := make([]fhir.Coding, len(p.concepts), len(p.concepts)+1)
	copy(concepts, p.concepts)
	p.concepts = append(concepts, concept)
	return p
}

// Expand resolves the filter against a search parameter. The result is a list
// of alternatives; the filters inside one alternative are combined by AND.
//
// A concept filter yields one alternative per concept. A comparator filter
// yields a single alternative with one filter, a range filter a single
// alternative with a ge filter on the lower bound followed by a le filter on
// the upper bound.
func (p FilterPart) Expand(param string) [][]ExpandedFilter {
	switch p.kind {
	case ConceptFilter:
		alts := make([][]ExpandedFilter, len(p.concepts))
		for i, c := range p.concepts {
			alts[i] = []ExpandedFilter{ExpandedConceptFilter{Param: param, Concept: c}}
		}
		return alts
	case ComparatorFilter:
		return [][]ExpandedFilter{{
			ExpandedComparatorFilter{Param: param, Comparator: p.comparator, Value: p.value, Unit: p.unit},
		}}
	case RangeFilter:
		return [][]ExpandedFilter{{
			ExpandedComparatorFilter{Param: param, Comparator: GreaterEqual, Value: p.lower, Unit: p.unit},
			ExpandedComparatorFilter{Param: param, Comparator: LessEqual, Value: p.upper, Unit: p.unit},
		}}
	default:
		return nil
	}
}

// Filter constrains either the value of a criterion (Attribute is nil) or one
// of its attributes.
type Filter struct {
	Attribute *fhir.Coding
	Part      FilterPart
}

// NewValueFilter constrains the value of the criterion.
func NewValueFilter(part FilterPart) Filter {
	return Filter{Part: part}
}

// NewAttributeFilter constrains the given attribute of the criterion.
func NewAttributeFilter(attribute fhir.Coding, part FilterPart) Filter {
	return Filter{Attribute: &attribute, Part: part}
}
