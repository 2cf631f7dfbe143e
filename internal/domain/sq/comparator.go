package sq

import (
	"fmt"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// Comparator is the relation of a quantity to a filter value.
type Comparator string

const (
	LessThan     Comparator = "lt"
	LessEqual    Comparator = "le"
	GreaterThan  Comparator = "gt"
	GreaterEqual Comparator = "ge"
	Equal        Comparator = "eq"
)

// ParseComparator accepts the short FHIR prefix form of a comparator.
func ParseComparator(s string) (Comparator, error) {
	switch c := Comparator(s); c {
	case LessThan, LessEqual, GreaterThan, GreaterEqual, Equal:
		return c, nil
	}
	return "", fmt.Errorf("unknown comparator %q", s)
}

// Prefix returns the search prefix of the comparator.
func (c Comparator) Prefix() fhir.SearchPrefix {
	switch c {
	case LessThan:
		return fhir.PrefixLt
	case LessEqual:
		return fhir.PrefixLe
	case GreaterThan:
		return fhir.PrefixGt
	case GreaterEqual:
		return fhir.PrefixGe
	default:
		return fhir.PrefixEq
	}
}
