package sq

import (
	"fmt"
)

// StructuredQuery is a list of AND-groups, each a list of alternative
// criteria.
type StructuredQuery struct {
	Version           string
	InclusionCriteria [][]Criterion
}

// NewStructuredQuery creates a query from its AND-groups.
func NewStructuredQuery(groups ...[]Criterion) StructuredQuery {
	return StructuredQuery{InclusionCriteria: groups}
}

// Validate rejects queries without groups, groups without criteria and
// criteria without concepts.
func (q StructuredQuery) Validate() error {
	if len(q.InclusionCriteria) == 0 {
		return &ValidationError{Field: "inclusionCriteria", Message: "at least one group is required"}
	}
	for i, group := range q.InclusionCriteria {
		if len(group) == 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("inclusionCriteria[%d]", i),
				Message: "at least one criterion is required",
			}
		}
		for j, c := range group {
			if len(c.concepts) == 0 {
				return &ValidationError{
					Field:   fmt.Sprintf("inclusionCriteria[%d][%d].termCodes", i, j),
					Message: "at least one term code is required",
				}
			}
		}
	}
	return nil
}
