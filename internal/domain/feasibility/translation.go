package feasibility

import (
	"github.com/alexanderkiel/flare/internal/domain/sq"
	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// Translation holds the queries generated for a structured query, grouped the
// same way as its criteria.
type Translation struct {
	InclusionCriteria [][]CriterionTranslation `json:"inclusionCriteria"`
	// Queries lists every distinct query once, in order of first appearance.
	Queries []fhir.Query `json:"queries"`
}

// CriterionTranslation holds the alternative queries of one criterion.
type CriterionTranslation struct {
	TermCodes []fhir.Coding `json:"termCodes"`
	Queries   []fhir.Query  `json:"queries"`
}

func (t *Translator) translateQuery(q sq.StructuredQuery) (*Translation, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	out := &Translation{InclusionCriteria: make([][]CriterionTranslation, len(q.InclusionCriteria))}
	seen := make(map[string]struct{})
	for i, group := range q.InclusionCriteria {
		out.InclusionCriteria[i] = make([]CriterionTranslation, len(group))
		for j, c := range group {
			queries, err := t.Translate(c)
			if err != nil {
				return nil, err
			}
			out.InclusionCriteria[i][j] = CriterionTranslation{TermCodes: c.Concepts(), Queries: queries}
			for _, query := range queries {
				if _, dup := seen[query.Key()]; !dup {
					seen[query.Key()] = struct{}{}
					out.Queries = append(out.Queries, query)
				}
			}
		}
	}
	return out, nil
}
