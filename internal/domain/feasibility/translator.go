// Package feasibility answers how many patients match a structured query.
package feasibility

import (
	"github.com/alexanderkiel/flare/internal/domain/sq"
	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// Translator turns criteria into search queries.
type Translator struct {
	mappings sq.MappingContext
}

func NewTranslator(mappings sq.MappingContext) *Translator {
	return &Translator{mappings: mappings}
}

// Translate returns the search alternatives of the criterion in expansion
// order. Identical alternatives are returned once.
func (t *Translator) Translate(c sq.Criterion) ([]fhir.Query, error) {
	expanded, err := c.Expand(t.mappings)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(expanded))
	queries := make([]fhir.Query, 0, len(expanded))
	for _, e := range expanded {
		q := e.ToQuery()
		if _, dup := seen[q.Key()]; dup {
			continue
		}
		seen[q.Key()] = struct{}{}
		queries = append(queries, q)
	}
	return queries, nil
}
