package mapping

import (
	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// ConceptTree is a node of the concept hierarchy.
type ConceptTree struct {
	TermCode fhir.Coding    `json:"termCode" yaml:"termCode"`
	Children []*ConceptTree `json:"children,omitempty" yaml:"children,omitempty"`
}

func (t *ConceptTree) walk(fn func(*ConceptTree)) {
	fn(t)
	for _, child := range t.Children {
		child.walk(fn)
	}
}

// index keeps the first occurrence of every term code.
func (t *ConceptTree) index(nodes map[fhir.CodingKey]*ConceptTree) {
	t.walk(func(n *ConceptTree) {
		if _, ok := nodes[n.TermCode.Key()]; !ok {
			nodes[n.TermCode.Key()] = n
		}
	})
}
