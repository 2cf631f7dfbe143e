package mapping

import (
	"fmt"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// Context is the read-only lookup of mappings and the optional concept tree.
// It is built once at startup and safe for concurrent use.
type Context struct {
	mappings map[fhir.CodingKey]Mapping
	tree     map[fhir.CodingKey]*ConceptTree
}

// NewContext indexes mappings by key. Duplicate keys are rejected. tree may
// be nil, in which case concepts expand to themselves.
func NewContext(mappings []Mapping, tree *ConceptTree) (*Context, error) {
	c := &Context{
		mappings: make(map[fhir.CodingKey]Mapping, len(mappings)),
		tree:     make(map[fhir.CodingKey]*ConceptTree),
	}
	for _, m := range mappings {
		if err := m.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.mappings[m.Key.Key()]; dup {
			return nil, fmt.Errorf("duplicate mapping for key %s", m.Key.Key())
		}
		c.mappings[m.Key.Key()] = m
	}
	if tree != nil {
		tree.index(c.tree)
	}
	return c, nil
}

// Lookup returns the mapping for the concept or a *NotFoundError.
func (c *Context) Lookup(key fhir.Coding) (Mapping, error) {
	m, ok := c.mappings[key.Key()]
	if !ok {
		return Mapping{}, &NotFoundError{Kind: KindConcept, Key: key}
	}
	return m, nil
}

// AttributeSearchParameter returns the search parameter used for filters on
// attribute of the concept key.
func (c *Context) AttributeSearchParameter(key, attribute fhir.Coding) (string, error) {
	m, err := c.Lookup(key)
	if err != nil {
		return "", err
	}
	return m.AttributeParam(attribute)
}

// ExpandConcept returns the concept followed by all of its descendants in the
// concept tree, in pre-order and without duplicates. Concepts unknown to the
// tree expand to themselves.
func (c *Context) ExpandConcept(code fhir.Coding) []fhir.Coding {
	node, ok := c.tree[code.Key()]
	if !ok {
		return []fhir.Coding{code}
	}
	seen := make(map[fhir.CodingKey]struct{})
	var out []fhir.Coding
	node.walk(func(n *ConceptTree) {
		if _, dup := seen[n.TermCode.Key()]; dup {
			return
		}
		seen[n.TermCode.Key()] = struct{}{}
		out = append(out, n.TermCode)
	})
	return out
}

// Len returns the number of mappings.
func (c *Context) Len() int {
	return len(c.mappings)
}
