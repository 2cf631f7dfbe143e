// Package patientset provides sets of patient identifiers and the set algebra
// used to combine search results.
package patientset

import "sort"

// Set is a set of patient ids. The zero value is an empty set ready to use.
// A Set is not safe for concurrent mutation.
type Set struct {
	ids map[string]struct{}
}

// New returns a set holding ids.
func New(ids ...string) *Set {
	s := &Set{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Add adds id to the set.
func (s *Set) Add(id string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

func (s *Set) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

func (s *Set) IsEmpty() bool {
	return s.Len() == 0
}

// IDs returns the ids in ascending order.
func (s *Set) IDs() []string {
	out := make([]string, 0, s.Len())
	if s != nil {
		for id := range s.ids {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Union returns a new set holding the ids of all sets.
func Union(sets ...*Set) *Set {
	size := 0
	for _, s := range sets {
		size += s.Len()
	}
	out := &Set{ids: make(map[string]struct{}, size)}
	for _, s := range sets {
		if s == nil {
			continue
		}
		for id := range s.ids {
			out.ids[id] = struct{}{}
		}
	}
	return out
}

// Intersect returns a new set holding the ids contained in every set.
// Intersecting no sets yields the empty set.
func Intersect(sets ...*Set) *Set {
	if len(sets) == 0 {
		return New()
	}
	smallest := sets[0]
	for _, s := range sets[1:] {
		if s.Len() < smallest.Len() {
			smallest = s
		}
	}
	out := New()
	if smallest == nil {
		return out
	}
	for id := range smallest.ids {
		in := true
		for _, s := range sets {
			if !s.Contains(id) {
				in = false
				break
			}
		}
		if in {
			out.ids[id] = struct{}{}
		}
	}
	return out
}
