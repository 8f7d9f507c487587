package plugin

import (
	"iter"
	"slices"
)

// IDSet is an ordered set of plugin ids. Iteration follows insertion order
// and an id appears at most once. The zero value is an empty set and an IDSet
// is never mutated after construction, so it may be shared freely.
type IDSet struct {
	ids []string
}

// NewIDSet builds a set from ids, keeping the first occurrence of each and
// dropping empty ids.
func NewIDSet(ids ...string) IDSet {
	if len(ids) == 0 {
		return IDSet{}
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return IDSet{ids: out}
}

func (s IDSet) Len() int { return len(s.ids) }

func (s IDSet) Contains(id string) bool {
	return slices.Contains(s.ids, id)
}

// IDs returns a copy of the ids in order.
func (s IDSet) IDs() []string {
	return slices.Clone(s.ids)
}

// All yields the ids in order.
func (s IDSet) All() iter.Seq[string] {
	return slices.Values(s.ids)
}
