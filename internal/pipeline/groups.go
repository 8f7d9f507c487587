package pipeline

import (
	"context"
	"maps"
	"slices"
)

// Group is a named set of pipelines.
type Group struct {
	Name      string
	Pipelines []string
}

// GroupIndex maps pipeline names to their group. It is immutable once built.
type GroupIndex struct {
	byPipeline map[string]string
}

// NewGroupIndex indexes groups in order. A pipeline listed in more than one
// group belongs to the first.
func NewGroupIndex(groups ...Group) *GroupIndex {
	idx := &GroupIndex{byPipeline: make(map[string]string)}
	for _, g := range groups {
		for _, p := range g.Pipelines {
			k := key(p)
			if _, taken := idx.byPipeline[k]; !taken {
				idx.byPipeline[k] = g.Name
			}
		}
	}
	return idx
}

// FindGroupName returns the pipeline's group, or "" if it has none. It never
// fails.
func (g *GroupIndex) FindGroupName(_ context.Context, pipelineName string) (string, error) {
	return g.byPipeline[key(pipelineName)], nil
}

// Len is the number of indexed pipelines.
func (g *GroupIndex) Len() int {
	return len(g.byPipeline)
}

// Groups returns the distinct group names, sorted.
func (g *GroupIndex) Groups() []string {
	set := make(map[string]struct{})
	for _, name := range g.byPipeline {
		set[name] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}
