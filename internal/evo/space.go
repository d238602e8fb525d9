package evo

import (
	"errors"
	"fmt"

	"drivernet/internal/network"
)

var ErrEmptyAncestorSet = errors.New("target has no ancestors")

// AncestorSource exposes per-target ancestor sets and their sampling weights.
// *network.Reachability implements it.
type AncestorSource interface {
	Ancestors(row int) []int
	Weights(row int) []float64
}

// SearchSpace is the read-only view of the graph every chromosome operation
// samples from. It is shared by reference across workers.
type SearchSpace struct {
	graph     *network.Graph
	ancestors AncestorSource

	preferredAncestors [][]int
	ancestorSets       []map[int]struct{}
}

// NewSearchSpace rejects any target without ancestors: such a target could
// never receive a valid gene.
func NewSearchSpace(g *network.Graph, ancestors AncestorSource) (*SearchSpace, error) {
	if g == nil {
		return nil, errors.New("graph is required")
	}
	if ancestors == nil {
		return nil, errors.New("ancestor source is required")
	}
	t := g.TargetCount()
	s := &SearchSpace{
		graph:              g,
		ancestors:          ancestors,
		preferredAncestors: make([][]int, t),
		ancestorSets:       make([]map[int]struct{}, t),
	}
	for row := 0; row < t; row++ {
		members := ancestors.Ancestors(row)
		if len(members) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEmptyAncestorSet, g.Index.ID(g.Targets[row]))
		}
		if len(ancestors.Weights(row)) != len(members) {
			return nil, fmt.Errorf("ancestor weights misaligned for target %q", g.Index.ID(g.Targets[row]))
		}
		set := make(map[int]struct{}, len(members))
		for _, node := range members {
			set[node] = struct{}{}
			if g.IsPreferred(node) {
				s.preferredAncestors[row] = append(s.preferredAncestors[row], node)
			}
		}
		s.ancestorSets[row] = set
	}
	return s, nil
}

func (s *SearchSpace) Graph() *network.Graph {
	return s.graph
}

// Genes is the number of genes per chromosome (one per target).
func (s *SearchSpace) Genes() int {
	return s.graph.TargetCount()
}

func (s *SearchSpace) Ancestors(row int) []int {
	return s.ancestors.Ancestors(row)
}

func (s *SearchSpace) Weights(row int) []float64 {
	return s.ancestors.Weights(row)
}

func (s *SearchSpace) PreferredAncestors(row int) []int {
	return s.preferredAncestors[row]
}

func (s *SearchSpace) IsAncestor(row, node int) bool {
	_, ok := s.ancestorSets[row][node]
	return ok
}

func (s *SearchSpace) IsPreferred(node int) bool {
	return s.graph.IsPreferred(node)
}
