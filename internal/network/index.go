// Package network turns a plain graph description into the dense matrices and
// reachability data used by the optimizer.
//
// Node ids are mapped to indices in node-list order. The adjacency matrix uses
// the column-source convention: A[t][s] = 1 iff the edge s→t exists, so row t
// of Aᵏ counts the k-step walks ending in t.
package network

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"drivernet/internal/model"
)

var (
	ErrNoNodes       = errors.New("network has no nodes")
	ErrNoTargets     = errors.New("network has no targets")
	ErrUnknownNode   = errors.New("unknown node")
	ErrDuplicateNode = errors.New("duplicate node")
)

// Index is the bijection between node ids and dense indices.
type Index struct {
	ids []string
	pos map[string]int
}

func NewIndex(nodes []string) (*Index, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	idx := &Index{
		ids: make([]string, 0, len(nodes)),
		pos: make(map[string]int, len(nodes)),
	}
	for _, id := range nodes {
		if _, exists := idx.pos[id]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, id)
		}
		idx.pos[id] = len(idx.ids)
		idx.ids = append(idx.ids, id)
	}
	return idx, nil
}

func (x *Index) Len() int {
	return len(x.ids)
}

func (x *Index) ID(i int) string {
	return x.ids[i]
}

func (x *Index) Position(id string) (int, bool) {
	i, ok := x.pos[id]
	return i, ok
}

// Resolve maps ids to indices, failing on the first id missing from the index.
func (x *Index) Resolve(role string, ids []string) ([]int, error) {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		i, ok := x.pos[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s %q", ErrUnknownNode, role, id)
		}
		out = append(out, i)
	}
	return out, nil
}

// Graph is the immutable indexed form of a model.Network.
type Graph struct {
	Index *Index
	// Adjacency is A (N×N) with A[t][s] = 1 iff s→t.
	Adjacency *mat.Dense
	// Selector is C (T×N), one one-hot row per target.
	Selector *mat.Dense
	// Targets holds the node index of each target position.
	Targets   []int
	preferred []bool
}

// Build indexes the network and assembles A and C. Every edge endpoint,
// target and preferred id must appear in the node list. Repeated targets are
// collapsed onto their first occurrence.
func Build(network model.Network) (*Graph, error) {
	idx, err := NewIndex(network.Nodes)
	if err != nil {
		return nil, err
	}
	n := idx.Len()

	adjacency := mat.NewDense(n, n, nil)
	for i, edge := range network.Edges {
		s, ok := idx.Position(edge.Source)
		if !ok {
			return nil, fmt.Errorf("%w: source of edge %d %q", ErrUnknownNode, i, edge.Source)
		}
		t, ok := idx.Position(edge.Target)
		if !ok {
			return nil, fmt.Errorf("%w: target of edge %d %q", ErrUnknownNode, i, edge.Target)
		}
		adjacency.Set(t, s, 1)
	}

	targetIdx, err := idx.Resolve("target", network.Targets)
	if err != nil {
		return nil, err
	}
	targets := make([]int, 0, len(targetIdx))
	seen := make(map[int]struct{}, len(targetIdx))
	for _, t := range targetIdx {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	preferredIdx, err := idx.Resolve("preferred", network.Preferred)
	if err != nil {
		return nil, err
	}
	preferred := make([]bool, n)
	for _, p := range preferredIdx {
		preferred[p] = true
	}

	selector := mat.NewDense(len(targets), n, nil)
	for row, t := range targets {
		selector.Set(row, t, 1)
	}

	return &Graph{
		Index:     idx,
		Adjacency: adjacency,
		Selector:  selector,
		Targets:   targets,
		preferred: preferred,
	}, nil
}

// NodeCount returns N.
func (g *Graph) NodeCount() int {
	return g.Index.Len()
}

// TargetCount returns T.
func (g *Graph) TargetCount() int {
	return len(g.Targets)
}

func (g *Graph) IsPreferred(node int) bool {
	return g.preferred[node]
}

// HasEdge reports whether the edge from→to exists.
func (g *Graph) HasEdge(from, to int) bool {
	return g.Adjacency.At(to, from) != 0
}
