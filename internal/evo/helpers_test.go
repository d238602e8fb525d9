package evo

import (
	"fmt"
	"testing"

	"drivernet/internal/model"
	"drivernet/internal/network"
)

// hubNetwork has one hub feeding every target directly plus a private
// upstream node per target; the unique minimal solution is {hub}.
func hubNetwork(targets int) model.Network {
	network := model.Network{Nodes: []string{"hub"}}
	for i := 0; i < targets; i++ {
		target := fmt.Sprintf("t%d", i)
		private := fmt.Sprintf("p%d", i)
		network.Nodes = append(network.Nodes, target, private)
		network.Edges = append(network.Edges,
			model.Edge{Source: "hub", Target: target},
			model.Edge{Source: private, Target: target},
		)
		network.Targets = append(network.Targets, target)
		if i%2 == 0 {
			network.Preferred = append(network.Preferred, private)
		}
	}
	return network
}

func exampleNetwork() model.Network {
	return model.Network{
		Nodes: []string{"A", "B", "C", "D"},
		Edges: []model.Edge{
			{Source: "A", Target: "C"},
			{Source: "B", Target: "C"},
			{Source: "C", Target: "D"},
		},
		Targets:   []string{"D"},
		Preferred: []string{"A", "B"},
	}
}

func newTestSpace(t *testing.T, net model.Network, maxPathLength int) *SearchSpace {
	t.Helper()
	g, err := network.Build(net)
	if err != nil {
		t.Fatalf("build network: %v", err)
	}
	space, err := NewSearchSpace(g, network.NewReachability(g, maxPathLength))
	if err != nil {
		t.Fatalf("search space: %v", err)
	}
	return space
}

func nodeIndex(t *testing.T, space *SearchSpace, id string) int {
	t.Helper()
	i, ok := space.Graph().Index.Position(id)
	if !ok {
		t.Fatalf("unknown node %s", id)
	}
	return i
}

func uniformChromosome(space *SearchSpace, driver int) *Chromosome {
	c := NewChromosome(space.Genes())
	for row := range c.genes {
		c.genes[row] = driver
	}
	return c
}

// selfChromosome assigns every target to itself.
func selfChromosome(space *SearchSpace) *Chromosome {
	c := NewChromosome(space.Genes())
	for row := range c.genes {
		c.genes[row] = space.Graph().Targets[row]
	}
	return c
}
