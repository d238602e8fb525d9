package network

import (
	"gonum.org/v1/gonum/mat"
)

// walkCountCap saturates walk counts so long power series on dense graphs
// never reach +Inf (Inf·0 would turn into NaN inside later products).
const walkCountCap = 1e12

// Reachability holds the bounded power series of A and the per-target
// ancestor sets derived from it. It is read-only once built and is shared by
// every worker of a run.
type Reachability struct {
	// Powers are A⁰..A^L.
	Powers []*mat.Dense
	// SelectorPowers are C·A⁰..C·A^L (T×N each).
	SelectorPowers []*mat.Dense

	ancestors [][]int
	weights   [][]float64
}

// NewReachability computes A⁰..A^L by repeated left-multiplication, the
// products C·Aᵏ, and for every target position the ancestors reaching it in at
// most L hops. Each ancestor s of target row t carries the sampling weight
// Σₖ (C·Aᵏ)[t][s] / (k+1).
func NewReachability(g *Graph, maxPathLength int) *Reachability {
	if maxPathLength < 0 {
		maxPathLength = 0
	}
	n := g.NodeCount()
	t := g.TargetCount()

	powers := make([]*mat.Dense, 0, maxPathLength+1)
	identity := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		identity.Set(i, i, 1)
	}
	powers = append(powers, identity)
	for k := 1; k <= maxPathLength; k++ {
		next := mat.NewDense(n, n, nil)
		next.Mul(g.Adjacency, powers[k-1])
		next.Apply(saturate, next)
		powers = append(powers, next)
	}

	selectorPowers := make([]*mat.Dense, 0, len(powers))
	for _, power := range powers {
		product := mat.NewDense(t, n, nil)
		product.Mul(g.Selector, power)
		selectorPowers = append(selectorPowers, product)
	}

	ancestors := make([][]int, t)
	weights := make([][]float64, t)
	for row := 0; row < t; row++ {
		acc := make([]float64, n)
		for k, product := range selectorPowers {
			for s := 0; s < n; s++ {
				if v := product.At(row, s); v != 0 {
					acc[s] += v / float64(k+1)
				}
			}
		}
		for s := 0; s < n; s++ {
			if acc[s] == 0 {
				continue
			}
			ancestors[row] = append(ancestors[row], s)
			weights[row] = append(weights[row], acc[s])
		}
	}

	return &Reachability{
		Powers:         powers,
		SelectorPowers: selectorPowers,
		ancestors:      ancestors,
		weights:        weights,
	}
}

func saturate(_, _ int, v float64) float64 {
	if v > walkCountCap {
		return walkCountCap
	}
	return v
}

// Ancestors returns the node indices reaching target position row within the
// hop bound, in ascending order. The slice must not be modified.
func (r *Reachability) Ancestors(row int) []int {
	return r.ancestors[row]
}

// Weights returns the sampling weights aligned with Ancestors(row).
func (r *Reachability) Weights(row int) []float64 {
	return r.weights[row]
}

// AncestorIDs is Ancestors translated back to node ids.
func (r *Reachability) AncestorIDs(g *Graph, row int) []string {
	out := make([]string, 0, len(r.ancestors[row]))
	for _, node := range r.ancestors[row] {
		out = append(out, g.Index.ID(node))
	}
	return out
}
