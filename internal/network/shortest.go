package network

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"drivernet/internal/model"
)

const noHop = -1

// ShortestPaths is the all-pairs shortest path closure of the unweighted
// directed graph together with the first-hop table used to rebuild paths.
type ShortestPaths struct {
	n    int
	dist *mat.Dense
	next []int
}

// NewShortestPaths runs Floyd–Warshall once over g. dist[i][i] = 0, direct
// edges weigh 1 and everything else starts at +Inf. The loop order is fixed
// (k → i → j) and only strict improvements relax, so ties keep the earliest hop.
func NewShortestPaths(g *Graph) *ShortestPaths {
	n := g.NodeCount()
	dist := mat.NewDense(n, n, nil)
	next := make([]int, n*n)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			switch {
			case i == j:
				dist.Set(i, j, 0)
				next[i*n+j] = noHop
			case g.HasEdge(i, j):
				dist.Set(i, j, 1)
				next[i*n+j] = j
			default:
				dist.Set(i, j, math.Inf(1))
				next[i*n+j] = noHop
			}
		}
	}

	var ik, kj, cand float64
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			ik = dist.At(i, k)
			if math.IsInf(ik, 1) {
				continue
			}
			for j := 0; j < n; j++ {
				kj = dist.At(k, j)
				if math.IsInf(kj, 1) {
					continue
				}
				cand = ik + kj
				if cand < dist.At(i, j) {
					dist.Set(i, j, cand)
					next[i*n+j] = next[i*n+k]
				}
			}
		}
	}

	return &ShortestPaths{n: n, dist: dist, next: next}
}

// Distance returns the hop count from→to, +Inf when unreachable.
func (sp *ShortestPaths) Distance(from, to int) float64 {
	return sp.dist.At(from, to)
}

// Path walks the first-hop table from→to. It returns nil when no path
// exists and the single node when from == to.
func (sp *ShortestPaths) Path(from, to int) []int {
	if from == to {
		return []int{from}
	}
	if sp.next[from*sp.n+to] == noHop {
		return nil
	}
	path := []int{from}
	for at := from; at != to; {
		at = sp.next[at*sp.n+to]
		path = append(path, at)
	}
	return path
}

// ControlPath materializes the driver→target path in node ids.
func (g *Graph) ControlPath(sp *ShortestPaths, driver, target int) model.ControlPath {
	nodes := sp.Path(driver, target)
	out := model.ControlPath{
		Driver: g.Index.ID(driver),
		Target: g.Index.ID(target),
		Nodes:  make([]string, 0, len(nodes)),
		Edges:  make([]model.Edge, 0, max(len(nodes)-1, 0)),
	}
	for i, node := range nodes {
		out.Nodes = append(out.Nodes, g.Index.ID(node))
		if i > 0 {
			out.Edges = append(out.Edges, model.Edge{
				Source: g.Index.ID(nodes[i-1]),
				Target: g.Index.ID(node),
			})
		}
	}
	return out
}
