package evo

// Range is the half-open interval [Low, High).
type Range struct {
	Low  int
	High int
}

func (r Range) Len() int {
	return r.High - r.Low
}

// Partition splits [0, n) into ⌈n/size⌉ contiguous ranges of at most size
// elements. A size of 0 or at least n yields the single range [0, n).
func Partition(n, size int) []Range {
	if n <= 0 {
		return nil
	}
	if size <= 0 || size >= n {
		return []Range{{Low: 0, High: n}}
	}
	out := make([]Range, 0, (n+size-1)/size)
	for low := 0; low < n; low += size {
		out = append(out, Range{Low: low, High: min(low+size, n)})
	}
	return out
}

// Split divides [0, n) into parts contiguous ranges whose sizes differ by at
// most one. Ranges may be empty when parts > n.
func Split(n, parts int) []Range {
	if parts <= 0 {
		return nil
	}
	out := make([]Range, 0, parts)
	base, extra := n/parts, n%parts
	low := 0
	for i := 0; i < parts; i++ {
		size := base
		if i < extra {
			size++
		}
		out = append(out, Range{Low: low, High: low + size})
		low += size
	}
	return out
}

// WrappedRange returns the contiguous window of size elements starting at
// start in a ring of n elements, as one or two plain ranges.
func WrappedRange(start, size, n int) []Range {
	if n <= 0 {
		return nil
	}
	if size <= 0 || size >= n {
		return []Range{{Low: 0, High: n}}
	}
	start = ((start % n) + n) % n
	end := start + size
	if end <= n {
		return []Range{{Low: start, High: end}}
	}
	return []Range{{Low: start, High: n}, {Low: 0, High: end - n}}
}

// workItem initializes one gene range of one chromosome.
type workItem struct {
	chromosome int
	genes      Range
}

// initialWorkItems flattens the grouped initialization into independent items.
// Targets are cut into groups of genesPerGroup; chromosomes are split into the
// same number of groups, and chromosome group g visits gene group g first.
// Every chromosome receives every gene range exactly once.
func initialWorkItems(chromosomes, genes, genesPerGroup int) []workItem {
	geneGroups := Partition(genes, genesPerGroup)
	if len(geneGroups) == 0 || chromosomes <= 0 {
		return nil
	}
	g := len(geneGroups)
	items := make([]workItem, 0, chromosomes*g)
	for group, members := range Split(chromosomes, g) {
		for c := members.Low; c < members.High; c++ {
			for j := 0; j < g; j++ {
				items = append(items, workItem{chromosome: c, genes: geneGroups[(group+j)%g]})
			}
		}
	}
	return items
}
