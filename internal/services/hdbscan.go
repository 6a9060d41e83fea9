package services

import (
	"math"
	"route-optimization-service/internal/domain"
	"sort"
)

// minLinkDistanceKm keeps lambda = 1/distance finite for coincident points.
const minLinkDistanceKm = 1e-9

type mstEdge struct {
	a, b int
	w    float64
}

type linkNode struct {
	left, right int
	dist        float64
	size        int
}

// condensedTree is the HDBSCAN condensed hierarchy. Cluster 0 is the root and
// every child cluster id is larger than its parent's.
type condensedTree struct {
	parent    []int
	birth     []float64
	children  [][]int
	stability []float64

	pointParent []int
}

// hdbscanLabels runs HDBSCAN over haversine distances and returns a raw label per
// point, -1 for noise. Labels are selected condensed-tree cluster ids.
func hdbscanLabels(points []domain.Coordinates, minClusterSize, minSamples int, epsilonKm float64) []int {
	n := len(points)
	dist := pairwiseKm(points)
	core := coreDistances(dist, minSamples)
	edges := mutualReachabilityMST(dist, core)
	links := singleLinkage(n, edges)
	ct := condense(n, links, minClusterSize)

	selected := ct.selectEOM()
	selected = ct.applyEpsilon(selected, epsilonKm)
	return ct.label(selected)
}

func pairwiseKm(points []domain.Coordinates) [][]float64 {
	n := len(points)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := domain.HaversineKm(points[i], points[j])
			d[i][j] = v
			d[j][i] = v
		}
	}
	return d
}

// coreDistances is the distance to the minSamples-th nearest neighbour, counting the point itself.
func coreDistances(dist [][]float64, minSamples int) []float64 {
	n := len(dist)
	k := minSamples - 1
	if k >= n {
		k = n - 1
	}
	if k < 0 {
		k = 0
	}

	core := make([]float64, n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		copy(row, dist[i])
		sort.Float64s(row)
		core[i] = row[k]
	}
	return core
}

// mutualReachabilityMST builds a minimum spanning tree of the mutual reachability
// graph with Prim's algorithm, sorted by weight.
func mutualReachabilityMST(dist [][]float64, core []float64) []mstEdge {
	n := len(dist)
	if n < 2 {
		return nil
	}

	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	cur := 0
	inTree[0] = true
	for step := 0; step < n-1; step++ {
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			w := math.Max(dist[cur][j], math.Max(core[cur], core[j]))
			if w < best[j] {
				best[j] = w
				from[j] = cur
			}
		}

		next := -1
		for j := 0; j < n; j++ {
			if !inTree[j] && (next == -1 || best[j] < best[next]) {
				next = j
			}
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: from[next], b: next, w: best[next]})
		cur = next
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].w < edges[j].w })
	return edges
}

// singleLinkage turns sorted MST edges into a dendrogram. Leaves are 0..n-1 and
// internal node i is stored at links[i-n].
func singleLinkage(n int, edges []mstEdge) []linkNode {
	uf := make([]int, 2*n-1)
	for i := range uf {
		uf[i] = i
	}
	find := func(x int) int {
		for uf[x] != x {
			uf[x] = uf[uf[x]]
			x = uf[x]
		}
		return x
	}

	links := make([]linkNode, 0, n-1)
	size := func(x int) int {
		if x < n {
			return 1
		}
		return links[x-n].size
	}

	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		id := n + len(links)
		links = append(links, linkNode{left: ra, right: rb, dist: e.w, size: size(ra) + size(rb)})
		uf[ra] = id
		uf[rb] = id
	}
	return links
}

func condense(n int, links []linkNode, minClusterSize int) *condensedTree {
	ct := &condensedTree{
		parent:      []int{-1},
		birth:       []float64{0},
		children:    [][]int{nil},
		stability:   []float64{0},
		pointParent: make([]int, n),
	}

	size := func(x int) int {
		if x < n {
			return 1
		}
		return links[x-n].size
	}

	leaves := func(x int, out []int) []int {
		stack := []int{x}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top < n {
				out = append(out, top)
				continue
			}
			stack = append(stack, links[top-n].right, links[top-n].left)
		}
		return out
	}

	fallOut := func(x, c int, lambda float64) {
		for _, p := range leaves(x, nil) {
			ct.pointParent[p] = c
			ct.stability[c] += lambda - ct.birth[c]
		}
	}

	newCluster := func(parent int, lambda float64, sz int) int {
		id := len(ct.parent)
		ct.parent = append(ct.parent, parent)
		ct.birth = append(ct.birth, lambda)
		ct.children = append(ct.children, nil)
		ct.stability = append(ct.stability, 0)
		ct.children[parent] = append(ct.children[parent], id)
		ct.stability[parent] += (lambda - ct.birth[parent]) * float64(sz)
		return id
	}

	if len(links) == 0 {
		for p := 0; p < n; p++ {
			ct.pointParent[p] = 0
		}
		return ct
	}

	root := n + len(links) - 1
	relabel := map[int]int{root: 0}
	stack := []int{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ln := links[node-n]
		c := relabel[node]
		lambda := 1 / math.Max(ln.dist, minLinkDistanceKm)
		ls, rs := size(ln.left), size(ln.right)

		switch {
		case ls >= minClusterSize && rs >= minClusterSize:
			for _, ch := range []int{ln.left, ln.right} {
				relabel[ch] = newCluster(c, lambda, size(ch))
				stack = append(stack, ch)
			}
		case ls < minClusterSize && rs < minClusterSize:
			fallOut(ln.left, c, lambda)
			fallOut(ln.right, c, lambda)
		case ls < minClusterSize:
			fallOut(ln.left, c, lambda)
			relabel[ln.right] = c
			stack = append(stack, ln.right)
		default:
			fallOut(ln.right, c, lambda)
			relabel[ln.left] = c
			stack = append(stack, ln.left)
		}
	}
	return ct
}

// selectEOM picks clusters by excess of mass. The root is returned alone when
// no other cluster survives.
func (ct *condensedTree) selectEOM() []int {
	k := len(ct.parent)
	isSel := make([]bool, k)
	stab := append([]float64(nil), ct.stability...)
	for c := 1; c < k; c++ {
		isSel[c] = true
	}

	for c := k - 1; c >= 1; c-- {
		sub := 0.0
		for _, ch := range ct.children[c] {
			sub += stab[ch]
		}
		if len(ct.children[c]) > 0 && sub > stab[c] {
			isSel[c] = false
			stab[c] = sub
			continue
		}
		for _, d := range ct.descendants(c) {
			isSel[d] = false
		}
	}

	var out []int
	for c := 1; c < k; c++ {
		if isSel[c] {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []int{0}
	}
	return out
}

// applyEpsilon replaces clusters born below epsilonKm with the nearest ancestor
// born at or above it. Reaching the root selects the root.
func (ct *condensedTree) applyEpsilon(selected []int, epsilonKm float64) []int {
	if epsilonKm <= 0 {
		return selected
	}

	seen := make(map[int]bool, len(selected))
	for _, c := range selected {
		for c != 0 && 1/ct.birth[c] < epsilonKm {
			c = ct.parent[c]
		}
		seen[c] = true
	}

	out := make([]int, 0, len(seen))
	for c := range seen {
		covered := false
		for a := ct.parent[c]; a != -1; a = ct.parent[a] {
			if seen[a] {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, c)
		}
	}
	sort.Ints(out)
	return out
}

func (ct *condensedTree) descendants(c int) []int {
	var out []int
	stack := append([]int(nil), ct.children[c]...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, top)
		stack = append(stack, ct.children[top]...)
	}
	return out
}

// label maps every point to the selected cluster containing it, -1 when none does.
func (ct *condensedTree) label(selected []int) []int {
	sel := make(map[int]bool, len(selected))
	for _, c := range selected {
		sel[c] = true
	}

	out := make([]int, len(ct.pointParent))
	for p, c := range ct.pointParent {
		out[p] = -1
		for ; c != -1; c = ct.parent[c] {
			if sel[c] {
				out[p] = c
				break
			}
		}
	}
	return out
}
