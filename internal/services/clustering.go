package services

import (
	"math"
	"route-optimization-service/internal/domain"
	"sort"
)

type ClusterParams struct {
	MinClusterSize int
	// MinSamples defaults to MinClusterSize when zero.
	MinSamples int
	// SelectionEpsilonKm merges clusters that split below this distance.
	SelectionEpsilonKm float64
	// Clusters smaller than MergeMaxSize whose centroids lie within MergeMaxKm are merged.
	// Zero MergeMaxSize disables merging.
	MergeMaxSize int
	MergeMaxKm   float64
}

func DefaultClusterParams() ClusterParams {
	return ClusterParams{
		MinClusterSize:     5,
		SelectionEpsilonKm: 0.5,
		MergeMaxSize:       5,
		MergeMaxKm:         1.0,
	}
}

// Clustering is the output of ClusterOrders. Every point carries a Member label.
type Clustering struct {
	Labels []domain.ClusterLabel
	// OriginalLabels is Unassigned for points that were noise before reassignment.
	OriginalLabels []domain.ClusterLabel
	// Members holds point indices per cluster, ascending.
	Members    [][]int
	Centroids  []domain.Coordinates
	NoiseCount int
}

func (c *Clustering) NumClusters() int { return len(c.Members) }

// Clusters resolves member indices against orders, which must be the slice
// that was clustered.
func (c *Clustering) Clusters(orders []*domain.Order) []domain.Cluster {
	out := make([]domain.Cluster, 0, len(c.Members))
	for k, m := range c.Members {
		cl := domain.Cluster{ID: k, OrderIDs: make([]int64, 0, len(m))}
		if k < len(c.Centroids) {
			cl.Centroid = c.Centroids[k]
		}
		for _, i := range m {
			if i >= len(orders) {
				continue
			}
			cl.OrderIDs = append(cl.OrderIDs, orders[i].OrderID)
			if i < len(c.OriginalLabels) && !c.OriginalLabels[i].IsAssigned() {
				cl.OutlierIDs = append(cl.OutlierIDs, orders[i].OrderID)
			}
		}
		out = append(out, cl)
	}
	return out
}

// ClusterOrders groups points by density. Noise points are attached to the
// nearest cluster centroid. Cluster ids are numbered by first core member index.
func ClusterOrders(points []domain.Coordinates, p ClusterParams) *Clustering {
	n := len(points)
	if n == 0 {
		return &Clustering{}
	}

	mcs := max(p.MinClusterSize, 2)
	if n < mcs {
		return singleCluster(points)
	}

	minSamples := p.MinSamples
	if minSamples <= 0 {
		minSamples = mcs
	}

	raw := hdbscanLabels(points, mcs, minSamples, p.SelectionEpsilonKm)
	return finishClustering(points, raw, p)
}

func singleCluster(points []domain.Coordinates) *Clustering {
	members := make([]int, len(points))
	labels := make([]domain.ClusterLabel, len(points))
	for i := range points {
		members[i] = i
		labels[i] = domain.Member(0)
	}
	return &Clustering{
		Labels:         labels,
		OriginalLabels: append([]domain.ClusterLabel(nil), labels...),
		Members:        [][]int{members},
		Centroids:      []domain.Coordinates{centroid(points, members)},
	}
}

func finishClustering(points []domain.Coordinates, raw []int, p ClusterParams) *Clustering {
	n := len(points)

	var members [][]int
	index := map[int]int{}
	var noiseIdx []int
	for i, r := range raw {
		if r < 0 {
			noiseIdx = append(noiseIdx, i)
			continue
		}
		k, ok := index[r]
		if !ok {
			k = len(members)
			index[r] = k
			members = append(members, nil)
		}
		members[k] = append(members[k], i)
	}

	if len(members) == 0 {
		out := singleCluster(points)
		out.NoiseCount = n
		for i := range out.OriginalLabels {
			out.OriginalLabels[i] = domain.Unassigned
		}
		return out
	}

	if p.MergeMaxSize > 0 && len(members) > 1 {
		members = mergeSmallClusters(points, members, p.MergeMaxSize, p.MergeMaxKm)
	}

	// Ids are final before noise is attached, so a tie goes to the lowest id.
	sort.Slice(members, func(a, b int) bool { return members[a][0] < members[b][0] })

	out := &Clustering{
		Labels:         make([]domain.ClusterLabel, n),
		OriginalLabels: make([]domain.ClusterLabel, n),
		Centroids:      make([]domain.Coordinates, len(members)),
		NoiseCount:     len(noiseIdx),
	}
	for k, m := range members {
		out.Centroids[k] = centroid(points, m)
		for _, i := range m {
			out.OriginalLabels[i] = domain.Member(k)
		}
	}

	for _, i := range noiseIdx {
		k := nearestCentroid(points[i], out.Centroids)
		members[k] = append(members[k], i)
	}
	for k, m := range members {
		sort.Ints(m)
		out.Centroids[k] = centroid(points, m)
		for _, i := range m {
			out.Labels[i] = domain.Member(k)
		}
	}
	out.Members = members
	return out
}

// nearestCentroid returns the closest centroid index, lowest index on ties.
func nearestCentroid(pt domain.Coordinates, cents []domain.Coordinates) int {
	best, bestD := 0, math.Inf(1)
	for k, c := range cents {
		if d := domain.HaversineMeters(pt, c); d < bestD {
			best, bestD = k, d
		}
	}
	return best
}

// mergeSmallClusters repeatedly merges the closest pair of small clusters whose
// centroids are within maxKm of each other.
func mergeSmallClusters(points []domain.Coordinates, members [][]int, maxSize int, maxKm float64) [][]int {
	cents := make([]domain.Coordinates, len(members))
	for k, m := range members {
		cents[k] = centroid(points, m)
	}

	for len(members) > 1 {
		bi, bj, bd := -1, -1, math.Inf(1)
		for i := 0; i < len(members); i++ {
			if len(members[i]) >= maxSize {
				continue
			}
			for j := i + 1; j < len(members); j++ {
				if len(members[j]) >= maxSize {
					continue
				}
				d := domain.HaversineKm(cents[i], cents[j])
				if d <= maxKm && d < bd {
					bi, bj, bd = i, j, d
				}
			}
		}
		if bi < 0 {
			break
		}

		merged := append(append([]int(nil), members[bi]...), members[bj]...)
		sort.Ints(merged)
		members[bi] = merged
		cents[bi] = centroid(points, merged)
		members = append(members[:bj], members[bj+1:]...)
		cents = append(cents[:bj], cents[bj+1:]...)
	}
	return members
}

func centroid(points []domain.Coordinates, idx []int) domain.Coordinates {
	if len(idx) == 0 {
		return domain.Coordinates{}
	}
	var lat, lon float64
	for _, i := range idx {
		lat += points[i].Lat
		lon += points[i].Lon
	}
	n := float64(len(idx))
	return domain.Coordinates{Lat: lat / n, Lon: lon / n}
}
