package services

import (
	"route-optimization-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeGroups(perGroup int, spacingKm float64) []domain.Coordinates {
	var pts []domain.Coordinates
	pts = append(pts, spiral(offsetKm(testDepot, 0, spacingKm), perGroup, 0.3)...)
	pts = append(pts, spiral(offsetKm(testDepot, spacingKm, -spacingKm/2), perGroup, 0.3)...)
	pts = append(pts, spiral(offsetKm(testDepot, -spacingKm, -spacingKm/2), perGroup, 0.3)...)
	return pts
}

func TestClusterOrders_FewerPointsThanMinSize(t *testing.T) {
	pts := spiral(testDepot, 3, 1)
	c := ClusterOrders(pts, DefaultClusterParams())

	require.Equal(t, 1, c.NumClusters())
	assert.Equal(t, []int{0, 1, 2}, c.Members[0])
	assert.Equal(t, 0, c.NoiseCount)
	for _, l := range c.Labels {
		id, ok := l.ID()
		assert.True(t, ok)
		assert.Equal(t, 0, id)
	}
}

func TestClusterOrders_TightGroupIsOneCluster(t *testing.T) {
	pts := spiral(offsetKm(testDepot, 2, 2), 10, 0.2)
	c := ClusterOrders(pts, DefaultClusterParams())

	require.Equal(t, 1, c.NumClusters())
	assert.Len(t, c.Members[0], 10)
	for _, l := range c.Labels {
		assert.True(t, l.IsAssigned())
	}
}

func TestClusterOrders_SeparatesDistantGroups(t *testing.T) {
	pts := threeGroups(15, 10)
	c := ClusterOrders(pts, DefaultClusterParams())

	require.Equal(t, 3, c.NumClusters())
	for g := 0; g < 3; g++ {
		require.Len(t, c.Members[g], 15)
		for k := 0; k < 15; k++ {
			i := g*15 + k
			assert.Equal(t, domain.Member(g), c.Labels[i], "point %d", i)
		}
	}
	assert.Len(t, c.Centroids, 3)
}

func TestClusterOrders_NoiseIsReassigned(t *testing.T) {
	pts := threeGroups(12, 3)
	outlier := offsetKm(testDepot, 30, 30)
	pts = append(pts, outlier)
	last := len(pts) - 1

	c := ClusterOrders(pts, DefaultClusterParams())

	require.Equal(t, 3, c.NumClusters())
	assert.Equal(t, 1, c.NoiseCount)
	for i, l := range c.Labels {
		assert.True(t, l.IsAssigned(), "point %d has no cluster", i)
	}
	assert.False(t, c.OriginalLabels[last].IsAssigned())
	assert.Equal(t, -1, c.OriginalLabels[last].Int())

	// The outlier lies closest to the first group.
	assert.Equal(t, domain.Member(0), c.Labels[last])
	assert.Contains(t, c.Members[0], last)
}

func TestClusterOrders_Deterministic(t *testing.T) {
	pts := threeGroups(10, 5)
	pts = append(pts, offsetKm(testDepot, 20, 0), offsetKm(testDepot, -20, 3))

	a := ClusterOrders(pts, DefaultClusterParams())
	b := ClusterOrders(pts, DefaultClusterParams())
	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Members, b.Members)
	assert.Equal(t, a.NoiseCount, b.NoiseCount)
}

func TestClusterOrders_ClampsMinClusterSize(t *testing.T) {
	pts := spiral(testDepot, 4, 0.1)
	p := DefaultClusterParams()
	p.MinClusterSize = 1

	c := ClusterOrders(pts, p)
	for _, l := range c.Labels {
		assert.True(t, l.IsAssigned())
	}
	total := 0
	for _, m := range c.Members {
		total += len(m)
	}
	assert.Equal(t, 4, total)
}

func TestMergeSmallClusters(t *testing.T) {
	pts := []domain.Coordinates{
		offsetKm(testDepot, 0, 0), offsetKm(testDepot, 0.1, 0),
		offsetKm(testDepot, 0.4, 0), offsetKm(testDepot, 0.5, 0),
		offsetKm(testDepot, 5, 0), offsetKm(testDepot, 5.1, 0),
	}
	members := [][]int{{0, 1}, {2, 3}, {4, 5}}

	got := mergeSmallClusters(pts, members, 5, 1.0)
	require.Len(t, got, 2)
	assert.Equal(t, []int{0, 1, 2, 3}, got[0])
	assert.Equal(t, []int{4, 5}, got[1])
}

func TestMergeSmallClusters_LeavesLargeClusters(t *testing.T) {
	pts := spiral(testDepot, 12, 0.2)
	members := [][]int{{0, 1, 2, 3, 4, 5}, {6, 7, 8, 9, 10, 11}}

	got := mergeSmallClusters(pts, members, 5, 1.0)
	assert.Len(t, got, 2)
}

func TestFinishClustering_NoiseTieGoesToLowestFinalID(t *testing.T) {
	// Binary-exact coordinates so the tie point is equidistant from both centroids.
	pts := []domain.Coordinates{
		{Lon: 77.75, Lat: 28.5}, // noise, clearly nearest the east cluster
		{Lon: 77.0, Lat: 28.5},  // noise, equidistant
		{Lon: 76.75, Lat: 28.625}, {Lon: 76.75, Lat: 28.375},
		{Lon: 77.25, Lat: 28.625}, {Lon: 77.25, Lat: 28.375},
	}
	raw := []int{-1, -1, 0, 0, 1, 1}

	c := finishClustering(pts, raw, ClusterParams{})

	require.Equal(t, 2, c.NumClusters())
	assert.Equal(t, []domain.ClusterLabel{
		domain.Member(1), domain.Member(0),
		domain.Member(0), domain.Member(0),
		domain.Member(1), domain.Member(1),
	}, c.Labels)
	assert.Equal(t, []domain.ClusterLabel{
		domain.Unassigned, domain.Unassigned,
		domain.Member(0), domain.Member(0),
		domain.Member(1), domain.Member(1),
	}, c.OriginalLabels)
	assert.Equal(t, [][]int{{1, 2, 3}, {0, 4, 5}}, c.Members)
	assert.Equal(t, 2, c.NoiseCount)
}
