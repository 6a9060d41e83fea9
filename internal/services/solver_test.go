package services

import (
	"context"
	"route-optimization-service/internal/domain"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() SolverParams {
	p := DefaultSolverParams()
	p.TimeLimit = time.Minute
	p.MaxIterations = 200
	p.MaxStagnation = 40
	return p
}

func fleet(t *testing.T, n, capacity int, maxKm float64) []domain.Vehicle {
	t.Helper()
	v, err := domain.NewFleet(n, capacity, maxKm*1000, 0)
	require.NoError(t, err)
	return v
}

// requireCoverage checks every order node appears exactly once across routes and unassigned.
func requireCoverage(t *testing.T, sol Solution, n int) {
	t.Helper()
	var seen []int
	for _, r := range sol.Routes {
		seen = append(seen, r...)
	}
	seen = append(seen, sol.Unassigned...)
	sort.Ints(seen)

	want := make([]int, 0, n-1)
	for u := 1; u < n; u++ {
		want = append(want, u)
	}
	require.Equal(t, want, seen)
}

func routeMeters(m *domain.DistanceMatrix, route []int) float64 {
	if len(route) == 0 {
		return 0
	}
	total, prev := 0.0, 0
	for _, u := range route {
		total += m.Distances[prev][u]
		prev = u
	}
	return total + m.Distances[prev][0]
}

func TestSolve_RespectsStopCapacity(t *testing.T) {
	pts := spiral(offsetKm(testDepot, 4, 4), 12, 3)
	m := fallbackMatrix(testDepot, pts)

	sol, err := Solve(context.Background(), Problem{Matrix: m, Vehicles: fleet(t, 3, 4, 150), Params: testParams()})
	require.NoError(t, err)

	requireCoverage(t, sol, m.Size())
	assert.Empty(t, sol.Unassigned)
	for _, r := range sol.Routes {
		assert.LessOrEqual(t, len(r), 4)
	}
}

func TestSolve_LeavesOverflowUnassigned(t *testing.T) {
	pts := spiral(offsetKm(testDepot, 2, 0), 10, 2)
	m := fallbackMatrix(testDepot, pts)

	sol, err := Solve(context.Background(), Problem{Matrix: m, Vehicles: fleet(t, 2, 3, 150), Params: testParams()})
	require.NoError(t, err)

	requireCoverage(t, sol, m.Size())
	assert.Len(t, sol.Unassigned, 4)
	for _, r := range sol.Routes {
		assert.Len(t, r, 3)
	}
}

func TestSolve_MaxDistanceExcludesFarOrders(t *testing.T) {
	pts := spiral(offsetKm(testDepot, 3, 0), 6, 1)
	far := offsetKm(testDepot, 100, 0)
	pts = append(pts, far)
	m := fallbackMatrix(testDepot, pts)
	farNode := len(pts)

	sol, err := Solve(context.Background(), Problem{Matrix: m, Vehicles: fleet(t, 2, 10, 150), Params: testParams()})
	require.NoError(t, err)

	requireCoverage(t, sol, m.Size())
	assert.Equal(t, []int{farNode}, sol.Unassigned)
	for _, r := range sol.Routes {
		assert.LessOrEqual(t, routeMeters(m, r), 150000+distanceTolerance)
	}
}

func TestSolve_WeightCapacity(t *testing.T) {
	pts := spiral(offsetKm(testDepot, 2, 2), 6, 1)
	m := fallbackMatrix(testDepot, pts)
	weights := []float64{0, 10, 10, 10, 10, 10, 10}

	vehicles, err := domain.NewFleet(2, 10, 150000, 30)
	require.NoError(t, err)

	sol, err := Solve(context.Background(), Problem{Matrix: m, Weights: weights, Vehicles: vehicles, Params: testParams()})
	require.NoError(t, err)

	requireCoverage(t, sol, m.Size())
	assert.Empty(t, sol.Unassigned)
	for _, r := range sol.Routes {
		assert.LessOrEqual(t, len(r), 3)
	}
}

func TestSolve_ClusterPenaltyKeepsGroupsApart(t *testing.T) {
	east := spiral(offsetKm(testDepot, 5, 0), 5, 0.4)
	west := spiral(offsetKm(testDepot, -5, 0), 5, 0.4)
	m := fallbackMatrix(testDepot, append(east, west...))

	labels := make([]domain.ClusterLabel, m.Size())
	for u := 1; u <= 5; u++ {
		labels[u] = domain.Member(0)
		labels[u+5] = domain.Member(1)
	}

	sol, err := Solve(context.Background(), Problem{
		Matrix:   m,
		Labels:   labels,
		Vehicles: fleet(t, 2, 10, 150),
		Params:   testParams(),
	})
	require.NoError(t, err)
	requireCoverage(t, sol, m.Size())

	for _, r := range sol.Routes {
		if len(r) == 0 {
			continue
		}
		first := labels[r[0]]
		for _, u := range r {
			assert.True(t, domain.SameCluster(first, labels[u]), "route %v mixes clusters", r)
		}
	}
}

func TestSolve_DistanceMatchesRoutes(t *testing.T) {
	pts := spiral(offsetKm(testDepot, 1, -2), 15, 3)
	m := fallbackMatrix(testDepot, pts)
	// Make the matrix asymmetric.
	for i := range m.Distances {
		for j := range m.Distances[i] {
			if i < j {
				m.Distances[i][j] *= 1.2
			}
		}
	}

	sol, err := Solve(context.Background(), Problem{Matrix: m, Vehicles: fleet(t, 3, 6, 150), Params: testParams()})
	require.NoError(t, err)
	requireCoverage(t, sol, m.Size())

	total := 0.0
	for _, r := range sol.Routes {
		total += routeMeters(m, r)
	}
	assert.InDelta(t, total, sol.Distance, 1e-6)
	assert.InDelta(t, total, sol.Cost, 1e-6, "no labels means no cluster penalty")
}

func TestSolve_Deterministic(t *testing.T) {
	pts := threeGroups(8, 4)
	m := fallbackMatrix(testDepot, pts)
	c := ClusterOrders(pts, DefaultClusterParams())
	labels := append([]domain.ClusterLabel{domain.Unassigned}, c.Labels...)

	p := Problem{Matrix: m, Labels: labels, Vehicles: fleet(t, 3, 10, 150), Params: testParams()}
	a, err := Solve(context.Background(), p)
	require.NoError(t, err)
	b, err := Solve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, a.Routes, b.Routes)
	assert.Equal(t, a.Unassigned, b.Unassigned)
	assert.Equal(t, a.Iterations, b.Iterations)
	assert.False(t, a.TimedOut)
}

func TestSolve_CancelledContextStillReturns(t *testing.T) {
	pts := spiral(offsetKm(testDepot, 2, 2), 10, 2)
	m := fallbackMatrix(testDepot, pts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sol, err := Solve(ctx, Problem{Matrix: m, Vehicles: fleet(t, 2, 10, 150), Params: testParams()})
	require.NoError(t, err)
	assert.True(t, sol.TimedOut)
	requireCoverage(t, sol, m.Size())
}

func TestSolve_DepotOnly(t *testing.T) {
	m := fallbackMatrix(testDepot, nil)
	sol, err := Solve(context.Background(), Problem{Matrix: m, Vehicles: fleet(t, 2, 10, 150)})
	require.NoError(t, err)
	assert.Len(t, sol.Routes, 2)
	assert.Empty(t, sol.Unassigned)
}

func TestSolve_RejectsMismatchedLabels(t *testing.T) {
	m := fallbackMatrix(testDepot, spiral(testDepot, 3, 1))
	_, err := Solve(context.Background(), Problem{
		Matrix:   m,
		Labels:   make([]domain.ClusterLabel, 2),
		Vehicles: fleet(t, 1, 10, 150),
	})
	require.Error(t, err)
}
