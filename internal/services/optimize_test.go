package services

import (
	"context"
	"errors"
	"math"
	"route-optimization-service/internal/adapters/distance"
	"route-optimization-service/internal/adapters/repositories"
	"route-optimization-service/internal/config"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/ports"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newTestOptimizer(repo ports.OrderRepository, provider ports.TravelTimeProvider) *Optimizer {
	b := NewMatrixBuilder(MatrixStrategy{
		Primary:     provider,
		Fallback:    HaversineFallback{AverageSpeedKmh: 40},
		CallTimeout: 2 * time.Second,
	}, nil, 4)
	return NewOptimizer(repo, b, config.DefaultOptimizer(),
		WithSolverLimits(200, 40),
		WithClock(func() time.Time { return testStart }),
	)
}

func testDepotEntity(vehicles int) *domain.Depot {
	return &domain.Depot{DepotID: 1, Name: "Central Hub", Location: testDepot, AvailableVehicles: vehicles}
}

func routedIDs(rs *domain.RouteSet) []int64 {
	var ids []int64
	for _, r := range rs.Routes {
		for _, s := range r.Stops {
			ids = append(ids, s.OrderID)
		}
	}
	return ids
}

// requireExactCover checks routed plus unassigned ids equal the input ids without duplicates.
func requireExactCover(t *testing.T, rs *domain.RouteSet, orders []*domain.Order) {
	t.Helper()
	got := append(routedIDs(rs), rs.UnassignedOrders...)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })

	want := make([]int64, 0, len(orders))
	for _, o := range orders {
		want = append(want, o.OrderID)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	require.Equal(t, want, got)
}

func TestOptimize_TightGroupFormsOneCluster(t *testing.T) {
	orders := ordersAt(spiral(offsetKm(testDepot, 3, 3), 10, 0.2), 1)
	opt := newTestOptimizer(nil, nil)

	rs, err := opt.Optimize(context.Background(), OptimizeRequest{
		Depot:  testDepotEntity(5),
		Orders: orders,
		Config: OptimizeConfig{MinClusterSize: ptr(5)},
	})
	require.NoError(t, err)

	assert.True(t, rs.UsedClustering)
	assert.Equal(t, 1, rs.NumClusters)
	require.Len(t, rs.Metadata.ClusterAssignments, 10)
	for id, c := range rs.Metadata.ClusterAssignments {
		assert.Equal(t, 0, c, "order %d", id)
	}
	assert.Equal(t, domain.StatusSuccess, rs.SolverStatus)
	requireExactCover(t, rs, orders)
}

func TestOptimize_NoOrders(t *testing.T) {
	opt := newTestOptimizer(nil, nil)

	rs, err := opt.Optimize(context.Background(), OptimizeRequest{
		Depot:  testDepotEntity(5),
		Orders: []*domain.Order{},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNoOrders, rs.SolverStatus)
	assert.False(t, rs.Success)
	assert.NotNil(t, rs.Routes)
	assert.Empty(t, rs.Routes)
	assert.NotNil(t, rs.UnassignedOrders)
	assert.Empty(t, rs.UnassignedOrders)
	assert.Equal(t, []domain.Stage{domain.StageValidating, domain.StageDone}, rs.Metadata.Stages)
	assert.NotEmpty(t, rs.Metadata.RunID)
}

func TestOptimize_FailingProviderUsesFallback(t *testing.T) {
	orders := ordersAt(threeGroups(6, 4), 1)
	provider := distance.NewFailingProvider(10)
	opt := newTestOptimizer(nil, provider)

	rs, err := opt.Optimize(context.Background(), OptimizeRequest{
		Depot:  testDepotEntity(5),
		Orders: orders,
	})
	require.NoError(t, err)

	assert.Positive(t, provider.Calls())
	assert.Equal(t, domain.SourceFallback, rs.Metadata.MatrixSource)
	assert.NotEqual(t, domain.StatusFailed, rs.SolverStatus)
	assert.Positive(t, rs.TotalDistanceKm)
	assert.False(t, math.IsInf(rs.TotalDistanceKm, 0) || math.IsNaN(rs.TotalDistanceKm))
	requireExactCover(t, rs, orders)
}

func TestOptimize_SeparatedGroupsWithCapacity(t *testing.T) {
	var pts []domain.Coordinates
	pts = append(pts, spiral(offsetKm(testDepot, 0, 12), 17, 0.3)...)
	pts = append(pts, spiral(offsetKm(testDepot, 14, -8), 17, 0.3)...)
	pts = append(pts, spiral(offsetKm(testDepot, -14, -8), 16, 0.3)...)
	orders := ordersAt(pts, 1000)
	opt := newTestOptimizer(nil, nil)

	rs, err := opt.Optimize(context.Background(), OptimizeRequest{
		Depot:   testDepotEntity(5),
		Orders:  orders,
		Config:  OptimizeConfig{VehicleCapacity: ptr(20)},
		StartAt: testStart,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, rs.NumClusters)
	assert.Equal(t, 3, rs.Metadata.NumVehiclesRequested)
	assert.Equal(t, domain.StatusSuccess, rs.SolverStatus)
	assert.True(t, rs.Success)
	require.Len(t, rs.Routes, 3)
	for _, r := range rs.Routes {
		assert.LessOrEqual(t, len(r.Stops), 20)
		assert.LessOrEqual(t, r.TotalDistanceKm, 150.0*1.01)
		require.NotNil(t, r.ClusterID)
	}
	assert.Equal(t, 50, rs.TotalOrders)
	requireExactCover(t, rs, orders)
}

func TestOptimize_Deterministic(t *testing.T) {
	orders := ordersAt(threeGroups(8, 5), 1)
	req := OptimizeRequest{
		Depot:  testDepotEntity(5),
		Orders: orders,
		Config: OptimizeConfig{VehicleCapacity: ptr(10)},
	}

	a, err := newTestOptimizer(nil, nil).Optimize(context.Background(), req)
	require.NoError(t, err)
	b, err := newTestOptimizer(nil, nil).Optimize(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, b.Routes, len(a.Routes))
	for i := range a.Routes {
		assert.Equal(t, a.Routes[i].VehicleID, b.Routes[i].VehicleID)
		assert.Equal(t, a.Routes[i].Stops, b.Routes[i].Stops)
	}
	assert.Equal(t, a.TotalDistanceKm, b.TotalDistanceKm)
	assert.Equal(t, a.UnassignedOrders, b.UnassignedOrders)
}

func TestOptimize_MaxDistanceLeavesOrdersUnassigned(t *testing.T) {
	near := ordersAt(spiral(offsetKm(testDepot, 1, 0), 4, 0.2), 1)
	far := ordersAt([]domain.Coordinates{offsetKm(testDepot, 40, 0)}, 99)
	orders := append(near, far...)
	opt := newTestOptimizer(nil, nil)

	rs, err := opt.Optimize(context.Background(), OptimizeRequest{
		Depot:  testDepotEntity(2),
		Orders: orders,
		Config: OptimizeConfig{UseClustering: ptr(false), MaxDistanceKm: ptr(20.0)},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPartialSuccess, rs.SolverStatus)
	assert.True(t, rs.Success)
	assert.Equal(t, []int64{99}, rs.UnassignedOrders)
	for _, r := range rs.Routes {
		assert.LessOrEqual(t, r.TotalDistanceKm, 20.0*1.01)
	}
	requireExactCover(t, rs, orders)

	all, err := opt.Optimize(context.Background(), OptimizeRequest{
		Depot:  testDepotEntity(2),
		Orders: far,
		Config: OptimizeConfig{MaxDistanceKm: ptr(20.0)},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, all.SolverStatus)
	assert.False(t, all.Success)
	assert.Equal(t, []int64{99}, all.UnassignedOrders)
}

func TestOptimize_StageHistory(t *testing.T) {
	orders := ordersAt(spiral(offsetKm(testDepot, 2, 0), 6, 0.5), 1)

	rs, err := newTestOptimizer(nil, nil).Optimize(context.Background(), OptimizeRequest{
		Depot:  testDepotEntity(2),
		Orders: orders,
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Stage{
		domain.StageValidating,
		domain.StageClustering,
		domain.StageMatrixBuilding,
		domain.StageSolving,
		domain.StageReconciling,
		domain.StageDone,
	}, rs.Metadata.Stages)
	assert.Equal(t, int64(1), rs.Metadata.DepotID)
	for _, r := range rs.Routes {
		for _, s := range r.Stops {
			assert.True(t, s.ETA.After(testStart))
		}
	}
}

func TestOptimize_ValidationErrors(t *testing.T) {
	opt := newTestOptimizer(nil, nil)
	good := ordersAt(spiral(testDepot, 3, 1), 1)

	cases := []struct {
		name string
		req  OptimizeRequest
	}{
		{"zero capacity", OptimizeRequest{Depot: testDepotEntity(2), Orders: good, Config: OptimizeConfig{VehicleCapacity: ptr(0)}}},
		{"negative distance", OptimizeRequest{Depot: testDepotEntity(2), Orders: good, Config: OptimizeConfig{MaxDistanceKm: ptr(-1.0)}}},
		{"zero time limit", OptimizeRequest{Depot: testDepotEntity(2), Orders: good, Config: OptimizeConfig{SolverTimeLimitSeconds: ptr(0)}}},
		{"bad coordinates", OptimizeRequest{Depot: testDepotEntity(2), Orders: []*domain.Order{
			{OrderID: 1, Location: domain.Coordinates{Lon: 200, Lat: 10}},
		}}},
		{"duplicate ids", OptimizeRequest{Depot: testDepotEntity(2), Orders: []*domain.Order{
			{OrderID: 1, Location: testDepot}, {OrderID: 1, Location: testDepot},
		}}},
		{"bad depot", OptimizeRequest{Depot: &domain.Depot{Location: domain.Coordinates{Lat: -91}}, Orders: good}},
		{"no repository", OptimizeRequest{DepotID: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := opt.Optimize(context.Background(), tc.req)
			require.Error(t, err)
			assert.Nil(t, rs)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.True(t, IsClientError(err))
		})
	}
}

func TestOptimize_Cancelled(t *testing.T) {
	orders := ordersAt(spiral(testDepot, 6, 1), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestOptimizer(nil, nil).Optimize(ctx, OptimizeRequest{Depot: testDepotEntity(2), Orders: orders})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsClientError(err))
}

func seededRepo(t *testing.T) *repositories.MemoryOrderRepository {
	t.Helper()
	repo := repositories.NewMemoryOrderRepository()
	repo.AddDepot(testDepotEntity(3))
	repo.AddDepot(&domain.Depot{DepotID: 2, Location: offsetKm(testDepot, 20, 0), AvailableVehicles: 1})
	for i, p := range spiral(offsetKm(testDepot, 2, 2), 8, 1) {
		require.NoError(t, repo.AddOrder(1, &domain.Order{OrderID: int64(10 + i), Location: p}))
	}
	for i, p := range spiral(offsetKm(testDepot, 22, 0), 4, 1) {
		require.NoError(t, repo.AddOrder(2, &domain.Order{OrderID: int64(50 + i), Location: p}))
	}
	return repo
}

func TestOptimize_FromRepository(t *testing.T) {
	opt := newTestOptimizer(seededRepo(t), distance.NewMockMatrixProvider(25))

	rs, err := opt.Optimize(context.Background(), OptimizeRequest{DepotID: 1})
	require.NoError(t, err)
	assert.Equal(t, 8, rs.TotalOrders)
	assert.Equal(t, domain.SourceProvider, rs.Metadata.MatrixSource)

	subset, err := opt.Optimize(context.Background(), OptimizeRequest{
		DepotID:  1,
		OrderIDs: []int64{12, 10, 15},
		Config:   OptimizeConfig{UseClustering: ptr(false)},
	})
	require.NoError(t, err)
	require.Len(t, subset.Routes, 1, "an explicit subset without clustering is one manual route")
	assert.ElementsMatch(t, []int64{10, 12, 15}, routedIDs(subset))
	assert.Equal(t, 1, subset.Metadata.NumVehiclesRequested)

	_, err = opt.Optimize(context.Background(), OptimizeRequest{DepotID: 1, OrderIDs: []int64{999}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = opt.Optimize(context.Background(), OptimizeRequest{DepotID: 77})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, IsClientError(err))
}

func TestOptimizeBatch(t *testing.T) {
	opt := newTestOptimizer(seededRepo(t), nil)

	results := opt.OptimizeBatch(context.Background(), []OptimizeRequest{
		{DepotID: 1},
		{DepotID: 404},
		{DepotID: 2},
	}, 2)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}

	require.NoError(t, results[0].Err)
	assert.Equal(t, int64(1), results[0].RouteSet.Metadata.DepotID)
	assert.Equal(t, 8, results[0].RouteSet.TotalOrders)

	assert.ErrorIs(t, results[1].Err, domain.ErrNotFound)
	assert.Nil(t, results[1].RouteSet)

	require.NoError(t, results[2].Err)
	assert.Equal(t, int64(2), results[2].RouteSet.Metadata.DepotID)
	assert.Equal(t, 4, results[2].RouteSet.TotalOrders)
}

func TestOptimizeBatch_CancelledContext(t *testing.T) {
	opt := newTestOptimizer(seededRepo(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := opt.OptimizeBatch(ctx, []OptimizeRequest{{DepotID: 1}, {DepotID: 2}}, 1)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
