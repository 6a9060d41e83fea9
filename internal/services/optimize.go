package services

import (
	"context"
	"errors"
	"fmt"
	"route-optimization-service/internal/config"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
	"time"

	"github.com/google/uuid"
)

// OptimizeConfig overrides the optimizer defaults. Nil fields keep the default.
type OptimizeConfig struct {
	UseClustering          *bool
	MinClusterSize         *int
	MaxDistanceKm          *float64
	VehicleCapacity        *int
	SolverTimeLimitSeconds *int
	ClusterPenaltyWeight   *float64
	NumVehicles            *int
	WeightCapacityKg       *float64
	ExpandForCapacity      bool
}

// OptimizeRequest names a depot and either explicit orders, a subset of order
// ids, or neither (all pending orders of the depot).
type OptimizeRequest struct {
	DepotID  int64
	Depot    *domain.Depot
	OrderIDs []int64
	Orders   []*domain.Order
	Config   OptimizeConfig
	StartAt  time.Time
}

type resolvedConfig struct {
	useClustering     bool
	minClusterSize    int
	maxDistanceKm     float64
	vehicleCapacity   int
	timeLimit         time.Duration
	clusterPenalty    float64
	numVehicles       int
	weightCapacityKg  float64
	expandForCapacity bool
	serviceTime       time.Duration
}

// Optimizer runs the full pipeline for one depot per call. It holds no
// per-run state and is safe for concurrent use.
type Optimizer struct {
	repo          ports.OrderRepository
	matrices      *MatrixBuilder
	defaults      config.Optimizer
	clusterParams ClusterParams
	solverParams  SolverParams
	now           func() time.Time
}

type OptimizerOption func(*Optimizer)

// WithSolverLimits overrides the iteration caps of the guided local search.
func WithSolverLimits(maxIterations, maxStagnation int) OptimizerOption {
	return func(o *Optimizer) {
		o.solverParams.MaxIterations = maxIterations
		o.solverParams.MaxStagnation = maxStagnation
	}
}

func WithClock(now func() time.Time) OptimizerOption {
	return func(o *Optimizer) { o.now = now }
}

func NewOptimizer(repo ports.OrderRepository, matrices *MatrixBuilder, defaults config.Optimizer, opts ...OptimizerOption) *Optimizer {
	cp := DefaultClusterParams()
	if defaults.ClusterEpsilonKm > 0 {
		cp.SelectionEpsilonKm = defaults.ClusterEpsilonKm
	}
	o := &Optimizer{
		repo:          repo,
		matrices:      matrices,
		defaults:      defaults,
		clusterParams: cp,
		solverParams:  DefaultSolverParams(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize validates the request, clusters the orders, builds the travel matrix,
// solves the routing problem and reconciles the result. Only validation and
// lookup failures return an error; provider outages and infeasible orders are
// reflected in the RouteSet.
func (o *Optimizer) Optimize(ctx context.Context, req OptimizeRequest) (_ *domain.RouteSet, err error) {
	defer obs.Time(ctx, "optimizer.Optimize")(&err)

	runID := uuid.NewString()
	log := obs.Ctx(ctx).With().Str("run_id", runID).Int64("depot_id", req.DepotID).Logger()
	tracker := domain.NewStageTracker()

	fail := func(e error) (*domain.RouteSet, error) {
		_ = tracker.Advance(domain.StageError)
		log.Warn().Err(e).Str("stage", string(tracker.History()[len(tracker.History())-2])).Msg("optimization aborted")
		return nil, e
	}

	cfg, err := o.resolve(req.Config)
	if err != nil {
		return fail(err)
	}
	depot, orders, err := o.load(ctx, req)
	if err != nil {
		return fail(err)
	}

	startAt := req.StartAt
	if startAt.IsZero() {
		startAt = o.now()
	}

	if len(orders) == 0 {
		_ = tracker.Advance(domain.StageDone)
		rs := domain.EmptyRouteSet(depot.DepotID, runID)
		rs.Metadata.Stages = tracker.History()
		obs.Optimizations.WithLabelValues(string(rs.SolverStatus)).Inc()
		log.Info().Msg("no orders to optimize")
		return rs, nil
	}

	if err := advance(ctx, tracker, domain.StageClustering); err != nil {
		return fail(err)
	}
	points := make([]domain.Coordinates, len(orders))
	for i, ord := range orders {
		points[i] = ord.Location
	}

	var clustering *Clustering
	if cfg.useClustering {
		cp := o.clusterParams
		cp.MinClusterSize = cfg.minClusterSize
		clustering = ClusterOrders(points, cp)
		log.Info().Int("clusters", clustering.NumClusters()).Int("noise", clustering.NoiseCount).Msg("orders clustered")
	}

	if err := advance(ctx, tracker, domain.StageMatrixBuilding); err != nil {
		return fail(err)
	}
	nodes := append([]domain.Coordinates{depot.Location}, points...)
	matrix, err := o.matrices.Build(ctx, depot.DepotID, startAt.Format(time.DateOnly), nodes)
	if err != nil {
		return fail(err)
	}

	if err := advance(ctx, tracker, domain.StageSolving); err != nil {
		return fail(err)
	}
	fleetReq := FleetRequest{
		Depot:             depot,
		NumOrders:         len(orders),
		UseClustering:     cfg.useClustering,
		ExplicitSubset:    len(req.OrderIDs) > 0,
		NumVehicles:       cfg.numVehicles,
		VehicleCapacity:   cfg.vehicleCapacity,
		DefaultCapacity:   o.defaults.VehicleCapacity,
		MaxDistanceKm:     cfg.maxDistanceKm,
		WeightCapacityKg:  cfg.weightCapacityKg,
		ExpandForCapacity: cfg.expandForCapacity,
	}
	if clustering != nil {
		for _, m := range clustering.Members {
			fleetReq.ClusterSizes = append(fleetReq.ClusterSizes, len(m))
		}
	}
	fleet, err := AllocateFleet(fleetReq)
	if err != nil {
		return fail(err)
	}

	problem := Problem{
		Matrix:   matrix,
		Labels:   make([]domain.ClusterLabel, len(nodes)),
		Vehicles: fleet.Vehicles,
		Params:   o.solverParams,
	}
	problem.Params.ClusterPenalty = cfg.clusterPenalty
	problem.Params.TimeLimit = cfg.timeLimit
	if clustering != nil {
		copy(problem.Labels[1:], clustering.Labels)
	}
	if cfg.weightCapacityKg > 0 {
		problem.Weights = make([]float64, len(nodes))
		for i, ord := range orders {
			problem.Weights[i+1] = ord.Weight()
		}
	}

	// Cancellation is honoured by the solver on a best-effort basis from here on.
	sol, err := Solve(ctx, problem)
	if err != nil {
		return fail(fmt.Errorf("optimize: %w", err))
	}
	if sol.TimedOut {
		log.Warn().Int("iterations", sol.Iterations).Msg("solver stopped at time limit, returning best solution")
	}

	_ = tracker.Advance(domain.StageReconciling)
	rs := Reconcile(ReconcileInput{
		Orders:      orders,
		Matrix:      matrix,
		Clustering:  clustering,
		Solution:    sol,
		StartAt:     startAt,
		ServiceTime: cfg.serviceTime,
	})
	_ = tracker.Advance(domain.StageDone)

	rs.Metadata.RunID = runID
	rs.Metadata.DepotID = depot.DepotID
	rs.Metadata.NumVehiclesRequested = fleet.NumVehicles()
	rs.Metadata.Stages = tracker.History()

	obs.Optimizations.WithLabelValues(string(rs.SolverStatus)).Inc()
	obs.UnassignedOrders.Add(float64(len(rs.UnassignedOrders)))
	log.Info().
		Str("status", string(rs.SolverStatus)).
		Int("routes", len(rs.Routes)).
		Int("unassigned", len(rs.UnassignedOrders)).
		Float64("distance_km", rs.TotalDistanceKm).
		Float64("cluster_purity", rs.Metadata.ClusterPurity).
		Str("matrix_source", string(matrix.Source)).
		Msg("optimization finished")

	return rs, nil
}

// advance moves to the next stage unless the caller has cancelled.
func advance(ctx context.Context, tracker *domain.StageTracker, to domain.Stage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("optimize: cancelled before %s: %w", to, err)
	}
	return tracker.Advance(to)
}

func (o *Optimizer) resolve(c OptimizeConfig) (resolvedConfig, error) {
	d := o.defaults
	rc := resolvedConfig{
		useClustering:     d.UseClustering,
		minClusterSize:    d.MinClusterSize,
		maxDistanceKm:     d.MaxDistanceKm,
		timeLimit:         time.Duration(d.SolverTimeLimitSeconds) * time.Second,
		clusterPenalty:    d.ClusterPenaltyWeight,
		expandForCapacity: c.ExpandForCapacity,
		serviceTime:       time.Duration(d.ServiceTimeMinutes * float64(time.Minute)),
	}

	if c.UseClustering != nil {
		rc.useClustering = *c.UseClustering
	}
	if c.MinClusterSize != nil {
		if *c.MinClusterSize < 1 {
			return rc, domain.NewValidationError("min_cluster_size", "must be at least 1")
		}
		rc.minClusterSize = *c.MinClusterSize
	}
	if c.MaxDistanceKm != nil {
		if *c.MaxDistanceKm <= 0 {
			return rc, domain.NewValidationError("max_distance_km", "must be positive")
		}
		rc.maxDistanceKm = *c.MaxDistanceKm
	}
	if c.VehicleCapacity != nil {
		if *c.VehicleCapacity <= 0 {
			return rc, domain.NewValidationError("vehicle_capacity", "must be positive")
		}
		rc.vehicleCapacity = *c.VehicleCapacity
	}
	if c.SolverTimeLimitSeconds != nil {
		if *c.SolverTimeLimitSeconds <= 0 {
			return rc, domain.NewValidationError("solver_time_limit_seconds", "must be positive")
		}
		rc.timeLimit = time.Duration(*c.SolverTimeLimitSeconds) * time.Second
	}
	if c.ClusterPenaltyWeight != nil {
		if *c.ClusterPenaltyWeight < 0 {
			return rc, domain.NewValidationError("cluster_penalty_weight", "must not be negative")
		}
		rc.clusterPenalty = *c.ClusterPenaltyWeight
	}
	if c.NumVehicles != nil {
		if *c.NumVehicles <= 0 {
			return rc, domain.NewValidationError("num_vehicles", "must be positive")
		}
		rc.numVehicles = *c.NumVehicles
	}
	if c.WeightCapacityKg != nil {
		if *c.WeightCapacityKg <= 0 {
			return rc, domain.NewValidationError("weight_capacity_kg", "must be positive")
		}
		rc.weightCapacityKg = *c.WeightCapacityKg
	}
	return rc, nil
}

func (o *Optimizer) load(ctx context.Context, req OptimizeRequest) (*domain.Depot, []*domain.Order, error) {
	depot := req.Depot
	if depot == nil {
		if o.repo == nil {
			return nil, nil, domain.NewValidationError("depot", "depot is required")
		}
		d, err := o.repo.GetDepot(ctx, req.DepotID)
		if err != nil {
			return nil, nil, fmt.Errorf("optimize: load depot %d: %w", req.DepotID, err)
		}
		depot = d
	}
	if err := depot.Validate(); err != nil {
		return nil, nil, err
	}

	orders := req.Orders
	switch {
	case orders != nil:
	case o.repo == nil:
		return nil, nil, domain.NewValidationError("orders", "orders are required")
	case len(req.OrderIDs) > 0:
		got, err := o.repo.GetOrders(ctx, depot.DepotID, req.OrderIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("optimize: load orders: %w", err)
		}
		orders = got
	default:
		got, err := o.repo.ListOrders(ctx, depot.DepotID)
		if err != nil {
			return nil, nil, fmt.Errorf("optimize: list orders: %w", err)
		}
		orders = got
	}

	seen := make(map[int64]struct{}, len(orders))
	for _, ord := range orders {
		if err := ord.Validate(); err != nil {
			return nil, nil, err
		}
		if _, dup := seen[ord.OrderID]; dup {
			return nil, nil, domain.NewValidationError("orders", fmt.Sprintf("duplicate order id %d", ord.OrderID))
		}
		seen[ord.OrderID] = struct{}{}
	}
	return depot, orders, nil
}

// IsClientError reports whether err should be surfaced to the caller as bad input.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound)
}
