package services

import (
	"context"
	"errors"
	"route-optimization-service/internal/domain"
	"time"
)

const (
	// distanceTolerance absorbs float noise on the max distance constraint.
	distanceTolerance = 1e-6
	improvementEps    = 1e-7
)

type SolverParams struct {
	// ClusterPenalty is added to every arc between orders of different clusters.
	ClusterPenalty float64
	// TimeLimit is a hard wall-clock bound on the search.
	TimeLimit time.Duration
	// MaxIterations and MaxStagnation bound the guided local search independently of time.
	MaxIterations int
	MaxStagnation int
	LambdaFactor  float64
}

func DefaultSolverParams() SolverParams {
	return SolverParams{
		ClusterPenalty: 500,
		TimeLimit:      30 * time.Second,
		MaxIterations:  1000,
		MaxStagnation:  150,
		LambdaFactor:   0.1,
	}
}

// Problem is a capacitated VRP over a matrix whose node 0 is the depot.
type Problem struct {
	Matrix *domain.DistanceMatrix
	// Labels has one entry per matrix node. The depot entry is ignored.
	Labels []domain.ClusterLabel
	// Weights has one entry per matrix node, or is nil.
	Weights  []float64
	Vehicles []domain.Vehicle
	Params   SolverParams
}

// Solution lists node indices per vehicle, depot excluded.
type Solution struct {
	Routes     [][]int
	Unassigned []int
	// Cost includes cluster penalties. Distance is meters only.
	Cost       float64
	Distance   float64
	Iterations int
	TimedOut   bool
}

func (p Problem) validate() error {
	if p.Matrix == nil {
		return errors.New("solve: matrix is nil")
	}
	n := p.Matrix.Size()
	if len(p.Labels) != 0 && len(p.Labels) != n {
		return errors.New("solve: labels do not match matrix size")
	}
	if p.Weights != nil && len(p.Weights) != n {
		return errors.New("solve: weights do not match matrix size")
	}
	return nil
}

type solver struct {
	ctx      context.Context
	deadline time.Time
	timedOut bool

	n        int
	dist     [][]float64
	base     []float64
	pen      []int32
	lambda   float64
	weights  []float64
	vehicles []domain.Vehicle
}

type solState struct {
	routes  [][]int
	routeOf []int
	pos     []int
	dist    []float64
	load    []float64
}

// Solve builds a cheapest-insertion solution and improves it with guided local
// search. It always returns the best solution found, even when the time limit
// or ctx ends the search early. Orders that fit no vehicle are left unassigned.
func Solve(ctx context.Context, p Problem) (Solution, error) {
	if err := p.validate(); err != nil {
		return Solution{}, err
	}

	params := p.Params
	def := DefaultSolverParams()
	if params.TimeLimit <= 0 {
		params.TimeLimit = def.TimeLimit
	}
	if params.MaxIterations <= 0 {
		params.MaxIterations = def.MaxIterations
	}
	if params.MaxStagnation <= 0 {
		params.MaxStagnation = def.MaxStagnation
	}
	if params.LambdaFactor <= 0 {
		params.LambdaFactor = def.LambdaFactor
	}

	s := newSolver(ctx, p, params)
	if s.n <= 1 {
		return Solution{Routes: make([][]int, len(p.Vehicles)), Unassigned: []int{}}, nil
	}

	cur := s.construct()
	s.localSearch(cur)

	best := cur.clone()
	bestCost := s.realCost(best)

	if arcs := s.arcCount(cur); arcs > 0 {
		s.lambda = params.LambdaFactor * bestCost / float64(arcs)
	}

	iter, stagnation := 0, 0
	for iter < params.MaxIterations && stagnation < params.MaxStagnation && s.lambda > 0 {
		if s.expired() {
			break
		}
		s.penalize(cur)
		s.localSearch(cur)
		iter++

		if c := s.realCost(cur); s.better(cur, c, best, bestCost) {
			best = cur.clone()
			bestCost = c
			stagnation = 0
		} else {
			stagnation++
		}
	}

	sol := Solution{
		Routes:     best.routes,
		Unassigned: best.unassigned(),
		Cost:       bestCost,
		Iterations: iter,
		TimedOut:   s.timedOut,
	}
	for _, d := range best.dist {
		sol.Distance += d
	}
	return sol, nil
}

func newSolver(ctx context.Context, p Problem, params SolverParams) *solver {
	n := p.Matrix.Size()
	s := &solver{
		ctx:      ctx,
		deadline: time.Now().Add(params.TimeLimit),
		n:        n,
		dist:     p.Matrix.Distances,
		base:     make([]float64, n*n),
		pen:      make([]int32, n*n),
		weights:  p.Weights,
		vehicles: p.Vehicles,
	}
	if s.weights == nil {
		s.weights = make([]float64, n)
	}

	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			c := s.dist[a][b]
			if a != 0 && b != 0 && len(p.Labels) == n && crossesClusters(p.Labels[a], p.Labels[b]) {
				c += params.ClusterPenalty
			}
			s.base[a*n+b] = c
		}
	}
	return s
}

func crossesClusters(a, b domain.ClusterLabel) bool {
	return a.IsAssigned() && b.IsAssigned() && !domain.SameCluster(a, b)
}

// c is the augmented arc cost used by the search.
func (s *solver) c(a, b int) float64 {
	k := a*s.n + b
	return s.base[k] + s.lambda*float64(s.pen[k])
}

func (s *solver) d(a, b int) float64 { return s.dist[a][b] }

func (s *solver) expired() bool {
	if s.timedOut {
		return true
	}
	if s.ctx.Err() != nil || !time.Now().Before(s.deadline) {
		s.timedOut = true
	}
	return s.timedOut
}

func (s *solver) newState() *solState {
	st := &solState{
		routes:  make([][]int, len(s.vehicles)),
		routeOf: make([]int, s.n),
		pos:     make([]int, s.n),
		dist:    make([]float64, len(s.vehicles)),
		load:    make([]float64, len(s.vehicles)),
	}
	for i := range st.routeOf {
		st.routeOf[i] = -1
	}
	return st
}

func (st *solState) clone() *solState {
	out := &solState{
		routes:  make([][]int, len(st.routes)),
		routeOf: append([]int(nil), st.routeOf...),
		pos:     append([]int(nil), st.pos...),
		dist:    append([]float64(nil), st.dist...),
		load:    append([]float64(nil), st.load...),
	}
	for r := range st.routes {
		out.routes[r] = append([]int{}, st.routes[r]...)
	}
	return out
}

func (st *solState) unassigned() []int {
	out := []int{}
	for u := 1; u < len(st.routeOf); u++ {
		if st.routeOf[u] < 0 {
			out = append(out, u)
		}
	}
	return out
}

func (st *solState) unassignedCount() int {
	n := 0
	for u := 1; u < len(st.routeOf); u++ {
		if st.routeOf[u] < 0 {
			n++
		}
	}
	return n
}

// reindex refreshes positions, distance and load of route r.
func (s *solver) reindex(st *solState, r int) {
	route := st.routes[r]
	dist, load, prev := 0.0, 0.0, 0
	for i, u := range route {
		st.routeOf[u] = r
		st.pos[u] = i
		dist += s.d(prev, u)
		load += s.weights[u]
		prev = u
	}
	if len(route) > 0 {
		dist += s.d(prev, 0)
	}
	st.dist[r] = dist
	st.load[r] = load
}

func (s *solver) insertAt(st *solState, u, r, pos int) {
	route := st.routes[r]
	route = append(route, 0)
	copy(route[pos+1:], route[pos:])
	route[pos] = u
	st.routes[r] = route
	s.reindex(st, r)
}

func (s *solver) removeNode(st *solState, u int) {
	r := st.routeOf[u]
	i := st.pos[u]
	st.routes[r] = append(st.routes[r][:i], st.routes[r][i+1:]...)
	st.routeOf[u] = -1
	s.reindex(st, r)
}

func (s *solver) neighbors(route []int, i int) (int, int) {
	prev, next := 0, 0
	if i > 0 {
		prev = route[i-1]
	}
	if i < len(route)-1 {
		next = route[i+1]
	}
	return prev, next
}

func (s *solver) withinDistance(r int, dist float64) bool {
	return dist <= s.vehicles[r].MaxDistanceMeters+distanceTolerance
}

func (s *solver) withinLoad(r int, stops int, load float64) bool {
	return s.vehicles[r].Fits(stops, load)
}

func (s *solver) realCost(st *solState) float64 {
	total := 0.0
	for _, route := range st.routes {
		if len(route) == 0 {
			continue
		}
		prev := 0
		for _, u := range route {
			total += s.base[prev*s.n+u]
			prev = u
		}
		total += s.base[prev*s.n]
	}
	return total
}

func (s *solver) arcCount(st *solState) int {
	n := 0
	for _, route := range st.routes {
		if len(route) > 0 {
			n += len(route) + 1
		}
	}
	return n
}

func (s *solver) better(a *solState, costA float64, b *solState, costB float64) bool {
	ua, ub := a.unassignedCount(), b.unassignedCount()
	if ua != ub {
		return ua < ub
	}
	return costA < costB-1e-9
}

// penalize increments the penalty of the arcs with maximum utility base/(1+penalty).
func (s *solver) penalize(st *solState) {
	maxUtil := -1.0
	var arcs []int
	for _, route := range st.routes {
		if len(route) == 0 {
			continue
		}
		prev := 0
		for k := 0; k <= len(route); k++ {
			next := 0
			if k < len(route) {
				next = route[k]
			}
			idx := prev*s.n + next
			util := s.base[idx] / (1 + float64(s.pen[idx]))
			switch {
			case util > maxUtil+1e-12:
				maxUtil = util
				arcs = append(arcs[:0], idx)
			case util >= maxUtil-1e-12:
				arcs = append(arcs, idx)
			}
			prev = next
		}
	}
	for _, idx := range arcs {
		s.pen[idx]++
	}
}
