package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// HaversineFallback estimates travel cost from great-circle distance and a constant speed.
type HaversineFallback struct {
	AverageSpeedKmh float64
}

// Estimate returns (duration seconds, distance meters).
func (f HaversineFallback) Estimate(a, b domain.Coordinates) (float64, float64) {
	meters := domain.HaversineMeters(a, b)
	speed := f.AverageSpeedKmh
	if speed <= 0 {
		speed = 40
	}
	return meters / (speed * 1000 / 3600), meters
}

// MatrixStrategy is the primary provider plus the fallback used for every cell
// the provider cannot supply. Primary may be nil.
type MatrixStrategy struct {
	Primary     ports.TravelTimeProvider
	Fallback    HaversineFallback
	CallTimeout time.Duration
}

// MatrixBuilder produces complete distance matrices. It is safe for concurrent use.
type MatrixBuilder struct {
	strategy    MatrixStrategy
	cache       ports.MatrixCache
	concurrency int

	flights singleflight.Group
}

func NewMatrixBuilder(strategy MatrixStrategy, cache ports.MatrixCache, concurrency int) *MatrixBuilder {
	if concurrency < 1 {
		concurrency = 1
	}
	if strategy.CallTimeout <= 0 {
		strategy.CallTimeout = 10 * time.Second
	}
	return &MatrixBuilder{strategy: strategy, cache: cache, concurrency: concurrency}
}

// Build returns the matrix over nodes (depot first). Provider failures never
// surface as errors; affected cells are filled by the fallback.
func (b *MatrixBuilder) Build(
	ctx context.Context,
	depotID int64,
	day string,
	nodes []domain.Coordinates,
) (_ *domain.DistanceMatrix, err error) {
	defer obs.Time(ctx, "matrix.Build")(&err)

	if len(nodes) == 0 {
		return nil, errors.New("build matrix: node list is empty")
	}

	key := ports.NewMatrixKey(depotID, day, nodes)

	// Concurrent builds for one key share a single computation. The shared work
	// is detached from the first caller's cancellation; provider calls carry
	// their own timeouts.
	v, err, shared := b.flights.Do(key.String(), func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)

		if m := b.lookup(flightCtx, key, nodes); m != nil {
			return m, nil
		}

		m := b.compute(flightCtx, nodes)
		if b.cache != nil && m.Source == domain.SourceProvider {
			if err := b.cache.Put(flightCtx, key, m); err != nil {
				obs.Ctx(ctx).Warn().Err(err).Str("key", key.String()).Msg("matrix cache write failed")
			}
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("build matrix: %w", err)
	}
	m := v.(*domain.DistanceMatrix)
	if shared {
		obs.Ctx(ctx).Debug().Str("key", key.String()).Msg("matrix computation shared")
		if !sameNodes(m.Nodes, nodes) {
			// Fingerprint collision; never hand out a matrix for other nodes.
			return b.compute(ctx, nodes), nil
		}
	}

	return m, nil
}

func (b *MatrixBuilder) lookup(ctx context.Context, key ports.MatrixKey, nodes []domain.Coordinates) *domain.DistanceMatrix {
	if b.cache == nil {
		return nil
	}

	m, err := b.cache.Get(ctx, key)
	if err != nil {
		obs.Ctx(ctx).Warn().Err(err).Str("key", key.String()).Msg("matrix cache read failed")
		obs.MatrixCache.WithLabelValues("error").Inc()
		return nil
	}
	if m == nil {
		obs.MatrixCache.WithLabelValues("miss").Inc()
		return nil
	}
	if !sameNodes(m.Nodes, nodes) || m.Validate() != nil {
		obs.Ctx(ctx).Warn().Str("key", key.String()).Msg("cached matrix does not match node ordering")
		obs.MatrixCache.WithLabelValues("mismatch").Inc()
		return nil
	}

	obs.MatrixCache.WithLabelValues("hit").Inc()
	return m
}

type nodeRange struct{ lo, hi int }

func (b *MatrixBuilder) compute(ctx context.Context, nodes []domain.Coordinates) *domain.DistanceMatrix {
	n := len(nodes)
	m := domain.NewDistanceMatrix(nodes)

	provided := make([][]bool, n)
	for i := range provided {
		provided[i] = make([]bool, n)
	}

	primary := b.strategy.Primary
	if primary != nil && n > 1 && primary.MaxLocations() >= 2 {
		blocks := chunkNodes(n, primary.MaxLocations())

		var g errgroup.Group
		g.SetLimit(b.concurrency)
		for bi := range blocks {
			for bj := bi; bj < len(blocks); bj++ {
				rows, cols := blocks[bi], blocks[bj]
				g.Go(func() error {
					b.fetchBlock(ctx, m, provided, rows, cols)
					return nil
				})
			}
		}
		_ = g.Wait()
	}

	fallbackCells := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				m.Durations[i][j], m.Distances[i][j] = 0, 0
				continue
			}
			if provided[i][j] {
				continue
			}
			m.Durations[i][j], m.Distances[i][j] = b.strategy.Fallback.Estimate(nodes[i], nodes[j])
			fallbackCells++
		}
	}
	obs.FallbackCells.Add(float64(fallbackCells))

	switch {
	case primary == nil || fallbackCells == n*(n-1) && n > 1:
		m.Source = domain.SourceFallback
	case fallbackCells == 0:
		m.Source = domain.SourceProvider
	default:
		m.Source = domain.SourceMixed
	}
	if fallbackCells > 0 {
		obs.Ctx(ctx).Info().Int("nodes", n).Int("fallback_cells", fallbackCells).Str("source", string(m.Source)).Msg("matrix used haversine fallback")
	}
	return m
}

// chunkNodes splits n nodes so that any two chunks together fit in one provider call.
func chunkNodes(n, maxLocations int) []nodeRange {
	if n <= maxLocations {
		return []nodeRange{{0, n}}
	}
	size := maxLocations / 2
	out := make([]nodeRange, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		out = append(out, nodeRange{lo, min(lo+size, n)})
	}
	return out
}

// fetchBlock requests the union of rows and cols and writes only the cells
// (rows x cols) and (cols x rows), so concurrent blocks never overlap.
func (b *MatrixBuilder) fetchBlock(
	ctx context.Context,
	m *domain.DistanceMatrix,
	provided [][]bool,
	rows, cols nodeRange,
) {
	primary := b.strategy.Primary

	idx := make([]int, 0, (rows.hi-rows.lo)+(cols.hi-cols.lo))
	for i := rows.lo; i < rows.hi; i++ {
		idx = append(idx, i)
	}
	if cols != rows {
		for j := cols.lo; j < cols.hi; j++ {
			idx = append(idx, j)
		}
	}
	locs := make([]domain.Coordinates, len(idx))
	for k, g := range idx {
		locs[k] = m.Nodes[g]
	}

	callCtx, cancel := context.WithTimeout(ctx, b.strategy.CallTimeout)
	defer cancel()

	res, err := primary.BatchMatrix(callCtx, locs)
	if err == nil {
		err = checkBlockShape(res, len(locs))
	}
	if err != nil {
		extErr := &domain.ExternalServiceError{Provider: primary.Name(), Op: "batch_matrix", Err: err}
		obs.ProviderCalls.WithLabelValues(primary.Name(), "error").Inc()
		obs.Ctx(ctx).Warn().Err(extErr).Int("locations", len(locs)).Msg("matrix block fell back to haversine")
		return
	}
	obs.ProviderCalls.WithLabelValues(primary.Name(), "ok").Inc()

	inRows := func(g int) bool { return g >= rows.lo && g < rows.hi }
	inCols := func(g int) bool { return g >= cols.lo && g < cols.hi }

	for li, gi := range idx {
		for lj, gj := range idx {
			if gi == gj {
				continue
			}
			if cols != rows && !(inRows(gi) && inCols(gj)) && !(inCols(gi) && inRows(gj)) {
				continue
			}
			dur, dist := res.Durations[li][lj], res.Distances[li][lj]
			if !usableCell(dur) || !usableCell(dist) {
				continue
			}
			m.Durations[gi][gj] = *dur
			m.Distances[gi][gj] = *dist
			provided[gi][gj] = true
		}
	}
}

func checkBlockShape(res ports.MatrixResult, n int) error {
	if len(res.Durations) != n || len(res.Distances) != n {
		return fmt.Errorf("malformed matrix: expected %d rows, got durations=%d distances=%d", n, len(res.Durations), len(res.Distances))
	}
	for i := 0; i < n; i++ {
		if len(res.Durations[i]) != n || len(res.Distances[i]) != n {
			return fmt.Errorf("malformed matrix: row %d has wrong length", i)
		}
	}
	return nil
}

func usableCell(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v >= 0
}

func sameNodes(a, b []domain.Coordinates) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
