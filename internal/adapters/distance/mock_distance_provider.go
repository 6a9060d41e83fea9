package distance

import (
	"context"
	"errors"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/ports"
	"sync/atomic"
	"time"
)

// MockMatrixProvider is an in-process TravelTimeProvider for tests and local
// runs. Distances are haversine scaled by Detour so they are distinguishable
// from the fallback estimate.
type MockMatrixProvider struct {
	MaxLoc   int
	Detour   float64
	SpeedKmh float64
	// Err, when set, fails every call.
	Err error
	// NullCell reports pairs the provider cannot route.
	NullCell func(a, b domain.Coordinates) bool
	Delay    time.Duration

	calls atomic.Int64
}

var ErrProviderDown = errors.New("provider unavailable")

func NewMockMatrixProvider(maxLocations int) *MockMatrixProvider {
	return &MockMatrixProvider{MaxLoc: maxLocations, Detour: 1.3, SpeedKmh: 30}
}

// NewFailingProvider returns a provider whose every call fails.
func NewFailingProvider(maxLocations int) *MockMatrixProvider {
	p := NewMockMatrixProvider(maxLocations)
	p.Err = ErrProviderDown
	return p
}

func (p *MockMatrixProvider) Name() string { return "mock" }

func (p *MockMatrixProvider) MaxLocations() int { return p.MaxLoc }

func (p *MockMatrixProvider) Calls() int64 { return p.calls.Load() }

func (p *MockMatrixProvider) BatchMatrix(ctx context.Context, locations []domain.Coordinates) (ports.MatrixResult, error) {
	p.calls.Add(1)

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ports.MatrixResult{}, ctx.Err()
		}
	}
	if p.Err != nil {
		return ports.MatrixResult{}, p.Err
	}
	if p.MaxLoc > 0 && len(locations) > p.MaxLoc {
		return ports.MatrixResult{}, errors.New("too many locations")
	}

	n := len(locations)
	res := ports.MatrixResult{Durations: make([][]*float64, n), Distances: make([][]*float64, n)}
	for i := 0; i < n; i++ {
		res.Durations[i] = make([]*float64, n)
		res.Distances[i] = make([]*float64, n)
		for j := 0; j < n; j++ {
			if i != j && p.NullCell != nil && p.NullCell(locations[i], locations[j]) {
				continue
			}
			meters := domain.HaversineMeters(locations[i], locations[j]) * p.Detour
			seconds := meters / (p.SpeedKmh * 1000 / 3600)
			res.Distances[i][j] = &meters
			res.Durations[i][j] = &seconds
		}
	}
	return res, nil
}

func (p *MockMatrixProvider) Ping(ctx context.Context) error { return p.Err }
