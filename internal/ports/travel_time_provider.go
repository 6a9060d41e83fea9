package ports

import (
	"context"
	"route-optimization-service/internal/domain"
)

// MatrixResult is a square travel cost block for the requested locations.
// Durations are seconds and Distances are meters. A nil cell means the provider
// could not route that pair.
type MatrixResult struct {
	Durations [][]*float64
	Distances [][]*float64
}

// Contract for retrieving travel distance and duration between many locations.
type TravelTimeProvider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// MaxLocations is the largest location count accepted by one BatchMatrix call.
	MaxLocations() int
	// Return the full locations x locations matrix.
	BatchMatrix(ctx context.Context, locations []domain.Coordinates) (MatrixResult, error)
}

// Optional extension for providers that can report reachability.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
