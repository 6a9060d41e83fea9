package domain

import "fmt"

// Vehicle is one identical unit of the fleet for a single optimization run.
type Vehicle struct {
	VehicleID int
	// Capacity is the maximum number of stops.
	Capacity          int
	MaxDistanceMeters float64
	// WeightCapacityKg is zero when weight is unconstrained.
	WeightCapacityKg float64
}

// Fits reports whether a route with the given load stays within capacity.
func (v Vehicle) Fits(stops int, weightKg float64) bool {
	if stops > v.Capacity {
		return false
	}
	if v.WeightCapacityKg > 0 && weightKg > v.WeightCapacityKg+1e-9 {
		return false
	}
	return true
}

// NewFleet returns n identical vehicles numbered from zero.
func NewFleet(n, capacity int, maxDistanceMeters, weightCapacityKg float64) ([]Vehicle, error) {
	if n < 1 {
		return nil, NewValidationError("num_vehicles", fmt.Sprintf("must be at least 1, got %d", n))
	}
	if capacity < 1 {
		return nil, NewValidationError("vehicle_capacity", fmt.Sprintf("must be at least 1, got %d", capacity))
	}
	if maxDistanceMeters <= 0 {
		return nil, NewValidationError("max_distance_km", "must be positive")
	}

	fleet := make([]Vehicle, 0, n)
	for i := 0; i < n; i++ {
		fleet = append(fleet, Vehicle{
			VehicleID:         i,
			Capacity:          capacity,
			MaxDistanceMeters: maxDistanceMeters,
			WeightCapacityKg:  weightCapacityKg,
		})
	}
	return fleet, nil
}
