package services

import (
	"fmt"
	"route-optimization-service/internal/domain"
)

const (
	defaultVehicleCapacity  = 50
	ordersPerDerivedVehicle = 50
)

type FleetRequest struct {
	Depot          *domain.Depot
	NumOrders      int
	UseClustering  bool
	ClusterSizes   []int
	ExplicitSubset bool
	// NumVehicles is an explicit count; zero derives it.
	NumVehicles int
	// VehicleCapacity wins over the depot capacity, which wins over DefaultCapacity.
	VehicleCapacity  int
	DefaultCapacity  int
	MaxDistanceKm    float64
	WeightCapacityKg float64
	// ExpandForCapacity adds vehicles to clusters larger than one vehicle's capacity.
	ExpandForCapacity bool
}

// FleetPlan is the vehicle count and the per-vehicle limits for one run.
type FleetPlan struct {
	Vehicles []domain.Vehicle
	Capacity int
	// Basis names the rule that fixed the vehicle count.
	Basis string
}

func (p FleetPlan) NumVehicles() int { return len(p.Vehicles) }

// AllocateFleet decides how many vehicles to use and their limits.
func AllocateFleet(req FleetRequest) (FleetPlan, error) {
	if req.MaxDistanceKm <= 0 {
		return FleetPlan{}, domain.NewValidationError("max_distance_km", fmt.Sprintf("must be positive, got %v", req.MaxDistanceKm))
	}
	if req.VehicleCapacity < 0 {
		return FleetPlan{}, domain.NewValidationError("vehicle_capacity", fmt.Sprintf("must be positive, got %d", req.VehicleCapacity))
	}

	capacity := req.VehicleCapacity
	if capacity == 0 && req.Depot != nil {
		capacity = req.Depot.VehicleCapacity
	}
	if capacity <= 0 {
		capacity = req.DefaultCapacity
	}
	if capacity <= 0 {
		capacity = defaultVehicleCapacity
	}

	available := 0
	if req.Depot != nil {
		available = req.Depot.AvailableVehicles
	}

	var count int
	var basis string
	switch {
	case req.UseClustering && len(req.ClusterSizes) > 0:
		basis = "clusters"
		count = len(req.ClusterSizes)
		if req.ExpandForCapacity {
			count = 0
			for _, sz := range req.ClusterSizes {
				count += max(1, (sz+capacity-1)/capacity)
			}
		}
		if available > 0 && count > available {
			basis = "clusters_capped"
			count = available
		}
	case req.ExplicitSubset && !req.UseClustering:
		basis = "manual"
		count = 1
	case req.NumVehicles > 0:
		basis = "explicit"
		count = req.NumVehicles
	default:
		basis = "derived"
		count = max(1, req.NumOrders/ordersPerDerivedVehicle)
		if available > 0 && count > available {
			count = available
		}
	}
	count = max(count, 1)

	fleet, err := domain.NewFleet(count, capacity, req.MaxDistanceKm*1000, req.WeightCapacityKg)
	if err != nil {
		return FleetPlan{}, fmt.Errorf("allocate fleet: %w", err)
	}
	return FleetPlan{Vehicles: fleet, Capacity: capacity, Basis: basis}, nil
}
