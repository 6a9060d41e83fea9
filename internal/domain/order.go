package domain

import "fmt"

// Order is a delivery order as read from the order store. The engine never mutates it.
type Order struct {
	OrderID      int64
	OrderNumber  string
	CustomerName string
	Location     Coordinates
	WeightKg     *float64
	VolumeM3     *float64
	Status       string
}

// Validate checks the fields the optimizer relies on.
func (o *Order) Validate() error {
	if o == nil {
		return NewValidationError("order", "order is nil")
	}
	if err := o.Location.Validate(); err != nil {
		return NewValidationError("order", fmt.Sprintf("order %d: %v", o.OrderID, err))
	}
	if o.WeightKg != nil && *o.WeightKg < 0 {
		return NewValidationError("order", fmt.Sprintf("order %d: negative weight", o.OrderID))
	}
	return nil
}

// Weight returns the order weight, zero when unknown.
func (o *Order) Weight() float64 {
	if o.WeightKg == nil {
		return 0
	}
	return *o.WeightKg
}

// Depot is the start and end point of every route.
type Depot struct {
	DepotID           int64
	Name              string
	Location          Coordinates
	AvailableVehicles int
	// VehicleCapacity is the per-vehicle stop limit, zero when the depot has no default.
	VehicleCapacity int
}

func (d *Depot) Validate() error {
	if d == nil {
		return NewValidationError("depot", "depot is nil")
	}
	if err := d.Location.Validate(); err != nil {
		return NewValidationError("depot", fmt.Sprintf("depot %d: %v", d.DepotID, err))
	}
	if d.AvailableVehicles < 0 {
		return NewValidationError("depot", fmt.Sprintf("depot %d: negative vehicle count", d.DepotID))
	}
	return nil
}
