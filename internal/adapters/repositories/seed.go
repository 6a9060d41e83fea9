package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"route-optimization-service/internal/domain"
	"strings"
)

type DepotSeed struct {
	DepotID           int64   `json:"depot_id"`
	Name              string  `json:"name"`
	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	AvailableVehicles int     `json:"available_vehicles"`
	VehicleCapacity   int     `json:"vehicle_capacity"`
}

type OrderSeed struct {
	OrderID      int64    `json:"order_id"`
	DepotID      int64    `json:"depot_id"`
	OrderNumber  string   `json:"order_number"`
	CustomerName string   `json:"customer_name"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	WeightKg     *float64 `json:"weight_kg,omitempty"`
	VolumeM3     *float64 `json:"volume_m3,omitempty"`
	Status       string   `json:"status"`
}

// Seed is the on-disk format of the demo dataset.
type Seed struct {
	Depots []DepotSeed `json:"depots"`
	Orders []OrderSeed `json:"orders"`
}

// Read and validate a seed file.
func LoadSeed(jsonPath string) (*Seed, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	var seed Seed
	if err := json.Unmarshal(bytes, &seed); err != nil {
		return nil, fmt.Errorf("seed: parse json: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	depots := make(map[int64]bool, len(s.Depots))
	for i := range s.Depots {
		d := &s.Depots[i]
		if d.DepotID <= 0 {
			return fmt.Errorf("seed: invalid depot_id at index %d: %d", i+1, d.DepotID)
		}
		if err := d.toDomain().Validate(); err != nil {
			return fmt.Errorf("seed: depot at index %d: %w", i+1, err)
		}
		depots[d.DepotID] = true
	}

	for i := range s.Orders {
		o := &s.Orders[i]
		if o.OrderID <= 0 {
			return fmt.Errorf("seed: invalid order_id at index %d: %d", i+1, o.OrderID)
		}
		if !depots[o.DepotID] {
			return fmt.Errorf("seed: order %d references unknown depot %d", o.OrderID, o.DepotID)
		}
		o.Status = strings.TrimSpace(o.Status)
		if o.Status == "" {
			o.Status = "pending"
		}
		if err := o.toDomain().Validate(); err != nil {
			return fmt.Errorf("seed: order at index %d: %w", i+1, err)
		}
	}
	return nil
}

func (d DepotSeed) toDomain() *domain.Depot {
	return &domain.Depot{
		DepotID:           d.DepotID,
		Name:              d.Name,
		Location:          domain.Coordinates{Lon: d.Lon, Lat: d.Lat},
		AvailableVehicles: d.AvailableVehicles,
		VehicleCapacity:   d.VehicleCapacity,
	}
}

func (o OrderSeed) toDomain() *domain.Order {
	return &domain.Order{
		OrderID:      o.OrderID,
		OrderNumber:  o.OrderNumber,
		CustomerName: o.CustomerName,
		Location:     domain.Coordinates{Lon: o.Lon, Lat: o.Lat},
		WeightKg:     o.WeightKg,
		VolumeM3:     o.VolumeM3,
		Status:       o.Status,
	}
}

// Populate the database with depots and orders from a JSON file.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	seed, err := LoadSeed(jsonPath)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	depotStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO depots (depot_id, name, lat, lon, available_vehicles, vehicle_capacity)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (depot_id) DO UPDATE
	SET name = EXCLUDED.name,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		available_vehicles = EXCLUDED.available_vehicles,
		vehicle_capacity = EXCLUDED.vehicle_capacity;
	`)
	if err != nil {
		return fmt.Errorf("seed: prepare depot insert: %w", err)
	}
	defer depotStmt.Close()

	for _, d := range seed.Depots {
		if _, err := depotStmt.ExecContext(ctx, d.DepotID, d.Name, d.Lat, d.Lon, d.AvailableVehicles, d.VehicleCapacity); err != nil {
			return fmt.Errorf("seed: insert depot_id=%d: %w", d.DepotID, err)
		}
	}

	orderStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO orders (order_id, depot_id, order_number, customer_name, lat, lon, weight_kg, volume_m3, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (order_id) DO UPDATE
	SET depot_id = EXCLUDED.depot_id,
		order_number = EXCLUDED.order_number,
		customer_name = EXCLUDED.customer_name,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		weight_kg = EXCLUDED.weight_kg,
		volume_m3 = EXCLUDED.volume_m3,
		status = EXCLUDED.status;
	`)
	if err != nil {
		return fmt.Errorf("seed: prepare order insert: %w", err)
	}
	defer orderStmt.Close()

	for _, o := range seed.Orders {
		if _, err := orderStmt.ExecContext(ctx, o.OrderID, o.DepotID, o.OrderNumber, o.CustomerName, o.Lat, o.Lon, o.WeightKg, o.VolumeM3, o.Status); err != nil {
			return fmt.Errorf("seed: insert order_id=%d: %w", o.OrderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}
