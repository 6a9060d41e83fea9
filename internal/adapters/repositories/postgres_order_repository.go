package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
)

// Postgres-backed implementation of the OrderRepository port.
type PostgresOrderRepository struct{ DB *sql.DB }

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{DB: db}
}

func (p *PostgresOrderRepository) GetDepot(ctx context.Context, depotID int64) (_ *domain.Depot, err error) {
	defer obs.Time(ctx, "repo.GetDepot")(&err)

	if p.DB == nil {
		return nil, errors.New("postgres order repository: DB is nil")
	}

	query := `
	SELECT
		depot_id,
		name,
		lat,
		lon,
		available_vehicles,
		vehicle_capacity
	FROM depots
	WHERE depot_id = $1;
	`
	var d domain.Depot
	err = p.DB.QueryRowContext(ctx, query, depotID).Scan(
		&d.DepotID, &d.Name, &d.Location.Lat, &d.Location.Lon, &d.AvailableVehicles, &d.VehicleCapacity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get depot %d: %w", depotID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get depot %d: query depots table: %w", depotID, err)
	}
	return &d, nil
}

// Return the pending orders of a depot ordered by id.
func (p *PostgresOrderRepository) ListOrders(ctx context.Context, depotID int64) (_ []*domain.Order, err error) {
	defer obs.Time(ctx, "repo.ListOrders")(&err)

	if _, err := p.GetDepot(ctx, depotID); err != nil {
		return nil, err
	}

	query := `
	SELECT
		order_id,
		order_number,
		customer_name,
		lat,
		lon,
		weight_kg,
		volume_m3,
		status
	FROM orders
	WHERE depot_id = $1
		AND status = 'pending'
	ORDER BY order_id;
	`
	rows, err := p.DB.QueryContext(ctx, query, depotID)
	if err != nil {
		return nil, fmt.Errorf("list orders: query orders table: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// Return the requested orders of a depot in request order.
func (p *PostgresOrderRepository) GetOrders(ctx context.Context, depotID int64, orderIDs []int64) (_ []*domain.Order, err error) {
	defer obs.Time(ctx, "repo.GetOrders")(&err)

	if p.DB == nil {
		return nil, errors.New("postgres order repository: DB is nil")
	}
	if len(orderIDs) == 0 {
		return []*domain.Order{}, nil
	}

	query := `
	SELECT
		order_id,
		order_number,
		customer_name,
		lat,
		lon,
		weight_kg,
		volume_m3,
		status
	FROM orders
	WHERE depot_id = $1
		AND order_id = ANY($2::bigint[]);
	`
	rows, err := p.DB.QueryContext(ctx, query, depotID, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("get orders: query orders table: %w", err)
	}
	defer rows.Close()

	found, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	return orderByIDs(depotID, found, orderIDs)
}

func (p *PostgresOrderRepository) Ping(ctx context.Context) error {
	if p.DB == nil {
		return errors.New("postgres order repository: DB is nil")
	}
	return p.DB.PingContext(ctx)
}

func scanOrders(rows *sql.Rows) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0, 64)
	for rows.Next() {
		var o domain.Order
		var weight, volume sql.NullFloat64
		if err := rows.Scan(
			&o.OrderID, &o.OrderNumber, &o.CustomerName, &o.Location.Lat, &o.Location.Lon, &weight, &volume, &o.Status,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		if weight.Valid {
			o.WeightKg = &weight.Float64
		}
		if volume.Valid {
			o.VolumeM3 = &volume.Float64
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order row iteration: %w", err)
	}
	return orders, nil
}

// orderByIDs arranges found in the order of ids and reports the first missing id.
func orderByIDs(depotID int64, found []*domain.Order, ids []int64) ([]*domain.Order, error) {
	byID := make(map[int64]*domain.Order, len(found))
	for _, o := range found {
		byID[o.OrderID] = o
	}
	out := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		o, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("order %d at depot %d: %w", id, depotID, domain.ErrNotFound)
		}
		out = append(out, o)
	}
	return out, nil
}
