package ports

import (
	"context"
	"route-optimization-service/internal/domain"
)

// Port: a read-only boundary for depots and their orders.
type OrderRepository interface {
	// Return the depot or an error wrapping domain.ErrNotFound.
	GetDepot(ctx context.Context, depotID int64) (*domain.Depot, error)
	// Retrieve the pending orders of a depot in a stable order.
	ListOrders(ctx context.Context, depotID int64) ([]*domain.Order, error)
	// Retrieve the given orders of a depot. Unknown ids are an error wrapping domain.ErrNotFound.
	GetOrders(ctx context.Context, depotID int64, orderIDs []int64) ([]*domain.Order, error)
	Ping(ctx context.Context) error
}
