package repositories

import (
	"context"
	"fmt"
	"route-optimization-service/internal/domain"
	"sort"
	"sync"
)

// In-memory OrderRepository used for local runs without Postgres and in tests.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	depots map[int64]*domain.Depot
	orders map[int64][]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		depots: make(map[int64]*domain.Depot),
		orders: make(map[int64][]*domain.Order),
	}
}

// Build a repository from a seed file.
func NewMemoryOrderRepositoryFromSeed(jsonPath string) (*MemoryOrderRepository, error) {
	seed, err := LoadSeed(jsonPath)
	if err != nil {
		return nil, err
	}
	r := NewMemoryOrderRepository()
	for _, d := range seed.Depots {
		r.AddDepot(d.toDomain())
	}
	for _, o := range seed.Orders {
		if err := r.AddOrder(o.DepotID, o.toDomain()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *MemoryOrderRepository) AddDepot(d *domain.Depot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.depots[d.DepotID] = &cp
}

func (r *MemoryOrderRepository) AddOrder(depotID int64, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.depots[depotID]; !ok {
		return fmt.Errorf("add order %d: depot %d: %w", o.OrderID, depotID, domain.ErrNotFound)
	}
	cp := *o
	if cp.Status == "" {
		cp.Status = "pending"
	}
	list := append(r.orders[depotID], &cp)
	sort.SliceStable(list, func(i, j int) bool { return list[i].OrderID < list[j].OrderID })
	r.orders[depotID] = list
	return nil
}

func (r *MemoryOrderRepository) GetDepot(_ context.Context, depotID int64) (*domain.Depot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.depots[depotID]
	if !ok {
		return nil, fmt.Errorf("get depot %d: %w", depotID, domain.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryOrderRepository) ListOrders(ctx context.Context, depotID int64) ([]*domain.Order, error) {
	if _, err := r.GetDepot(ctx, depotID); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Order, 0, len(r.orders[depotID]))
	for _, o := range r.orders[depotID] {
		if o.Status == "pending" {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryOrderRepository) GetOrders(ctx context.Context, depotID int64, orderIDs []int64) ([]*domain.Order, error) {
	if _, err := r.GetDepot(ctx, depotID); err != nil {
		return nil, err
	}
	r.mu.RLock()
	found := make([]*domain.Order, 0, len(r.orders[depotID]))
	for _, o := range r.orders[depotID] {
		cp := *o
		found = append(found, &cp)
	}
	r.mu.RUnlock()
	return orderByIDs(depotID, found, orderIDs)
}

func (r *MemoryOrderRepository) Ping(context.Context) error { return nil }
