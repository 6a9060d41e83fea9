package cache

import (
	"context"
	"errors"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
)

// Tiered reads through caches in order and backfills faster tiers on a hit in a
// slower one. Writes go to every tier.
type Tiered struct {
	tiers []ports.MatrixCache
}

func NewTiered(tiers ...ports.MatrixCache) *Tiered {
	out := &Tiered{}
	for _, t := range tiers {
		if t != nil {
			out.tiers = append(out.tiers, t)
		}
	}
	return out
}

func (t *Tiered) Get(ctx context.Context, key ports.MatrixKey) (*domain.DistanceMatrix, error) {
	var errs []error
	for i, tier := range t.tiers {
		m, err := tier.Get(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if m == nil {
			continue
		}
		for j := 0; j < i; j++ {
			if err := t.tiers[j].Put(ctx, key, m); err != nil {
				obs.Ctx(ctx).Warn().Err(err).Int("tier", j).Msg("matrix cache backfill failed")
			}
		}
		return m, nil
	}
	if len(errs) == len(t.tiers) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

func (t *Tiered) Put(ctx context.Context, key ports.MatrixKey, m *domain.DistanceMatrix) error {
	var errs []error
	for _, tier := range t.tiers {
		if err := tier.Put(ctx, key, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
