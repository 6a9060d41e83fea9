package cache

import (
	"context"
	"errors"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/ports"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatrix() (*domain.DistanceMatrix, ports.MatrixKey) {
	nodes := []domain.Coordinates{
		{Lon: 77.2090, Lat: 28.6139},
		{Lon: 77.2167, Lat: 28.6448},
		{Lon: 77.2295, Lat: 28.6129},
	}
	m := domain.NewDistanceMatrix(nodes)
	for i := range nodes {
		for j := range nodes {
			if i != j {
				m.Durations[i][j] = float64(60 * (i + j))
				m.Distances[i][j] = float64(1000 * (i + j))
			}
		}
	}
	m.Source = domain.SourceProvider
	return m, ports.NewMatrixKey(7, "2026-10-18", nodes)
}

func TestMemoryMatrixCache_HitAndExpiry(t *testing.T) {
	ctx := context.Background()
	m, key := testMatrix()

	c := NewMemoryMatrixCache(time.Minute, 4)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Put(ctx, key, m))
	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Same(t, m, got)

	now = now.Add(2 * time.Minute)
	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryMatrixCache_EvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	m, _ := testMatrix()

	c := NewMemoryMatrixCache(time.Hour, 2)
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	step := 0
	c.now = func() time.Time { return base.Add(time.Duration(step) * time.Second) }

	for i := int64(1); i <= 3; i++ {
		step = int(i)
		require.NoError(t, c.Put(ctx, ports.MatrixKey{DepotID: i, Fingerprint: "x"}, m))
	}

	assert.Equal(t, 2, c.Len())
	got, err := c.Get(ctx, ports.MatrixKey{DepotID: 1, Fingerprint: "x"})
	require.NoError(t, err)
	assert.Nil(t, got, "oldest entry should be evicted")
}

func TestRedisMatrixCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m, key := testMatrix()
	c := NewRedisMatrixCache(client, time.Hour)

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Put(ctx, key, m))
	assert.True(t, mr.Exists("routeopt:"+key.String()))

	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.Nodes, got.Nodes)
	assert.Equal(t, m.Durations, got.Durations)
	assert.Equal(t, m.Distances, got.Distances)
	assert.Equal(t, domain.SourceProvider, got.Source)

	mr.FastForward(2 * time.Hour)
	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisMatrixCache_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, key := testMatrix()
	require.NoError(t, mr.Set("routeopt:"+key.String(), "{not json"))

	_, err := NewRedisMatrixCache(client, time.Hour).Get(ctx, key)
	require.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), "://bad")
	require.Error(t, err)
}

type failingCache struct{}

func (failingCache) Get(context.Context, ports.MatrixKey) (*domain.DistanceMatrix, error) {
	return nil, errors.New("down")
}

func (failingCache) Put(context.Context, ports.MatrixKey, *domain.DistanceMatrix) error {
	return errors.New("down")
}

func TestTiered_BackfillsFasterTiers(t *testing.T) {
	ctx := context.Background()
	m, key := testMatrix()

	fast := NewMemoryMatrixCache(time.Hour, 8)
	slow := NewMemoryMatrixCache(time.Hour, 8)
	require.NoError(t, slow.Put(ctx, key, m))

	tiered := NewTiered(fast, nil, slow)
	got, err := tiered.Get(ctx, key)
	require.NoError(t, err)
	assert.Same(t, m, got)

	backfilled, err := fast.Get(ctx, key)
	require.NoError(t, err)
	assert.Same(t, m, backfilled)
}

func TestTiered_SkipsFailingTier(t *testing.T) {
	ctx := context.Background()
	m, key := testMatrix()

	mem := NewMemoryMatrixCache(time.Hour, 8)
	tiered := NewTiered(failingCache{}, mem)

	err := tiered.Put(ctx, key, m)
	require.Error(t, err)

	got, err := tiered.Get(ctx, key)
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = NewTiered(failingCache{}).Get(ctx, key)
	require.Error(t, err)
}
