package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Setenv("RO_TEST_INT", "7")
	t.Setenv("RO_TEST_BAD", "x")
	t.Setenv("RO_TEST_DUR", "15")
	t.Setenv("RO_TEST_DUR2", "250ms")

	require.Equal(t, 7, GetInt("RO_TEST_INT", 1))
	require.Equal(t, 1, GetInt("RO_TEST_BAD", 1))
	require.Equal(t, 15*time.Second, GetDuration("RO_TEST_DUR", time.Second))
	require.Equal(t, 250*time.Millisecond, GetDuration("RO_TEST_DUR2", time.Second))
	require.Equal(t, "fb", Get("RO_TEST_MISSING", "fb"))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MATRIX_PROVIDER", "none")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 25, cfg.ProviderMaxLocations)
	require.Equal(t, 150.0, cfg.Optimizer.MaxDistanceKm)
	require.Equal(t, 40.0, cfg.Optimizer.AverageSpeedKmh)
}

func TestLoadRequiresProviderKey(t *testing.T) {
	t.Setenv("MATRIX_PROVIDER", "mapbox")
	t.Setenv("MAPBOX_ACCESS_TOKEN", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadOptimizerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optimizer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vehicle_capacity: 20\ncluster_penalty_weight: 800\n"), 0o600))

	opt, err := LoadOptimizerFile(path, DefaultOptimizer())
	require.NoError(t, err)
	require.Equal(t, 20, opt.VehicleCapacity)
	require.Equal(t, 800.0, opt.ClusterPenaltyWeight)
	// untouched keys keep their defaults
	require.Equal(t, 5, opt.MinClusterSize)
}
