package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func GetFloat(key string, fallback float64) float64 {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func GetBool(key string, fallback bool) bool {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// GetDuration accepts Go duration strings ("10s") or a plain number of seconds.
func GetDuration(key string, fallback time.Duration) time.Duration {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

// Optimizer holds the defaults applied to requests that leave a field unset.
type Optimizer struct {
	UseClustering          bool    `yaml:"use_clustering"`
	MinClusterSize         int     `yaml:"min_cluster_size"`
	ClusterEpsilonKm       float64 `yaml:"cluster_selection_epsilon_km"`
	MaxDistanceKm          float64 `yaml:"max_distance_km"`
	VehicleCapacity        int     `yaml:"vehicle_capacity"`
	SolverTimeLimitSeconds int     `yaml:"solver_time_limit_seconds"`
	ClusterPenaltyWeight   float64 `yaml:"cluster_penalty_weight"`
	ServiceTimeMinutes     float64 `yaml:"service_time_minutes"`
	AverageSpeedKmh        float64 `yaml:"average_speed_kmh"`
}

func DefaultOptimizer() Optimizer {
	return Optimizer{
		UseClustering:          true,
		MinClusterSize:         5,
		ClusterEpsilonKm:       0.5,
		MaxDistanceKm:          150,
		VehicleCapacity:        50,
		SolverTimeLimitSeconds: 30,
		ClusterPenaltyWeight:   500,
		ServiceTimeMinutes:     5,
		AverageSpeedKmh:        40,
	}
}

// Config is the process configuration assembled from the environment.
type Config struct {
	Port        string
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	RedisURL    string
	SeedPath    string

	MatrixProvider       string
	MapboxToken          string
	ORSAPIKey            string
	ProviderMaxLocations int
	ProviderTimeout      time.Duration
	ProviderRPS          float64
	ProviderConcurrency  int
	MatrixCacheTTL       time.Duration
	BatchConcurrency     int

	Optimizer Optimizer
}

// Load reads the environment and, when OPTIMIZER_CONFIG_PATH is set, a YAML file of
// optimizer defaults. Environment values override the file.
func Load() (Config, error) {
	cfg := Config{
		Port:                 Get("PORT", "8080"),
		LogLevel:             Get("LOG_LEVEL", "info"),
		LogFormat:            Get("LOG_FORMAT", "json"),
		DatabaseURL:          Get("DATABASE_URL", ""),
		RedisURL:             Get("REDIS_URL", ""),
		SeedPath:             Get("SEED_PATH", "data/seeds/depots.json"),
		MatrixProvider:       strings.ToLower(Get("MATRIX_PROVIDER", "none")),
		MapboxToken:          Get("MAPBOX_ACCESS_TOKEN", ""),
		ORSAPIKey:            Get("ORS_API_KEY", ""),
		ProviderMaxLocations: GetInt("PROVIDER_MAX_LOCATIONS", 25),
		ProviderTimeout:      GetDuration("PROVIDER_TIMEOUT", 10*time.Second),
		ProviderRPS:          GetFloat("PROVIDER_RPS", 5),
		ProviderConcurrency:  GetInt("PROVIDER_CONCURRENCY", 4),
		MatrixCacheTTL:       GetDuration("MATRIX_CACHE_TTL", 24*time.Hour),
		BatchConcurrency:     GetInt("BATCH_CONCURRENCY", 4),
		Optimizer:            DefaultOptimizer(),
	}

	if path := Get("OPTIMIZER_CONFIG_PATH", ""); path != "" {
		opt, err := LoadOptimizerFile(path, cfg.Optimizer)
		if err != nil {
			return Config{}, err
		}
		cfg.Optimizer = opt
	}

	o := &cfg.Optimizer
	o.UseClustering = GetBool("USE_CLUSTERING", o.UseClustering)
	o.MinClusterSize = GetInt("MIN_CLUSTER_SIZE", o.MinClusterSize)
	o.MaxDistanceKm = GetFloat("MAX_DISTANCE_KM", o.MaxDistanceKm)
	o.VehicleCapacity = GetInt("VEHICLE_CAPACITY", o.VehicleCapacity)
	o.SolverTimeLimitSeconds = GetInt("SOLVER_TIME_LIMIT_SECONDS", o.SolverTimeLimitSeconds)
	o.ClusterPenaltyWeight = GetFloat("CLUSTER_PENALTY_WEIGHT", o.ClusterPenaltyWeight)
	o.AverageSpeedKmh = GetFloat("AVERAGE_SPEED_KMH", o.AverageSpeedKmh)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOptimizerFile overlays the YAML file at path onto base.
func LoadOptimizerFile(path string, base Optimizer) (Optimizer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Optimizer{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	out := base
	if err := yaml.Unmarshal(b, &out); err != nil {
		return Optimizer{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return out, nil
}

func (c Config) Validate() error {
	switch c.MatrixProvider {
	case "none", "":
	case "mapbox":
		if c.MapboxToken == "" {
			return fmt.Errorf("config: MAPBOX_ACCESS_TOKEN is required for MATRIX_PROVIDER=mapbox")
		}
	case "ors":
		if c.ORSAPIKey == "" {
			return fmt.Errorf("config: ORS_API_KEY is required for MATRIX_PROVIDER=ors")
		}
	default:
		return fmt.Errorf("config: unknown MATRIX_PROVIDER %q", c.MatrixProvider)
	}
	if c.ProviderMaxLocations < 2 {
		return fmt.Errorf("config: PROVIDER_MAX_LOCATIONS must be at least 2")
	}
	o := c.Optimizer
	if o.MinClusterSize < 2 {
		return fmt.Errorf("config: min_cluster_size must be at least 2")
	}
	if o.MaxDistanceKm <= 0 || o.VehicleCapacity <= 0 || o.AverageSpeedKmh <= 0 {
		return fmt.Errorf("config: max_distance_km, vehicle_capacity and average_speed_kmh must be positive")
	}
	return nil
}
