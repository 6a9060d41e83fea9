package dto

import "time"

type OptimizeConfig struct {
	UseClustering          *bool    `json:"use_clustering"`
	MinClusterSize         *int     `json:"min_cluster_size"`
	MaxDistanceKm          *float64 `json:"max_distance_km"`
	VehicleCapacity        *int     `json:"vehicle_capacity"`
	SolverTimeLimitSeconds *int     `json:"solver_time_limit_seconds"`
	ClusterPenaltyWeight   *float64 `json:"cluster_penalty_weight"`
	NumVehicles            *int     `json:"num_vehicles"`
	WeightCapacityKg       *float64 `json:"weight_capacity_kg"`
	ExpandForCapacity      bool     `json:"expand_for_capacity"`
}

// DepotInput lets a caller optimize against a depot that is not in the read model.
type DepotInput struct {
	DepotID           int64   `json:"depot_id"`
	Name              string  `json:"name"`
	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	AvailableVehicles int     `json:"available_vehicles"`
	VehicleCapacity   int     `json:"vehicle_capacity"`
}

type OrderInput struct {
	OrderID      int64    `json:"order_id"`
	OrderNumber  string   `json:"order_number"`
	CustomerName string   `json:"customer_name"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	WeightKg     *float64 `json:"weight_kg"`
	VolumeM3     *float64 `json:"volume_m3"`
}

type OptimizeRequest struct {
	DepotID  int64          `json:"depot_id"`
	Depot    *DepotInput    `json:"depot"`
	OrderIDs []int64        `json:"order_ids"`
	Orders   []OrderInput   `json:"orders"`
	StartAt  *time.Time     `json:"start_at"`
	Config   OptimizeConfig `json:"config"`
}

type StopResponse struct {
	OrderID                   int64     `json:"order_id"`
	OrderNumber               string    `json:"order_number,omitempty"`
	Lat                       float64   `json:"lat"`
	Lon                       float64   `json:"lon"`
	SequenceIndex             int       `json:"sequence_index"`
	CumulativeDistanceKm      float64   `json:"cumulative_distance_km"`
	CumulativeDurationMinutes float64   `json:"cumulative_duration_minutes"`
	ETA                       time.Time `json:"eta"`
}

type RouteResponse struct {
	VehicleID                int            `json:"vehicle_id"`
	Stops                    []StopResponse `json:"stops"`
	TotalDistanceKm          float64        `json:"total_distance_km"`
	EstimatedDurationMinutes float64        `json:"estimated_duration_minutes"`
	ClusterID                *int           `json:"cluster_id"`
}

type ClusterResponse struct {
	ClusterID   int     `json:"cluster_id"`
	OrderIDs    []int64 `json:"order_ids"`
	CentroidLat float64 `json:"centroid_lat"`
	CentroidLon float64 `json:"centroid_lon"`
	OutlierIDs  []int64 `json:"outlier_ids"`
}

type MetadataResponse struct {
	RunID                      string            `json:"run_id"`
	DepotID                    int64             `json:"depot_id"`
	ClusterAssignments         map[int64]int     `json:"cluster_assignments"`
	OriginalClusterAssignments map[int64]int     `json:"original_cluster_assignments"`
	Clusters                   map[int][]int64   `json:"clusters"`
	ClusterDetails             []ClusterResponse `json:"cluster_details"`
	TotalGroups                int               `json:"total_groups"`
	ClusterPurity              float64           `json:"cluster_purity"`
	NumVehiclesRequested       int               `json:"num_vehicles_requested"`
	NumVehiclesUsed            int               `json:"num_vehicles_used"`
	MatrixSource               string            `json:"matrix_source,omitempty"`
	SolverIterations           int               `json:"solver_iterations"`
	SolverTimedOut             bool              `json:"solver_timed_out"`
	Stages                     []string          `json:"stages"`
}

type OptimizeResponse struct {
	Success              bool             `json:"success"`
	SolverStatus         string           `json:"solver_status"`
	TotalOrders          int              `json:"total_orders"`
	TotalDistanceKm      float64          `json:"total_distance_km"`
	TotalDurationMinutes float64          `json:"total_duration_minutes"`
	Routes               []RouteResponse  `json:"routes"`
	UnassignedOrders     []int64          `json:"unassigned_orders"`
	UsedClustering       bool             `json:"used_clustering"`
	NumClusters          int              `json:"num_clusters"`
	OutlierCount         int              `json:"outlier_count"`
	Metadata             MetadataResponse `json:"metadata"`
}

type BatchRequest struct {
	Requests    []OptimizeRequest `json:"requests"`
	Concurrency int               `json:"concurrency"`
}

type BatchItemResponse struct {
	DepotID int64             `json:"depot_id"`
	Result  *OptimizeResponse `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type BatchResponse struct {
	Results []BatchItemResponse `json:"results"`
}
