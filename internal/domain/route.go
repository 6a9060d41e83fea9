package domain

import "time"

// Represents a single stop in a delivery route.
// Cumulative metrics include travel from the depot and service time at earlier stops.
type Stop struct {
	OrderID                   int64
	OrderNumber               string
	Location                  Coordinates
	SequenceIndex             int
	CumulativeDistanceKm      float64
	CumulativeDurationMinutes float64
	ETA                       time.Time
}

// Represents the planned route for a single vehicle, depot to depot.
// ClusterID is the majority cluster of the stops; nil for a route without stops.
type Route struct {
	VehicleID                int
	Stops                    []Stop
	TotalDistanceKm          float64
	EstimatedDurationMinutes float64
	ClusterID                *int
}

// SolverStatus classifies the outcome of an optimization run.
type SolverStatus string

const (
	StatusSuccess        SolverStatus = "SUCCESS"
	StatusPartialSuccess SolverStatus = "PARTIAL_SUCCESS"
	StatusFailed         SolverStatus = "FAILED"
	StatusNoOrders       SolverStatus = "NO_ORDERS"
)

type RouteSetMetadata struct {
	RunID   string
	DepotID int64
	// ClusterAssignments maps order id to final cluster id.
	ClusterAssignments map[int64]int
	// OriginalClusterAssignments keeps pre-reassignment labels, -1 for noise.
	OriginalClusterAssignments map[int64]int
	Clusters                   map[int][]int64
	// ClusterDetails lists every cluster with its centroid, ordered by id.
	ClusterDetails []Cluster
	TotalGroups    int
	// ClusterPurity is the share of routed stops whose cluster matches their route's cluster.
	ClusterPurity        float64
	NumVehiclesRequested int
	NumVehiclesUsed      int
	MatrixSource         MatrixSource
	SolverIterations     int
	SolverTimedOut       bool
	Stages               []Stage
}

// RouteSet is the complete result of one optimization run.
type RouteSet struct {
	Success              bool
	SolverStatus         SolverStatus
	TotalOrders          int
	TotalDistanceKm      float64
	TotalDurationMinutes float64
	Routes               []Route
	UnassignedOrders     []int64
	UsedClustering       bool
	NumClusters          int
	OutlierCount         int
	Metadata             RouteSetMetadata
}

// EmptyRouteSet is the result for a run without orders.
func EmptyRouteSet(depotID int64, runID string) *RouteSet {
	return &RouteSet{
		Success:          false,
		SolverStatus:     StatusNoOrders,
		Routes:           []Route{},
		UnassignedOrders: []int64{},
		Metadata: RouteSetMetadata{
			RunID:                      runID,
			DepotID:                    depotID,
			ClusterAssignments:         map[int64]int{},
			OriginalClusterAssignments: map[int64]int{},
			Clusters:                   map[int][]int64{},
			ClusterDetails:             []Cluster{},
		},
	}
}
