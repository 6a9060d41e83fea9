package services

import (
	"route-optimization-service/internal/domain"
	"time"
)

type ReconcileInput struct {
	Orders []*domain.Order
	// Matrix node i+1 is Orders[i].
	Matrix     *domain.DistanceMatrix
	Clustering *Clustering
	Solution   Solution
	StartAt    time.Time
	// ServiceTime is spent at every stop before leaving for the next one.
	ServiceTime time.Duration
}

// Reconcile maps a solver solution back to orders and classifies the outcome.
func Reconcile(in ReconcileInput) *domain.RouteSet {
	rs := domain.EmptyRouteSet(0, "")
	if len(in.Orders) == 0 {
		return rs
	}

	labels := make([]domain.ClusterLabel, len(in.Orders))
	if in.Clustering != nil && len(in.Clustering.Labels) == len(in.Orders) {
		copy(labels, in.Clustering.Labels)
		rs.UsedClustering = true
		rs.NumClusters = in.Clustering.NumClusters()
		rs.OutlierCount = in.Clustering.NoiseCount
		rs.Metadata.TotalGroups = rs.NumClusters + rs.OutlierCount
		for i, o := range in.Orders {
			id := labels[i].Int()
			rs.Metadata.ClusterAssignments[o.OrderID] = id
			rs.Metadata.OriginalClusterAssignments[o.OrderID] = in.Clustering.OriginalLabels[i].Int()
			rs.Metadata.Clusters[id] = append(rs.Metadata.Clusters[id], o.OrderID)
		}
		rs.Metadata.ClusterDetails = in.Clustering.Clusters(in.Orders)
	}

	service := in.ServiceTime.Seconds()
	routed, pure := 0, 0
	for v, nodes := range in.Solution.Routes {
		if len(nodes) == 0 {
			continue
		}

		route := domain.Route{VehicleID: v, Stops: make([]domain.Stop, 0, len(nodes))}
		cumDist, cumDur, prev := 0.0, 0.0, 0
		for k, node := range nodes {
			cumDist += in.Matrix.Distances[prev][node]
			cumDur += in.Matrix.Durations[prev][node]

			o := in.Orders[node-1]
			route.Stops = append(route.Stops, domain.Stop{
				OrderID:                   o.OrderID,
				OrderNumber:               o.OrderNumber,
				Location:                  o.Location,
				SequenceIndex:             k,
				CumulativeDistanceKm:      cumDist / 1000,
				CumulativeDurationMinutes: cumDur / 60,
				ETA:                       in.StartAt.Add(time.Duration(cumDur * float64(time.Second))),
			})
			cumDur += service
			prev = node
		}
		cumDist += in.Matrix.Distances[prev][0]
		cumDur += in.Matrix.Durations[prev][0]

		route.TotalDistanceKm = cumDist / 1000
		route.EstimatedDurationMinutes = cumDur / 60
		route.ClusterID = majorityCluster(nodes, labels)
		if route.ClusterID != nil {
			for _, node := range nodes {
				if id, ok := labels[node-1].ID(); ok && id == *route.ClusterID {
					pure++
				}
			}
		}

		rs.Routes = append(rs.Routes, route)
		rs.TotalDistanceKm += route.TotalDistanceKm
		rs.TotalDurationMinutes += route.EstimatedDurationMinutes
		routed += len(nodes)
	}

	for _, node := range in.Solution.Unassigned {
		rs.UnassignedOrders = append(rs.UnassignedOrders, in.Orders[node-1].OrderID)
	}

	rs.TotalOrders = routed
	if rs.UsedClustering && routed > 0 {
		rs.Metadata.ClusterPurity = float64(pure) / float64(routed)
	}
	rs.SolverStatus = classify(len(in.Orders), len(rs.Routes), len(rs.UnassignedOrders))
	rs.Success = len(rs.Routes) > 0 &&
		(rs.SolverStatus == domain.StatusSuccess || rs.SolverStatus == domain.StatusPartialSuccess)
	rs.Metadata.NumVehiclesUsed = len(rs.Routes)
	rs.Metadata.SolverIterations = in.Solution.Iterations
	rs.Metadata.SolverTimedOut = in.Solution.TimedOut
	rs.Metadata.MatrixSource = in.Matrix.Source
	return rs
}

func classify(orders, routes, unassigned int) domain.SolverStatus {
	switch {
	case orders == 0:
		return domain.StatusNoOrders
	case routes == 0:
		return domain.StatusFailed
	case unassigned > 0:
		return domain.StatusPartialSuccess
	default:
		return domain.StatusSuccess
	}
}

// majorityCluster returns the most frequent cluster among the stops, lowest id on ties.
func majorityCluster(nodes []int, labels []domain.ClusterLabel) *int {
	counts := map[int]int{}
	for _, node := range nodes {
		if id, ok := labels[node-1].ID(); ok {
			counts[id]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	best, bestN := -1, 0
	for id, c := range counts {
		if c > bestN || (c == bestN && id < best) {
			best, bestN = id, c
		}
	}
	return &best
}
