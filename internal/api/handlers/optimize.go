package handlers

import (
	"context"
	"fmt"
	"net/http"
	"route-optimization-service/internal/api/dto"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/services"
	"time"
)

// RouteOptimizer is the service surface the optimization endpoints depend on.
type RouteOptimizer interface {
	Optimize(ctx context.Context, req services.OptimizeRequest) (*domain.RouteSet, error)
	OptimizeBatch(ctx context.Context, reqs []services.OptimizeRequest, limit int) []services.BatchResult
}

type OptimizeHandler struct {
	Optimizer RouteOptimizer
	// MaxBatch bounds the number of depots in one batch request.
	MaxBatch int
	// Concurrency is the default batch fan-out when the request does not set one.
	Concurrency int
}

// Optimize runs the route optimization pipeline for one depot.
// Infeasible or degraded results are still 200; callers branch on solver_status.
func (h *OptimizeHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.OptimizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	svcReq, err := toServiceRequest(req)
	if err != nil {
		writeServiceError(w, r, "optimize", err)
		return
	}

	rs, err := h.Optimizer.Optimize(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, r, "optimize", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toResponse(rs))
}

// Batch optimizes several depots concurrently. Per-depot failures are reported
// inline so one bad depot does not fail the others.
func (h *OptimizeHandler) Batch(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.BatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	maxBatch := h.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 20
	}
	if len(req.Requests) == 0 || len(req.Requests) > maxBatch {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("requests must contain between 1 and %d items", maxBatch))
		return
	}

	limit := req.Concurrency
	if limit == 0 {
		limit = h.Concurrency
	}
	if limit < 1 || limit > maxBatch {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("concurrency must be between 1 and %d", maxBatch))
		return
	}

	res := dto.BatchResponse{Results: make([]dto.BatchItemResponse, len(req.Requests))}
	svcReqs := make([]services.OptimizeRequest, 0, len(req.Requests))
	index := make([]int, 0, len(req.Requests))
	for i, item := range req.Requests {
		res.Results[i].DepotID = item.DepotID
		svcReq, err := toServiceRequest(item)
		if err != nil {
			_, msg := errorStatus(err)
			res.Results[i].Error = msg
			continue
		}
		svcReqs = append(svcReqs, svcReq)
		index = append(index, i)
	}

	for _, br := range h.Optimizer.OptimizeBatch(r.Context(), svcReqs, limit) {
		i := index[br.Index]
		if br.Err != nil {
			status, msg := errorStatus(br.Err)
			if status == http.StatusInternalServerError {
				obs.Ctx(r.Context()).Error().Err(br.Err).Int64("depot_id", br.DepotID).Msg("batch item failed")
			}
			res.Results[i].Error = msg
			continue
		}
		out := toResponse(br.RouteSet)
		res.Results[i].Result = &out
	}

	writeJSON(w, r, http.StatusOK, res)
}

func toServiceRequest(req dto.OptimizeRequest) (services.OptimizeRequest, error) {
	out := services.OptimizeRequest{
		DepotID:  req.DepotID,
		OrderIDs: req.OrderIDs,
		Config: services.OptimizeConfig{
			UseClustering:          req.Config.UseClustering,
			MinClusterSize:         req.Config.MinClusterSize,
			MaxDistanceKm:          req.Config.MaxDistanceKm,
			VehicleCapacity:        req.Config.VehicleCapacity,
			SolverTimeLimitSeconds: req.Config.SolverTimeLimitSeconds,
			ClusterPenaltyWeight:   req.Config.ClusterPenaltyWeight,
			NumVehicles:            req.Config.NumVehicles,
			WeightCapacityKg:       req.Config.WeightCapacityKg,
			ExpandForCapacity:      req.Config.ExpandForCapacity,
		},
	}
	if req.StartAt != nil {
		out.StartAt = *req.StartAt
	}

	if req.Depot != nil {
		id := req.Depot.DepotID
		if id == 0 {
			id = req.DepotID
		}
		out.DepotID = id
		out.Depot = &domain.Depot{
			DepotID:           id,
			Name:              req.Depot.Name,
			Location:          domain.Coordinates{Lon: req.Depot.Lon, Lat: req.Depot.Lat},
			AvailableVehicles: req.Depot.AvailableVehicles,
			VehicleCapacity:   req.Depot.VehicleCapacity,
		}
	} else if req.DepotID <= 0 {
		return out, domain.NewValidationError("depot_id", "must be a positive integer")
	}

	if req.Orders != nil {
		if len(req.OrderIDs) > 0 {
			return out, domain.NewValidationError("orders", "set either orders or order_ids, not both")
		}
		out.Orders = make([]*domain.Order, 0, len(req.Orders))
		for _, o := range req.Orders {
			out.Orders = append(out.Orders, &domain.Order{
				OrderID:      o.OrderID,
				OrderNumber:  o.OrderNumber,
				CustomerName: o.CustomerName,
				Location:     domain.Coordinates{Lon: o.Lon, Lat: o.Lat},
				WeightKg:     o.WeightKg,
				VolumeM3:     o.VolumeM3,
				Status:       "pending",
			})
		}
	}

	return out, nil
}

func toResponse(rs *domain.RouteSet) dto.OptimizeResponse {
	res := dto.OptimizeResponse{
		Success:              rs.Success,
		SolverStatus:         string(rs.SolverStatus),
		TotalOrders:          rs.TotalOrders,
		TotalDistanceKm:      rs.TotalDistanceKm,
		TotalDurationMinutes: rs.TotalDurationMinutes,
		Routes:               make([]dto.RouteResponse, 0, len(rs.Routes)),
		UnassignedOrders:     rs.UnassignedOrders,
		UsedClustering:       rs.UsedClustering,
		NumClusters:          rs.NumClusters,
		OutlierCount:         rs.OutlierCount,
	}
	if res.UnassignedOrders == nil {
		res.UnassignedOrders = []int64{}
	}

	for _, route := range rs.Routes {
		stops := make([]dto.StopResponse, 0, len(route.Stops))
		for _, s := range route.Stops {
			stops = append(stops, dto.StopResponse{
				OrderID:                   s.OrderID,
				OrderNumber:               s.OrderNumber,
				Lat:                       s.Location.Lat,
				Lon:                       s.Location.Lon,
				SequenceIndex:             s.SequenceIndex,
				CumulativeDistanceKm:      s.CumulativeDistanceKm,
				CumulativeDurationMinutes: s.CumulativeDurationMinutes,
				ETA:                       s.ETA.UTC().Truncate(time.Second),
			})
		}
		res.Routes = append(res.Routes, dto.RouteResponse{
			VehicleID:                route.VehicleID,
			Stops:                    stops,
			TotalDistanceKm:          route.TotalDistanceKm,
			EstimatedDurationMinutes: route.EstimatedDurationMinutes,
			ClusterID:                route.ClusterID,
		})
	}

	md := rs.Metadata
	res.Metadata = dto.MetadataResponse{
		RunID:                      md.RunID,
		DepotID:                    md.DepotID,
		ClusterAssignments:         md.ClusterAssignments,
		OriginalClusterAssignments: md.OriginalClusterAssignments,
		Clusters:                   md.Clusters,
		ClusterDetails:             make([]dto.ClusterResponse, 0, len(md.ClusterDetails)),
		TotalGroups:                md.TotalGroups,
		ClusterPurity:              md.ClusterPurity,
		NumVehiclesRequested:       md.NumVehiclesRequested,
		NumVehiclesUsed:            md.NumVehiclesUsed,
		MatrixSource:               string(md.MatrixSource),
		SolverIterations:           md.SolverIterations,
		SolverTimedOut:             md.SolverTimedOut,
		Stages:                     make([]string, 0, len(md.Stages)),
	}
	for _, s := range md.Stages {
		res.Metadata.Stages = append(res.Metadata.Stages, string(s))
	}
	for _, c := range md.ClusterDetails {
		outliers := c.OutlierIDs
		if outliers == nil {
			outliers = []int64{}
		}
		res.Metadata.ClusterDetails = append(res.Metadata.ClusterDetails, dto.ClusterResponse{
			ClusterID:   c.ID,
			OrderIDs:    c.OrderIDs,
			CentroidLat: c.Centroid.Lat,
			CentroidLon: c.Centroid.Lon,
			OutlierIDs:  outliers,
		})
	}
	return res
}
