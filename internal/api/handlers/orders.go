package handlers

import (
	"net/http"
	"route-optimization-service/internal/api/dto"
	"route-optimization-service/internal/ports"
	"strconv"
)

// OrderHandler exposes the read-only order listing of a depot.
type OrderHandler struct {
	Repo ports.OrderRepository
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	depotID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || depotID <= 0 {
		writeError(w, r, http.StatusBadRequest, "depot id must be a positive integer")
		return
	}

	orders, err := h.Repo.ListOrders(r.Context(), depotID)
	if err != nil {
		writeServiceError(w, r, "list orders", err)
		return
	}

	res := dto.ListOrdersResponse{
		DepotID: depotID,
		Orders:  make([]dto.OrderResponse, 0, len(orders)),
	}
	for _, o := range orders {
		res.Orders = append(res.Orders, dto.OrderResponse{
			OrderID:      o.OrderID,
			OrderNumber:  o.OrderNumber,
			CustomerName: o.CustomerName,
			Lat:          o.Location.Lat,
			Lon:          o.Location.Lon,
			WeightKg:     o.WeightKg,
			VolumeM3:     o.VolumeM3,
			Status:       o.Status,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}
