package dto

type OrderResponse struct {
	OrderID      int64    `json:"order_id"`
	OrderNumber  string   `json:"order_number"`
	CustomerName string   `json:"customer_name"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	WeightKg     *float64 `json:"weight_kg"`
	VolumeM3     *float64 `json:"volume_m3"`
	Status       string   `json:"status"`
}

type ListOrdersResponse struct {
	DepotID int64           `json:"depot_id"`
	Orders  []OrderResponse `json:"orders"`
}

type ConnectionResponse struct {
	Status   string            `json:"status"`
	Provider string            `json:"provider"`
	Checks   map[string]string `json:"checks"`
}
