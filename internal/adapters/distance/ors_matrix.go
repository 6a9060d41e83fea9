package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
	"time"
)

type matrixRequest struct {
	Locations [][]float64 `json:"locations"`
	Metrics   []string    `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// ORSMatrixProvider implements TravelTimeProvider using the OpenRouteService
// matrix endpoint. It is safe for concurrent use.
type ORSMatrixProvider struct {
	client       *httpClient
	baseURL      string
	profile      string
	maxLocations int
}

type ORSOption func(*ORSMatrixProvider)

func WithORSBaseURL(u string) ORSOption { return func(o *ORSMatrixProvider) { o.baseURL = u } }

func NewORSMatrixProvider(apiKey string, maxLocations int, timeout time.Duration, rps float64, opts ...ORSOption) (*ORSMatrixProvider, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if maxLocations < 2 {
		maxLocations = 25
	}

	o := &ORSMatrixProvider{
		client:       newHTTPClient(timeout, rps, map[string]string{"Authorization": apiKey}),
		baseURL:      "https://api.openrouteservice.org",
		profile:      "driving-car",
		maxLocations: maxLocations,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *ORSMatrixProvider) Name() string { return "ors" }

func (o *ORSMatrixProvider) MaxLocations() int { return o.maxLocations }

// BatchMatrix retrieves the full distance and duration matrix for locations.
func (o *ORSMatrixProvider) BatchMatrix(
	ctx context.Context,
	locations []domain.Coordinates,
) (_ ports.MatrixResult, err error) {
	defer obs.Time(ctx, "ors.BatchMatrix")(&err)

	if len(locations) > o.maxLocations {
		return ports.MatrixResult{}, fmt.Errorf("ors matrix: %d locations exceeds limit %d", len(locations), o.maxLocations)
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)

	bodyObj := matrixRequest{
		Locations: make([][]float64, 0, len(locations)),
		Metrics:   []string{"distance", "duration"},
	}
	for _, c := range locations {
		bodyObj.Locations = append(bodyObj.Locations, c.CoordsToList())
	}

	payload, err := json.Marshal(bodyObj)
	if err != nil {
		return ports.MatrixResult{}, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := o.client.doWithRetry(ctx, func() (*http.Request, error) {
		return o.client.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return ports.MatrixResult{}, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return ports.MatrixResult{}, fmt.Errorf("decode matrix response: %w", err)
	}

	if len(mr.Distances) != len(locations) || len(mr.Durations) != len(locations) {
		return ports.MatrixResult{}, fmt.Errorf(
			"expected %d rows; got distances=%d durations=%d",
			len(locations), len(mr.Distances), len(mr.Durations),
		)
	}

	return ports.MatrixResult{Durations: mr.Durations, Distances: mr.Distances}, nil
}

// Ping issues a two-point matrix request.
func (o *ORSMatrixProvider) Ping(ctx context.Context) error {
	probe := []domain.Coordinates{{Lon: 8.681495, Lat: 49.41461}, {Lon: 8.687872, Lat: 49.420318}}
	_, err := o.BatchMatrix(ctx, probe)
	return err
}
