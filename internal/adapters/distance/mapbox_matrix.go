package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
	"strconv"
	"strings"
	"time"
)

// mapboxMaxCoordinates is the Directions Matrix API limit for driving profiles.
const mapboxMaxCoordinates = 25

type mapboxMatrixResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

// MapboxMatrixProvider implements TravelTimeProvider with the Mapbox Directions Matrix API.
type MapboxMatrixProvider struct {
	client       *httpClient
	token        string
	baseURL      string
	profile      string
	maxLocations int
}

type MapboxOption func(*MapboxMatrixProvider)

func WithMapboxBaseURL(u string) MapboxOption {
	return func(m *MapboxMatrixProvider) { m.baseURL = strings.TrimRight(u, "/") }
}

func WithMapboxProfile(p string) MapboxOption {
	return func(m *MapboxMatrixProvider) { m.profile = p }
}

func NewMapboxMatrixProvider(token string, maxLocations int, timeout time.Duration, rps float64, opts ...MapboxOption) (*MapboxMatrixProvider, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("mapbox access token is empty")
	}
	if maxLocations < 2 || maxLocations > mapboxMaxCoordinates {
		maxLocations = mapboxMaxCoordinates
	}

	m := &MapboxMatrixProvider{
		client:       newHTTPClient(timeout, rps, nil),
		token:        token,
		baseURL:      "https://api.mapbox.com/directions-matrix/v1/mapbox",
		profile:      "driving",
		maxLocations: maxLocations,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *MapboxMatrixProvider) Name() string { return "mapbox" }

func (m *MapboxMatrixProvider) MaxLocations() int { return m.maxLocations }

func (m *MapboxMatrixProvider) BatchMatrix(
	ctx context.Context,
	locations []domain.Coordinates,
) (_ ports.MatrixResult, err error) {
	defer obs.Time(ctx, "mapbox.BatchMatrix")(&err)

	if len(locations) < 2 {
		return ports.MatrixResult{}, errors.New("mapbox matrix: at least 2 locations required")
	}
	if len(locations) > m.maxLocations {
		return ports.MatrixResult{}, fmt.Errorf("mapbox matrix: %d locations exceeds limit %d", len(locations), m.maxLocations)
	}

	coords := make([]string, len(locations))
	for i, c := range locations {
		coords[i] = strconv.FormatFloat(c.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lat, 'f', 6, 64)
	}

	q := url.Values{}
	q.Set("annotations", "duration,distance")
	q.Set("access_token", m.token)
	endpoint := fmt.Sprintf("%s/%s/%s?%s", m.baseURL, m.profile, strings.Join(coords, ";"), q.Encode())

	resp, err := m.client.doWithRetry(ctx, func() (*http.Request, error) {
		return m.client.newRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		// the token is part of the URL; keep it out of logs
		return ports.MatrixResult{}, fmt.Errorf("mapbox matrix request failed: %w", redact(err, m.token))
	}
	defer resp.Body.Close()

	var mr mapboxMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return ports.MatrixResult{}, fmt.Errorf("decode mapbox matrix response: %w", err)
	}
	if mr.Code != "Ok" {
		return ports.MatrixResult{}, fmt.Errorf("mapbox matrix: code=%q message=%q", mr.Code, mr.Message)
	}
	if len(mr.Durations) != len(locations) || len(mr.Distances) != len(locations) {
		return ports.MatrixResult{}, fmt.Errorf(
			"expected %d rows; got durations=%d distances=%d",
			len(locations), len(mr.Durations), len(mr.Distances),
		)
	}

	return ports.MatrixResult{Durations: mr.Durations, Distances: mr.Distances}, nil
}

func (m *MapboxMatrixProvider) Ping(ctx context.Context) error {
	probe := []domain.Coordinates{{Lon: 77.2090, Lat: 28.6139}, {Lon: 77.2167, Lat: 28.6448}}
	_, err := m.BatchMatrix(ctx, probe)
	return err
}

func redact(err error, secret string) error {
	if secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), secret, "***"))
}
