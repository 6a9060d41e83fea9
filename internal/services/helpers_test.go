package services

import (
	"math"
	"route-optimization-service/internal/domain"
)

var testDepot = domain.Coordinates{Lon: 77.2090, Lat: 28.6139}

// offsetKm moves c by dx km east and dy km north.
func offsetKm(c domain.Coordinates, dxKm, dyKm float64) domain.Coordinates {
	lat := c.Lat + dyKm/111.195
	lon := c.Lon + dxKm/(111.195*math.Cos(c.Lat*math.Pi/180))
	return domain.Coordinates{Lon: lon, Lat: lat}
}

// spiral places n points on a sunflower spiral of the given radius around center.
func spiral(center domain.Coordinates, n int, radiusKm float64) []domain.Coordinates {
	out := make([]domain.Coordinates, n)
	for i := 0; i < n; i++ {
		r := radiusKm * math.Sqrt((float64(i)+0.5)/float64(n))
		theta := float64(i) * 2.399963229728653
		out[i] = offsetKm(center, r*math.Cos(theta), r*math.Sin(theta))
	}
	return out
}

func ordersAt(points []domain.Coordinates, firstID int64) []*domain.Order {
	out := make([]*domain.Order, len(points))
	for i, p := range points {
		out[i] = &domain.Order{OrderID: firstID + int64(i), Location: p, Status: "pending"}
	}
	return out
}

// fallbackMatrix builds a haversine matrix over depot plus points.
func fallbackMatrix(depot domain.Coordinates, points []domain.Coordinates) *domain.DistanceMatrix {
	nodes := append([]domain.Coordinates{depot}, points...)
	m := domain.NewDistanceMatrix(nodes)
	fb := HaversineFallback{AverageSpeedKmh: 40}
	for i := range nodes {
		for j := range nodes {
			if i != j {
				m.Durations[i][j], m.Distances[i][j] = fb.Estimate(nodes[i], nodes[j])
			}
		}
	}
	m.Source = domain.SourceFallback
	return m
}

func ptr[T any](v T) *T { return &v }
