package cache

import (
	"encoding/json"
	"fmt"
	"route-optimization-service/internal/domain"
)

type matrixRecord struct {
	Nodes     []domain.Coordinates `json:"nodes"`
	Durations [][]float64          `json:"durations"`
	Distances [][]float64          `json:"distances"`
	Source    domain.MatrixSource  `json:"source"`
}

func encodeMatrix(m *domain.DistanceMatrix) ([]byte, error) {
	b, err := json.Marshal(matrixRecord{
		Nodes:     m.Nodes,
		Durations: m.Durations,
		Distances: m.Distances,
		Source:    m.Source,
	})
	if err != nil {
		return nil, fmt.Errorf("encode matrix: %w", err)
	}
	return b, nil
}

func decodeMatrix(b []byte) (*domain.DistanceMatrix, error) {
	var rec matrixRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode matrix: %w", err)
	}
	m := &domain.DistanceMatrix{
		Nodes:     rec.Nodes,
		Durations: rec.Durations,
		Distances: rec.Distances,
		Source:    rec.Source,
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("decode matrix: %w", err)
	}
	return m, nil
}
