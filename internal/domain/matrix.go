package domain

import (
	"fmt"
	"math"
)

// MatrixSource records where the cells of a DistanceMatrix came from.
type MatrixSource string

const (
	SourceProvider MatrixSource = "provider"
	SourceFallback MatrixSource = "fallback"
	SourceMixed    MatrixSource = "mixed"
)

// DistanceMatrix holds pairwise travel cost over Nodes.
// Index 0 is the depot and indices 1..N are the orders in input order.
// Durations are seconds and Distances are meters.
type DistanceMatrix struct {
	Nodes     []Coordinates
	Durations [][]float64
	Distances [][]float64
	Source    MatrixSource
}

// NewDistanceMatrix allocates zeroed n x n tables.
func NewDistanceMatrix(nodes []Coordinates) *DistanceMatrix {
	n := len(nodes)
	m := &DistanceMatrix{
		Nodes:     append([]Coordinates(nil), nodes...),
		Durations: make([][]float64, n),
		Distances: make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		m.Durations[i] = make([]float64, n)
		m.Distances[i] = make([]float64, n)
	}
	return m
}

func (m *DistanceMatrix) Size() int { return len(m.Nodes) }

// Validate checks shape and that every cell is finite and non-negative.
func (m *DistanceMatrix) Validate() error {
	n := len(m.Nodes)
	if len(m.Durations) != n || len(m.Distances) != n {
		return fmt.Errorf("matrix: expected %d rows, got durations=%d distances=%d", n, len(m.Durations), len(m.Distances))
	}
	for i := 0; i < n; i++ {
		if len(m.Durations[i]) != n || len(m.Distances[i]) != n {
			return fmt.Errorf("matrix: row %d has wrong length", i)
		}
		for j := 0; j < n; j++ {
			if !validCell(m.Durations[i][j]) || !validCell(m.Distances[i][j]) {
				return fmt.Errorf("matrix: invalid cell (%d,%d)", i, j)
			}
		}
	}
	return nil
}

func validCell(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
