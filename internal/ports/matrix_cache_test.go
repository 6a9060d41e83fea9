package ports

import (
	"route-optimization-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintUsesFullPrecision(t *testing.T) {
	a := []domain.Coordinates{{Lon: 77.2090, Lat: 28.6139}, {Lon: 77.21, Lat: 28.62}}
	b := []domain.Coordinates{{Lon: 77.2090, Lat: 28.6139}, {Lon: 77.21 + 3e-9, Lat: 28.62}}

	require.NotEqual(t, Fingerprint(a), Fingerprint(b))
	require.Equal(t, Fingerprint(a), Fingerprint(append([]domain.Coordinates(nil), a...)))
}

func TestFingerprintDependsOnOrder(t *testing.T) {
	a := []domain.Coordinates{{Lon: 1, Lat: 2}, {Lon: 3, Lat: 4}}
	b := []domain.Coordinates{{Lon: 3, Lat: 4}, {Lon: 1, Lat: 2}}
	require.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestMatrixKeyString(t *testing.T) {
	k := NewMatrixKey(7, "2026-10-18", []domain.Coordinates{{Lon: 1, Lat: 2}})
	require.Equal(t, "matrix:7:2026-10-18:"+k.Fingerprint, k.String())
}
