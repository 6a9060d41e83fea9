package ports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"route-optimization-service/internal/domain"
	"strconv"
)

// MatrixKey identifies a cached matrix. The fingerprint covers the exact node
// ordering, so two node lists only share an entry when they are identical.
type MatrixKey struct {
	DepotID     int64
	Day         string
	Fingerprint string
}

func (k MatrixKey) String() string {
	return fmt.Sprintf("matrix:%d:%s:%s", k.DepotID, k.Day, k.Fingerprint)
}

// NewMatrixKey builds the cache key for nodes. day may be empty.
func NewMatrixKey(depotID int64, day string, nodes []domain.Coordinates) MatrixKey {
	return MatrixKey{DepotID: depotID, Day: day, Fingerprint: Fingerprint(nodes)}
}

// Fingerprint hashes the ordered node coordinates.
func Fingerprint(nodes []domain.Coordinates) string {
	h := sha256.New()
	buf := make([]byte, 0, 64)
	for _, n := range nodes {
		buf = buf[:0]
		buf = strconv.AppendFloat(buf, n.Lat, 'g', -1, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, n.Lon, 'g', -1, 64)
		buf = append(buf, ';')
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MatrixCache stores complete distance matrices.
// Get returns (nil, nil) on a miss.
type MatrixCache interface {
	Get(ctx context.Context, key MatrixKey) (*domain.DistanceMatrix, error)
	Put(ctx context.Context, key MatrixKey, m *domain.DistanceMatrix) error
}
