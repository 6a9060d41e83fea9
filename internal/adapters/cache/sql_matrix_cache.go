package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
	"time"
)

// SQLMatrixCache is a Postgres-backed cache for complete distance matrices.
type SQLMatrixCache struct {
	DB  *sql.DB
	TTL time.Duration
}

func NewSQLMatrixCache(db *sql.DB, ttl time.Duration) *SQLMatrixCache {
	return &SQLMatrixCache{DB: db, TTL: ttl}
}

// Fetch the cached matrix for key, nil when absent or expired.
func (s *SQLMatrixCache) Get(ctx context.Context, key ports.MatrixKey) (_ *domain.DistanceMatrix, err error) {
	defer obs.Time(ctx, "matrix.cache.sql.Get")(&err)

	if s.DB == nil {
		return nil, errors.New("matrix cache: db is nil")
	}

	q := `
	SELECT payload, created_at
	FROM matrix_cache
	WHERE depot_id = $1
		AND day = $2
		AND fingerprint = $3;
	`

	var payload []byte
	var createdAt time.Time
	err = s.DB.QueryRowContext(ctx, q, key.DepotID, key.Day, key.Fingerprint).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get matrix cache: query matrix_cache table: %w", err)
	}

	if s.TTL > 0 && time.Since(createdAt) > s.TTL {
		return nil, nil
	}
	return decodeMatrix(payload)
}

// Store the matrix for key, replacing any previous entry.
func (s *SQLMatrixCache) Put(ctx context.Context, key ports.MatrixKey, m *domain.DistanceMatrix) error {
	if s.DB == nil {
		return errors.New("matrix cache: db is nil")
	}

	payload, err := encodeMatrix(m)
	if err != nil {
		return fmt.Errorf("insert matrix cache: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO matrix_cache (depot_id, day, fingerprint, node_count, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (depot_id, day, fingerprint) DO UPDATE
	SET payload = EXCLUDED.payload,
		node_count = EXCLUDED.node_count,
		created_at = EXCLUDED.created_at;
	`, key.DepotID, key.Day, key.Fingerprint, m.Size(), payload)
	if err != nil {
		return fmt.Errorf("insert matrix cache depot=%d: %w", key.DepotID, err)
	}

	return nil
}

// Purge removes entries older than the TTL.
func (s *SQLMatrixCache) Purge(ctx context.Context) (int64, error) {
	if s.DB == nil || s.TTL <= 0 {
		return 0, nil
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM matrix_cache WHERE created_at < $1;`, time.Now().Add(-s.TTL))
	if err != nil {
		return 0, fmt.Errorf("purge matrix cache: %w", err)
	}
	return res.RowsAffected()
}
