package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gigalert/discovery-service/internal/model"
)

// PostgresStore persists listings in the listings table
// (see internal/db/migrations). (link, owner_id) carries a unique index.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore on an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Exists(ctx context.Context, link, ownerID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM listings WHERE link = $1 AND owner_id = $2)`,
		link, ownerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("listings exists query: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Record(ctx context.Context, l model.Listing) (bool, error) {
	l = stampDiscovered(l, time.Now())

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO listings (title, link, owner_id, discovered_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (link, owner_id) DO NOTHING`,
		l.Title, l.Link, l.OwnerID, l.DiscoveredAt,
	)
	if err != nil {
		return false, fmt.Errorf("listings insert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)

	var deleted int64
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM listings WHERE discovered_at < $1`, cutoff)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("listings purge: %w", err)
	}
	return deleted, nil
}
