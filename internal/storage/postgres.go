package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pauljones0/rental-watch-bot/internal/models"
)

const (
	postgresTable     = "seen_listings"
	postgresBatchSize = 200
)

// PostgresStore keeps the seen set in a single table keyed by URL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects and creates the table if it does not exist.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+postgresTable+` (
		url           TEXT PRIMARY KEY,
		first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create %s table: %w", postgresTable, err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Load(ctx context.Context) (models.SeenSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT url FROM `+postgresTable)
	if err != nil {
		return nil, fmt.Errorf("query seen listings: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan seen listings: %w", err)
	}
	return models.NewSeenSet(urls...), nil
}

// Save inserts every identifier, ignoring ones already stored.
func (s *PostgresStore) Save(ctx context.Context, seen models.SeenSet) error {
	ids := seen.Sorted()
	for i := 0; i < len(ids); i += postgresBatchSize {
		j := min(i+postgresBatchSize, len(ids))

		b := &pgx.Batch{}
		for _, id := range ids[i:j] {
			b.Queue(`INSERT INTO `+postgresTable+` (url) VALUES ($1) ON CONFLICT (url) DO NOTHING`, id)
		}
		br := s.pool.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert seen listing: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}
	return nil
}
