package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lepinkainen/bookfeed/internal/catalog"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	isbn10 TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	authors TEXT NOT NULL,
	categories TEXT NOT NULL,
	thumbnail TEXT NOT NULL,
	description TEXT NOT NULL,
	published_year INTEGER NOT NULL,
	average_rating DOUBLE PRECISION NOT NULL,
	ratings_count INTEGER NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	ingested_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_title_lower_idx ON %[1]s (lower(title));
CREATE INDEX IF NOT EXISTS %[1]s_ingested_at_idx ON %[1]s (ingested_at);
`

// PostgresStore is a Collection backed by one PostgreSQL table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// OpenPostgres connects to dsn and ensures the collection table exists.
func OpenPostgres(ctx context.Context, dsn, name string) (*PostgresStore, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	// No arguments, so pgx sends the multi-statement schema over the simple protocol.
	if _, err := pool.Exec(ctx, fmt.Sprintf(postgresSchema, name)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return &PostgresStore{pool: pool, table: name}, nil
}

// Name implements Collection.
func (s *PostgresStore) Name() string { return s.table }

// Ping implements Collection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanPostgresRecord(row pgx.Row) (catalog.Record, error) {
	var rec catalog.Record
	err := row.Scan(&rec.ExternalID, &rec.Title, &rec.Authors, &rec.Categories, &rec.ThumbnailURL,
		&rec.Description, &rec.PublishedYear, &rec.AverageRating, &rec.RatingsCount, &rec.Source, &rec.IngestedAt)
	rec.IngestedAt = rec.IngestedAt.UTC()
	return rec, err
}

// FindByID implements Collection.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*catalog.Record, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE isbn10 = $1`, recordColumns, s.table), id)

	rec, err := scanPostgresRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: find by id: %w", s.table, err)
	}
	return &rec, nil
}

// FindByTitle implements Collection.
func (s *PostgresStore) FindByTitle(ctx context.Context, title string) ([]catalog.Record, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE lower(title) = lower($1) LIMIT %d`, recordColumns, s.table, titleMatchLimit), title)
	if err != nil {
		return nil, fmt.Errorf("%s: find by title: %w", s.table, err)
	}
	defer rows.Close()

	var out []catalog.Record
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", s.table, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertOne implements Collection.
func (s *PostgresStore) InsertOne(ctx context.Context, rec catalog.Record) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (isbn10) DO NOTHING`, s.table, recordColumns),
		rec.ExternalID, rec.Title, rec.Authors, rec.Categories, rec.ThumbnailURL, rec.Description,
		rec.PublishedYear, rec.AverageRating, rec.RatingsCount, rec.Source, rec.IngestedAt.UTC())
	if err != nil {
		return fmt.Errorf("%s: insert %s: %w", s.table, rec.ExternalID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateKey
	}
	return nil
}

// DeleteMany implements Collection.
func (s *PostgresStore) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	if filter.Empty() {
		return 0, ErrEmptyFilter
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE ingested_at < $1`, s.table), filter.IngestedBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: delete: %w", s.table, err)
	}
	return tag.RowsAffected(), nil
}

// Count implements Collection.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count: %w", s.table, err)
	}
	return n, nil
}

// Close implements Collection.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
