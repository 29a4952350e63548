package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lepinkainen/bookfeed/internal/catalog"
	_ "modernc.org/sqlite"
)

// sqliteTime is fixed-width so stored timestamps compare correctly as text.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	isbn10 TEXT PRIMARY KEY NOT NULL,
	title TEXT NOT NULL COLLATE NOCASE,
	authors TEXT NOT NULL,
	categories TEXT NOT NULL,
	thumbnail TEXT NOT NULL,
	description TEXT NOT NULL,
	published_year INTEGER NOT NULL,
	average_rating REAL NOT NULL,
	ratings_count INTEGER NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	ingested_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_title ON %[1]s(title COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_%[1]s_ingested_at ON %[1]s(ingested_at);
`

const recordColumns = `isbn10, title, authors, categories, thumbnail, description,
	published_year, average_rating, ratings_count, source, ingested_at`

// SQLiteStore is a Collection backed by one table of a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// OpenSQLite opens dbPath and ensures the collection table exists.
func OpenSQLite(ctx context.Context, dbPath, name string) (*SQLiteStore, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, table: name}
	// Trending and catalog tables may share one file through separate handles.
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to set busy timeout: %w", err), closeErr)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(sqliteSchema, name)); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to create table %s: %w", name, err), closeErr)
	}
	return s, nil
}

// Name implements Collection.
func (s *SQLiteStore) Name() string { return s.table }

// Ping implements Collection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (catalog.Record, error) {
	var rec catalog.Record
	var ingested string
	err := row.Scan(&rec.ExternalID, &rec.Title, &rec.Authors, &rec.Categories, &rec.ThumbnailURL,
		&rec.Description, &rec.PublishedYear, &rec.AverageRating, &rec.RatingsCount, &rec.Source, &ingested)
	if err != nil {
		return rec, err
	}
	if rec.IngestedAt, err = time.Parse(sqliteTime, ingested); err != nil {
		return rec, fmt.Errorf("bad ingested_at %q: %w", ingested, err)
	}
	return rec, nil
}

// FindByID implements Collection.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*catalog.Record, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE isbn10 = ?`, recordColumns, s.table), id)

	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: find by id: %w", s.table, err)
	}
	return &rec, nil
}

// FindByTitle implements Collection. NOCASE folds ASCII letters only.
func (s *SQLiteStore) FindByTitle(ctx context.Context, title string) ([]catalog.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE title = ? COLLATE NOCASE LIMIT %d`, recordColumns, s.table, titleMatchLimit), title)
	if err != nil {
		return nil, fmt.Errorf("%s: find by title: %w", s.table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []catalog.Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", s.table, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertOne implements Collection.
func (s *SQLiteStore) InsertOne(ctx context.Context, rec catalog.Record) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(isbn10) DO NOTHING`, s.table, recordColumns),
		rec.ExternalID, rec.Title, rec.Authors, rec.Categories, rec.ThumbnailURL, rec.Description,
		rec.PublishedYear, rec.AverageRating, rec.RatingsCount, rec.Source,
		rec.IngestedAt.UTC().Format(sqliteTime))
	if err != nil {
		return fmt.Errorf("%s: insert %s: %w", s.table, rec.ExternalID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", s.table, err)
	}
	if n == 0 {
		return ErrDuplicateKey
	}
	return nil
}

// DeleteMany implements Collection.
func (s *SQLiteStore) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	if filter.Empty() {
		return 0, ErrEmptyFilter
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE ingested_at < ?`, s.table),
		filter.IngestedBefore.UTC().Format(sqliteTime))
	if err != nil {
		return 0, fmt.Errorf("%s: delete: %w", s.table, err)
	}
	return res.RowsAffected()
}

// Count implements Collection.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: count: %w", s.table, err)
	}
	return n, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
