package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmgilman/go/errors"

	"github.com/roverlens/marsphotos/pkg/storage"
)

var photoColumns = []string{"rover", "sol", "earth_date", "camera", "photo_id", "img_src", "page", "saved_at"}

type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps an existing pool. Call EnsureSchema before using it.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// schemaDDL creates the photos table. sol and page are BIGINT so any
// non-negative int the normalizer accepts can be stored and filtered on;
// tables created with INTEGER columns are widened in place.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS photos (
  id BIGSERIAL PRIMARY KEY,
  rover TEXT NOT NULL,
  sol BIGINT,
  earth_date TEXT,
  camera TEXT,
  photo_id BIGINT NOT NULL,
  img_src TEXT NOT NULL,
  page BIGINT NOT NULL,
  saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE photos ALTER COLUMN sol TYPE BIGINT, ALTER COLUMN page TYPE BIGINT;
CREATE INDEX IF NOT EXISTS photos_lookup_idx ON photos (rover, page, sol, earth_date);`

// EnsureSchema creates the photos table and its lookup index if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "create photos table")
	}
	return nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, r.pool)
}

// Lookup returns cached photos matching every set field of f.
func (r *Repository) Lookup(ctx context.Context, f storage.Filter) ([]storage.ImageRecord, error) {
	query, args := lookupQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "lookup photos")
	}
	defer rows.Close()

	records := []storage.ImageRecord{}
	for rows.Next() {
		var rec storage.ImageRecord
		if err := rows.Scan(&rec.Rover, &rec.Sol, &rec.EarthDate, &rec.Camera,
			&rec.ExternalID, &rec.ImageURL, &rec.Page, &rec.FetchedAt); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabase, "scan photo row")
		}
		rec.FetchedAt = rec.FetchedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "iterate photo rows")
	}
	return records, nil
}

func lookupQuery(f storage.Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT rover, sol, COALESCE(earth_date, ''), COALESCE(camera, ''), photo_id, img_src, page, saved_at
FROM photos WHERE rover = $1 AND page = $2`)
	args := []any{f.Rover, f.Page}

	if f.Sol != nil {
		args = append(args, *f.Sol)
		fmt.Fprintf(&b, " AND sol = $%d", len(args))
	} else {
		args = append(args, f.EarthDate)
		fmt.Fprintf(&b, " AND earth_date = $%d", len(args))
	}
	if f.Camera != "" {
		args = append(args, f.Camera)
		fmt.Fprintf(&b, " AND camera = $%d", len(args))
	}
	b.WriteString(" ORDER BY id")
	return b.String(), args
}

// InsertMany copies records into the photos table in a single round trip.
// Rows are appended without checking for photos that are already cached.
func (r *Repository) InsertMany(ctx context.Context, records []storage.ImageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{"photos"}, photoColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			return []any{
				rec.Rover,
				rec.Sol,
				nullable(rec.EarthDate),
				nullable(rec.Camera),
				rec.ExternalID,
				rec.ImageURL,
				rec.Page,
				rec.FetchedAt.UTC(),
			}, nil
		}))
	if err != nil {
		return int(n), errors.Wrap(err, errors.CodeDatabase, "insert photos")
	}
	return int(n), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// NewDB opens a pgx pool with tuned defaults.
func NewDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "parse db config")
	}
	// Keep a small, steady pool; a search is at most one lookup and one copy.
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "open db")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.CodeDatabase, "ping db")
	}
	return pool, nil
}
