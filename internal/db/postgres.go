package db

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vds-shop-bot/migrations"
)

// Postgres is the networked relational backend on a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres opens a connection pool and verifies connectivity.
func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	p := &Postgres{
		pool:   pool,
		logger: logger.With("component", "db_postgres"),
	}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Ping ensures the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Exec runs a statement and returns the affected row count.
func (p *Postgres) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Fetch returns all rows as column-name keyed maps.
func (p *Postgres) Fetch(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// FetchOne returns the first row or nil when the result set is empty.
func (p *Postgres) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := p.Fetch(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// EnsureSchema applies embedded migrations in order, then the additive column
// set. ADD COLUMN IF NOT EXISTS keeps re-runs harmless.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if err := p.applyMigrations(ctx, migrations.Files, "postgres"); err != nil {
		return err
	}
	for _, stmt := range []string{
		`alter table users add column if not exists bonus_balance integer default 0`,
		`alter table users add column if not exists referrer_id integer`,
		`alter table orders add column if not exists promo_code varchar(255)`,
		`alter table orders add column if not exists discount_amount integer default 0`,
		`alter table orders add column if not exists final_price integer`,
	} {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("additive migration: %w", err)
		}
	}
	return nil
}

func (p *Postgres) applyMigrations(ctx context.Context, filesystem fs.FS, dir string) error {
	entries, err := fs.ReadDir(filesystem, dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sqlBytes, err := fs.ReadFile(filesystem, dir+"/"+entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if len(sqlBytes) == 0 {
			continue
		}
		err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
			_, execErr := tx.Exec(ctx, string(sqlBytes))
			return execErr
		})
		if err != nil {
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}
