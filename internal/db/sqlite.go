package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"vds-shop-bot/migrations"
)

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// rewritePlaceholders converts $n placeholders to sqlite's ?n form so argument
// order and reuse survive the translation.
func rewritePlaceholders(query string) string {
	return placeholderRe.ReplaceAllString(query, `?$1`)
}

// SQLite is the embedded single-file backend.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens the database at path, creating it if absent. The single
// connection serialises writes; callers need no extra locking below the
// per-order guard.
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") && path != ":memory:" {
		dsn = "file:" + dsn
	}
	if path != ":memory:" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL&_pragma=foreign_keys=ON", dsn, sep)
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLite{
		db:     sqlDB,
		logger: logger.With("component", "db_sqlite"),
	}, nil
}

// Close releases the database connection.
func (s *SQLite) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Ping ensures the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Exec runs a statement and returns the affected row count.
func (s *SQLite) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, rewritePlaceholders(query), args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// Fetch returns all rows as column-name keyed maps.
func (s *SQLite) Fetch(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, rewritePlaceholders(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		scans := make([]any, len(cols))
		for i := range values {
			scans[i] = &values[i]
		}
		if err := rows.Scan(scans...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// FetchOne returns the first row or nil when the result set is empty.
func (s *SQLite) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := s.Fetch(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// EnsureSchema applies embedded migrations, then the additive column set.
// sqlite has no ADD COLUMN IF NOT EXISTS, so duplicate-column failures are
// treated as already-applied.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	if err := s.applyMigrations(ctx, migrations.Files, "sqlite"); err != nil {
		return err
	}
	for _, stmt := range []string{
		`alter table users add column bonus_balance integer default 0`,
		`alter table users add column referrer_id integer`,
		`alter table orders add column promo_code text`,
		`alter table orders add column discount_amount integer default 0`,
		`alter table orders add column final_price integer`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("additive migration: %w", err)
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}

func (s *SQLite) applyMigrations(ctx context.Context, filesystem fs.FS, dir string) error {
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
		if _, err := s.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}
