package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound reports that a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Row is a single result row keyed by column name.
type Row map[string]any

// Store is the uniform persistence gateway shared by both backends. Queries
// are written with $1..$n placeholders; the sqlite backend rewrites them.
type Store interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Fetch returns all result rows in query order.
	Fetch(ctx context.Context, query string, args ...any) ([]Row, error)
	// FetchOne returns the first result row, or nil when there is none.
	FetchOne(ctx context.Context, query string, args ...any) (Row, error)
	// EnsureSchema applies the schema idempotently; re-running it is a no-op.
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

// Open selects a backend from the DSN: postgres URLs get the pooled network
// backend, anything else is treated as a sqlite file path.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgres(ctx, dsn, logger)
	}
	return NewSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"), logger)
}

// Int64 reads an integer column, coercing the driver's native type.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// NullInt64 reads a nullable integer column.
func (r Row) NullInt64(col string) *int64 {
	if r[col] == nil {
		return nil
	}
	n := r.Int64(col)
	return &n
}

// Float64 reads a floating-point column.
func (r Row) Float64(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// String reads a text column; nil becomes the empty string.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// NullString reads a nullable text column.
func (r Row) NullString(col string) *string {
	if r[col] == nil {
		return nil
	}
	s := r.String(col)
	return &s
}

// Bool reads a boolean column; sqlite stores booleans as integers.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int32:
		return v != 0
	case int:
		return v != 0
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	default:
		return false
	}
}

// Time reads a timestamp column; sqlite returns text timestamps.
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		return parseTextTime(v)
	case []byte:
		return parseTextTime(string(v))
	default:
		return time.Time{}
	}
}

func parseTextTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
