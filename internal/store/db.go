package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

type DB struct {
	Pool    *sql.DB
	dialect Dialect
}

// Open connects to sqlite (dsn is a file path) or postgres (dsn is a
// postgres:// URL) and pings.
func Open(driver, dsn string) (*DB, error) {
	var (
		pool    *sql.DB
		err     error
		dialect Dialect
	)
	switch driver {
	case "sqlite", "":
		// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
		pool, err = sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dsn))
		if err != nil {
			return nil, err
		}
		pool.SetMaxOpenConns(1) // sqlite typically wants 1 writer
		dialect = SQLite
	case "postgres":
		pool, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		pool.SetMaxOpenConns(10)
		dialect = Postgres
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	pool.SetConnMaxLifetime(5 * time.Minute)

	// quick ping
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return &DB{Pool: pool, dialect: dialect}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *DB) rebind(q string) string {
	if d.dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return d.Pool.ExecContext(ctx, d.rebind(q), args...)
}

func (d *DB) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return d.Pool.QueryContext(ctx, d.rebind(q), args...)
}

func (d *DB) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return d.Pool.QueryRowContext(ctx, d.rebind(q), args...)
}
