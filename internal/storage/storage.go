package storage

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is RFC3339 with fixed-width nanoseconds so stored timestamps
// sort correctly as text across both drivers.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// DB wraps *sql.DB with the driver name so query text can be written once
// with ? placeholders and rebound for postgres.
type DB struct {
	*sql.DB
	driver string
}

func Wrap(db *sql.DB, driver string) *DB {
	return &DB{DB: db, driver: driver}
}

func (d *DB) Driver() string { return d.driver }

// Rebind rewrites ? placeholders to $1..$n for postgres.
func (d *DB) Rebind(query string) string {
	if d.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
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

// InsertID runs an insert and returns the generated row id. lib/pq has no
// LastInsertId, so on postgres the statement is extended with RETURNING id.
func (d *DB) InsertID(ctx context.Context, query string, args ...any) (int64, error) {
	if d.driver == "postgres" {
		var id int64
		err := d.QueryRowContext(ctx, d.Rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := d.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Migrate executes a schema dump statement by statement.
func (d *DB) Migrate(schema string) error {
	stmts := strings.Split(schema, ";\n")
	for _, stmt := range stmts {
		st := strings.TrimSpace(stmt)
		if st == "" {
			continue
		}
		if _, err := d.Exec(st); err != nil {
			return err
		}
	}
	return nil
}
