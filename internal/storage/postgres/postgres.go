package postgres

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/baatcheet/backend/internal/storage"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

type Postgres struct {
	DB *storage.DB
}

func New(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{
		DB: storage.Wrap(db, "postgres"),
	}, nil
}

func (p *Postgres) Migrate() error {
	return p.DB.Migrate(schema)
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}
