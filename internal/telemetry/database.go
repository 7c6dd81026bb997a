package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// WithSearchPath returns dsn with the postgres search_path set to schema.
// lib/pq sends unknown URL parameters as run-time settings, so every pooled
// connection starts in the service's schema.
func WithSearchPath(dsn, schema string) (string, error) {
	if schema == "" {
		return dsn, nil
	}
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema, nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse postgres url: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OpenDB opens a traced postgres handle scoped to schema and checks that
// the database is reachable.
func OpenDB(ctx context.Context, dsn, schema string) (*sql.DB, error) {
	scoped, err := WithSearchPath(dsn, schema)
	if err != nil {
		return nil, err
	}

	db, err := otelsql.Open("postgres", scoped,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
