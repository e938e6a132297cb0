package universe

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/sawpanic/putscan/internal/config"
)

// Open connects to the holdings database and verifies it answers.
func Open(ctx context.Context, cfg config.UniverseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("universe DSN is required")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, cfg.GetQueryTimeout())
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// PostgresStore reads distinct tickers from one column of a holdings table
type PostgresStore struct {
	db      *sqlx.DB
	query   string
	timeout time.Duration
}

// NewPostgresStore builds a store over cfg.Table and cfg.Column. Both must
// already have passed config validation; they are interpolated into the
// query text.
func NewPostgresStore(db *sqlx.DB, cfg config.UniverseConfig) *PostgresStore {
	return &PostgresStore{
		db:      db,
		query:   distinctQuery(cfg.Table, cfg.Column),
		timeout: cfg.GetQueryTimeout(),
	}
}

func distinctQuery(table, column string) string {
	return fmt.Sprintf(
		`SELECT DISTINCT %[2]s FROM %[1]s WHERE %[2]s IS NOT NULL ORDER BY %[2]s LIMIT $1`,
		table, column)
}

// Tickers implements Store
func (s *PostgresStore) Tickers(ctx context.Context, n int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var symbols []string
	if err := s.db.SelectContext(ctx, &symbols, s.query, n); err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	return Normalize(symbols), nil
}
