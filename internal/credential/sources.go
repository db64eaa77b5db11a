package credential

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

// EnvSource reads secrets from the process environment.
type EnvSource struct{}

func (EnvSource) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := os.LookupEnv(key)
	return v, ok, nil
}

// MapSource is a fixed in-memory mapping.
type MapSource map[string]string

func (m MapSource) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

// LoadFileSource reads a flat YAML mapping of secret names to values. The file
// is read once; later edits are not observed.
func LoadFileSource(path string) (MapSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}
	m := map[string]string{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}
	return MapSource(m), nil
}

// PostgresSource looks secrets up in a `secrets(name text primary key, value text)` table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

func (p *PostgresSource) Lookup(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM secrets WHERE name = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query secret %q: %w", key, err)
	}
	return value, true, nil
}

func (p *PostgresSource) Close() {
	p.pool.Close()
}
