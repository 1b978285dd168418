// Package testutil provides test helpers, including PostgreSQL container
// management for repository tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/crownfall/internal/config"
	"github.com/cory-johannsen/crownfall/internal/storage/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts a PostgreSQL test container and returns
// a connected Pool.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	pc := &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(ctx)
	})

	return pc
}

// NewPool starts a container, applies the archive schema, and returns the
// raw pool for repository tests.
//
// Precondition: Docker must be available.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return pc.RawPool
}

// ApplyMigrations runs the schema creation SQL directly for tests.
// This avoids requiring the migrate tool in the test environment.
//
// Precondition: Pool must be connected.
// Postcondition: The combat archive tables exist in the test database.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	schema := `
		CREATE TABLE IF NOT EXISTS combat_records (
			id                     UUID         PRIMARY KEY,
			scenario               TEXT         NOT NULL DEFAULT '',
			location_q             INTEGER      NOT NULL DEFAULT 0,
			location_r             INTEGER      NOT NULL DEFAULT 0,
			terrain                TEXT         NOT NULL,
			elevation              INTEGER      NOT NULL DEFAULT 0,
			entrenched             BOOLEAN      NOT NULL DEFAULT FALSE,
			building               TEXT         NOT NULL DEFAULT 'none',
			winner                 TEXT         NOT NULL,
			duration_ticks         INTEGER      NOT NULL,
			duration               TEXT         NOT NULL,
			phases                 JSONB        NOT NULL DEFAULT '[]',
			attacker_initial_units INTEGER      NOT NULL,
			attacker_final_units   INTEGER      NOT NULL,
			attacker_initial_hp    DOUBLE PRECISION NOT NULL,
			attacker_final_hp      DOUBLE PRECISION NOT NULL,
			defender_initial_units INTEGER      NOT NULL,
			defender_final_units   INTEGER      NOT NULL,
			defender_initial_hp    DOUBLE PRECISION NOT NULL,
			defender_final_hp      DOUBLE PRECISION NOT NULL,
			created_at             TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_combat_records_scenario ON combat_records (scenario);
		CREATE TABLE IF NOT EXISTS combat_record_units (
			record_id     UUID    NOT NULL REFERENCES combat_records (id) ON DELETE CASCADE,
			side          TEXT    NOT NULL CHECK (side IN ('attacker', 'defender')),
			unit_type     TEXT    NOT NULL,
			name          TEXT    NOT NULL,
			category      TEXT    NOT NULL,
			initial_count INTEGER NOT NULL,
			final_count   INTEGER NOT NULL,
			casualties    INTEGER NOT NULL,
			damage_dealt  DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (record_id, side, unit_type)
		);
	`

	_, err := pc.RawPool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("migrations applied [%s]", time.Since(start))
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pc.Config.User, pc.Config.Password,
		pc.Config.Host, pc.Config.Port,
		pc.Config.Name, pc.Config.SSLMode,
	)
}
