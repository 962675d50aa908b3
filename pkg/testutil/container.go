// Package testutil provides testing utilities for PharmaTrack backend services.
// It includes a testcontainers PostgreSQL instance with the pharmacy schema,
// sqlmock helpers, fixtures, and HTTP test helpers.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Credentials of the non-superuser role the services connect as. Superusers
// bypass row-level security, so integration tests must use this role.
const (
	AppRole     = "pharmatrack_app"
	AppPassword = "apppassword"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "pharmatrack_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer starts a PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//	    os.Exit(m.Run())
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	defaults := DefaultPostgresConfig()
	if cfg.Image == "" {
		cfg.Image = defaults.Image
	}
	if cfg.Database == "" {
		cfg.Database = defaults.Database
	}
	if cfg.Username == "" {
		cfg.Username = defaults.Username
	}
	if cfg.Password == "" {
		cfg.Password = defaults.Password
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a superuser sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// ApplySchema creates the pharmacy tables, their RLS policies and the
// application role. It is idempotent.
func (c *PostgresContainer) ApplySchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range PharmacySchema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

// PharmacySchema returns the DDL the alert service reads and writes
func PharmacySchema() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

		`CREATE TABLE IF NOT EXISTS public.pharmacies (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			alert_phone VARCHAR(32),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS public.branches (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			pharmacy_id UUID NOT NULL REFERENCES public.pharmacies(id),
			name VARCHAR(255) NOT NULL,
			alert_phone VARCHAR(32),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS public.medications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			pharmacy_id UUID NOT NULL REFERENCES public.pharmacies(id),
			name VARCHAR(255) NOT NULL,
			current_stock INTEGER NOT NULL DEFAULT 0,
			reorder_level INTEGER NOT NULL DEFAULT 10,
			unit_cost NUMERIC(12,2) NOT NULL DEFAULT 0,
			selling_price NUMERIC(12,2),
			expiry_date DATE NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT medications_stock_nonnegative CHECK (current_stock >= 0),
			CONSTRAINT medications_reorder_level_nonnegative CHECK (reorder_level >= 0)
		)`,

		`CREATE TABLE IF NOT EXISTS public.branch_inventory (
			branch_id UUID NOT NULL REFERENCES public.branches(id),
			medication_id UUID NOT NULL REFERENCES public.medications(id),
			pharmacy_id UUID NOT NULL REFERENCES public.pharmacies(id),
			stock INTEGER NOT NULL DEFAULT 0,
			reorder_level INTEGER,
			CONSTRAINT branch_inventory_pkey PRIMARY KEY (branch_id, medication_id),
			CONSTRAINT branch_inventory_stock_nonnegative CHECK (stock >= 0)
		)`,

		`CREATE TABLE IF NOT EXISTS public.notifications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			pharmacy_id UUID NOT NULL REFERENCES public.pharmacies(id),
			branch_id UUID REFERENCES public.branches(id),
			kind VARCHAR(20) NOT NULL,
			title VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			whatsapp_url TEXT,
			alert_id VARCHAR(64),
			alert_count INTEGER NOT NULL DEFAULT 0,
			high_count INTEGER NOT NULL DEFAULT 0,
			value_at_risk NUMERIC(14,2) NOT NULL DEFAULT 0,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			read_by UUID,
			read_at TIMESTAMPTZ,
			published_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT notifications_kind_valid CHECK (kind IN ('digest', 'alert'))
		)`,

		`CREATE INDEX IF NOT EXISTS idx_notifications_scope
			ON public.notifications (pharmacy_id, branch_id, kind, created_at DESC)`,

		`ALTER TABLE public.branches ENABLE ROW LEVEL SECURITY`,
		`ALTER TABLE public.medications ENABLE ROW LEVEL SECURITY`,
		`ALTER TABLE public.branch_inventory ENABLE ROW LEVEL SECURITY`,
		`ALTER TABLE public.notifications ENABLE ROW LEVEL SECURITY`,

		`DROP POLICY IF EXISTS pharmacy_isolation ON public.branches`,
		`CREATE POLICY pharmacy_isolation ON public.branches
			USING (pharmacy_id = NULLIF(current_setting('app.current_tenant', true), '')::uuid)
			WITH CHECK (pharmacy_id = NULLIF(current_setting('app.current_tenant', true), '')::uuid)`,
		`DROP POLICY IF EXISTS pharmacy_isolation ON public.medications`,
		`CREATE POLICY pharmacy_isolation ON public.medications
			USING (pharmacy_id = NULLIF(current_setting('app.current_tenant', true), '')::uuid)
			WITH CHECK (pharmacy_id = NULLIF(current_setting('app.current_tenant', true), '')::uuid)`,
		`DROP POLICY IF EXISTS pharmacy_isolation ON public.branch_inventory`,
		`CREATE POLICY pharmacy_isolation ON public.branch_inventory
			USING (pharmacy_id = NULLIF(current_setting('app.current_tenant', true), '')::uuid)
			WITH CHECK (pharmacy_id = NULLIF(current_setting('app.current_tenant', true), '')::uuid)`,
		`DROP POLICY IF EXISTS pharmacy_isolation ON public.notifications`,
		`CREATE POLICY pharmacy_isolation ON public.notifications
			USING (pharmacy_id = NULLIF(current_setting('app.current_tenant', true), '')::uuid)
			WITH CHECK (pharmacy_id = NULLIF(current_setting('app.current_tenant', true), '')::uuid)`,

		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '` + AppRole + `') THEN
				CREATE ROLE ` + AppRole + ` LOGIN PASSWORD '` + AppPassword + `';
			END IF;
		END
		$$`,
		`GRANT USAGE ON SCHEMA public TO ` + AppRole,
		`GRANT SELECT ON public.pharmacies TO ` + AppRole,
		`GRANT SELECT ON public.branches, public.medications, public.branch_inventory TO ` + AppRole,
		`GRANT SELECT, INSERT, UPDATE ON public.notifications TO ` + AppRole,
	}
}
