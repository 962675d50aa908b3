package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pharmatrack/pharmatrack-backend/pkg/config"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/tenant"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalAdmin     *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL.
// Admin bypasses row-level security and is used for seeding; DB connects as
// the application role, exactly like the service does.
type IntegrationSuite struct {
	Container *PostgresContainer
	Admin     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates the shared integration infrastructure.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    flag.Parse()
//	    if testing.Short() {
//	        os.Exit(m.Run())
//	    }
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, admin, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	if err := container.ApplySchema(ctx, admin); err != nil {
		return nil, err
	}

	appDSN, err := AppDSN(container.DSN)
	if err != nil {
		return nil, err
	}

	log := logger.Nop()
	appDB, err := database.NewWithDSN(appDSN, log)
	if err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		Admin:     admin,
		DB:        appDB,
		Fixtures:  NewFixtureFactory(admin),
		Logger:    log,
	}, nil
}

// AppDSN rewrites a superuser container URL into a DSN for the application role
func AppDSN(containerURL string) (string, error) {
	parsed, err := config.ParseDatabaseURL(containerURL)
	if err != nil {
		return "", err
	}
	parsed.User = AppRole
	parsed.Password = AppPassword
	return parsed.ToDSN(), nil
}

func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalAdmin, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalAdmin, containerErr
}

// PharmacyContext returns a context scoped to the given pharmacy
func (s *IntegrationSuite) PharmacyContext(pharmacyID string) context.Context {
	return tenant.WithTenantID(context.Background(), pharmacyID)
}

// Close releases the application connection. The container is shared and
// stays up until TerminateContainer.
func (s *IntegrationSuite) Close() error {
	return s.DB.Close()
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalAdmin != nil {
		globalAdmin.Close()
	}
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// UnitTestSuite bundles a sqlmock database for repository unit tests
type UnitTestSuite struct {
	MockDB *MockDB
	DB     *database.DB
	t      *testing.T
}

// NewUnitTestSuite creates a new unit test suite. Expectations are verified
// automatically when the test finishes.
func NewUnitTestSuite(t *testing.T) *UnitTestSuite {
	mockDB := NewMockDB(t)
	s := &UnitTestSuite{
		MockDB: mockDB,
		DB:     mockDB.Database(),
		t:      t,
	}
	t.Cleanup(s.Cleanup)
	return s
}

// Cleanup verifies expectations and cleans up
func (s *UnitTestSuite) Cleanup() {
	s.MockDB.ExpectationsWereMet(s.t)
	s.MockDB.Close()
}
