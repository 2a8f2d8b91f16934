package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	postgresRepo "github.com/iho/custodyledger/internal/adapter/repository/postgres"
	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/infrastructure/postgres"
	"github.com/iho/custodyledger/internal/usecase"
)

// TestDB provides isolated test database connections.
type TestDB struct {
	Pool *pgxpool.Pool
	t    *testing.T
}

// NewTestDB connects to DATABASE_URL and applies migrations. The test is
// skipped when DATABASE_URL is unset.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	// Tests run from the package directory; walk up to the migrations.
	migrationsPath := "internal/infrastructure/postgres/migrations"
	for _, prefix := range []string{"", "../", "../../"} {
		if _, err := os.Stat(prefix + migrationsPath); err == nil {
			migrationsPath = prefix + migrationsPath
			break
		}
	}

	if err := postgres.RunMigrations(dbURL, migrationsPath, zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL: dbURL,
		MaxConns:    20,
		MinConns:    2,
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	return &TestDB{Pool: pool, t: t}
}

// Cleanup closes the database connection.
func (db *TestDB) Cleanup() {
	db.Pool.Close()
}

// TruncateAll removes all data from tables.
func (db *TestDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	_, err := db.Pool.Exec(ctx, `
		TRUNCATE TABLE audit_logs;
		TRUNCATE TABLE outbox_events;
		TRUNCATE TABLE custody_transactions CASCADE;
		TRUNCATE TABLE custodies CASCADE;
	`)
	if err != nil {
		db.t.Fatalf("failed to truncate tables: %v", err)
	}
}

// Ledger is the set of use cases wired to the test database.
type Ledger struct {
	TxManager      *postgresRepo.TxManager
	Custodies      *postgresRepo.CustodyRepository
	Records        *postgresRepo.TransactionRecordRepository
	Outbox         *postgresRepo.OutboxRepository
	Audit          *postgresRepo.AuditRepository
	CustodyUC      *usecase.CustodyUseCase
	LedgerUC       *usecase.LedgerUseCase
	Reconciliation *usecase.ReconciliationUseCase
}

// NewLedger wires the postgres repositories into use cases. A nil retrier
// surfaces the first Busy error to the caller.
func (db *TestDB) NewLedger(lockTimeout time.Duration, retrier usecase.Retrier) *Ledger {
	l := &Ledger{
		TxManager: postgresRepo.NewTxManager(db.Pool).WithLockTimeout(lockTimeout),
		Custodies: postgresRepo.NewCustodyRepository(db.Pool),
		Records:   postgresRepo.NewTransactionRecordRepository(db.Pool),
		Outbox:    postgresRepo.NewOutboxRepository(db.Pool),
		Audit:     postgresRepo.NewAuditRepository(db.Pool),
	}
	idGen := postgresRepo.NewULIDGenerator()

	l.CustodyUC = usecase.NewCustodyUseCase(l.TxManager, l.Custodies, l.Outbox, l.Audit, idGen)
	l.LedgerUC = usecase.NewLedgerUseCase(l.TxManager, l.Custodies, l.Records, l.Outbox, l.Audit, idGen)
	if retrier != nil {
		l.CustodyUC.WithRetrier(retrier)
		l.LedgerUC.WithRetrier(retrier)
	}
	l.Reconciliation = usecase.NewReconciliationUseCase(l.Custodies, postgresRepo.NewLedgerRepository(db.Pool))

	return l
}

// CreateTestCustody creates an active custody with the given budget.
func (l *Ledger) CreateTestCustody(t *testing.T, ctx context.Context, name string, budget int64) *domain.Custody {
	t.Helper()

	custody, err := l.CustodyUC.CreateCustody(ctx, usecase.CreateCustodyInput{
		Name:   name,
		Budget: decimal.NewFromInt(budget),
	})
	if err != nil {
		t.Fatalf("failed to create test custody: %v", err)
	}
	return custody
}

// AssertRemaining fails the test unless the stored remaining equals want.
func (l *Ledger) AssertRemaining(t *testing.T, ctx context.Context, custodyID string, want int64) {
	t.Helper()

	remaining, err := l.LedgerUC.GetRemaining(ctx, custodyID)
	if err != nil {
		t.Fatalf("failed to read remaining: %v", err)
	}
	if !remaining.Equal(decimal.NewFromInt(want)) {
		t.Fatalf("expected remaining %d, got %s", want, remaining)
	}
}

// GenerateID generates a new ULID.
func GenerateID() string {
	return ulid.Make().String()
}
