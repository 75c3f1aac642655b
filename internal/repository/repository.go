package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateOrder    = errors.New("order with this id already exists")
	ErrTxFinished        = errors.New("settlement transaction already finished")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

type Credentials struct {
	Driver            string
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SQLitePath        string
	MigrationsDirPath string
}

type Repository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// CatalogReader is the read side of the inventory store.
type CatalogReader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
}

// SettlementTx is one settlement's database transaction. Everything written
// through it becomes visible together on Commit or not at all.
type SettlementTx interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	// ConditionalUpdateStock writes the new stock and sales only if the
	// current stock still equals expectedStock. It returns rows affected.
	ConditionalUpdateStock(ctx context.Context, productID, expectedStock, newStock, newSales int64) (int64, error)
	AddGoodsSales(ctx context.Context, goodsID, delta int64) error
	CreateOrder(ctx context.Context, order *domain.Order) error
	CreateOrderItem(ctx context.Context, item *domain.OrderItem) error
	UpdateOrderTotals(ctx context.Context, order *domain.Order) error
	AddOutboxEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error
	Commit() error
	Rollback() error
}

type RepoInterface interface {
	CatalogReader
	BeginSettlement(ctx context.Context) (SettlementTx, error)
	GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID int64) ([]*domain.Order, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	Close() error
	RunMigrations(*Credentials) error
}

// NewRepository opens the store selected by cred.Driver.
func NewRepository(cred *Credentials) (*Repository, error) {
	switch cred.Driver {
	case DriverPostgres, "":
		return NewPostgresRepository(cred)
	case DriverSQLite:
		return NewSQLiteRepository(cred.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cred.Driver)
	}
}

func NewPostgresRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db, driver: DriverPostgres, now: time.Now}, nil
}

// NewSQLiteRepository opens an embedded store; ":memory:" is accepted.
// SQLite serialises writers, so the pool is held to one connection and
// settlements queue at BEGIN instead of failing with SQLITE_BUSY.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Repository{db: db, driver: DriverSQLite, now: time.Now}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	var (
		driver database.Driver
		err    error
	)
	switch r.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	default:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		r.driver,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	// m.Close would close r.db as well
	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Driver() string {
	return r.driver
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
