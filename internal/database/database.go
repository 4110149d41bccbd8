package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	_ "github.com/mattn/go-sqlite3"
)

// Service wraps the database handle. The default backend is a local
// SQLite file; set DB_DRIVER=postgres and DATABASE_URL to run against
// Postgres via pgx.
type Service interface {
	// Health reports basic connectivity and pool stats.
	Health() map[string]string

	// DB exposes the underlying handle for the persistence layer and
	// migrations.
	DB() *sql.DB

	Close() error
}

type service struct {
	db     *sql.DB
	driver string
}

var (
	dbInstance *service
)

// GooseDialect returns the migration dialect for the configured driver.
func GooseDialect() string {
	if driverName() == "pgx" {
		return "postgres"
	}
	return "sqlite3"
}

func driverName() string {
	if os.Getenv("DB_DRIVER") == "postgres" {
		return "pgx"
	}
	return "sqlite3"
}

// New opens the configured database. Reuses the connection across
// calls; database/sql pools internally.
func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	driver := driverName()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = os.Getenv("DB_PATH")
	}
	if dsn == "" {
		dsn = "./db/hideandseek.db"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		log.Fatalf("Failed to open database (%s): %v", driver, err)
	}

	if driver == "sqlite3" {
		// SQLite serializes writes; more than one writer connection
		// just produces SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	dbInstance = &service{
		db:     db,
		driver: driver,
	}
	return dbInstance
}

// NewWithDB wraps an existing handle. Used by tests that bring their own
// database.
func NewWithDB(db *sql.DB, driver string) Service {
	return &service{db: db, driver: driver}
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	dbStats := s.db.Stats()
	stats["status"] = "up"
	stats["driver"] = s.driver
	stats["open_connections"] = fmt.Sprintf("%d", dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprintf("%d", dbStats.InUse)
	stats["idle"] = fmt.Sprintf("%d", dbStats.Idle)

	return stats
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Close() error {
	log.Printf("Disconnecting from database (%s)", s.driver)
	return s.db.Close()
}
