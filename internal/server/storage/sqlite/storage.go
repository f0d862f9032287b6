package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage — реализация серверного хранилища документов на SQLite.
// Один экземпляр обслуживает все четыре коллекции, каждая в своей таблице;
// доступ к коллекции — через соответствующий аксессор.
type Storage struct {
	db         *sql.DB
	checkIns   *CheckInStore
	doors      *DoorStore
	handshakes *HandshakeStore
	clientLogs *ClientLogStore
}

// New creates a new SQLite storage instance
// dbPath is the path to the SQLite database file
// Use ":memory:" for in-memory database (useful for testing)
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite с WAL mode поддерживает несколько читателей, но одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	storage := &Storage{db: db}
	storage.checkIns = &CheckInStore{db: db}
	storage.doors = &DoorStore{db: db}
	storage.handshakes = &HandshakeStore{db: db}
	storage.clientLogs = &ClientLogStore{db: db}

	if err := storage.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// CheckIns returns the transaction collection store.
func (s *Storage) CheckIns() *CheckInStore { return s.checkIns }

// Doors returns the door collection store.
func (s *Storage) Doors() *DoorStore { return s.doors }

// Handshakes returns the handshake collection store.
func (s *Storage) Handshakes() *HandshakeStore { return s.handshakes }

// ClientLogs returns the logclient collection store.
func (s *Storage) ClientLogs() *ClientLogStore { return s.clientLogs }

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations() error {
	goose.SetDialect("sqlite3")
	goose.SetBaseFS(embedMigrations)

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// DB returns the underlying database connection for testing purposes
func (s *Storage) DB() *sql.DB {
	return s.db
}

// rowScanner абстрагирует *sql.Row и *sql.Rows для общих scan-хелперов.
type rowScanner interface {
	Scan(dest ...any) error
}

// boolToInt converts bool to int for SQLite storage
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// intToBool converts int from SQLite to bool
func intToBool(i int) bool {
	return i != 0
}
