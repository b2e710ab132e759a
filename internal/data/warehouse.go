package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Warehouse drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// WarehouseConfig contains warehouse connection configuration
type WarehouseConfig struct {
	Driver         string // sqlite or postgres
	DSN            string // File path for sqlite, connection URL for postgres
	Table          string
	ConnectTimeout time.Duration
}

// Warehouse owns the lazily opened connection to the turn table.
// A failed connect is retried on the next Handle call.
type Warehouse struct {
	cfg    WarehouseConfig
	logger *slog.Logger

	mu sync.Mutex // serializes connect and close
	db atomic.Pointer[sql.DB]
}

// NewWarehouse validates the configuration. It does not connect.
func NewWarehouse(cfg WarehouseConfig, logger *slog.Logger) (*Warehouse, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	case "":
		cfg.Driver = DriverSQLite
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}
	if cfg.Table == "" {
		cfg.Table = "chat_messages"
	}
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid warehouse table name %q", cfg.Table)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("warehouse dsn is empty")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Warehouse{cfg: cfg, logger: logger.With(slog.String("component", "warehouse"))}, nil
}

// Table returns the turn table name
func (w *Warehouse) Table() string {
	return w.cfg.Table
}

// Driver returns the configured driver
func (w *Warehouse) Driver() string {
	return w.cfg.Driver
}

// Handle returns the open connection, connecting first if needed
func (w *Warehouse) Handle(ctx context.Context) (*sql.DB, error) {
	if db := w.db.Load(); db != nil {
		return db, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if db := w.db.Load(); db != nil {
		return db, nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.ConnectTimeout)
	defer cancel()

	db, err := w.open(ctx)
	if err != nil {
		w.logger.Error("warehouse connect failed", slog.String("driver", w.cfg.Driver), slog.Any("error", err))
		return nil, err
	}
	w.db.Store(db)
	w.logger.Info("warehouse connected", slog.String("driver", w.cfg.Driver), slog.String("table", w.cfg.Table))
	return db, nil
}

// Available reports whether a connection is currently established.
// It never waits on a connect in progress.
func (w *Warehouse) Available() bool {
	return w.db.Load() != nil
}

// Close closes the connection if open
func (w *Warehouse) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	db := w.db.Swap(nil)
	if db == nil {
		return nil
	}
	return db.Close()
}

func (w *Warehouse) open(ctx context.Context) (*sql.DB, error) {
	driverName := "pgx"
	if w.cfg.Driver == DriverSQLite {
		driverName = "sqlite"
		// Ensure directory exists
		if dir := filepath.Dir(w.cfg.DSN); dir != "." && !strings.HasPrefix(w.cfg.DSN, "file:") {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create db directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driverName, w.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if w.cfg.Driver == DriverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT NOT NULL,
			message_ts TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			message_text TEXT,
			bot_response TEXT,
			message_type TEXT NOT NULL,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`, w.cfg.Table))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_channel_user ON %s(channel_id, user_id, message_ts)`,
		w.cfg.Table, w.cfg.Table))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return db, nil
}

// rebind rewrites ? placeholders for the configured driver
func (w *Warehouse) rebind(query string) string {
	if w.cfg.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
