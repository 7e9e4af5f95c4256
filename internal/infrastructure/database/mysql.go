package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/bhuvesh-solnce/backend/internal/config"
)

const tlsConfigName = "solar-crm"

// Connection wraps the MySQL (or TiDB) connection pool.
// sql.DB is already safe for concurrent use; no extra locking is added.
type Connection struct {
	db *sql.DB
}

var tlsOnce sync.Once

// DSN builds the go-sql-driver DSN for cfg
func DSN(cfg config.DatabaseConfig) string {
	cfgDSN := mysql.NewConfig()
	cfgDSN.User = cfg.User
	cfgDSN.Passwd = cfg.Password
	cfgDSN.Net = "tcp"
	cfgDSN.Addr = fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	cfgDSN.DBName = cfg.Name
	cfgDSN.ParseTime = true
	cfgDSN.ClientFoundRows = true
	cfgDSN.Params = map[string]string{"charset": "utf8mb4"}
	if cfg.TLS {
		cfgDSN.TLSConfig = tlsConfigName
	}
	return cfgDSN.FormatDSN()
}

// Open connects to the database described by cfg and verifies the connection
func Open(cfg config.DatabaseConfig) (*Connection, error) {
	if cfg.TLS {
		tlsOnce.Do(func() {
			if err := mysql.RegisterTLSConfig(tlsConfigName, &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: cfg.Host,
			}); err != nil {
				logrus.WithError(err).Error("Failed to register TLS config")
			}
		})
	}

	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// MaxIdleConns matches MaxOpenConns so pooled connections are not churned
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{db: db}, nil
}

// NewConnection wraps an existing pool, e.g. one created by sqlmock
func NewConnection(db *sql.DB) *Connection {
	return &Connection{db: db}
}

// QueryContext executes a SELECT query with context
func (c *Connection) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a SELECT query with context that returns at most one row
func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// ExecContext executes an INSERT, UPDATE, or DELETE query with context
func (c *Connection) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a new transaction with context
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, opts)
}

// PingContext verifies the database is reachable
func (c *Connection) PingContext(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying *sql.DB connection
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.db.Close()
}
