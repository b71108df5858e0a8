// Package database opens the source connection for goseed.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver, registered as "pgx"
	_ "modernc.org/sqlite"             // SQLite driver, registered as "sqlite"

	"github.com/dbsmedya/goseed/internal/config"
	"github.com/dbsmedya/goseed/internal/dialect"
)

// Manager owns the read-only source connection.
type Manager struct {
	Source  *sql.DB
	Dialect dialect.Dialect
	config  *config.DatabaseConfig

	maxRetries int
	backoff    time.Duration
}

// NewManager creates a database manager for the configured driver.
func NewManager(cfg *config.DatabaseConfig) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is nil")
	}
	d, err := dialect.For(cfg.Driver)
	if err != nil {
		return nil, err
	}
	return &Manager{
		Dialect:    d,
		config:     cfg,
		maxRetries: 3,
		backoff:    time.Second,
	}, nil
}

// Connect opens the source connection, retrying with exponential backoff.
func (m *Manager) Connect(ctx context.Context) error {
	db, err := m.connectWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	m.Source = db
	return nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context) (*sql.DB, error) {
	var err error
	backoff := m.backoff

	for i := 0; i < m.maxRetries; i++ {
		var db *sql.DB
		db, err = m.open()
		if err == nil {
			pingErr := db.PingContext(ctx)
			if pingErr == nil {
				return db, nil
			}
			db.Close()
			err = pingErr
		}

		if i < m.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", m.maxRetries, err)
}

// open creates the connection pool without contacting the server.
func (m *Manager) open() (*sql.DB, error) {
	dsn, err := BuildDSN(m.config)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(m.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, err
	}

	maxConns := m.config.MaxConnections
	if m.Dialect.Name() == "sqlite" && m.config.Path == ":memory:" {
		// every connection would see its own empty database
		maxConns = 1
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if m.config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(m.config.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// SchemaName is the namespace used for catalog introspection: the MySQL
// database, the PostgreSQL schema, or nothing for SQLite.
func (m *Manager) SchemaName() string {
	switch m.Dialect.Name() {
	case "mysql":
		return m.config.Database
	case "postgres":
		if m.config.Schema != "" {
			return m.config.Schema
		}
		return "public"
	default:
		return ""
	}
}

// BuildDSN constructs the driver specific DSN from configuration.
func BuildDSN(cfg *config.DatabaseConfig) (string, error) {
	d, err := dialect.For(cfg.Driver)
	if err != nil {
		return "", err
	}

	switch d.Name() {
	case "mysql":
		return buildMySQLDSN(cfg), nil
	case "postgres":
		return buildPostgresDSN(cfg), nil
	default:
		if cfg.Path == "" {
			return "", fmt.Errorf("sqlite path is required")
		}
		return cfg.Path, nil
	}
}

func buildMySQLDSN(cfg *config.DatabaseConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/",
		cfg.User,
		cfg.Password,
		net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	params := "?parseTime=true&loc=UTC"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

func buildPostgresDSN(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}

	q := url.Values{}
	switch cfg.TLS {
	case "disable":
		q.Set("sslmode", "disable")
	case "required":
		q.Set("sslmode", "require")
	case "preferred", "":
		q.Set("sslmode", "prefer")
	}
	if cfg.Schema != "" {
		q.Set("search_path", cfg.Schema)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// Close closes the source connection.
func (m *Manager) Close() error {
	if m.Source == nil {
		return nil
	}
	if err := m.Source.Close(); err != nil {
		return fmt.Errorf("source close: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Source == nil {
		return fmt.Errorf("source is not connected")
	}
	if err := m.Source.PingContext(ctx); err != nil {
		return fmt.Errorf("source ping failed: %w", err)
	}
	return nil
}
