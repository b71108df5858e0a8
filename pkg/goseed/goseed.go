// Package goseed runs subset dumps from Go code. The goseed command is a
// thin layer over it.
//
// A program that already has GORM models can hand them to Open instead of
// declaring the catalog in YAML, and can register raw record mutations that
// the configuration file cannot express:
//
//	cfg, _ := goseed.LoadConfig("goseed.yaml")
//	s, err := goseed.Open(ctx, cfg,
//		goseed.WithModels(&User{}, &Order{}),
//		goseed.Customize("User", func(r *goseed.Record) error {
//			r.Set("password", nil)
//			return nil
//		}),
//	)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	res, err := s.Dump(ctx, out)
package goseed

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dbsmedya/goseed/internal/config"
	"github.com/dbsmedya/goseed/internal/database"
	"github.com/dbsmedya/goseed/internal/dumper"
	"github.com/dbsmedya/goseed/internal/logger"
	"github.com/dbsmedya/goseed/internal/schema"
	"github.com/dbsmedya/goseed/internal/transform"
	"github.com/dbsmedya/goseed/internal/types"
)

type (
	// Config is the complete goseed configuration.
	Config = config.Config
	// Root is one root query of a Config.
	Root = config.RootConfig
	// Record is one fetched row, handed to customizers before it is written.
	Record = types.Record
	// Result describes a finished dump.
	Result = dumper.Result
	// Logger is the structured logger used by a session.
	Logger = logger.Logger
)

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration with default values and no roots.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// Option configures Open.
type Option func(*options)

type options struct {
	offline     bool
	models      []interface{}
	customizers []customizer
	log         *logger.Logger
}

type customizer struct {
	model string
	fn    func(*Record) error
}

// WithModels adds GORM model structs to the catalog. Models declared in the
// configuration override them, table by table.
func WithModels(values ...interface{}) Option {
	return func(o *options) { o.models = append(o.models, values...) }
}

// Customize registers a mutation of every record of model. Customizers run
// after the configured transforms, in registration order.
func Customize(model string, fn func(*Record) error) Option {
	return func(o *options) { o.customizers = append(o.customizers, customizer{model: model, fn: fn}) }
}

// WithLogger replaces the logger built from the logging section.
func WithLogger(log *Logger) Option {
	return func(o *options) { o.log = log }
}

// Offline builds the catalog without connecting to the source. Such a
// session can plan but not dump.
func Offline() Option {
	return func(o *options) { o.offline = true }
}

// Session holds the source connection, the catalog and the dumper of one
// configuration.
type Session struct {
	cfg     *Config
	log     *logger.Logger
	manager *database.Manager
	catalog *schema.Registry
	dumper  *dumper.Dumper
}

// Open validates cfg, connects to the source unless Offline is given, and
// builds the catalog and the transform pipeline.
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if o.log == nil {
		log, err := logger.New(&cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		o.log = log
	}

	reflected, err := schema.FromGORM(o.models...)
	if err != nil {
		return nil, err
	}
	pipeline, err := transform.FromConfig(cfg.Transforms)
	if err != nil {
		return nil, err
	}
	for _, c := range o.customizers {
		if err := pipeline.Customize(c.model, c.fn); err != nil {
			return nil, err
		}
	}

	mgr, err := database.NewManager(&cfg.Source)
	if err != nil {
		return nil, err
	}
	s := &Session{cfg: cfg, log: o.log}

	var db *sql.DB
	if !o.offline {
		if err := mgr.Connect(ctx); err != nil {
			return nil, err
		}
		s.manager = mgr
		if err := mgr.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		db = mgr.Source
	}

	s.catalog, err = schema.Build(ctx, cfg.Catalog, db, mgr.Dialect, mgr.SchemaName(), reflected...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	s.dumper, err = dumper.New(cfg, db, mgr.Dialect, s.catalog, pipeline, o.log)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Dump writes the subset to out and closes it.
func (s *Session) Dump(ctx context.Context, out io.WriteCloser) (*Result, error) {
	return s.dumper.Run(ctx, out)
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() *Config { return s.cfg }

// Catalog returns the models of the session.
func (s *Session) Catalog() *schema.Registry { return s.catalog }

// Dumper returns the dumper, for plans, estimates and preflight checks.
func (s *Session) Dumper() *dumper.Dumper { return s.dumper }

// SchemaName is the MySQL database or PostgreSQL schema of the source, and
// empty for SQLite or an offline session.
func (s *Session) SchemaName() string {
	if s.manager == nil {
		return ""
	}
	return s.manager.SchemaName()
}

// Close releases the source connection and flushes the logger.
func (s *Session) Close() {
	if s.manager != nil {
		if err := s.manager.Close(); err != nil {
			s.log.Warnf("Failed to close database: %v", err)
		}
		s.manager = nil
	}
	_ = s.log.Sync()
}
