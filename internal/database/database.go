/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/config"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/logging"
)

// DialectHandler implements the engine specific parts of connection setup,
// catalog introspection and statement generation.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	// DriverName is the database/sql driver name, used for sqlx bind types.
	DriverName() string
	QuoteIdentifier(name string) string
	// AdminDatabase is the always-present database used for server level discovery.
	AdminDatabase() string
	ListDatabases(ctx context.Context, db *DB) ([]string, error)
	ListTables(ctx context.Context, db *DB) ([]string, error)
	ListColumns(ctx context.Context, db *DB, tableName string) ([]Column, error)
	GetPrimaryKey(ctx context.Context, db *DB, tableName string) ([]string, error)
	GetForeignKeys(ctx context.Context, db *DB, tableName string) ([]ForeignKey, error)
	GetIndexes(ctx context.Context, db *DB, tableName string) ([]Index, error)
	// SampleQuery and CountQuery receive an already quoted table reference.
	SampleQuery(quotedTable string, limit int) string
	CountQuery(quotedTable string) string
}

// DB holds the database connection pool and dialect handler. A DB is safe
// for concurrent use; every operation borrows a pooled connection for the
// duration of a single statement.
type DB struct {
	Pool    *sqlx.DB
	Handler DialectHandler
	Config  config.DatabaseConfig

	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

// RegisterDialectHandler makes a handler available under a dialect name.
func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := dialectHandlers[dialect]; exists {
		zap.L().Warn("dialect handler is being overwritten", zap.String("dialect", dialect))
	}
	dialectHandlers[dialect] = handler
}

// GetDialectHandler returns the handler registered for dialect.
func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// New validates cfg, opens a pool for its dialect and verifies the database
// is reachable. Failures to reach the engine are reported as *ConnectionError,
// bad configuration as *InvalidConfigError.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	logger = logging.OrNop(logger)

	if err := cfg.Validate(); err != nil {
		return nil, &InvalidConfigError{Msg: "database config", Err: err}
	}
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, &InvalidConfigError{Msg: "dialect", Err: err}
	}

	pool, err := openPool(handler, cfg)
	if err != nil {
		return nil, &ConnectionError{Msg: fmt.Sprintf("failed to create database pool for dialect %s", cfg.Dialect), Err: err}
	}
	configurePool(pool, cfg)

	db := NewFromPool(pool, handler, cfg, logger)

	opts := DefaultRetryOptions
	if cfg.ConnectAttempts > 0 {
		opts.MaxAttempts = cfg.ConnectAttempts
	}
	if err := withRetry(ctx, logger, opts, db.Ping); err != nil {
		pool.Close()
		logger.Error("failed to connect to database",
			zap.String("dialect", cfg.Dialect),
			zap.String("database", cfg.DBName),
			zap.Error(err))
		return nil, &ConnectionError{Msg: fmt.Sprintf("ping failed for database %s", cfg.DBName), Err: err}
	}

	logger.Info("connected to database",
		zap.String("dialect", cfg.Dialect),
		zap.String("database", cfg.DBName))
	return db, nil
}

// NewFromPool wraps an already opened pool. No reachability check is done.
func NewFromPool(pool *sql.DB, handler DialectHandler, cfg config.DatabaseConfig, logger *zap.Logger) *DB {
	return &DB{
		Pool:    sqlx.NewDb(pool, handler.DriverName()),
		Handler: handler,
		Config:  cfg,
		logger:  logging.OrNop(logger),
	}
}

// closingConnector runs closeFn when the *sql.DB opened from it is closed.
type closingConnector struct {
	driver.Connector
	closeFn func() error
}

func (c closingConnector) Close() error {
	return c.closeFn()
}

// WithCloser ties closeFn to the lifetime of a pool opened with
// sql.OpenDB(connector). Cloud SQL handlers use it to release their dialer.
func WithCloser(connector driver.Connector, closeFn func() error) driver.Connector {
	return closingConnector{Connector: connector, closeFn: closeFn}
}

func openPool(handler DialectHandler, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.IsCloudSQL() {
		return handler.CreateCloudSQLPool(cfg)
	}
	return handler.CreateStandardPool(cfg)
}

// configurePool applies the pool limits. database/sql validates idle
// connections through the driver's session reset before handing them out,
// and ConnMaxLifetime forces periodic recycling.
func configurePool(pool *sql.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func (db *DB) log() *zap.Logger {
	return logging.OrNop(db.logger)
}

// GetConfig returns the configuration the pool was built from.
func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

// Ping runs the lightweight liveness probe.
func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

// Close releases all pooled connections. It is safe to call more than once.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		if db.Pool == nil {
			db.log().Warn("attempted to close a nil database connection pool")
			return
		}
		db.closeErr = db.Pool.Close()
		db.log().Debug("database connection pool closed", zap.String("database", db.Config.DBName))
	})
	return db.closeErr
}

// QueryContext runs a catalog query on the pool.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.QueryContext(ctx, query, args...)
}

// Quote quotes a possibly schema qualified name ("schema.table") part by part.
func (db *DB) Quote(name string) string {
	parts := strings.Split(strings.TrimSpace(name), ".")
	for i, p := range parts {
		parts[i] = db.Handler.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// ListDatabases returns every non-template database on the server, sorted.
// It connects to the server's administrative database on a side pool and
// returns an empty list on any failure.
func (db *DB) ListDatabases(ctx context.Context) []string {
	if db.Handler == nil {
		db.log().Warn("cannot list databases: dialect handler not initialized")
		return []string{}
	}

	side, err := db.adminConnection(ctx)
	if err != nil {
		db.log().Warn("error listing databases", zap.Error(err))
		return []string{}
	}
	defer side.Close()

	names, err := db.Handler.ListDatabases(ctx, side)
	if err != nil {
		db.log().Warn("error listing databases", zap.Error(err))
		return []string{}
	}
	if names == nil {
		names = []string{}
	}
	sort.Strings(names)
	return names
}

func (db *DB) adminConnection(ctx context.Context) (*DB, error) {
	cfg := db.Config.WithDatabase(db.Handler.AdminDatabase())
	pool, err := openPool(db.Handler, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open side connection to %s: %w", cfg.DBName, err)
	}
	pool.SetMaxOpenConns(1)
	side := NewFromPool(pool, db.Handler, cfg, db.logger)
	if err := side.Ping(ctx); err != nil {
		side.Close()
		return nil, fmt.Errorf("failed to reach %s: %w", cfg.DBName, err)
	}
	return side, nil
}
