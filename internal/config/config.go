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
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Log      LogConfig
}

// DatabaseConfig holds database connection configuration.
// It is built once at startup and treated as read-only afterwards.
type DatabaseConfig struct {
	Dialect                        string
	Host                           string
	Port                           int
	User                           string
	Password                       string
	DBName                         string
	SSLMode                        string
	CloudSQLInstanceConnectionName string
	UsePrivateIP                   bool

	// Pool tuning
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration // forced recycle interval
	ConnMaxIdleTime time.Duration
	ConnectAttempts int // startup reachability probes
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// SupportedDialects lists every dialect name a handler is registered under.
var SupportedDialects = []string{"postgres", "cloudsqlpostgres", "mysql", "cloudsqlmysql", "sqlserver", "cloudsqlsqlserver"}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect:         "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "",
			DBName:          "postgres",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
			ConnectAttempts: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// IsCloudSQL reports whether the dialect connects through the Cloud SQL dialer.
func (c DatabaseConfig) IsCloudSQL() bool {
	return strings.HasPrefix(c.Dialect, "cloudsql")
}

// BaseDialect strips the cloudsql prefix, e.g. "cloudsqlmysql" -> "mysql".
func (c DatabaseConfig) BaseDialect() string {
	return strings.TrimPrefix(c.Dialect, "cloudsql")
}

// Validate checks the invariants a connection needs before any pool is opened.
func (c DatabaseConfig) Validate() error {
	if !isSupportedDialect(c.Dialect) {
		return fmt.Errorf("unsupported dialect: %s (only %s are supported)", c.Dialect, strings.Join(SupportedDialects, ", "))
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.IsCloudSQL() {
		if c.CloudSQLInstanceConnectionName == "" {
			return fmt.Errorf("cloud SQL instance connection name is required for dialect %s", c.Dialect)
		}
	} else if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if strings.TrimSpace(c.User) == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if strings.TrimSpace(c.DBName) == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	return nil
}

// WithDatabase returns a copy of the config targeting another database on the same server.
func (c DatabaseConfig) WithDatabase(name string) DatabaseConfig {
	c.DBName = name
	return c
}

// ConnectionString derives the driver DSN for standard (non Cloud SQL) connections.
// Every standard pool is opened with it, so Redacted logs the same string.
func (c DatabaseConfig) ConnectionString() string {
	hostPort := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	switch c.BaseDialect() {
	case "mysql":
		m := mysql.NewConfig()
		m.User = c.User
		m.Passwd = c.Password
		m.Net = "tcp"
		m.Addr = hostPort
		m.DBName = c.DBName
		m.ParseTime = true
		return m.FormatDSN()
	case "sqlserver":
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.User, c.Password),
			Host:     hostPort,
			RawQuery: url.Values{"database": {c.DBName}}.Encode(),
		}
		return u.String()
	default:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := &url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     hostPort,
			Path:     "/" + c.DBName,
			RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
		}
		return u.String()
	}
}

// Redacted returns the connection string with the password masked, for logging.
func (c DatabaseConfig) Redacted() string {
	if c.Password == "" {
		return c.ConnectionString()
	}
	masked := c
	masked.Password = "xxxxx"
	return masked.ConnectionString()
}

func isSupportedDialect(dialect string) bool {
	for _, d := range SupportedDialects {
		if d == dialect {
			return true
		}
	}
	return false
}
