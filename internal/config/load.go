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
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Viper keys. Flags in cmd/ are bound to the same keys.
const (
	KeyDialect         = "database.dialect"
	KeyHost            = "database.host"
	KeyPort            = "database.port"
	KeyUser            = "database.user"
	KeyPassword        = "database.password"
	KeyDBName          = "database.name"
	KeySSLMode         = "database.sslmode"
	KeyCloudSQLName    = "database.cloudsql_instance_connection_name"
	KeyCloudSQLPrivate = "database.cloudsql_use_private_ip"
	KeyMaxOpenConns    = "database.max_open_conns"
	KeyMaxIdleConns    = "database.max_idle_conns"
	KeyConnMaxLifetime = "database.conn_max_lifetime"
	KeyConnMaxIdleTime = "database.conn_max_idle_time"
	KeyConnectAttempts = "database.connect_attempts"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
)

// envAliases maps a key to the legacy environment variables accepted for it,
// checked after the DBGW_ prefixed name.
var envAliases = map[string][]string{
	KeyHost:     {"POSTGRES_HOST"},
	KeyPort:     {"POSTGRES_PORT"},
	KeyUser:     {"POSTGRES_USER"},
	KeyPassword: {"POSTGRES_PASSWORD"},
	KeyDBName:   {"POSTGRES_DB"},
}

// LoadDotEnv loads variables from a .env file into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// SetDefaults registers the default values and environment bindings on v.
func SetDefaults(v *viper.Viper) error {
	d := Default()
	v.SetDefault(KeyDialect, d.Database.Dialect)
	v.SetDefault(KeyHost, d.Database.Host)
	v.SetDefault(KeyPort, d.Database.Port)
	v.SetDefault(KeyUser, d.Database.User)
	v.SetDefault(KeyPassword, d.Database.Password)
	v.SetDefault(KeyDBName, d.Database.DBName)
	v.SetDefault(KeySSLMode, d.Database.SSLMode)
	v.SetDefault(KeyCloudSQLName, "")
	v.SetDefault(KeyCloudSQLPrivate, false)
	v.SetDefault(KeyMaxOpenConns, d.Database.MaxOpenConns)
	v.SetDefault(KeyMaxIdleConns, d.Database.MaxIdleConns)
	v.SetDefault(KeyConnMaxLifetime, d.Database.ConnMaxLifetime)
	v.SetDefault(KeyConnMaxIdleTime, d.Database.ConnMaxIdleTime)
	v.SetDefault(KeyConnectAttempts, d.Database.ConnectAttempts)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFormat, d.Log.Format)

	for _, key := range v.AllKeys() {
		envs := append([]string{envName(key)}, envAliases[key]...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the layered configuration (flags > env > defaults) from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Dialect:                        v.GetString(KeyDialect),
			Host:                           v.GetString(KeyHost),
			Port:                           v.GetInt(KeyPort),
			User:                           v.GetString(KeyUser),
			Password:                       v.GetString(KeyPassword),
			DBName:                         v.GetString(KeyDBName),
			SSLMode:                        v.GetString(KeySSLMode),
			CloudSQLInstanceConnectionName: v.GetString(KeyCloudSQLName),
			UsePrivateIP:                   v.GetBool(KeyCloudSQLPrivate),
			MaxOpenConns:                   v.GetInt(KeyMaxOpenConns),
			MaxIdleConns:                   v.GetInt(KeyMaxIdleConns),
			ConnMaxLifetime:                v.GetDuration(KeyConnMaxLifetime),
			ConnMaxIdleTime:                v.GetDuration(KeyConnMaxIdleTime),
			ConnectAttempts:                v.GetInt(KeyConnectAttempts),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	return cfg, nil
}

func envName(key string) string {
	return "DBGW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
