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
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/config"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
	_ "github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/logging"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/utils"
)

const (
	outputText = "text"
	outputJSON = "json"
)

var (
	envFile      string
	outputFormat string
	outputFile   string

	// Populated by initFlagsAndConfig before any subcommand runs.
	appConfig *config.Config
	logger    = zap.NewNop()
)

// openDatabase is swapped in tests.
var openDatabase = database.New

// flagKeys binds persistent flags to configuration keys. Flags beat
// environment variables, which beat defaults.
var flagKeys = map[string]string{
	"dialect":                           config.KeyDialect,
	"host":                              config.KeyHost,
	"port":                              config.KeyPort,
	"username":                          config.KeyUser,
	"password":                          config.KeyPassword,
	"database":                          config.KeyDBName,
	"sslmode":                           config.KeySSLMode,
	"cloudsql-instance-connection-name": config.KeyCloudSQLName,
	"cloudsql-use-private-ip":           config.KeyCloudSQLPrivate,
	"connect-attempts":                  config.KeyConnectAttempts,
	"log-level":                         config.KeyLogLevel,
	"log-format":                        config.KeyLogFormat,
}

var rootCmd = &cobra.Command{
	Use:   "db_catalog_gateway",
	Short: "Inspect a database schema and run guarded read-only queries",
	Long: `db_catalog_gateway discovers tables, columns, keys and indexes of a
relational database and runs SELECT statements against it. Any statement that
does not start with SELECT is rejected before it reaches the database.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  initFlagsAndConfig,
	PersistentPostRunE: syncLogger,
}

// initFlagsAndConfig layers flags over environment and defaults, validates
// the result and builds the logger.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	switch outputFormat {
	case outputText, outputJSON:
	default:
		return fmt.Errorf("unsupported output format: %s (only %s, %s are supported)", outputFormat, outputText, outputJSON)
	}

	v := viper.New()
	if err := config.SetDefaults(v); err != nil {
		return err
	}
	flags := cmd.Root().PersistentFlags()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	l, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	logger = l
	zap.ReplaceGlobals(logger)
	appConfig = cfg

	logger.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("dsn", cfg.Database.Redacted()))
	return nil
}

func syncLogger(cmd *cobra.Command, args []string) error {
	// Sync on stderr fails with EINVAL on some platforms; nothing to report.
	_ = logger.Sync()
	return nil
}

func setupDatabase(ctx context.Context) (*database.DB, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("database config is not initialized")
	}
	db, err := openDatabase(ctx, appConfig.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database",
			zap.String("dialect", appConfig.Database.Dialect),
			zap.String("database", appConfig.Database.DBName),
			zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// withDatabase opens a connection for the duration of fn.
func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, db *database.DB) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := setupDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

// writeResult prints value as JSON or text depending on --output, to
// --out_file when given.
func writeResult(cmd *cobra.Command, value any, text string) error {
	content := text
	if outputFormat == outputJSON {
		b, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		content = string(b)
	}
	if err := utils.WriteOutput(cmd.OutOrStdout(), outputFile, content); err != nil {
		return err
	}
	if outputFile != "" {
		logger.Info("output written", zap.String("file", outputFile))
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	d := config.Default()
	flags := rootCmd.PersistentFlags()

	// Database connection flags
	flags.String("dialect", d.Database.Dialect, fmt.Sprintf("Database dialect (%s)", strings.Join(config.SupportedDialects, ", ")))
	flags.String("host", d.Database.Host, "Database host")
	flags.Int("port", d.Database.Port, "Database port")
	flags.String("username", d.Database.User, "Database username")
	flags.String("password", d.Database.Password, "Database password")
	flags.String("database", d.Database.DBName, "Database name")
	flags.String("sslmode", d.Database.SSLMode, "SSL mode for standard PostgreSQL connections")
	flags.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (project:region:instance) - MANDATORY for CloudSQL")
	flags.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")
	flags.Int("connect-attempts", d.Database.ConnectAttempts, "Connection attempts before giving up")

	// Logging and output flags
	flags.String("log-level", d.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log-format", d.Log.Format, "Log format (console or json)")
	flags.StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	flags.StringVar(&outputFormat, "output", outputText, "Output format (text or json)")
	flags.StringVarP(&outputFile, "out_file", "o", "", "File path to write output to (optional, defaults to stdout)")

	// Add subcommands
	rootCmd.AddCommand(listDatabasesCmd)
	rootCmd.AddCommand(listTablesCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(relationshipsCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(similarColumnsCmd)
}
