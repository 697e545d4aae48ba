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
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/report"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/utils"
)

var listDatabasesCmd = &cobra.Command{
	Use:     "list-databases",
	Short:   "List the databases on the server",
	Long:    `Connects to the server's administrative database and lists every user database. An unreachable catalog yields an empty list.`,
	Example: `./db_catalog_gateway list-databases --dialect postgres --host localhost --username user --password pass --database mydb`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			dbs := db.ListDatabases(ctx)
			logger.Debug("listed databases", zap.Int("count", len(dbs)))
			return writeResult(cmd, map[string]any{"databases": dbs, "total_count": len(dbs)}, report.FormatDatabaseList(dbs))
		})
	},
}

var listTablesCmd = &cobra.Command{
	Use:     "list-tables",
	Short:   "List the tables of the connected database",
	Example: `./db_catalog_gateway list-tables --dialect cloudsqlpostgres --username user --password pass --database mydb --cloudsql-instance-connection-name my-project:my-region:my-instance`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			tables, err := db.ListTables(ctx)
			if err != nil {
				return err
			}
			return writeResult(cmd, map[string]any{"tables": tables, "total_count": len(tables)}, report.FormatTableList(tables))
		})
	},
}

var describeCmd = &cobra.Command{
	Use:     "describe <table>[,table...]",
	Short:   "Show columns, keys and indexes of tables",
	Long:    `Describes each table. A table that does not exist, or cannot be introspected, is reported with no columns.`,
	Example: `./db_catalog_gateway describe users,orders --output json`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			var tables []string
			for _, arg := range args {
				tables = append(tables, utils.SplitList(arg)...)
			}
			schemas := make([]database.TableSchema, 0, len(tables))
			texts := make([]string, 0, len(tables))
			for _, table := range tables {
				schema := db.GetTableSchema(ctx, table)
				schemas = append(schemas, schema)
				texts = append(texts, report.FormatTableSchema(schema))
			}
			var value any = schemas
			if len(schemas) == 1 {
				value = schemas[0]
			}
			return writeResult(cmd, value, strings.Join(texts, "\n"))
		})
	},
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Summarize every table of the database",
	Long:  `Builds a schema snapshot of every table. Tables that fail introspection appear with no columns.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			schema := db.GetDatabaseSchema(ctx)
			return writeResult(cmd, schema, report.FormatDatabaseOverview(schema))
		})
	},
}

var relationshipsCmd = &cobra.Command{
	Use:   "relationships",
	Short: "Show foreign key relationships between tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			rel := report.AnalyzeRelationships(db.GetDatabaseSchema(ctx))
			return writeResult(cmd, rel, report.FormatRelationships(rel))
		})
	},
}
