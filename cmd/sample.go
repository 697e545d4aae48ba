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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/report"
)

var sampleLimit int

var sampleCmd = &cobra.Command{
	Use:     "sample <table>",
	Short:   "Show sample rows of a table",
	Long:    fmt.Sprintf(`Fetches up to --limit rows from a table, never more than %d. A failed sample is reported as empty.`, database.MaxSampleRows),
	Example: `./db_catalog_gateway sample orders --limit 10`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			sample := db.GetSampleData(ctx, args[0], sampleLimit)
			return writeResult(cmd, sample, report.FormatSampleData(sample))
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <table>",
	Short: "Show structure and row count of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			stats, err := db.GetTableStatistics(ctx, args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd, stats, report.FormatStatistics(stats))
		})
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <table>",
	Short: "Suggest exploratory queries for a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			schema := db.GetTableSchema(ctx, args[0])
			if len(schema.Columns) == 0 {
				return tableNotFound(args[0])
			}
			s := report.SuggestQueries(schema)
			return writeResult(cmd, s, report.FormatSuggestions(s))
		})
	},
}

var similarColumnsCmd = &cobra.Command{
	Use:     "similar-columns <table> <term>",
	Short:   "Find column names resembling a term",
	Example: `./db_catalog_gateway similar-columns products category_name`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			schema := db.GetTableSchema(ctx, args[0])
			if len(schema.Columns) == 0 {
				return tableNotFound(args[0])
			}
			m := report.FindSimilarColumns(schema, args[1])
			return writeResult(cmd, m, report.FormatColumnMatches(m))
		})
	},
}

func tableNotFound(table string) error {
	return fmt.Errorf("table '%s': %w", table, database.ErrTableNotFound)
}

func init() {
	sampleCmd.Flags().IntVar(&sampleLimit, "limit", 5, fmt.Sprintf("Rows to sample (at most %d)", database.MaxSampleRows))
}
