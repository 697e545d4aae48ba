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
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/report"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/utils"
)

var (
	queryFile    string
	queryTimeout time.Duration
)

// statementResult pairs a statement with its gateway result.
type statementResult struct {
	Query string `json:"query"`
	database.QueryResult
}

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Run read-only SELECT statements",
	Long: `Runs one statement given as arguments, or every statement of --file
(separated by ";" at end of line). Statements that do not start with SELECT
are rejected without contacting the database. The command exits non-zero when
any statement fails.`,
	Example: `./db_catalog_gateway query "SELECT id, name FROM users LIMIT 2"
./db_catalog_gateway query --file ./queries.sql --output json`,
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	statements, err := queryStatements(args)
	if err != nil {
		return err
	}

	results := make([]statementResult, len(statements))
	var pending []int
	for i, stmt := range statements {
		results[i].Query = stmt
		if !database.IsSelect(stmt) {
			logger.Info("rejected non-SELECT statement", zap.String("sql", stmt))
			results[i].QueryResult = database.QueryResult{Success: false, Error: database.ErrPolicyViolation.Error()}
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 {
		err := withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			for _, i := range pending {
				results[i].QueryResult = execute(ctx, db, results[i].Query)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	failed := 0
	texts := make([]string, len(results))
	for i, r := range results {
		shown := r.QueryResult
		if !shown.Success {
			failed++
			shown.Error = report.EnhanceQueryError(r.Query, shown.Error)
		}
		texts[i] = report.FormatQueryResult(r.Query, shown)
	}

	var value any = results
	if len(results) == 1 {
		value = results[0]
	}
	if err := writeResult(cmd, value, strings.Join(texts, "\n")); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed", failed, len(results))
	}
	return nil
}

func execute(ctx context.Context, db *database.DB, query string) database.QueryResult {
	if queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, queryTimeout)
		defer cancel()
	}
	return db.Execute(ctx, query)
}

func queryStatements(args []string) ([]string, error) {
	if queryFile != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("pass either a statement or --file, not both")
		}
		stmts, err := utils.ReadSQLStatementsFromFile(queryFile)
		if err != nil {
			return nil, err
		}
		if len(stmts) == 0 {
			return nil, fmt.Errorf("no statements found in %s", queryFile)
		}
		return stmts, nil
	}
	stmt := strings.TrimSpace(strings.Join(args, " "))
	if stmt == "" {
		return nil, fmt.Errorf("a SQL statement or --file is required")
	}
	return []string{stmt}, nil
}

func init() {
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "File with statements to run")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 0, "Per-statement timeout (0 disables)")
}
