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
	"strings"
	"time"

	"go.uber.org/zap"
)

// IsSelect reports whether a statement passes the read-only gate: after
// trimming whitespace it must start with the SELECT keyword, in any case.
// This is a prefix check, not a parser; WITH ... SELECT is rejected.
func IsSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}

// Execute runs a read-only statement and returns its materialized result.
// Non-SELECT statements are rejected without touching the pool. Engine
// failures are captured in the result, never returned as errors.
func (db *DB) Execute(ctx context.Context, query string) QueryResult {
	if !IsSelect(query) {
		db.log().Info("rejected non-SELECT statement", zap.String("sql", query))
		return QueryResult{Success: false, Error: ErrPolicyViolation.Error()}
	}
	return db.run(ctx, query)
}

func (db *DB) run(ctx context.Context, query string) QueryResult {
	if db.Pool == nil {
		return QueryResult{Success: false, Error: (&ExecutionError{Msg: "no pool", Err: errNoPool}).Error()}
	}

	start := time.Now()
	fail := func(msg string, err error) QueryResult {
		elapsed := time.Since(start)
		db.log().Debug("statement failed",
			zap.String("sql", query),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return QueryResult{
			Success:       false,
			ExecutionTime: &elapsed,
			Error:         (&ExecutionError{Msg: msg, Err: err}).Error(),
		}
	}

	rows, err := db.Pool.QueryxContext(ctx, query)
	if err != nil {
		return fail("query failed", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fail("failed to read result columns", err)
	}

	if len(columns) == 0 {
		// No result set: drain and report a count instead of rows.
		var affected int64
		for rows.Next() {
			affected++
		}
		if err := rows.Err(); err != nil {
			return fail("query failed", err)
		}
		elapsed := time.Since(start)
		return QueryResult{Success: true, RowsAffected: &affected, ExecutionTime: &elapsed}
	}

	records := make([]Row, 0)
	for rows.Next() {
		rec := make(map[string]any, len(columns))
		if err := rows.MapScan(rec); err != nil {
			return fail("failed to scan row", err)
		}
		records = append(records, normalizeRow(rec))
	}
	if err := rows.Err(); err != nil {
		return fail("error iterating rows", err)
	}

	elapsed := time.Since(start)
	db.log().Debug("statement executed",
		zap.String("sql", query),
		zap.Int("rows", len(records)),
		zap.Duration("duration", elapsed))

	return QueryResult{
		Success:       true,
		Rows:          records,
		Columns:       columns,
		ExecutionTime: &elapsed,
	}
}

// normalizeRow converts driver byte slices (text protocol values) to strings.
func normalizeRow(rec map[string]any) Row {
	for k, v := range rec {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
		}
	}
	return Row(rec)
}
