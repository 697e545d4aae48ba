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
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// MaxSampleRows caps every sample regardless of the requested limit.
const MaxSampleRows = 20

// ClampSampleLimit bounds limit to [0, MaxSampleRows].
func ClampSampleLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	if limit > MaxSampleRows {
		return MaxSampleRows
	}
	return limit
}

// GetSampleData fetches at most MaxSampleRows rows from a table through the
// query gateway. Any failure yields an empty sample.
func (db *DB) GetSampleData(ctx context.Context, tableName string, limit int) SampleData {
	tableName = strings.TrimSpace(tableName)
	if tableName == "" || db.Handler == nil {
		return emptySample(tableName)
	}

	query := db.Handler.SampleQuery(db.Quote(tableName), ClampSampleLimit(limit))
	result := db.Execute(ctx, query)
	if !result.Success {
		db.log().Warn("error getting sample data",
			zap.String("table", tableName),
			zap.String("error", result.Error))
		return emptySample(tableName)
	}

	sample := emptySample(tableName)
	if result.Rows != nil {
		sample.Rows = result.Rows
	}
	if result.Columns != nil {
		sample.Columns = result.Columns
	}
	sample.RowsSampled = len(sample.Rows)
	return sample
}

// GetTableStatistics returns the table structure with its row count. A table
// without columns is an error; a failed count is reported in RowCountError.
func (db *DB) GetTableStatistics(ctx context.Context, tableName string) (TableStatistics, error) {
	schema := db.GetTableSchema(ctx, tableName)
	if len(schema.Columns) == 0 {
		return TableStatistics{Schema: schema}, fmt.Errorf("table '%s': %w", strings.TrimSpace(tableName), ErrTableNotFound)
	}

	stats := TableStatistics{Schema: schema}
	result := db.Execute(ctx, db.Handler.CountQuery(db.Quote(schema.TableName)))
	switch {
	case !result.Success:
		stats.RowCountError = result.Error
	case len(result.Rows) == 0:
		stats.RowCountError = "count query returned no rows"
	default:
		n, err := toInt64(result.Rows[0]["row_count"])
		if err != nil {
			stats.RowCountError = err.Error()
			break
		}
		stats.RowCount = &n
		stats.Schema.RowCount = &n
	}
	if stats.RowCountError != "" {
		db.log().Warn("unable to determine row count",
			zap.String("table", schema.TableName),
			zap.String("error", stats.RowCountError))
	}
	return stats, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected row count type %T", v)
	}
}
