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
// Package report renders catalog and gateway results as plain text for
// terminal output. Every function is pure: it only reads the values it is
// given.
package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
)

// maxDisplayedRows bounds the rows FormatQueryResult prints.
const maxDisplayedRows = 10

var printer = message.NewPrinter(language.English)

// FormatTableList renders a numbered list of table names.
func FormatTableList(tables []string) string {
	if len(tables) == 0 {
		return "No tables found in the database"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tables in the database:\n", len(tables))
	for i, t := range tables {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	return strings.TrimSpace(b.String())
}

// FormatDatabaseList renders the databases visible on the server.
func FormatDatabaseList(databases []string) string {
	if len(databases) == 0 {
		return "No databases found on the server"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d databases on the server:\n", len(databases))
	for i, d := range databases {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d)
	}
	return strings.TrimSpace(b.String())
}

// FormatTableSchema renders columns, foreign keys and indexes of a table.
func FormatTableSchema(schema database.TableSchema) string {
	if len(schema.Columns) == 0 {
		return fmt.Sprintf("No schema information found for table '%s'", schema.TableName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Schema for table '%s':\n\n", schema.TableName)
	fmt.Fprintf(&b, "Columns (%d):\n", len(schema.Columns))
	for _, col := range schema.Columns {
		nullable := "NOT NULL"
		if col.Nullable {
			nullable = "NULL"
		}
		var markers string
		if col.PrimaryKey {
			markers += " [PK]"
		}
		if col.ForeignKey != nil {
			markers += " [FK]"
		}
		fmt.Fprintf(&b, "  - %s: %s (%s)%s\n", col.Name, col.Type, nullable, markers)
		if col.Default != nil && *col.Default != "" {
			fmt.Fprintf(&b, "    DEFAULT: %s\n", *col.Default)
		}
	}

	if len(schema.ForeignKeys) > 0 {
		fmt.Fprintf(&b, "\nForeign Keys (%d):\n", len(schema.ForeignKeys))
		for _, fk := range schema.ForeignKeys {
			fmt.Fprintf(&b, "  - %s -> %s.%s\n",
				strings.Join(fk.ConstrainedColumns(), ", "),
				fk.ReferencedTable,
				strings.Join(fk.ReferredColumns(), ", "))
		}
	}

	if len(schema.Indexes) > 0 {
		fmt.Fprintf(&b, "\nIndexes (%d):\n", len(schema.Indexes))
		for _, idx := range schema.Indexes {
			unique := ""
			if idx.Unique {
				unique = " (UNIQUE)"
			}
			fmt.Fprintf(&b, "  - %s: %s%s\n", idx.Name, strings.Join(idx.Columns, ", "), unique)
		}
	}
	return b.String()
}

// FormatQueryResult renders a gateway result. At most ten rows are shown.
func FormatQueryResult(query string, result database.QueryResult) string {
	if !result.Success {
		return fmt.Sprintf("Query execution failed: %s\nQuery: %s", result.Error, query)
	}

	var b strings.Builder
	b.WriteString("Query executed successfully")
	if result.ExecutionTime != nil {
		fmt.Fprintf(&b, " (took %.3fs)", result.ExecutionTime.Seconds())
	}
	fmt.Fprintf(&b, "\nQuery: %s\n\n", query)

	switch {
	case len(result.Rows) > 0:
		fmt.Fprintf(&b, "Results (%d rows):\n", len(result.Rows))
		shown := result.Rows
		if len(shown) > maxDisplayedRows {
			shown = shown[:maxDisplayedRows]
		}
		writeGrid(&b, result.Columns, shown)
		if extra := len(result.Rows) - maxDisplayedRows; extra > 0 {
			fmt.Fprintf(&b, "  ... and %d more rows\n", extra)
		}
	case result.RowsAffected != nil:
		fmt.Fprintf(&b, "Rows affected: %d\n", *result.RowsAffected)
	default:
		b.WriteString("No rows returned\n")
	}
	return b.String()
}

// FormatSampleData renders every sampled row.
func FormatSampleData(sample database.SampleData) string {
	if len(sample.Rows) == 0 {
		return fmt.Sprintf("No sample data found in table '%s'", sample.TableName)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Sample data from '%s' (%d rows):\n\n", sample.TableName, sample.RowsSampled)
	writeGrid(&b, sample.Columns, sample.Rows)
	return b.String()
}

// FormatDatabaseOverview renders one summary line per table.
func FormatDatabaseOverview(schema database.DatabaseSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database Overview: '%s'\n", schema.DatabaseName)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("-", len(schema.DatabaseName)+20))
	fmt.Fprintf(&b, "Total Tables: %d\n\n", schema.TotalTables)

	if len(schema.Tables) == 0 {
		return b.String()
	}
	b.WriteString("Tables Summary:\n")
	for _, name := range schema.TableNames() {
		table, _ := schema.Table(name)
		fmt.Fprintf(&b, "  - %s: %d columns", name, len(table.Columns))
		if len(table.PrimaryKeys) > 0 {
			fmt.Fprintf(&b, ", PK: %s", strings.Join(table.PrimaryKeys, ", "))
		}
		if len(table.ForeignKeys) > 0 {
			fmt.Fprintf(&b, ", %d FK(s)", len(table.ForeignKeys))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatStatistics renders counts, the row total and per-column details.
func FormatStatistics(stats database.TableStatistics) string {
	schema := stats.Schema
	var b strings.Builder
	fmt.Fprintf(&b, "Statistics for table '%s'\n", schema.TableName)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("-", len(schema.TableName)+25))

	fmt.Fprintf(&b, "Column Count: %d\n", len(schema.Columns))
	fmt.Fprintf(&b, "Primary Keys: %d\n", len(schema.PrimaryKeys))
	fmt.Fprintf(&b, "Foreign Keys: %d\n", len(schema.ForeignKeys))
	fmt.Fprintf(&b, "Indexes: %d\n\n", len(schema.Indexes))

	if stats.RowCount != nil {
		b.WriteString(printer.Sprintf("Total Rows: %d\n\n", *stats.RowCount))
	} else {
		reason := stats.RowCountError
		if reason == "" {
			reason = "unknown error"
		}
		fmt.Fprintf(&b, "Row count: Unable to determine (%s)\n\n", reason)
	}

	b.WriteString("Column Details:\n")
	for _, col := range schema.Columns {
		fmt.Fprintf(&b, "  - %s:\n", col.Name)
		fmt.Fprintf(&b, "    - Type: %s\n", col.Type)
		fmt.Fprintf(&b, "    - Nullable: %s\n", yesNo(col.Nullable))
		if col.Default != nil && *col.Default != "" {
			fmt.Fprintf(&b, "    - Default: %s\n", *col.Default)
		}
		if col.PrimaryKey {
			b.WriteString("    - Primary Key: Yes\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeGrid(b *strings.Builder, columns []string, rows []database.Row) {
	if len(columns) > 0 {
		header := strings.Join(columns, " | ")
		fmt.Fprintf(b, "  %s\n", header)
		fmt.Fprintf(b, "  %s\n", strings.Repeat("-", len(header)))
	}
	for _, row := range rows {
		cols := columns
		if len(cols) == 0 {
			cols = sortedKeys(row)
		}
		values := make([]string, len(cols))
		for i, c := range cols {
			values[i] = formatValue(row[c])
		}
		fmt.Fprintf(b, "  %s\n", strings.Join(values, " | "))
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
