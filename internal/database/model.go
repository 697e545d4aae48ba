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
	"sort"
	"strings"
	"time"
)

// Column describes one column of a table as reported by the catalog.
type Column struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Nullable   bool        `json:"nullable"`
	Default    *string     `json:"default,omitempty"`
	PrimaryKey bool        `json:"primary_key"`
	ForeignKey *ForeignKey `json:"foreign_key,omitempty"`
	MaxLength  *int64      `json:"max_length,omitempty"`
	Precision  *int64      `json:"precision,omitempty"`
	Scale      *int64      `json:"scale,omitempty"`
}

// ColumnPair links a constrained column to the column it references.
type ColumnPair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ForeignKey is a foreign key constraint on a table. Columns keeps the
// constraint's ordinal order.
type ForeignKey struct {
	Name            string       `json:"name,omitempty"`
	ReferencedTable string       `json:"referred_table"`
	Columns         []ColumnPair `json:"columns"`
}

// ConstrainedColumns returns the local column names in constraint order.
func (fk ForeignKey) ConstrainedColumns() []string {
	out := make([]string, len(fk.Columns))
	for i, p := range fk.Columns {
		out[i] = p.From
	}
	return out
}

// ReferredColumns returns the referenced column names in constraint order.
func (fk ForeignKey) ReferredColumns() []string {
	out := make([]string, len(fk.Columns))
	for i, p := range fk.Columns {
		out[i] = p.To
	}
	return out
}

// Index is a table index.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// TableSchema is the structure of a single table. An empty Columns slice
// means the table is absent or has no columns.
type TableSchema struct {
	TableName   string       `json:"table_name"`
	Columns     []Column     `json:"columns"`
	PrimaryKeys []string     `json:"primary_keys"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
	Indexes     []Index      `json:"indexes"`
	RowCount    *int64       `json:"row_count,omitempty"`
}

// Column returns the named column, or nil.
func (t TableSchema) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns column names in ordinal order.
func (t TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func emptyTableSchema(name string) TableSchema {
	return TableSchema{
		TableName:   strings.TrimSpace(name),
		Columns:     []Column{},
		PrimaryKeys: []string{},
		ForeignKeys: []ForeignKey{},
		Indexes:     []Index{},
	}
}

// DatabaseSchema is a point-in-time snapshot of every table in a database.
type DatabaseSchema struct {
	DatabaseName string                 `json:"database_name"`
	Tables       map[string]TableSchema `json:"tables"`
	TotalTables  int                    `json:"total_tables"`
}

// TableNames returns the table names sorted lexicographically.
func (s DatabaseSchema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table looks up a table by name.
func (s DatabaseSchema) Table(name string) (TableSchema, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

// Row is one result row keyed by column name.
type Row map[string]any

// QueryResult is the outcome of a statement sent through the gateway.
// On success exactly one of Rows and RowsAffected is set.
type QueryResult struct {
	Success       bool           `json:"success"`
	Rows          []Row          `json:"data,omitempty"`
	RowsAffected  *int64         `json:"rows_affected,omitempty"`
	Columns       []string       `json:"columns,omitempty"`
	ExecutionTime *time.Duration `json:"execution_time,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// SampleData holds a bounded sample of rows from a table.
type SampleData struct {
	TableName   string   `json:"table_name"`
	Rows        []Row    `json:"rows"`
	RowsSampled int      `json:"total_rows_sampled"`
	Columns     []string `json:"columns"`
}

func emptySample(table string) SampleData {
	return SampleData{TableName: table, Rows: []Row{}, Columns: []string{}}
}

// TableStatistics combines a table's structure with its row count.
// RowCount is nil when the count query failed; RowCountError then says why.
type TableStatistics struct {
	Schema        TableSchema `json:"schema"`
	RowCount      *int64      `json:"row_count,omitempty"`
	RowCountError string      `json:"row_count_error,omitempty"`
}
