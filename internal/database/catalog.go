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
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	errEmptyTableName = errors.New("table name cannot be empty")
	errNoPool         = errors.New("database connection pool is not initialized")
)

// ListTables returns the table names reported by the engine's catalog.
func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	if db.Handler == nil {
		return nil, &IntrospectionError{Msg: "failed to list tables", Err: fmt.Errorf("dialect handler not initialized")}
	}
	tables, err := db.Handler.ListTables(ctx, db)
	if err != nil {
		return nil, &IntrospectionError{Msg: "failed to list tables", Err: err}
	}
	if tables == nil {
		tables = []string{}
	}
	return tables, nil
}

// DescribeTable reads columns, primary key, foreign keys and indexes for a
// table. A table without columns yields an empty schema and no error.
func (db *DB) DescribeTable(ctx context.Context, tableName string) (TableSchema, error) {
	tableName = strings.TrimSpace(tableName)
	schema := emptyTableSchema(tableName)
	if tableName == "" {
		return schema, &IntrospectionError{Msg: "invalid table name", Err: errEmptyTableName}
	}
	if db.Handler == nil {
		return schema, &IntrospectionError{Table: tableName, Msg: "describe table", Err: fmt.Errorf("dialect handler not initialized")}
	}

	columns, err := db.Handler.ListColumns(ctx, db, tableName)
	if err != nil {
		return schema, &IntrospectionError{Table: tableName, Msg: "failed to list columns", Err: err}
	}
	if len(columns) == 0 {
		return schema, nil
	}
	for i := range columns {
		columns[i].Name = strings.TrimSpace(columns[i].Name)
	}

	pkColumns, err := db.Handler.GetPrimaryKey(ctx, db, tableName)
	if err != nil {
		return emptyTableSchema(tableName), &IntrospectionError{Table: tableName, Msg: "failed to get primary key", Err: err}
	}

	foreignKeys, err := db.Handler.GetForeignKeys(ctx, db, tableName)
	if err != nil {
		return emptyTableSchema(tableName), &IntrospectionError{Table: tableName, Msg: "failed to get foreign keys", Err: err}
	}

	indexes, err := db.Handler.GetIndexes(ctx, db, tableName)
	if err != nil {
		return emptyTableSchema(tableName), &IntrospectionError{Table: tableName, Msg: "failed to get indexes", Err: err}
	}

	schema.Columns = columns
	schema.PrimaryKeys = markPrimaryKeys(schema.Columns, pkColumns)
	schema.ForeignKeys = attachForeignKeys(schema.Columns, foreignKeys)
	if indexes != nil {
		schema.Indexes = indexes
	}
	return schema, nil
}

// GetTableSchema is DescribeTable with failures degraded to an empty schema.
func (db *DB) GetTableSchema(ctx context.Context, tableName string) TableSchema {
	schema, err := db.DescribeTable(ctx, tableName)
	if err != nil {
		db.log().Warn("error getting table schema",
			zap.String("table", tableName),
			zap.Error(err))
		return emptyTableSchema(tableName)
	}
	return schema
}

// GetDatabaseSchema builds a fresh snapshot of every table. A failed table
// listing yields zero tables, a failed table yields an empty entry.
func (db *DB) GetDatabaseSchema(ctx context.Context) DatabaseSchema {
	schema := DatabaseSchema{
		DatabaseName: db.Config.DBName,
		Tables:       make(map[string]TableSchema),
	}

	tables, err := db.ListTables(ctx)
	if err != nil {
		db.log().Warn("error listing tables", zap.Error(err))
		tables = nil
	}

	for _, table := range tables {
		if ctx.Err() != nil {
			db.log().Warn("schema snapshot interrupted",
				zap.Int("processed", len(schema.Tables)),
				zap.Int("listed", len(tables)),
				zap.Error(ctx.Err()))
			break
		}
		schema.Tables[table] = db.GetTableSchema(ctx, table)
	}

	schema.TotalTables = len(schema.Tables)
	return schema
}

// markPrimaryKeys flags the key columns and returns the key column names that
// exist in columns, in key order.
func markPrimaryKeys(columns []Column, pkColumns []string) []string {
	keys := make([]string, 0, len(pkColumns))
	for _, name := range pkColumns {
		for i := range columns {
			if columns[i].Name == name {
				columns[i].PrimaryKey = true
				keys = append(keys, name)
				break
			}
		}
	}
	return keys
}

// attachForeignKeys drops malformed constraints and links each constrained
// column to the first constraint it takes part in.
func attachForeignKeys(columns []Column, fks []ForeignKey) []ForeignKey {
	out := make([]ForeignKey, 0, len(fks))
	for _, fk := range fks {
		if fk.ReferencedTable == "" || len(fk.Columns) == 0 {
			continue
		}
		out = append(out, fk)
	}
	for i := range out {
		fk := out[i]
		for _, pair := range fk.Columns {
			for c := range columns {
				if columns[c].Name == pair.From && columns[c].ForeignKey == nil {
					ref := fk
					columns[c].ForeignKey = &ref
				}
			}
		}
	}
	return out
}
