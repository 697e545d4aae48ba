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
	"database/sql"
	"strings"
)

// ForeignKeyRow is one constrained/referenced column pair as returned by a
// catalog query, before grouping into constraints.
type ForeignKeyRow struct {
	Constraint       string
	ReferencedTable  string
	Column           string
	ReferencedColumn string
}

// IndexRow is one indexed column as returned by a catalog query.
type IndexRow struct {
	Index  string
	Column string
	Unique bool
}

// GroupForeignKeys folds rows ordered by constraint and column position into
// constraints. Pair order within a constraint follows row order.
func GroupForeignKeys(rows []ForeignKeyRow) []ForeignKey {
	fks := []ForeignKey{}
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.Constraint]
		if !ok {
			fks = append(fks, ForeignKey{Name: r.Constraint, ReferencedTable: r.ReferencedTable})
			i = len(fks) - 1
			index[r.Constraint] = i
		}
		fks[i].Columns = append(fks[i].Columns, ColumnPair{From: r.Column, To: r.ReferencedColumn})
	}
	return fks
}

// GroupIndexes folds rows ordered by index and column position into indexes.
func GroupIndexes(rows []IndexRow) []Index {
	indexes := []Index{}
	pos := make(map[string]int)
	for _, r := range rows {
		i, ok := pos[r.Index]
		if !ok {
			indexes = append(indexes, Index{Name: r.Index, Unique: r.Unique, Columns: []string{}})
			i = len(indexes) - 1
			pos[r.Index] = i
		}
		indexes[i].Columns = append(indexes[i].Columns, r.Column)
	}
	return indexes
}

// NullableFlag interprets information_schema's IS_NULLABLE column.
func NullableFlag(isNullable string) bool {
	return strings.EqualFold(strings.TrimSpace(isNullable), "YES")
}

// StringPtr returns nil for a NULL value.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Int64Ptr returns nil for a NULL value.
func Int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	n := ni.Int64
	return &n
}
