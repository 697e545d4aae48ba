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
package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
)

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func shopSchema() database.DatabaseSchema {
	fk := database.ForeignKey{
		Name:            "fk_orders_customer",
		ReferencedTable: "customers",
		Columns:         []database.ColumnPair{{From: "customer_id", To: "id"}},
	}
	orders := database.TableSchema{
		TableName: "orders",
		Columns: []database.Column{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "customer_id", Type: "integer", ForeignKey: &fk},
			{Name: "status", Type: "character varying", Nullable: true, Default: strPtr("'new'::character varying")},
			{Name: "created_at", Type: "timestamp without time zone"},
			{Name: "total", Type: "numeric"},
		},
		PrimaryKeys: []string{"id"},
		ForeignKeys: []database.ForeignKey{fk},
		Indexes:     []database.Index{{Name: "idx_orders_status", Columns: []string{"status"}}},
	}
	customers := database.TableSchema{
		TableName:   "customers",
		Columns:     []database.Column{{Name: "id", Type: "integer", PrimaryKey: true}, {Name: "full_name", Type: "text"}},
		PrimaryKeys: []string{"id"},
		ForeignKeys: []database.ForeignKey{},
		Indexes:     []database.Index{},
	}
	audit := database.TableSchema{
		TableName:   "audit_log",
		Columns:     []database.Column{{Name: "entry", Type: "text"}},
		PrimaryKeys: []string{},
		ForeignKeys: []database.ForeignKey{},
		Indexes:     []database.Index{},
	}
	return database.DatabaseSchema{
		DatabaseName: "shop",
		Tables:       map[string]database.TableSchema{"orders": orders, "customers": customers, "audit_log": audit},
		TotalTables:  3,
	}
}

func TestFormatTableList(t *testing.T) {
	assert.Equal(t, "No tables found in the database", FormatTableList(nil))
	assert.Equal(t, "Found 2 tables in the database:\n1. customers\n2. orders", FormatTableList([]string{"customers", "orders"}))
}

func TestFormatDatabaseList(t *testing.T) {
	assert.Equal(t, "No databases found on the server", FormatDatabaseList([]string{}))
	assert.Contains(t, FormatDatabaseList([]string{"analytics", "shop"}), "2. shop")
}

func TestFormatTableSchema(t *testing.T) {
	orders, _ := shopSchema().Table("orders")
	out := FormatTableSchema(orders)

	assert.Contains(t, out, "Schema for table 'orders':")
	assert.Contains(t, out, "Columns (5):")
	assert.Contains(t, out, "  - id: integer (NOT NULL) [PK]\n")
	assert.Contains(t, out, "  - customer_id: integer (NOT NULL) [FK]\n")
	assert.Contains(t, out, "    DEFAULT: 'new'::character varying\n")
	assert.Contains(t, out, "Foreign Keys (1):\n  - customer_id -> customers.id\n")
	assert.Contains(t, out, "Indexes (1):\n  - idx_orders_status: status\n")

	empty := FormatTableSchema(database.TableSchema{TableName: "ghost"})
	assert.Equal(t, "No schema information found for table 'ghost'", empty)
}

func TestFormatQueryResult(t *testing.T) {
	elapsed := 1500 * time.Millisecond
	rows := make([]database.Row, 12)
	for i := range rows {
		rows[i] = database.Row{"id": i + 1, "name": nil}
	}
	result := database.QueryResult{
		Success:       true,
		Rows:          rows,
		Columns:       []string{"id", "name"},
		ExecutionTime: &elapsed,
	}

	out := FormatQueryResult("SELECT id, name FROM users", result)
	assert.Contains(t, out, "Query executed successfully (took 1.500s)")
	assert.Contains(t, out, "Results (12 rows):")
	assert.Contains(t, out, "  id | name\n  ---------\n")
	assert.Contains(t, out, "  1 | NULL\n")
	assert.Contains(t, out, "  10 | NULL\n")
	assert.NotContains(t, out, "  11 | NULL\n")
	assert.Contains(t, out, "... and 2 more rows")
}

func TestFormatQueryResult_Failure(t *testing.T) {
	out := FormatQueryResult("DROP TABLE users", database.QueryResult{Error: database.ErrPolicyViolation.Error()})
	assert.Equal(t, "Query execution failed: Only SELECT queries are allowed for security reasons\nQuery: DROP TABLE users", out)
}

func TestFormatQueryResult_RowsAffected(t *testing.T) {
	out := FormatQueryResult("SELECT pg_sleep(0)", database.QueryResult{Success: true, RowsAffected: int64Ptr(0)})
	assert.Contains(t, out, "Rows affected: 0")
}

func TestFormatSampleData(t *testing.T) {
	sample := database.SampleData{
		TableName:   "customers",
		Rows:        []database.Row{{"id": int64(1), "full_name": []byte("Ada")}},
		Columns:     []string{"id", "full_name"},
		RowsSampled: 1,
	}
	out := FormatSampleData(sample)
	assert.Contains(t, out, "Sample data from 'customers' (1 rows):")
	assert.Contains(t, out, "  1 | Ada\n")

	assert.Equal(t, "No sample data found in table 'empty'", FormatSampleData(database.SampleData{TableName: "empty"}))
}

func TestFormatDatabaseOverview(t *testing.T) {
	out := FormatDatabaseOverview(shopSchema())
	assert.Contains(t, out, "Database Overview: 'shop'")
	assert.Contains(t, out, "Total Tables: 3")
	assert.Contains(t, out, "  - orders: 5 columns, PK: id, 1 FK(s)\n")
	assert.Contains(t, out, "  - audit_log: 1 columns\n")
	assert.Less(t, strings.Index(out, "audit_log"), strings.Index(out, "customers"))
}

func TestFormatStatistics(t *testing.T) {
	orders, _ := shopSchema().Table("orders")

	out := FormatStatistics(database.TableStatistics{Schema: orders, RowCount: int64Ptr(1234567)})
	assert.Contains(t, out, "Statistics for table 'orders'")
	assert.Contains(t, out, "Column Count: 5\nPrimary Keys: 1\nForeign Keys: 1\nIndexes: 1\n")
	assert.Contains(t, out, "Total Rows: 1,234,567")
	assert.Contains(t, out, "    - Primary Key: Yes\n")
	assert.Contains(t, out, "    - Nullable: Yes\n")

	out = FormatStatistics(database.TableStatistics{Schema: orders, RowCountError: "statement timeout"})
	assert.Contains(t, out, "Row count: Unable to determine (statement timeout)")
}

func TestAnalyzeRelationships(t *testing.T) {
	rel := AnalyzeRelationships(shopSchema())
	require.Len(t, rel.Edges, 1)
	assert.Equal(t, Relationship{
		FromTable:   "orders",
		FromColumns: []string{"customer_id"},
		ToTable:     "customers",
		ToColumns:   []string{"id"},
	}, rel.Edges[0])
	assert.Equal(t, []string{"customers", "orders"}, rel.Connected)
	assert.Equal(t, []string{"audit_log"}, rel.Isolated)

	out := FormatRelationships(rel)
	assert.Contains(t, out, "Found 1 foreign key relationships:")
	assert.Contains(t, out, "  - orders.customer_id -> customers.id\n")
	assert.Contains(t, out, "Connected tables (2): customers, orders")
	assert.Contains(t, out, "Isolated tables (1): audit_log")
}

func TestAnalyzeRelationships_Empty(t *testing.T) {
	rel := AnalyzeRelationships(database.DatabaseSchema{Tables: map[string]database.TableSchema{}})
	assert.Equal(t, "No tables found in the database", FormatRelationships(rel))

	schema := shopSchema()
	delete(schema.Tables, "orders")
	out := FormatRelationships(AnalyzeRelationships(schema))
	assert.Contains(t, out, "No foreign key relationships found.")
}

func TestSuggestQueries(t *testing.T) {
	orders, _ := shopSchema().Table("orders")
	s := SuggestQueries(orders)

	assert.Equal(t, []string{"SELECT * FROM orders LIMIT 10;", "SELECT COUNT(*) FROM orders;"}, s.Basic)
	assert.Equal(t, []string{"SELECT status, COUNT(*) FROM orders GROUP BY status ORDER BY COUNT(*) DESC LIMIT 10;"}, s.Text)
	assert.Equal(t, []string{
		"SELECT MIN(id), MAX(id), AVG(id) FROM orders;",
		"SELECT MIN(customer_id), MAX(customer_id), AVG(customer_id) FROM orders;",
		"SELECT MIN(total), MAX(total), AVG(total) FROM orders;",
	}, s.Numeric)
	assert.Equal(t, []string{"SELECT MIN(created_at), MAX(created_at) FROM orders;"}, s.Date)
	assert.Equal(t, []string{"SELECT * FROM orders t1 JOIN customers t2 ON t1.customer_id = t2.id LIMIT 10;"}, s.Joins)

	for _, q := range s.All() {
		assert.True(t, database.IsSelect(q), q)
	}

	out := FormatSuggestions(s)
	assert.Contains(t, out, "  1. SELECT * FROM orders LIMIT 10;")
	assert.Contains(t, out, "Join Queries:")
}

func TestFindSimilarColumns(t *testing.T) {
	schema := database.TableSchema{
		TableName: "products",
		Columns: []database.Column{
			{Name: "id", Type: "integer"},
			{Name: "product_name", Type: "text"},
			{Name: "Category", Type: "text"},
			{Name: "product_type", Type: "text"},
		},
	}

	tests := []struct {
		name        string
		term        string
		wantExact   []string
		wantPartial []string
		wantSimilar []string
	}{
		{"exact is case insensitive", "CATEGORY", []string{"category"}, []string{"category"}, []string{"category"}},
		{"partial", "name", []string{}, []string{"product_name"}, []string{"product_name"}},
		{"hint only", "kind_label", []string{}, []string{}, []string{}},
		{"similar via hint", "item_category_name", []string{}, []string{"category"}, []string{"product_name", "category"}},
		{"no match", "price", []string{}, []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := FindSimilarColumns(schema, tt.term)
			assert.Equal(t, tt.wantExact, m.Exact)
			assert.Equal(t, tt.wantPartial, m.Partial)
			assert.Equal(t, tt.wantSimilar, m.Similar)
			assert.Len(t, m.Columns, 4)
		})
	}
}

func TestFormatColumnMatches(t *testing.T) {
	schema := database.TableSchema{
		TableName: "products",
		Columns:   []database.Column{{Name: "id", Type: "integer"}, {Name: "product_name", Type: "text"}},
	}
	out := FormatColumnMatches(FindSimilarColumns(schema, "name"))
	assert.Contains(t, out, "Partial matches: product_name")
	assert.Contains(t, out, "  - product_name (text)\n")

	out = FormatColumnMatches(FindSimilarColumns(schema, "price"))
	assert.Contains(t, out, "No similar column names found.")
}

func TestEnhanceQueryError(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		errText  string
		wantHint bool
	}{
		{"postgres unknown column", "SELECT nam FROM users", `SQL Error: query failed: pq: column "nam" does not exist`, true},
		{"mysql unknown column", "select nam from users", "Error 1054 (42S22): Unknown column 'nam' in 'field list'", true},
		{"other error", "SELECT * FROM users", `pq: relation "users" does not exist`, false},
		{"no from clause", "SELECT nam", `column "nam" does not exist`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnhanceQueryError(tt.query, tt.errText)
			assert.True(t, strings.HasPrefix(got, tt.errText))
			if tt.wantHint {
				assert.Contains(t, got, "SUGGESTION")
				assert.Contains(t, got, "describe users")
			} else {
				assert.Equal(t, tt.errText, got)
			}
		})
	}
}
