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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// ordersHandler describes an orders table with a composite foreign key.
func ordersHandler() *mockDialectHandler {
	return &mockDialectHandler{
		listTablesFn: func(ctx context.Context, db *DB) ([]string, error) {
			return []string{"customers", "orders"}, nil
		},
		listColumnsFn: func(ctx context.Context, db *DB, tableName string) ([]Column, error) {
			switch tableName {
			case "orders":
				return []Column{
					{Name: "id", Type: "integer", Nullable: false, Default: strPtr("nextval('orders_id_seq'::regclass)")},
					{Name: " customer_id ", Type: "integer", Nullable: false},
					{Name: "region", Type: "text", Nullable: false},
					{Name: "note", Type: "text", Nullable: true},
				}, nil
			case "customers":
				return []Column{
					{Name: "id", Type: "integer"},
					{Name: "region", Type: "text"},
				}, nil
			}
			return nil, nil
		},
		getPrimaryKeyFn: func(ctx context.Context, db *DB, tableName string) ([]string, error) {
			if tableName == "customers" {
				return []string{"id", "region"}, nil
			}
			// "ghost" does not exist and must not leak into the key list.
			return []string{"id", "ghost"}, nil
		},
		getForeignKeysFn: func(ctx context.Context, db *DB, tableName string) ([]ForeignKey, error) {
			if tableName != "orders" {
				return nil, nil
			}
			return []ForeignKey{
				{
					Name:            "fk_orders_customer",
					ReferencedTable: "customers",
					Columns: []ColumnPair{
						{From: "customer_id", To: "id"},
						{From: "region", To: "region"},
					},
				},
				{Name: "broken"},
			}, nil
		},
		getIndexesFn: func(ctx context.Context, db *DB, tableName string) ([]Index, error) {
			if tableName != "orders" {
				return nil, nil
			}
			return []Index{{Name: "idx_orders_customer_region", Columns: []string{"customer_id", "region"}, Unique: false}}, nil
		},
	}
}

func TestDescribeTable(t *testing.T) {
	db, _ := newMockDB(t, ordersHandler())

	schema, err := db.DescribeTable(context.Background(), " orders ")
	require.NoError(t, err)

	assert.Equal(t, "orders", schema.TableName)
	assert.Equal(t, []string{"id", "customer_id", "region", "note"}, schema.ColumnNames())
	assert.Equal(t, []string{"id"}, schema.PrimaryKeys)

	for _, col := range schema.Columns {
		assert.Equal(t, col.Name == "id", col.PrimaryKey, "primary key flag for %s", col.Name)
	}

	require.Len(t, schema.ForeignKeys, 1)
	fk := schema.ForeignKeys[0]
	assert.Equal(t, "fk_orders_customer", fk.Name)
	assert.Equal(t, "customers", fk.ReferencedTable)
	assert.Equal(t, []string{"customer_id", "region"}, fk.ConstrainedColumns())
	assert.Equal(t, []string{"id", "region"}, fk.ReferredColumns())

	customerID := schema.Column("customer_id")
	require.NotNil(t, customerID)
	require.NotNil(t, customerID.ForeignKey)
	assert.Equal(t, "customers", customerID.ForeignKey.ReferencedTable)
	assert.Nil(t, schema.Column("note").ForeignKey)

	require.Len(t, schema.Indexes, 1)
	assert.Equal(t, []string{"customer_id", "region"}, schema.Indexes[0].Columns)
	assert.Nil(t, schema.RowCount)
}

func TestDescribeTable_PrimaryKeysMatchFlags(t *testing.T) {
	db, _ := newMockDB(t, ordersHandler())

	for _, table := range []string{"orders", "customers"} {
		schema := db.GetTableSchema(context.Background(), table)
		require.NotEmpty(t, schema.Columns)

		flagged := map[string]bool{}
		for _, c := range schema.Columns {
			if c.PrimaryKey {
				flagged[c.Name] = true
			}
		}
		listed := map[string]bool{}
		for _, name := range schema.PrimaryKeys {
			listed[name] = true
		}
		assert.Equal(t, flagged, listed, "table %s", table)
	}
}

func TestGetTableSchema_NonexistentTable(t *testing.T) {
	db, _ := newMockDB(t, ordersHandler())

	schema := db.GetTableSchema(context.Background(), "nonexistent_table")
	assert.Equal(t, "nonexistent_table", schema.TableName)
	assert.NotNil(t, schema.Columns)
	assert.Empty(t, schema.Columns)
	assert.Empty(t, schema.PrimaryKeys)
	assert.Empty(t, schema.ForeignKeys)
	assert.Empty(t, schema.Indexes)
}

func TestGetTableSchema_IntrospectionFailures(t *testing.T) {
	catalogErr := errors.New("permission denied for relation")

	tests := []struct {
		name   string
		mutate func(h *mockDialectHandler)
	}{
		{"columns", func(h *mockDialectHandler) {
			h.listColumnsFn = func(ctx context.Context, db *DB, tableName string) ([]Column, error) { return nil, catalogErr }
		}},
		{"primary_key", func(h *mockDialectHandler) {
			h.getPrimaryKeyFn = func(ctx context.Context, db *DB, tableName string) ([]string, error) { return nil, catalogErr }
		}},
		{"foreign_keys", func(h *mockDialectHandler) {
			h.getForeignKeysFn = func(ctx context.Context, db *DB, tableName string) ([]ForeignKey, error) { return nil, catalogErr }
		}},
		{"indexes", func(h *mockDialectHandler) {
			h.getIndexesFn = func(ctx context.Context, db *DB, tableName string) ([]Index, error) { return nil, catalogErr }
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ordersHandler()
			tt.mutate(h)
			db, _ := newMockDB(t, h)

			_, err := db.DescribeTable(context.Background(), "orders")
			require.Error(t, err)
			var introErr *IntrospectionError
			require.True(t, errors.As(err, &introErr))
			assert.Equal(t, "orders", introErr.Table)
			assert.ErrorIs(t, err, catalogErr)

			schema := db.GetTableSchema(context.Background(), "orders")
			assert.Equal(t, "orders", schema.TableName)
			assert.Empty(t, schema.Columns)
		})
	}
}

func TestDescribeTable_EmptyName(t *testing.T) {
	db, _ := newMockDB(t, ordersHandler())

	_, err := db.DescribeTable(context.Background(), "   ")
	require.Error(t, err)
	assert.Empty(t, db.GetTableSchema(context.Background(), "").Columns)
}

func TestGetTableSchema_Idempotent(t *testing.T) {
	db, _ := newMockDB(t, ordersHandler())

	first := db.GetTableSchema(context.Background(), "orders")
	second := db.GetTableSchema(context.Background(), "orders")
	assert.Equal(t, first, second)
}

func TestListTables(t *testing.T) {
	db, _ := newMockDB(t, ordersHandler())

	tables, err := db.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, tables)

	h := ordersHandler()
	h.listTablesFn = func(ctx context.Context, db *DB) ([]string, error) { return nil, errors.New("boom") }
	failing, _ := newMockDB(t, h)

	_, err = failing.ListTables(context.Background())
	var introErr *IntrospectionError
	assert.True(t, errors.As(err, &introErr))
}

func TestGetDatabaseSchema(t *testing.T) {
	h := ordersHandler()
	h.listTablesFn = func(ctx context.Context, db *DB) ([]string, error) {
		return []string{"customers", "orders", "audit_log"}, nil
	}
	inner := h.listColumnsFn
	h.listColumnsFn = func(ctx context.Context, db *DB, tableName string) ([]Column, error) {
		if tableName == "audit_log" {
			return nil, errors.New("relation is locked")
		}
		return inner(ctx, db, tableName)
	}
	db, _ := newMockDB(t, h)

	schema := db.GetDatabaseSchema(context.Background())
	assert.Equal(t, "test_db", schema.DatabaseName)
	assert.Equal(t, 3, schema.TotalTables)
	assert.Equal(t, len(schema.Tables), schema.TotalTables)
	assert.Equal(t, []string{"audit_log", "customers", "orders"}, schema.TableNames())

	audit, ok := schema.Table("audit_log")
	require.True(t, ok)
	assert.Equal(t, "audit_log", audit.TableName)
	assert.Empty(t, audit.Columns)

	orders, ok := schema.Table("orders")
	require.True(t, ok)
	assert.Len(t, orders.Columns, 4)
}

func TestGetDatabaseSchema_ListTablesFails(t *testing.T) {
	h := ordersHandler()
	h.listTablesFn = func(ctx context.Context, db *DB) ([]string, error) { return nil, errors.New("catalog unavailable") }
	db, _ := newMockDB(t, h)

	schema := db.GetDatabaseSchema(context.Background())
	assert.Equal(t, 0, schema.TotalTables)
	assert.NotNil(t, schema.Tables)
	assert.Empty(t, schema.Tables)
}

func TestGetDatabaseSchema_DuplicateNames(t *testing.T) {
	h := ordersHandler()
	h.listTablesFn = func(ctx context.Context, db *DB) ([]string, error) {
		return []string{"orders", "orders"}, nil
	}
	db, _ := newMockDB(t, h)

	schema := db.GetDatabaseSchema(context.Background())
	assert.Equal(t, len(schema.Tables), schema.TotalTables)
	assert.Equal(t, 1, schema.TotalTables)
}

func TestGetDatabaseSchema_Cancelled(t *testing.T) {
	h := ordersHandler()
	db, _ := newMockDB(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	schema := db.GetDatabaseSchema(ctx)
	assert.Equal(t, len(schema.Tables), schema.TotalTables)
	assert.Equal(t, 0, h.listColumnsCalls)
}

func TestGroupForeignKeys(t *testing.T) {
	fks := GroupForeignKeys([]ForeignKeyRow{
		{Constraint: "fk_a", ReferencedTable: "parent", Column: "p1", ReferencedColumn: "id1"},
		{Constraint: "fk_a", ReferencedTable: "parent", Column: "p2", ReferencedColumn: "id2"},
		{Constraint: "fk_b", ReferencedTable: "other", Column: "o", ReferencedColumn: "id"},
	})
	require.Len(t, fks, 2)
	assert.Equal(t, []ColumnPair{{From: "p1", To: "id1"}, {From: "p2", To: "id2"}}, fks[0].Columns)
	for _, fk := range fks {
		assert.Equal(t, len(fk.ConstrainedColumns()), len(fk.ReferredColumns()))
	}
	assert.Empty(t, GroupForeignKeys(nil))
}

func TestGroupIndexes(t *testing.T) {
	idx := GroupIndexes([]IndexRow{
		{Index: "idx_ab", Column: "a", Unique: true},
		{Index: "idx_ab", Column: "b", Unique: true},
		{Index: "idx_c", Column: "c"},
	})
	assert.Equal(t, []Index{
		{Name: "idx_ab", Columns: []string{"a", "b"}, Unique: true},
		{Name: "idx_c", Columns: []string{"c"}},
	}, idx)
}
