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
package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/config"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
)

func newMockMySQLDB(t *testing.T) (*database.DB, sqlmock.Sqlmock, *mysqlHandler) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	handler := mysqlHandler{}
	cfg := config.Default().Database
	cfg.Dialect = "mysql"
	cfg.Port = 3306
	cfg.DBName = "shop"
	db := database.NewFromPool(mockDb, &handler, cfg, nil)
	t.Cleanup(func() { db.Close() })
	return db, mock, &handler
}

func TestMySQLQuoteIdentifier(t *testing.T) {
	handler := mysqlHandler{}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Simple name", "mytable", "`mytable`"},
		{"Name with spaces", "my table", "`my table`"},
		{"Name with backtick", "my`table", "`my``table`"},
		{"Empty name", "", "``"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, handler.QuoteIdentifier(tt.in))
		})
	}
}

func TestMySQLStatements(t *testing.T) {
	handler := mysqlHandler{}
	assert.Equal(t, "SELECT * FROM `orders` LIMIT 5", handler.SampleQuery("`orders`", 5))
	assert.Equal(t, "SELECT COUNT(*) AS row_count FROM `orders`", handler.CountQuery("`orders`"))
	assert.Equal(t, "information_schema", handler.AdminDatabase())
}

func TestMySQLListTables(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, handler := newMockMySQLDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(listTablesQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("customers").AddRow("orders"))

		tables, err := handler.ListTables(context.Background(), db)
		require.NoError(t, err)
		assert.Equal(t, []string{"customers", "orders"}, tables)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Query Error", func(t *testing.T) {
		db, mock, handler := newMockMySQLDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(listTablesQuery)).WillReturnError(errors.New("access denied"))

		_, err := handler.ListTables(context.Background(), db)
		assert.ErrorContains(t, err, "access denied")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQLListDatabases(t *testing.T) {
	db, mock, handler := newMockMySQLDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(listDatabasesQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}).AddRow("shop").AddRow("warehouse"))

	dbs, err := handler.ListDatabases(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop", "warehouse"}, dbs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLListColumns(t *testing.T) {
	db, mock, handler := newMockMySQLDB(t)
	rows := sqlmock.NewRows([]string{
		"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT",
		"CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE",
	}).
		AddRow("id", "int unsigned", "NO", nil, nil, int64(10), int64(0)).
		AddRow("total", "decimal(10,2)", "YES", "0.00", nil, int64(10), int64(2)).
		AddRow("status", "varchar(16)", "NO", "new", int64(16), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(listColumnsQuery)).WithArgs("orders").WillReturnRows(rows)

	cols, err := handler.ListColumns(context.Background(), db, "orders")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "int unsigned", cols[0].Type)
	assert.False(t, cols[0].Nullable)
	assert.True(t, cols[1].Nullable)
	require.NotNil(t, cols[1].Scale)
	assert.Equal(t, int64(2), *cols[1].Scale)
	require.NotNil(t, cols[2].Default)
	assert.Equal(t, "new", *cols[2].Default)
	require.NotNil(t, cols[2].MaxLength)
	assert.Equal(t, int64(16), *cols[2].MaxLength)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGetPrimaryKey(t *testing.T) {
	db, mock, handler := newMockMySQLDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(primaryKeyQuery)).WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id"))

	pk, err := handler.GetPrimaryKey(context.Background(), db, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, pk)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGetForeignKeys(t *testing.T) {
	db, mock, handler := newMockMySQLDB(t)
	rows := sqlmock.NewRows([]string{"CONSTRAINT_NAME", "REFERENCED_TABLE_NAME", "COLUMN_NAME", "REFERENCED_COLUMN_NAME"}).
		AddRow("orders_ibfk_1", "customers", "customer_id", "id")
	mock.ExpectQuery(regexp.QuoteMeta(foreignKeysQuery)).WithArgs("orders").WillReturnRows(rows)

	fks, err := handler.GetForeignKeys(context.Background(), db, "orders")
	require.NoError(t, err)
	assert.Equal(t, []database.ForeignKey{{
		Name:            "orders_ibfk_1",
		ReferencedTable: "customers",
		Columns:         []database.ColumnPair{{From: "customer_id", To: "id"}},
	}}, fks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGetIndexes(t *testing.T) {
	db, mock, handler := newMockMySQLDB(t)
	rows := sqlmock.NewRows([]string{"INDEX_NAME", "COLUMN_NAME", "NON_UNIQUE"}).
		AddRow("customer_id", "customer_id", int64(1)).
		AddRow("uq_orders_ref", "reference", int64(0))
	mock.ExpectQuery(regexp.QuoteMeta(indexesQuery)).WithArgs("orders").WillReturnRows(rows)

	idx, err := handler.GetIndexes(context.Background(), db, "orders")
	require.NoError(t, err)
	require.Len(t, idx, 2)
	assert.False(t, idx[0].Unique)
	assert.True(t, idx[1].Unique)
	assert.Equal(t, []string{"reference"}, idx[1].Columns)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRegistered(t *testing.T) {
	for _, dialect := range []string{"mysql", "cloudsqlmysql"} {
		h, err := database.GetDialectHandler(dialect)
		require.NoError(t, err)
		assert.Equal(t, "mysql", h.DriverName())
	}
}
