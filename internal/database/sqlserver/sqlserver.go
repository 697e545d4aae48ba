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
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/config"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
)

// sqlServerHandler struct implements database.DialectHandler for SQL Server.
type sqlServerHandler struct{}

var _ database.DialectHandler = (*sqlServerHandler)(nil)

const (
	// database_id 1-4 are master, tempdb, model and msdb.
	listDatabasesQuery = "SELECT name FROM sys.databases WHERE database_id > 4 ORDER BY name"

	listTablesQuery = "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_CATALOG = DB_NAME() AND TABLE_SCHEMA = SCHEMA_NAME() ORDER BY TABLE_NAME"

	listColumnsQuery = `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT,
		       CAST(CHARACTER_MAXIMUM_LENGTH AS BIGINT), CAST(NUMERIC_PRECISION AS BIGINT), CAST(NUMERIC_SCALE AS BIGINT)
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_CATALOG = DB_NAME() AND TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @tableName
		ORDER BY ORDINAL_POSITION`

	primaryKeyQuery = `
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		    ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		    AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		    AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		    AND tc.TABLE_SCHEMA = SCHEMA_NAME()
		    AND tc.TABLE_NAME = @tableName
		ORDER BY kcu.ORDINAL_POSITION`

	foreignKeysQuery = `
		SELECT fk.name, rt.name, pc.name, rc.name
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables pt ON pt.object_id = fk.parent_object_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		WHERE pt.name = @tableName AND SCHEMA_NAME(pt.schema_id) = SCHEMA_NAME()
		ORDER BY fk.name, fkc.constraint_column_id`

	indexesQuery = `
		SELECT i.name, c.name, i.is_unique
		FROM sys.indexes i
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		JOIN sys.tables t ON t.object_id = i.object_id
		WHERE t.name = @tableName AND SCHEMA_NAME(t.schema_id) = SCHEMA_NAME()
		    AND i.is_primary_key = 0 AND i.name IS NOT NULL AND ic.is_included_column = 0
		ORDER BY i.name, ic.key_ordinal`
)

type csqlDialer struct {
	dialer     *cloudsqlconn.Dialer
	connName   string
	usePrivate bool
}

// DialContext adheres to the mssql.Dialer interface.
func (c *csqlDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var opts []cloudsqlconn.DialOption
	if c.usePrivate {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}
	return c.dialer.Dial(ctx, c.connName, opts...)
}

// CreateCloudSQLPool for SQL Server
func (h sqlServerHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	// WithLazyRefresh() Option is used to perform refresh
	// when needed, rather than on a scheduled interval.
	dialer, err := cloudsqlconn.NewDialer(context.Background(), cloudsqlconn.WithLazyRefresh())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     "localhost:1433",
		RawQuery: url.Values{"database": {cfg.DBName}}.Encode(),
	}
	connector, err := mssql.NewConnector(u.String())
	if err != nil {
		return nil, fmt.Errorf("mssql.NewConnector: %w", err)
	}
	connector.Dialer = &csqlDialer{
		dialer:     dialer,
		connName:   cfg.CloudSQLInstanceConnectionName,
		usePrivate: cfg.UsePrivateIP,
	}

	return sql.OpenDB(database.WithCloser(connector, dialer.Close)), nil
}

// CreateStandardPool creates a standard SQL Server connection pool
func (h sqlServerHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	dbPool, err := sql.Open("sqlserver", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard sqlserver): %w", err)
	}
	return dbPool, nil
}

func (h sqlServerHandler) DriverName() string {
	return "sqlserver"
}

// QuoteIdentifier for SQL Server uses square brackets.
func (h sqlServerHandler) QuoteIdentifier(name string) string {
	return fmt.Sprintf("[%s]", strings.ReplaceAll(name, "]", "]]"))
}

func (h sqlServerHandler) AdminDatabase() string {
	return "master"
}

// SampleQuery for SQL Server, which has no LIMIT clause.
func (h sqlServerHandler) SampleQuery(quotedTable string, limit int) string {
	return fmt.Sprintf("SELECT TOP (%d) * FROM %s", limit, quotedTable)
}

func (h sqlServerHandler) CountQuery(quotedTable string) string {
	return fmt.Sprintf("SELECT COUNT_BIG(*) AS row_count FROM %s", quotedTable)
}

func (h sqlServerHandler) ListDatabases(ctx context.Context, db *database.DB) ([]string, error) {
	return queryStrings(ctx, db, listDatabasesQuery, "databases")
}

// ListTables for SQL Server
func (h sqlServerHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	return queryStrings(ctx, db, listTablesQuery, "tables")
}

// ListColumns for SQL Server
func (h sqlServerHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.Column, error) {
	rows, err := db.QueryContext(ctx, listColumnsQuery, sql.Named("tableName", tableName))
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []database.Column
	for rows.Next() {
		var (
			col                      database.Column
			isNullable               string
			colDefault               sql.NullString
			maxLen, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&col.Name, &col.Type, &isNullable, &colDefault, &maxLen, &precision, &scale); err != nil {
			return nil, fmt.Errorf("error scanning column for table %s: %w", tableName, err)
		}
		col.Nullable = database.NullableFlag(isNullable)
		col.Default = database.StringPtr(colDefault)
		col.MaxLength = database.Int64Ptr(maxLen)
		col.Precision = database.Int64Ptr(precision)
		col.Scale = database.Int64Ptr(scale)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

func (h sqlServerHandler) GetPrimaryKey(ctx context.Context, db *database.DB, tableName string) ([]string, error) {
	return queryStrings(ctx, db, primaryKeyQuery, "primary key columns", sql.Named("tableName", tableName))
}

func (h sqlServerHandler) GetForeignKeys(ctx context.Context, db *database.DB, tableName string) ([]database.ForeignKey, error) {
	rows, err := db.QueryContext(ctx, foreignKeysQuery, sql.Named("tableName", tableName))
	if err != nil {
		return nil, fmt.Errorf("error querying foreign keys for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var fkRows []database.ForeignKeyRow
	for rows.Next() {
		var r database.ForeignKeyRow
		if err := rows.Scan(&r.Constraint, &r.ReferencedTable, &r.Column, &r.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key info: %w", err)
		}
		fkRows = append(fkRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign key rows: %w", err)
	}
	return database.GroupForeignKeys(fkRows), nil
}

func (h sqlServerHandler) GetIndexes(ctx context.Context, db *database.DB, tableName string) ([]database.Index, error) {
	rows, err := db.QueryContext(ctx, indexesQuery, sql.Named("tableName", tableName))
	if err != nil {
		return nil, fmt.Errorf("error querying indexes for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var idxRows []database.IndexRow
	for rows.Next() {
		var r database.IndexRow
		if err := rows.Scan(&r.Index, &r.Column, &r.Unique); err != nil {
			return nil, fmt.Errorf("failed to scan index info: %w", err)
		}
		idxRows = append(idxRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index rows: %w", err)
	}
	return database.GroupIndexes(idxRows), nil
}

func queryStrings(ctx context.Context, db *database.DB, query, what string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", what, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", what, err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", what, err)
	}
	return out, nil
}

func init() {
	database.RegisterDialectHandler("sqlserver", sqlServerHandler{})
	database.RegisterDialectHandler("cloudsqlsqlserver", sqlServerHandler{})
}
