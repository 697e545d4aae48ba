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
	"database/sql"
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/config"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
)

type mysqlHandler struct{}

var _ database.DialectHandler = (*mysqlHandler)(nil)

const (
	listDatabasesQuery = "SELECT SCHEMA_NAME FROM information_schema.SCHEMATA WHERE SCHEMA_NAME NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys') ORDER BY SCHEMA_NAME"

	listTablesQuery = "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"

	listColumnsQuery = "SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION"

	primaryKeyQuery = "SELECT COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY ORDINAL_POSITION"

	foreignKeysQuery = "SELECT CONSTRAINT_NAME, REFERENCED_TABLE_NAME, COLUMN_NAME, REFERENCED_COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION"

	indexesQuery = "SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE FROM information_schema.STATISTICS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME <> 'PRIMARY' ORDER BY INDEX_NAME, SEQ_IN_INDEX"
)

var poolSeq atomic.Int64

func (h mysqlHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName
	if cfg.User == "" || cfg.DBName == "" || instanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, db, instance)")
	}

	d, err := cloudsqlconn.NewDialer(context.Background())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}

	var opts []cloudsqlconn.DialOption
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}

	// Each pool registers its own network so closing one leaves the others dialable.
	network := fmt.Sprintf("cloudsql-%s-%d", instanceConnectionName, poolSeq.Add(1))

	mysql.RegisterDialContext(network,
		func(ctx context.Context, addr string) (net.Conn, error) {
			conn, dialErr := d.Dial(ctx, instanceConnectionName, opts...)
			if dialErr != nil {
				zap.L().Error("cloud SQL dial failed",
					zap.String("instance", instanceConnectionName),
					zap.Error(dialErr))
			}
			return conn, dialErr
		})

	mysqlCfg := mysql.NewConfig()
	mysqlCfg.User = cfg.User
	mysqlCfg.Passwd = cfg.Password
	mysqlCfg.Net = network
	mysqlCfg.Addr = instanceConnectionName
	mysqlCfg.DBName = cfg.DBName
	mysqlCfg.ParseTime = true

	connector, err := mysql.NewConnector(mysqlCfg)
	if err != nil {
		mysql.DeregisterDialContext(network)
		d.Close()
		return nil, fmt.Errorf("mysql.NewConnector failed for CloudSQL MySQL: %w", err)
	}
	release := func() error {
		mysql.DeregisterDialContext(network)
		return d.Close()
	}
	return sql.OpenDB(database.WithCloser(connector, release)), nil
}

func (h mysqlHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	dbPool, err := sql.Open("mysql", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard mysql): %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) DriverName() string {
	return "mysql"
}

func (h mysqlHandler) QuoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, "`", "``")
	return fmt.Sprintf("`%s`", name)
}

func (h mysqlHandler) AdminDatabase() string {
	return "information_schema"
}

func (h mysqlHandler) SampleQuery(quotedTable string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", quotedTable, limit)
}

func (h mysqlHandler) CountQuery(quotedTable string) string {
	return fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s", quotedTable)
}

func (h mysqlHandler) ListDatabases(ctx context.Context, db *database.DB) ([]string, error) {
	return queryStrings(ctx, db, listDatabasesQuery, "databases")
}

func (h mysqlHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	return queryStrings(ctx, db, listTablesQuery, "tables")
}

func (h mysqlHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.Column, error) {
	rows, err := db.QueryContext(ctx, listColumnsQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for %s: %w", tableName, err)
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
			return nil, fmt.Errorf("error scanning column for %s: %w", tableName, err)
		}
		col.Nullable = database.NullableFlag(isNullable)
		col.Default = database.StringPtr(colDefault)
		col.MaxLength = database.Int64Ptr(maxLen)
		col.Precision = database.Int64Ptr(precision)
		col.Scale = database.Int64Ptr(scale)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns for %s: %w", tableName, err)
	}
	return columns, nil
}

func (h mysqlHandler) GetPrimaryKey(ctx context.Context, db *database.DB, tableName string) ([]string, error) {
	return queryStrings(ctx, db, primaryKeyQuery, "primary key columns for "+tableName, tableName)
}

func (h mysqlHandler) GetForeignKeys(ctx context.Context, db *database.DB, tableName string) ([]database.ForeignKey, error) {
	rows, err := db.QueryContext(ctx, foreignKeysQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying foreign keys for %s: %w", tableName, err)
	}
	defer rows.Close()

	var fkRows []database.ForeignKeyRow
	for rows.Next() {
		var r database.ForeignKeyRow
		if err := rows.Scan(&r.Constraint, &r.ReferencedTable, &r.Column, &r.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("error scanning foreign key for %s: %w", tableName, err)
		}
		fkRows = append(fkRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys for %s: %w", tableName, err)
	}
	return database.GroupForeignKeys(fkRows), nil
}

func (h mysqlHandler) GetIndexes(ctx context.Context, db *database.DB, tableName string) ([]database.Index, error) {
	rows, err := db.QueryContext(ctx, indexesQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying indexes for %s: %w", tableName, err)
	}
	defer rows.Close()

	var idxRows []database.IndexRow
	for rows.Next() {
		var (
			r         database.IndexRow
			nonUnique int64
		)
		if err := rows.Scan(&r.Index, &r.Column, &nonUnique); err != nil {
			return nil, fmt.Errorf("error scanning index for %s: %w", tableName, err)
		}
		r.Unique = nonUnique == 0
		idxRows = append(idxRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indexes for %s: %w", tableName, err)
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
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return out, nil
}

func init() {
	database.RegisterDialectHandler("mysql", mysqlHandler{})
	database.RegisterDialectHandler("cloudsqlmysql", mysqlHandler{})
}
