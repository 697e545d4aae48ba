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
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/config"
	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
)

// postgresHandler struct implements database.DialectHandler for PostgreSQL.
type postgresHandler struct{}

var _ database.DialectHandler = (*postgresHandler)(nil)

// Catalog queries. All introspection is scoped to current_schema().
const (
	listDatabasesQuery = `
		SELECT datname
		FROM pg_catalog.pg_database
		WHERE datistemplate = false
		ORDER BY datname;`

	listTablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		AND table_type = 'BASE TABLE'
		ORDER BY table_name;`

	listColumnsQuery = `
		SELECT column_name, data_type, is_nullable, column_default,
		       character_maximum_length, numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		AND table_name = $1
		ORDER BY ordinal_position;`

	primaryKeyQuery = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		    ON tc.constraint_name = kcu.constraint_name
		    AND tc.table_schema = kcu.table_schema
		    AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		    AND tc.table_schema = current_schema()
		    AND tc.table_name = $1
		ORDER BY kcu.ordinal_position;`

	// unnest over conkey/confkey keeps the constrained/referenced pairing.
	foreignKeysQuery = `
		SELECT con.conname, ref.relname, att.attname, refatt.attname
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class cls ON cls.oid = con.conrelid
		JOIN pg_catalog.pg_namespace nsp ON nsp.oid = cls.relnamespace
		JOIN pg_catalog.pg_class ref ON ref.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
		JOIN pg_catalog.pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.attnum
		JOIN pg_catalog.pg_attribute refatt ON refatt.attrelid = con.confrelid AND refatt.attnum = k.refattnum
		WHERE con.contype = 'f'
		    AND nsp.nspname = current_schema()
		    AND cls.relname = $1
		ORDER BY con.conname, k.ord;`

	indexesQuery = `
		SELECT i.relname, a.attname, ix.indisunique
		FROM pg_catalog.pg_index ix
		JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = current_schema()
		    AND t.relname = $1
		    AND NOT ix.indisprimary
		ORDER BY i.relname, k.ord;`
)

// cloudSQLConnConfig builds the pgx config field by field so that empty or
// unusual credentials are never reparsed from a keyword/value string.
func cloudSQLConnConfig(cfg config.DatabaseConfig) (*pgx.ConnConfig, error) {
	pgxConfig, err := pgx.ParseConfig("")
	if err != nil {
		return nil, err
	}
	pgxConfig.User = cfg.User
	pgxConfig.Password = cfg.Password
	pgxConfig.Database = cfg.DBName
	return pgxConfig, nil
}

// CreateCloudSQLPool for PostgreSQL. The dialer is closed with the pool.
func (h postgresHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	pgxConfig, err := cloudSQLConnConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("pgx.ParseConfig: %w", err)
	}
	var opts []cloudsqlconn.Option
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithDefaultDialOptions(cloudsqlconn.WithPrivateIP()))
	}
	d, err := cloudsqlconn.NewDialer(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName
	pgxConfig.DialFunc = func(ctx context.Context, network, instance string) (net.Conn, error) {
		return d.Dial(ctx, instanceConnectionName)
	}
	connector := stdlib.GetConnector(*pgxConfig)
	return sql.OpenDB(database.WithCloser(connector, d.Close)), nil
}

// CreateStandardPool creates a standard PostgreSQL connection pool
func (h postgresHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	dbPool, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return dbPool, nil
}

func (h postgresHandler) DriverName() string {
	return "postgres"
}

// QuoteIdentifier for PostgreSQL
func (h postgresHandler) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (h postgresHandler) AdminDatabase() string {
	return "postgres"
}

// SampleQuery for PostgreSQL
func (h postgresHandler) SampleQuery(quotedTable string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", quotedTable, limit)
}

// CountQuery for PostgreSQL
func (h postgresHandler) CountQuery(quotedTable string) string {
	return fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s", quotedTable)
}

// ListDatabases for PostgreSQL
func (h postgresHandler) ListDatabases(ctx context.Context, db *database.DB) ([]string, error) {
	return queryStrings(ctx, db, listDatabasesQuery, "databases")
}

// ListTables for PostgreSQL
func (h postgresHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	return queryStrings(ctx, db, listTablesQuery, "tables")
}

// ListColumns for PostgreSQL
func (h postgresHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.Column, error) {
	rows, err := db.QueryContext(ctx, listColumnsQuery, tableName)
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

// GetPrimaryKey for PostgreSQL
func (h postgresHandler) GetPrimaryKey(ctx context.Context, db *database.DB, tableName string) ([]string, error) {
	return queryStrings(ctx, db, primaryKeyQuery, "primary key columns", tableName)
}

// GetForeignKeys for PostgreSQL
func (h postgresHandler) GetForeignKeys(ctx context.Context, db *database.DB, tableName string) ([]database.ForeignKey, error) {
	rows, err := db.QueryContext(ctx, foreignKeysQuery, tableName)
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

// GetIndexes for PostgreSQL. The primary key index is not reported.
func (h postgresHandler) GetIndexes(ctx context.Context, db *database.DB, tableName string) ([]database.Index, error) {
	rows, err := db.QueryContext(ctx, indexesQuery, tableName)
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
	database.RegisterDialectHandler("postgres", postgresHandler{})
	database.RegisterDialectHandler("cloudsqlpostgres", postgresHandler{})
}
