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
	"errors"
	"fmt"
)

// ErrPolicyViolation is reported for any statement that is not a SELECT.
var ErrPolicyViolation = errors.New("Only SELECT queries are allowed for security reasons")

// ErrTableNotFound is returned by GetTableStatistics when the table has no columns.
var ErrTableNotFound = errors.New("table not found or has no columns")

// ConnectionError represents failures reaching the engine, authenticating or
// opening the target database.
type ConnectionError struct {
	Msg string
	Err error
}

// IntrospectionError represents a failed catalog query for a table.
type IntrospectionError struct {
	Table string
	Msg   string
	Err   error
}

// ExecutionError represents an engine failure while running a permitted statement.
type ExecutionError struct {
	Msg string
	Err error
}

// InvalidConfigError represents a configuration that cannot produce a connection.
type InvalidConfigError struct {
	Msg string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection error: %s: %v", e.Msg, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *IntrospectionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("introspection error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("introspection error for table %s: %s: %v", e.Table, e.Msg, e.Err)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("SQL Error: %s: %v", e.Msg, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %v", e.Msg, e.Err)
}

func (e *InvalidConfigError) Unwrap() error {
	return e.Err
}
