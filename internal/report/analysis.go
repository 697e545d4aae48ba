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
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/GoogleCloudPlatform/db-catalog-gateway/internal/database"
)

// Relationship is one foreign key edge between two tables.
type Relationship struct {
	FromTable   string   `json:"from_table"`
	FromColumns []string `json:"from_columns"`
	ToTable     string   `json:"to_table"`
	ToColumns   []string `json:"to_columns"`
}

// Relationships summarizes the foreign key graph of a database.
type Relationships struct {
	Edges     []Relationship `json:"relationships"`
	Connected []string       `json:"connected_tables"`
	Isolated  []string       `json:"isolated_tables"`
	NoTables  bool           `json:"-"`
}

// AnalyzeRelationships collects every foreign key of the snapshot and splits
// the tables into connected and isolated sets. Edges are ordered by source
// table, then by constraint order.
func AnalyzeRelationships(schema database.DatabaseSchema) Relationships {
	rel := Relationships{
		Edges:     []Relationship{},
		Connected: []string{},
		Isolated:  []string{},
		NoTables:  len(schema.Tables) == 0,
	}

	connected := make(map[string]bool)
	for _, name := range schema.TableNames() {
		table, _ := schema.Table(name)
		for _, fk := range table.ForeignKeys {
			rel.Edges = append(rel.Edges, Relationship{
				FromTable:   name,
				FromColumns: fk.ConstrainedColumns(),
				ToTable:     fk.ReferencedTable,
				ToColumns:   fk.ReferredColumns(),
			})
			connected[name] = true
			connected[fk.ReferencedTable] = true
		}
	}

	for name := range connected {
		rel.Connected = append(rel.Connected, name)
	}
	sort.Strings(rel.Connected)
	for _, name := range schema.TableNames() {
		if !connected[name] {
			rel.Isolated = append(rel.Isolated, name)
		}
	}
	return rel
}

// FormatRelationships renders the output of AnalyzeRelationships.
func FormatRelationships(rel Relationships) string {
	if rel.NoTables {
		return "No tables found in the database"
	}

	var b strings.Builder
	b.WriteString("Table Relationships Analysis\n")
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("-", 35))

	if len(rel.Edges) == 0 {
		b.WriteString("No foreign key relationships found.\n")
	} else {
		fmt.Fprintf(&b, "Found %d foreign key relationships:\n\n", len(rel.Edges))
		for _, e := range rel.Edges {
			fmt.Fprintf(&b, "  - %s.%s -> %s.%s\n",
				e.FromTable, strings.Join(e.FromColumns, ", "),
				e.ToTable, strings.Join(e.ToColumns, ", "))
		}
	}

	b.WriteString("\nTable Connectivity:\n")
	if len(rel.Connected) > 0 {
		fmt.Fprintf(&b, "  - Connected tables (%d): %s\n", len(rel.Connected), strings.Join(rel.Connected, ", "))
	}
	if len(rel.Isolated) > 0 {
		fmt.Fprintf(&b, "  - Isolated tables (%d): %s\n", len(rel.Isolated), strings.Join(rel.Isolated, ", "))
	}
	return b.String()
}

// QuerySuggestions groups exploratory SELECT statements for a table.
type QuerySuggestions struct {
	Table   string   `json:"table_name"`
	Basic   []string `json:"basic"`
	Text    []string `json:"text_columns,omitempty"`
	Numeric []string `json:"numeric_columns,omitempty"`
	Date    []string `json:"date_columns,omitempty"`
	Joins   []string `json:"joins,omitempty"`
}

// All returns every suggestion in display order.
func (s QuerySuggestions) All() []string {
	var out []string
	for _, group := range [][]string{s.Basic, s.Text, s.Numeric, s.Date, s.Joins} {
		out = append(out, group...)
	}
	return out
}

// SuggestQueries derives exploratory statements from column types and
// foreign keys. Every suggestion passes the gateway's SELECT gate.
func SuggestQueries(schema database.TableSchema) QuerySuggestions {
	t := schema.TableName
	s := QuerySuggestions{
		Table: t,
		Basic: []string{
			fmt.Sprintf("SELECT * FROM %s LIMIT 10;", t),
			fmt.Sprintf("SELECT COUNT(*) FROM %s;", t),
		},
	}

	var text, numeric, date []string
	for _, col := range schema.Columns {
		typ := strings.ToLower(col.Type)
		if containsAny(typ, "char", "text") {
			text = append(text, col.Name)
		}
		if containsAny(typ, "int", "float", "decimal", "numeric") {
			numeric = append(numeric, col.Name)
		}
		if containsAny(typ, "date", "time", "timestamp") {
			date = append(date, col.Name)
		}
	}

	for _, c := range firstN(text, 3) {
		s.Text = append(s.Text, fmt.Sprintf("SELECT %s, COUNT(*) FROM %s GROUP BY %s ORDER BY COUNT(*) DESC LIMIT 10;", c, t, c))
	}
	for _, c := range firstN(numeric, 3) {
		s.Numeric = append(s.Numeric, fmt.Sprintf("SELECT MIN(%s), MAX(%s), AVG(%s) FROM %s;", c, c, c, t))
	}
	for _, c := range firstN(date, 2) {
		s.Date = append(s.Date, fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s;", c, c, t))
	}

	joins := 0
	for _, fk := range schema.ForeignKeys {
		if joins == 2 {
			break
		}
		if len(fk.Columns) == 0 {
			continue
		}
		pair := fk.Columns[0]
		s.Joins = append(s.Joins, fmt.Sprintf("SELECT * FROM %s t1 JOIN %s t2 ON t1.%s = t2.%s LIMIT 10;", t, fk.ReferencedTable, pair.From, pair.To))
		joins++
	}
	return s
}

// FormatSuggestions renders SuggestQueries output grouped by purpose.
func FormatSuggestions(s QuerySuggestions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggested Queries for '%s'\n", s.Table)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("-", len(s.Table)+25))

	b.WriteString("Basic Exploration:\n")
	for i, q := range s.Basic {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, q)
	}
	writeGroup(&b, "Text Column Analysis", s.Text)
	writeGroup(&b, "Numeric Column Analysis", s.Numeric)
	writeGroup(&b, "Date Column Analysis", s.Date)
	writeGroup(&b, "Join Queries", s.Joins)
	return b.String()
}

// namingHints are words that often stand for the same concept across
// schemas (a "category" column may be called "type" or "kind").
var namingHints = []string{"name", "category", "title", "label", "type", "kind", "class"}

// ColumnMatches classifies the columns of a table against a search term.
type ColumnMatches struct {
	Table   string            `json:"table_name"`
	Term    string            `json:"search_term"`
	Exact   []string          `json:"exact_matches"`
	Partial []string          `json:"partial_matches"`
	Similar []string          `json:"similar_matches"`
	Columns []database.Column `json:"available_columns"`
}

// Found reports whether any column matched.
func (m ColumnMatches) Found() bool {
	return len(m.Exact)+len(m.Partial)+len(m.Similar) > 0
}

// FindSimilarColumns matches column names case-insensitively: equal names,
// names containing or contained in the term, and names sharing a naming hint
// with the term.
func FindSimilarColumns(schema database.TableSchema, term string) ColumnMatches {
	m := ColumnMatches{
		Table:   schema.TableName,
		Term:    term,
		Exact:   []string{},
		Partial: []string{},
		Similar: []string{},
		Columns: schema.Columns,
	}
	search := strings.ToLower(strings.TrimSpace(term))
	if search == "" {
		return m
	}

	seen := make(map[string]bool)
	for _, col := range schema.Columns {
		name := strings.ToLower(col.Name)
		if name == search {
			m.Exact = append(m.Exact, name)
		}
		if strings.Contains(name, search) || strings.Contains(search, name) {
			m.Partial = append(m.Partial, name)
		}
	}
	for _, hint := range namingHints {
		if !strings.Contains(search, hint) {
			continue
		}
		for _, col := range schema.Columns {
			name := strings.ToLower(col.Name)
			if strings.Contains(name, hint) && !seen[name] {
				seen[name] = true
				m.Similar = append(m.Similar, name)
			}
		}
	}
	return m
}

// FormatColumnMatches shows the strongest match class and then every column.
func FormatColumnMatches(m ColumnMatches) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Column name suggestions for '%s' in table '%s':\n\n", m.Term, m.Table)

	switch {
	case len(m.Exact) > 0:
		fmt.Fprintf(&b, "Exact matches: %s\n", strings.Join(m.Exact, ", "))
	case len(m.Partial) > 0:
		fmt.Fprintf(&b, "Partial matches: %s\n", strings.Join(m.Partial, ", "))
	case len(m.Similar) > 0:
		fmt.Fprintf(&b, "Similar matches: %s\n", strings.Join(m.Similar, ", "))
	default:
		b.WriteString("No similar column names found.\n")
	}

	fmt.Fprintf(&b, "\nAll available columns in '%s':\n", m.Table)
	for _, col := range m.Columns {
		fmt.Fprintf(&b, "  - %s (%s)\n", col.Name, col.Type)
	}
	return b.String()
}

var fromTable = regexp.MustCompile(`(?i)FROM\s+(\w+)`)

// EnhanceQueryError appends a hint to errors about unknown columns, naming
// the table of the first FROM clause. Other errors are returned unchanged.
func EnhanceQueryError(query, errText string) string {
	lower := strings.ToLower(errText)
	if !strings.Contains(lower, "column") {
		return errText
	}
	if !strings.Contains(lower, "does not exist") && !strings.Contains(lower, "unknown column") && !strings.Contains(lower, "invalid column") {
		return errText
	}
	match := fromTable.FindStringSubmatch(query)
	if match == nil {
		return errText
	}
	return fmt.Sprintf("%s\n\nSUGGESTION: The column name might be incorrect. Run 'describe %s' to check the exact column names available in the table.", errText, match[1])
}

func writeGroup(b *strings.Builder, title string, queries []string) {
	if len(queries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, q := range queries {
		fmt.Fprintf(b, "  - %s\n", q)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func sortedKeys(row database.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
