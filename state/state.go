// Package state reads and models the live database schema from
// information_schema. Its types mirror the declared schema model but carry
// exactly what the server reports; they exist only for the duration of one
// comparator pass.
package state

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/semitexa/orm/schema"
)

// Column is the live state of one table column, populated from
// information_schema.columns.
type Column struct {
	Name          string
	ColumnType    string // full COLUMN_TYPE, e.g. varchar(255)
	DataType      string // bare DATA_TYPE, e.g. varchar
	Nullable      bool
	Default       sql.NullString
	AutoIncrement bool
	PrimaryKey    bool
	CharMaxLength sql.NullInt64
	Precision     sql.NullInt64
	Scale         sql.NullInt64
	Comment       string
}

// Deprecated returns true if the column has been marked with the deprecation
// sentinel comment by a previous sync phase.
func (c *Column) Deprecated() bool {
	return c.Comment == schema.DeprecationSentinel
}

var reNumericLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Definition rebuilds this column's definition clause from the live values,
// optionally appending a comment. MODIFY COLUMN always needs the full
// definition: omitting the type would reset the column.
func (c *Column) Definition(comment string) string {
	var b strings.Builder
	b.WriteString(schema.EscapeIdentifier(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.ColumnType)
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default.Valid {
		b.WriteString(" DEFAULT ")
		b.WriteString(renderLiveDefault(c.Default.String))
	} else if c.Nullable {
		b.WriteString(" DEFAULT NULL")
	}
	if c.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	if comment != "" {
		b.WriteString(fmt.Sprintf(" COMMENT '%s'", schema.EscapeValue(comment)))
	}
	return b.String()
}

// renderLiveDefault re-quotes a COLUMN_DEFAULT value for DDL. Numeric
// literals and CURRENT_TIMESTAMP expressions pass through bare; everything
// else is single-quoted.
func renderLiveDefault(value string) string {
	if reNumericLiteral.MatchString(value) || strings.HasPrefix(strings.ToUpper(value), "CURRENT_TIMESTAMP") {
		return value
	}
	return fmt.Sprintf("'%s'", schema.EscapeValue(value))
}

// Index is the live state of one secondary index. The PRIMARY index is not
// modeled here; primary key membership is carried on the column.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Definition renders the index clause the way the declared side does, so the
// two render identically when in sync.
func (idx *Index) Definition() string {
	cols := make([]string, len(idx.Columns))
	for n, col := range idx.Columns {
		cols[n] = schema.EscapeIdentifier(col)
	}
	keyword := "KEY"
	if idx.Unique {
		keyword = "UNIQUE KEY"
	}
	return fmt.Sprintf("%s %s (%s)", keyword, schema.EscapeIdentifier(idx.Name), strings.Join(cols, ","))
}

// ForeignKey is the live state of one foreign key constraint.
type ForeignKey struct {
	Name             string
	Table            string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	DeleteRule       string
	UpdateRule       string
}

// Table is the live state of one base table.
type Table struct {
	Name        string
	Comment     string
	Columns     []*Column
	Indexes     []*Index
	ForeignKeys []*ForeignKey
}

// Deprecated returns true if the table carries the deprecation sentinel
// comment.
func (t *Table) Deprecated() bool {
	return t.Comment == schema.DeprecationSentinel
}

// Definition renders a CREATE TABLE-shaped view of the live table: columns,
// primary key, and secondary indexes, mirroring the declared rendering so
// textual diffs only show real differences. Foreign keys are excluded on both
// sides.
func (t *Table) Definition() string {
	defs := make([]string, 0, len(t.Columns)+len(t.Indexes)+1)
	for _, c := range t.Columns {
		defs = append(defs, c.Definition(""))
	}
	for _, c := range t.Columns {
		if c.PrimaryKey {
			defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", schema.EscapeIdentifier(c.Name)))
			break
		}
	}
	for _, idx := range t.Indexes {
		defs = append(defs, idx.Definition())
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci",
		schema.EscapeIdentifier(t.Name), strings.Join(defs, ",\n  "))
}

// ColumnsByName returns a mapping of column names to live column pointers.
func (t *Table) ColumnsByName() map[string]*Column {
	result := make(map[string]*Column, len(t.Columns))
	for _, c := range t.Columns {
		result[c.Name] = c
	}
	return result
}

// IndexesByName returns a mapping of index names to live index pointers.
func (t *Table) IndexesByName() map[string]*Index {
	result := make(map[string]*Index, len(t.Indexes))
	for _, idx := range t.Indexes {
		result[idx.Name] = idx
	}
	return result
}

// ForeignKeysByName returns a mapping of constraint names to live foreign
// key pointers.
func (t *Table) ForeignKeysByName() map[string]*ForeignKey {
	result := make(map[string]*ForeignKey, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		result[fk.Name] = fk
	}
	return result
}

// State is the complete live schema snapshot, minus ignored tables.
type State struct {
	Tables []*Table
}

// TablesByName returns a mapping of table names to live table pointers.
func (s *State) TablesByName() map[string]*Table {
	result := make(map[string]*Table, len(s.Tables))
	for _, t := range s.Tables {
		result[t.Name] = t
	}
	return result
}
