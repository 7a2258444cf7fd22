package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Table represents a single declared database table, assembled by the
// collector from an annotated resource type (or synthesized for a pivot).
type Table struct {
	Name        string
	Columns     []*Column
	Indexes     []*Index
	ForeignKeys []*ForeignKey
	Relations   map[string]*Relation
	Filterable  map[string]string // property name -> column name
	Synthetic   bool              // true for collector-synthesized pivot tables

	// ResourceType is the reflect type of the registered resource struct, or
	// nil for synthetic tables.
	ResourceType reflect.Type
}

// ColumnsByName returns a mapping of column names to Column pointers for all
// columns in the table.
func (t *Table) ColumnsByName() map[string]*Column {
	result := make(map[string]*Column, len(t.Columns))
	for _, c := range t.Columns {
		result[c.Name] = c
	}
	return result
}

// IndexesByName returns a mapping of index names to Index pointers.
func (t *Table) IndexesByName() map[string]*Index {
	result := make(map[string]*Index, len(t.Indexes))
	for _, idx := range t.Indexes {
		result[idx.Name] = idx
	}
	return result
}

// ForeignKeysByName returns a mapping of constraint names to ForeignKey
// pointers.
func (t *Table) ForeignKeysByName() map[string]*ForeignKey {
	result := make(map[string]*ForeignKey, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		result[fk.ConstraintName()] = fk
	}
	return result
}

// PrimaryKey returns the table's primary key column, or nil if the table has
// none.
func (t *Table) PrimaryKey() *Column {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c
		}
	}
	return nil
}

// CreateStatement generates the CREATE TABLE statement for this table.
// The primary key and all secondary indexes are inlined; foreign keys are
// deliberately not, since they are added in a later plan phase once every
// referenced table exists.
func (t *Table) CreateStatement() string {
	defs := make([]string, 0, len(t.Columns)+len(t.Indexes)+1)
	for _, c := range t.Columns {
		defs = append(defs, c.Definition())
	}
	if pk := t.PrimaryKey(); pk != nil {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", EscapeIdentifier(pk.Name)))
	}
	for _, idx := range t.Indexes {
		defs = append(defs, idx.Definition())
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci",
		EscapeIdentifier(t.Name), strings.Join(defs, ",\n  "))
}

// DropStatement returns a SQL statement that, if run, would drop this table.
func (t *Table) DropStatement() string {
	return fmt.Sprintf("DROP TABLE %s", EscapeIdentifier(t.Name))
}

// AlterStatement returns the prefix of an ALTER TABLE statement for this
// table.
func (t *Table) AlterStatement() string {
	return fmt.Sprintf("ALTER TABLE %s", EscapeIdentifier(t.Name))
}

// Schema is the complete declared schema: every collected table, in
// registration order (pivot tables appended after their owners).
type Schema struct {
	Tables []*Table

	// tablesByClass maps resource struct names to their tables, for relation
	// target resolution.
	tablesByClass map[string]*Table
}

// TablesByName returns a mapping of table names to Table pointers.
func (s *Schema) TablesByName() map[string]*Table {
	result := make(map[string]*Table, len(s.Tables))
	for _, t := range s.Tables {
		result[t.Name] = t
	}
	return result
}

// TableForClass returns the table declared by the named resource struct, or
// nil if no such resource was registered.
func (s *Schema) TableForClass(class string) *Table {
	return s.tablesByClass[class]
}
