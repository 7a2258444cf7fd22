// Package diff compares the declared schema against the live database state
// and accumulates the differences. Comparison never touches the database;
// the sync engine turns the result into an ordered DDL plan.
package diff

import (
	"fmt"
	"strings"

	"github.com/semitexa/orm/schema"
	"github.com/semitexa/orm/state"
)

// ColumnAdd is a declared column missing from the live table.
type ColumnAdd struct {
	Table  string
	Column *schema.Column
}

// ColumnAlter is a column present on both sides with at least one difference.
// Changes holds human-readable descriptions for the plan.
type ColumnAlter struct {
	Table    string
	Declared *schema.Column
	Live     *state.Column
	Changes  []string
}

// TypeChanged returns true if the normalized declared type differs from the
// live column type.
func (a ColumnAlter) TypeChanged() bool {
	return a.Declared.TypeSQL() != schema.NormalizeLiveType(a.Live.ColumnType)
}

// Destructive returns true unless every type change is a pure widening.
// Non-type changes (nullability, default, auto-increment) are always safe.
func (a ColumnAlter) Destructive() bool {
	if !a.TypeChanged() {
		return false
	}
	return !Widening(schema.NormalizeLiveType(a.Live.ColumnType), a.Declared.TypeSQL())
}

// ColumnDrop is a live column absent from the declaration. The live state is
// carried so phase one of the two-phase drop can rebuild the full MODIFY
// COLUMN definition.
type ColumnDrop struct {
	Table string
	Live  *state.Column
}

// IndexAdd is a declared index missing from (or mismatched with) the live
// table.
type IndexAdd struct {
	Table string
	Index *schema.Index
}

// IndexDrop is a live index absent from (or mismatched with) the
// declaration.
type IndexDrop struct {
	Table string
	Name  string
}

// FKAdd is a declared foreign key missing from (or mismatched with) the live
// table.
type FKAdd struct {
	FK *schema.ForeignKey
}

// FKDrop is a live foreign key absent from (or mismatched with) the
// declaration.
type FKDrop struct {
	Table string
	Name  string
}

// Diff accumulates every difference between the declared schema and the live
// state.
type Diff struct {
	CreateTables    []*schema.Table
	DropTables      []*state.Table
	AddColumns      []ColumnAdd
	AlterColumns    []ColumnAlter
	DropColumns     []ColumnDrop
	AddIndexes      []IndexAdd
	DropIndexes     []IndexDrop
	AddForeignKeys  []FKAdd
	DropForeignKeys []FKDrop
}

// Empty returns true when nothing differs.
func (d *Diff) Empty() bool {
	return len(d.CreateTables) == 0 && len(d.DropTables) == 0 &&
		len(d.AddColumns) == 0 && len(d.AlterColumns) == 0 && len(d.DropColumns) == 0 &&
		len(d.AddIndexes) == 0 && len(d.DropIndexes) == 0 &&
		len(d.AddForeignKeys) == 0 && len(d.DropForeignKeys) == 0
}

// Compare diffs the declared schema against the live state. Ignored tables
// have already been filtered out of the state by the reader.
func Compare(declared *schema.Schema, live *state.State) *Diff {
	d := &Diff{}
	liveByName := live.TablesByName()
	declaredByName := declared.TablesByName()

	for _, t := range declared.Tables {
		liveTable, exists := liveByName[t.Name]
		if !exists {
			d.CreateTables = append(d.CreateTables, t)
			// Indexes are inlined in CREATE TABLE; foreign keys are added in
			// their own later phase once every table exists.
			for _, fk := range t.ForeignKeys {
				d.AddForeignKeys = append(d.AddForeignKeys, FKAdd{FK: fk})
			}
			continue
		}
		compareColumns(d, t, liveTable)
		compareIndexes(d, t, liveTable)
		compareForeignKeys(d, t, liveTable)
	}

	for _, liveTable := range live.Tables {
		if _, exists := declaredByName[liveTable.Name]; !exists {
			d.DropTables = append(d.DropTables, liveTable)
		}
	}
	return d
}

func compareColumns(d *Diff, declared *schema.Table, live *state.Table) {
	liveCols := live.ColumnsByName()
	declaredCols := declared.ColumnsByName()

	for _, col := range declared.Columns {
		liveCol, exists := liveCols[col.Name]
		if !exists {
			d.AddColumns = append(d.AddColumns, ColumnAdd{Table: declared.Name, Column: col})
			continue
		}
		if changes := columnChanges(col, liveCol); len(changes) > 0 {
			d.AlterColumns = append(d.AlterColumns, ColumnAlter{
				Table:    declared.Name,
				Declared: col,
				Live:     liveCol,
				Changes:  changes,
			})
		}
	}

	for _, liveCol := range live.Columns {
		if _, exists := declaredCols[liveCol.Name]; !exists {
			d.DropColumns = append(d.DropColumns, ColumnDrop{Table: declared.Name, Live: liveCol})
		}
	}
}

// columnChanges describes every difference between a declared column and its
// live counterpart. An empty result means the column is in sync.
func columnChanges(declared *schema.Column, live *state.Column) []string {
	var changes []string

	expectedType := declared.TypeSQL()
	liveType := schema.NormalizeLiveType(live.ColumnType)
	if expectedType != liveType {
		changes = append(changes, fmt.Sprintf("type: %s -> %s", liveType, expectedType))
	}
	if declared.Nullable != live.Nullable {
		changes = append(changes, fmt.Sprintf("nullable: %t -> %t", live.Nullable, declared.Nullable))
	}
	if declared.AutoIncrement() != live.AutoIncrement {
		changes = append(changes, fmt.Sprintf("auto_increment: %t -> %t", live.AutoIncrement, declared.AutoIncrement()))
	}
	declaredDefault, hasDeclared := declared.NormalizedDefault()
	switch {
	case hasDeclared && !live.Default.Valid:
		changes = append(changes, fmt.Sprintf("default: none -> '%s'", declaredDefault))
	case !hasDeclared && live.Default.Valid:
		changes = append(changes, fmt.Sprintf("default: '%s' -> none", live.Default.String))
	case hasDeclared && live.Default.Valid && declaredDefault != live.Default.String:
		changes = append(changes, fmt.Sprintf("default: '%s' -> '%s'", live.Default.String, declaredDefault))
	}
	return changes
}

func compareIndexes(d *Diff, declared *schema.Table, live *state.Table) {
	liveIndexes := live.IndexesByName()
	declaredIndexes := declared.IndexesByName()
	liveFKs := live.ForeignKeysByName()

	for _, idx := range declared.Indexes {
		liveIdx, exists := liveIndexes[idx.Name]
		if !exists {
			d.AddIndexes = append(d.AddIndexes, IndexAdd{Table: declared.Name, Index: idx})
			continue
		}
		if liveIdx.Unique != idx.Unique || !sameColumns(idx.Columns, liveIdx.Columns) {
			d.DropIndexes = append(d.DropIndexes, IndexDrop{Table: declared.Name, Name: idx.Name})
			d.AddIndexes = append(d.AddIndexes, IndexAdd{Table: declared.Name, Index: idx})
		}
	}

	for _, liveIdx := range live.Indexes {
		if _, exists := declaredIndexes[liveIdx.Name]; exists {
			continue
		}
		// InnoDB auto-creates a backing index named after the FK constraint;
		// those are managed through the foreign key lifecycle, not here.
		if _, backsFK := liveFKs[liveIdx.Name]; backsFK {
			continue
		}
		d.DropIndexes = append(d.DropIndexes, IndexDrop{Table: declared.Name, Name: liveIdx.Name})
	}
}

func compareForeignKeys(d *Diff, declared *schema.Table, live *state.Table) {
	liveFKs := live.ForeignKeysByName()
	declaredFKs := declared.ForeignKeysByName()

	for _, fk := range declared.ForeignKeys {
		liveFK, exists := liveFKs[fk.ConstraintName()]
		if !exists {
			d.AddForeignKeys = append(d.AddForeignKeys, FKAdd{FK: fk})
			continue
		}
		if !fkMatchesLive(fk, liveFK) {
			d.DropForeignKeys = append(d.DropForeignKeys, FKDrop{Table: declared.Name, Name: fk.ConstraintName()})
			d.AddForeignKeys = append(d.AddForeignKeys, FKAdd{FK: fk})
		}
	}

	for _, liveFK := range live.ForeignKeys {
		if _, exists := declaredFKs[liveFK.Name]; !exists {
			d.DropForeignKeys = append(d.DropForeignKeys, FKDrop{Table: declared.Name, Name: liveFK.Name})
		}
	}
}

func fkMatchesLive(declared *schema.ForeignKey, live *state.ForeignKey) bool {
	return declared.Column == live.Column &&
		declared.ReferencedTable == live.ReferencedTable &&
		declared.ReferencedColumn == live.ReferencedColumn &&
		strings.EqualFold(string(declared.OnDelete), live.DeleteRule) &&
		strings.EqualFold(string(declared.OnUpdate), live.UpdateRule)
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n] != b[n] {
			return false
		}
	}
	return true
}
