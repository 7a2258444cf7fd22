// Package syncer builds and executes the ordered DDL plan that reconciles
// the live database with the declared schema. Drops are realized in two
// phases through the deprecation sentinel; destructive operations only run
// when explicitly allowed.
package syncer

import (
	"fmt"
	"strings"

	"github.com/semitexa/orm/diff"
	"github.com/semitexa/orm/schema"
)

// OpKind labels an operation in the execution plan and in the audit log.
type OpKind string

// Constants for each plan operation kind.
const (
	OpCreateTable     OpKind = "create_table"
	OpAddColumn       OpKind = "add_column"
	OpAlterColumn     OpKind = "alter_column"
	OpAddForeignKey   OpKind = "add_foreign_key"
	OpAddIndex        OpKind = "add_index"
	OpDropIndex       OpKind = "drop_index"
	OpDeprecateColumn OpKind = "deprecate_column"
	OpDropColumn      OpKind = "drop_column"
	OpDropForeignKey  OpKind = "drop_foreign_key"
	OpDeprecateTable  OpKind = "deprecate_table"
	OpDropTable       OpKind = "drop_table"
)

// Operation is one DDL statement of the plan, classified safe or
// destructive.
type Operation struct {
	Kind        OpKind `json:"type"`
	Table       string `json:"table"`
	Destructive bool   `json:"destructive"`
	Description string `json:"description"`
	SQL         string `json:"sql"`
}

// Plan is the ordered sequence of operations for one sync run. The order is
// fixed so that no reference is ever live before its target: creates first
// (topologically), then additive changes, then drops.
type Plan struct {
	Operations []Operation
}

// Destructive returns how many operations in the plan are destructive.
func (p *Plan) Destructive() int {
	var n int
	for _, op := range p.Operations {
		if op.Destructive {
			n++
		}
	}
	return n
}

// Statements returns the plan as a runnable SQL script.
func (p *Plan) Statements() string {
	var b strings.Builder
	for _, op := range p.Operations {
		fmt.Fprintf(&b, "-- %s\n%s;\n\n", op.Description, op.SQL)
	}
	return b.String()
}

// BuildPlan turns a schema diff into the ordered execution plan.
func BuildPlan(d *diff.Diff, declared *schema.Schema) *Plan {
	p := &Plan{}

	// 1. CREATE TABLE, in topological order over foreign key dependencies.
	for _, t := range orderCreates(d.CreateTables) {
		p.Operations = append(p.Operations, Operation{
			Kind:        OpCreateTable,
			Table:       t.Name,
			Description: fmt.Sprintf("create table %s", t.Name),
			SQL:         t.CreateStatement(),
		})
	}

	// 2. ADD COLUMN.
	for _, add := range d.AddColumns {
		p.Operations = append(p.Operations, Operation{
			Kind:        OpAddColumn,
			Table:       add.Table,
			Description: fmt.Sprintf("add column %s.%s", add.Table, add.Column.Name),
			SQL:         fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", schema.EscapeIdentifier(add.Table), add.Column.Definition()),
		})
	}

	// 3. ALTER COLUMN: MODIFY with the full declared definition.
	for _, alter := range d.AlterColumns {
		p.Operations = append(p.Operations, Operation{
			Kind:        OpAlterColumn,
			Table:       alter.Table,
			Destructive: alter.Destructive(),
			Description: fmt.Sprintf("alter column %s.%s (%s)", alter.Table, alter.Declared.Name, strings.Join(alter.Changes, "; ")),
			SQL:         fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", schema.EscapeIdentifier(alter.Table), alter.Declared.Definition()),
		})
	}

	// 4. ADD FOREIGN KEY, after every table exists; this is also what closes
	// any dependency cycles the create order had to pass over.
	for _, add := range d.AddForeignKeys {
		p.Operations = append(p.Operations, Operation{
			Kind:        OpAddForeignKey,
			Table:       add.FK.Table,
			Description: fmt.Sprintf("add foreign key %s", add.FK.ConstraintName()),
			SQL:         fmt.Sprintf("ALTER TABLE %s ADD %s", schema.EscapeIdentifier(add.FK.Table), add.FK.Definition()),
		})
	}

	// 5. ADD INDEX.
	for _, add := range d.AddIndexes {
		p.Operations = append(p.Operations, Operation{
			Kind:        OpAddIndex,
			Table:       add.Table,
			Description: fmt.Sprintf("add index %s on %s", add.Index.Name, add.Table),
			SQL:         fmt.Sprintf("ALTER TABLE %s ADD %s", schema.EscapeIdentifier(add.Table), add.Index.Definition()),
		})
	}

	// 6. DROP INDEX.
	for _, drop := range d.DropIndexes {
		p.Operations = append(p.Operations, Operation{
			Kind:        OpDropIndex,
			Table:       drop.Table,
			Destructive: true,
			Description: fmt.Sprintf("drop index %s on %s", drop.Name, drop.Table),
			SQL:         fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", schema.EscapeIdentifier(drop.Table), schema.EscapeIdentifier(drop.Name)),
		})
	}

	// 7. DROP COLUMN, two-phase via the sentinel comment.
	for _, drop := range d.DropColumns {
		if !drop.Live.Deprecated() {
			p.Operations = append(p.Operations, Operation{
				Kind:        OpDeprecateColumn,
				Table:       drop.Table,
				Description: fmt.Sprintf("deprecate column %s.%s (phase 1 of 2)", drop.Table, drop.Live.Name),
				SQL: fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s",
					schema.EscapeIdentifier(drop.Table), drop.Live.Definition(schema.DeprecationSentinel)),
			})
			continue
		}
		p.Operations = append(p.Operations, Operation{
			Kind:        OpDropColumn,
			Table:       drop.Table,
			Destructive: true,
			Description: fmt.Sprintf("drop column %s.%s (phase 2 of 2)", drop.Table, drop.Live.Name),
			SQL:         fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", schema.EscapeIdentifier(drop.Table), schema.EscapeIdentifier(drop.Live.Name)),
		})
	}

	// 8. DROP FOREIGN KEY.
	for _, drop := range d.DropForeignKeys {
		p.Operations = append(p.Operations, Operation{
			Kind:        OpDropForeignKey,
			Table:       drop.Table,
			Destructive: true,
			Description: fmt.Sprintf("drop foreign key %s", drop.Name),
			SQL:         fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", schema.EscapeIdentifier(drop.Table), schema.EscapeIdentifier(drop.Name)),
		})
	}

	// 9. DROP TABLE, two-phase via the sentinel comment.
	for _, liveTable := range d.DropTables {
		if !liveTable.Deprecated() {
			p.Operations = append(p.Operations, Operation{
				Kind:        OpDeprecateTable,
				Table:       liveTable.Name,
				Description: fmt.Sprintf("deprecate table %s (phase 1 of 2)", liveTable.Name),
				SQL: fmt.Sprintf("ALTER TABLE %s COMMENT='%s'",
					schema.EscapeIdentifier(liveTable.Name), schema.DeprecationSentinel),
			})
			continue
		}
		p.Operations = append(p.Operations, Operation{
			Kind:        OpDropTable,
			Table:       liveTable.Name,
			Destructive: true,
			Description: fmt.Sprintf("drop table %s (phase 2 of 2)", liveTable.Name),
			SQL:         fmt.Sprintf("DROP TABLE %s", schema.EscapeIdentifier(liveTable.Name)),
		})
	}

	return p
}

// orderCreates sorts the tables to create so that referenced tables come
// first. Cycles are tolerated: an in-progress node is passed over, because
// the foreign keys closing any cycle are applied in the ADD FOREIGN KEY
// phase once all tables exist.
func orderCreates(tables []*schema.Table) []*schema.Table {
	byName := make(map[string]*schema.Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}
	const (
		unvisited = iota
		inProgress
		done
	)
	status := make(map[string]int, len(tables))
	ordered := make([]*schema.Table, 0, len(tables))

	var visit func(t *schema.Table)
	visit = func(t *schema.Table) {
		if status[t.Name] != unvisited {
			return
		}
		status[t.Name] = inProgress
		for _, fk := range t.ForeignKeys {
			if dep, creating := byName[fk.ReferencedTable]; creating && dep.Name != t.Name {
				visit(dep)
			}
		}
		status[t.Name] = done
		ordered = append(ordered, t)
	}
	for _, t := range tables {
		visit(t)
	}
	return ordered
}
