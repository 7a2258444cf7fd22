package syncer

import (
	"strings"
	"testing"

	"github.com/semitexa/orm/diff"
	"github.com/semitexa/orm/schema"
	"github.com/semitexa/orm/state"
)

func tableWithPK(name string, fks ...*schema.ForeignKey) *schema.Table {
	return &schema.Table{
		Name: name,
		Columns: []*schema.Column{
			{Name: "id", Type: schema.TypeInt, PrimaryKey: true, PKStrategy: schema.PKAuto},
		},
		ForeignKeys: fks,
		Relations:   map[string]*schema.Relation{},
		Filterable:  map[string]string{},
	}
}

func fk(table, column, refTable string) *schema.ForeignKey {
	return &schema.ForeignKey{
		Table: table, Column: column,
		ReferencedTable: refTable, ReferencedColumn: "id",
		OnDelete: schema.ActionRestrict, OnUpdate: schema.ActionRestrict,
	}
}

func TestPlanTopologicalCreateOrder(t *testing.T) {
	users := tableWithPK("users")
	orders := tableWithPK("orders", fk("orders", "user_id", "users"))
	items := tableWithPK("order_items", fk("order_items", "order_id", "orders"))

	// Deliberately reversed registration order.
	d := &diff.Diff{
		CreateTables: []*schema.Table{items, orders, users},
		AddForeignKeys: []diff.FKAdd{
			{FK: items.ForeignKeys[0]},
			{FK: orders.ForeignKeys[0]},
		},
	}
	plan := BuildPlan(d, nil)

	var creates []string
	var firstFK, lastCreate int
	for n, op := range plan.Operations {
		switch op.Kind {
		case OpCreateTable:
			creates = append(creates, op.Table)
			lastCreate = n
		case OpAddForeignKey:
			if firstFK == 0 {
				firstFK = n
			}
		}
	}
	expected := []string{"users", "orders", "order_items"}
	for n := range expected {
		if creates[n] != expected[n] {
			t.Fatalf("create order %v, expected %v", creates, expected)
		}
	}
	if firstFK < lastCreate {
		t.Error("ADD FOREIGN KEY must come after every CREATE TABLE")
	}
}

func TestPlanTolerantOfCycles(t *testing.T) {
	a := tableWithPK("alpha", fk("alpha", "beta_id", "beta"))
	b := tableWithPK("beta", fk("beta", "alpha_id", "alpha"))
	d := &diff.Diff{CreateTables: []*schema.Table{a, b}}

	plan := BuildPlan(d, nil)
	var creates int
	for _, op := range plan.Operations {
		if op.Kind == OpCreateTable {
			creates++
		}
	}
	if creates != 2 {
		t.Errorf("cycle produced %d creates, expected both tables", creates)
	}
}

func TestPlanTwoPhaseColumnDrop(t *testing.T) {
	liveCol := &state.Column{Name: "name", ColumnType: "varchar(255)", DataType: "varchar"}
	d := &diff.Diff{DropColumns: []diff.ColumnDrop{{Table: "users", Live: liveCol}}}

	plan := BuildPlan(d, nil)
	if len(plan.Operations) != 1 {
		t.Fatalf("expected one operation, got %d", len(plan.Operations))
	}
	op := plan.Operations[0]
	if op.Kind != OpDeprecateColumn || op.Destructive {
		t.Errorf("phase one must be a safe deprecate, got %+v", op)
	}
	expected := "ALTER TABLE `users` MODIFY COLUMN `name` varchar(255) NOT NULL COMMENT 'SEMITEXA_DEPRECATED'"
	if op.SQL != expected {
		t.Errorf("phase one SQL:\n%s\nexpected:\n%s", op.SQL, expected)
	}

	// Second run: the live column already carries the sentinel.
	liveCol.Comment = schema.DeprecationSentinel
	plan = BuildPlan(d, nil)
	op = plan.Operations[0]
	if op.Kind != OpDropColumn || !op.Destructive {
		t.Errorf("phase two must be a destructive drop, got %+v", op)
	}
	if op.SQL != "ALTER TABLE `users` DROP COLUMN `name`" {
		t.Errorf("phase two SQL: %s", op.SQL)
	}
}

func TestPlanTwoPhaseTableDrop(t *testing.T) {
	liveTable := &state.Table{Name: "legacy"}
	d := &diff.Diff{DropTables: []*state.Table{liveTable}}

	plan := BuildPlan(d, nil)
	op := plan.Operations[0]
	if op.Kind != OpDeprecateTable || op.Destructive {
		t.Errorf("phase one must be a safe deprecate, got %+v", op)
	}
	if op.SQL != "ALTER TABLE `legacy` COMMENT='SEMITEXA_DEPRECATED'" {
		t.Errorf("phase one SQL: %s", op.SQL)
	}

	liveTable.Comment = schema.DeprecationSentinel
	plan = BuildPlan(d, nil)
	op = plan.Operations[0]
	if op.Kind != OpDropTable || !op.Destructive {
		t.Errorf("phase two must be a destructive drop, got %+v", op)
	}
	if op.SQL != "DROP TABLE `legacy`" {
		t.Errorf("phase two SQL: %s", op.SQL)
	}
}

func TestPlanPhaseOrdering(t *testing.T) {
	users := tableWithPK("users")
	d := &diff.Diff{
		CreateTables: []*schema.Table{users},
		AddColumns: []diff.ColumnAdd{{
			Table:  "orders",
			Column: &schema.Column{Name: "status", Type: schema.TypeVarchar, Length: 32},
		}},
		AddIndexes: []diff.IndexAdd{{
			Table: "orders",
			Index: &schema.Index{Name: "idx_orders_status", Columns: []string{"status"}},
		}},
		DropIndexes: []diff.IndexDrop{{Table: "orders", Name: "idx_orders_old"}},
		AddForeignKeys: []diff.FKAdd{{
			FK: fk("orders", "user_id", "users"),
		}},
		DropForeignKeys: []diff.FKDrop{{Table: "orders", Name: "fk_orders_legacy_id"}},
		DropColumns: []diff.ColumnDrop{{
			Table: "orders",
			Live:  &state.Column{Name: "old", ColumnType: "int", DataType: "int", Nullable: true},
		}},
	}
	plan := BuildPlan(d, nil)

	order := make(map[OpKind]int)
	for n, op := range plan.Operations {
		order[op.Kind] = n
	}
	sequence := []OpKind{
		OpCreateTable, OpAddColumn, OpAddForeignKey, OpAddIndex,
		OpDropIndex, OpDeprecateColumn, OpDropForeignKey,
	}
	for n := 1; n < len(sequence); n++ {
		if order[sequence[n-1]] > order[sequence[n]] {
			t.Errorf("%s came after %s", sequence[n-1], sequence[n])
		}
	}
}

func TestPlanDestructiveCount(t *testing.T) {
	d := &diff.Diff{
		DropIndexes: []diff.IndexDrop{{Table: "users", Name: "idx_users_old"}},
		AddColumns: []diff.ColumnAdd{{
			Table:  "users",
			Column: &schema.Column{Name: "new_col", Type: schema.TypeInt},
		}},
	}
	plan := BuildPlan(d, nil)
	if plan.Destructive() != 1 {
		t.Errorf("expected 1 destructive operation, got %d", plan.Destructive())
	}
}

func TestPlanStatements(t *testing.T) {
	d := &diff.Diff{AddColumns: []diff.ColumnAdd{{
		Table:  "users",
		Column: &schema.Column{Name: "age", Type: schema.TypeInt, Nullable: true},
	}}}
	script := BuildPlan(d, nil).Statements()
	if !strings.Contains(script, "ALTER TABLE `users` ADD COLUMN `age` int DEFAULT NULL;") {
		t.Errorf("unexpected script:\n%s", script)
	}
}
