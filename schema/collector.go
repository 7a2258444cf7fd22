// Package schema turns annotated resource types into a normalized declared
// schema: tables, columns, indexes, foreign keys, and relations. Collection
// validates everything up front so that no invalid identifier or contradictory
// declaration can ever reach the DDL layer.
package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
)

// Resource is the capability every mapped type must provide. The returned
// name is the declared database table.
type Resource interface {
	TableName() string
}

// DomainMapper is implemented by resources that convert themselves into a
// domain object after hydration.
type DomainMapper interface {
	ToDomain() any
}

// Indexer is implemented by resources declaring class-level composite
// indexes.
type Indexer interface {
	Indexes() []IndexSpec
}

// TenantScoped is implemented by resources that participate in tenant
// scoping. The only recognized strategy is "same_storage", which guarantees
// a tenant_id column on the table.
type TenantScoped interface {
	TenantStrategy() string
}

// Seeder is implemented by resources that provide default rows for the seed
// runner.
type Seeder interface {
	Defaults() []any
}

// ValidationError describes a collector-detected contradiction in the
// declared schema. Any ValidationError aborts sync before any database
// contact.
type ValidationError struct {
	Resource string
	Message  string
}

// Error satisfies the builtin error interface.
func (e *ValidationError) Error() string {
	if e.Resource == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Resource, e.Message)
}

// Result carries the collected schema together with every accumulated error
// and warning. Collection never fails fast: all problems are reported in one
// pass.
type Result struct {
	Schema   *Schema
	Errors   []*ValidationError
	Warnings []string
}

// Ok returns true if collection produced no errors. Warnings do not affect
// the outcome.
func (r *Result) Ok() bool {
	return len(r.Errors) == 0
}

// Collector accumulates registered resources and assembles the declared
// schema from their annotations.
type Collector struct {
	resources []Resource
	seen      map[reflect.Type]bool
}

// NewCollector returns a Collector primed with the given resources.
func NewCollector(resources ...Resource) *Collector {
	c := &Collector{seen: make(map[reflect.Type]bool)}
	c.Add(resources...)
	return c
}

// Add registers resources for collection. Duplicate registrations of the
// same type are ignored.
func (c *Collector) Add(resources ...Resource) {
	for _, r := range resources {
		t := structType(r)
		if t == nil || c.seen[t] {
			continue
		}
		c.seen[t] = true
		c.resources = append(c.resources, r)
	}
}

// Resources returns the registered resource prototypes in registration
// order.
func (c *Collector) Resources() []Resource {
	return c.resources
}

// Collect builds the declared schema. All errors and warnings are
// accumulated in the Result; Collect itself never fails.
func (c *Collector) Collect() *Result {
	res := &Result{Schema: &Schema{tablesByClass: make(map[string]*Table)}}
	for _, r := range c.resources {
		t := c.collectTable(r, res)
		if t == nil {
			continue
		}
		res.Schema.Tables = append(res.Schema.Tables, t)
		res.Schema.tablesByClass[t.ResourceType.Name()] = t
	}
	c.resolveRelations(res)
	c.postValidate(res)
	return res
}

func (c *Collector) errf(res *Result, resource, format string, args ...any) {
	res.Errors = append(res.Errors, &ValidationError{Resource: resource, Message: fmt.Sprintf(format, args...)})
}

func (c *Collector) warnf(res *Result, format string, args ...any) {
	res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
}

func structType(r Resource) reflect.Type {
	t := reflect.TypeOf(r)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// collectTable builds one table from one annotated resource type.
func (c *Collector) collectTable(r Resource, res *Result) *Table {
	rt := structType(r)
	name := r.TableName()
	if !ValidIdentifier(name) {
		c.errf(res, rt.Name(), "invalid table name %q", name)
		return nil
	}
	t := &Table{
		Name:         name,
		Relations:    make(map[string]*Relation),
		Filterable:   make(map[string]string),
		ResourceType: rt,
	}
	c.collectFields(rt, nil, t, res)

	// Filterable columns get an automatic non-unique single-column index.
	for _, colName := range sortedValues(t.Filterable) {
		idxName := GeneratedIndexName(t.Name, []string{colName}, false)
		if _, exists := t.IndexesByName()[idxName]; !exists {
			t.Indexes = append(t.Indexes, &Index{Name: idxName, Columns: []string{colName}})
		}
	}

	if indexer, ok := r.(Indexer); ok {
		for _, spec := range indexer.Indexes() {
			idx := &Index{Name: spec.Name, Columns: spec.Columns, Unique: spec.Unique}
			if idx.Name == "" {
				idx.Name = GeneratedIndexName(t.Name, idx.Columns, idx.Unique)
			}
			if !ValidIdentifier(idx.Name) {
				c.errf(res, rt.Name(), "invalid index name %q", idx.Name)
				continue
			}
			t.Indexes = append(t.Indexes, idx)
		}
	}

	if scoped, ok := r.(TenantScoped); ok && scoped.TenantStrategy() == "same_storage" {
		if _, exists := t.ColumnsByName()["tenant_id"]; !exists {
			t.Columns = append(t.Columns, &Column{
				Name:         "tenant_id",
				PropertyName: "tenant_id",
				Type:         TypeVarchar,
				Length:       64,
				SourceType:   "string",
			})
		}
	}
	return t
}

// collectFields walks the struct's fields, recursing into anonymous embedded
// structs so that shared mixins (timestamps, soft delete, UUID) contribute
// their columns. Duplicate column names merge silently: the first declaration
// wins and later ones are ignored.
func (c *Collector) collectFields(rt reflect.Type, indexPrefix []int, t *Table, res *Result) {
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fieldIndex := append(append([]int{}, indexPrefix...), i)
		raw, tagged := field.Tag.Lookup(TagName)
		if !tagged {
			if field.Anonymous && field.Type.Kind() == reflect.Struct {
				c.collectFields(field.Type, fieldIndex, t, res)
			}
			continue
		}
		ft, err := parseFieldTag(raw)
		if err != nil {
			c.errf(res, rt.Name(), "field %s: %s", field.Name, err)
			continue
		}
		switch {
		case ft.aggregate:
			// Virtual field: no column, no storage.
		case ft.isRelation():
			c.collectRelation(field, fieldIndex, ft, t, res)
		default:
			c.collectColumn(field, fieldIndex, ft, t, res)
		}
	}
}

func (c *Collector) collectColumn(field reflect.StructField, fieldIndex []int, ft *fieldTag, t *Table, res *Result) {
	owner := t.ResourceType.Name()
	colName := ft.col
	if colName == "" {
		colName = inflect.Underscore(field.Name)
	}
	if !ValidIdentifier(colName) {
		c.errf(res, owner, "field %s: invalid column name %q", field.Name, colName)
		return
	}
	if _, exists := t.ColumnsByName()[colName]; exists {
		return // later declarations of the same column are ignored
	}
	if ft.typ == "" {
		c.errf(res, owner, "field %s: column is missing a type", field.Name)
		return
	}
	colType := Type(ft.typ)
	if !colType.Known() {
		c.errf(res, owner, "field %s: unknown column type %q", field.Name, ft.typ)
		return
	}
	if !colType.CompatibleWith(field.Type) {
		c.errf(res, owner, "field %s: source type %s is not compatible with column type %s", field.Name, field.Type, colType)
		return
	}

	col := &Column{
		Name:         colName,
		PropertyName: field.Name,
		Type:         colType,
		SourceType:   field.Type.String(),
		Length:       ft.length,
		Precision:    ft.precision,
		Scale:        ft.scale,
		Deprecated:   ft.deprecated,
		FieldIndex:   fieldIndex,
	}
	if ft.nullable != nil {
		col.Nullable = *ft.nullable
	} else {
		col.Nullable = field.Type.Kind() == reflect.Ptr
	}
	if ft.hasDefault {
		def, err := typedDefault(ft.defaultRaw, colType)
		if err != nil {
			c.errf(res, owner, "field %s: %s", field.Name, err)
			return
		}
		col.Default = def
		col.HasDefault = true
	}

	if ft.pk != "" {
		strategy := PKStrategy(ft.pk)
		if !strategy.Known() {
			c.errf(res, owner, "field %s: unknown pk strategy %q", field.Name, ft.pk)
			return
		}
		if strategy == PKAuto && !colType.Integer() {
			c.errf(res, owner, "field %s: pk strategy auto requires an integer column, not %s", field.Name, colType)
			return
		}
		if strategy == PKUUID && colType != TypeBinary && colType != TypeVarchar {
			c.errf(res, owner, "field %s: pk strategy uuid requires a binary or varchar column, not %s", field.Name, colType)
			return
		}
		col.PrimaryKey = true
		col.PKStrategy = strategy
	}

	if ft.filterable {
		prop := ft.filterName
		if prop == "" {
			prop = field.Name
		}
		t.Filterable[prop] = colName
	}
	t.Columns = append(t.Columns, col)
}

func (c *Collector) collectRelation(field reflect.StructField, fieldIndex []int, ft *fieldTag, t *Table, res *Result) {
	owner := t.ResourceType.Name()
	kind := RelationKind(ft.rel)
	if !kind.Known() {
		c.errf(res, owner, "field %s: unknown relation kind %q", field.Name, ft.rel)
		return
	}
	target := ft.target
	if target == "" {
		target = relationTargetClass(field.Type)
	}
	if target == "" {
		c.errf(res, owner, "field %s: cannot determine relation target type", field.Name)
		return
	}
	rel := &Relation{
		Property:    field.Name,
		Kind:        kind,
		TargetClass: target,
		ForeignKey:  ft.fk,
		PivotTable:  ft.pivot,
		RelatedKey:  ft.related,
		OnDelete:    FKAction(ft.onDelete),
		OnUpdate:    FKAction(ft.onUpdate),
		FieldIndex:  fieldIndex,
	}
	if rel.OnDelete != "" && !rel.OnDelete.Known() {
		c.errf(res, owner, "field %s: unknown on_delete action %q", field.Name, ft.onDelete)
		return
	}
	if rel.OnUpdate != "" && !rel.OnUpdate.Known() {
		c.errf(res, owner, "field %s: unknown on_update action %q", field.Name, ft.onUpdate)
		return
	}
	t.Relations[field.Name] = rel
}

// relationTargetClass unwraps slices and pointers to find the struct type a
// relation field points at.
func relationTargetClass(ft reflect.Type) string {
	for ft.Kind() == reflect.Ptr || ft.Kind() == reflect.Slice {
		ft = ft.Elem()
	}
	if ft.Kind() != reflect.Struct {
		return ""
	}
	return ft.Name()
}

// resolveRelations runs after every resource table exists: it resolves
// relation targets, fills in default key names, synthesizes missing pivot
// tables, and emits the foreign key definitions for every relation.
func (c *Collector) resolveRelations(res *Result) {
	s := res.Schema
	fksByName := make(map[string]*ForeignKey)
	tablesByName := s.TablesByName()

	addFK := func(fk *ForeignKey) {
		name := fk.ConstraintName()
		if existing, dup := fksByName[name]; dup {
			if !existing.Equals(fk) {
				c.warnf(res, "conflicting definitions for foreign key %s; keeping the first", name)
			}
			return
		}
		fksByName[name] = fk
		owner := tablesByName[fk.Table]
		owner.ForeignKeys = append(owner.ForeignKeys, fk)
	}

	for _, t := range s.Tables {
		for _, prop := range sortedKeys(t.Relations) {
			rel := t.Relations[prop]
			target := s.TableForClass(rel.TargetClass)
			if target == nil {
				c.errf(res, t.ResourceType.Name(), "relation %s: target %s is not a registered resource", prop, rel.TargetClass)
				continue
			}
			rel.TargetTable = target.Name

			switch rel.Kind {
			case BelongsTo:
				if rel.ForeignKey == "" {
					rel.ForeignKey = inflect.Singularize(target.Name) + "_id"
				}
				fkCol, refPK := t.ColumnsByName()[rel.ForeignKey], target.PrimaryKey()
				if fkCol == nil {
					c.errf(res, t.ResourceType.Name(), "relation %s: foreign key column %s does not exist on %s", prop, rel.ForeignKey, t.Name)
					continue
				}
				if refPK == nil {
					c.errf(res, t.ResourceType.Name(), "relation %s: target table %s has no primary key", prop, target.Name)
					continue
				}
				addFK(c.buildFK(t.Name, fkCol, target.Name, refPK.Name, rel))
			case HasMany, OneToOne:
				if rel.ForeignKey == "" {
					rel.ForeignKey = inflect.Singularize(t.Name) + "_id"
				}
				fkCol, ownPK := target.ColumnsByName()[rel.ForeignKey], t.PrimaryKey()
				if fkCol == nil {
					c.errf(res, t.ResourceType.Name(), "relation %s: foreign key column %s does not exist on %s", prop, rel.ForeignKey, target.Name)
					continue
				}
				if ownPK == nil {
					c.errf(res, t.ResourceType.Name(), "relation %s: table %s has no primary key", prop, t.Name)
					continue
				}
				addFK(c.buildFK(target.Name, fkCol, t.Name, ownPK.Name, rel))
			case ManyToMany:
				if rel.ForeignKey == "" {
					rel.ForeignKey = inflect.Singularize(t.Name) + "_id"
				}
				if rel.RelatedKey == "" {
					rel.RelatedKey = inflect.Singularize(target.Name) + "_id"
				}
				if rel.PivotTable == "" {
					rel.PivotTable = defaultPivotName(t.Name, target.Name)
				}
				pivot, exists := tablesByName[rel.PivotTable]
				if !exists {
					pivot = synthesizePivot(rel.PivotTable, rel.ForeignKey, rel.RelatedKey)
					s.Tables = append(s.Tables, pivot)
					tablesByName[pivot.Name] = pivot
				}
				ownPK, refPK := t.PrimaryKey(), target.PrimaryKey()
				if ownPK == nil || refPK == nil {
					c.errf(res, t.ResourceType.Name(), "relation %s: both sides of a many-to-many need a primary key", prop)
					continue
				}
				pivotCols := pivot.ColumnsByName()
				if fkCol := pivotCols[rel.ForeignKey]; fkCol != nil {
					addFK(c.buildFK(pivot.Name, fkCol, t.Name, ownPK.Name, rel))
				}
				if relCol := pivotCols[rel.RelatedKey]; relCol != nil {
					addFK(c.buildFK(pivot.Name, relCol, target.Name, refPK.Name, rel))
				}
			}
		}
	}
}

// buildFK applies the default action rules: a nullable FK column defaults to
// SET NULL on delete and update, a NOT NULL one to RESTRICT. Explicit actions
// on the relation override the defaults.
func (c *Collector) buildFK(table string, col *Column, refTable, refColumn string, rel *Relation) *ForeignKey {
	onDelete, onUpdate := ActionRestrict, ActionRestrict
	if col.Nullable {
		onDelete, onUpdate = ActionSetNull, ActionSetNull
	}
	if rel.OnDelete != "" {
		onDelete = rel.OnDelete
	}
	if rel.OnUpdate != "" {
		onUpdate = rel.OnUpdate
	}
	return &ForeignKey{
		Table:            table,
		Column:           col.Name,
		ReferencedTable:  refTable,
		ReferencedColumn: refColumn,
		OnDelete:         onDelete,
		OnUpdate:         onUpdate,
	}
}

// defaultPivotName derives the conventional pivot table name: the two table
// names singularized, sorted, and joined with an underscore.
func defaultPivotName(a, b string) string {
	names := []string{inflect.Singularize(a), inflect.Singularize(b)}
	sort.Strings(names)
	return strings.Join(names, "_")
}

// synthesizePivot builds the implicit pivot table for a many-to-many
// relation: auto-increment id, the two key columns, and a unique composite
// index over them.
func synthesizePivot(name, foreignKey, relatedKey string) *Table {
	t := &Table{
		Name:       name,
		Relations:  make(map[string]*Relation),
		Filterable: make(map[string]string),
		Synthetic:  true,
	}
	t.Columns = []*Column{
		{Name: "id", PropertyName: "id", Type: TypeInt, SourceType: "int64", PrimaryKey: true, PKStrategy: PKAuto},
		{Name: foreignKey, PropertyName: foreignKey, Type: TypeInt, SourceType: "int64"},
		{Name: relatedKey, PropertyName: relatedKey, Type: TypeInt, SourceType: "int64"},
	}
	cols := []string{foreignKey, relatedKey}
	t.Indexes = []*Index{{
		Name:    GeneratedIndexName(name, cols, true),
		Columns: cols,
		Unique:  true,
	}}
	return t
}

// postValidate enforces the table invariants after every table, pivot, and
// foreign key exists.
func (c *Collector) postValidate(res *Result) {
	for _, t := range res.Schema.Tables {
		cols := t.ColumnsByName()
		var pkCount int
		for _, col := range t.Columns {
			if col.PrimaryKey {
				pkCount++
			}
		}
		if pkCount > 1 {
			c.errf(res, t.Name, "table has %d primary key columns; exactly one is required", pkCount)
		} else if pkCount == 0 {
			c.warnf(res, "table %s has no primary key", t.Name)
		}
		for _, idx := range t.Indexes {
			for _, colName := range idx.Columns {
				if cols[colName] == nil {
					c.errf(res, t.Name, "index %s references unknown column %s", idx.Name, colName)
				}
			}
		}
		for _, fk := range t.ForeignKeys {
			if cols[fk.Column] == nil {
				c.errf(res, t.Name, "foreign key %s references unknown column %s", fk.ConstraintName(), fk.Column)
			}
		}
		for _, col := range t.Columns {
			if !col.Deprecated {
				continue
			}
			for _, idx := range t.Indexes {
				for _, colName := range idx.Columns {
					if colName == col.Name {
						c.warnf(res, "table %s: deprecated column %s is still referenced by index %s", t.Name, col.Name, idx.Name)
					}
				}
			}
			for _, fk := range t.ForeignKeys {
				if fk.Column == col.Name {
					c.warnf(res, "table %s: deprecated column %s is still referenced by foreign key %s", t.Name, col.Name, fk.ConstraintName())
				}
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedValues(m map[string]string) []string {
	vals := make([]string, 0, len(m))
	for _, v := range m {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return vals
}
