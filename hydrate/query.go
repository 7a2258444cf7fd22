package hydrate

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/semitexa/orm/dbconn"
	"github.com/semitexa/orm/schema"
)

// UnknownRelationError is returned when a filter names a property that is not
// a declared relation.
type UnknownRelationError struct {
	Resource string
	Property string
}

// Error satisfies the builtin error interface.
func (e *UnknownRelationError) Error() string {
	return fmt.Sprintf("%s has no relation %q", e.Resource, e.Property)
}

// NotFilterableError is returned when a filter names a property that is not
// in the filterable map.
type NotFilterableError struct {
	Resource string
	Property string
}

// Error satisfies the builtin error interface.
func (e *NotFilterableError) Error() string {
	return fmt.Sprintf("%s property %q is not filterable", e.Resource, e.Property)
}

// BadQueryError is returned for structurally invalid queries: an unknown
// operator, paging below 1, or an unconditional delete.
type BadQueryError struct {
	Message string
}

// Error satisfies the builtin error interface.
func (e *BadQueryError) Error() string { return e.Message }

var allowedOperators = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true, "LIKE": true,
}

// Query builds a SELECT (or guarded DELETE) over one resource table with
// filters on filterable columns and on related tables through a join. The
// builder is sticky on errors: the first failure is carried to the terminal
// call.
type Query struct {
	mapper *Mapper
	meta   *Metadata
	err    error

	wheres []string
	args   []any
	joins  []string
	joined map[string]bool

	limit  int
	offset int
}

// NewQuery starts a query over the resource's table. The resource value is
// only used to resolve metadata.
func (m *Mapper) NewQuery(resource any) *Query {
	meta, err := m.Metadata(resource)
	return &Query{mapper: m, meta: meta, err: err, joined: make(map[string]bool)}
}

// Filter adds an equality-style condition on a filterable property. A nil
// value becomes IS NULL, a slice becomes IN, anything else an equality.
func (q *Query) Filter(property string, value any) *Query {
	return q.FilterOp(property, "=", value)
}

// FilterOp is Filter with an explicit comparison operator. Operators outside
// the allowed set fail with BadQuery. IS NULL and IN shapes only apply to the
// equality operator.
func (q *Query) FilterOp(property, operator string, value any) *Query {
	if q.err != nil {
		return q
	}
	operator = strings.ToUpper(strings.TrimSpace(operator))
	if !allowedOperators[operator] {
		q.err = &BadQueryError{Message: fmt.Sprintf("unknown operator %q", operator)}
		return q
	}
	column, filterable := q.meta.Table.Filterable[property]
	if !filterable {
		q.err = &NotFilterableError{Resource: q.meta.Table.Name, Property: property}
		return q
	}
	q.addCondition(q.meta.Table.Name, column, operator, value)
	return q
}

// FilterRelation adds a condition on a filterable property of a related
// table, joining it in. Repeated filters on the same relation share one join.
func (q *Query) FilterRelation(relationProp, property string, value any) *Query {
	if q.err != nil {
		return q
	}
	rel, declared := q.meta.Table.Relations[relationProp]
	if !declared {
		q.err = &UnknownRelationError{Resource: q.meta.Table.Name, Property: relationProp}
		return q
	}
	target := q.mapper.schema.TablesByName()[rel.TargetTable]
	if target == nil {
		q.err = &UnknownRelationError{Resource: q.meta.Table.Name, Property: relationProp}
		return q
	}
	column, filterable := target.Filterable[property]
	if !filterable {
		q.err = &NotFilterableError{Resource: target.Name, Property: property}
		return q
	}
	if err := q.join(rel, target); err != nil {
		q.err = err
		return q
	}
	q.addCondition(target.Name, column, "=", value)
	return q
}

func (q *Query) join(rel *schema.Relation, target *schema.Table) error {
	if q.joined[rel.Property] {
		return nil
	}
	base := q.meta.Table
	switch rel.Kind {
	case schema.BelongsTo:
		pk := target.PrimaryKey()
		if pk == nil {
			return &BadQueryError{Message: fmt.Sprintf("cannot join %s: no primary key", target.Name)}
		}
		q.joins = append(q.joins, fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
			schema.EscapeIdentifier(target.Name),
			schema.EscapeIdentifier(base.Name), schema.EscapeIdentifier(rel.ForeignKey),
			schema.EscapeIdentifier(target.Name), schema.EscapeIdentifier(pk.Name)))
	case schema.HasMany, schema.OneToOne:
		pk := base.PrimaryKey()
		if pk == nil {
			return &BadQueryError{Message: fmt.Sprintf("cannot join from %s: no primary key", base.Name)}
		}
		q.joins = append(q.joins, fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
			schema.EscapeIdentifier(target.Name),
			schema.EscapeIdentifier(target.Name), schema.EscapeIdentifier(rel.ForeignKey),
			schema.EscapeIdentifier(base.Name), schema.EscapeIdentifier(pk.Name)))
	case schema.ManyToMany:
		basePK, targetPK := base.PrimaryKey(), target.PrimaryKey()
		if basePK == nil || targetPK == nil {
			return &BadQueryError{Message: fmt.Sprintf("cannot join %s through %s: missing primary key", target.Name, rel.PivotTable)}
		}
		q.joins = append(q.joins,
			fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
				schema.EscapeIdentifier(rel.PivotTable),
				schema.EscapeIdentifier(rel.PivotTable), schema.EscapeIdentifier(rel.ForeignKey),
				schema.EscapeIdentifier(base.Name), schema.EscapeIdentifier(basePK.Name)),
			fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
				schema.EscapeIdentifier(target.Name),
				schema.EscapeIdentifier(target.Name), schema.EscapeIdentifier(targetPK.Name),
				schema.EscapeIdentifier(rel.PivotTable), schema.EscapeIdentifier(rel.RelatedKey)))
	}
	q.joined[rel.Property] = true
	return nil
}

// addCondition renders the value shape: nil is IS NULL, a slice is IN, and
// everything else compares with the operator.
func (q *Query) addCondition(table, column, operator string, value any) {
	qualified := schema.EscapeIdentifier(table) + "." + schema.EscapeIdentifier(column)
	if value == nil {
		q.wheres = append(q.wheres, qualified+" IS NULL")
		return
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && rv.Type() != byteSliceType {
		n := rv.Len()
		q.wheres = append(q.wheres, fmt.Sprintf("%s IN (%s)", qualified, placeholders(n)))
		for i := 0; i < n; i++ {
			q.args = append(q.args, rv.Index(i).Interface())
		}
		return
	}
	q.wheres = append(q.wheres, fmt.Sprintf("%s %s ?", qualified, operator))
	q.args = append(q.args, value)
}

// Page applies LIMIT/OFFSET paging. Both page and perPage must be at least 1.
func (q *Query) Page(page, perPage int) *Query {
	if q.err != nil {
		return q
	}
	if page < 1 || perPage < 1 {
		q.err = &BadQueryError{Message: fmt.Sprintf("page %d / perPage %d: both must be at least 1", page, perPage)}
		return q
	}
	q.limit = perPage
	q.offset = (page - 1) * perPage
	return q
}

// SelectSQL renders the SELECT statement and its parameters.
func (q *Query) SelectSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	var b strings.Builder
	table := schema.EscapeIdentifier(q.meta.Table.Name)
	fmt.Fprintf(&b, "SELECT %s.* FROM %s", table, table)
	for _, join := range q.joins {
		b.WriteString(" " + join)
	}
	if len(q.wheres) > 0 {
		b.WriteString(" WHERE " + strings.Join(q.wheres, " AND "))
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", q.limit, q.offset)
	}
	return b.String(), q.args, nil
}

// DeleteSQL renders a DELETE statement. An unconditional delete is refused
// with BadQuery: a delete-everything must be written by hand, never built.
func (q *Query) DeleteSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if len(q.wheres) == 0 {
		return "", nil, &BadQueryError{Message: "refusing to build an unconditional DELETE"}
	}
	if len(q.joins) > 0 {
		return "", nil, &BadQueryError{Message: "DELETE does not support relation filters"}
	}
	table := schema.EscapeIdentifier(q.meta.Table.Name)
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", table, strings.Join(q.wheres, " AND "))
	return sql, q.args, nil
}

// All executes the SELECT and hydrates every row into a fresh resource
// pointer.
func (q *Query) All(ctx context.Context, exec dbconn.Executor) ([]any, error) {
	sql, args, err := q.SelectSQL()
	if err != nil {
		return nil, err
	}
	result, err := exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	resources := make([]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		instance := reflect.New(q.meta.Table.ResourceType)
		if err := hydrateInto(q.meta, row, instance.Interface()); err != nil {
			return nil, err
		}
		resources = append(resources, instance.Interface())
	}
	return resources, nil
}

// Delete executes the guarded DELETE and returns the affected row count.
func (q *Query) Delete(ctx context.Context, exec dbconn.Executor) (int64, error) {
	sql, args, err := q.DeleteSQL()
	if err != nil {
		return 0, err
	}
	result, err := exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return result.AffectedRows, nil
}
