package hydrate

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/semitexa/orm/dbconn"
	"github.com/semitexa/orm/schema"
)

// Loader batch-loads the declared relations of a homogeneous resource list.
// Each relation costs at most one SELECT regardless of batch size, except
// many-to-many which costs two (pivot, then targets).
type Loader struct {
	mapper *Mapper
	exec   dbconn.Executor
}

// NewLoader builds a Loader running statements through the given executor.
// Passing a transaction view pins all loader queries to that transaction.
func NewLoader(m *Mapper, exec dbconn.Executor) *Loader {
	return &Loader{mapper: m, exec: exec}
}

// LoadRelations populates relation fields for every resource in the slice.
// resources must be a slice of pointers to one resource type. only=nil loads
// every declared relation; an empty non-nil slice loads none; otherwise only
// the named properties load. An empty resource list issues no queries.
// Missing relation targets are empty results, never errors.
func (l *Loader) LoadRelations(ctx context.Context, resources any, only []string) error {
	rv := reflect.ValueOf(resources)
	if rv.Kind() != reflect.Slice {
		return fmt.Errorf("LoadRelations wants a slice of resource pointers, not %T", resources)
	}
	if rv.Len() == 0 {
		return nil
	}
	elemType := rv.Type().Elem()
	for elemType.Kind() == reflect.Ptr {
		elemType = elemType.Elem()
	}
	meta, err := l.mapper.metadataForType(elemType)
	if err != nil {
		return err
	}

	wanted := relationSet(only)
	for _, prop := range sortedRelationKeys(meta.Table.Relations) {
		if wanted != nil && !wanted[prop] {
			continue
		}
		rel := meta.Table.Relations[prop]
		target := l.mapper.schema.TablesByName()[rel.TargetTable]
		if target == nil || target.ResourceType == nil {
			continue
		}
		targetMeta, err := l.mapper.metadataForTable(target)
		if err != nil {
			return err
		}
		switch rel.Kind {
		case schema.BelongsTo:
			err = l.loadBelongsTo(ctx, rv, meta, targetMeta, rel)
		case schema.HasMany:
			err = l.loadHasMany(ctx, rv, meta, targetMeta, rel, false)
		case schema.OneToOne:
			err = l.loadHasMany(ctx, rv, meta, targetMeta, rel, true)
		case schema.ManyToMany:
			err = l.loadManyToMany(ctx, rv, meta, targetMeta, rel)
		}
		if err != nil {
			return fmt.Errorf("loading relation %s on %s: %w", prop, meta.Table.Name, err)
		}
	}
	return nil
}

// relationSet returns nil for "load everything" and a (possibly empty) set
// otherwise.
func relationSet(only []string) map[string]bool {
	if only == nil {
		return nil
	}
	set := make(map[string]bool, len(only))
	for _, prop := range only {
		set[prop] = true
	}
	return set
}

func (l *Loader) loadBelongsTo(ctx context.Context, parents reflect.Value, meta, targetMeta *Metadata, rel *schema.Relation) error {
	fkCol := meta.Table.ColumnsByName()[rel.ForeignKey]
	if fkCol == nil || len(fkCol.FieldIndex) == 0 || targetMeta.PK == nil {
		return nil
	}
	_, args := collectFieldValues(parents, fkCol.FieldIndex)
	if len(args) == 0 {
		return nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		schema.EscapeIdentifier(targetMeta.Table.Name),
		schema.EscapeIdentifier(targetMeta.PK.Name),
		placeholders(len(args)))
	result, err := l.exec.Query(ctx, query, args...)
	if err != nil {
		return err
	}

	byPK, _, err := indexRows(targetMeta, result.Rows, targetMeta.PK.Name)
	if err != nil {
		return err
	}
	for i := 0; i < parents.Len(); i++ {
		parent := derefStruct(parents.Index(i))
		key, initialized := fieldKey(parent.FieldByIndex(fkCol.FieldIndex))
		if !initialized {
			continue
		}
		if related, found := byPK[key]; found {
			setSingle(parent.FieldByIndex(rel.FieldIndex), related)
		}
	}
	return nil
}

// loadHasMany covers both has_many and one_to_one: the SELECT shape is the
// same, only the assignment differs (a grouped slice vs a single row).
func (l *Loader) loadHasMany(ctx context.Context, parents reflect.Value, meta, targetMeta *Metadata, rel *schema.Relation, single bool) error {
	fkCol := targetMeta.Table.ColumnsByName()[rel.ForeignKey]
	if meta.PK == nil || fkCol == nil {
		return nil
	}
	_, args := collectFieldValues(parents, meta.PK.FieldIndex)
	if len(args) == 0 {
		return nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		schema.EscapeIdentifier(targetMeta.Table.Name),
		schema.EscapeIdentifier(fkCol.Name),
		placeholders(len(args)))
	result, err := l.exec.Query(ctx, query, args...)
	if err != nil {
		return err
	}

	byFK, groups, err := indexRows(targetMeta, result.Rows, fkCol.Name)
	if err != nil {
		return err
	}
	for i := 0; i < parents.Len(); i++ {
		parent := derefStruct(parents.Index(i))
		key, initialized := fieldKey(parent.FieldByIndex(meta.PK.FieldIndex))
		if !initialized {
			continue
		}
		field := parent.FieldByIndex(rel.FieldIndex)
		if single {
			if related, found := byFK[key]; found {
				setSingle(field, related)
			}
			continue
		}
		setGroup(field, groups[key])
	}
	return nil
}

func (l *Loader) loadManyToMany(ctx context.Context, parents reflect.Value, meta, targetMeta *Metadata, rel *schema.Relation) error {
	if meta.PK == nil || targetMeta.PK == nil {
		return nil
	}
	_, args := collectFieldValues(parents, meta.PK.FieldIndex)
	if len(args) == 0 {
		return nil
	}

	pivotQuery := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s)",
		schema.EscapeIdentifier(rel.ForeignKey),
		schema.EscapeIdentifier(rel.RelatedKey),
		schema.EscapeIdentifier(rel.PivotTable),
		schema.EscapeIdentifier(rel.ForeignKey),
		placeholders(len(args)))
	pivotResult, err := l.exec.Query(ctx, pivotQuery, args...)
	if err != nil {
		return err
	}

	// parent key -> ordered related keys; relatedArgs keeps first-seen order
	// for the target query.
	relatedByParent := make(map[string][]string)
	seenRelated := make(map[string]bool)
	var relatedArgs []any
	for _, row := range pivotResult.Rows {
		parentKey := rawKey(row[rel.ForeignKey])
		relatedRaw := row[rel.RelatedKey]
		relatedKey := rawKey(relatedRaw)
		relatedByParent[parentKey] = append(relatedByParent[parentKey], relatedKey)
		if !seenRelated[relatedKey] {
			seenRelated[relatedKey] = true
			relatedArgs = append(relatedArgs, relatedRaw)
		}
	}

	byPK := make(map[string]reflect.Value)
	if len(relatedArgs) > 0 {
		targetQuery := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
			schema.EscapeIdentifier(targetMeta.Table.Name),
			schema.EscapeIdentifier(targetMeta.PK.Name),
			placeholders(len(relatedArgs)))
		targetResult, err := l.exec.Query(ctx, targetQuery, relatedArgs...)
		if err != nil {
			return err
		}
		byPK, _, err = indexRows(targetMeta, targetResult.Rows, targetMeta.PK.Name)
		if err != nil {
			return err
		}
	}

	for i := 0; i < parents.Len(); i++ {
		parent := derefStruct(parents.Index(i))
		key, initialized := fieldKey(parent.FieldByIndex(meta.PK.FieldIndex))
		if !initialized {
			continue
		}
		var related []reflect.Value
		for _, relatedKey := range relatedByParent[key] {
			if target, found := byPK[relatedKey]; found {
				related = append(related, target)
			}
		}
		setGroup(parent.FieldByIndex(rel.FieldIndex), related)
	}
	return nil
}

// indexRows hydrates each row into a fresh target instance and indexes the
// pointers by the raw value of keyColumn. The second return groups rows
// sharing a key, preserving the query's row order.
func indexRows(targetMeta *Metadata, rows []map[string]any, keyColumn string) (map[string]reflect.Value, map[string][]reflect.Value, error) {
	byKey := make(map[string]reflect.Value, len(rows))
	groups := make(map[string][]reflect.Value, len(rows))
	for _, row := range rows {
		instance := reflect.New(targetMeta.Table.ResourceType)
		if err := hydrateInto(targetMeta, row, instance.Interface()); err != nil {
			return nil, nil, err
		}
		key := rawKey(row[keyColumn])
		if _, exists := byKey[key]; !exists {
			byKey[key] = instance
		}
		groups[key] = append(groups[key], instance)
	}
	return byKey, groups, nil
}

// setSingle assigns a loaded *T to a relation field declared as *T or T.
func setSingle(field reflect.Value, related reflect.Value) {
	if field.Kind() == reflect.Ptr {
		field.Set(related)
		return
	}
	field.Set(related.Elem())
}

// setGroup assigns loaded rows to a relation field declared as []*T or []T.
// A parent with no rows gets an empty, non-nil slice.
func setGroup(field reflect.Value, related []reflect.Value) {
	if field.Kind() != reflect.Slice {
		return
	}
	out := reflect.MakeSlice(field.Type(), 0, len(related))
	for _, r := range related {
		if field.Type().Elem().Kind() == reflect.Ptr {
			out = reflect.Append(out, r)
		} else {
			out = reflect.Append(out, r.Elem())
		}
	}
	field.Set(out)
}

// collectFieldValues gathers the distinct initialized values of one field
// across the batch: normalized keys for matching plus the raw values in
// first-seen order for query parameters.
func collectFieldValues(parents reflect.Value, fieldIndex []int) (map[string]bool, []any) {
	keys := make(map[string]bool)
	var args []any
	for i := 0; i < parents.Len(); i++ {
		parent := derefStruct(parents.Index(i))
		field := parent.FieldByIndex(fieldIndex)
		key, initialized := fieldKey(field)
		if !initialized || keys[key] {
			continue
		}
		keys[key] = true
		for field.Kind() == reflect.Ptr {
			field = field.Elem()
		}
		args = append(args, field.Interface())
	}
	return keys, args
}

func derefStruct(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

// fieldKey normalizes a struct field value into a matching key. A nil pointer
// or zero value counts as uninitialized and never participates in batching.
func fieldKey(field reflect.Value) (string, bool) {
	for field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return "", false
		}
		field = field.Elem()
	}
	if field.IsZero() {
		return "", false
	}
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(field.Uint(), 10), true
	case reflect.String:
		return field.String(), true
	case reflect.Slice:
		if field.Type() == byteSliceType {
			return string(field.Bytes()), true
		}
	}
	return fmt.Sprint(field.Interface()), true
}

// rawKey normalizes a raw driver value into the same key space as fieldKey.
func rawKey(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func sortedRelationKeys(relations map[string]*schema.Relation) []string {
	keys := make([]string, 0, len(relations))
	for k := range relations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
