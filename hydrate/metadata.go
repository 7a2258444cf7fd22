// Package hydrate converts between database rows and resource values: row
// hydration and dehydration, batched relation loading, and the filter query
// builder. All reflection work is resolved once per type and cached for the
// life of the process.
package hydrate

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/semitexa/orm/schema"
)

// Metadata is the resolved, read-only view of one resource type: its table,
// the columns that have a backing struct field, and the primary key. Built
// once per type and never invalidated.
type Metadata struct {
	Table *schema.Table

	// Columns maps DB column names to their definitions, restricted to
	// columns with a backing field. Synthetic columns (tenant_id, pivot
	// columns) have no field and are excluded: hydration silently projects
	// past them.
	Columns map[string]*schema.Column

	// PK is the table's primary key column, nil for pivot-only shapes.
	PK *schema.Column
}

type metadataEntry struct {
	once sync.Once
	meta *Metadata
	err  error
}

// Mapper resolves resource types against one collected schema. The metadata
// cache is process-wide per Mapper; concurrent first lookups of the same type
// build it exactly once.
type Mapper struct {
	schema *schema.Schema
	cache  sync.Map // reflect.Type -> *metadataEntry
}

// NewMapper builds a Mapper over a collected schema.
func NewMapper(s *schema.Schema) *Mapper {
	return &Mapper{schema: s}
}

// Schema exposes the collected schema the mapper resolves against.
func (m *Mapper) Schema() *schema.Schema {
	return m.schema
}

// Metadata returns the cached metadata for a resource value or pointer.
func (m *Mapper) Metadata(resource any) (*Metadata, error) {
	t := reflect.TypeOf(resource)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("resource must be a struct or pointer to struct, not %T", resource)
	}
	return m.metadataForType(t)
}

func (m *Mapper) metadataForType(t reflect.Type) (*Metadata, error) {
	actual, _ := m.cache.LoadOrStore(t, &metadataEntry{})
	entry := actual.(*metadataEntry)
	entry.once.Do(func() {
		entry.meta, entry.err = m.buildMetadata(t)
	})
	return entry.meta, entry.err
}

func (m *Mapper) buildMetadata(t reflect.Type) (*Metadata, error) {
	table := m.schema.TableForClass(t.Name())
	if table == nil {
		return nil, fmt.Errorf("type %s is not a collected resource", t.Name())
	}
	meta := &Metadata{
		Table:   table,
		Columns: make(map[string]*schema.Column, len(table.Columns)),
		PK:      table.PrimaryKey(),
	}
	for _, col := range table.Columns {
		if len(col.FieldIndex) > 0 {
			meta.Columns[col.Name] = col
		}
	}
	return meta, nil
}

// metadataForTable resolves metadata for a relation's target table.
func (m *Mapper) metadataForTable(table *schema.Table) (*Metadata, error) {
	if table.ResourceType == nil {
		return nil, fmt.Errorf("table %s has no resource type", table.Name)
	}
	return m.metadataForType(table.ResourceType)
}
