package schema

import (
	"fmt"
	"strings"
)

// Index represents a single declared secondary index.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// IndexSpec is the class-level index annotation supplied by resources that
// implement the Indexer capability. Name is optional; when blank, the
// generated name is used.
type IndexSpec struct {
	Columns []string
	Unique  bool
	Name    string
}

// GeneratedIndexName returns the deterministic name used for an index when
// none is declared explicitly: idx_{table}_{cols} for non-unique indexes,
// uniq_{table}_{cols} for unique ones.
func GeneratedIndexName(table string, columns []string, unique bool) string {
	prefix := "idx"
	if unique {
		prefix = "uniq"
	}
	return fmt.Sprintf("%s_%s_%s", prefix, table, strings.Join(columns, "_"))
}

// Definition returns this index's definition clause, for use as part of a
// CREATE TABLE statement or an ADD clause of ALTER TABLE.
func (idx *Index) Definition() string {
	parts := make([]string, len(idx.Columns))
	for n, col := range idx.Columns {
		parts[n] = EscapeIdentifier(col)
	}
	keyword := "KEY"
	if idx.Unique {
		keyword = "UNIQUE KEY"
	}
	return fmt.Sprintf("%s %s (%s)", keyword, EscapeIdentifier(idx.Name), strings.Join(parts, ","))
}

// Equals returns true if two indexes have the same name, columns, and
// uniqueness.
func (idx *Index) Equals(other *Index) bool {
	if idx == nil || other == nil {
		return idx == other
	}
	if idx.Name != other.Name || idx.Unique != other.Unique || len(idx.Columns) != len(other.Columns) {
		return false
	}
	for n := range idx.Columns {
		if idx.Columns[n] != other.Columns[n] {
			return false
		}
	}
	return true
}
