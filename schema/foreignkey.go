package schema

import (
	"fmt"
)

// ForeignKey represents a single declared foreign key constraint.
type ForeignKey struct {
	Table            string   `json:"table"`
	Column           string   `json:"column"`
	ReferencedTable  string   `json:"referencedTable"`
	ReferencedColumn string   `json:"referencedColumn"`
	OnDelete         FKAction `json:"onDelete"`
	OnUpdate         FKAction `json:"onUpdate"`
}

// ConstraintName returns the deterministic constraint name fk_{table}_{column}.
// The comparator assumes this name is unique per schema.
func (fk *ForeignKey) ConstraintName() string {
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// Definition returns this foreign key's constraint clause, for use in an
// ADD clause of ALTER TABLE. MySQL does not display ON DELETE RESTRICT or
// ON UPDATE RESTRICT, so those clauses are omitted to keep generated DDL
// aligned with what the server would echo back.
func (fk *ForeignKey) Definition() string {
	def := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		EscapeIdentifier(fk.ConstraintName()),
		EscapeIdentifier(fk.Column),
		EscapeIdentifier(fk.ReferencedTable),
		EscapeIdentifier(fk.ReferencedColumn))
	if fk.OnDelete != "" && fk.OnDelete != ActionRestrict {
		def += fmt.Sprintf(" ON DELETE %s", fk.OnDelete)
	}
	if fk.OnUpdate != "" && fk.OnUpdate != ActionRestrict {
		def += fmt.Sprintf(" ON UPDATE %s", fk.OnUpdate)
	}
	return def
}

// Equals returns true if two foreign keys are identical, false otherwise.
func (fk *ForeignKey) Equals(other *ForeignKey) bool {
	if fk == other {
		return true
	}
	if fk == nil || other == nil {
		return false
	}
	return *fk == *other
}
