package schema

// RelationKind enumerates the supported relation shapes between resources.
type RelationKind string

// Constants for each relation kind.
const (
	BelongsTo  RelationKind = "belongs_to"
	HasMany    RelationKind = "has_many"
	OneToOne   RelationKind = "one_to_one"
	ManyToMany RelationKind = "many_to_many"
)

// Known returns true if k is a recognized relation kind.
func (k RelationKind) Known() bool {
	switch k {
	case BelongsTo, HasMany, OneToOne, ManyToMany:
		return true
	}
	return false
}

// Relation captures a declared relation between two resource types.
// TargetTable is resolved by the collector once all tables are known.
type Relation struct {
	Property    string       `json:"property"`
	Kind        RelationKind `json:"kind"`
	TargetClass string       `json:"targetClass"`
	TargetTable string       `json:"targetTable"`
	ForeignKey  string       `json:"foreignKey"`
	PivotTable  string       `json:"pivotTable,omitempty"`
	RelatedKey  string       `json:"relatedKey,omitempty"`
	OnDelete    FKAction     `json:"onDelete,omitempty"`
	OnUpdate    FKAction     `json:"onUpdate,omitempty"`

	// FieldIndex locates the relation property on the owning struct, for use
	// by the relation loader. Populated during collection.
	FieldIndex []int `json:"-"`
}
