// Package schema describes the fixed patient-centric relational schema that
// the fragmentation pipeline operates over, and the primitives (relation
// names, columns, tuples) shared by every other package in this module.
//
// A Schema is a mapping from relation name to an ordered column list, the
// same shape the source system reads from PRAGMA table_info/
// information_schema.columns. Every relation is binary or ternary; the
// first column is always the subject key. Relation "Patient" (Name, Age,
// Gender) is the only ternary relation and the only one with a declared
// primary key; pkg/rules does not treat it specially.
package schema

import "fmt"

// Column describes one column of a relation.
type Column struct {
	Name string
	// PrimaryKey is true if this column is part of the relation's declared
	// primary key. A relation with no declared primary key treats every
	// column as a candidate key column (see Relation.KeyColumns).
	PrimaryKey bool
}

// Relation describes one relation's column layout.
type Relation struct {
	Name    string
	Columns []Column
}

// SubjectColumn returns the name of the first column, the subject key by
// schema convention (spec.md §3: "the first column is a subject key").
func (r Relation) SubjectColumn() string {
	if len(r.Columns) == 0 {
		return ""
	}
	return r.Columns[0].Name
}

// ColumnNames returns the relation's column names in declaration order.
func (r Relation) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// KeyColumns returns the columns identifying a tuple within the relation:
// the declared primary key columns if any exist, otherwise every column
// (full-tuple identity), per spec.md §3 ("Tuple").
func (r Relation) KeyColumns() []Column {
	var pk []Column
	for _, c := range r.Columns {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	if len(pk) == 0 {
		return r.Columns
	}
	return pk
}

// NonKeyColumns returns the columns that are candidates for holding a
// sensitive constant directly (spec.md §4.3, step 1): every non-primary-key
// column, or every column if the relation declares no primary key.
func (r Relation) NonKeyColumns() []Column {
	var nonKey []Column
	for _, c := range r.Columns {
		if !c.PrimaryKey {
			nonKey = append(nonKey, c)
		}
	}
	if len(nonKey) == 0 {
		return r.Columns
	}
	return nonKey
}

// Schema is the full set of known relations, keyed by relation name.
type Schema struct {
	relations map[string]Relation
	order     []string // declaration order, for deterministic iteration
}

// New builds a Schema from an ordered relation list.
func New(relations ...Relation) *Schema {
	s := &Schema{relations: make(map[string]Relation, len(relations))}
	for _, r := range relations {
		s.relations[r.Name] = r
		s.order = append(s.order, r.Name)
	}
	return s
}

// Relation looks up a relation by name. ErrUnknownRelation is returned
// (wrapped) when the relation does not exist, matching the SchemaMissing
// error class from spec.md §7.
func (s *Schema) Relation(name string) (Relation, error) {
	r, ok := s.relations[name]
	if !ok {
		return Relation{}, fmt.Errorf("relation %q: %w", name, ErrUnknownRelation)
	}
	return r, nil
}

// Has reports whether a relation with the given name is known.
func (s *Schema) Has(name string) bool {
	_, ok := s.relations[name]
	return ok
}

// Names returns every relation name in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// PatientSchema is the default schema named in spec.md §3: a Patient
// relation plus a set of subject-attribute relations used throughout the
// worked examples (spec.md §8, scenario 1).
func PatientSchema() *Schema {
	return New(
		Relation{Name: "Patient", Columns: []Column{
			{Name: "name", PrimaryKey: true},
			{Name: "age"},
			{Name: "gender"},
		}},
		Relation{Name: "Illness", Columns: []Column{
			{Name: "name"},
			{Name: "value"},
		}},
		Relation{Name: "Treatment", Columns: []Column{
			{Name: "name"},
			{Name: "value"},
		}},
		Relation{Name: "Medicine", Columns: []Column{
			{Name: "name"},
			{Name: "value"},
		}},
		Relation{Name: "Allergy", Columns: []Column{
			{Name: "name"},
			{Name: "value"},
		}},
		Relation{Name: "Insurance", Columns: []Column{
			{Name: "name"},
			{Name: "value"},
		}},
		Relation{Name: "LabResult", Columns: []Column{
			{Name: "name"},
			{Name: "value"},
		}},
		Relation{Name: "Hospital", Columns: []Column{
			{Name: "name"},
			{Name: "value"},
		}},
	)
}
