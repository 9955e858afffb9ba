package schema

import "errors"

// ErrUnknownRelation is returned when a relation name referenced by a rule,
// root, or query has no entry in the Schema. Per spec.md §7 this is the
// SchemaMissing error class: recoverable, the caller skips the offending
// unit of work and continues.
var ErrUnknownRelation = errors.New("fragment: unknown relation")
