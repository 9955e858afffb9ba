package store

import "errors"

// ErrRelationMissing is returned when a relation referenced by a rule, root,
// or transfer step has no backing table in the queried schema. Per spec.md
// §7 this is a StoreError: recoverable, logged, and the caller skips the
// offending unit of work.
var ErrRelationMissing = errors.New("fragment: relation missing from store")

// ErrTransient marks a store error the caller may retry (spec.md §7,
// "transient/unavailable" StoreError subclass), as opposed to
// ErrRelationMissing, which will not resolve itself on retry.
var ErrTransient = errors.New("fragment: transient store error")
