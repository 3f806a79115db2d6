// Package schema defines the canonical type system records are validated
// against before they are compared or written to another system.
//
// A Type is an ordered list of Fields. Each Field belongs to a closed set of
// kinds (int, float, string, datetime, reference, richtext, syncStatus) and
// knows how to coerce a raw provider value into its canonical Go form:
//
//	int        -> int64
//	float      -> float64
//	string     -> string
//	datetime   -> time.Time (UTC)
//	reference  -> string
//	richtext   -> RichText
//	syncStatus -> SyncStatus
//
// Types are grouped in a Registry, which checks cross-type references once at
// load time. Types and Fields are immutable after construction.
package schema
