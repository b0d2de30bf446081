package validator

// EntryKind tags one output plan entry (spec §3 "Output Plan").
type EntryKind int

const (
	Plaintext EntryKind = iota
	Token
)

// Entry is one SELECT output column's disclosure classification.
// SourceColID is only set when Kind is Token, and is the canonical
// "[schema.]table.column" string of the originating base relation.
type Entry struct {
	Kind        EntryKind
	SourceColID string
}

// Plan is the validator's successful output: one Entry per SELECT output
// column of the outermost query, in SELECT-list order. A rejected
// validation always yields a nil Plan (spec §3's "plan is empty iff
// validation failed").
type Plan []Entry
