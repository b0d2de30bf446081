// Package ident implements the Identifier and QualifiedName primitives of
// the data model: non-empty, ASCII-lowercased byte strings that compare
// equal bytewise once folded.
package ident

import "strings"

// Identifier is a non-empty, ASCII-lowercased name — a column, table,
// schema, function, or alias. Two identifiers are equal iff their bytes
// are equal after folding, which happens once at construction.
type Identifier string

// New folds s to an Identifier. Callers that already hold a lowercase,
// trimmed string (e.g. from a parser that lowercases identifiers itself)
// may use the conversion directly; New exists for raw, possibly-mixed-case
// input.
func New(s string) Identifier {
	b := []byte(strings.TrimSpace(s))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return Identifier(b)
}

// Empty reports whether the identifier carries no name.
func (i Identifier) Empty() bool {
	return len(i) == 0
}

func (i Identifier) String() string {
	return string(i)
}

// QualifiedName is an ordered (schema, name) pair. Schema may be empty,
// meaning "unqualified".
type QualifiedName struct {
	Schema Identifier
	Name   Identifier
}

// NewQualifiedName splits a possibly dotted "schema.name" or bare "name"
// string into a QualifiedName, folding both parts.
func NewQualifiedName(raw string) QualifiedName {
	raw = strings.TrimSpace(raw)
	if before, after, ok := strings.Cut(raw, "."); ok {
		return QualifiedName{Schema: New(before), Name: New(after)}
	}
	return QualifiedName{Name: New(raw)}
}

// Qualified reports whether an explicit schema was given.
func (q QualifiedName) Qualified() bool {
	return !q.Schema.Empty()
}

// String renders the canonical "[schema.]name" form.
func (q QualifiedName) String() string {
	if q.Qualified() {
		return string(q.Schema) + "." + string(q.Name)
	}
	return string(q.Name)
}

// ColumnID is the canonical "[schema.]table.column" identifier of a base
// relation column, used as the plan's source_col_id and as the Token
// Store's col_ref.
type ColumnID struct {
	Schema Identifier
	Table  Identifier
	Column Identifier
}

// String renders the canonical form used throughout the plan and token
// store: "[schema.]table.column", all parts already lowercased.
func (c ColumnID) String() string {
	var b strings.Builder
	if !c.Schema.Empty() {
		b.WriteString(string(c.Schema))
		b.WriteByte('.')
	}
	b.WriteString(string(c.Table))
	b.WriteByte('.')
	b.WriteString(string(c.Column))
	return b.String()
}

// Bytes is the byte form of String.
func (c ColumnID) Bytes() []byte {
	return []byte(c.String())
}
