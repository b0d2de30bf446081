package catalog

import "github.com/brokerdb/sqlguard/internal/ident"

// IsColumnSensitive implements the sensitivity decision of spec §3:
//
//   - a global rule for (table, column) makes it sensitive regardless of
//     schema;
//   - otherwise, an explicitly schema-qualified reference is sensitive iff
//     that schema is listed by a schema-scoped rule for (table, column);
//   - otherwise (unqualified reference, no global rule) it is sensitive iff
//     any schema-scoped rule exists for (table, column) at all — the
//     catalog does not resolve search_path, so it over-approximates toward
//     sensitivity.
//
// IsColumnSensitive is pure and deterministic; it never errors — invalid
// input (nil profile) is a programmer error, not a data error, and is
// guarded by the validator before this is ever called.
func IsColumnSensitive(p *Profile, schema, table, column ident.Identifier) bool {
	e, ok := p.columnIndex[columnKey{Table: table, Column: column}]
	if !ok {
		return false
	}
	if e.global {
		return true
	}
	if !schema.Empty() {
		_, listed := e.schemas[schema]
		return listed
	}
	return e.hasScoped
}

// IsFunctionSafe implements the same global/schema-list decision logic for
// function names (spec §4.1 "Function safety decision").
func IsFunctionSafe(p *Profile, schema, name ident.Identifier) bool {
	e, ok := p.functionIndex[name]
	if !ok {
		return false
	}
	if e.global {
		return true
	}
	if !schema.Empty() {
		_, listed := e.schemas[schema]
		return listed
	}
	return e.hasScoped
}
