package validator

import (
	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/ident"
	"github.com/brokerdb/sqlguard/internal/queryir"
)

// scope is one Query's analysis context (spec §4.4 step 2): the alias
// table (alias → resolved FromItem) and the output-column table (output
// alias → SelectItem), both keyed on lowercase bytes — which ident
// already guarantees by construction.
type scope struct {
	aliases map[ident.Identifier]queryir.FromItem
	outputs map[ident.Identifier]queryir.SelectItem
	// implicit is the scope's lone FromItem, used to resolve an
	// unqualified ColRef outside ORDER BY/GROUP BY when exactly one
	// relation is in scope. Nil when zero or more than one FromItem is
	// present, forcing an explicit qualifier.
	implicit *queryir.FromItem
}

// buildScope does not check the alias rule itself: Validate builds every
// node's scope before any rule runs, and a FromItem (or Join right-hand
// side) without a usable alias is rejected by ruleNoTableAlias before any
// later rule consults the scope.
func buildScope(q *queryir.Query) *scope {
	s := &scope{
		aliases: make(map[ident.Identifier]queryir.FromItem),
		outputs: make(map[ident.Identifier]queryir.SelectItem),
	}

	var all []queryir.FromItem
	all = append(all, q.FromItems...)
	for _, j := range q.Joins {
		all = append(all, j.Rhs)
	}
	for _, f := range all {
		s.aliases[f.EffectiveAlias()] = f
	}
	if len(all) == 1 {
		item := all[0]
		s.implicit = &item
	}

	for _, si := range q.SelectItems {
		if !si.Alias.Empty() {
			s.outputs[si.Alias] = si
		}
	}

	return s
}

// lookupFromItem locates the FromItem a ColRef's qualifier names —
// following the ORDER-BY/GROUP-BY output-alias fallback when applicable —
// regardless of what kind of relation it turns out to be. found is false
// only when the qualifier (or implicit single relation, or output alias)
// genuinely isn't in scope; this is the check VERR_NO_COLUMN_ALIAS uses,
// since a reference through a subquery or CTE alias is a perfectly valid
// column reference even though the Policy Catalog can't classify it.
func (s *scope) lookupFromItem(ref *queryir.Expr, orderByOrGroupBy bool) (queryir.FromItem, bool) {
	if ref.Qualifier.Empty() && orderByOrGroupBy {
		if si, found := s.outputs[ref.Column]; found && si.Value.IsPlainColRef() {
			return s.lookupFromItem(si.Value, false)
		}
		return queryir.FromItem{}, false
	}
	if ref.Qualifier.Empty() {
		if s.implicit == nil {
			return queryir.FromItem{}, false
		}
		return *s.implicit, true
	}
	item, found := s.aliases[ref.Qualifier]
	return item, found
}

// columnReferenceResolves reports whether ref names a real, in-scope
// relation — any kind, base table or otherwise. This is the predicate
// behind VERR_NO_COLUMN_ALIAS.
func (s *scope) columnReferenceResolves(ref *queryir.Expr, orderByOrGroupBy bool) bool {
	_, found := s.lookupFromItem(ref, orderByOrGroupBy)
	return found
}

// resolveColRef locates the base relation a ColRef names. ok is false
// when the reference can't be tied to a specific base relation at all
// (unresolved qualifier, or a qualifier that resolves to a non-base-table
// FromItem such as a subquery, CTE reference, or VALUES list — the
// Policy Catalog only describes base-table columns, so references through
// a derived alias are never classified sensitive by this function; any
// sensitivity they carry was already caught validating the relation that
// produces them). Column-existence itself is checked separately by
// columnReferenceResolves/VERR_NO_COLUMN_ALIAS.
func (s *scope) resolveColRef(ref *queryir.Expr, orderByOrGroupBy bool) (schema, table, column ident.Identifier, ok bool) {
	item, found := s.lookupFromItem(ref, orderByOrGroupBy)
	if !found || item.Kind != queryir.FromBaseRel {
		return "", "", "", false
	}
	return item.Schema, item.Name, ref.Column, true
}

// isSensitive reports whether ref resolves to a column the profile flags
// sensitive. A ColRef that can't be resolved to a base relation is treated
// as not sensitive by this helper — VERR_NO_COLUMN_ALIAS (a higher-priority
// rule) is what actually rejects unresolvable references before sensitivity
// is ever consulted.
func isSensitive(p *catalog.Profile, s *scope, ref *queryir.Expr, orderByOrGroupBy bool) bool {
	schema, table, column, ok := s.resolveColRef(ref, orderByOrGroupBy)
	if !ok {
		return false
	}
	return catalog.IsColumnSensitive(p, schema, table, column)
}

// canonicalColID renders the "[schema.]table.column" form for a resolved
// ColRef, used as a Plan entry's SourceColID.
func canonicalColID(s *scope, ref *queryir.Expr) (string, bool) {
	schema, table, column, ok := s.resolveColRef(ref, false)
	if !ok {
		return "", false
	}
	return ident.ColumnID{Schema: schema, Table: table, Column: column}.String(), true
}
