package validator

import (
	"fmt"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/queryir"
)

// ruleUnsupportedConstruct is the validator's structural soundness gate,
// run before any other rule: a FromItem or Expr the lowerer deliberately
// collapsed to its Unsupported variant (LATERAL derived tables, window
// functions, constructs outside the parser collaborator's modeled subset)
// can't be reasoned about by any later rule, so its presence anywhere in
// the tree is rejected outright as VERR_UNSUPPORTED_QUERY rather than
// silently treated as absent.
func ruleUnsupportedConstruct(nodes []*queryNode) *Error {
	for _, n := range nodes {
		for _, f := range allFromItems(n.q) {
			if f.Kind == queryir.FromUnsupported {
				return reject(CodeUnsupportedQuery, "FROM clause uses an unsupported relation form")
			}
		}
		for _, site := range exprSites(n.q) {
			var found bool
			walkExpr(site, func(e *queryir.Expr) {
				if e.Kind == queryir.ExprUnsupported {
					found = true
				}
			})
			if found {
				return reject(CodeUnsupportedQuery, "query uses an unsupported expression form")
			}
		}
	}
	return nil
}

// allFromItems returns every FromItem a query directly introduces: its own
// FROM list plus each JOIN's right-hand side.
func allFromItems(q *queryir.Query) []queryir.FromItem {
	items := make([]queryir.FromItem, 0, len(q.FromItems)+len(q.Joins))
	items = append(items, q.FromItems...)
	for _, j := range q.Joins {
		items = append(items, j.Rhs)
	}
	return items
}

func fromItemLabel(f queryir.FromItem) string {
	switch f.Kind {
	case queryir.FromBaseRel:
		if f.Schema.Empty() {
			return f.Name.String()
		}
		return f.Schema.String() + "." + f.Name.String()
	case queryir.FromSubquery:
		return "<subquery>"
	case queryir.FromCteRef:
		return f.CteName.String()
	case queryir.FromValues:
		return "<values>"
	default:
		return "<unsupported>"
	}
}

// ruleStar is VERR_STAR: any "SELECT *" or "alias.*" in any query scope.
func ruleStar(nodes []*queryNode) *Error {
	for _, n := range nodes {
		for _, si := range n.q.SelectItems {
			if si.Value != nil && si.Value.Kind == queryir.ExprColRef && si.Value.Column == "*" {
				name := "*"
				if !si.Value.Qualifier.Empty() {
					name = si.Value.Qualifier.String() + ".*"
				}
				return reject(CodeStar, fmt.Sprintf("%q is not permitted in a SELECT list", name))
			}
		}
	}
	return nil
}

// ruleNoTableAlias is VERR_NO_TABLE_ALIAS: every FROM/JOIN item must have
// an explicit alias or be an unambiguous bare base-relation name, and no
// two items in the same scope may resolve to the same effective alias.
func ruleNoTableAlias(nodes []*queryNode) *Error {
	for _, n := range nodes {
		seen := make(map[string]bool)
		for _, f := range allFromItems(n.q) {
			alias := f.EffectiveAlias()
			if alias.Empty() {
				return reject(CodeNoTableAlias, fmt.Sprintf("%s requires an explicit alias", fromItemLabel(f)))
			}
			if seen[alias.String()] {
				return reject(CodeNoTableAlias, fmt.Sprintf("alias %q is used more than once", alias.String()))
			}
			seen[alias.String()] = true
		}
	}
	return nil
}

// colRefCheck pairs a ColRef with whether it sits in an ORDER BY/GROUP BY
// position, where an unqualified name may instead resolve against an
// output alias (spec §4.4 VERR_NO_COLUMN_ALIAS).
type colRefCheck struct {
	ref            *queryir.Expr
	orderOrGroupBy bool
}

// collectColRefChecks enumerates every ColRef a query directly references,
// tagging ORDER BY/GROUP BY top-level entries for alias-table fallback.
// Nested references (inside a function call argument, say) are never
// eligible for the output-alias fallback even within ORDER BY/GROUP BY.
func collectColRefChecks(q *queryir.Query) []colRefCheck {
	var out []colRefCheck
	add := func(e *queryir.Expr, top bool) {
		walkExpr(e, func(n *queryir.Expr) {
			if n.Kind != queryir.ExprColRef || n.Column == "*" {
				return
			}
			out = append(out, colRefCheck{ref: n, orderOrGroupBy: top && n == e})
		})
	}
	for _, si := range q.SelectItems {
		add(si.Value, false)
	}
	if q.Where != nil {
		add(q.Where, false)
	}
	for _, g := range q.GroupBy {
		add(g, true)
	}
	if q.Having != nil {
		add(q.Having, false)
	}
	for _, o := range q.OrderBy {
		add(o, true)
	}
	for _, j := range q.Joins {
		if j.On != nil {
			add(j.On, false)
		}
	}
	return out
}

// ruleNoColumnAlias is VERR_NO_COLUMN_ALIAS. Requires scopes already built
// (callers run this only after ruleNoTableAlias passes tree-wide).
func ruleNoColumnAlias(nodes []*queryNode) *Error {
	for _, n := range nodes {
		for _, c := range collectColRefChecks(n.q) {
			if !n.scope.columnReferenceResolves(c.ref, c.orderOrGroupBy) {
				name := c.ref.Column.String()
				if !c.ref.Qualifier.Empty() {
					name = c.ref.Qualifier.String() + "." + name
				}
				return reject(CodeNoColumnAlias, fmt.Sprintf("unresolved column reference %q", name))
			}
		}
	}
	return nil
}

// ruleJoinNotInner is VERR_JOIN_NOT_INNER.
func ruleJoinNotInner(nodes []*queryNode) *Error {
	for _, n := range nodes {
		for _, j := range n.q.Joins {
			if j.Kind != queryir.JoinInner {
				return reject(CodeJoinNotInner, fmt.Sprintf("join to %s must be INNER", fromItemLabel(j.Rhs)))
			}
		}
	}
	return nil
}

// joinOnEqualities decomposes a JOIN ON predicate into its top-level
// AND-connected equalities, returning ok=false if any conjunct isn't a
// plain "ColRef = ColRef" comparison or the tree contains OR/NOT.
func joinOnEqualities(on *queryir.Expr) ([][2]*queryir.Expr, bool) {
	if on == nil {
		return nil, false
	}
	var out [][2]*queryir.Expr
	var walk func(e *queryir.Expr) bool
	walk = func(e *queryir.Expr) bool {
		switch e.Kind {
		case queryir.ExprBinary:
			switch e.BinKind {
			case queryir.BinAnd:
				return walk(e.Lhs) && walk(e.Rhs)
			case queryir.BinEq:
				if e.Lhs.IsPlainColRef() && e.Rhs.IsPlainColRef() {
					out = append(out, [2]*queryir.Expr{e.Lhs, e.Rhs})
					return true
				}
				return false
			default:
				return false
			}
		default:
			return false
		}
	}
	if !walk(on) {
		return nil, false
	}
	return out, true
}

// ruleJoinOnInvalid is VERR_JOIN_ON_INVALID.
func ruleJoinOnInvalid(nodes []*queryNode) *Error {
	for _, n := range nodes {
		for _, j := range n.q.Joins {
			if j.Kind != queryir.JoinInner {
				continue // already rejected by the higher-priority rule
			}
			if _, ok := joinOnEqualities(j.On); !ok {
				return reject(CodeJoinOnInvalid, fmt.Sprintf("join to %s has a non-equality ON clause", fromItemLabel(j.Rhs)))
			}
		}
	}
	return nil
}

// ruleFuncUnsafe is VERR_FUNC_UNSAFE.
func ruleFuncUnsafe(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		for _, site := range exprSites(n.q) {
			var err *Error
			walkExpr(site, func(e *queryir.Expr) {
				if err != nil || e.Kind != queryir.ExprFuncCall {
					return
				}
				if !catalog.IsFunctionSafe(profile, e.FuncSchema, e.FuncName) {
					name := e.FuncName.String()
					if !e.FuncSchema.Empty() {
						name = e.FuncSchema.String() + "." + name
					}
					err = reject(CodeFuncUnsafe, fmt.Sprintf("function %q is not in the safe function policy", name))
				}
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
