package validator

import "github.com/brokerdb/sqlguard/internal/queryir"

// queryNode is one Query in the tree — the outermost query, a CTE body, or
// a sub-select — paired with the scope built for it and whether it is the
// single query scope exempt from VERR_SENSITIVE_OUTSIDE_MAIN.
type queryNode struct {
	q      *queryir.Query
	isMain bool
	scope  *scope
}

// flatten collects root and every Query nested beneath it (CTE bodies,
// FROM sub-selects, and Expr sub-selects wherever they occur) in a stable,
// deterministic order: root first, then each CTE body, then each
// FROM/Expr sub-select encountered during a left-to-right walk of root's
// own clauses, recursively.
func flatten(root *queryir.Query) []*queryNode {
	var out []*queryNode
	var visit func(q *queryir.Query, isMain bool)
	visit = func(q *queryir.Query, isMain bool) {
		out = append(out, &queryNode{q: q, isMain: isMain})
		for _, cte := range q.Ctes {
			visit(cte.Body, false)
		}
		for _, f := range q.FromItems {
			if f.Kind == queryir.FromSubquery && f.Subquery != nil {
				visit(f.Subquery, false)
			}
		}
		for _, j := range q.Joins {
			if j.Rhs.Kind == queryir.FromSubquery && j.Rhs.Subquery != nil {
				visit(j.Rhs.Subquery, false)
			}
		}
		for _, site := range exprSites(q) {
			walkExpr(site, func(e *queryir.Expr) {
				if e.Kind == queryir.ExprSubquery && e.Subquery != nil {
					visit(e.Subquery, false)
				}
			})
		}
	}
	visit(root, true)
	return out
}

// exprSites lists the root Exprs of every clause belonging to q itself —
// not descending into nested Query scopes, which flatten and the scope
// builder handle independently.
func exprSites(q *queryir.Query) []*queryir.Expr {
	var sites []*queryir.Expr
	for _, si := range q.SelectItems {
		sites = append(sites, si.Value)
	}
	if q.Where != nil {
		sites = append(sites, q.Where)
	}
	sites = append(sites, q.GroupBy...)
	if q.Having != nil {
		sites = append(sites, q.Having)
	}
	sites = append(sites, q.OrderBy...)
	for _, j := range q.Joins {
		if j.On != nil {
			sites = append(sites, j.On)
		}
	}
	return sites
}

// walkExpr visits e and every descendant reachable through its own
// variant's child fields, calling visit on each node including e itself.
// It does not descend past an ExprSubquery boundary into that subquery's
// own clauses — those belong to a different Query, enumerated separately.
func walkExpr(e *queryir.Expr, visit func(*queryir.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch e.Kind {
	case queryir.ExprUnaryNot:
		walkExpr(e.Operand, visit)
	case queryir.ExprBinary:
		walkExpr(e.Lhs, visit)
		walkExpr(e.Rhs, visit)
	case queryir.ExprIn:
		walkExpr(e.InLhs, visit)
		for _, it := range e.InItems {
			walkExpr(it, visit)
		}
	case queryir.ExprCase:
		walkExpr(e.CaseArg, visit)
		for _, arm := range e.CaseArms {
			walkExpr(arm.When, visit)
			walkExpr(arm.Then, visit)
		}
		walkExpr(e.CaseElse, visit)
	case queryir.ExprFuncCall:
		for _, a := range e.FuncArgs {
			walkExpr(a, visit)
		}
	case queryir.ExprWindowFunc:
		walkExpr(e.WindowFn, visit)
		for _, p := range e.WindowPartitionBy {
			walkExpr(p, visit)
		}
		for _, o := range e.WindowOrderBy {
			walkExpr(o, visit)
		}
	case queryir.ExprCast:
		walkExpr(e.CastExpr, visit)
	}
}
