package sqllower

import (
	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/brokerdb/sqlguard/internal/ident"
	"github.com/brokerdb/sqlguard/internal/queryir"
)

// lowerSelect lowers one *sqlparser.Select into a Query. Marking the
// returned Query StatusUnsupported short-circuits the caller's walk (the
// validator treats any non-OK status as an immediate reject) rather than
// lowering the rest of a statement it can't faithfully represent.
func (l *lowerer) lowerSelect(sel *sqlparser.Select) *queryir.Query {
	q := l.arena.NewQuery()

	if sel.With != nil {
		if sel.With.Recursive {
			q.Status = queryir.StatusUnsupported
			q.Diagnostic = "recursive CTEs are not supported"
			return q
		}
		for _, cte := range sel.With.CTEs {
			body := l.lowerSelectStatement(cte.Subquery.Select)
			q.Ctes = append(q.Ctes, queryir.Cte{
				Name: ident.New(cte.TableID.String()),
				Body: body,
			})
		}
	}

	for _, se := range sel.SelectExprs {
		switch e := se.(type) {
		case *sqlparser.StarExpr:
			// Represented as a ColRef named "*" (qualified when the source
			// wrote alias.*) rather than a dedicated IR variant: the
			// validator's VERR_STAR rule is the first shape rule evaluated,
			// so this never reaches anywhere a real column would be
			// expected to resolve.
			star := l.arena.NewExpr(queryir.ExprColRef)
			star.Column = "*"
			if !e.TableName.IsEmpty() {
				star.Qualifier = ident.New(e.TableName.Name.String())
			}
			q.SelectItems = append(q.SelectItems, queryir.SelectItem{Value: star})
		case *sqlparser.AliasedExpr:
			item := queryir.SelectItem{Value: l.lowerExpr(e.Expr)}
			if !e.As.IsEmpty() {
				item.Alias = ident.New(e.As.String())
			}
			q.SelectItems = append(q.SelectItems, item)
		default:
			q.SelectItems = append(q.SelectItems, queryir.SelectItem{
				Value: l.arena.NewExpr(queryir.ExprUnsupported),
			})
		}
	}

	fromItems, joins := l.lowerTableExprs(sel.From)
	q.FromItems = fromItems
	q.Joins = joins

	// The grammar can't distinguish a CTE reference from an ordinary
	// table name at parse time (both are just a bare TableName), so every
	// FromBaseRel whose unqualified name matches one of this query's own
	// CTEs is reclassified to FromCteRef here, after both are known.
	if len(q.Ctes) > 0 {
		cteNames := make(map[ident.Identifier]bool, len(q.Ctes))
		for _, c := range q.Ctes {
			cteNames[c.Name] = true
		}
		reclassify := func(f *queryir.FromItem) {
			if f.Kind == queryir.FromBaseRel && f.Schema.Empty() && cteNames[f.Name] {
				f.Kind = queryir.FromCteRef
				f.CteName = f.Name
				f.Name = ""
			}
		}
		for i := range q.FromItems {
			reclassify(&q.FromItems[i])
		}
		for i := range q.Joins {
			reclassify(&q.Joins[i].Rhs)
		}
	}

	if sel.Where != nil {
		q.Where = l.lowerExpr(sel.Where.Expr)
	}
	for _, g := range sel.GroupBy {
		q.GroupBy = append(q.GroupBy, l.lowerExpr(g))
	}
	if sel.Having != nil {
		q.Having = l.lowerExpr(sel.Having.Expr)
	}
	for _, o := range sel.OrderBy {
		q.OrderBy = append(q.OrderBy, l.lowerExpr(o.Expr))
	}

	if sel.Limit != nil {
		if sel.Limit.Rowcount != nil {
			if n, ok := intLiteralValue(sel.Limit.Rowcount); ok {
				q.LimitValue = n
			}
		}
		q.HasOffset = sel.Limit.Offset != nil
	}

	q.HasDistinct = sel.Distinct

	return q
}

// lowerSelectStatement handles the SelectStatement interface a Subquery or
// CommonTableExpr wraps; only the plain *Select form is in scope; UNION
// and other set operations are deliberately unsupported.
func (l *lowerer) lowerSelectStatement(stmt sqlparser.SelectStatement) *queryir.Query {
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		q := l.arena.NewQuery()
		q.Status = queryir.StatusUnsupported
		q.Diagnostic = "set operations (UNION/INTERSECT/EXCEPT) are not supported"
		return q
	}
	return l.lowerSelect(sel)
}

// intLiteralValue extracts an integer value from a LIMIT/OFFSET operand,
// which the grammar only allows to be an integer literal or a parameter;
// parameters are rejected separately by the validator's
// VERR_PARAM_OUTSIDE_WHERE rule, so returning false here is enough to
// leave LimitValue at its "absent" sentinel.
func intLiteralValue(e sqlparser.Expr) (int64, bool) {
	lit, ok := e.(*sqlparser.Literal)
	if !ok || lit.Type != sqlparser.IntVal {
		return 0, false
	}
	var n int64
	for _, c := range []byte(lit.Val) {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}
