package validator

import (
	"fmt"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/queryir"
)

func colRefName(e *queryir.Expr) string {
	if e.Qualifier.Empty() {
		return e.Column.String()
	}
	return e.Qualifier.String() + "." + e.Column.String()
}

// findSensitiveColRef returns the first plain ColRef anywhere beneath e
// (e included) that resolves to a sensitive column, or nil.
func findSensitiveColRef(s *scope, p *catalog.Profile, e *queryir.Expr) *queryir.Expr {
	return findSensitiveColRefTop(s, p, e, false)
}

// findSensitiveColRefTop is findSensitiveColRef, but when e occupies a
// top-level GROUP BY/ORDER BY position (topOrderOrGroupBy) and is itself a
// plain ColRef, the sensitivity check may resolve it through the scope's
// output-alias table, exactly as collectColRefChecks in rules_shape.go
// tags the same position for VERR_NO_COLUMN_ALIAS. A ColRef nested inside
// e (say, a function argument) is never eligible for that fallback even
// when e itself is.
func findSensitiveColRefTop(s *scope, p *catalog.Profile, e *queryir.Expr, topOrderOrGroupBy bool) *queryir.Expr {
	if e.IsPlainColRef() {
		if isSensitive(p, s, e, topOrderOrGroupBy) {
			return e
		}
		return nil
	}
	var found *queryir.Expr
	walkExpr(e, func(n *queryir.Expr) {
		if found != nil || !n.IsPlainColRef() {
			return
		}
		if isSensitive(p, s, n, false) {
			found = n
		}
	})
	return found
}

// ruleJoinOnSensitive is VERR_JOIN_ON_SENSITIVE: any side of a join
// equality resolves to a sensitive column. Runs only on joins that already
// passed VERR_JOIN_ON_INVALID (every ON is a conjunction of ColRef=ColRef).
func ruleJoinOnSensitive(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		for _, j := range n.q.Joins {
			eqs, ok := joinOnEqualities(j.On)
			if !ok {
				continue
			}
			for _, pair := range eqs {
				if isSensitive(profile, n.scope, pair[0], false) {
					return reject(CodeJoinOnSensitive, fmt.Sprintf("join condition references sensitive column %q", colRefName(pair[0])))
				}
				if isSensitive(profile, n.scope, pair[1], false) {
					return reject(CodeJoinOnSensitive, fmt.Sprintf("join condition references sensitive column %q", colRefName(pair[1])))
				}
			}
		}
	}
	return nil
}

// ruleSensitiveSelectExpr is VERR_SENSITIVE_SELECT_EXPR: a sensitive
// column appears in the SELECT list wrapped in anything other than a bare
// ColRef.
func ruleSensitiveSelectExpr(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		for _, si := range n.q.SelectItems {
			if si.Value.IsPlainColRef() {
				continue
			}
			if ref := findSensitiveColRef(n.scope, profile, si.Value); ref != nil {
				return reject(CodeSensitiveSelectExpr, fmt.Sprintf("sensitive column %q must be a bare SELECT expression", colRefName(ref)))
			}
		}
	}
	return nil
}

// ruleSensitiveLoc is VERR_SENSITIVE_LOC: a sensitive column appears in
// GROUP BY, HAVING, ORDER BY, or a DISTINCT expression list.
func ruleSensitiveLoc(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		for _, g := range n.q.GroupBy {
			if ref := findSensitiveColRefTop(n.scope, profile, g, true); ref != nil {
				return reject(CodeSensitiveLoc, fmt.Sprintf("sensitive column %q is not permitted in GROUP BY", colRefName(ref)))
			}
		}
		if n.q.Having != nil {
			if ref := findSensitiveColRef(n.scope, profile, n.q.Having); ref != nil {
				return reject(CodeSensitiveLoc, fmt.Sprintf("sensitive column %q is not permitted in HAVING", colRefName(ref)))
			}
		}
		for _, o := range n.q.OrderBy {
			if ref := findSensitiveColRefTop(n.scope, profile, o, true); ref != nil {
				return reject(CodeSensitiveLoc, fmt.Sprintf("sensitive column %q is not permitted in ORDER BY", colRefName(ref)))
			}
		}
	}
	return nil
}

// ruleSensitiveCmp is VERR_SENSITIVE_CMP: a sensitive column is compared
// in WHERE with any operator other than = or IN, or bound against
// anything but a Param.
func ruleSensitiveCmp(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		if n.q.Where == nil {
			continue
		}
		if err := evalWhereNodeCmp(n.scope, profile, n.q.Where); err != nil {
			return err
		}
	}
	return nil
}

func evalWhereNodeCmp(s *scope, profile *catalog.Profile, e *queryir.Expr) *Error {
	switch e.Kind {
	case queryir.ExprUnaryNot:
		return evalWhereNodeCmp(s, profile, e.Operand)

	case queryir.ExprBinary:
		if e.BinKind == queryir.BinAnd || e.BinKind == queryir.BinOr {
			if err := evalWhereNodeCmp(s, profile, e.Lhs); err != nil {
				return err
			}
			return evalWhereNodeCmp(s, profile, e.Rhs)
		}

		lhsSens := e.Lhs.IsPlainColRef() && isSensitive(profile, s, e.Lhs, false)
		rhsSens := e.Rhs.IsPlainColRef() && isSensitive(profile, s, e.Rhs, false)
		if lhsSens || rhsSens {
			offender := e.Lhs
			if !lhsSens {
				offender = e.Rhs
			}
			if e.BinKind != queryir.BinEq {
				return reject(CodeSensitiveCmp, fmt.Sprintf("sensitive column %q compared with an operator other than = or IN", colRefName(offender)))
			}
			if lhsSens && rhsSens {
				return reject(CodeSensitiveCmp, fmt.Sprintf("sensitive column %q compared against another column", colRefName(offender)))
			}
			other := e.Rhs
			if !lhsSens {
				other = e.Lhs
			}
			if other.Kind != queryir.ExprParam {
				return reject(CodeSensitiveCmp, fmt.Sprintf("sensitive column %q must be compared against a parameter", colRefName(offender)))
			}
			return nil
		}
		if ref := findSensitiveColRef(s, profile, e.Lhs); ref != nil {
			return reject(CodeSensitiveCmp, fmt.Sprintf("sensitive column %q used in an unsupported comparison", colRefName(ref)))
		}
		if ref := findSensitiveColRef(s, profile, e.Rhs); ref != nil {
			return reject(CodeSensitiveCmp, fmt.Sprintf("sensitive column %q used in an unsupported comparison", colRefName(ref)))
		}
		return nil

	case queryir.ExprIn:
		lhsSens := e.InLhs.IsPlainColRef() && isSensitive(profile, s, e.InLhs, false)
		for _, it := range e.InItems {
			if it.IsPlainColRef() && isSensitive(profile, s, it, false) {
				return reject(CodeSensitiveCmp, fmt.Sprintf("sensitive column %q used in an unsupported comparison", colRefName(it)))
			}
			if ref := findSensitiveColRef(s, profile, it); ref != nil {
				return reject(CodeSensitiveCmp, fmt.Sprintf("sensitive column %q used in an unsupported comparison", colRefName(ref)))
			}
		}
		if lhsSens {
			for _, it := range e.InItems {
				if it.Kind != queryir.ExprParam {
					return reject(CodeSensitiveCmp, fmt.Sprintf("sensitive column %q must be compared against parameters", colRefName(e.InLhs)))
				}
			}
			return nil
		}
		if ref := findSensitiveColRef(s, profile, e.InLhs); ref != nil {
			return reject(CodeSensitiveCmp, fmt.Sprintf("sensitive column %q used in an unsupported comparison", colRefName(ref)))
		}
		return nil

	default:
		if ref := findSensitiveColRef(s, profile, e); ref != nil {
			return reject(CodeSensitiveCmp, fmt.Sprintf("sensitive column %q used in an unsupported comparison", colRefName(ref)))
		}
		return nil
	}
}

// whereIsConjunction reports whether e contains no OR or NOT anywhere —
// VERR_WHERE_NOT_CONJ.
func whereIsConjunction(e *queryir.Expr) bool {
	if e == nil {
		return true
	}
	switch e.Kind {
	case queryir.ExprUnaryNot:
		return false
	case queryir.ExprBinary:
		switch e.BinKind {
		case queryir.BinAnd:
			return whereIsConjunction(e.Lhs) && whereIsConjunction(e.Rhs)
		case queryir.BinOr:
			return false
		}
	}
	return true
}

// ruleWhereNotConj is VERR_WHERE_NOT_CONJ.
func ruleWhereNotConj(nodes []*queryNode) *Error {
	for _, n := range nodes {
		if n.q.Where != nil && !whereIsConjunction(n.q.Where) {
			return reject(CodeWhereNotConj, "WHERE must be a conjunction of predicates with no OR or NOT")
		}
	}
	return nil
}

// nonWhereSites lists every clause a query owns other than WHERE, the only
// clause a Param may legally occur in.
func nonWhereSites(q *queryir.Query) []*queryir.Expr {
	var sites []*queryir.Expr
	for _, si := range q.SelectItems {
		sites = append(sites, si.Value)
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

// ruleParamOutsideWhere is VERR_PARAM_OUTSIDE_WHERE.
func ruleParamOutsideWhere(nodes []*queryNode) *Error {
	for _, n := range nodes {
		for _, site := range nonWhereSites(n.q) {
			var err *Error
			walkExpr(site, func(e *queryir.Expr) {
				if err == nil && e.Kind == queryir.ExprParam {
					err = reject(CodeParamOutsideWhere, fmt.Sprintf("parameter $%d is only permitted in WHERE", e.ParamIndex))
				}
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// ruleParamNonSensitive is VERR_PARAM_NON_SENSITIVE: a Param appears on
// one side of a WHERE comparison whose other side is a non-sensitive
// ColRef.
func ruleParamNonSensitive(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		if n.q.Where == nil {
			continue
		}
		var err *Error
		walkExpr(n.q.Where, func(e *queryir.Expr) {
			if err != nil || e.Kind != queryir.ExprBinary {
				return
			}
			if e.BinKind == queryir.BinAnd || e.BinKind == queryir.BinOr {
				return
			}
			if e.Lhs.Kind == queryir.ExprParam && e.Rhs.IsPlainColRef() && !isSensitive(profile, n.scope, e.Rhs, false) {
				err = reject(CodeParamNonSensitive, fmt.Sprintf("parameter bound against non-sensitive column %q", colRefName(e.Rhs)))
			}
			if e.Rhs.Kind == queryir.ExprParam && e.Lhs.IsPlainColRef() && !isSensitive(profile, n.scope, e.Lhs, false) {
				err = reject(CodeParamNonSensitive, fmt.Sprintf("parameter bound against non-sensitive column %q", colRefName(e.Lhs)))
			}
		})
		if err != nil {
			return err
		}
		if in := findParamAgainstNonSensitiveIn(n.scope, profile, n.q.Where); in != nil {
			return in
		}
	}
	return nil
}

func findParamAgainstNonSensitiveIn(s *scope, profile *catalog.Profile, e *queryir.Expr) *Error {
	var err *Error
	walkExpr(e, func(n *queryir.Expr) {
		if err != nil || n.Kind != queryir.ExprIn {
			return
		}
		if !n.InLhs.IsPlainColRef() || isSensitive(profile, s, n.InLhs, false) {
			return
		}
		for _, it := range n.InItems {
			if it.Kind == queryir.ExprParam {
				err = reject(CodeParamNonSensitive, fmt.Sprintf("parameter bound against non-sensitive column %q", colRefName(n.InLhs)))
				return
			}
		}
	})
	return err
}

// ruleSensitiveOutsideMain is VERR_SENSITIVE_OUTSIDE_MAIN: a sensitive
// column referenced inside any CTE body or sub-query.
func ruleSensitiveOutsideMain(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		if n.isMain {
			continue
		}
		for _, site := range exprSites(n.q) {
			if ref := findSensitiveColRef(n.scope, profile, site); ref != nil {
				return reject(CodeSensitiveOutsideMain, fmt.Sprintf("sensitive column %q referenced outside the main query", colRefName(ref)))
			}
		}
	}
	return nil
}

// hasSensitiveReference reports whether q's own SELECT list or WHERE
// clause selects or constrains a sensitive column. By the time this is
// consulted (DISTINCT/OFFSET/LIMIT rules, all lower priority than the
// sensitive-location and comparison rules), any wrapped or misplaced
// sensitive reference has already been rejected, so a bare SELECT ColRef
// or a qualifying WHERE comparison are the only shapes left to find.
func hasSensitiveReference(s *scope, profile *catalog.Profile, q *queryir.Query) bool {
	for _, si := range q.SelectItems {
		if si.Value.IsPlainColRef() && isSensitive(profile, s, si.Value, false) {
			return true
		}
	}
	if q.Where != nil && findSensitiveColRef(s, profile, q.Where) != nil {
		return true
	}
	return false
}

// ruleDistinctSensitive is VERR_DISTINCT_SENSITIVE.
func ruleDistinctSensitive(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		if n.q.HasDistinct && hasSensitiveReference(n.scope, profile, n.q) {
			return reject(CodeDistinctSensitive, "SELECT DISTINCT is not permitted with a sensitive column")
		}
	}
	return nil
}

// ruleOffsetSensitive is VERR_OFFSET_SENSITIVE.
func ruleOffsetSensitive(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		if n.q.HasOffset && hasSensitiveReference(n.scope, profile, n.q) {
			return reject(CodeOffsetSensitive, "OFFSET is not permitted with a sensitive column")
		}
	}
	return nil
}

// ruleLimitRequired is VERR_LIMIT_REQUIRED.
func ruleLimitRequired(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		if n.q.LimitValue == -1 && hasSensitiveReference(n.scope, profile, n.q) {
			return reject(CodeLimitRequired, "a query selecting or constraining a sensitive column must have a LIMIT")
		}
	}
	return nil
}

// ruleLimitExceeds is VERR_LIMIT_EXCEEDS.
func ruleLimitExceeds(nodes []*queryNode, profile *catalog.Profile) *Error {
	for _, n := range nodes {
		if n.q.LimitValue == -1 || !hasSensitiveReference(n.scope, profile, n.q) {
			continue
		}
		if n.q.LimitValue > int64(profile.Safety.MaxRows) {
			return reject(CodeLimitExceeds, fmt.Sprintf("LIMIT %d exceeds the configured maximum of %d rows", n.q.LimitValue, profile.Safety.MaxRows))
		}
	}
	return nil
}
