package validator

import (
	"fmt"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/queryir"
	"github.com/brokerdb/sqlguard/internal/sqllower"
)

// maxSQLBytes bounds the size of SQL text the parser collaborator is ever
// handed (spec §6). Oversized input is rejected before parsing is
// attempted at all, as a VERR_PARSE_FAIL — the request never got far
// enough to have a parseable shape.
const maxSQLBytes = 8192

// Request is one validation call: the raw SQL text and the Policy Catalog
// entry for the connection it would run against.
type Request struct {
	SQL     string
	Profile *catalog.Profile
}

// Validate is the Validator's single entry point (spec §4.4): it lowers
// req.SQL into a Query IR, runs every rule in strict priority order over
// the whole tree, and either returns a Plan (err == nil) or an Error with
// a nil Plan. Exactly one of the two is ever populated.
func Validate(req Request) (Plan, *Error) {
	if req.Profile == nil {
		return nil, reject(CodeAnalyzeFail, "no policy profile for this request")
	}
	if len(req.SQL) > maxSQLBytes {
		return nil, reject(CodeParseFail, fmt.Sprintf("SQL text exceeds the %d byte limit", maxSQLBytes))
	}

	_, root, err := sqllower.Lower(req.SQL)
	if err != nil {
		return nil, reject(CodeParseFail, err.Error())
	}
	switch root.Status {
	case queryir.StatusParseError:
		return nil, reject(CodeParseFail, root.Diagnostic)
	case queryir.StatusUnsupported:
		return nil, reject(CodeUnsupportedQuery, "query uses a construct outside the validator's supported subset")
	}

	nodes := flatten(root)
	for _, n := range nodes {
		if n.q.Status != queryir.StatusOK {
			return nil, reject(CodeUnsupportedQuery, "query uses a construct outside the validator's supported subset")
		}
		n.scope = buildScope(n.q)
	}

	if rerr := runRules(nodes, req.Profile); rerr != nil {
		return nil, rerr
	}

	return buildPlan(nodes[0].scope, req.Profile, root), nil
}

// runRules evaluates every VERR_* rule, tree-wide, in the priority order
// spec §4.4 lists them in. The first rule to find a violation anywhere in
// the tree wins — later rules never run once an earlier one has fired.
func runRules(nodes []*queryNode, profile *catalog.Profile) *Error {
	type step func() *Error
	steps := []step{
		func() *Error { return ruleUnsupportedConstruct(nodes) },
		func() *Error { return ruleStar(nodes) },
		func() *Error { return ruleNoTableAlias(nodes) },
		func() *Error { return ruleNoColumnAlias(nodes) },
		func() *Error { return ruleJoinNotInner(nodes) },
		func() *Error { return ruleJoinOnInvalid(nodes) },
		func() *Error { return ruleJoinOnSensitive(nodes, profile) },
		func() *Error { return ruleFuncUnsafe(nodes, profile) },
		func() *Error { return ruleSensitiveSelectExpr(nodes, profile) },
		func() *Error { return ruleSensitiveLoc(nodes, profile) },
		func() *Error { return ruleSensitiveCmp(nodes, profile) },
		func() *Error { return ruleWhereNotConj(nodes) },
		func() *Error { return ruleParamOutsideWhere(nodes) },
		func() *Error { return ruleParamNonSensitive(nodes, profile) },
		func() *Error { return ruleSensitiveOutsideMain(nodes, profile) },
		func() *Error { return ruleDistinctSensitive(nodes, profile) },
		func() *Error { return ruleOffsetSensitive(nodes, profile) },
		func() *Error { return ruleLimitRequired(nodes, profile) },
		func() *Error { return ruleLimitExceeds(nodes, profile) },
	}
	for _, s := range steps {
		if err := s(); err != nil {
			return err
		}
	}
	return nil
}

// buildPlan re-walks the outermost query's SELECT list (spec §4.4 step 4):
// a bare sensitive ColRef becomes a Token entry carrying its canonical
// source column id, everything else (including a bare non-sensitive
// ColRef, a literal, or any expression — all of which already passed
// VERR_SENSITIVE_SELECT_EXPR) is disclosed as Plaintext.
func buildPlan(s *scope, profile *catalog.Profile, root *queryir.Query) Plan {
	plan := make(Plan, 0, root.NSelect())
	for _, si := range root.SelectItems {
		if si.Value.IsPlainColRef() && isSensitive(profile, s, si.Value, false) {
			colID, ok := canonicalColID(s, si.Value)
			if !ok {
				plan = append(plan, Entry{Kind: Plaintext})
				continue
			}
			plan = append(plan, Entry{Kind: Token, SourceColID: colID})
			continue
		}
		plan = append(plan, Entry{Kind: Plaintext})
	}
	return plan
}
