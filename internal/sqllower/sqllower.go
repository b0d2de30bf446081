// Package sqllower is the parser collaborator (spec §1, §4.3): it lowers
// SQL source text into a queryir.Query tree. The validator never sees
// vitess/sqlparser's AST directly — Lower is the one seam where that
// dependency is visible.
package sqllower

import (
	"fmt"
	"regexp"
	"sync"

	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/brokerdb/sqlguard/internal/queryir"
)

// rePgParam rewrites PostgreSQL-style positional parameters ($1, $2, ...)
// into vitess bind-variable syntax (:v1, :v2, ...) before handing the text
// to a MySQL-dialect parser. Mirrors the teacher's own pre-pass trick for
// statements the grammar can't otherwise digest (see the old
// reOptimizeTable/reAlterTablespace regexes this package's predecessor
// used) rather than forking or hand-rolling a second SQL grammar.
var rePgParam = regexp.MustCompile(`\$([0-9]+)`)

var (
	parserOnce      sync.Once
	globalParser    *sqlparser.Parser
	globalParserErr error
)

func getParser() (*sqlparser.Parser, error) {
	parserOnce.Do(func() {
		globalParser, globalParserErr = sqlparser.New(sqlparser.Options{})
	})
	return globalParser, globalParserErr
}

// Lower parses sql and lowers it into a Query owned by a freshly created
// Arena. A non-nil error here means the parser itself could not be
// constructed. SQL the grammar rejects yields a Query with Status =
// StatusParseError, and a statement outside the supported subset one with
// StatusUnsupported, both with a nil error, per spec §4.3.
func Lower(sql string) (*queryir.Arena, *queryir.Query, error) {
	arena := queryir.NewArena()

	p, err := getParser()
	if err != nil {
		return nil, nil, fmt.Errorf("sqllower: acquiring parser: %w", err)
	}

	rewritten := rePgParam.ReplaceAllString(sql, ":v$1")

	stmt, err := p.Parse(rewritten)
	if err != nil {
		q := arena.NewQuery()
		q.Status = queryir.StatusParseError
		q.Diagnostic = err.Error()
		return arena, q, nil
	}

	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		q := arena.NewQuery()
		q.Status = queryir.StatusUnsupported
		q.Diagnostic = "only SELECT statements are supported"
		return arena, q, nil
	}

	l := &lowerer{arena: arena}
	q := l.lowerSelect(sel)
	return arena, q, nil
}

// lowerer carries the arena across one Lower call's recursive descent so
// sub-selects (derived tables, scalar subqueries, CTE bodies) share it
// instead of each allocating their own.
type lowerer struct {
	arena *queryir.Arena
}
