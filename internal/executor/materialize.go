package executor

import (
	"fmt"

	"github.com/brokerdb/sqlguard/internal/session"
	"github.com/brokerdb/sqlguard/internal/token"
	"github.com/brokerdb/sqlguard/internal/validator"
)

// MaterializedRow is one output row ready to hand back to the agent: each
// cell is either the driver's raw value (Plaintext plan entries) or an
// opaque token string (Token plan entries).
type MaterializedRow []any

// Materialize is the sole caller of token.CreateToken (spec §1 data flow:
// "result materializer, for each sensitive output column, calls Token
// Store to mint a token per cell"). plan must be the exact Plan the
// Validator returned for the query that produced result — one Entry per
// result column, in order — or Materialize returns an error rather than
// guess at an alignment.
func Materialize(result *Result, plan validator.Plan, store *token.Store, generation uint32) ([]MaterializedRow, error) {
	if len(plan) != len(result.Columns) {
		return nil, fmt.Errorf("executor: plan has %d entries but result has %d columns", len(plan), len(result.Columns))
	}

	out := make([]MaterializedRow, len(result.Rows))
	for r, row := range result.Rows {
		mrow := make(MaterializedRow, len(row))
		for c, cell := range row {
			entry := plan[c]
			if entry.Kind == validator.Plaintext {
				mrow[c] = cell
				continue
			}
			mrow[c] = store.CreateToken(generation, cellToInput(entry.SourceColID, result.Columns[c].OID, cell))
		}
		out[r] = mrow
	}
	return out, nil
}

func cellToInput(colRef string, oid uint32, cell any) token.Input {
	if cell == nil {
		return token.Input{ColRef: colRef, PgOID: oid, IsNull: true}
	}
	switch v := cell.(type) {
	case []byte:
		return token.Input{ColRef: colRef, PgOID: oid, Value: v}
	case string:
		return token.Input{ColRef: colRef, PgOID: oid, Value: []byte(v)}
	default:
		return token.Input{ColRef: colRef, PgOID: oid, Value: []byte(fmt.Sprint(v))}
	}
}

// ResolveArgs turns the agent-supplied positional parameter strings of a
// resubmitted query into bind arguments, substituting any value that
// resolves to a stored token entry with its stored plaintext (spec §1: "the
// request path parses the token, locates the stored plaintext in the
// token store, and substitutes it as a bound parameter before execution").
// Every other argument is passed through unchanged as a raw string: a
// value that is not a wire-form token, and equally a token for another
// connection, from a stale generation, or naming an index the store never
// minted — params are only
// ever bound against sensitive columns (VERR_PARAM_NON_SENSITIVE), but the
// value an agent supplies for one may be a token from an earlier result or
// a freshly-typed value it already knows.
func ResolveArgs(container *session.Container, connectionName string, rawArgs []string) ([]any, error) {
	args := make([]any, len(rawArgs))
	for i, raw := range rawArgs {
		entry, err := container.ResolveParam(connectionName, raw)
		if err != nil {
			args[i] = raw
			continue
		}
		if entry.IsNull {
			args[i] = nil
			continue
		}
		args[i] = entry.Value
	}
	return args, nil
}
