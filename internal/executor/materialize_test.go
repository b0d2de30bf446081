package executor

import (
	"strings"
	"testing"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/session"
	"github.com/brokerdb/sqlguard/internal/token"
	"github.com/brokerdb/sqlguard/internal/validator"
)

func TestMaterializeTokenizesSensitiveCells(t *testing.T) {
	store, err := token.New("MyPostgres", catalog.StrategyDeterministic)
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	result := &Result{
		Columns: []ColumnMeta{{Name: "id", OID: 23}, {Name: "fiscal_code", OID: 25}},
		Rows: []Row{
			{int64(1), "ABCDEF"},
			{int64(2), nil},
		},
	}
	plan := validator.Plan{
		{Kind: validator.Plaintext},
		{Kind: validator.Token, SourceColID: "users.fiscal_code"},
	}

	out, err := Materialize(result, plan, store, 0)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0][0] != int64(1) {
		t.Fatalf("out[0][0] = %v, want 1", out[0][0])
	}
	tok, ok := out[0][1].(string)
	if !ok || !strings.HasPrefix(tok, "tok_MyPostgres_0_") {
		t.Fatalf("out[0][1] = %v, want a tok_MyPostgres_0_* token", out[0][1])
	}
	nullTok, ok := out[1][1].(string)
	if !ok || !strings.HasPrefix(nullTok, "tok_MyPostgres_0_") {
		t.Fatalf("out[1][1] = %v, want a token for the NULL cell too", out[1][1])
	}
	if tok == nullTok {
		t.Fatal("a NULL cell and a non-NULL cell must not dedup to the same token")
	}
}

func TestMaterializeDeterministicDedupsAcrossRows(t *testing.T) {
	store, _ := token.New("MyPostgres", catalog.StrategyDeterministic)
	result := &Result{
		Columns: []ColumnMeta{{Name: "fiscal_code", OID: 25}},
		Rows:    []Row{{"ABCDEF"}, {"ABCDEF"}},
	}
	plan := validator.Plan{{Kind: validator.Token, SourceColID: "users.fiscal_code"}}

	out, err := Materialize(result, plan, store, 0)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if out[0][0] != out[1][0] {
		t.Fatalf("deterministic mode: %v != %v, want equal tokens for equal cells", out[0][0], out[1][0])
	}
}

func TestMaterializeRejectsPlanColumnMismatch(t *testing.T) {
	store, _ := token.New("MyPostgres", catalog.StrategyDeterministic)
	result := &Result{Columns: []ColumnMeta{{Name: "id"}}, Rows: []Row{{int64(1)}}}
	plan := validator.Plan{{Kind: validator.Plaintext}, {Kind: validator.Plaintext}}

	if _, err := Materialize(result, plan, store, 0); err == nil {
		t.Fatal("expected an error when plan length doesn't match result column count")
	}
}

func TestResolveArgsSubstitutesToken(t *testing.T) {
	c := session.New()
	profile, err := catalog.NewProfile("MyPostgres", catalog.SafetyPolicy{ColumnStrategy: catalog.StrategyDeterministic}, nil, nil)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	store, err := c.GetOrInit(profile)
	if err != nil {
		t.Fatalf("GetOrInit: %v", err)
	}
	tok := store.CreateToken(0, token.Input{ColRef: "users.fiscal_code", Value: []byte("ABCDEF")})

	args, err := ResolveArgs(c, "MyPostgres", []string{tok})
	if err != nil {
		t.Fatalf("ResolveArgs: %v", err)
	}
	if string(args[0].([]byte)) != "ABCDEF" {
		t.Fatalf("args[0] = %v, want ABCDEF", args[0])
	}
}

func TestResolveArgsPassesThroughNonToken(t *testing.T) {
	c := session.New()
	args, err := ResolveArgs(c, "MyPostgres", []string{"42"})
	if err != nil {
		t.Fatalf("ResolveArgs: %v", err)
	}
	if args[0] != "42" {
		t.Fatalf("args[0] = %v, want the literal string 42", args[0])
	}
}
