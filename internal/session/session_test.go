package session

import (
	"testing"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/token"
)

func mustProfile(t *testing.T, name string, strategy catalog.ColumnStrategy) *catalog.Profile {
	t.Helper()
	p, err := catalog.NewProfile(name, catalog.SafetyPolicy{ColumnStrategy: strategy}, nil, nil)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return p
}

func TestNewAssignsDistinctIDs(t *testing.T) {
	a, b := New(), New()
	if a.ID() == "" || b.ID() == "" {
		t.Fatal("ID() must not be empty")
	}
	if a.ID() == b.ID() {
		t.Fatal("two Containers must not share a session id")
	}
}

func TestGetOrInitCreatesOnce(t *testing.T) {
	c := New()
	profile := mustProfile(t, "MyPostgres", catalog.StrategyDeterministic)

	s1, err := c.GetOrInit(profile)
	if err != nil {
		t.Fatalf("GetOrInit: %v", err)
	}
	s2, err := c.GetOrInit(profile)
	if err != nil {
		t.Fatalf("GetOrInit: %v", err)
	}
	if s1 != s2 {
		t.Fatal("GetOrInit must return the same store on repeated calls for the same connection")
	}
}

func TestGetOrInitIsPerConnection(t *testing.T) {
	c := New()
	a := mustProfile(t, "ConnA", catalog.StrategyDeterministic)
	b := mustProfile(t, "ConnB", catalog.StrategyDeterministic)

	sa, _ := c.GetOrInit(a)
	sb, _ := c.GetOrInit(b)
	if sa == sb {
		t.Fatal("distinct connections must get distinct stores")
	}
	if sa.ConnectionName() != "ConnA" || sb.ConnectionName() != "ConnB" {
		t.Fatalf("stores carry the wrong connection name: %q, %q", sa.ConnectionName(), sb.ConnectionName())
	}
}

func TestGenerationStartsAtZero(t *testing.T) {
	c := New()
	if g := c.Generation("MyPostgres"); g != 0 {
		t.Fatalf("Generation() on an untouched connection = %d, want 0", g)
	}
}

func TestBumpGenerationIncrements(t *testing.T) {
	c := New()
	profile := mustProfile(t, "MyPostgres", catalog.StrategyDeterministic)
	if _, err := c.GetOrInit(profile); err != nil {
		t.Fatalf("GetOrInit: %v", err)
	}

	c.BumpGeneration("MyPostgres")
	if g := c.Generation("MyPostgres"); g != 1 {
		t.Fatalf("Generation() after one bump = %d, want 1", g)
	}
	c.BumpGeneration("MyPostgres")
	if g := c.Generation("MyPostgres"); g != 2 {
		t.Fatalf("Generation() after two bumps = %d, want 2", g)
	}
}

func TestBumpGenerationBeforeGetOrInit(t *testing.T) {
	c := New()
	c.BumpGeneration("MyPostgres")
	if g := c.Generation("MyPostgres"); g != 1 {
		t.Fatalf("Generation() = %d, want 1", g)
	}
	profile := mustProfile(t, "MyPostgres", catalog.StrategyDeterministic)
	store, err := c.GetOrInit(profile)
	if err != nil {
		t.Fatalf("GetOrInit: %v", err)
	}
	tok := store.CreateToken(c.Generation("MyPostgres"), token.Input{ColRef: "users.fiscal_code", Value: []byte("X")})
	entry, err := c.ResolveParam("MyPostgres", tok)
	if err != nil {
		t.Fatalf("ResolveParam: %v", err)
	}
	if string(entry.Value) != "X" {
		t.Fatalf("entry.Value = %q, want X", entry.Value)
	}
}

func TestResolveParamRoundTrip(t *testing.T) {
	c := New()
	profile := mustProfile(t, "MyPostgres", catalog.StrategyDeterministic)
	store, _ := c.GetOrInit(profile)

	tok := store.CreateToken(c.Generation("MyPostgres"), token.Input{ColRef: "users.fiscal_code", Value: []byte("ABCDEF"), PgOID: 25})

	entry, err := c.ResolveParam("MyPostgres", tok)
	if err != nil {
		t.Fatalf("ResolveParam: %v", err)
	}
	if entry.ColRef != "users.fiscal_code" || string(entry.Value) != "ABCDEF" || entry.PgOID != 25 {
		t.Fatalf("entry = %+v, want to match the minted input", entry)
	}
}

func TestResolveParamRejectsStaleGeneration(t *testing.T) {
	c := New()
	profile := mustProfile(t, "MyPostgres", catalog.StrategyDeterministic)
	store, _ := c.GetOrInit(profile)

	tok := store.CreateToken(0, token.Input{ColRef: "users.fiscal_code", Value: []byte("ABCDEF")})
	c.BumpGeneration("MyPostgres")

	_, err := c.ResolveParam("MyPostgres", tok)
	if err == nil {
		t.Fatal("expected an error resolving a token minted under a stale generation")
	}
	var staleErr *ErrStaleGeneration
	if !asStaleGeneration(err, &staleErr) {
		t.Fatalf("err = %v (%T), want *ErrStaleGeneration", err, err)
	}
}

func asStaleGeneration(err error, target **ErrStaleGeneration) bool {
	e, ok := err.(*ErrStaleGeneration)
	if ok {
		*target = e
	}
	return ok
}

func TestResolveParamRejectsWrongConnection(t *testing.T) {
	c := New()
	a := mustProfile(t, "ConnA", catalog.StrategyDeterministic)
	b := mustProfile(t, "ConnB", catalog.StrategyDeterministic)
	storeA, _ := c.GetOrInit(a)
	_, _ = c.GetOrInit(b)

	tok := storeA.CreateToken(0, token.Input{ColRef: "users.fiscal_code", Value: []byte("X")})

	if _, err := c.ResolveParam("ConnB", tok); err == nil {
		t.Fatal("expected an error resolving ConnA's token against ConnB")
	}
}

func TestResolveParamRejectsUnknownConnection(t *testing.T) {
	c := New()
	if _, err := c.ResolveParam("NeverOpened", "tok_NeverOpened_0_0"); err == nil {
		t.Fatal("expected an error resolving against a connection this session never opened")
	}
}

func TestResolveParamRejectsMalformedToken(t *testing.T) {
	c := New()
	profile := mustProfile(t, "MyPostgres", catalog.StrategyDeterministic)
	_, _ = c.GetOrInit(profile)

	if _, err := c.ResolveParam("MyPostgres", "not-a-token"); err == nil {
		t.Fatal("expected an error resolving a malformed token")
	}
}

func TestResolveParamRejectsUnknownIndex(t *testing.T) {
	c := New()
	profile := mustProfile(t, "MyPostgres", catalog.StrategyDeterministic)
	_, _ = c.GetOrInit(profile)

	if _, err := c.ResolveParam("MyPostgres", "tok_MyPostgres_0_99"); err == nil {
		t.Fatal("expected an error resolving a token at an index never minted")
	}
}
