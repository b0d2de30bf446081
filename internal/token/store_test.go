package token

import (
	"testing"

	"github.com/brokerdb/sqlguard/internal/catalog"
)

func TestCreateTokenScenario8DeterministicRoundTrip(t *testing.T) {
	s, err := New("MyPostgres", catalog.StrategyDeterministic)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := Input{ColRef: "users.fiscal_code", Value: []byte("ABCDEF")}

	tok1 := s.CreateToken(7, in)
	tok2 := s.CreateToken(7, in)

	const want = "tok_MyPostgres_7_0"
	if tok1 != want {
		t.Fatalf("tok1 = %q, want %q", tok1, want)
	}
	if tok1 != tok2 {
		t.Fatalf("deterministic mode: tok1 = %q, tok2 = %q, want equal", tok1, tok2)
	}

	connName, gen, idx, err := ParseToken(tok1)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if connName != "MyPostgres" || gen != 7 || idx != 0 {
		t.Fatalf("ParseToken(%q) = (%q, %d, %d), want (MyPostgres, 7, 0)", tok1, connName, gen, idx)
	}
}

func TestCreateTokenDeterministicDistinguishesValues(t *testing.T) {
	s, _ := New("conn", catalog.StrategyDeterministic)
	a := s.CreateToken(1, Input{ColRef: "users.fiscal_code", Value: []byte("AAA")})
	b := s.CreateToken(1, Input{ColRef: "users.fiscal_code", Value: []byte("BBB")})
	if a == b {
		t.Fatalf("distinct values produced the same token %q", a)
	}
}

func TestCreateTokenDeterministicDistinguishesColumns(t *testing.T) {
	s, _ := New("conn", catalog.StrategyDeterministic)
	a := s.CreateToken(1, Input{ColRef: "users.fiscal_code", Value: []byte("X")})
	b := s.CreateToken(1, Input{ColRef: "users.ssn", Value: []byte("X")})
	if a == b {
		t.Fatalf("distinct columns with the same value produced the same token %q", a)
	}
}

func TestCreateTokenDeterministicDistinguishesGenerations(t *testing.T) {
	s, _ := New("conn", catalog.StrategyDeterministic)
	in := Input{ColRef: "users.fiscal_code", Value: []byte("ABCDEF")}
	gen1 := s.CreateToken(1, in)
	gen2 := s.CreateToken(2, in)
	if gen1 == gen2 {
		t.Fatalf("tokens across generations collided: %q", gen1)
	}
}

func TestCreateTokenRandomizedNeverDedups(t *testing.T) {
	s, _ := New("conn", catalog.StrategyRandomized)
	in := Input{ColRef: "users.fiscal_code", Value: []byte("ABCDEF")}
	a := s.CreateToken(1, in)
	b := s.CreateToken(1, in)
	if a == b {
		t.Fatalf("randomized mode returned equal tokens for identical input: %q", a)
	}
}

func TestGetRoundTripsEntry(t *testing.T) {
	s, _ := New("conn", catalog.StrategyDeterministic)
	in := Input{ColRef: "users.fiscal_code", Value: []byte("ABCDEF"), PgOID: 25}
	tok := s.CreateToken(1, in)
	_, _, idx, err := ParseToken(tok)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	entry, ok := s.Get(idx)
	if !ok {
		t.Fatalf("Get(%d) not found", idx)
	}
	if entry.ColRef != in.ColRef || string(entry.Value) != string(in.Value) || entry.PgOID != in.PgOID {
		t.Fatalf("entry = %+v, want to match input %+v", entry, in)
	}
}

func TestGetNullEntry(t *testing.T) {
	s, _ := New("conn", catalog.StrategyDeterministic)
	tok := s.CreateToken(1, Input{ColRef: "users.fiscal_code", IsNull: true})
	_, _, idx, _ := ParseToken(tok)
	entry, ok := s.Get(idx)
	if !ok || !entry.IsNull || entry.Value != nil {
		t.Fatalf("entry = %+v, want IsNull with nil Value", entry)
	}
}

func TestGetOutOfRangeIndex(t *testing.T) {
	s, _ := New("conn", catalog.StrategyDeterministic)
	if _, ok := s.Get(0); ok {
		t.Fatal("Get on an empty store should return ok=false")
	}
}

func TestNewRejectsEmptyConnectionName(t *testing.T) {
	if _, err := New("", catalog.StrategyDeterministic); err == nil {
		t.Fatal("expected an error for an empty connection name")
	}
}

func TestNewRejectsOversizedConnectionName(t *testing.T) {
	name := make([]byte, 65)
	for i := range name {
		name[i] = 'a'
	}
	if _, err := New(string(name), catalog.StrategyDeterministic); err == nil {
		t.Fatal("expected an error for a 65-byte connection name")
	}
}

func TestConnectionName(t *testing.T) {
	s, _ := New("MyPostgres", catalog.StrategyDeterministic)
	if s.ConnectionName() != "MyPostgres" {
		t.Fatalf("ConnectionName() = %q, want MyPostgres", s.ConnectionName())
	}
}
