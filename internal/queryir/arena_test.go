package queryir

import "testing"

func TestNewQueryDefaultsLimitAbsent(t *testing.T) {
	a := NewArena()
	q := a.NewQuery()
	if q.LimitValue != -1 {
		t.Fatalf("LimitValue = %d, want -1 (absent)", q.LimitValue)
	}
}

func TestArenaResetReclaimsLength(t *testing.T) {
	a := NewArena()
	for i := 0; i < 10; i++ {
		a.NewQuery()
		a.NewExpr(ExprColRef)
	}
	queries, exprs := a.Len()
	if queries != 10 || exprs != 10 {
		t.Fatalf("Len() = (%d, %d), want (10, 10)", queries, exprs)
	}
	a.Reset()
	queries, exprs = a.Len()
	if queries != 0 || exprs != 0 {
		t.Fatalf("after Reset, Len() = (%d, %d), want (0, 0)", queries, exprs)
	}
}

func TestArenaReuseAfterReset(t *testing.T) {
	a := NewArena()
	q1 := a.NewQuery()
	q1.HasDistinct = true
	a.Reset()
	q2 := a.NewQuery()
	if q2.HasDistinct {
		t.Fatal("fresh allocation after Reset should be zero-valued")
	}
}

func TestFromItemEffectiveAlias(t *testing.T) {
	explicit := FromItem{Kind: FromBaseRel, Name: "users", Alias: "u"}
	if explicit.EffectiveAlias() != "u" {
		t.Fatalf("EffectiveAlias() = %q, want explicit alias u", explicit.EffectiveAlias())
	}

	implicit := FromItem{Kind: FromBaseRel, Name: "users"}
	if implicit.EffectiveAlias() != "users" {
		t.Fatalf("EffectiveAlias() = %q, want bare relation name", implicit.EffectiveAlias())
	}

	sub := FromItem{Kind: FromSubquery}
	if sub.EffectiveAlias() != "" {
		t.Fatal("a subquery FromItem with no alias has no effective alias")
	}
}

func TestExprIsPlainColRef(t *testing.T) {
	colRef := &Expr{Kind: ExprColRef, Qualifier: "u", Column: "id"}
	if !colRef.IsPlainColRef() {
		t.Fatal("ColRef expression should report as plain")
	}
	wrapped := &Expr{Kind: ExprCast, CastExpr: colRef}
	if wrapped.IsPlainColRef() {
		t.Fatal("a Cast wrapping a ColRef is not itself a plain ColRef")
	}
	var nilExpr *Expr
	if nilExpr.IsPlainColRef() {
		t.Fatal("nil Expr must not report as a plain ColRef")
	}
}
