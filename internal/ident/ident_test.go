package ident

import "testing"

func TestNewFoldsCase(t *testing.T) {
	if New("Users") != New("users") {
		t.Fatalf("expected fold to make Users == users")
	}
	if New("  Fiscal_Code ") != Identifier("fiscal_code") {
		t.Fatalf("expected trim+fold, got %q", New("  Fiscal_Code "))
	}
}

func TestQualifiedNameSplit(t *testing.T) {
	cases := []struct {
		raw    string
		schema Identifier
		name   Identifier
	}{
		{"users", "", "users"},
		{"private.users", "private", "users"},
		{"Private.Users", "private", "users"},
	}
	for _, c := range cases {
		q := NewQualifiedName(c.raw)
		if q.Schema != c.schema || q.Name != c.name {
			t.Errorf("NewQualifiedName(%q) = %+v, want schema=%q name=%q", c.raw, q, c.schema, c.name)
		}
	}
}

func TestQualifiedNameQualified(t *testing.T) {
	if NewQualifiedName("users").Qualified() {
		t.Fatal("bare name should not be qualified")
	}
	if !NewQualifiedName("private.users").Qualified() {
		t.Fatal("dotted name should be qualified")
	}
}

func TestColumnIDString(t *testing.T) {
	c := ColumnID{Table: "users", Column: "fiscal_code"}
	if got := c.String(); got != "users.fiscal_code" {
		t.Errorf("String() = %q, want users.fiscal_code", got)
	}
	c.Schema = "private"
	if got := c.String(); got != "private.users.fiscal_code" {
		t.Errorf("String() = %q, want private.users.fiscal_code", got)
	}
}
