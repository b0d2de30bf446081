package catalog

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func baseViper(extra map[string]interface{}) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	body := `
databases:
  - type: postgres
    connectionName: prod
    host: db.internal
    port: 5432
    username: app
    database: appdb
    sensitiveColumns:
      - users.ssn
      - private.accounts.balance
    safeFunctions:
      - now
      - app.mask
`
	_ = v.ReadConfig(strings.NewReader(body))
	for k, val := range extra {
		v.Set(k, val)
	}
	return v
}

func TestLoadBuildsProfilePerDatabase(t *testing.T) {
	v := baseViper(nil)
	profiles, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, ok := Lookup(profiles, "PROD")
	if !ok {
		t.Fatal("expected case-insensitive lookup of connectionName")
	}
	if p.ConnectionName != "prod" {
		t.Fatalf("ConnectionName = %q, want prod (as configured)", p.ConnectionName)
	}
	if !IsColumnSensitive(p, "", "users", "ssn") {
		t.Fatal("global sensitiveColumns entry should be sensitive")
	}
	if !IsColumnSensitive(p, "private", "accounts", "balance") {
		t.Fatal("schema-qualified sensitiveColumns entry should be sensitive for its schema")
	}
	if IsColumnSensitive(p, "public", "accounts", "balance") {
		t.Fatal("schema-qualified sensitiveColumns entry should not leak to other schemas")
	}
	if !IsFunctionSafe(p, "", "now") {
		t.Fatal("global safeFunctions entry should be safe")
	}
	if !IsFunctionSafe(p, "app", "mask") {
		t.Fatal("schema-qualified safeFunctions entry should be safe for its schema")
	}
}

func TestLoadDefaultsReadOnlyTrue(t *testing.T) {
	v := baseViper(nil)
	profiles, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, _ := Lookup(profiles, "prod")
	if !p.Safety.ReadOnly {
		t.Fatal("readOnly should default to true when unset")
	}
}

func TestLoadReadOnlySynonym(t *testing.T) {
	v := baseViper(map[string]interface{}{
		"safetyPolicy": map[string]interface{}{"readOnly": "no unsafe"},
	})
	profiles, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, _ := Lookup(profiles, "prod")
	if !p.Safety.ReadOnly {
		t.Fatal(`"no unsafe" should be a synonym for readOnly: true`)
	}
}

func TestLoadReadOnlyRejectsGarbage(t *testing.T) {
	v := baseViper(map[string]interface{}{
		"safetyPolicy": map[string]interface{}{"readOnly": "maybe"},
	})
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for unrecognized readOnly value")
	}
}

func TestLoadMaxPayloadKiloBytesScalesToBytes(t *testing.T) {
	v := baseViper(map[string]interface{}{
		"safetyPolicy": map[string]interface{}{"maxPayloadKiloBytes": 16},
	})
	profiles, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, _ := Lookup(profiles, "prod")
	if p.Safety.MaxPayloadBytes != 16*1024 {
		t.Fatalf("MaxPayloadBytes = %d, want %d", p.Safety.MaxPayloadBytes, 16*1024)
	}
}

func TestLoadDatabaseLevelSafetyOverride(t *testing.T) {
	v := baseViper(map[string]interface{}{
		"safetyPolicy": map[string]interface{}{"maxRowReturned": 100},
	})
	dbs := v.Get("databases").([]interface{})
	db0 := dbs[0].(map[string]interface{})
	db0["safetyPolicy"] = map[string]interface{}{"maxRowReturned": 25}
	v.Set("databases", dbs)

	profiles, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, _ := Lookup(profiles, "prod")
	if p.Safety.MaxRows != 25 {
		t.Fatalf("MaxRows = %d, want override value 25", p.Safety.MaxRows)
	}
}

func TestLoadRejectsEmptyDatabases(t *testing.T) {
	v := viper.New()
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for empty databases list")
	}
}

func TestLoadRejectsNonPostgres(t *testing.T) {
	v := baseViper(nil)
	dbs := v.Get("databases").([]interface{})
	dbs[0].(map[string]interface{})["type"] = "mysql"
	v.Set("databases", dbs)
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for non-postgres database type")
	}
}

func TestLoadRejectsDuplicateConnectionNameCaseInsensitive(t *testing.T) {
	v := baseViper(nil)
	dbs := v.Get("databases").([]interface{})
	dup := map[string]interface{}{
		"type": "postgres", "connectionName": "PROD", "host": "h", "port": 5432,
		"username": "u", "database": "d",
	}
	dbs = append(dbs, dup)
	v.Set("databases", dbs)
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for case-insensitive duplicate connectionName")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	v := baseViper(map[string]interface{}{"totallyUnknownTopLevelKey": true})
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoadRejectsLegacyMaxQueryKiloBytes(t *testing.T) {
	v := baseViper(map[string]interface{}{
		"safetyPolicy": map[string]interface{}{"maxQueryKiloBytes": 64},
	})
	_, err := Load(v)
	if err == nil {
		t.Fatal("expected error for legacy maxQueryKiloBytes key")
	}
	if !strings.Contains(err.Error(), "maxPayloadKiloBytes") {
		t.Fatalf("error should name the replacement key, got: %v", err)
	}
}

func TestLoadRejectsMalformedColumnReference(t *testing.T) {
	v := baseViper(nil)
	dbs := v.Get("databases").([]interface{})
	dbs[0].(map[string]interface{})["sensitiveColumns"] = []interface{}{"just_a_column"}
	v.Set("databases", dbs)
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for malformed sensitiveColumns entry")
	}
}
