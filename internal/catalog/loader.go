package catalog

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/brokerdb/sqlguard/internal/ident"
)

// rawSafetyPolicy mirrors the on-disk shape of spec §6's safetyPolicy
// object. ReadOnly is a string because the config format accepts
// "yes"/"no" and the synonym "no unsafe", not a YAML/JSON boolean.
type rawSafetyPolicy struct {
	ReadOnly            *string `mapstructure:"readOnly"`
	StatementTimeoutMs  *uint32 `mapstructure:"statementTimeoutMs"`
	MaxRowReturned      *uint32 `mapstructure:"maxRowReturned"`
	MaxPayloadKiloBytes *uint32 `mapstructure:"maxPayloadKiloBytes"`
}

type rawColumnPolicy struct {
	Mode     string `mapstructure:"mode"`
	Strategy string `mapstructure:"strategy"`
}

type rawDatabase struct {
	Type             string            `mapstructure:"type"`
	ConnectionName   string            `mapstructure:"connectionName"`
	Host             string            `mapstructure:"host"`
	Port             int               `mapstructure:"port"`
	Username         string            `mapstructure:"username"`
	Database         string            `mapstructure:"database"`
	Options          map[string]string `mapstructure:"options"`
	SafetyPolicy     *rawSafetyPolicy  `mapstructure:"safetyPolicy"`
	SensitiveColumns []string          `mapstructure:"sensitiveColumns"`
	SafeFunctions    []string          `mapstructure:"safeFunctions"`
}

type rawConfig struct {
	SafetyPolicy rawSafetyPolicy `mapstructure:"safetyPolicy"`
	ColumnPolicy rawColumnPolicy `mapstructure:"columnPolicy"`
	Databases    []rawDatabase   `mapstructure:"databases"`
}

// legacyMaxQueryKiloBytes is a config key recognized only to produce a
// precise, named fatal error: config authors migrating from an earlier
// release sometimes carry it over unchanged, and "unknown key" alone
// doesn't tell them which replacement field to use.
const legacyMaxQueryKiloBytes = "maxquerykilobytes"

// Load reads the catalog configuration from v (already pointed at a file,
// env prefix, etc. by the caller — see cmd/root.go's viper wiring) and
// builds one immutable Profile per configured database, keyed by the
// lowercased connection name (each Profile's ConnectionName keeps the
// configured case), so lookups are case-insensitive.
func Load(v *viper.Viper) (map[string]*Profile, error) {
	if err := rejectLegacyKeys(v.AllSettings()); err != nil {
		return nil, err
	}

	var raw rawConfig
	if err := v.UnmarshalExact(&raw); err != nil {
		return nil, fmt.Errorf("catalog: unknown configuration key: %w", err)
	}

	if len(raw.Databases) == 0 {
		return nil, fmt.Errorf("catalog: databases must be a non-empty list")
	}

	defaultStrategy, err := parseColumnPolicy(raw.ColumnPolicy)
	if err != nil {
		return nil, err
	}

	baseSafety, err := resolveSafetyPolicy(rawSafetyPolicy{}, raw.SafetyPolicy, defaultStrategy)
	if err != nil {
		return nil, fmt.Errorf("catalog: top-level safetyPolicy: %w", err)
	}

	profiles := make(map[string]*Profile, len(raw.Databases))
	seenNames := make(map[string]string, len(raw.Databases))

	for i, db := range raw.Databases {
		if db.Type != "postgres" {
			return nil, fmt.Errorf("catalog: databases[%d]: unsupported type %q (only \"postgres\" in v1)", i, db.Type)
		}
		if db.ConnectionName == "" {
			return nil, fmt.Errorf("catalog: databases[%d]: connectionName is required", i)
		}
		fold := strings.ToLower(db.ConnectionName)
		if prior, dup := seenNames[fold]; dup {
			return nil, fmt.Errorf("catalog: databases[%d]: connectionName %q collides with %q (case-insensitive)", i, db.ConnectionName, prior)
		}
		seenNames[fold] = db.ConnectionName
		if db.Host == "" {
			return nil, fmt.Errorf("catalog: databases[%d] (%s): host is required", i, db.ConnectionName)
		}
		if db.Username == "" {
			return nil, fmt.Errorf("catalog: databases[%d] (%s): username is required", i, db.ConnectionName)
		}
		if db.Database == "" {
			return nil, fmt.Errorf("catalog: databases[%d] (%s): database is required", i, db.ConnectionName)
		}

		safety := baseSafety
		if db.SafetyPolicy != nil {
			safety, err = resolveSafetyPolicy(asRawFromBase(baseSafety), *db.SafetyPolicy, defaultStrategy)
			if err != nil {
				return nil, fmt.Errorf("catalog: databases[%d] (%s): safetyPolicy: %w", i, db.ConnectionName, err)
			}
		}

		columnRules, err := columnRulesFromConfig(db.SensitiveColumns)
		if err != nil {
			return nil, fmt.Errorf("catalog: databases[%d] (%s): sensitiveColumns: %w", i, db.ConnectionName, err)
		}
		functionRules, err := functionRulesFromConfig(db.SafeFunctions)
		if err != nil {
			return nil, fmt.Errorf("catalog: databases[%d] (%s): safeFunctions: %w", i, db.ConnectionName, err)
		}

		profile, err := NewProfile(db.ConnectionName, safety, columnRules, functionRules)
		if err != nil {
			return nil, fmt.Errorf("catalog: databases[%d] (%s): %w", i, db.ConnectionName, err)
		}
		profiles[fold] = profile
	}

	return profiles, nil
}

// Lookup resolves a connection name case-insensitively, as §3 requires for
// the uniqueness check performed at load time.
func Lookup(profiles map[string]*Profile, connectionName string) (*Profile, bool) {
	p, ok := profiles[strings.ToLower(connectionName)]
	return p, ok
}

func parseColumnPolicy(cp rawColumnPolicy) (ColumnStrategy, error) {
	if cp.Mode != "" && cp.Mode != "pseudonymize" {
		return "", fmt.Errorf("catalog: columnPolicy.mode: unsupported value %q", cp.Mode)
	}
	switch strings.ToLower(cp.Strategy) {
	case "", "deterministic":
		return StrategyDeterministic, nil
	case "randomized":
		return StrategyRandomized, nil
	default:
		return "", fmt.Errorf("catalog: columnPolicy.strategy: unsupported value %q", cp.Strategy)
	}
}

// asRawFromBase turns an already-resolved SafetyPolicy back into a raw
// overlay so a database-level override can be layered on top of it using
// the same resolveSafetyPolicy merge logic as the top-level defaults.
func asRawFromBase(base SafetyPolicy) rawSafetyPolicy {
	ro := "no"
	if base.ReadOnly {
		ro = "yes"
	}
	timeout := base.StatementTimeoutMs
	maxRows := base.MaxRows
	maxPayloadKB := base.MaxPayloadBytes / 1024
	return rawSafetyPolicy{
		ReadOnly:            &ro,
		StatementTimeoutMs:  &timeout,
		MaxRowReturned:      &maxRows,
		MaxPayloadKiloBytes: &maxPayloadKB,
	}
}

func resolveSafetyPolicy(base, overlay rawSafetyPolicy, strategy ColumnStrategy) (SafetyPolicy, error) {
	merged := base
	if overlay.ReadOnly != nil {
		merged.ReadOnly = overlay.ReadOnly
	}
	if overlay.StatementTimeoutMs != nil {
		merged.StatementTimeoutMs = overlay.StatementTimeoutMs
	}
	if overlay.MaxRowReturned != nil {
		merged.MaxRowReturned = overlay.MaxRowReturned
	}
	if overlay.MaxPayloadKiloBytes != nil {
		merged.MaxPayloadKiloBytes = overlay.MaxPayloadKiloBytes
	}

	readOnly, err := parseReadOnly(merged.ReadOnly)
	if err != nil {
		return SafetyPolicy{}, err
	}

	var timeout, maxRows, maxPayloadKB uint32
	if merged.StatementTimeoutMs != nil {
		timeout = *merged.StatementTimeoutMs
	}
	if merged.MaxRowReturned != nil {
		maxRows = *merged.MaxRowReturned
	}
	if merged.MaxPayloadKiloBytes != nil {
		maxPayloadKB = *merged.MaxPayloadKiloBytes
	}

	return SafetyPolicy{
		ReadOnly:           readOnly,
		StatementTimeoutMs: timeout,
		MaxRows:            maxRows,
		MaxPayloadBytes:    maxPayloadKB * 1024,
		ColumnStrategy:     strategy,
	}, nil
}

func parseReadOnly(raw *string) (bool, error) {
	if raw == nil {
		return true, nil // safest default: read-only
	}
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "yes", "no unsafe":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("readOnly: unsupported value %q", *raw)
	}
}

// columnRulesFromConfig turns a list of "[schema.]table.column" strings
// into ColumnRule entries: an unqualified entry is a global rule, a
// qualified entry contributes its schema to a schema-scoped rule for the
// same (table, column).
func columnRulesFromConfig(entries []string) ([]ColumnRule, error) {
	rules := make([]ColumnRule, 0, len(entries))
	for _, raw := range entries {
		parts := strings.Split(raw, ".")
		var schema, table, column ident.Identifier
		switch len(parts) {
		case 2:
			table, column = ident.New(parts[0]), ident.New(parts[1])
		case 3:
			schema, table, column = ident.New(parts[0]), ident.New(parts[1]), ident.New(parts[2])
		default:
			return nil, fmt.Errorf("malformed column reference %q: want [schema.]table.column", raw)
		}
		if table.Empty() || column.Empty() {
			return nil, fmt.Errorf("malformed column reference %q: want [schema.]table.column", raw)
		}
		if schema.Empty() {
			rules = append(rules, ColumnRule{Table: table, Column: column, Global: true})
		} else {
			rules = append(rules, ColumnRule{Table: table, Column: column, Schemas: []ident.Identifier{schema}})
		}
	}
	return rules, nil
}

// functionRulesFromConfig mirrors columnRulesFromConfig for "[schema.]name"
// safe-function entries.
func functionRulesFromConfig(entries []string) ([]FunctionRule, error) {
	rules := make([]FunctionRule, 0, len(entries))
	for _, raw := range entries {
		parts := strings.Split(raw, ".")
		var schema, name ident.Identifier
		switch len(parts) {
		case 1:
			name = ident.New(parts[0])
		case 2:
			schema, name = ident.New(parts[0]), ident.New(parts[1])
		default:
			return nil, fmt.Errorf("malformed function reference %q: want [schema.]name", raw)
		}
		if name.Empty() {
			return nil, fmt.Errorf("malformed function reference %q: want [schema.]name", raw)
		}
		if schema.Empty() {
			rules = append(rules, FunctionRule{Name: name, Global: true})
		} else {
			rules = append(rules, FunctionRule{Name: name, Schemas: []ident.Identifier{schema}})
		}
	}
	return rules, nil
}

// rejectLegacyKeys walks the fully-merged settings tree looking for the
// legacy maxQueryKiloBytes key at any depth (e.g. inside a database's
// safetyPolicy override), and fails fast with a
// message naming its replacement rather than a generic "unknown key".
func rejectLegacyKeys(settings map[string]interface{}) error {
	for k, v := range settings {
		if strings.ToLower(k) == legacyMaxQueryKiloBytes {
			return fmt.Errorf("catalog: %q was renamed to \"maxPayloadKiloBytes\" and is no longer accepted", k)
		}
		switch nested := v.(type) {
		case map[string]interface{}:
			if err := rejectLegacyKeys(nested); err != nil {
				return err
			}
		case []interface{}:
			for _, item := range nested {
				if m, ok := item.(map[string]interface{}); ok {
					if err := rejectLegacyKeys(m); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
