package executor

import (
	"database/sql"

	"github.com/lib/pq/oid"
)

// pgOID maps a scanned column's reported database type name back to its
// Postgres type OID (spec §3 Sensitive Token entry's pg_oid), using the
// same name table lib/pq's own driver builds its OID→name mapping from.
func pgOID(ct *sql.ColumnType) uint32 {
	if o, ok := oidByName[ct.DatabaseTypeName()]; ok {
		return uint32(o)
	}
	return 0
}

var oidByName = map[string]oid.Oid{
	"BOOL":        oid.T_bool,
	"BYTEA":       oid.T_bytea,
	"CHAR":        oid.T_bpchar,
	"NAME":        oid.T_name,
	"INT8":        oid.T_int8,
	"INT2":        oid.T_int2,
	"INT4":        oid.T_int4,
	"TEXT":        oid.T_text,
	"OID":         oid.T_oid,
	"JSON":        oid.T_json,
	"FLOAT4":      oid.T_float4,
	"FLOAT8":      oid.T_float8,
	"UNKNOWN":     oid.T_unknown,
	"INET":        oid.T_inet,
	"BPCHAR":      oid.T_bpchar,
	"VARCHAR":     oid.T_varchar,
	"DATE":        oid.T_date,
	"TIME":        oid.T_time,
	"TIMESTAMP":   oid.T_timestamp,
	"TIMESTAMPTZ": oid.T_timestamptz,
	"NUMERIC":     oid.T_numeric,
	"UUID":        oid.T_uuid,
	"JSONB":       oid.T_jsonb,
}
