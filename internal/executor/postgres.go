package executor

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/brokerdb/sqlguard/internal/catalog"
)

// ConnectionConfig holds the parameters needed to dial one Postgres
// connection (spec §6: "the catalog's databases[].type is fixed to
// postgres in v1").
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "", "disable", "require", "verify-ca", "verify-full"
}

// PostgresExecutor is the Executor backed by a real Postgres connection
// pool. Every Execute call runs inside a read-only transaction whose
// statement_timeout is set from the connection's SafetyPolicy, so a
// validated-but-runaway query can't outlive its budget even though
// statement shape (not runtime behavior) is what the Validator polices.
type PostgresExecutor struct {
	db     *sql.DB
	safety catalog.SafetyPolicy
}

// Connect dials a Postgres connection and verifies it with a ping, mirroring
// the teacher's MySQL Connect (internal/mysql/connection.go): open, ping,
// set a conservative pool size, return.
func Connect(cfg ConnectionConfig, safety catalog.SafetyPolicy) (*PostgresExecutor, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("executor: opening connection: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("executor: ping failed: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return &PostgresExecutor{db: db, safety: safety}, nil
}

func buildDSN(cfg ConnectionConfig) (string, error) {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}
	switch sslmode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		return "", fmt.Errorf("executor: invalid sslmode %q", cfg.SSLMode)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslmode), nil
}

// Execute runs sql with args bound positionally ($1, $2, ...), inside a
// read-only transaction bounded by the connection's StatementTimeoutMs.
// The transaction is always rolled back: a validated query is SELECT-only
// (spec §2), so there is never anything to commit.
func (e *PostgresExecutor) Execute(ctx context.Context, query string, args []any) (*Result, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("executor: begin: %w", err)
	}
	defer tx.Rollback()

	if e.safety.StatementTimeoutMs > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", e.safety.StatementTimeoutMs)); err != nil {
			return nil, fmt.Errorf("executor: setting statement_timeout: %w", err)
		}
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executor: query: %w", err)
	}
	defer rows.Close()

	result, err := scanResult(rows)
	if err != nil {
		return nil, err
	}
	return result, rows.Err()
}

func scanResult(rows *sql.Rows) (*Result, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("executor: reading column types: %w", err)
	}
	cols := make([]ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = ColumnMeta{Name: ct.Name(), OID: pgOID(ct)}
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("executor: scanning row: %w", err)
		}
		result.Rows = append(result.Rows, Row(dest))
	}
	return result, nil
}

// Close releases the underlying connection pool.
func (e *PostgresExecutor) Close() error {
	return e.db.Close()
}
