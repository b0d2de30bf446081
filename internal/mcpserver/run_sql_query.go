package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/executor"
	"github.com/brokerdb/sqlguard/internal/validator"
)

const (
	descRunSQLQuery = "Run a read-only SQL query against a configured database. The query is statically " +
		"validated before it ever reaches the database: it must target exactly one connection, use " +
		"only inner joins on equality, bind sensitive columns only through parameters in a WHERE " +
		"equality or IN list, and stay under the connection's row limit. Sensitive column values " +
		"never appear in results in plaintext — they come back as opaque tok_* tokens that can be " +
		"reused as $n parameters in a later call without ever revealing the underlying value."

	descConnectionParam = "The connectionName of the database to query, as configured in the catalog"
	descSQLParam        = "The SQL SELECT statement to run, using $1, $2, ... for bound parameters"
	descParamsParam     = "Positional parameter values for $1, $2, ..., as strings; a tok_* token substitutes its stored plaintext"
)

func registerRunSQLQuery(s *server.MCPServer, deps Deps) {
	s.AddTool(
		mcp.NewTool("run_sql_query",
			mcp.WithDescription(descRunSQLQuery),
			mcp.WithString("connection_name", mcp.Required(), mcp.Description(descConnectionParam)),
			mcp.WithString("sql", mcp.Required(), mcp.Description(descSQLParam)),
			mcp.WithArray("params", mcp.Description(descParamsParam)),
		),
		runSQLQueryHandler(deps),
	)
}

func runSQLQueryHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		connectionName, ok := args["connection_name"].(string)
		if !ok || connectionName == "" {
			return mcp.NewToolResultError("connection_name is required"), nil
		}
		sql, ok := args["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}
		rawParams := stringParams(args["params"])

		start := time.Now()
		defer observeDuration(connectionName, start)

		profile, ok := catalog.Lookup(deps.Profiles, connectionName)
		if !ok {
			toolCalls.WithLabelValues(connectionName, "unknown_connection").Inc()
			return mcp.NewToolResultError("unknown connection_name: " + connectionName), nil
		}

		plan, verr := validator.Validate(validator.Request{SQL: sql, Profile: profile})
		if verr != nil {
			rejections.WithLabelValues(connectionName, verr.Code.String()).Inc()
			toolCalls.WithLabelValues(connectionName, "rejected").Inc()
			deps.Logger.Info().Str("connection", connectionName).Str("code", verr.Code.String()).Msg("query rejected")
			return mcp.NewToolResultError(verr.Code.String() + ": " + verr.Message), nil
		}

		store, err := deps.Session.GetOrInit(profile)
		if err != nil {
			toolCalls.WithLabelValues(connectionName, "error").Inc()
			return mcp.NewToolResultError("internal error opening token store"), nil
		}

		// Resolve against profile.ConnectionName, not the agent's raw
		// connection_name: the catalog lookup above is case-insensitive, but
		// the session Container (and the token wire format it mints through
		// GetOrInit) always keys by the catalog's case-preserved name.
		bindArgs, err := executor.ResolveArgs(deps.Session, profile.ConnectionName, rawParams)
		if err != nil {
			toolCalls.WithLabelValues(connectionName, "error").Inc()
			return mcp.NewToolResultError("internal error resolving parameters"), nil
		}

		exec, ok := deps.Executors[profile.ConnectionName]
		if !ok {
			toolCalls.WithLabelValues(connectionName, "error").Inc()
			return mcp.NewToolResultError("no executor configured for connection_name: " + connectionName), nil
		}

		result, err := exec.Execute(ctx, sql, bindArgs)
		if err != nil {
			toolCalls.WithLabelValues(connectionName, "backend_error").Inc()
			deps.Logger.Error().Err(err).Str("connection", connectionName).Msg("query execution failed")
			return mcp.NewToolResultError("query execution failed"), nil
		}

		rows, err := executor.Materialize(result, plan, store, deps.Session.Generation(profile.ConnectionName))
		if err != nil {
			toolCalls.WithLabelValues(connectionName, "error").Inc()
			return mcp.NewToolResultError("internal error materializing result"), nil
		}

		toolCalls.WithLabelValues(connectionName, "ok").Inc()
		return mcp.NewToolResultText(renderRows(result.Columns, rows)), nil
	}
}

// renderRows turns a materialized result into the JSON array of objects the
// agent sees, keyed by column name in SELECT-list order, mirroring the
// query tool's own json.Marshal(result) response shape.
func renderRows(columns []executor.ColumnMeta, rows []executor.MaterializedRow) string {
	objs := make([]map[string]any, len(rows))
	for i, row := range rows {
		obj := make(map[string]any, len(columns))
		for c, col := range columns {
			obj[col.Name] = row[c]
		}
		objs[i] = obj
	}
	data, err := json.Marshal(objs)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func stringParams(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
