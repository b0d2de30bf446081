// Package mcpserver is the MCP transport surface (spec §1, out of scope for
// correctness): it registers a single tool, run_sql_query, wiring the
// Policy Catalog, Validator, Executor, and session Container into one
// request handler, and reports Prometheus metrics and a health check
// alongside it.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/executor"
	"github.com/brokerdb/sqlguard/internal/session"
)

const (
	serverName    = "sqlguard"
	serverVersion = "1.0.0"
)

// Deps bundles everything one run_sql_query call needs, the way
// BaseMCPToolDeps bundles a column tool's collaborators: the immutable
// per-connection policy, the backend adapters to run accepted queries
// against, the session container that owns every connection's Token
// Store, and a logger.
type Deps struct {
	Profiles  map[string]*catalog.Profile
	Executors map[string]executor.Executor
	Session   *session.Container
	Logger    zerolog.Logger
}

// Server owns the MCP tool server and its metrics/health HTTP endpoint.
type Server struct {
	deps    Deps
	mcp     *server.MCPServer
	metrics *http.Server
}

// New builds a Server with run_sql_query registered and metrics
// instrumentation wired in.
func New(deps Deps, metricsAddr string) *Server {
	mcpSrv := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(true))
	registerRunSQLQuery(mcpSrv, deps)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthzHandler(deps))

	return &Server{
		deps:    deps,
		mcp:     mcpSrv,
		metrics: &http.Server{Addr: metricsAddr, Handler: mux},
	}
}

// ServeStdio runs the MCP tool server over stdio until ctx is canceled or
// the transport closes, starting the metrics/health HTTP server alongside
// it in the background.
func (s *Server) ServeStdio(ctx context.Context) error {
	go func() {
		if err := s.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.deps.Logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	defer s.metrics.Shutdown(context.Background())

	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func healthzHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","connections":%d}`, len(deps.Profiles))
	}
}

var (
	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlguard_tool_calls_total",
			Help: "Total number of run_sql_query invocations, by connection and outcome",
		},
		[]string{"connection", "outcome"},
	)
	toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlguard_tool_duration_milliseconds",
			Help:    "run_sql_query latency in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"connection"},
	)
	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlguard_validation_rejections_total",
			Help: "Total number of queries rejected by the validator, by reason code",
		},
		[]string{"connection", "code"},
	)
)

func init() {
	prometheus.MustRegister(toolCalls)
	prometheus.MustRegister(toolDuration)
	prometheus.MustRegister(rejections)
}

func observeDuration(connection string, start time.Time) {
	toolDuration.WithLabelValues(connection).Observe(float64(time.Since(start).Milliseconds()))
}
