package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/executor"
	"github.com/brokerdb/sqlguard/internal/mcpserver"
	"github.com/brokerdb/sqlguard/internal/session"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the MCP tool server",
	SilenceUsage: true,
	Long: `Load the catalog config, dial every configured Postgres connection, and
serve the run_sql_query MCP tool over stdio until the process is signaled
to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

		profiles, err := catalog.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}
		dbConns, err := loadConnectionConfigs(viper.GetViper())
		if err != nil {
			return err
		}

		executors := make(map[string]executor.Executor, len(profiles))
		for key, profile := range profiles {
			cfg, ok := dbConns[key]
			if !ok {
				return fmt.Errorf("connection %q has a catalog entry but no dialing config", profile.ConnectionName)
			}
			exec, err := executor.Connect(cfg, profile.Safety)
			if err != nil {
				return fmt.Errorf("connecting %q: %w", profile.ConnectionName, err)
			}
			defer exec.Close()
			executors[profile.ConnectionName] = exec
			logger.Info().Str("connection", profile.ConnectionName).Str("host", cfg.Host).Msg("connected")
		}

		deps := mcpserver.Deps{
			Profiles:  profiles,
			Executors: executors,
			Session:   session.New(),
			Logger:    logger,
		}

		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		srv := mcpserver.New(deps, metricsAddr)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return srv.ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("metrics-addr", ":9090", "address to serve /metrics and /healthz on")
}
