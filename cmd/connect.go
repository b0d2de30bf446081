package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/executor"
)

var connectCmd = &cobra.Command{
	Use:          "connect",
	Short:        "Test a connection from the catalog config",
	SilenceUsage: true,
	Long:         `Dial one configured Postgres connection and report whether it's reachable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		connectionName, _ := cmd.Flags().GetString("connection")
		if connectionName == "" {
			return fmt.Errorf("provide a connection with -c/--connection")
		}

		profiles, err := catalog.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}
		profile, ok := catalog.Lookup(profiles, connectionName)
		if !ok {
			return fmt.Errorf("unknown connection %q", connectionName)
		}

		dbConns, err := loadConnectionConfigs(viper.GetViper())
		if err != nil {
			return err
		}
		cfg, ok := dbConns[strings.ToLower(profile.ConnectionName)]
		if !ok {
			return fmt.Errorf("no dialing config found for connection %q", connectionName)
		}

		exec, err := executor.Connect(cfg, profile.Safety)
		if err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
		defer exec.Close()

		fmt.Printf("connected to %q (%s:%d/%s)\n", profile.ConnectionName, cfg.Host, cfg.Port, cfg.Database)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().StringP("connection", "c", "", "connection name from the catalog config")
}
