package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sqlguard",
	Short: "Pre-execution SQL safety broker for MCP agents",
	Long: `sqlguard sits between an MCP agent and a Postgres database.

Every SQL statement a connected agent proposes is validated against a
per-connection Policy Catalog before it ever reaches the database: shape
rules reject anything too broad to reason about, and sensitive columns are
never returned in plaintext — the result materializer substitutes a token
the agent can hand back as a parameter on a later call, never the value
underneath it.

sqlguard validate checks one statement offline. sqlguard serve runs the
broker as a long-lived MCP tool server.`,
}

// Execute is called by main.main(). It adds all child commands to the root
// command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sqlguard/config.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home + "/.sqlguard")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SQLGUARD")
	viper.AutomaticEnv()

	// Silently ignore a missing config file — some subcommands (e.g.
	// "config init") are meant to create the first one.
	_ = viper.ReadInConfig()
}
