package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage sqlguard configuration",
}

var configInitCmd = &cobra.Command{
	Use:          "init",
	Short:        "Create a skeleton catalog config interactively",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		configDir := filepath.Join(home, ".sqlguard")
		configPath := filepath.Join(configDir, "config.yaml")

		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Config file already exists at %s\n", configPath)
			fmt.Print("Overwrite? [y/N]: ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(strings.ToLower(answer)) != "y" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := os.MkdirAll(configDir, 0700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Println("sqlguard configuration setup")
		fmt.Println("─────────────────────────────")
		fmt.Println()

		fmt.Print("Connection name [default]: ")
		name, _ := reader.ReadString('\n')
		name = strings.TrimSpace(name)
		if name == "" {
			name = "default"
		}

		fmt.Print("Postgres host [127.0.0.1]: ")
		host, _ := reader.ReadString('\n')
		host = strings.TrimSpace(host)
		if host == "" {
			host = "127.0.0.1"
		}

		fmt.Print("Postgres port [5432]: ")
		port, _ := reader.ReadString('\n')
		port = strings.TrimSpace(port)
		if port == "" {
			port = "5432"
		}

		fmt.Print("Postgres user [sqlguard]: ")
		user, _ := reader.ReadString('\n')
		user = strings.TrimSpace(user)
		if user == "" {
			user = "sqlguard"
		}

		fmt.Print("Database name: ")
		database, _ := reader.ReadString('\n')
		database = strings.TrimSpace(database)
		if database == "" {
			return fmt.Errorf("database name is required")
		}

		var config strings.Builder
		config.WriteString("# sqlguard catalog config\n\n")
		config.WriteString("columnPolicy:\n")
		config.WriteString("  mode: pseudonymize\n")
		config.WriteString("  strategy: deterministic\n\n")
		config.WriteString("safetyPolicy:\n")
		config.WriteString("  readOnly: \"yes\"\n")
		config.WriteString("  statementTimeoutMs: 5000\n")
		config.WriteString("  maxRowReturned: 1000\n")
		config.WriteString("  maxPayloadKiloBytes: 256\n\n")
		config.WriteString("databases:\n")
		config.WriteString("  - type: postgres\n")
		config.WriteString(fmt.Sprintf("    connectionName: %s\n", name))
		config.WriteString(fmt.Sprintf("    host: %s\n", host))
		config.WriteString(fmt.Sprintf("    port: %s\n", port))
		config.WriteString(fmt.Sprintf("    username: %s\n", user))
		config.WriteString("    # password: omitted for security, will prompt when unset\n")
		config.WriteString(fmt.Sprintf("    database: %s\n", database))
		config.WriteString("    options:\n")
		config.WriteString("      sslmode: require\n")
		config.WriteString("    sensitiveColumns: []\n")
		config.WriteString("    safeFunctions: []\n")

		if err := os.WriteFile(configPath, []byte(config.String()), 0600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("\nConfig written to %s\n", configPath)
		fmt.Println("\nRecommended: create a read-only Postgres role for sqlguard:")
		fmt.Println()
		fmt.Printf("  CREATE ROLE %s LOGIN PASSWORD '<password>';\n", user)
		fmt.Printf("  GRANT SELECT ON ALL TABLES IN SCHEMA public TO %s;\n", user)
		fmt.Println()
		fmt.Println("Then add sensitiveColumns / safeFunctions entries before running sqlguard serve.")

		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			fmt.Println("No config file found.")
			fmt.Println("Run 'sqlguard config init' to create one.")
			return nil
		}

		fmt.Printf("Config file: %s\n\n", configFile)

		data, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Println(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
