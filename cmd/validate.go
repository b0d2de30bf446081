package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/output"
	"github.com/brokerdb/sqlguard/internal/validator"
)

var validateCmd = &cobra.Command{
	Use:          "validate [SQL statement]",
	Short:        "Check one SQL statement against a connection's Policy Catalog",
	SilenceUsage: true,
	Long: `Run the Validator against a single statement without touching the
database: report either the rejection code and message, or the output plan
("plaintext" vs "token") for each SELECT column.`,
	Args: cobra.MaximumNArgs(1),
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

		sqlText, err := getSQLInput(cmd, args, profile)
		if err != nil {
			return err
		}

		plan, verr := validator.Validate(validator.Request{SQL: sqlText, Profile: profile})

		renderer := output.NewRenderer(os.Stdout)
		if verr != nil {
			renderer.RenderRejected(sqlText, verr)
			os.Exit(1)
		}
		renderer.RenderAccepted(sqlText, plan)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringP("connection", "c", "", "connection name from the catalog config")
	validateCmd.Flags().String("file", "", "read SQL from file instead of argument")
}

// validateSQLFilePath checks whether filePath is safe to read as the
// source of a statement to run against profile. A well-known system
// directory (/etc, /sys, /proc, /dev) is always a suspicious place to
// find a SQL statement; when profile has any sensitive columns
// configured, reading from there is refused outright instead of merely
// warned about, since that's the one connection where a stray file under
// one of those paths could be staging sensitive output rather than an
// operator's test query.
func validateSQLFilePath(filePath string, profile *catalog.Profile) error {
	cleanPath := filepath.Clean(filePath)

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("invalid file path: %w", err)
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", absPath)
	}

	const maxFileSize = 10 * 1024 * 1024 // 10 MB
	if fileInfo.Size() > maxFileSize {
		return fmt.Errorf("file too large (>10MB): %s - this may not be a SQL file", absPath)
	}

	sensitivePaths := []string{"/etc/", "/sys/", "/proc/", "/dev/"}
	for _, sensitive := range sensitivePaths {
		if !strings.HasPrefix(absPath, sensitive) {
			continue
		}
		if len(profile.ColumnRules) > 0 {
			return fmt.Errorf("refusing to read SQL from system path %s for connection %q, which has sensitive columns configured", absPath, profile.ConnectionName)
		}
		fmt.Fprintf(os.Stderr, "warning: reading from system path %s\n", absPath)
		break
	}

	return nil
}

func getSQLInput(cmd *cobra.Command, args []string, profile *catalog.Profile) (string, error) {
	filePath, _ := cmd.Flags().GetString("file")

	if filePath != "" {
		if err := validateSQLFilePath(filePath, profile); err != nil {
			return "", fmt.Errorf("file validation failed: %w", err)
		}

		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("could not read file %s: %w", filePath, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}

	return "", fmt.Errorf("provide a SQL statement as argument or use --file flag")
}
