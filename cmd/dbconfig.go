package cmd

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/brokerdb/sqlguard/internal/executor"
)

// rawDBConn mirrors the connection-dialing fields of one databases[] entry.
// catalog.Load deliberately never exposes host/port/credentials — the
// Policy Catalog only describes what's sensitive, safe, and limited, not
// how to reach the backend — so cmd parses the same config section a
// second time, independently, to build the dialing side.
type rawDBConn struct {
	ConnectionName string            `mapstructure:"connectionName"`
	Host           string            `mapstructure:"host"`
	Port           int               `mapstructure:"port"`
	Username       string            `mapstructure:"username"`
	Password       string            `mapstructure:"password"`
	Database       string            `mapstructure:"database"`
	Options        map[string]string `mapstructure:"options"`
}

// loadConnectionConfigs reads the dialing parameters for every configured
// database, keyed by connection name (case-insensitive, matching
// catalog.Lookup).
func loadConnectionConfigs(v *viper.Viper) (map[string]executor.ConnectionConfig, error) {
	var raw []rawDBConn
	if err := v.UnmarshalKey("databases", &raw); err != nil {
		return nil, fmt.Errorf("reading databases config: %w", err)
	}

	configs := make(map[string]executor.ConnectionConfig, len(raw))
	for _, db := range raw {
		if db.ConnectionName == "" {
			continue
		}
		cfg := executor.ConnectionConfig{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.Username,
			Password: db.Password,
			Database: db.Database,
			SSLMode:  db.Options["sslmode"],
		}
		if cfg.Port == 0 {
			cfg.Port = 5432
		}
		if cfg.Password == "" {
			cfg.Password = promptPassword(db.ConnectionName)
		}
		configs[strings.ToLower(db.ConnectionName)] = cfg
	}
	return configs, nil
}

// promptPassword reads a password from the terminal without echoing,
// mirroring the teacher's internal/mysql.PromptPassword.
func promptPassword(connectionName string) string {
	fmt.Printf("Enter password for %s: ", connectionName)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}
	return string(password)
}
