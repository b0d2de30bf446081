package cmd

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConnectionConfigs(t *testing.T) {
	v := viper.New()
	v.Set("databases", []map[string]any{
		{
			"connectionName": "MyDB",
			"host":           "db.internal",
			"port":           5433,
			"username":       "svc",
			"password":       "secret",
			"database":       "appdb",
			"options":        map[string]string{"sslmode": "disable"},
		},
	})

	configs, err := loadConnectionConfigs(v)
	if err != nil {
		t.Fatalf("loadConnectionConfigs: %v", err)
	}

	cfg, ok := configs["mydb"]
	if !ok {
		t.Fatal("expected a config keyed by lowercased connection name")
	}
	if cfg.Host != "db.internal" || cfg.Port != 5433 || cfg.User != "svc" || cfg.Password != "secret" || cfg.Database != "appdb" || cfg.SSLMode != "disable" {
		t.Errorf("loadConnectionConfigs produced unexpected config: %+v", cfg)
	}
}

func TestLoadConnectionConfigs_DefaultsPort(t *testing.T) {
	v := viper.New()
	v.Set("databases", []map[string]any{
		{
			"connectionName": "MyDB",
			"host":           "db.internal",
			"username":       "svc",
			"password":       "secret",
			"database":       "appdb",
		},
	})

	configs, err := loadConnectionConfigs(v)
	if err != nil {
		t.Fatalf("loadConnectionConfigs: %v", err)
	}
	if configs["mydb"].Port != 5432 {
		t.Errorf("Port = %d, want default 5432", configs["mydb"].Port)
	}
}
