package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			InstanceID:             "test",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			FetchMaxBytes: 52428800,
			Routes:        ConsumerConfig{GroupID: "g1", Topics: []string{"t1"}},
		},
		Postgres: PostgresConfig{
			DSN:      "postgres://localhost/test",
			MaxConns: 10,
			MinConns: 2,
		},
		MetaQueue: MetaQueueConfig{
			DrainBudget:          1000,
			DrainIntervalMs:      50,
			MaintenanceIntervalS: 60,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_NoBrokers(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.Brokers = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty brokers")
	}
}

func TestValidate_NoDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestValidate_NoRoutesGroupID(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.Routes.GroupID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty routes group_id")
	}
}

func TestValidate_NoRoutesTopics(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.Routes.Topics = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty routes topics")
	}
}

func TestValidate_FetchMaxBytesZero(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.FetchMaxBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for fetch_max_bytes = 0")
	}
}

func TestValidate_MaxConnsZero(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.MaxConns = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for postgres.max_conns = 0")
	}
}

func TestValidate_MinConnsNegative(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.MinConns = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative postgres.min_conns")
	}
}

func TestValidate_ShutdownTimeoutZero(t *testing.T) {
	cfg := validConfig()
	cfg.Service.ShutdownTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for shutdown_timeout_seconds = 0")
	}
}

func TestValidate_DrainBudgetZero(t *testing.T) {
	cfg := validConfig()
	cfg.MetaQueue.DrainBudget = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for metaqueue.drain_budget = 0")
	}
}

func TestValidate_DrainIntervalZero(t *testing.T) {
	cfg := validConfig()
	cfg.MetaQueue.DrainIntervalMs = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for metaqueue.drain_interval_ms = 0")
	}
}

func TestValidate_MaintenanceIntervalZero(t *testing.T) {
	cfg := validConfig()
	cfg.MetaQueue.MaintenanceIntervalS = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for metaqueue.maintenance_interval_s = 0")
	}
}

func TestValidate_VRFMissingID(t *testing.T) {
	cfg := validConfig()
	cfg.VRFs = map[string]VRFConfig{"customer-a": {Description: "no id set"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for a non-default vrf with id 0")
	}
}

func TestValidate_VRFDefaultAllowsZeroID(t *testing.T) {
	cfg := validConfig()
	cfg.VRFs = map[string]VRFConfig{"default": {Description: "implicit default vrf"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected the default vrf to be allowed id 0, got: %v", err)
	}
}

func writeMinimalYAML(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
kafka:
  brokers:
    - "localhost:9092"
  routes:
    topics:
      - "routes"
postgres:
  dsn: "postgres://localhost/test"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_EnvOverrideDSN(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("RIBD_POSTGRES__DSN", "postgres://envhost/envdb")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://envhost/envdb" {
		t.Errorf("expected DSN from env, got %q", cfg.Postgres.DSN)
	}
}

func TestLoad_EnvOverrideLogLevel(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("RIBD_SERVICE__LOG_LEVEL", "debug")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.LogLevel != "debug" {
		t.Errorf("expected log_level 'debug' from env, got %q", cfg.Service.LogLevel)
	}
}

func TestLoad_EnvEmptyGroupIDFailsValidation(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("RIBD_KAFKA__ROUTES__GROUP_ID", "")

	_, err := Load(p)
	if err == nil {
		t.Fatal("expected validation error for empty routes group_id via env")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	p := writeMinimalYAML(t)

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Kafka.Routes.GroupID != "ribd-routes" {
		t.Errorf("expected default routes group_id, got %q", cfg.Kafka.Routes.GroupID)
	}
	if cfg.MetaQueue.DrainBudget != 1000 {
		t.Errorf("expected default drain_budget 1000, got %d", cfg.MetaQueue.DrainBudget)
	}
}
