package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ROCKFALL_CONFIG", "HTTP_ADDR", "DATABASE_URL", "PG_DSN", "AUTH_JWT_SECRET", "JWT_SECRET",
		"INGEST_HMAC_SECRET", "INGEST_MAX_SKEW_SECONDS", "STATUS_WINDOW", "ASSESSMENT_WINDOW",
		"READING_RETENTION_DAYS", "SIMULATOR_ENABLED", "SIMULATOR_INTERVAL", "SIMULATOR_SENSORS",
		"SIMULATOR_HIGH_RISK_RATE", "ALERT_WEBHOOK_URL", "ALERT_NOTIFY_TEMPLATE", "ALERT_NOTIFY_COOLDOWN",
		"ALERT_NOTIFY_DEDUP_WINDOW", "ALERT_NOTIFY_TIMEOUT", "ALERT_KAFKA_BROKERS", "ALERT_KAFKA_TOPIC",
		"MQTT_BROKER_URL", "MQTT_TOPIC", "MQTT_CLIENT_ID", "MQTT_QOS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DatabaseURL != "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Monitoring.StatusWindow != 10*time.Minute || cfg.Monitoring.AssessmentWindow != time.Hour {
		t.Fatalf("unexpected windows %+v", cfg.Monitoring)
	}
	if !cfg.Simulator.Enabled || cfg.Simulator.Sensors != 10 || cfg.Simulator.HighRiskRate != 0.05 {
		t.Fatalf("unexpected simulator %+v", cfg.Simulator)
	}
	if cfg.Retention() != 30*24*time.Hour {
		t.Fatalf("unexpected retention %s", cfg.Retention())
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "rockfall.yaml")
	data := `
http_addr: ":9090"
monitoring:
  status_window: 5m
  reading_retention_days: 7
simulator:
  enabled: false
alerts:
  kafka_brokers: ["kafka-1:9092"]
  notify_cooldown: 15m
mqtt:
  broker_url: tcp://broker:1883
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ROCKFALL_CONFIG", path)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("ALERT_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PG_DSN", "postgres://localhost/rockfall")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("expected env to override yaml, got %s", cfg.HTTPAddr)
	}
	if cfg.Monitoring.StatusWindow != 5*time.Minute || cfg.Monitoring.RetentionDays != 7 {
		t.Fatalf("unexpected monitoring %+v", cfg.Monitoring)
	}
	if cfg.Monitoring.AssessmentWindow != time.Hour {
		t.Fatalf("expected default assessment window kept")
	}
	if cfg.Simulator.Enabled {
		t.Fatalf("expected simulator disabled by yaml")
	}
	if strings.Join(cfg.Alerts.KafkaBrokers, ",") != "k1:9092,k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Alerts.KafkaBrokers)
	}
	if cfg.Alerts.NotifyCooldown != 15*time.Minute || cfg.MQTT.BrokerURL != "tcp://broker:1883" {
		t.Fatalf("unexpected alerts/mqtt %+v %+v", cfg.Alerts, cfg.MQTT)
	}
	if cfg.DatabaseURL != "postgres://localhost/rockfall" {
		t.Fatalf("expected PG_DSN fallback, got %q", cfg.DatabaseURL)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIMULATOR_HIGH_RISK_RATE", "1.5")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "high risk rate") {
		t.Fatalf("expected rate error, got %v", err)
	}

	clearEnv(t)
	t.Setenv("ROCKFALL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Monitoring.StatusWindow = 0
	cfg.MQTT.QoS = 3
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"status window", "mqtt qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}

	cfg = Default()
	cfg.Simulator.Enabled = false
	cfg.Simulator.Interval = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled simulator interval should not matter: %v", err)
	}
}
