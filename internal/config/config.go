package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AuthConfig configures bearer-token RBAC and ingest signatures.
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	IngestSecret      string `yaml:"ingest_hmac_secret"`
	IngestSkewSeconds int    `yaml:"ingest_max_skew_seconds"`
}

// MonitoringConfig configures prediction windows and reading retention.
type MonitoringConfig struct {
	StatusWindow     time.Duration `yaml:"status_window"`
	AssessmentWindow time.Duration `yaml:"assessment_window"`
	RetentionDays    int           `yaml:"reading_retention_days"`
}

// SimulatorConfig configures the synthetic reading generator.
type SimulatorConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	Sensors      int           `yaml:"sensors"`
	HighRiskRate float64       `yaml:"high_risk_rate"`
}

// AlertsConfig configures outbound alert notification.
type AlertsConfig struct {
	WebhookURL     string        `yaml:"webhook_url"`
	NotifyTemplate string        `yaml:"notify_template"`
	NotifyCooldown time.Duration `yaml:"notify_cooldown"`
	DedupeWindow   time.Duration `yaml:"notify_dedup_window"`
	NotifyTimeout  time.Duration `yaml:"notify_timeout"`
	KafkaBrokers   []string      `yaml:"kafka_brokers"`
	KafkaTopic     string        `yaml:"kafka_topic"`
}

// MQTTConfig configures the gateway subscriber. An empty BrokerURL disables it.
type MQTTConfig struct {
	BrokerURL string `yaml:"broker_url"`
	Topic     string `yaml:"topic"`
	ClientID  string `yaml:"client_id"`
	QoS       int    `yaml:"qos"`
}

// Config is the service configuration.
type Config struct {
	HTTPAddr    string           `yaml:"http_addr"`
	DatabaseURL string           `yaml:"database_url"`
	Auth        AuthConfig       `yaml:"auth"`
	Monitoring  MonitoringConfig `yaml:"monitoring"`
	Simulator   SimulatorConfig  `yaml:"simulator"`
	Alerts      AlertsConfig     `yaml:"alerts"`
	MQTT        MQTTConfig       `yaml:"mqtt"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Auth: AuthConfig{
			IngestSkewSeconds: 300,
		},
		Monitoring: MonitoringConfig{
			StatusWindow:     10 * time.Minute,
			AssessmentWindow: time.Hour,
			RetentionDays:    30,
		},
		Simulator: SimulatorConfig{
			Enabled:      true,
			Interval:     30 * time.Second,
			Sensors:      10,
			HighRiskRate: 0.05,
		},
		Alerts: AlertsConfig{
			NotifyTimeout: 5 * time.Second,
			KafkaTopic:    "rockfall.alerts",
		},
		MQTT: MQTTConfig{
			Topic:    "rockfall/sensors/+/readings",
			ClientID: "rockfall-monitor",
			QoS:      1,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by ROCKFALL_CONFIG, and environment overrides, in that order.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("ROCKFALL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))

	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.Auth.JWTSecret))
	cfg.Auth.IngestSecret = getenvDefault("INGEST_HMAC_SECRET", cfg.Auth.IngestSecret)
	cfg.Auth.IngestSkewSeconds = getenvIntDefault("INGEST_MAX_SKEW_SECONDS", cfg.Auth.IngestSkewSeconds)

	cfg.Monitoring.StatusWindow = getenvDuration("STATUS_WINDOW", cfg.Monitoring.StatusWindow)
	cfg.Monitoring.AssessmentWindow = getenvDuration("ASSESSMENT_WINDOW", cfg.Monitoring.AssessmentWindow)
	cfg.Monitoring.RetentionDays = getenvIntDefault("READING_RETENTION_DAYS", cfg.Monitoring.RetentionDays)

	cfg.Simulator.Enabled = getenvBool("SIMULATOR_ENABLED", cfg.Simulator.Enabled)
	cfg.Simulator.Interval = getenvDuration("SIMULATOR_INTERVAL", cfg.Simulator.Interval)
	cfg.Simulator.Sensors = getenvIntDefault("SIMULATOR_SENSORS", cfg.Simulator.Sensors)
	cfg.Simulator.HighRiskRate = getenvFloatDefault("SIMULATOR_HIGH_RISK_RATE", cfg.Simulator.HighRiskRate)

	cfg.Alerts.WebhookURL = getenvDefault("ALERT_WEBHOOK_URL", cfg.Alerts.WebhookURL)
	cfg.Alerts.NotifyTemplate = getenvDefault("ALERT_NOTIFY_TEMPLATE", cfg.Alerts.NotifyTemplate)
	cfg.Alerts.NotifyCooldown = getenvDuration("ALERT_NOTIFY_COOLDOWN", cfg.Alerts.NotifyCooldown)
	cfg.Alerts.DedupeWindow = getenvDuration("ALERT_NOTIFY_DEDUP_WINDOW", cfg.Alerts.DedupeWindow)
	cfg.Alerts.NotifyTimeout = getenvDuration("ALERT_NOTIFY_TIMEOUT", cfg.Alerts.NotifyTimeout)
	if brokers := splitCSV(os.Getenv("ALERT_KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Alerts.KafkaBrokers = brokers
	}
	cfg.Alerts.KafkaTopic = getenvDefault("ALERT_KAFKA_TOPIC", cfg.Alerts.KafkaTopic)

	cfg.MQTT.BrokerURL = getenvDefault("MQTT_BROKER_URL", cfg.MQTT.BrokerURL)
	cfg.MQTT.Topic = getenvDefault("MQTT_TOPIC", cfg.MQTT.Topic)
	cfg.MQTT.ClientID = getenvDefault("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.QoS = getenvIntDefault("MQTT_QOS", cfg.MQTT.QoS)
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("config: http_addr is required"))
	}
	if c.Monitoring.StatusWindow <= 0 {
		errs = append(errs, errors.New("config: status window must be positive"))
	}
	if c.Monitoring.AssessmentWindow <= 0 {
		errs = append(errs, errors.New("config: assessment window must be positive"))
	}
	if c.Monitoring.RetentionDays <= 0 {
		errs = append(errs, errors.New("config: reading retention days must be positive"))
	}
	if c.Auth.IngestSkewSeconds < 0 {
		errs = append(errs, errors.New("config: ingest max skew must not be negative"))
	}
	if c.Simulator.Enabled {
		if c.Simulator.Interval <= 0 {
			errs = append(errs, errors.New("config: simulator interval must be positive"))
		}
		if c.Simulator.Sensors <= 0 {
			errs = append(errs, errors.New("config: simulator sensors must be positive"))
		}
	}
	if c.Simulator.HighRiskRate < 0 || c.Simulator.HighRiskRate > 1 {
		errs = append(errs, errors.New("config: simulator high risk rate must be within [0,1]"))
	}
	if c.Alerts.NotifyCooldown < 0 || c.Alerts.DedupeWindow < 0 {
		errs = append(errs, errors.New("config: notify cooldown and dedupe window must not be negative"))
	}
	if len(c.Alerts.KafkaBrokers) > 0 && c.Alerts.KafkaTopic == "" {
		errs = append(errs, errors.New("config: kafka topic is required when brokers are set"))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, errors.New("config: mqtt qos must be 0, 1 or 2"))
	}
	return errors.Join(errs...)
}

// Retention returns the reading retention period.
func (c Config) Retention() time.Duration {
	return time.Duration(c.Monitoring.RetentionDays) * 24 * time.Hour
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
