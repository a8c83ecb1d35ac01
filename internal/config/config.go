// Package config loads the central system's runtime configuration from
// environment variables (and an optional YAML file), grounded on the
// teacher gateway's internal/config/config.go viper pattern: SetDefault for
// every field, AutomaticEnv with a "." -> "_" key replacer, and explicit
// BindEnv calls for the names this system actually documents in its
// operational surface.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of tunables named in section 6.
type Config struct {
	ListenAddr           string        `mapstructure:"listen_addr"`
	MetricsAddr          string        `mapstructure:"metrics_addr"`
	DBURL                string        `mapstructure:"db_url"`
	HeartbeatIntervalSec int           `mapstructure:"heartbeat_interval_sec"`
	CallTimeoutSec       int           `mapstructure:"call_timeout_sec"`
	MeterBuffer          int           `mapstructure:"meter_buffer"`
	AuthFailPolicy       string        `mapstructure:"auth_fail_policy"`
	AllowUnknownStations bool          `mapstructure:"allow_unknown_stations"`
	LogLevel             string        `mapstructure:"log_level"`
	LogFormat            string        `mapstructure:"log_format"`
	RedisURL             string        `mapstructure:"redis_url"`
	RedisDB              int           `mapstructure:"redis_db"`
	AuthCacheTTL         time.Duration `mapstructure:"auth_cache_ttl"`
	KafkaBrokers         []string      `mapstructure:"kafka_brokers"`
	KafkaTopic           string        `mapstructure:"kafka_topic"`
	DrainDeadlineSec     int           `mapstructure:"drain_deadline_sec"`
}

// Load builds a Config from defaults overridden by an optional config.yaml
// and then by environment variables, in that order of increasing priority.
func Load() (*Config, error) {
	setDefaults()
	setupEnvironmentVariables()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setupEnvironmentVariables() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.BindEnv("listen_addr", "LISTEN_ADDR")
	viper.BindEnv("metrics_addr", "METRICS_ADDR")
	viper.BindEnv("db_url", "DB_URL")
	viper.BindEnv("heartbeat_interval_sec", "HEARTBEAT_INTERVAL_SEC")
	viper.BindEnv("call_timeout_sec", "CALL_TIMEOUT_SEC")
	viper.BindEnv("meter_buffer", "METER_BUFFER")
	viper.BindEnv("auth_fail_policy", "AUTH_FAIL_POLICY")
	viper.BindEnv("allow_unknown_stations", "ALLOW_UNKNOWN_STATIONS")
	viper.BindEnv("log_level", "LOG_LEVEL")
	viper.BindEnv("log_format", "LOG_FORMAT")
	viper.BindEnv("redis_url", "REDIS_URL")
	viper.BindEnv("redis_db", "REDIS_DB")
	viper.BindEnv("kafka_topic", "KAFKA_TOPIC")

	if brokers := viper.GetString("KAFKA_BROKERS"); brokers != "" {
		split := strings.Split(brokers, ",")
		for i, b := range split {
			split[i] = strings.TrimSpace(b)
		}
		viper.Set("kafka_brokers", split)
	}
}

func setDefaults() {
	viper.SetDefault("listen_addr", ":9000")
	viper.SetDefault("metrics_addr", ":9100")
	viper.SetDefault("db_url", "postgres://localhost:5432/centralsystem?sslmode=disable")
	viper.SetDefault("heartbeat_interval_sec", 30)
	viper.SetDefault("call_timeout_sec", 30)
	viper.SetDefault("meter_buffer", 1024)
	viper.SetDefault("auth_fail_policy", "closed")
	viper.SetDefault("allow_unknown_stations", true)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("redis_url", "localhost:6379")
	viper.SetDefault("redis_db", 0)
	viper.SetDefault("auth_cache_ttl", "5m")
	viper.SetDefault("kafka_brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka_topic", "centralsystem-events")
	viper.SetDefault("drain_deadline_sec", 5)
}
