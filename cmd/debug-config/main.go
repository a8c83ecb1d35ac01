// Command debug-config loads and prints the central system's resolved
// configuration, for verifying environment variable wiring before a real
// deploy. Grounded on the teacher gateway's cmd/debug-config/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/ocpp-central/central-system/internal/config"
)

func main() {
	fmt.Println("=== Central System Configuration ===")

	envVars := []string{
		"LISTEN_ADDR", "METRICS_ADDR", "DB_URL", "HEARTBEAT_INTERVAL_SEC",
		"CALL_TIMEOUT_SEC", "METER_BUFFER", "AUTH_FAIL_POLICY",
		"ALLOW_UNKNOWN_STATIONS", "LOG_LEVEL", "LOG_FORMAT", "REDIS_URL",
		"KAFKA_BROKERS", "KAFKA_TOPIC",
	}
	fmt.Println("\n--- Environment Variables ---")
	for _, name := range envVars {
		if v := os.Getenv(name); v != "" {
			fmt.Printf("%s = %s\n", name, v)
		} else {
			fmt.Printf("%s = (not set)\n", name)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("error loading configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n--- Resolved Configuration ---")
	fmt.Printf("ListenAddr: %s\n", cfg.ListenAddr)
	fmt.Printf("MetricsAddr: %s\n", cfg.MetricsAddr)
	fmt.Printf("DBURL: %s\n", cfg.DBURL)
	fmt.Printf("HeartbeatIntervalSec: %d\n", cfg.HeartbeatIntervalSec)
	fmt.Printf("CallTimeoutSec: %d\n", cfg.CallTimeoutSec)
	fmt.Printf("MeterBuffer: %d\n", cfg.MeterBuffer)
	fmt.Printf("AuthFailPolicy: %s\n", cfg.AuthFailPolicy)
	fmt.Printf("AllowUnknownStations: %v\n", cfg.AllowUnknownStations)
	fmt.Printf("LogLevel/LogFormat: %s/%s\n", cfg.LogLevel, cfg.LogFormat)
	fmt.Printf("RedisURL: %s (db %d)\n", cfg.RedisURL, cfg.RedisDB)
	fmt.Printf("KafkaBrokers: %v\n", cfg.KafkaBrokers)
	fmt.Printf("KafkaTopic: %s\n", cfg.KafkaTopic)
}
