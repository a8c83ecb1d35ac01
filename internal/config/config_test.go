package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()
	defer resetViper()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, 30, cfg.HeartbeatIntervalSec)
	assert.Equal(t, 30, cfg.CallTimeoutSec)
	assert.Equal(t, 1024, cfg.MeterBuffer)
	assert.Equal(t, "closed", cfg.AuthFailPolicy)
	assert.True(t, cfg.AllowUnknownStations)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	resetViper()
	defer resetViper()

	os.Setenv("LISTEN_ADDR", ":9999")
	os.Setenv("METER_BUFFER", "2048")
	os.Setenv("ALLOW_UNKNOWN_STATIONS", "false")
	os.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	defer func() {
		os.Unsetenv("LISTEN_ADDR")
		os.Unsetenv("METER_BUFFER")
		os.Unsetenv("ALLOW_UNKNOWN_STATIONS")
		os.Unsetenv("KAFKA_BROKERS")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 2048, cfg.MeterBuffer)
	assert.False(t, cfg.AllowUnknownStations)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}
