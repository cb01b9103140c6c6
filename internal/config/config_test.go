package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	log.SetOutput(io.Discard)
	for _, key := range []string{
		"PORT", "FIREBASE_CREDENTIALS_BASE64", "FIREBASE_CREDENTIALS_FILE",
		"GOOGLE_MAPS_API_KEY", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"LOG_LEVEL", "LOG_FILE_PATH", "LOG_MAX_AGE_DAYS", "TRACKING_CONFIG_FILE",
		"SEED_DEMO_DRIVER_ID",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/schoolbus?sslmode=disable")
	t.Setenv("APP_JWT_SECRET", "secret")
	t.Setenv("RECORD_STORE", "memory")
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracking.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, ":8080", c.GetListenAddress())
	assert.Equal(t, StoreMemory, c.RecordStore)
	assert.Equal(t, "localhost:6379", c.RedisAddr)
	assert.Equal(t, 30, c.LogMaxAgeDays)
	assert.Equal(t, DefaultTunables().Tracking, c.Tunables.Tracking)
	assert.False(t, c.FirebaseConfigured())
}

func TestFromEnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("RECORD_STORE", "Redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("GOOGLE_MAPS_API_KEY", "maps-key")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FIREBASE_CREDENTIALS_FILE", "/etc/firebase.json")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, StoreRedis, c.RecordStore)
	assert.Equal(t, "cache:6380", c.RedisAddr)
	assert.Equal(t, 2, c.RedisDB)
	assert.Equal(t, "maps-key", c.Tunables.Directions.APIKey)
	assert.Equal(t, log.DebugLevel, c.GetLogLevel())
	assert.True(t, c.FirebaseConfigured())
}

func TestFromEnvValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"no database", map[string]string{"DATABASE_URL": ""}, "DATABASE_URL"},
		{"no secret", map[string]string{"APP_JWT_SECRET": ""}, "APP_JWT_SECRET"},
		{"unknown store", map[string]string{"RECORD_STORE": "s3"}, "unknown RECORD_STORE"},
		{"firebase without url", map[string]string{"RECORD_STORE": "firebase", "FIREBASE_DATABASE_URL": ""}, "FIREBASE_DATABASE_URL"},
		{"bad redis db", map[string]string{"REDIS_DB": "two"}, "invalid REDIS_DB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadTunables(t *testing.T) {
	path := writeFile(t, `tracking:
  tick_interval: 2s
  arrival_radius_meters: 75
directions:
  requests_per_second: 1.5
  cache_ttl: 5m
redis_record_ttl: 1h
`)

	tunables, err := LoadTunables(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, tunables.Tracking.TickInterval)
	assert.Equal(t, 75.0, tunables.Tracking.ArrivalRadiusMeters)
	assert.Equal(t, 30*time.Second, tunables.Tracking.RouteRefresh, "unset keys keep defaults")
	assert.Equal(t, 1.5, tunables.Directions.RequestsPerSecond)
	assert.Equal(t, 5*time.Minute, tunables.Directions.CacheTTL)
	assert.Equal(t, 10, tunables.Directions.Burst)
	assert.Equal(t, time.Hour, tunables.RedisRecordTTL)
}

func TestLoadTunablesErrors(t *testing.T) {
	_, err := LoadTunables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read tunables file")

	_, err = LoadTunables(writeFile(t, "tracking: [not, a, map]"))
	assert.ErrorContains(t, err, "parse tunables file")
}

func TestFromEnvReadsTunablesFile(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TRACKING_CONFIG_FILE", writeFile(t, "tracking:\n  tick_interval: 3s\n"))

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.Tunables.Tracking.TickInterval)
}

func TestGetLogLevel(t *testing.T) {
	tests := map[string]log.Level{
		"DEBUG": log.DebugLevel,
		"INFO":  log.InfoLevel,
		"WARN":  log.WarnLevel,
		"ERROR": log.ErrorLevel,
		"":      log.InfoLevel,
		"LOUD":  log.InfoLevel,
	}
	for level, want := range tests {
		assert.Equal(t, want, Config{LogLevel: level}.GetLogLevel(), level)
	}
}

func TestConfigureLoggingWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	defer func() {
		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
		log.SetOutput(io.Discard)
	}()

	require.NoError(t, ConfigureLogging(Config{LogLevel: "WARN", LogFilePath: path, LogMaxAgeDays: 1}))
	log.SetOutput(io.Discard)
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	log.Warn("bus went quiet")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bus went quiet")
}
