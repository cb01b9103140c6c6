package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"schoolbus-backend/internal/directions"
	"schoolbus-backend/internal/tracking"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Record store backends selectable with RECORD_STORE
const (
	StoreFirebase = "firebase"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")
	ErrMissingJWTSecret   = errors.New("APP_JWT_SECRET environment variable is required")
	ErrUnknownRecordStore = errors.New("unknown RECORD_STORE")
)

// Tunables are the optional YAML settings of the tracking loop, the
// directions client and the redis record store
type Tunables struct {
	Tracking       tracking.Settings `yaml:"tracking"`
	Directions     directions.Config `yaml:"directions"`
	RedisRecordTTL time.Duration     `yaml:"redis_record_ttl"`
}

// DefaultTunables returns the stock tunables
func DefaultTunables() Tunables {
	return Tunables{
		Tracking:       tracking.DefaultSettings(),
		Directions:     directions.DefaultConfig(),
		RedisRecordTTL: 6 * time.Hour,
	}
}

// Config is everything the server reads at start-up
type Config struct {
	Port                      string
	DatabaseURL               string
	JWTSecret                 string
	FirebaseDatabaseURL       string
	FirebaseCredentialsBase64 string
	FirebaseCredentialsFile   string
	GoogleMapsAPIKey          string
	RecordStore               string
	RedisAddr                 string
	RedisPassword             string
	RedisDB                   int
	LogLevel                  string
	LogFilePath               string
	LogMaxAgeDays             int
	TunablesFile              string
	SeedDemoDriverID          string

	Tunables Tunables
}

// Load reads .env (when present), the environment and the optional
// tunables file named by TRACKING_CONFIG_FILE
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}
	return FromEnv()
}

// FromEnv builds the config from environment variables only
func FromEnv() (Config, error) {
	c := Config{
		Port:                      getEnv("PORT", "8080"),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		JWTSecret:                 os.Getenv("APP_JWT_SECRET"),
		FirebaseDatabaseURL:       os.Getenv("FIREBASE_DATABASE_URL"),
		FirebaseCredentialsBase64: os.Getenv("FIREBASE_CREDENTIALS_BASE64"),
		FirebaseCredentialsFile:   os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		GoogleMapsAPIKey:          os.Getenv("GOOGLE_MAPS_API_KEY"),
		RecordStore:               strings.ToLower(getEnv("RECORD_STORE", StoreFirebase)),
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:             os.Getenv("REDIS_PASSWORD"),
		LogLevel:                  strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		LogFilePath:               os.Getenv("LOG_FILE_PATH"),
		TunablesFile:              os.Getenv("TRACKING_CONFIG_FILE"),
		SeedDemoDriverID:          os.Getenv("SEED_DEMO_DRIVER_ID"),
	}

	var err error
	if c.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return c, err
	}
	if c.LogMaxAgeDays, err = getEnvInt("LOG_MAX_AGE_DAYS", 30); err != nil {
		return c, err
	}

	c.Tunables = DefaultTunables()
	if c.TunablesFile != "" {
		if c.Tunables, err = LoadTunables(c.TunablesFile); err != nil {
			return c, err
		}
	}
	c.Tunables.Directions.APIKey = c.GoogleMapsAPIKey

	return c, c.Validate()
}

// LoadTunables reads a YAML tunables file. Missing keys keep their defaults.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tunables file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tunables file %s: %w", path, err)
	}
	if t.RedisRecordTTL < 0 {
		log.Warnf("Negative redis_record_ttl %s, records will not expire", t.RedisRecordTTL)
		t.RedisRecordTTL = 0
	}
	return t, nil
}

// Validate reports the first setting that keeps the server from starting
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	switch c.RecordStore {
	case StoreFirebase:
		if c.FirebaseDatabaseURL == "" {
			return errors.New("FIREBASE_DATABASE_URL is required when RECORD_STORE=firebase")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when RECORD_STORE=redis")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRecordStore, c.RecordStore)
	}
	return nil
}

// FirebaseConfigured reports whether any Firebase credentials were given
func (c Config) FirebaseConfigured() bool {
	return c.FirebaseCredentialsBase64 != "" || c.FirebaseCredentialsFile != ""
}

func (c Config) GetListenAddress() string {
	return ":" + c.Port
}

func (c Config) GetLogLevel() log.Level {
	var lvl log.Level

	switch c.LogLevel {
	case "DEBUG":
		lvl = log.DebugLevel
	case "INFO":
		lvl = log.InfoLevel
	case "WARN":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	default:
		lvl = log.InfoLevel
	}
	return lvl
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
