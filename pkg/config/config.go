package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Config holds the configuration for a doorpi service
type Config struct {
	// MQTT configuration
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTUser     string `yaml:"mqtt_user"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTClientID string `yaml:"mqtt_client_id"`

	// Redis configuration
	RedisHost     string `yaml:"redis_host"`
	RedisPort     int    `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Postgres configuration
	PostgresHost               string        `yaml:"postgres_host"`
	PostgresPort               int           `yaml:"postgres_port"`
	PostgresUser               string        `yaml:"postgres_user"`
	PostgresPassword           string        `yaml:"postgres_password"`
	PostgresDB                 string        `yaml:"postgres_db"`
	PostgresSSLMode            string        `yaml:"postgres_sslmode"`
	PostgresMaxConnections     int           `yaml:"postgres_max_connections"`
	PostgresMaxIdleConnections int           `yaml:"postgres_max_idle_connections"`
	PostgresConnMaxLifetime    time.Duration `yaml:"postgres_conn_max_lifetime"`
	MigrateOnStart             bool          `yaml:"migrate_on_start"`

	// Service configuration
	ServiceName string `yaml:"service_name"`
	HealthPort  int    `yaml:"health_port"`
	LogLevel    string `yaml:"log_level"`
	ConfigFile  string `yaml:"-"`

	// Door agent configuration
	DoorLocation   string        `yaml:"door_location"`
	DoorTopics     []string      `yaml:"door_topics"`
	StatusCacheTTL time.Duration `yaml:"status_cache_ttl"`

	// Web configuration
	WebPort             int    `yaml:"web_port"`
	StaticDir           string `yaml:"static_dir"`
	Timezone            string `yaml:"timezone"`
	FuturePolicy        string `yaml:"future_policy"`
	FutureMarker        string `yaml:"future_marker"`
	MaxSlots            int    `yaml:"max_slots"`
	MaxWindowDays       int    `yaml:"max_window_days"`
	EstimateCacheTTLSec int    `yaml:"estimate_cache_ttl_sec"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:                 "localhost",
		MQTTPort:                   1883,
		RedisHost:                  "localhost",
		RedisPort:                  6379,
		RedisDB:                    0,
		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "doorpi",
		PostgresDB:                 "doorpi",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     10,
		PostgresMaxIdleConnections: 5,
		PostgresConnMaxLifetime:    30 * time.Minute,
		MigrateOnStart:             true,
		ServiceName:                "doorpi",
		HealthPort:                 8080,
		LogLevel:                   "info",
		DoorLocation:               "front",
		DoorTopics:                 []string{"automation/raw/door/+"},
		StatusCacheTTL:             24 * time.Hour,
		WebPort:                    5000,
		StaticDir:                  "static",
		Timezone:                   "Local",
		FuturePolicy:               "after_now",
		FutureMarker:               "0",
		MaxSlots:                   24 * 7 * 4,
		MaxWindowDays:              31,
		EstimateCacheTTLSec:        30,
	}
}

// Load builds a Config for serviceName with the hierarchy
// defaults → YAML file → env → flags. The file is taken from --config or DOORPI_CONFIG.
func Load(serviceName string, args []string) (*Config, error) {
	probe := NewConfig()
	probe.ConfigFile = os.Getenv("DOORPI_CONFIG")
	if err := probe.LoadFromFlags(args); err != nil {
		return nil, err
	}

	cfg := NewConfig()
	cfg.ServiceName = serviceName
	if probe.ConfigFile != "" {
		if err := cfg.LoadFromFile(probe.ConfigFile); err != nil {
			return nil, err
		}
		cfg.ConfigFile = probe.ConfigFile
	}
	cfg.LoadFromEnv()
	if err := cfg.LoadFromFlags(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables with DOORPI_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	envString("DOORPI_MQTT_BROKER", &c.MQTTBroker)
	envInt("DOORPI_MQTT_PORT", &c.MQTTPort)
	envString("DOORPI_MQTT_USER", &c.MQTTUser)
	envString("DOORPI_MQTT_PASSWORD", &c.MQTTPassword)
	envString("DOORPI_MQTT_CLIENT_ID", &c.MQTTClientID)

	// Redis configuration
	envString("DOORPI_REDIS_HOST", &c.RedisHost)
	envInt("DOORPI_REDIS_PORT", &c.RedisPort)
	envString("DOORPI_REDIS_PASSWORD", &c.RedisPassword)
	envInt("DOORPI_REDIS_DB", &c.RedisDB)

	// Postgres configuration
	envString("DOORPI_POSTGRES_HOST", &c.PostgresHost)
	envInt("DOORPI_POSTGRES_PORT", &c.PostgresPort)
	envString("DOORPI_POSTGRES_USER", &c.PostgresUser)
	envString("DOORPI_POSTGRES_PASSWORD", &c.PostgresPassword)
	envString("DOORPI_POSTGRES_DB", &c.PostgresDB)
	envString("DOORPI_POSTGRES_SSLMODE", &c.PostgresSSLMode)
	envInt("DOORPI_POSTGRES_MAX_CONNECTIONS", &c.PostgresMaxConnections)
	envInt("DOORPI_POSTGRES_MAX_IDLE_CONNECTIONS", &c.PostgresMaxIdleConnections)
	envDuration("DOORPI_POSTGRES_CONN_MAX_LIFETIME", &c.PostgresConnMaxLifetime)
	envBool("DOORPI_MIGRATE_ON_START", &c.MigrateOnStart)

	// Service configuration
	envString("DOORPI_SERVICE_NAME", &c.ServiceName)
	envInt("DOORPI_HEALTH_PORT", &c.HealthPort)
	envString("DOORPI_LOG_LEVEL", &c.LogLevel)

	// Door agent configuration
	envString("DOORPI_DOOR_LOCATION", &c.DoorLocation)
	if v := os.Getenv("DOORPI_DOOR_TOPICS"); v != "" {
		c.DoorTopics = strings.Split(v, ",")
	}
	envDuration("DOORPI_STATUS_CACHE_TTL", &c.StatusCacheTTL)

	// Web configuration
	envInt("DOORPI_WEB_PORT", &c.WebPort)
	envString("DOORPI_STATIC_DIR", &c.StaticDir)
	envString("DOORPI_TIMEZONE", &c.Timezone)
	envString("DOORPI_FUTURE_POLICY", &c.FuturePolicy)
	envString("DOORPI_FUTURE_MARKER", &c.FutureMarker)
	envInt("DOORPI_MAX_SLOTS", &c.MaxSlots)
	envInt("DOORPI_MAX_WINDOW_DAYS", &c.MaxWindowDays)
	envInt("DOORPI_ESTIMATE_CACHE_TTL_SEC", &c.EstimateCacheTTLSec)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// FlagSet returns a flag set bound to the fields of c
func (c *Config) FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(c.ServiceName, pflag.ContinueOnError)

	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Path to YAML configuration file")

	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres sslmode")
	fs.IntVar(&c.PostgresMaxConnections, "postgres-max-connections", c.PostgresMaxConnections, "Maximum open Postgres connections")
	fs.IntVar(&c.PostgresMaxIdleConnections, "postgres-max-idle-connections", c.PostgresMaxIdleConnections, "Maximum idle Postgres connections")
	fs.DurationVar(&c.PostgresConnMaxLifetime, "postgres-conn-max-lifetime", c.PostgresConnMaxLifetime, "Maximum lifetime of a Postgres connection")
	fs.BoolVar(&c.MigrateOnStart, "migrate-on-start", c.MigrateOnStart, "Apply pending database migrations at startup")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Door agent flags
	fs.StringVar(&c.DoorLocation, "door-location", c.DoorLocation, "Door location shown by the web service")
	fs.StringSliceVar(&c.DoorTopics, "door-topics", c.DoorTopics, "MQTT topics carrying raw door sensor messages")
	fs.DurationVar(&c.StatusCacheTTL, "status-cache-ttl", c.StatusCacheTTL, "TTL of the cached current door status")

	// Web flags
	fs.IntVar(&c.WebPort, "web-port", c.WebPort, "Web HTTP port")
	fs.StringVar(&c.StaticDir, "static-dir", c.StaticDir, "Directory served under /static/")
	fs.StringVar(&c.Timezone, "timezone", c.Timezone, "IANA timezone used for weekly views")
	fs.StringVar(&c.FuturePolicy, "future-policy", c.FuturePolicy, "Slots marked as future (after_now, exact_now)")
	fs.StringVar(&c.FutureMarker, "future-marker", c.FutureMarker, "Value shown for slots that have not happened yet")
	fs.IntVar(&c.MaxSlots, "max-slots", c.MaxSlots, "Maximum slots per estimate request")
	fs.IntVar(&c.MaxWindowDays, "max-window-days", c.MaxWindowDays, "Maximum estimate window in days")
	fs.IntVar(&c.EstimateCacheTTLSec, "estimate-cache-ttl", c.EstimateCacheTTLSec, "Estimate cache TTL in seconds (0 disables)")

	return fs
}

// LoadFromFlags parses command-line arguments and overrides config values
func (c *Config) LoadFromFlags(args []string) error {
	if err := c.FlagSet().Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("Postgres host is required")
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("Postgres port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.WebPort <= 0 || c.WebPort > 65535 {
		return fmt.Errorf("Web port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.DoorLocation == "" {
		return fmt.Errorf("Door location is required")
	}
	if c.MaxSlots <= 0 {
		return fmt.Errorf("max slots must be positive")
	}
	if c.MaxWindowDays <= 0 {
		return fmt.Errorf("max window days must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.FuturePolicy != "after_now" && c.FuturePolicy != "exact_now" {
		return fmt.Errorf("invalid future policy: %s (must be after_now or exact_now)", c.FuturePolicy)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns a lib/pq keyword/value connection string
func (c *Config) PostgresConnectionString() string {
	parts := []string{
		fmt.Sprintf("host=%s", c.PostgresHost),
		fmt.Sprintf("port=%d", c.PostgresPort),
		fmt.Sprintf("user=%s", c.PostgresUser),
		fmt.Sprintf("dbname=%s", c.PostgresDB),
		fmt.Sprintf("sslmode=%s", c.PostgresSSLMode),
	}
	if c.PostgresPassword != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.PostgresPassword))
	}
	return strings.Join(parts, " ")
}

// Location returns the configured timezone, falling back to time.Local
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
