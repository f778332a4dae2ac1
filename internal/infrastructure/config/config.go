package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the RS-485 bridge core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Backend   BackendConfig   `yaml:"backend"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Logs      LogsConfig      `yaml:"logs"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// AppConfig contains application-level identity settings.
type AppConfig struct {
	Environment string `yaml:"environment"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// BackendConfig contains settings for the supervised telemetry backend process.
type BackendConfig struct {
	// Managed indicates whether the core should spawn and watchdog the
	// backend process. If false, the backend is expected to be running
	// externally and only the probe endpoint is used.
	Managed bool `yaml:"managed"`

	// Binary is the path to the backend executable.
	Binary string `yaml:"binary"`

	// Args are extra arguments passed to the backend.
	Args []string `yaml:"args"`

	// WorkDir is the working directory for the backend process.
	WorkDir string `yaml:"work_dir"`

	// Host and Port locate the backend's health endpoint. They are also
	// exported to the child as HOST and PORT.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// LogLevel is exported to the child as LOG_LEVEL.
	LogLevel string `yaml:"log_level"`

	// ProbeIntervalSeconds is how often the watchdog probes the backend.
	// Default: 2
	ProbeIntervalSeconds int `yaml:"probe_interval_seconds"`

	// ProbeTimeoutMs bounds a single TCP probe. Default: 150
	ProbeTimeoutMs int `yaml:"probe_timeout_ms"`

	// FailureThreshold is the number of consecutive failed probes before
	// the backend is killed and respawned. Default: 3
	FailureThreshold int `yaml:"failure_threshold"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains realtime stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`

	// SendBuffer is the per-subscriber event backlog. When a subscriber
	// falls behind, the oldest queued event is dropped. Default: 256
	SendBuffer int `yaml:"send_buffer"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LogsConfig contains session log persistence settings.
type LogsConfig struct {
	// PreferredPath is tried first when saving a session log dump.
	PreferredPath string `yaml:"preferred_path"`

	// FallbackPath is used when the preferred location is not writable.
	// Empty means a HOME-derived default.
	FallbackPath string `yaml:"fallback_path"`
}

// SimulatorConfig contains the built-in telemetry generator settings.
type SimulatorConfig struct {
	Enabled    bool   `yaml:"enabled"`
	DeviceUID  string `yaml:"device_uid"`
	IntervalMs int    `yaml:"interval_ms"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RS485_SECTION_KEY
// For example: RS485_DATABASE_PATH, RS485_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Environment: "dev",
		},
		Database: DatabaseConfig{
			Path:        "./data/rs485.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Backend: BackendConfig{
			Managed:              false,
			Host:                 "127.0.0.1",
			Port:                 8000,
			LogLevel:             "info",
			ProbeIntervalSeconds: 2,
			ProbeTimeoutMs:       150,
			FailureThreshold:     3,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8081,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws/realtime",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     256,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rs485-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Simulator: SimulatorConfig{
			Enabled:    false,
			DeviceUID:  "sim-device-1",
			IntervalMs: 500,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RS485_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// App
	if v := os.Getenv("RS485_APP_ENVIRONMENT"); v != "" {
		cfg.App.Environment = v
	}

	// Database
	if v := os.Getenv("RS485_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Backend
	if v := os.Getenv("RS485_BACKEND_BINARY"); v != "" {
		cfg.Backend.Binary = v
	}
	if v := os.Getenv("RS485_BACKEND_HOST"); v != "" {
		cfg.Backend.Host = v
	}
	if v := os.Getenv("RS485_BACKEND_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Backend.Port = port
		}
	}

	// API
	if v := os.Getenv("RS485_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("RS485_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("RS485_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RS485_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RS485_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("RS485_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Backend validation
	if c.Backend.Managed && c.Backend.Binary == "" {
		errs = append(errs, "backend.binary is required when backend.managed is true")
	}
	if c.Backend.Port < 1 || c.Backend.Port > 65535 {
		errs = append(errs, "backend.port must be between 1 and 65535")
	}
	if c.Backend.FailureThreshold < 1 {
		errs = append(errs, "backend.failure_threshold must be at least 1")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Simulator validation
	if c.Simulator.Enabled && c.Simulator.DeviceUID == "" {
		errs = append(errs, "simulator.device_uid is required when simulator.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}

// GetProbeInterval returns the watchdog probe interval as a Duration.
func (c *BackendConfig) GetProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

// GetProbeTimeout returns the single-probe timeout as a Duration.
func (c *BackendConfig) GetProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}
