package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root daemon configuration for gpioctrl.
// All configuration is loaded from YAML and can be overridden by environment
// variables. The GPIO mapping document itself (gpiodef) is not part of this
// file; its path is supplied on the command line.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Logging   LoggingConfig   `yaml:"logging"`
	Varserver VarserverConfig `yaml:"varserver"`
	PWM       PWMConfig       `yaml:"pwm"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServiceConfig identifies the daemon instance.
type ServiceConfig struct {
	// Name identifies the signal-mode instance. It is used as the logging
	// service field and as the consumer string attached to hardware line
	// requests. The watch-mode instance identifies itself as WatcherName.
	Name string `yaml:"name"`

	// WatcherName is the reserved program name that selects watch mode.
	// When the process is invoked under this name it monitors edge events
	// instead of variable-server signals.
	WatcherName string `yaml:"watcher_name"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// VarserverConfig contains variable-server connection settings.
// The variable server is reached over MQTT.
type VarserverConfig struct {
	MQTT MQTTConfig `yaml:"mqtt"`

	// RequestTimeout is the per-request timeout in seconds for
	// find/get/set/notify round trips.
	RequestTimeout int `yaml:"request_timeout"`

	// SignalBuffer is the depth of the incoming signal queue.
	SignalBuffer int `yaml:"signal_buffer"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// PWMConfig contains software PWM timing settings.
type PWMConfig struct {
	// QuantumMicros is the per-unit time quantum in microseconds. With the
	// default of 40 a full 255-unit period is about 10.2ms (~98Hz).
	QuantumMicros int `yaml:"quantum_us"`
}

// HistoryConfig contains the optional SQLite transition recorder settings.
type HistoryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path"`
	RetentionHours int    `yaml:"retention_hours"`
}

// TelemetryConfig contains the optional InfluxDB telemetry settings.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GPIOCTRL_SECTION_KEY
// For example: GPIOCTRL_VARSERVER_HOST, GPIOCTRL_HISTORY_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults. It is also the
// configuration used when no daemon config file is supplied.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "gpioctrl",
			WatcherName: "gpiowatch",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Varserver: VarserverConfig{
			MQTT: MQTTConfig{
				Broker: MQTTBrokerConfig{
					Host:     "localhost",
					Port:     1883,
					ClientID: "gpioctrl",
				},
				QoS: 1,
				Reconnect: MQTTReconnectConfig{
					InitialDelay: 1,
					MaxDelay:     60,
					MaxAttempts:  0,
				},
			},
			RequestTimeout: 5,
			SignalBuffer:   64,
		},
		PWM: PWMConfig{
			QuantumMicros: 40,
		},
		History: HistoryConfig{
			Enabled:        false,
			Path:           "./data/gpioctrl.db",
			RetentionHours: 168,
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GPIOCTRL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Varserver broker
	if v := os.Getenv("GPIOCTRL_VARSERVER_HOST"); v != "" {
		cfg.Varserver.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GPIOCTRL_VARSERVER_USERNAME"); v != "" {
		cfg.Varserver.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GPIOCTRL_VARSERVER_PASSWORD"); v != "" {
		cfg.Varserver.MQTT.Auth.Password = v
	}

	// History
	if v := os.Getenv("GPIOCTRL_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// Telemetry
	if v := os.Getenv("GPIOCTRL_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.Name == "" {
		errs = append(errs, "service.name is required")
	}
	if c.Service.WatcherName == "" {
		errs = append(errs, "service.watcher_name is required")
	}

	if c.Varserver.MQTT.QoS < 0 || c.Varserver.MQTT.QoS > 2 {
		errs = append(errs, "varserver.mqtt.qos must be 0, 1, or 2")
	}
	if p := c.Varserver.MQTT.Broker.Port; p < 1 || p > 65535 {
		errs = append(errs, "varserver.mqtt.broker.port must be between 1 and 65535")
	}
	if c.Varserver.RequestTimeout <= 0 {
		errs = append(errs, "varserver.request_timeout must be positive")
	}

	if c.PWM.QuantumMicros <= 0 {
		errs = append(errs, "pwm.quantum_us must be positive")
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry is enabled")
		}
		if c.Telemetry.Token == "" {
			errs = append(errs, "telemetry.token is required when telemetry is enabled (set GPIOCTRL_TELEMETRY_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the varserver request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Varserver.RequestTimeout) * time.Second
}

// GetPWMQuantum returns the PWM per-unit quantum as a Duration.
func (c *Config) GetPWMQuantum() time.Duration {
	return time.Duration(c.PWM.QuantumMicros) * time.Microsecond
}

// GetHistoryRetention returns the history retention window as a Duration.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionHours) * time.Hour
}
