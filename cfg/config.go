package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// HTTPConfiguration controls the REST/SSE listener
type HTTPConfiguration struct {
	BindAddress string `toml:"bind_address"`
	Port        int    `toml:"port"`
}

// NotifyConfiguration controls the change-notification pipeline
type NotifyConfiguration struct {
	PollIntervalMS      int `toml:"poll_interval_ms"`      // Detector poll interval
	KeepAliveIntervalMS int `toml:"keepalive_interval_ms"` // SSE keep-alive interval
	QueueSize           int `toml:"queue_size"`            // Per-subscriber event buffer
}

// AuthConfiguration controls PSK authentication for the API
type AuthConfiguration struct {
	APISecret string `toml:"api_secret"` // Empty disables authentication
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled bool `toml:"enabled"`
}

// SinkConfiguration describes one external change-event sink
type SinkConfiguration struct {
	Name            string   `toml:"name"`
	Type            string   `toml:"type"`   // "nats", "kafka" or "mock"
	Format          string   `toml:"format"` // "json" or "msgpack"
	TopicPrefix     string   `toml:"topic_prefix"`
	NatsURL         string   `toml:"nats_url"`
	Brokers         []string `toml:"brokers"`
	FilterScopes    []string `toml:"filter_scopes"` // Glob patterns on event scope
	FilterKinds     []string `toml:"filter_kinds"`  // Glob patterns on event kind
	RetryInitialMS  int      `toml:"retry_initial_ms"`
	RetryMaxMS      int      `toml:"retry_max_ms"`
	RetryMultiplier float64  `toml:"retry_multiplier"`
}

// Configuration is the main configuration structure
type Configuration struct {
	InstanceID uint64 `toml:"instance_id"`
	DataDir    string `toml:"data_dir"`

	HTTP       HTTPConfiguration       `toml:"http"`
	Notify     NotifyConfiguration     `toml:"notify"`
	Auth       AuthConfiguration       `toml:"auth"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
	Sinks      []SinkConfiguration     `toml:"sink"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	DataDirFlag    = flag.String("data-dir", "", "Data directory (overrides config)")
	HTTPPortFlag   = flag.Int("http-port", 0, "HTTP port (overrides config)")
)

// Default configuration
var Config = &Configuration{
	InstanceID: 0, // Auto-generate
	DataDir:    "./labframe-data",

	HTTP: HTTPConfiguration{
		BindAddress: "0.0.0.0",
		Port:        8080,
	},

	Notify: NotifyConfiguration{
		PollIntervalMS:      3000,
		KeepAliveIntervalMS: 15000,
		QueueSize:           16,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled: true,
	},
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	// Load from file if it exists
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	// Apply CLI overrides
	if *DataDirFlag != "" {
		Config.DataDir = *DataDirFlag
	}
	if *HTTPPortFlag != 0 {
		Config.HTTP.Port = *HTTPPortFlag
	}

	// Auto-generate instance ID if not set
	if Config.InstanceID == 0 {
		var err error
		Config.InstanceID, err = generateInstanceID()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}
		log.Info().Uint64("instance_id", Config.InstanceID).Msg("Auto-generated instance ID")
	}

	// Ensure data directory exists
	if err := os.MkdirAll(Config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	return nil
}

// generateInstanceID creates a stable instance ID based on machine ID
func generateInstanceID() (uint64, error) {
	id, err := machineid.ProtectedID("labframe")
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64(), nil
}

// Validate checks configuration for errors. Interval and bound violations
// are fatal: the process must not start accepting subscribers with a
// broken notification pipeline.
func Validate() error {
	if Config.HTTP.Port < 1 || Config.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", Config.HTTP.Port)
	}

	if Config.Notify.PollIntervalMS < 1 {
		return fmt.Errorf("notify poll interval must be >= 1ms")
	}

	if Config.Notify.KeepAliveIntervalMS < 1 {
		return fmt.Errorf("notify keep-alive interval must be >= 1ms")
	}

	if Config.Notify.QueueSize < 1 {
		return fmt.Errorf("notify queue size must be >= 1")
	}

	if Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s", Config.Logging.Format)
	}

	validSinkTypes := map[string]bool{"nats": true, "kafka": true, "mock": true}
	validFormats := map[string]bool{"json": true, "msgpack": true}

	for _, sink := range Config.Sinks {
		if sink.Name == "" {
			return fmt.Errorf("sink name is required")
		}
		if !validSinkTypes[sink.Type] {
			return fmt.Errorf("invalid sink type for %q: %s", sink.Name, sink.Type)
		}
		if sink.Format != "" && !validFormats[sink.Format] {
			return fmt.Errorf("invalid sink format for %q: %s", sink.Name, sink.Format)
		}
		if sink.Type == "nats" && sink.NatsURL == "" {
			return fmt.Errorf("sink %q requires nats_url", sink.Name)
		}
		if sink.Type == "kafka" && len(sink.Brokers) == 0 {
			return fmt.Errorf("sink %q requires at least one broker", sink.Name)
		}
	}

	return nil
}

// PollInterval returns the detector poll interval as a duration
func PollInterval() time.Duration {
	return time.Duration(Config.Notify.PollIntervalMS) * time.Millisecond
}

// KeepAliveInterval returns the SSE keep-alive interval as a duration
func KeepAliveInterval() time.Duration {
	return time.Duration(Config.Notify.KeepAliveIntervalMS) * time.Millisecond
}

// IsAuthEnabled returns true when a PSK is configured for the API
func IsAuthEnabled() bool {
	return Config.Auth.APISecret != ""
}

// GetAPISecret returns the configured PSK
func GetAPISecret() string {
	return Config.Auth.APISecret
}
