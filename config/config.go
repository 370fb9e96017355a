package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ajkula/GoAccessGate/domain/model"
)

// Config holds the global gateway configuration
type Config struct {
	// General configuration
	General struct {
		// NodeID is this node's unique identifier
		NodeID string `yaml:"nodeId"`

		// DataDir is the data storage directory
		DataDir string `yaml:"dataDir"`

		// LogLevel is the logging level
		LogLevel string `yaml:"logLevel"`

		// Development enables development mode
		Development bool `yaml:"development"`
	} `yaml:"general"`

	// Access request store configuration
	Store struct {
		// BaseURL of the remote store; empty means the embedded store is used
		BaseURL string `yaml:"baseURL"`

		// RequestsPath is the collection path under BaseURL
		RequestsPath string `yaml:"requestsPath"`

		// TimeoutSeconds bounds every store call
		TimeoutSeconds int `yaml:"timeoutSeconds"`

		// Embedded serves the store API from this process
		Embedded bool `yaml:"embedded"`

		// Engine of the embedded store: memory, file or sqlite
		Engine string `yaml:"engine"`

		// Path of the file or sqlite database
		Path string `yaml:"path"`

		// MachineID overrides the hardware ID used to derive the file key
		MachineID string `yaml:"machineId"`
	} `yaml:"store"`

	// Approval polling
	Poller struct {
		// IntervalSeconds between two checks
		IntervalSeconds int `yaml:"intervalSeconds"`
	} `yaml:"poller"`

	// Where the bearer token comes from
	Credentials struct {
		// FilePath holds the raw token, re-read on every operation
		FilePath string `yaml:"filePath"`

		// Token is a fixed token used when FilePath is empty
		Token string `yaml:"token"`

		// Watch refreshes all gates when FilePath changes
		Watch bool `yaml:"watch"`
	} `yaml:"credentials"`

	// Modules and the request types watched in each
	Modules []ModuleConfig `yaml:"modules"`

	// HTTP server configuration
	HTTP struct {
		// Enabled enables the HTTP server
		Enabled bool `yaml:"enabled"`

		// Address to bind the HTTP server
		Address string `yaml:"address"`

		// Port to bind the HTTP server
		Port int `yaml:"port"`

		// TLS enables TLS
		TLS bool `yaml:"tls"`

		// CertFile is the TLS certificate path
		CertFile string `yaml:"certFile"`

		// KeyFile is the TLS private key path
		KeyFile string `yaml:"keyFile"`

		// CORS configuration
		CORS struct {
			// Enabled enables CORS
			Enabled bool `yaml:"enabled"`

			// AllowedOrigins is the list of allowed origins
			AllowedOrigins []string `yaml:"allowedOrigins"`
		} `yaml:"cors"`

		// JWT configuration
		JWT struct {
			// Secret is the signing key for tokens
			Secret string `yaml:"secret"`

			// ExpirationMinutes is the token validity duration
			ExpirationMinutes int `yaml:"expirationMinutes"`
		} `yaml:"jwt"`
	} `yaml:"http"`

	// gRPC health server configuration
	GRPC struct {
		// Enabled enables the gRPC server
		Enabled bool `yaml:"enabled"`

		// Address to bind the gRPC server
		Address string `yaml:"address"`

		// Port to bind the gRPC server
		Port int `yaml:"port"`
	} `yaml:"grpc"`

	// Grant cache used to restore views after a restart
	Cache struct {
		// Engine is none, memory or redis
		Engine string `yaml:"engine"`

		// FreshnessMinutes after which a cached grant is ignored
		FreshnessMinutes int `yaml:"freshnessMinutes"`

		Redis struct {
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Logging struct {
		Level       string `yaml:"level"` // "ERROR", "WARN", "INFO", "DEBUG"
		ChannelSize int    `yaml:"channelSize"`
		Format      string `yaml:"format"` // "json" or "text"
		Output      string `yaml:"output"` // "stdout", "stderr" or "file"
		FilePath    string `yaml:"filePath"`
	} `yaml:"logging"`
}

// ModuleConfig lists the request types a module gate watches
type ModuleConfig struct {
	Name         string   `yaml:"name"`
	RequestTypes []string `yaml:"requestTypes"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	c := &Config{}

	// General configuration
	c.General.NodeID = "node1"
	c.General.DataDir = "./data"
	c.General.LogLevel = "info"
	c.General.Development = false

	// Store configuration
	c.Store.BaseURL = ""
	c.Store.RequestsPath = "/api/access-requests"
	c.Store.TimeoutSeconds = 15
	c.Store.Embedded = true
	c.Store.Engine = "memory"
	c.Store.Path = "access_requests.db"

	c.Poller.IntervalSeconds = 60

	c.Credentials.Watch = true

	c.Modules = []ModuleConfig{
		{Name: string(model.ModuleScheduler), RequestTypes: []string{string(model.RequestTypeEdit), string(model.RequestTypeDelete)}},
		{Name: string(model.ModuleTrips), RequestTypes: []string{string(model.RequestTypeEdit), string(model.RequestTypeDelete), string(model.RequestTypeUnlockAllDates)}},
		{Name: string(model.ModuleTripDetails), RequestTypes: []string{string(model.RequestTypeEdit), string(model.RequestTypeDelete)}},
		{Name: string(model.ModuleTripExpenses), RequestTypes: []string{string(model.RequestTypeEdit), string(model.RequestTypeDelete)}},
	}

	// HTTP server configuration
	c.HTTP.Enabled = true
	c.HTTP.Address = "0.0.0.0"
	c.HTTP.Port = 8080
	c.HTTP.TLS = false
	c.HTTP.CORS.Enabled = true
	c.HTTP.CORS.AllowedOrigins = []string{"*"}
	c.HTTP.JWT.Secret = "changeme"
	c.HTTP.JWT.ExpirationMinutes = 60

	// gRPC server configuration
	c.GRPC.Enabled = false
	c.GRPC.Address = "0.0.0.0"
	c.GRPC.Port = 50051

	c.Cache.Engine = "none"
	c.Cache.FreshnessMinutes = 60
	c.Cache.Redis.Address = "localhost:6379"

	// Logging configuration defaults
	c.Logging.Level = "INFO"
	c.Logging.ChannelSize = 1000
	c.Logging.Format = "json"
	c.Logging.Output = "stdout"
	c.Logging.FilePath = ""

	return c
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// an explicit modules list replaces the defaults
	config.Modules = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Modules == nil {
		config.Modules = DefaultConfig().Modules
	}

	// Complete relative paths
	if !filepath.IsAbs(config.General.DataDir) {
		dir, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		config.General.DataDir = filepath.Join(dir, config.General.DataDir)
	}

	if !filepath.IsAbs(config.Store.Path) {
		config.Store.Path = filepath.Join(config.General.DataDir, config.Store.Path)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalSeconds) * time.Second
}

func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Store.TimeoutSeconds) * time.Second
}

func (c *Config) CacheFreshness() time.Duration {
	return time.Duration(c.Cache.FreshnessMinutes) * time.Minute
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	logLevel := strings.ToLower(config.General.LogLevel)
	if logLevel != "debug" && logLevel != "info" && logLevel != "warn" && logLevel != "error" {
		return fmt.Errorf("invalid log level: %s", config.General.LogLevel)
	}

	engine := strings.ToLower(config.Store.Engine)
	if engine != "memory" && engine != "file" && engine != "sqlite" {
		return fmt.Errorf("invalid store engine: %s", config.Store.Engine)
	}

	if config.Store.BaseURL == "" && !config.Store.Embedded {
		return fmt.Errorf("store.baseURL is required when the embedded store is disabled")
	}

	if config.Store.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid store timeout: %d", config.Store.TimeoutSeconds)
	}
	if config.Poller.IntervalSeconds <= 0 {
		return fmt.Errorf("invalid poller interval: %d", config.Poller.IntervalSeconds)
	}

	if len(config.Modules) == 0 {
		return fmt.Errorf("at least one module must be configured")
	}
	for _, m := range config.Modules {
		if m.Name == "" {
			return fmt.Errorf("module name is required")
		}
		if len(m.RequestTypes) == 0 {
			return fmt.Errorf("module %s has no request types", m.Name)
		}
	}

	switch strings.ToLower(config.Cache.Engine) {
	case "", "none", "memory":
	case "redis":
		if config.Cache.Redis.Address == "" {
			return fmt.Errorf("cache.redis.address is required for the redis cache")
		}
	default:
		return fmt.Errorf("invalid cache engine: %s", config.Cache.Engine)
	}

	// check ports
	if config.HTTP.Enabled && (config.HTTP.Port < 1 || config.HTTP.Port > 65535) {
		return fmt.Errorf("invalid HTTP port: %d", config.HTTP.Port)
	}

	if config.GRPC.Enabled && (config.GRPC.Port < 1 || config.GRPC.Port > 65535) {
		return fmt.Errorf("invalid gRPC port: %d", config.GRPC.Port)
	}

	// Check the TLS configurations
	if config.HTTP.TLS {
		if config.HTTP.CertFile == "" || config.HTTP.KeyFile == "" {
			return fmt.Errorf("TLS enabled but certificate or key file not specified")
		}
		if _, err := os.Stat(config.HTTP.CertFile); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", config.HTTP.CertFile)
		}
		if _, err := os.Stat(config.HTTP.KeyFile); os.IsNotExist(err) {
			return fmt.Errorf("key file not found: %s", config.HTTP.KeyFile)
		}
	}

	return nil
}
