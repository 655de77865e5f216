// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Book sources.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

var (
	currentConfig *Config
	configMutex   sync.RWMutex
)

// Config holds the application settings.
type Config struct {
	Port       string `yaml:"port" validate:"required,numeric"`
	ServiceURL string `yaml:"service_url" validate:"required,url"`
	RunnerURL  string `yaml:"runner_url" validate:"required,url"`
	BookSource string `yaml:"book_source" validate:"required,oneof=remote local"`
	DataDir    string `yaml:"data_dir" validate:"required"`
	LogDir     string `yaml:"log_dir"`
	DebugMode  bool   `yaml:"debug_mode"`

	// SaveIncludesValues sends variable bindings with saved entries. The
	// book service recomputes them when they are left out.
	SaveIncludesValues bool          `yaml:"save_includes_values"`
	RequestTimeout     time.Duration `yaml:"request_timeout" validate:"gt=0"`
}

// Load reads .env, the environment and the optional YAML file named by
// CONFIG_FILE, in that order of precedence from lowest to highest.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	timeout, err := getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8077"),
		ServiceURL:         getEnv("SERVICE_URL", "http://localhost:8077"),
		RunnerURL:          getEnv("RUNNER_URL", "ws://localhost:8077/ws/run"),
		BookSource:         getEnv("BOOK_SOURCE", SourceRemote),
		DataDir:            getEnv("DATA_DIR", "data"),
		LogDir:             getEnv("LOG_DIR", "logs"),
		DebugMode:          getEnvBool("DEBUG_MODE", false),
		SaveIncludesValues: getEnvBool("SAVE_INCLUDES_VALUES", false),
		RequestTimeout:     timeout,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := overlay(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay decodes YAML on top of cfg. Unknown keys are rejected.
func overlay(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode configuration data: %w", err)
	}
	return nil
}

// Validate checks the configuration values.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// InitConfig loads the configuration and makes it current.
func InitConfig() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	SetCurrentConfig(cfg)
	return cfg, nil
}

// SetCurrentConfig replaces the current configuration.
func SetCurrentConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = cfg
}

// GetCurrentConfig returns a copy of the current configuration, or nil
// before InitConfig.
func GetCurrentConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		return nil
	}
	configCopy := *currentConfig
	return &configCopy
}
