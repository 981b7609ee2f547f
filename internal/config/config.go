package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"codenow/internal/models"
)

const (
	defaultPort           = "4000"
	defaultMaxEditors     = 2
	defaultPythonCode     = "# Start typing Python code..."
	defaultJavaScriptCode = "// Start typing JavaScript code..."
	defaultCursorColor    = "#FFFFFF"
	defaultCursorTimeout  = 3 * time.Second
	defaultMaxBufferBytes = 1 << 20
	defaultPresenceChan   = "codenow:presence"
	defaultOccupancyCron  = "@every 1m"
)

// app config, read once at startup
type Config struct {
	Port              string
	MaxEditors        int
	CORSOrigins       []string
	PythonCode        string
	JavaScriptCode    string
	DefaultLanguage   models.Language
	CursorColor       string
	CursorTimeout     time.Duration
	MaxBufferBytes    int
	PromoteViewers    bool
	RedisAddr         string
	PresenceChannel   string
	OccupancySchedule string
}

// seed file layout; every key is optional
type seedFile struct {
	Python     *string `yaml:"python"`
	JavaScript *string `yaml:"javascript"`
	Language   string  `yaml:"language"`
}

// loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:              getEnvOrDefault("PORT", defaultPort),
		CORSOrigins:       splitOrigins(getEnvOrDefault("CORS_ORIGIN", "*")),
		PythonCode:        defaultPythonCode,
		JavaScriptCode:    defaultJavaScriptCode,
		DefaultLanguage:   models.LangJavaScript,
		CursorColor:       getEnvOrDefault("CURSOR_COLOR", defaultCursorColor),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		PresenceChannel:   getEnvOrDefault("PRESENCE_CHANNEL", defaultPresenceChan),
		OccupancySchedule: defaultOccupancyCron,
	}

	var err error
	if cfg.MaxEditors, err = getEnvInt("MAX_EDITORS", defaultMaxEditors); err != nil {
		return nil, err
	}
	if cfg.MaxBufferBytes, err = getEnvInt("MAX_BUFFER_BYTES", defaultMaxBufferBytes); err != nil {
		return nil, err
	}
	if cfg.CursorTimeout, err = getEnvDuration("CURSOR_TIMEOUT", defaultCursorTimeout); err != nil {
		return nil, err
	}
	if cfg.PromoteViewers, err = getEnvBool("PROMOTE_VIEWERS", false); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv("OCCUPANCY_SCHEDULE"); ok {
		cfg.OccupancySchedule = strings.TrimSpace(v)
	}

	if path := os.Getenv("SEED_FILE"); path != "" {
		if err := cfg.applySeedFile(path); err != nil {
			return nil, err
		}
	}

	// env overrides the seed file
	if v := os.Getenv("DEFAULT_PYTHON_CODE"); v != "" {
		cfg.PythonCode = v
	}
	if v := os.Getenv("DEFAULT_JAVASCRIPT_CODE"); v != "" {
		cfg.JavaScriptCode = v
	}
	if v := os.Getenv("DEFAULT_LANGUAGE"); v != "" {
		cfg.DefaultLanguage = models.Language(v)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + c.Port }

// AllowsAnyOrigin reports whether CORS is left open.
func (c *Config) AllowsAnyOrigin() bool {
	for _, o := range c.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (c *Config) applySeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	if seed.Python != nil {
		c.PythonCode = *seed.Python
	}
	if seed.JavaScript != nil {
		c.JavaScriptCode = *seed.JavaScript
	}
	if seed.Language != "" {
		c.DefaultLanguage = models.Language(seed.Language)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.MaxEditors < 0 {
		return fmt.Errorf("MAX_EDITORS must not be negative, got %d", cfg.MaxEditors)
	}
	if cfg.MaxBufferBytes <= 0 {
		return fmt.Errorf("MAX_BUFFER_BYTES must be positive, got %d", cfg.MaxBufferBytes)
	}
	if cfg.CursorTimeout <= 0 {
		return errors.New("CURSOR_TIMEOUT must be positive")
	}
	if !cfg.DefaultLanguage.Valid() {
		return errors.New("unsupported default language: " + string(cfg.DefaultLanguage) + ". Currently supported: python, javascript")
	}
	if len(cfg.CORSOrigins) == 0 {
		return errors.New("CORS_ORIGIN must name at least one origin")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return i, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func splitOrigins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
