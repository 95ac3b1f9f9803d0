package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the client needs to start.
type Config struct {
	APIURL    string        `mapstructure:"api_url"`
	DataDir   string        `mapstructure:"data_dir"`
	LogFile   string        `mapstructure:"log_file"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
	Theme     string        `mapstructure:"theme"`
	StubAddr  string        `mapstructure:"stub_addr"`
}

const fileName = "config.yaml"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:    "http://localhost:5000/api",
		DataDir:   defaultDataDir(),
		Timeout:   30 * time.Second,
		RateLimit: 10,
		RateBurst: 5,
		Theme:     "classic",
		StubAddr:  ":5000",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".concierge"
	}
	return filepath.Join(home, ".concierge")
}

// Load resolves configuration: defaults, then <data dir>/config.yaml, then
// .env and CONCIERGE_* environment variables. dataDir overrides where the
// config file is looked up when non-empty. The result is not validated;
// callers apply their own overrides and then call Validate.
func Load(dataDir string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if env := os.Getenv("CONCIERGE_DATA_DIR"); env != "" {
		cfg.DataDir = env
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	if err := loadFile(filepath.Join(cfg.DataDir, fileName), cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config file: %w", err)
	}
	applyEnv(cfg)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(cfg)
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CONCIERGE_API_URL")); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CONCIERGE_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("CONCIERGE_LOG_FILE")); v != "" {
		cfg.LogFile = v
	}
	if v := strings.TrimSpace(os.Getenv("CONCIERGE_THEME")); v != "" {
		cfg.Theme = v
	}
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", c.APIURL)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// Path returns where Load looks for the config file.
func (c *Config) Path() string {
	return filepath.Join(c.DataDir, fileName)
}
