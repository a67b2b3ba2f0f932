package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Drive   DriveConfig   `mapstructure:"drive"`
	Sync    SyncConfig    `mapstructure:"sync"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DriveConfig holds cloud drive endpoints and OAuth client settings.
type DriveConfig struct {
	BaseURL    string `mapstructure:"base_url"`    // Graph drive root
	AuthURL    string `mapstructure:"auth_url"`    // OAuth2 endpoint base
	ClientID   string `mapstructure:"client_id"`   // Public OAuth client ID
	Scope      string `mapstructure:"scope"`       // Requested token scope
	ConfigFile string `mapstructure:"config_file"` // Remote slideshow config name
}

// SyncConfig holds sync engine cadence and cache settings.
type SyncConfig struct {
	Refresh     time.Duration `mapstructure:"refresh"`      // Remote re-enumeration cadence
	ErrorRetry  time.Duration `mapstructure:"error_retry"`  // Wait after a failed cycle
	Concurrency int           `mapstructure:"concurrency"`  // Parallel downloads
	CacheDir    string        `mapstructure:"cache_dir"`    // Local image cache
	CacheMaxMB  int64         `mapstructure:"cache_max_mb"` // Cache size budget
}

// UIConfig holds presentation settings.
type UIConfig struct {
	ShowCaptions bool `mapstructure:"show_captions"` // Overlay file names on slides
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Drive: DriveConfig{
			BaseURL:    "https://graph.microsoft.com/v1.0/me/drive",
			AuthURL:    "https://login.microsoftonline.com/consumers/oauth2/v2.0",
			ClientID:   "8f2b0f5e-6c3a-4b86-9f38-7ad21e4674d1",
			Scope:      "offline_access files.read",
			ConfigFile: "slideshow.json",
		},
		Sync: SyncConfig{
			Refresh:     time.Hour,
			ErrorRetry:  5 * time.Second,
			Concurrency: 3,
			CacheDir:    defaultCachePath(),
			CacheMaxMB:  512,
		},
		UI: UIConfig{
			ShowCaptions: false,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS.
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "driveshow", "driveshow.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "driveshow", "driveshow.log")
	}
}

// defaultCachePath returns the default image cache directory for the current OS.
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "driveshow", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "driveshow", "cache")
	}
}

// DefaultConfigPath returns the default config directory for the current OS.
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "driveshow")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "driveshow")
	}
}

// LoadConfig loads configuration from file and environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(DefaultConfigPath())
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("DRIVESHOW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// First run: write the defaults out as an editable template
		if err := SaveConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to the default location.
func SaveConfig(cfg *Config) error {
	configPath := DefaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to keep snake_case key names
	viper.Set("drive.base_url", cfg.Drive.BaseURL)
	viper.Set("drive.auth_url", cfg.Drive.AuthURL)
	viper.Set("drive.client_id", cfg.Drive.ClientID)
	viper.Set("drive.scope", cfg.Drive.Scope)
	viper.Set("drive.config_file", cfg.Drive.ConfigFile)

	viper.Set("sync.refresh", cfg.Sync.Refresh)
	viper.Set("sync.error_retry", cfg.Sync.ErrorRetry)
	viper.Set("sync.concurrency", cfg.Sync.Concurrency)
	viper.Set("sync.cache_dir", cfg.Sync.CacheDir)
	viper.Set("sync.cache_max_mb", cfg.Sync.CacheMaxMB)

	viper.Set("ui.show_captions", cfg.UI.ShowCaptions)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CacheBudget returns the cache size budget in bytes.
func (c *Config) CacheBudget() int64 {
	if c.Sync.CacheMaxMB <= 0 {
		return 512 << 20
	}
	return c.Sync.CacheMaxMB << 20
}
