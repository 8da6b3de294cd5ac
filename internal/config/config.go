package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kunchev/go-linux-installer/internal/catalog"
	"github.com/kunchev/go-linux-installer/pkg/logger"
)

const (
	defaultCatalogTimeout  = 30 * time.Second
	defaultDownloadTimeout = 5 * time.Minute
)

// Config holds all application configuration
type Config struct {
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Download DownloadConfig `mapstructure:"download"`
	Install  InstallConfig  `mapstructure:"install"`
	Profile  ProfileConfig  `mapstructure:"profile"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CatalogConfig holds release catalog configuration
type CatalogConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Source  string `mapstructure:"source"` // auto, remote or static
	File    string `mapstructure:"file"`   // optional catalog file overriding the embedded table
	Timeout string `mapstructure:"timeout"`
}

// DownloadConfig holds archive download configuration
type DownloadConfig struct {
	Dir     string `mapstructure:"dir"`
	Timeout string `mapstructure:"timeout"`
	Retries int    `mapstructure:"retries"`
}

// InstallConfig holds toolchain installation configuration
type InstallConfig struct {
	Dir string `mapstructure:"dir"`
}

// ProfileConfig holds shell profile configuration
type ProfileConfig struct {
	File      string `mapstructure:"file"` // empty means detect from $HOME
	GoPath    string `mapstructure:"gopath"`
	Workspace bool   `mapstructure:"workspace"` // create $GOPATH/{src,pkg,bin}
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// RequestTimeout returns the catalog HTTP timeout.
func (c CatalogConfig) RequestTimeout() time.Duration {
	return parseTimeout(c.Timeout, defaultCatalogTimeout)
}

// RequestTimeout returns the download HTTP timeout.
func (c DownloadConfig) RequestTimeout() time.Duration {
	return parseTimeout(c.Timeout, defaultDownloadTimeout)
}

func parseTimeout(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	home := homeDir()

	// Default values
	v.SetDefault("catalog.base_url", catalog.DefaultBaseURL)
	v.SetDefault("catalog.source", "auto")
	v.SetDefault("catalog.file", "")
	v.SetDefault("catalog.timeout", "30s")

	v.SetDefault("download.dir", filepath.Join(home, ".go-linux-installer", "downloads"))
	v.SetDefault("download.timeout", "5m")
	v.SetDefault("download.retries", 1)

	v.SetDefault("install.dir", filepath.Join(home, "sdk", "go"))

	v.SetDefault("profile.file", "")
	v.SetDefault("profile.gopath", filepath.Join(home, "go"))
	v.SetDefault("profile.workspace", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	// Configuration file name and path
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".go-linux-installer"))
	}

	// Read environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("GOINSTALLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read configuration file
	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Bind configuration to struct
	var config Config
	err = v.Unmarshal(&config)
	if err != nil {
		return nil, err
	}

	// Initialize logger
	err = initLogger(&config.Logging)
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// initLogger initializes the logger with the provided configuration
func initLogger(cfg *LoggingConfig) error {
	logConfig := logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		Module: "main",
		File:   cfg.File,
	}

	return logger.Init(logConfig)
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	home := homeDir()
	return &Config{
		Catalog: CatalogConfig{
			BaseURL: catalog.DefaultBaseURL,
			Source:  "auto",
			Timeout: "30s",
		},
		Download: DownloadConfig{
			Dir:     filepath.Join(home, ".go-linux-installer", "downloads"),
			Timeout: "5m",
			Retries: 1,
		},
		Install: InstallConfig{
			Dir: filepath.Join(home, "sdk", "go"),
		},
		Profile: ProfileConfig{
			GoPath:    filepath.Join(home, "go"),
			Workspace: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}
