package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Database path
	SQLitePath string `mapstructure:"sqlite-path"`

	// Agent socket
	AgentNetwork string `mapstructure:"agent-network"`
	AgentAddr    string `mapstructure:"agent-addr"`

	// Firmware images
	FirmwareDir    string `mapstructure:"firmware-dir"`
	RemoteFirmware bool   `mapstructure:"remote-firmware"`

	// S3 configuration for the firmware fallback
	S3Bucket string `mapstructure:"s3-bucket"`
	S3Region string `mapstructure:"s3-region"`
	S3Prefix string `mapstructure:"s3-prefix"`

	// Orchestrator timeouts
	FlashTimeout    time.Duration `mapstructure:"flash-timeout"`
	RedetectTimeout time.Duration `mapstructure:"redetect-timeout"`
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	viper.SetDefault("sqlite-path", ".artifacts/phosphor.db")
	viper.SetDefault("agent-network", "unix")
	viper.SetDefault("agent-addr", "/tmp/phosphor-agent.sock")
	viper.SetDefault("firmware-dir", ".artifacts/firmware")
	viper.SetDefault("remote-firmware", false)
	viper.SetDefault("s3-bucket", "phosphor-firmware-releases")
	viper.SetDefault("s3-region", "us-east-1")
	viper.SetDefault("s3-prefix", "proxmark3")
	viper.SetDefault("flash-timeout", 5*time.Minute)
	viper.SetDefault("redetect-timeout", 15*time.Second)

	// Environment variables (will be PHOSPHOR_SQLITE_PATH, etc.)
	viper.SetEnvPrefix("PHOSPHOR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.phosphor")

	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path cannot be empty")
	}
	if c.AgentNetwork != "unix" && c.AgentNetwork != "tcp" {
		return fmt.Errorf("agent-network must be unix or tcp, got %q", c.AgentNetwork)
	}
	if c.AgentAddr == "" {
		return fmt.Errorf("agent-addr cannot be empty")
	}
	if c.FirmwareDir == "" {
		return fmt.Errorf("firmware-dir cannot be empty")
	}
	if c.RemoteFirmware && c.S3Bucket == "" {
		return fmt.Errorf("s3-bucket cannot be empty when remote-firmware is enabled")
	}
	if c.FlashTimeout <= 0 {
		return fmt.Errorf("flash-timeout must be positive")
	}
	if c.RedetectTimeout <= 0 {
		return fmt.Errorf("redetect-timeout must be positive")
	}
	return nil
}
