package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.SQLitePath == "" {
		t.Error("sqlite-path default missing")
	}
	if cfg.AgentNetwork != "unix" {
		t.Errorf("expected unix agent network, got %s", cfg.AgentNetwork)
	}
	if cfg.FlashTimeout != 5*time.Minute {
		t.Errorf("unexpected flash timeout: %s", cfg.FlashTimeout)
	}
	if cfg.RedetectTimeout != 15*time.Second {
		t.Errorf("unexpected redetect timeout: %s", cfg.RedetectTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			SQLitePath:      ".artifacts/phosphor.db",
			AgentNetwork:    "unix",
			AgentAddr:       "/tmp/phosphor-agent.sock",
			FirmwareDir:     ".artifacts/firmware",
			S3Bucket:        "bucket",
			FlashTimeout:    time.Minute,
			RedetectTimeout: time.Second,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty_sqlite_path", func(c *Config) { c.SQLitePath = "" }},
		{"bad_network", func(c *Config) { c.AgentNetwork = "udp" }},
		{"empty_addr", func(c *Config) { c.AgentAddr = "" }},
		{"empty_firmware_dir", func(c *Config) { c.FirmwareDir = "" }},
		{"remote_without_bucket", func(c *Config) { c.RemoteFirmware = true; c.S3Bucket = "" }},
		{"zero_flash_timeout", func(c *Config) { c.FlashTimeout = 0 }},
		{"negative_redetect_timeout", func(c *Config) { c.RedetectTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Errorf("base config must validate: %v", err)
	}
}
