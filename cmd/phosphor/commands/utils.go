package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/phosphor-rfid/phosphor/internal/config"
	"github.com/phosphor-rfid/phosphor/pkg/errors"
	"github.com/phosphor-rfid/phosphor/pkg/firmware"
	"github.com/phosphor-rfid/phosphor/pkg/gateway/ipc"
)

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(sqlitePath, firmwareDir string) error {
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	if firmwareDir != "" {
		if err := os.MkdirAll(firmwareDir, 0755); err != nil {
			return errors.Wrap(err, "failed to create firmware directory")
		}
	}

	return nil
}

// connectAgent dials the device agent per config.
func connectAgent(ctx context.Context, cfg *config.Config) (*ipc.Client, error) {
	client, err := ipc.Dial(ctx, cfg.AgentNetwork, cfg.AgentAddr)
	if err != nil {
		return nil, errors.Wrap(err, "agent connection failed")
	}
	return client, nil
}

// firmwareStore builds the image store, with the S3 fallback when enabled.
func firmwareStore(ctx context.Context, cfg *config.Config) (*firmware.Store, error) {
	var fetcher firmware.Fetcher
	if cfg.RemoteFirmware {
		f, err := firmware.NewS3Fetcher(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
		if err != nil {
			return nil, errors.Wrap(err, "S3 client failed")
		}
		fetcher = f
	}
	return firmware.NewStore(cfg.FirmwareDir, fetcher), nil
}
