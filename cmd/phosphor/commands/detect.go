package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/phosphor-rfid/phosphor/internal/config"
	"github.com/phosphor-rfid/phosphor/pkg/errors"
	"github.com/phosphor-rfid/phosphor/pkg/gateway"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the connected reader and report its firmware",
	RunE:  runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := connectAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	out, err := client.DetectDevice(ctx)
	if err != nil {
		return errors.Wrap(err, "detection failed")
	}
	if out.Step == gateway.StepError {
		return fmt.Errorf("%s", out.Err.UserMessage)
	}
	if out.Step != gateway.StepDeviceConnected {
		return fmt.Errorf("no reader found")
	}

	fmt.Printf("Model:    %s\n", out.Device.Model)
	fmt.Printf("Port:     %s\n", out.Device.Port)
	fmt.Printf("Firmware: %s\n", out.Device.Firmware)

	check, err := client.CheckFirmwareVersion(ctx, out.Device.Port)
	if err != nil {
		fmt.Println("Firmware check unavailable")
		return nil
	}
	if check.Matched {
		fmt.Println("Firmware matches the client")
	} else {
		fmt.Printf("Firmware mismatch: client %s, device %s (variant %s)\n",
			check.ClientVersion, check.DeviceVersion, check.HardwareVariant)
	}
	return nil
}
