package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "phosphor",
	Short: "Phosphor - Proxmark3 clone wizard",
	Long:  `Drives the Proxmark3 agent through the guided clone workflow: device detection, firmware reconciliation, credential capture, blank compatibility checks, write, and verification.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("sqlite-path", ".artifacts/phosphor.db", "SQLite database path")
	rootCmd.PersistentFlags().String("agent-network", "unix", "Agent socket network (unix or tcp)")
	rootCmd.PersistentFlags().String("agent-addr", "/tmp/phosphor-agent.sock", "Agent socket address")
	rootCmd.PersistentFlags().String("firmware-dir", ".artifacts/firmware", "Bundled firmware image directory")
	rootCmd.PersistentFlags().Bool("remote-firmware", false, "Fetch missing firmware images from S3")
	rootCmd.PersistentFlags().String("s3-bucket", "phosphor-firmware-releases", "S3 bucket for firmware images")
	rootCmd.PersistentFlags().String("s3-region", "us-east-1", "S3 region")

	viper.BindPFlag("sqlite-path", rootCmd.PersistentFlags().Lookup("sqlite-path"))
	viper.BindPFlag("agent-network", rootCmd.PersistentFlags().Lookup("agent-network"))
	viper.BindPFlag("agent-addr", rootCmd.PersistentFlags().Lookup("agent-addr"))
	viper.BindPFlag("firmware-dir", rootCmd.PersistentFlags().Lookup("firmware-dir"))
	viper.BindPFlag("remote-firmware", rootCmd.PersistentFlags().Lookup("remote-firmware"))
	viper.BindPFlag("s3-bucket", rootCmd.PersistentFlags().Lookup("s3-bucket"))
	viper.BindPFlag("s3-region", rootCmd.PersistentFlags().Lookup("s3-region"))
}
