package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the client release, overridable at build time with
// -ldflags "-X .../commands.Version=...".
var Version = "0.4.2"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("phosphor %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
