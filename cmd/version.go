package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/krishangoyal12/Video-Chat-Application/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// Printing the version needs no configuration.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("videochat %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
