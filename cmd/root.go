package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/krishangoyal12/Video-Chat-Application/internal/config"
	"github.com/krishangoyal12/Video-Chat-Application/internal/ui"
	"github.com/krishangoyal12/Video-Chat-Application/internal/version"
)

var (
	v   = config.New()
	cfg *config.Config

	flagConfigDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "videochat",
	Short: "Mesh video calls over WebRTC with a small signaling server",
	Long: `videochat runs the signaling server for mesh video calls and joins calls
from the terminal. Every participant keeps a direct media session with every
other participant; the server only relays negotiation messages.`,
	Version:           version.Version,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigDir, "config-dir", ".", "Directory searched for videochat.{yaml,toml,json}")
	flags.String("log-level", "", "debug, info, warn, error (defaults to LOG_LEVEL)")
	flags.String("log-file", "", "Write logs to this file")

	bindFlag(rootCmd, "log.level", "log-level")
	bindFlag(rootCmd, "log.file", "log-file")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}
	loaded, err := config.Load(v, flagConfigDir)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
