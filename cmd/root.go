package cmd

import (
	"fmt"
	"os"

	"duet-backup/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configDir  string
	configFile string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "duet-backup",
	Short: "Back up a Duet printer's SD card to a remote repository",
	Long: `duet-backup mirrors the configuration, macros and jobs of a Duet 3D printer
(or a local directory) into a branch of a GitHub repository or an S3 bucket.
Only changed files are written and files removed from the printer are removed
from the branch unless protected.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Use the application's standard logger for error reporting
		// We default to console format to match user expectations (CLI tool)
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Absolute fallback if logger creation fails (rare)
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "dir", ".", "directory holding .env and duet-backup.yaml")
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "explicit config file (yaml, toml or json)")
}
