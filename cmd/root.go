package cmd

import (
	"bimvault/internal/config"
	"bimvault/internal/db"
	"bimvault/internal/logger"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped by the release workflow and lands in the run report.
var Version = "0.3.0"

var (
	cfg   *config.Config
	debug bool
)

var rootCmd = &cobra.Command{
	Use:     "bimvault",
	Short:   "Automated BIMcloud backup agent",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		logger.Init(debug, cfg.LogFile)

		// Commands that only talk to a running daemon or to the cloud
		// providers never touch the run database.
		clientCmds := map[string]bool{
			"status": true, "stop": true, "run": true,
			"auth": true, "gdrive": true, "dropbox": true, "bimcloud": true,
			"install": true, "uninstall": true,
		}
		if !clientCmds[cmd.Name()] {
			if err := db.Init(cfg.DBPath); err != nil {
				return err
			}
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func daemonURL(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", cfg.DaemonPort, path)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}
