package cmd

import (
	"bimvault/internal/daemon"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var snap daemon.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		state := "idle"
		if snap.Running {
			state = "backing up"
		}

		fmt.Printf("daemon up %s, %s\n", snap.Uptime, state)

		if snap.NextRun != nil {
			fmt.Printf("next run: %s\n", snap.NextRun.Format("2006-01-02 15:04:05"))
		}

		if last := snap.LastRun; last != nil {
			fmt.Printf("last run: %s, %d scanned, %d created, %d errors (finished %s)\n",
				last.Status, last.Scanned, last.Created, last.Errors,
				last.FinishedAt.Format("2006-01-02 15:04:05"))
		}

		if snap.LastError != "" {
			fmt.Printf("last error: %s\n", snap.LastError)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
