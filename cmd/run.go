package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger a backup pass on the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(daemonURL("/run"), "application/json", nil)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode == http.StatusConflict {
			fmt.Println("a run is already queued")
			return nil
		}

		if resp.StatusCode != http.StatusAccepted {
			var result map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&result)
			return fmt.Errorf("daemon refused the run: %s", result["error"])
		}

		fmt.Println("run queued, watch 'bimvault status' for progress")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
