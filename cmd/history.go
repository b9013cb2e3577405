package cmd

import (
	"bimvault/internal/repository"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyN int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent backup runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := repository.NewRunRepository()

		runs, err := repo.GetRecent(historyN)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("no runs recorded yet")
			return nil
		}

		fmt.Printf("%-7s %-8s %-8s %-8s %-7s %-10s %s\n",
			"STATUS", "TRIGGER", "SCANNED", "CREATED", "ERRORS", "RUNTIME", "FINISHED")

		for _, r := range runs {
			runtime := r.FinishedAt.Sub(r.StartedAt).Round(time.Second)
			fmt.Printf("%-7s %-8s %-8d %-8d %-7d %-10s %s\n",
				r.Status, r.Trigger, r.Scanned, r.Created, r.Errors,
				runtime, humanize.Time(r.FinishedAt))
		}

		stats, err := repo.GetStats()
		if err != nil {
			return err
		}

		fmt.Printf("\n%d runs total, %d clean, %d with errors, %d backups created\n",
			stats.Total, stats.Done, stats.Failed, stats.Created)

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
