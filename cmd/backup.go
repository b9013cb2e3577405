package cmd

import (
	"bimvault/internal/backup"
	"bimvault/internal/bimcloud"
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"bimvault/internal/report"
	"bimvault/internal/repository"
	"bimvault/internal/storage"
	"bimvault/internal/storage/dropbox"
	"bimvault/internal/storage/gdrive"
	"bimvault/internal/transfer"
	"context"
	"fmt"

	"github.com/juju/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backupResources []string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up stale projects and libraries once",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		if err := cfg.Validate(); err != nil {
			return err
		}

		runReport, err := executeRun(cmd.Context(), model.TriggerCLI, backupResources)
		if err != nil {
			return err
		}

		fmt.Printf("done: %d scanned, %d created, %d errors\n",
			runReport.Scanned, runReport.Created, runReport.Errors)

		if runReport.Errors > 0 {
			return fmt.Errorf("backup finished with %d errors", runReport.Errors)
		}

		return nil
	},
}

// executeRun performs one full backup pass: open a manager session, run the
// orchestrator over the requested resources, persist the outcome and submit
// the run report. Report and history failures are logged, never returned;
// the backups themselves already happened.
func executeRun(ctx context.Context, trigger string, resources []string) (*model.RunReport, error) {
	client, err := bimcloud.New(ctx, cfg.ManagerURL, cfg.ClientID, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize against the manager: %w", err)
	}

	defer func() {
		if err := client.CloseSession(context.WithoutCancel(ctx)); err != nil {
			logger.Log.Debug("failed to close manager session", zap.Error(err))
		}
	}()

	store, err := newStore(ctx)
	if err != nil {
		return nil, err
	}

	orch := backup.NewOrchestrator(client,
		transfer.New(client, store, clock.WallClock),
		clock.WallClock, cfg.SchedulesEnabled, cfg.PollInterval)

	runReport, err := orch.Run(ctx, resources)
	if err != nil {
		return nil, err
	}

	if err := repository.NewRunRepository().Save(*runReport, trigger); err != nil {
		logger.Log.Warn("failed to save run history", zap.Error(err))
	}

	if cfg.ReportEnabled() {
		sink := report.NewSink(cfg.NotionSecret, cfg.NotionDatabase, cfg.NotionDaemon, Version)
		if err := sink.Submit(ctx, runReport); err != nil {
			logger.Log.Warn("failed to submit run report", zap.Error(err))
		}
	}

	return runReport, nil
}

func newStore(ctx context.Context) (storage.Store, error) {
	switch cfg.Storage {
	case "gdrive":
		return gdrive.New(ctx, cfg.FolderID)
	case "dropbox":
		return dropbox.New(cfg.FolderPath)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage)
	}
}

func init() {
	backupCmd.Flags().StringSliceVarP(&backupResources, "resource", "r", nil,
		"back up only the given resource ids")
	rootCmd.AddCommand(backupCmd)
}
