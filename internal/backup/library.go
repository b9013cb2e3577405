package backup

import (
	"bimvault/internal/bimcloud"
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"bimvault/internal/poll"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Library backups cannot be requested directly: the manager only takes
// automatic backups of libraries, and it keeps a single automatic copy.
// The workflow plants a one-hour repeating schedule whose first firing
// is already almost due, waits for the copy it produces, and removes
// the schedule again.
const (
	scheduleType     = "resourceBackupSchedule"
	scheduleOffset   = 10 * time.Second
	scheduleInterval = time.Hour
)

type LibraryWorkflow struct {
	client       ManagerClient
	clk          poll.Clock
	pollInterval time.Duration
}

func NewLibraryWorkflow(client ManagerClient, clk poll.Clock, pollInterval time.Duration) *LibraryWorkflow {
	return &LibraryWorkflow{client: client, clk: clk, pollInterval: pollInterval}
}

func (w *LibraryWorkflow) Run(ctx context.Context, resource model.Resource, _ []model.Backup) (*model.Backup, model.OutcomeStatus, error) {
	action := w.clk.Now()
	timeout := CreateTimeout(resource.Size)

	if err := DeleteSchedules(ctx, w.client, resource.ID); err != nil {
		return nil, model.OutcomeFailed, err
	}

	backupType := resource.Type.BackupType()
	schedule := model.Schedule{
		ID:               backupType + resource.ID,
		Type:             scheduleType,
		TargetResourceID: resource.ID,
		BackupType:       backupType,
		Enabled:          true,
		MaxBackupCount:   1,
		RepeatInterval:   int64(scheduleInterval.Seconds()),
		StartTime:        action.Add(scheduleOffset - scheduleInterval).Unix(),
	}

	// The schedule must not outlive this visit no matter how the wait
	// ends; a leftover would keep firing every hour.
	defer func() {
		if err := DeleteSchedules(context.WithoutCancel(ctx), w.client, resource.ID); err != nil {
			logger.Log.Warn("failed to delete backup schedule",
				zap.String("resource", resource.ID),
				zap.Error(err))
		}
	}()

	logger.Log.Info("inserting temporary backup schedule", zap.String("schedule", schedule.ID))
	if err := w.client.InsertResourceBackupSchedule(ctx, schedule); err != nil {
		return nil, model.OutcomeFailed, fmt.Errorf("failed to insert backup schedule: %w", err)
	}

	criterion := bimcloud.And(
		bimcloud.Eq("$resourceId", resource.ID),
		bimcloud.Eq("$formatId", model.BackupFormatLibraryAut),
		bimcloud.Gte("$time", action.UnixMilli()),
	)

	created, ok, err := poll.Until(ctx, w.clk, w.pollInterval, timeout,
		func(ctx context.Context, elapsed, budget time.Duration) (model.Backup, bool, error) {
			backups, err := w.client.GetResourceBackups(ctx, []string{resource.ID}, criterion)
			if err != nil {
				return model.Backup{}, false, err
			}

			logger.Log.Info("awaiting scheduled backup",
				zap.Duration("runtime", elapsed.Round(time.Second)),
				zap.Duration("timeout", budget))

			if len(backups) == 0 {
				return model.Backup{}, false, nil
			}

			return backups[0], true, nil
		})
	if err != nil {
		return nil, model.OutcomeFailed, fmt.Errorf("failed to poll for scheduled backup: %w", err)
	}
	if !ok {
		logger.Log.Error("scheduled backup timed out, skipped", zap.String("resource", resource.ID))
		return nil, model.OutcomeTimedOut, nil
	}

	backups, err := w.client.GetResourceBackups(ctx, []string{resource.ID}, criterion)
	if err != nil {
		return nil, model.OutcomeFailed, fmt.Errorf("failed to verify backup: %w", err)
	}
	if len(backups) == 0 {
		return nil, model.OutcomeRejected, nil
	}

	head := backups[0]
	if head.ID != created.ID || !head.Valid() {
		return nil, model.OutcomeRejected, nil
	}

	return &head, model.OutcomeCreated, nil
}
