package backup

import (
	"bimvault/internal/bimcloud"
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"bimvault/internal/poll"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ProjectWorkflow backs up project resources through the manager's
// synchronous backup job.
type ProjectWorkflow struct {
	client       ManagerClient
	clk          poll.Clock
	pollInterval time.Duration
}

func NewProjectWorkflow(client ManagerClient, clk poll.Clock, pollInterval time.Duration) *ProjectWorkflow {
	return &ProjectWorkflow{client: client, clk: clk, pollInterval: pollInterval}
}

func (w *ProjectWorkflow) Run(ctx context.Context, resource model.Resource, existing []model.Backup) (*model.Backup, model.OutcomeStatus, error) {
	start := w.clk.Now()
	timeout := CreateTimeout(resource.Size)

	// Obsolete copies go before the new one is requested. If creation
	// then fails the resource stays uncovered until the next run; the
	// alternative leaves stale copies eating the server's backup slots.
	for _, b := range existing {
		if b.Time <= resource.Modified {
			if err := w.client.DeleteResourceBackup(ctx, resource.ID, b.ID); err != nil {
				return nil, model.OutcomeFailed, fmt.Errorf("failed to delete obsolete backup %s: %w", b.ID, err)
			}
			logger.Log.Info("deleted obsolete backup", zap.String("backup", b.ID))
		}
	}

	logger.Log.Info("creating a new backup", zap.String("resource", resource.ID))
	job, err := w.client.CreateResourceBackup(ctx, resource.ID, resource.Type.BackupType(), backupLabel)
	if err != nil {
		return nil, model.OutcomeFailed, fmt.Errorf("failed to create backup: %w", err)
	}
	if job.ID == "" {
		return nil, model.OutcomeFailed, errors.New("manager did not return a backup job")
	}

	criterion := bimcloud.And(
		bimcloud.Eq("jobType", model.JobTypeCreateProjectBackup),
		bimcloud.Eq("id", job.ID),
	)

	finished, ok, err := poll.Until(ctx, w.clk, w.pollInterval, timeout,
		func(ctx context.Context, elapsed, budget time.Duration) (model.Job, bool, error) {
			jobs, err := w.client.GetJobs(ctx, criterion)
			if err != nil {
				return model.Job{}, false, err
			}
			if len(jobs) == 0 {
				return model.Job{}, false, nil
			}

			head := jobs[0]
			logger.Log.Info("backup job running",
				zap.String("status", head.Status),
				zap.Int64("current", head.Progress.Current),
				zap.Int64("max", head.Progress.Max),
				zap.Duration("runtime", elapsed.Round(time.Second)),
				zap.Duration("timeout", budget))

			return head, head.Terminal(), nil
		})
	if err != nil {
		return nil, model.OutcomeFailed, fmt.Errorf("failed to poll backup job: %w", err)
	}
	if !ok {
		logger.Log.Error("backup job timed out, skipped", zap.String("resource", resource.ID))
		return nil, model.OutcomeTimedOut, nil
	}
	if finished.Status != model.JobStatusCompleted {
		logger.Log.Warn("backup job did not complete", zap.String("status", finished.Status))
		return nil, model.OutcomeRejected, nil
	}

	projectID := finished.Property("projectId")
	if projectID == "" {
		return nil, model.OutcomeRejected, nil
	}

	backups, err := w.client.GetResourceBackups(ctx, []string{projectID}, bimcloud.And(
		bimcloud.Eq("$resourceId", projectID),
		bimcloud.Gte("$time", start.UnixMilli()),
	))
	if err != nil {
		return nil, model.OutcomeFailed, fmt.Errorf("failed to verify backup: %w", err)
	}
	if len(backups) == 0 || !backups[0].Valid() {
		return nil, model.OutcomeRejected, nil
	}

	return &backups[0], model.OutcomeCreated, nil
}
