package backup

import (
	"bimvault/internal/bimcloud"
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"context"
	"fmt"

	"go.uber.org/zap"
)

const backupLabel = "Scripted Backup"

// ManagerClient is the slice of the bimcloud client the backup engine
// uses. Tests substitute a scripted fake.
type ManagerClient interface {
	GetResources(ctx context.Context, criterion bimcloud.Criterion) ([]model.Resource, error)
	GetResourcesByID(ctx context.Context, ids []string) ([]model.Resource, error)
	GetResourceBackups(ctx context.Context, ids []string, criterion bimcloud.Criterion) ([]model.Backup, error)
	CreateResourceBackup(ctx context.Context, resourceID, backupType, backupName string) (model.Job, error)
	DeleteResourceBackup(ctx context.Context, resourceID, backupID string) error
	GetJobs(ctx context.Context, criterion bimcloud.Criterion) ([]model.Job, error)
	InsertResourceBackupSchedule(ctx context.Context, schedule model.Schedule) error
	GetResourceBackupSchedules(ctx context.Context, criterion bimcloud.Criterion) ([]model.Schedule, error)
	DeleteResourceBackupSchedule(ctx context.Context, scheduleID string) error
}

// Workflow produces one validated backup for a resource. existing holds
// the resource's current backups, newest first, as fetched for the
// staleness gate. The returned backup is non-nil only for OutcomeCreated.
type Workflow interface {
	Run(ctx context.Context, resource model.Resource, existing []model.Backup) (*model.Backup, model.OutcomeStatus, error)
}

// DeleteSchedules removes every backup schedule targeting the resource.
func DeleteSchedules(ctx context.Context, client ManagerClient, resourceID string) error {
	schedules, err := client.GetResourceBackupSchedules(ctx, bimcloud.Eq("targetResourceId", resourceID))
	if err != nil {
		return fmt.Errorf("failed to list backup schedules: %w", err)
	}

	for _, s := range schedules {
		if err := client.DeleteResourceBackupSchedule(ctx, s.ID); err != nil {
			return fmt.Errorf("failed to delete backup schedule %s: %w", s.ID, err)
		}
	}

	if len(schedules) > 0 {
		logger.Log.Info("deleted backup schedules",
			zap.Int("count", len(schedules)),
			zap.String("resource", resourceID))
	}

	return nil
}
