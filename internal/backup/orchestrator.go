package backup

import (
	"bimvault/internal/bimcloud"
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"bimvault/internal/poll"
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// interResourceDelay keeps the manager from being hammered between
// consecutive resources.
const interResourceDelay = time.Second

// Transferrer mirrors a validated backup to destination storage.
type Transferrer interface {
	Transfer(ctx context.Context, resource model.Resource, backupID string) error
}

// Orchestrator walks all resources sequentially and drives each one
// through schedule hygiene, the staleness gate, its type's workflow and
// the transfer. Per-resource failures are folded into the run report;
// only resource enumeration is fatal.
type Orchestrator struct {
	client           ManagerClient
	transfer         Transferrer
	clk              poll.Clock
	workflows        map[model.ResourceType]Workflow
	schedulesEnabled bool
}

func NewOrchestrator(client ManagerClient, transfer Transferrer, clk poll.Clock, schedulesEnabled bool, pollInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		client:           client,
		transfer:         transfer,
		clk:              clk,
		schedulesEnabled: schedulesEnabled,
		workflows: map[model.ResourceType]Workflow{
			model.ResourceProject: NewProjectWorkflow(client, clk, pollInterval),
			model.ResourceLibrary: NewLibraryWorkflow(client, clk, pollInterval),
		},
	}
}

// Run executes one backup pass. ids restricts the pass to the given
// resources; empty means everything on the server.
func (o *Orchestrator) Run(ctx context.Context, ids []string) (*model.RunReport, error) {
	report := model.NewRunReport(uuid.NewString(), o.clk.Now())

	resources, err := o.resources(ctx, ids)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("found resources, starting backup process", zap.Int("count", len(resources)))

	for i, resource := range resources {
		logger.Log.Info(fmt.Sprintf("resource #%d", i+1),
			zap.String("id", resource.ID),
			zap.String("type", string(resource.Type)),
			zap.String("name", resource.Name),
			zap.String("size", humanize.IBytes(uint64(max(resource.Size, 0)))))

		report.Fold(o.visit(ctx, resource))

		select {
		case <-ctx.Done():
			report.FinishedAt = o.clk.Now()
			return report, ctx.Err()
		case <-o.clk.After(interResourceDelay):
		}
	}

	report.FinishedAt = o.clk.Now()
	return report, nil
}

func (o *Orchestrator) visit(ctx context.Context, resource model.Resource) model.Outcome {
	outcome := model.Outcome{Resource: resource, Status: model.OutcomeFailed}

	// Without server-side scheduling every stray schedule is an
	// operator mistake; sweep them before looking at backups.
	if !o.schedulesEnabled {
		if err := DeleteSchedules(ctx, o.client, resource.ID); err != nil {
			logger.Log.Warn("failed to clean schedules", zap.String("resource", resource.ID), zap.Error(err))
		}
	}

	backups, err := o.client.GetResourceBackups(ctx, []string{resource.ID}, nil)
	if err != nil {
		outcome.Err = fmt.Errorf("failed to list backups: %w", err)
		logger.Log.Error("failed to list backups", zap.String("resource", resource.ID), zap.Error(err))
		return outcome
	}

	if !Stale(resource, backups) {
		logger.Log.Info("resource has a valid backup, skipped", zap.String("resource", resource.ID))
		outcome.Status = model.OutcomeFresh
		return outcome
	}

	workflow, ok := o.workflows[resource.Type]
	if !ok {
		outcome.Err = fmt.Errorf("no workflow for resource type %q", resource.Type)
		return outcome
	}

	created, status, err := workflow.Run(ctx, resource, backups)
	outcome.Status = status
	outcome.Err = err
	if err != nil {
		logger.Log.Error("backup failed", zap.String("resource", resource.ID), zap.Error(err))
		return outcome
	}
	if status != model.OutcomeCreated {
		return outcome
	}

	outcome.Backup = created
	logger.Log.Info("backup successfully created", zap.String("backup", created.ID))

	if err := o.transfer.Transfer(ctx, resource, created.ID); err != nil {
		outcome.Err = err
		logger.Log.Error("failed to transfer backup", zap.String("resource", resource.ID), zap.Error(err))
		return outcome
	}
	outcome.Transferred = true

	return outcome
}

func (o *Orchestrator) resources(ctx context.Context, ids []string) ([]model.Resource, error) {
	if len(ids) > 0 {
		resources, err := o.client.GetResourcesByID(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to get resources by id: %w", err)
		}
		if len(resources) > 0 {
			return resources, nil
		}
		logger.Log.Info("resource not found, falling back to full scan")
	}

	resources, err := o.client.GetResources(ctx, bimcloud.Or(
		bimcloud.Eq("type", string(model.ResourceProject)),
		bimcloud.Eq("type", string(model.ResourceLibrary)),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to get resources: %w", err)
	}

	return resources, nil
}
