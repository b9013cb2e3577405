package backup

import (
	"bimvault/internal/bimcloud"
	"bimvault/internal/model"
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)

	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// fakeManager scripts the manager's answers and records every call that
// mutates server state, in order.
type fakeManager struct {
	resources   []model.Resource
	resourceErr error
	byID        []model.Resource

	backups map[string][]model.Backup // staleness answers, keyed by resource id
	polled  [][]model.Backup          // queued answers for criterion-filtered backup queries
	jobs    [][]model.Job             // queued answers for job polls

	createJob model.Job
	createErr error
	insertErr error

	schedules []model.Schedule
	inserted  []model.Schedule
	calls     []string
}

func (f *fakeManager) GetResources(context.Context, bimcloud.Criterion) ([]model.Resource, error) {
	f.calls = append(f.calls, "get-resources")
	return f.resources, f.resourceErr
}

func (f *fakeManager) GetResourcesByID(context.Context, []string) ([]model.Resource, error) {
	f.calls = append(f.calls, "get-resources-by-id")
	return f.byID, nil
}

func (f *fakeManager) GetResourceBackups(_ context.Context, ids []string, criterion bimcloud.Criterion) ([]model.Backup, error) {
	if criterion == nil {
		return f.backups[ids[0]], nil
	}

	f.calls = append(f.calls, "query-backups:"+ids[0])
	if len(f.polled) == 0 {
		return nil, nil
	}

	head := f.polled[0]
	f.polled = f.polled[1:]
	return head, nil
}

func (f *fakeManager) CreateResourceBackup(_ context.Context, resourceID, _, _ string) (model.Job, error) {
	f.calls = append(f.calls, "create-backup:"+resourceID)
	return f.createJob, f.createErr
}

func (f *fakeManager) DeleteResourceBackup(_ context.Context, _, backupID string) error {
	f.calls = append(f.calls, "delete-backup:"+backupID)
	return nil
}

func (f *fakeManager) GetJobs(context.Context, bimcloud.Criterion) ([]model.Job, error) {
	f.calls = append(f.calls, "get-jobs")
	if len(f.jobs) == 0 {
		return nil, nil
	}

	head := f.jobs[0]
	f.jobs = f.jobs[1:]
	return head, nil
}

func (f *fakeManager) InsertResourceBackupSchedule(_ context.Context, schedule model.Schedule) error {
	f.calls = append(f.calls, "insert-schedule:"+schedule.ID)
	if f.insertErr != nil {
		return f.insertErr
	}

	f.schedules = append(f.schedules, schedule)
	f.inserted = append(f.inserted, schedule)
	return nil
}

func (f *fakeManager) GetResourceBackupSchedules(context.Context, bimcloud.Criterion) ([]model.Schedule, error) {
	f.calls = append(f.calls, "get-schedules")
	return slices.Clone(f.schedules), nil
}

func (f *fakeManager) DeleteResourceBackupSchedule(_ context.Context, scheduleID string) error {
	f.calls = append(f.calls, "delete-schedule:"+scheduleID)
	f.schedules = slices.DeleteFunc(f.schedules, func(s model.Schedule) bool {
		return s.ID == scheduleID
	})
	return nil
}

func project(id string, size, modified, uploaded int64) model.Resource {
	return model.Resource{ID: id, Type: model.ResourceProject, Name: "p-" + id, Size: size, Modified: modified, Uploaded: uploaded}
}

func library(id string, size, modified, uploaded int64) model.Resource {
	return model.Resource{ID: id, Type: model.ResourceLibrary, Name: "l-" + id, Size: size, Modified: modified, Uploaded: uploaded}
}

func TestProjectWorkflowCreatesAndValidatesBackup(t *testing.T) {
	resource := project("res-1", 1<<20, 2000, 1000)
	obsolete := model.Backup{ID: "b-old", ResourceID: "res-1", Time: 1500}

	manager := &fakeManager{
		createJob: model.Job{ID: "job-1", Status: "scheduled"},
		jobs: [][]model.Job{
			{{ID: "job-1", Status: "processing", Progress: model.JobProgress{Current: 1, Max: 4}}},
			{{ID: "job-1", Status: model.JobStatusCompleted, Properties: []model.JobProperty{{Name: "projectId", Value: "res-1"}}}},
		},
		polled: [][]model.Backup{
			{{ID: "b-new", ResourceID: "res-1", Time: 2500, Status: model.BackupStatusDone, FileSize: 4096}},
		},
	}

	w := NewProjectWorkflow(manager, &fakeClock{now: time.Unix(1000, 0)}, time.Second)
	created, status, err := w.Run(context.Background(), resource, []model.Backup{obsolete})

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreated, status)
	require.NotNil(t, created)
	assert.Equal(t, "b-new", created.ID)

	// The obsolete copy goes before the new backup is requested.
	deleteAt := slices.Index(manager.calls, "delete-backup:b-old")
	createAt := slices.Index(manager.calls, "create-backup:res-1")
	require.GreaterOrEqual(t, deleteAt, 0)
	require.GreaterOrEqual(t, createAt, 0)
	assert.Less(t, deleteAt, createAt)
}

func TestProjectWorkflowKeepsNewerBackups(t *testing.T) {
	resource := project("res-1", 0, 2000, 1000)
	newer := model.Backup{ID: "b-late", ResourceID: "res-1", Time: 2500}

	manager := &fakeManager{
		createJob: model.Job{ID: "job-1"},
		jobs: [][]model.Job{
			{{ID: "job-1", Status: model.JobStatusCompleted, Properties: []model.JobProperty{{Name: "projectId", Value: "res-1"}}}},
		},
		polled: [][]model.Backup{
			{{ID: "b-new", Time: 2600, Status: model.BackupStatusDone, FileSize: 1}},
		},
	}

	w := NewProjectWorkflow(manager, &fakeClock{now: time.Unix(1000, 0)}, time.Second)
	_, status, err := w.Run(context.Background(), resource, []model.Backup{newer})

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreated, status)
	assert.NotContains(t, manager.calls, "delete-backup:b-late")
}

func TestProjectWorkflowMissingJobIDIsTerminal(t *testing.T) {
	manager := &fakeManager{createJob: model.Job{}}

	w := NewProjectWorkflow(manager, &fakeClock{now: time.Unix(1000, 0)}, time.Second)
	created, status, err := w.Run(context.Background(), project("res-1", 0, 2000, 1000), nil)

	assert.Nil(t, created)
	assert.Equal(t, model.OutcomeFailed, status)
	require.Error(t, err)
	assert.NotContains(t, manager.calls, "get-jobs")
}

func TestProjectWorkflowTimesOut(t *testing.T) {
	// Zero size keeps the budget at the 60s floor; job never terminates.
	manager := &fakeManager{createJob: model.Job{ID: "job-1"}}

	w := NewProjectWorkflow(manager, &fakeClock{now: time.Unix(1000, 0)}, time.Second)
	created, status, err := w.Run(context.Background(), project("res-1", 0, 2000, 1000), nil)

	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Equal(t, model.OutcomeTimedOut, status)
}

func TestProjectWorkflowRejectsFailedJob(t *testing.T) {
	manager := &fakeManager{
		createJob: model.Job{ID: "job-1"},
		jobs:      [][]model.Job{{{ID: "job-1", Status: model.JobStatusFailed}}},
	}

	w := NewProjectWorkflow(manager, &fakeClock{now: time.Unix(1000, 0)}, time.Second)
	created, status, err := w.Run(context.Background(), project("res-1", 0, 2000, 1000), nil)

	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Equal(t, model.OutcomeRejected, status)
}

func TestProjectWorkflowRejectsEmptyBackup(t *testing.T) {
	manager := &fakeManager{
		createJob: model.Job{ID: "job-1"},
		jobs: [][]model.Job{
			{{ID: "job-1", Status: model.JobStatusCompleted, Properties: []model.JobProperty{{Name: "projectId", Value: "res-1"}}}},
		},
		polled: [][]model.Backup{
			{{ID: "b-new", Time: 2600, Status: model.BackupStatusDone, FileSize: 0}},
		},
	}

	w := NewProjectWorkflow(manager, &fakeClock{now: time.Unix(1000, 0)}, time.Second)
	created, status, err := w.Run(context.Background(), project("res-1", 0, 2000, 1000), nil)

	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Equal(t, model.OutcomeRejected, status)
}

func TestLibraryWorkflowCreatesBackupAndRemovesSchedule(t *testing.T) {
	resource := library("lib-1", 1<<20, 2000, 1000)
	auto := model.Backup{
		ID:         "b-auto",
		ResourceID: "lib-1",
		Time:       2500,
		Status:     model.BackupStatusDone,
		FileSize:   512,
		Format:     model.BackupFormatLibraryAut,
	}

	manager := &fakeManager{
		schedules: []model.Schedule{{ID: "stale-schedule", TargetResourceID: "lib-1"}},
		polled: [][]model.Backup{
			{},     // scheduler has not fired yet
			{auto}, // backup appears
			{auto}, // validation pass
		},
	}

	clk := &fakeClock{now: time.Unix(1000, 0)}
	w := NewLibraryWorkflow(manager, clk, time.Second)
	created, status, err := w.Run(context.Background(), resource, nil)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreated, status)
	require.NotNil(t, created)
	assert.Equal(t, "b-auto", created.ID)

	// Pre-existing schedules cleared before insert, ours cleared after.
	preDelete := slices.Index(manager.calls, "delete-schedule:stale-schedule")
	insert := slices.Index(manager.calls, "insert-schedule:bimlibrarylib-1")
	postDelete := slices.Index(manager.calls, "delete-schedule:bimlibrarylib-1")
	require.GreaterOrEqual(t, preDelete, 0)
	require.GreaterOrEqual(t, insert, 0)
	require.GreaterOrEqual(t, postDelete, 0)
	assert.Less(t, preDelete, insert)
	assert.Less(t, insert, postDelete)
	assert.Empty(t, manager.schedules)
}

func TestLibraryWorkflowScheduleShape(t *testing.T) {
	manager := &fakeManager{
		polled: [][]model.Backup{
			{{ID: "b-auto", Status: model.BackupStatusDone, FileSize: 1}},
			{{ID: "b-auto", Status: model.BackupStatusDone, FileSize: 1}},
		},
	}

	start := time.Unix(10000, 0)
	w := NewLibraryWorkflow(manager, &fakeClock{now: start}, time.Second)
	_, status, err := w.Run(context.Background(), library("lib-1", 0, 2000, 1000), nil)

	require.NoError(t, err)
	require.Equal(t, model.OutcomeCreated, status)

	require.Len(t, manager.inserted, 1)
	schedule := manager.inserted[0]
	assert.Equal(t, "bimlibrarylib-1", schedule.ID)
	assert.Equal(t, "resourceBackupSchedule", schedule.Type)
	assert.Equal(t, "lib-1", schedule.TargetResourceID)
	assert.Equal(t, "bimlibrary", schedule.BackupType)
	assert.True(t, schedule.Enabled)
	assert.Equal(t, 1, schedule.MaxBackupCount)
	assert.Equal(t, int64(3600), schedule.RepeatInterval)

	// First firing lands ten seconds after the action: start+10-3600.
	assert.Equal(t, start.Unix()+10-3600, schedule.StartTime)
}

func TestLibraryWorkflowTimeoutStillDeletesSchedule(t *testing.T) {
	manager := &fakeManager{} // scheduler never produces a backup

	w := NewLibraryWorkflow(manager, &fakeClock{now: time.Unix(1000, 0)}, time.Second)
	created, status, err := w.Run(context.Background(), library("lib-1", 0, 2000, 1000), nil)

	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Equal(t, model.OutcomeTimedOut, status)

	assert.Contains(t, manager.calls, "insert-schedule:bimlibrarylib-1")
	assert.Contains(t, manager.calls, "delete-schedule:bimlibrarylib-1")
	assert.Empty(t, manager.schedules)
}

func TestLibraryWorkflowRejectsForeignBackup(t *testing.T) {
	mine := model.Backup{ID: "b-1", Status: model.BackupStatusDone, FileSize: 1}
	other := model.Backup{ID: "b-2", Status: model.BackupStatusDone, FileSize: 1}

	manager := &fakeManager{
		polled: [][]model.Backup{{mine}, {other}},
	}

	w := NewLibraryWorkflow(manager, &fakeClock{now: time.Unix(1000, 0)}, time.Second)
	created, status, err := w.Run(context.Background(), library("lib-1", 0, 2000, 1000), nil)

	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Equal(t, model.OutcomeRejected, status)
	assert.Empty(t, manager.schedules)
}

func TestLibraryWorkflowInsertFailureSkipsPolling(t *testing.T) {
	manager := &fakeManager{insertErr: errors.New("schedule rejected")}

	w := NewLibraryWorkflow(manager, &fakeClock{now: time.Unix(1000, 0)}, time.Second)
	created, status, err := w.Run(context.Background(), library("lib-1", 0, 2000, 1000), nil)

	assert.Nil(t, created)
	assert.Equal(t, model.OutcomeFailed, status)
	require.Error(t, err)
	assert.NotContains(t, manager.calls, "query-backups:lib-1")
}
