package model

type ResourceType string

const (
	ResourceProject ResourceType = "project"
	ResourceLibrary ResourceType = "library"
)

// BackupType selects the server-side backup format when requesting or
// scheduling a backup for a resource.
func (t ResourceType) BackupType() string {
	switch t {
	case ResourceLibrary:
		return "bimlibrary"
	default:
		return "bimproject"
	}
}

// Extension is the file suffix used for mirrored copies at the destination.
func (t ResourceType) Extension() string {
	switch t {
	case ResourceLibrary:
		return ".BIMLibrary25"
	default:
		return ".BIMProject25"
	}
}

// Resource is a project or library artifact on the model server.
// Timestamp fields are epoch milliseconds, as served.
type Resource struct {
	ID       string       `json:"id"`
	Type     ResourceType `json:"type"`
	Name     string       `json:"name"`
	Size     int64        `json:"$size"`
	Modified int64        `json:"$modifiedDate"`
	Uploaded int64        `json:"$uploadedTime"`
}

const (
	BackupStatusDone       = "_server.backup.status.done"
	BackupFormatLibraryAut = "_server.backup.format.bimlibrary-automatic"
)

// Backup is the server's record of a completed or in-progress backup.
type Backup struct {
	ID         string `json:"id"`
	ResourceID string `json:"$resourceId"`
	Time       int64  `json:"$time"`
	Status     string `json:"$statusId"`
	FileSize   int64  `json:"$fileSize"`
	Format     string `json:"$formatId"`
}

// Valid reports whether the backup finished and actually contains data.
func (b *Backup) Valid() bool {
	return b != nil && b.Status == BackupStatusDone && b.FileSize > 0
}

const (
	JobTypeCreateProjectBackup = "createProjectBackup"

	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type JobProgress struct {
	Current int64 `json:"current"`
	Max     int64 `json:"max"`
}

type JobProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Job is the transient server-side task tracking a synchronous backup
// creation. It is polled until terminal and never persisted.
type Job struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	Progress   JobProgress   `json:"progress"`
	Properties []JobProperty `json:"properties"`
}

func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Property returns the named entry of the job's property bag.
func (j *Job) Property(name string) string {
	for _, p := range j.Properties {
		if p.Name == name {
			return p.Value
		}
	}

	return ""
}

// Schedule is the recurring-backup configuration abused as a one-shot
// trigger for library backups. StartTime is epoch seconds (schedules
// predate the server's switch to millisecond timestamps).
type Schedule struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	TargetResourceID string `json:"targetResourceId"`
	BackupType       string `json:"backupType"`
	Enabled          bool   `json:"enabled"`
	MaxBackupCount   int    `json:"maxBackupCount"`
	RepeatInterval   int64  `json:"repeatInterval"`
	RepeatCount      int    `json:"repeatCount"`
	StartTime        int64  `json:"startTime"`
	EndTime          int64  `json:"endTime"`
	Revision         int    `json:"revision"`
}
