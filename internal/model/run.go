package model

import (
	"time"

	"gorm.io/gorm"
)

// Run is the persisted record of one backup pass.
type Run struct {
	gorm.Model
	RunID      string `gorm:"not null;uniqueIndex"`
	Trigger    string `gorm:"not null"`
	Status     string `gorm:"not null"`
	Scanned    int
	Created    int
	Errors     int
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt time.Time `gorm:"not null"`
}

const (
	TriggerCLI    = "cli"
	TriggerDaemon = "daemon"
	TriggerAPI    = "api"
)
