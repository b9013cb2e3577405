package repository

import (
	"bimvault/internal/db"
	"bimvault/internal/model"
)

type RunRepository struct{}

func NewRunRepository() *RunRepository {
	return &RunRepository{}
}

func (r *RunRepository) Save(report model.RunReport, trigger string) error {
	run := model.Run{
		RunID:      report.RunID,
		Trigger:    trigger,
		Status:     report.Status(),
		Scanned:    report.Scanned,
		Created:    report.Created,
		Errors:     report.Errors,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}

	return db.DB.Create(&run).Error
}

func (r *RunRepository) GetRecent(limit int) ([]model.Run, error) {
	var runs []model.Run
	result := db.DB.
		Order("started_at desc").
		Limit(limit).
		Find(&runs)

	return runs, result.Error
}

type Stats struct {
	Total   int64
	Done    int64
	Failed  int64
	Created int64
}

func (r *RunRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.Run{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.Run{}).
		Where("status = ?", model.RunStatusDone).
		Count(&stats.Done).Error; err != nil {
		return stats, err
	}
	stats.Failed = stats.Total - stats.Done

	row := db.DB.Model(&model.Run{}).Select("coalesce(sum(created), 0)").Row()
	if err := row.Scan(&stats.Created); err != nil {
		return stats, err
	}

	return stats, nil
}
