package models

import "time"

// ScoreRule maps a task category to its scoring weights
type ScoreRule struct {
	Category   string  `yaml:"category" json:"taskType"`
	BaseScore  float64 `yaml:"base_score" json:"baseScore"`
	TimeFactor float64 `yaml:"time_factor" json:"timeFactor"`
	Priority   int     `yaml:"priority" json:"priority"`
}

// DailyScore aggregates the scores of the tasks started on one day
type DailyScore struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	TotalScore float64   `json:"totalScore"`
	TaskCount  int       `json:"taskCount"`
	Level      int       `json:"level"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
