package models

import (
	"time"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// IsValid reports whether s is one of the known task states
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled:
		return true
	default:
		return false
	}
}

// Task is a time-boxed unit of work. Score is a cache of the scorer output
// and is recomputed whenever a scoring input changes.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         time.Time  `json:"endTime"`
	DurationMinutes int        `json:"duration"`
	PlannedMinutes  int        `json:"plannedDuration"`
	Category        string     `json:"taskType"`
	Status          TaskStatus `json:"status"`
	Completion      int        `json:"completion"`
	Score           float64    `json:"score"`
	Notes           string     `json:"notes,omitempty"`
	AbilityStat     string     `json:"abilityStat,omitempty"`
	ExperienceGain  int        `json:"expGain,omitempty"`
	// ExperienceGranted is set once ExperienceGain has been credited to AbilityStat
	ExperienceGranted bool      `json:"expGranted"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// TaskFilters narrows task listings. Zero values are ignored.
type TaskFilters struct {
	From     *time.Time
	To       *time.Time
	Status   TaskStatus
	Category string
	Limit    int
	Offset   int
}

// CreateTaskRequest represents a request to create a task manually
type CreateTaskRequest struct {
	Title           string    `json:"title"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes int       `json:"duration"`
	PlannedMinutes  int       `json:"plannedDuration,omitempty"`
	Category        string    `json:"taskType"`
	Notes           string    `json:"notes,omitempty"`
	AbilityStat     string    `json:"abilityStat,omitempty"`
	ExperienceGain  int       `json:"expGain,omitempty"`
}

// UpdateTaskRequest carries a partial task update; nil fields are left untouched
type UpdateTaskRequest struct {
	Title           *string     `json:"title,omitempty"`
	StartTime       *time.Time  `json:"startTime,omitempty"`
	EndTime         *time.Time  `json:"endTime,omitempty"`
	DurationMinutes *int        `json:"duration,omitempty"`
	PlannedMinutes  *int        `json:"plannedDuration,omitempty"`
	Category        *string     `json:"taskType,omitempty"`
	Status          *TaskStatus `json:"status,omitempty"`
	Completion      *int        `json:"completion,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
	AbilityStat     *string     `json:"abilityStat,omitempty"`
}

// CompleteTaskRequest marks a task as completed
type CompleteTaskRequest struct {
	Completion      *int `json:"completion,omitempty"`
	DurationMinutes *int `json:"duration,omitempty"`
}
