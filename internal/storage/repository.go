package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/ability-tracker/internal/models"
)

// ErrNotFound is returned by mutating operations on missing records.
// Getters return (nil, nil) instead.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for tracker persistence
type Repository interface {
	// Tasks
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error)

	// Abilities
	ListAbilities(ctx context.Context) ([]*models.Ability, error)
	GetAbility(ctx context.Context, name string) (*models.Ability, error)
	EnsureAbility(ctx context.Context, a *models.Ability) (bool, error)
	ModifyAbility(ctx context.Context, name string, fn func(*models.Ability) error) (*models.Ability, error)

	// Rewards
	ListRewards(ctx context.Context) ([]*models.Reward, error)
	GetReward(ctx context.Context, id string) (*models.Reward, error)
	EnsureReward(ctx context.Context, r *models.Reward) (bool, error)
	UnlockReward(ctx context.Context, id string, at time.Time) (bool, error)

	// Achievements
	ListAchievements(ctx context.Context) ([]*models.Achievement, error)
	GetAchievement(ctx context.Context, id string) (*models.Achievement, error)
	EnsureAchievement(ctx context.Context, a *models.Achievement) (bool, error)
	UnlockAchievement(ctx context.Context, id string, at time.Time) (bool, error)

	// Daily scores
	UpsertDailyScore(ctx context.Context, s *models.DailyScore) error
	GetDailyScore(ctx context.Context, date time.Time) (*models.DailyScore, error)
	ListDailyScores(ctx context.Context, from, to time.Time) ([]*models.DailyScore, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// Day returns the calendar day of t as UTC midnight. Daily scores are keyed by it.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
