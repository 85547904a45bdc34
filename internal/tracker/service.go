// Package tracker is the application service behind the HTTP API and the
// import pipeline: task lifecycle, experience grants, reward unlocks and
// daily scores.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/terra-clan/ability-tracker/internal/abilities"
	"github.com/terra-clan/ability-tracker/internal/models"
	"github.com/terra-clan/ability-tracker/internal/rewards"
	"github.com/terra-clan/ability-tracker/internal/scoring"
	"github.com/terra-clan/ability-tracker/internal/seed"
	"github.com/terra-clan/ability-tracker/internal/storage"
)

// DefaultExperienceGain is credited for manual tasks that do not name an amount
const DefaultExperienceGain = 10

// Progress reports what an experience-granting operation changed
type Progress struct {
	LevelUp *models.LevelUp `json:"levelUp,omitempty"`
	Unlocks models.Unlocks  `json:"unlocks"`
}

// Service coordinates storage, scoring, the ability ledger and the evaluator
type Service struct {
	repo      storage.Repository
	rules     *scoring.RuleTable
	ledger    *abilities.Ledger
	evaluator *rewards.Evaluator
	catalog   *seed.Loader
	loc       *time.Location
	now       func() time.Time

	// serializes the check-and-set of Task.ExperienceGranted
	awardMu sync.Mutex
}

// NewService creates a tracker service. Calendar days are taken in loc.
func NewService(repo storage.Repository, rules *scoring.RuleTable, catalog *seed.Loader, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:      repo,
		rules:     rules,
		ledger:    abilities.NewLedger(repo),
		evaluator: rewards.NewEvaluator(repo, loc),
		catalog:   catalog,
		loc:       loc,
		now:       time.Now,
	}
}

// Rules returns the active score rule table
func (s *Service) Rules() *scoring.RuleTable {
	return s.rules
}

// Location returns the time zone used for calendar days
func (s *Service) Location() *time.Location {
	return s.loc
}

// Ping checks the persistence collaborator
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// --- Tasks ---

// CreateTask validates and stores a new pending task
func (s *Service) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalid("title", "must not be empty")
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return nil, invalid("startTime", "start and end time are required")
	}
	if req.EndTime.Before(req.StartTime) {
		return nil, invalid("endTime", "must not be before startTime")
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = int(math.Round(req.EndTime.Sub(req.StartTime).Minutes()))
	}
	if duration < 0 {
		return nil, invalid("duration", "must not be negative")
	}

	planned := req.PlannedMinutes
	if planned == 0 {
		planned = duration
	}
	if planned < 0 {
		return nil, invalid("plannedDuration", "must not be negative")
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = abilities.CategoryOther
	}

	stat := abilities.StatForCategory(category)
	if req.AbilityStat != "" {
		parsed, ok := abilities.ParseStat(req.AbilityStat)
		if !ok {
			return nil, invalid("abilityStat", "unknown ability %q", req.AbilityStat)
		}
		stat = parsed
	}

	exp := req.ExperienceGain
	if exp < 0 {
		return nil, invalid("expGain", "must not be negative")
	}
	if exp == 0 {
		exp = DefaultExperienceGain
	}

	now := s.now()
	task := &models.Task{
		Title:           title,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: duration,
		PlannedMinutes:  planned,
		Category:        category,
		Status:          models.TaskPending,
		Completion:      0,
		Notes:           req.Notes,
		AbilityStat:     string(stat),
		ExperienceGain:  exp,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	task.Score = scoring.Score(*task, s.rules)

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	slog.Info("task created", "task_id", task.ID, "title", task.Title, "category", task.Category)
	return task, nil
}

// GetTask returns ErrTaskNotFound for unknown IDs
func (s *Service) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *Service) ListTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error) {
	if filters.Status != "" && !filters.Status.IsValid() {
		return nil, invalid("status", "unknown status %q", filters.Status)
	}
	return s.repo.ListTasks(ctx, filters)
}

// UpdateTask applies a partial update and rescores the task.
// Moving a task to Completed credits its experience like CompleteTask.
func (s *Service) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	wasCompleted := task.Status == models.TaskCompleted

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, invalid("title", "must not be empty")
		}
		task.Title = title
	}
	if req.StartTime != nil {
		task.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		task.EndTime = *req.EndTime
	}
	if task.EndTime.Before(task.StartTime) {
		return nil, invalid("endTime", "must not be before startTime")
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes < 0 {
			return nil, invalid("duration", "must not be negative")
		}
		task.DurationMinutes = *req.DurationMinutes
	}
	if req.PlannedMinutes != nil {
		if *req.PlannedMinutes < 0 {
			return nil, invalid("plannedDuration", "must not be negative")
		}
		task.PlannedMinutes = *req.PlannedMinutes
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return nil, invalid("taskType", "must not be empty")
		}
		if category != task.Category && req.AbilityStat == nil {
			task.AbilityStat = string(abilities.StatForCategory(category))
		}
		task.Category = category
	}
	if req.AbilityStat != nil {
		stat, ok := abilities.ParseStat(*req.AbilityStat)
		if !ok {
			return nil, invalid("abilityStat", "unknown ability %q", *req.AbilityStat)
		}
		task.AbilityStat = string(stat)
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, invalid("status", "unknown status %q", *req.Status)
		}
		task.Status = *req.Status
	}
	if req.Completion != nil {
		if *req.Completion < 0 || *req.Completion > 100 {
			return nil, invalid("completion", "must be between 0 and 100")
		}
		task.Completion = *req.Completion
	}
	if req.Notes != nil {
		task.Notes = *req.Notes
	}

	task.Score = scoring.Score(*task, s.rules)
	task.UpdatedAt = s.now()

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	if !wasCompleted && task.Status == models.TaskCompleted {
		progress, err := s.completionProgress(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		slog.Info("task completed through update",
			"task_id", task.ID,
			"leveled_up", progress.LevelUp != nil && progress.LevelUp.LeveledUp,
			"unlocked_rewards", len(progress.Unlocks.RewardIDs),
			"unlocked_achievements", len(progress.Unlocks.AchievementIDs),
		)
		return s.GetTask(ctx, task.ID)
	}

	return task, nil
}

// DeleteTask removes a task. Experience already credited is kept.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	slog.Info("task deleted", "task_id", id)
	return nil
}

// CompleteTask marks a task Completed, rescores it with the reported actual
// duration, credits its experience and evaluates unlocks.
func (s *Service) CompleteTask(ctx context.Context, id string, req models.CompleteTaskRequest) (*models.Task, *Progress, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if task.Status == models.TaskCancelled {
		return nil, nil, invalid("status", "cancelled task cannot be completed")
	}

	completion := 100
	if req.Completion != nil {
		completion = *req.Completion
	}
	if completion < 0 || completion > 100 {
		return nil, nil, invalid("completion", "must be between 0 and 100")
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes < 0 {
			return nil, nil, invalid("duration", "must not be negative")
		}
		task.DurationMinutes = *req.DurationMinutes
	}

	task.Status = models.TaskCompleted
	task.Completion = completion
	task.Score = scoring.Score(*task, s.rules)
	task.UpdatedAt = s.now()

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrTaskNotFound
		}
		return nil, nil, err
	}

	progress, err := s.completionProgress(ctx, task.ID)
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.GetTask(ctx, task.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("task completed", "task_id", task.ID, "completion", completion, "score", updated.Score)
	return updated, progress, nil
}

func (s *Service) completionProgress(ctx context.Context, taskID string) (*Progress, error) {
	lu, err := s.AwardTaskExperience(ctx, taskID)
	if err != nil {
		return nil, err
	}
	unlocks, err := s.EvaluateRewards(ctx)
	if err != nil {
		return nil, err
	}
	return &Progress{LevelUp: lu, Unlocks: unlocks}, nil
}

// AwardTaskExperience credits the task's recorded experience to its ability
// at most once. It returns nil when the task was already credited.
func (s *Service) AwardTaskExperience(ctx context.Context, taskID string) (*models.LevelUp, error) {
	s.awardMu.Lock()
	defer s.awardMu.Unlock()

	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.ExperienceGranted {
		return nil, nil
	}

	stat, ok := abilities.ParseStat(task.AbilityStat)
	if !ok {
		stat = abilities.StatForCategory(task.Category)
	}

	// flag first: a failed flag write grants nothing, a failed grant is rolled back
	task.ExperienceGranted = true
	task.UpdatedAt = s.now()
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("mark experience granted: %w", err)
	}

	lu, err := s.grant(ctx, stat, task.ExperienceGain)
	if err != nil {
		task.ExperienceGranted = false
		if rerr := s.repo.UpdateTask(ctx, task); rerr != nil {
			slog.Error("failed to reset experience flag", "task_id", task.ID, "error", rerr)
		}
		return nil, err
	}

	return lu, nil
}

// --- Abilities ---

func (s *Service) ListAbilities(ctx context.Context) ([]*models.Ability, error) {
	return s.repo.ListAbilities(ctx)
}

// GrantExperience credits amount to the named ability and evaluates unlocks
func (s *Service) GrantExperience(ctx context.Context, name string, amount int) (*Progress, error) {
	stat, ok := abilities.ParseStat(name)
	if !ok {
		return nil, ErrAbilityNotFound
	}
	if amount < 0 {
		return nil, invalid("expGain", "must not be negative")
	}

	lu, err := s.grant(ctx, stat, amount)
	if err != nil {
		return nil, err
	}

	progress := &Progress{LevelUp: lu}
	if lu.LeveledUp {
		if progress.Unlocks, err = s.EvaluateRewards(ctx); err != nil {
			return nil, err
		}
	}
	return progress, nil
}

func (s *Service) grant(ctx context.Context, stat abilities.Stat, amount int) (*models.LevelUp, error) {
	lu, err := s.ledger.Grant(ctx, stat, amount)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAbilityNotFound
		}
		return nil, err
	}
	return lu, nil
}

// SeedAbilities creates the catalog abilities that do not exist yet
func (s *Service) SeedAbilities(ctx context.Context) (int, error) {
	created := 0
	now := s.now()
	for _, a := range s.catalog.Abilities() {
		a.CreatedAt = now
		a.UpdatedAt = now
		ok, err := s.repo.EnsureAbility(ctx, &a)
		if err != nil {
			return created, fmt.Errorf("seed ability %s: %w", a.Name, err)
		}
		if ok {
			created++
			// keep catalog order stable for listings sorted by creation time
			now = now.Add(time.Millisecond)
		}
	}
	slog.Info("abilities seeded", "created", created)
	return created, nil
}

// --- Rewards ---

// SeedRewards creates the catalog rewards and achievements that do not exist yet
func (s *Service) SeedRewards(ctx context.Context) (int, error) {
	created := 0
	now := s.now()

	for _, r := range s.catalog.Rewards() {
		r.CreatedAt = now
		if r.IsUnlocked {
			at := now
			r.UnlockedAt = &at
		}
		ok, err := s.repo.EnsureReward(ctx, &r)
		if err != nil {
			return created, fmt.Errorf("seed reward %s: %w", r.Name, err)
		}
		if ok {
			created++
			now = now.Add(time.Millisecond)
		}
	}

	for _, a := range s.catalog.Achievements() {
		a.CreatedAt = now
		if a.IsUnlocked {
			at := now
			a.UnlockedAt = &at
		}
		ok, err := s.repo.EnsureAchievement(ctx, &a)
		if err != nil {
			return created, fmt.Errorf("seed achievement %s: %w", a.Name, err)
		}
		if ok {
			created++
			now = now.Add(time.Millisecond)
		}
	}

	slog.Info("rewards seeded", "created", created)
	return created, nil
}

// ListRewards returns rewards and achievements
func (s *Service) ListRewards(ctx context.Context) ([]*models.Reward, []*models.Achievement, error) {
	rewardList, err := s.repo.ListRewards(ctx)
	if err != nil {
		return nil, nil, err
	}
	achievementList, err := s.repo.ListAchievements(ctx)
	if err != nil {
		return nil, nil, err
	}
	return rewardList, achievementList, nil
}

// EvaluateRewards unlocks every entry whose condition currently holds
func (s *Service) EvaluateRewards(ctx context.Context) (models.Unlocks, error) {
	return s.evaluator.Evaluate(ctx)
}

// UnlockReward unlocks a reward by hand. Unlocking twice is a no-op.
func (s *Service) UnlockReward(ctx context.Context, id string) (*models.Reward, error) {
	if _, err := s.repo.UnlockReward(ctx, id, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	r, err := s.repo.GetReward(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrRewardNotFound
	}
	return r, nil
}

// UnlockAchievement unlocks an achievement by hand
func (s *Service) UnlockAchievement(ctx context.Context, id string) (*models.Achievement, error) {
	if _, err := s.repo.UnlockAchievement(ctx, id, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAchievementNotFound
		}
		return nil, err
	}
	a, err := s.repo.GetAchievement(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAchievementNotFound
	}
	return a, nil
}

// --- Daily scores ---

// DailyScore recomputes and stores the aggregate of tasks started on date
func (s *Service) DailyScore(ctx context.Context, date time.Time) (*models.DailyScore, error) {
	y, m, d := date.In(s.loc).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)

	tasks, err := s.repo.ListTasks(ctx, models.TaskFilters{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	values := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		values = append(values, *t)
	}

	ds := scoring.Daily(values, s.rules)
	ds.Date = from
	ds.UpdatedAt = s.now()

	if err := s.repo.UpsertDailyScore(ctx, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// ListDailyScores returns the stored scores of the last days days, today included
func (s *Service) ListDailyScores(ctx context.Context, days int) ([]*models.DailyScore, error) {
	if days < 1 {
		return nil, invalid("range", "must be at least 1")
	}
	today := s.now().In(s.loc)
	from := today.AddDate(0, 0, -(days - 1))
	return s.repo.ListDailyScores(ctx, from, today)
}
