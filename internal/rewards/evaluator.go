package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/terra-clan/ability-tracker/internal/abilities"
	"github.com/terra-clan/ability-tracker/internal/models"
)

// Store is the persistence the evaluator reads and writes
type Store interface {
	ListAbilities(ctx context.Context) ([]*models.Ability, error)
	ListTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error)
	ListRewards(ctx context.Context) ([]*models.Reward, error)
	ListAchievements(ctx context.Context) ([]*models.Achievement, error)
	UnlockReward(ctx context.Context, id string, at time.Time) (bool, error)
	UnlockAchievement(ctx context.Context, id string, at time.Time) (bool, error)
}

// Evaluator unlocks rewards and achievements whose conditions hold.
// Unlocking is one-way: nothing is ever relocked.
type Evaluator struct {
	store Store
	loc   *time.Location

	// evaluations are serialized so concurrent callers report each unlock once
	mu       sync.Mutex
	compiled map[string]Predicate
	invalid  map[string]bool
}

// NewEvaluator creates an evaluator. Streak days are taken in loc.
func NewEvaluator(store Store, loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{
		store:    store,
		loc:      loc,
		compiled: make(map[string]Predicate),
		invalid:  make(map[string]bool),
	}
}

// LoadState gathers ability levels and completed-task statistics
func (e *Evaluator) LoadState(ctx context.Context) (State, error) {
	abilityList, err := e.store.ListAbilities(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load abilities: %w", err)
	}

	completed, err := e.store.ListTasks(ctx, models.TaskFilters{Status: models.TaskCompleted})
	if err != nil {
		return State{}, fmt.Errorf("load completed tasks: %w", err)
	}

	state := State{
		Levels:         make(map[abilities.Stat]int, len(abilityList)),
		CompletedCount: len(completed),
	}
	for _, a := range abilityList {
		state.Levels[abilities.Stat(a.Name)] = abilities.LevelFor(a.CurrentExperience, a.MaxLevel)
	}

	ends := make([]time.Time, 0, len(completed))
	for _, t := range completed {
		ends = append(ends, t.EndTime)
	}
	state.LongestStreak = LongestStreak(ends, e.loc)

	return state, nil
}

// Evaluate checks every locked entry and returns the IDs it unlocked
func (e *Evaluator) Evaluate(ctx context.Context) (models.Unlocks, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var unlocks models.Unlocks

	state, err := e.LoadState(ctx)
	if err != nil {
		return unlocks, err
	}
	now := time.Now()

	rewardList, err := e.store.ListRewards(ctx)
	if err != nil {
		return unlocks, fmt.Errorf("load rewards: %w", err)
	}
	for _, r := range rewardList {
		if r.IsUnlocked || !e.holds(r.UnlockCondition, state) {
			continue
		}
		changed, err := e.store.UnlockReward(ctx, r.ID, now)
		if err != nil {
			return unlocks, fmt.Errorf("unlock reward %s: %w", r.ID, err)
		}
		if changed {
			slog.Info("reward unlocked", "reward_id", r.ID, "name", r.Name, "condition", r.UnlockCondition)
			unlocks.RewardIDs = append(unlocks.RewardIDs, r.ID)
		}
	}

	achievementList, err := e.store.ListAchievements(ctx)
	if err != nil {
		return unlocks, fmt.Errorf("load achievements: %w", err)
	}
	for _, a := range achievementList {
		if a.IsUnlocked || !e.holds(a.UnlockCondition, state) {
			continue
		}
		changed, err := e.store.UnlockAchievement(ctx, a.ID, now)
		if err != nil {
			return unlocks, fmt.Errorf("unlock achievement %s: %w", a.ID, err)
		}
		if changed {
			slog.Info("achievement unlocked", "achievement_id", a.ID, "name", a.Name, "condition", a.UnlockCondition)
			unlocks.AchievementIDs = append(unlocks.AchievementIDs, a.ID)
		}
	}

	return unlocks, nil
}

// holds must be called with e.mu held
func (e *Evaluator) holds(condition string, state State) bool {
	pred, ok := e.compiled[condition]
	if !ok {
		if e.invalid[condition] {
			return false
		}
		var err error
		pred, err = CompileCondition(condition)
		if err != nil {
			slog.Warn("skipping entry with unsupported unlock condition", "condition", condition, "error", err)
			e.invalid[condition] = true
			return false
		}
		e.compiled[condition] = pred
	}
	return pred(state)
}

// LongestStreak returns the longest run of consecutive calendar days in loc
// that contain at least one of the given instants.
func LongestStreak(instants []time.Time, loc *time.Location) int {
	if len(instants) == 0 {
		return 0
	}

	seen := make(map[int64]bool, len(instants))
	days := make([]int64, 0, len(instants))
	for _, t := range instants {
		y, m, d := t.In(loc).Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i] == days[i-1]+1 {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}
	return longest
}
