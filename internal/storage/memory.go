package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/ability-tracker/internal/models"
)

// MemoryRepository implements Repository in process memory
type MemoryRepository struct {
	mu           sync.RWMutex
	tasks        map[string]models.Task
	abilities    map[string]models.Ability
	rewards      map[string]models.Reward
	achievements map[string]models.Achievement
	scores       map[time.Time]models.DailyScore
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks:        make(map[string]models.Task),
		abilities:    make(map[string]models.Ability),
		rewards:      make(map[string]models.Reward),
		achievements: make(map[string]models.Achievement),
		scores:       make(map[time.Time]models.DailyScore),
	}
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

// --- Tasks ---

func (r *MemoryRepository) CreateTask(ctx context.Context, t *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.tasks[t.ID] = *t
	return nil
}

func (r *MemoryRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *MemoryRepository) UpdateTask(ctx context.Context, t *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	r.tasks[t.ID] = *t
	return nil
}

func (r *MemoryRepository) DeleteTask(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *MemoryRepository) ListTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Task, 0)
	for _, t := range r.tasks {
		if filters.From != nil && t.StartTime.Before(*filters.From) {
			continue
		}
		if filters.To != nil && !t.StartTime.Before(*filters.To) {
			continue
		}
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		if filters.Category != "" && t.Category != filters.Category {
			continue
		}
		t := t
		out = append(out, &t)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			return []*models.Task{}, nil
		}
		out = out[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(out) {
		out = out[:filters.Limit]
	}
	return out, nil
}

// --- Abilities ---

func (r *MemoryRepository) ListAbilities(ctx context.Context) ([]*models.Ability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Ability, 0, len(r.abilities))
	for _, a := range r.abilities {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepository) GetAbility(ctx context.Context, name string) (*models.Ability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.abilities[name]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *MemoryRepository) EnsureAbility(ctx context.Context, a *models.Ability) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.abilities[a.Name]; ok {
		*a = existing
		return false, nil
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	r.abilities[a.Name] = *a
	return true, nil
}

// ModifyAbility holds the write lock for the whole read-modify-write
func (r *MemoryRepository) ModifyAbility(ctx context.Context, name string, fn func(*models.Ability) error) (*models.Ability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.abilities[name]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(&a); err != nil {
		return nil, err
	}
	r.abilities[name] = a
	return &a, nil
}

// --- Rewards ---

func (r *MemoryRepository) ListRewards(ctx context.Context) ([]*models.Reward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Reward, 0, len(r.rewards))
	for _, rw := range r.rewards {
		rw := rw
		out = append(out, &rw)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepository) GetReward(ctx context.Context, id string) (*models.Reward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rw, ok := r.rewards[id]
	if !ok {
		return nil, nil
	}
	return &rw, nil
}

func (r *MemoryRepository) EnsureReward(ctx context.Context, rw *models.Reward) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rewards {
		if existing.Name == rw.Name {
			*rw = existing
			return false, nil
		}
	}
	if rw.ID == "" {
		rw.ID = uuid.NewString()
	}
	r.rewards[rw.ID] = *rw
	return true, nil
}

func (r *MemoryRepository) UnlockReward(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rw, ok := r.rewards[id]
	if !ok {
		return false, ErrNotFound
	}
	if rw.IsUnlocked {
		return false, nil
	}
	rw.IsUnlocked = true
	rw.UnlockedAt = &at
	r.rewards[id] = rw
	return true, nil
}

// --- Achievements ---

func (r *MemoryRepository) ListAchievements(ctx context.Context) ([]*models.Achievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Achievement, 0, len(r.achievements))
	for _, a := range r.achievements {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepository) GetAchievement(ctx context.Context, id string) (*models.Achievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.achievements[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *MemoryRepository) EnsureAchievement(ctx context.Context, a *models.Achievement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.achievements {
		if existing.Name == a.Name {
			*a = existing
			return false, nil
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	r.achievements[a.ID] = *a
	return true, nil
}

func (r *MemoryRepository) UnlockAchievement(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.achievements[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.IsUnlocked {
		return false, nil
	}
	a.IsUnlocked = true
	a.UnlockedAt = &at
	r.achievements[id] = a
	return true, nil
}

// --- Daily scores ---

func (r *MemoryRepository) UpsertDailyScore(ctx context.Context, s *models.DailyScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.Date = Day(s.Date)
	if existing, ok := r.scores[s.Date]; ok {
		s.ID = existing.ID
	} else if s.ID == "" {
		s.ID = uuid.NewString()
	}
	r.scores[s.Date] = *s
	return nil
}

func (r *MemoryRepository) GetDailyScore(ctx context.Context, date time.Time) (*models.DailyScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scores[Day(date)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// ListDailyScores returns scores with from <= date <= to, newest first
func (r *MemoryRepository) ListDailyScores(ctx context.Context, from, to time.Time) ([]*models.DailyScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from, to = Day(from), Day(to)
	out := make([]*models.DailyScore, 0)
	for day, s := range r.scores {
		if day.Before(from) || day.After(to) {
			continue
		}
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}
