package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/ability-tracker/internal/models"
)

func TestMemoryRepository(t *testing.T) {
	runRepositoryTests(t, func(t *testing.T) Repository {
		return NewMemoryRepository()
	})
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	runRepositoryTests(t, func(t *testing.T) Repository {
		ctx := context.Background()
		repo, err := NewPostgresRepository(ctx, PostgresConfig{DSN: dsn})
		if err != nil {
			t.Fatalf("NewPostgresRepository() error = %v", err)
		}
		if err := RunMigrations(ctx, repo.Pool(), Migrations("")); err != nil {
			t.Fatalf("RunMigrations() error = %v", err)
		}
		for _, table := range []string{"tasks", "abilities", "rewards", "achievements", "daily_scores"} {
			if _, err := repo.Pool().Exec(ctx, "TRUNCATE "+table); err != nil {
				t.Fatalf("truncate %s: %v", table, err)
			}
		}
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("tasks", func(t *testing.T) { testTasks(t, newRepo(t)) })
	t.Run("abilities", func(t *testing.T) { testAbilities(t, newRepo(t)) })
	t.Run("rewards", func(t *testing.T) { testRewards(t, newRepo(t)) })
	t.Run("achievements", func(t *testing.T) { testAchievements(t, newRepo(t)) })
	t.Run("daily scores", func(t *testing.T) { testDailyScores(t, newRepo(t)) })
	t.Run("empty listings", func(t *testing.T) { testEmptyListings(t, newRepo(t)) })
}

// Empty listings must be non-nil so they encode as [] rather than null.
func testEmptyListings(t *testing.T, repo Repository) {
	ctx := context.Background()

	tasks, err := repo.ListTasks(ctx, models.TaskFilters{})
	if err != nil || tasks == nil {
		t.Errorf("ListTasks() = %v, %v; want empty non-nil slice", tasks, err)
	}

	task := newTask("only", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), "开发")
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	paged, err := repo.ListTasks(ctx, models.TaskFilters{Offset: 5})
	if err != nil || paged == nil || len(paged) != 0 {
		t.Errorf("ListTasks(offset past end) = %v, %v", paged, err)
	}

	abilityList, err := repo.ListAbilities(ctx)
	if err != nil || abilityList == nil {
		t.Errorf("ListAbilities() = %v, %v", abilityList, err)
	}
	rewardList, err := repo.ListRewards(ctx)
	if err != nil || rewardList == nil {
		t.Errorf("ListRewards() = %v, %v", rewardList, err)
	}
	achievementList, err := repo.ListAchievements(ctx)
	if err != nil || achievementList == nil {
		t.Errorf("ListAchievements() = %v, %v", achievementList, err)
	}
	now := time.Now()
	scores, err := repo.ListDailyScores(ctx, now.AddDate(0, 0, -7), now)
	if err != nil || scores == nil {
		t.Errorf("ListDailyScores() = %v, %v", scores, err)
	}
}

func newTask(title string, start time.Time, category string) *models.Task {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Task{
		ID:              uuid.NewString(),
		Title:           title,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationMinutes: 60,
		Category:        category,
		Status:          models.TaskPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func testTasks(t *testing.T, repo Repository) {
	ctx := context.Background()
	day := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)

	first := newTask("调研", day.Add(9*time.Hour), "调研")
	second := newTask("锻炼", day.Add(18*time.Hour), "锻炼")
	other := newTask("沟通", day.Add(30*time.Hour), "沟通")
	for _, task := range []*models.Task{first, second, other} {
		if err := repo.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}

	got, err := repo.GetTask(ctx, first.ID)
	if err != nil || got == nil {
		t.Fatalf("GetTask() = %v, %v", got, err)
	}
	if got.Title != "调研" || got.DurationMinutes != 60 {
		t.Errorf("GetTask() = %+v", got)
	}

	missing, err := repo.GetTask(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Errorf("GetTask(missing) = %v, %v; want nil, nil", missing, err)
	}

	to := day.Add(24 * time.Hour)
	list, err := repo.ListTasks(ctx, models.TaskFilters{From: &day, To: &to})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("ListTasks(day) returned %d tasks in wrong order", len(list))
	}

	list, _ = repo.ListTasks(ctx, models.TaskFilters{Category: "沟通"})
	if len(list) != 1 || list[0].ID != other.ID {
		t.Errorf("ListTasks(category) = %d tasks", len(list))
	}

	list, _ = repo.ListTasks(ctx, models.TaskFilters{Limit: 1, Offset: 1})
	if len(list) != 1 || list[0].ID != second.ID {
		t.Errorf("ListTasks(limit/offset) = %d tasks", len(list))
	}

	first.Status = models.TaskCompleted
	first.Completion = 100
	first.Score = 2.5
	if err := repo.UpdateTask(ctx, first); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	got, _ = repo.GetTask(ctx, first.ID)
	if got.Status != models.TaskCompleted || got.Score != 2.5 {
		t.Errorf("after update: %+v", got)
	}

	list, _ = repo.ListTasks(ctx, models.TaskFilters{Status: models.TaskCompleted})
	if len(list) != 1 {
		t.Errorf("ListTasks(status) = %d tasks", len(list))
	}

	ghost := newTask("ghost", day, "其他")
	if err := repo.UpdateTask(ctx, ghost); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateTask(missing) error = %v, want ErrNotFound", err)
	}

	if err := repo.DeleteTask(ctx, first.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if err := repo.DeleteTask(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteTask(twice) error = %v, want ErrNotFound", err)
	}
}

func testAbilities(t *testing.T, repo Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	a := &models.Ability{Name: "knowledge", DisplayName: "知识", Level: 1, MaxLevel: 10, CreatedAt: now, UpdatedAt: now}
	created, err := repo.EnsureAbility(ctx, a)
	if err != nil || !created {
		t.Fatalf("EnsureAbility() = %v, %v", created, err)
	}

	again := &models.Ability{Name: "knowledge", DisplayName: "other", MaxLevel: 3}
	created, err = repo.EnsureAbility(ctx, again)
	if err != nil || created {
		t.Fatalf("EnsureAbility(existing) = %v, %v", created, err)
	}
	if again.ID != a.ID || again.DisplayName != "知识" {
		t.Errorf("EnsureAbility(existing) did not return stored row: %+v", again)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ModifyAbility(ctx, "knowledge", func(a *models.Ability) error {
				a.CurrentExperience += 10
				return nil
			})
			if err != nil {
				t.Errorf("ModifyAbility() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.GetAbility(ctx, "knowledge")
	if err != nil || got == nil {
		t.Fatalf("GetAbility() = %v, %v", got, err)
	}
	if got.CurrentExperience != 200 {
		t.Errorf("experience = %d, want 200", got.CurrentExperience)
	}

	failing := errors.New("rejected")
	if _, err := repo.ModifyAbility(ctx, "knowledge", func(a *models.Ability) error {
		a.CurrentExperience = 0
		return failing
	}); !errors.Is(err, failing) {
		t.Errorf("ModifyAbility(fn error) = %v", err)
	}
	got, _ = repo.GetAbility(ctx, "knowledge")
	if got.CurrentExperience != 200 {
		t.Errorf("failed modify leaked: experience = %d", got.CurrentExperience)
	}

	if _, err := repo.ModifyAbility(ctx, "missing", func(a *models.Ability) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("ModifyAbility(missing) error = %v, want ErrNotFound", err)
	}

	list, _ := repo.ListAbilities(ctx)
	if len(list) != 1 {
		t.Errorf("ListAbilities() = %d", len(list))
	}
}

func testRewards(t *testing.T, repo Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	rw := &models.Reward{Name: "分数加成", Kind: models.RewardScoreBoost, Value: 15, UnlockCondition: "知识等级达到3级", CreatedAt: now}
	if created, err := repo.EnsureReward(ctx, rw); err != nil || !created {
		t.Fatalf("EnsureReward() = %v, %v", created, err)
	}
	if created, _ := repo.EnsureReward(ctx, &models.Reward{Name: "分数加成", Kind: models.RewardScoreBoost, CreatedAt: now}); created {
		t.Error("EnsureReward() duplicated by name")
	}

	changed, err := repo.UnlockReward(ctx, rw.ID, now)
	if err != nil || !changed {
		t.Fatalf("UnlockReward() = %v, %v", changed, err)
	}
	changed, err = repo.UnlockReward(ctx, rw.ID, now.Add(time.Hour))
	if err != nil || changed {
		t.Errorf("UnlockReward(twice) = %v, %v", changed, err)
	}

	got, _ := repo.GetReward(ctx, rw.ID)
	if !got.IsUnlocked || got.UnlockedAt == nil || !got.UnlockedAt.Equal(now) {
		t.Errorf("reward after unlock: %+v", got)
	}

	if _, err := repo.UnlockReward(ctx, uuid.NewString(), now); !errors.Is(err, ErrNotFound) {
		t.Errorf("UnlockReward(missing) error = %v", err)
	}

	list, _ := repo.ListRewards(ctx)
	if len(list) != 1 {
		t.Errorf("ListRewards() = %d", len(list))
	}
}

func testAchievements(t *testing.T, repo Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	a := &models.Achievement{Name: "初出茅庐", UnlockCondition: "完成1个任务", CreatedAt: now}
	if created, err := repo.EnsureAchievement(ctx, a); err != nil || !created {
		t.Fatalf("EnsureAchievement() = %v, %v", created, err)
	}

	if changed, err := repo.UnlockAchievement(ctx, a.ID, now); err != nil || !changed {
		t.Fatalf("UnlockAchievement() = %v, %v", changed, err)
	}
	if changed, _ := repo.UnlockAchievement(ctx, a.ID, now); changed {
		t.Error("UnlockAchievement() changed twice")
	}

	got, _ := repo.GetAchievement(ctx, a.ID)
	if got == nil || !got.IsUnlocked {
		t.Errorf("achievement after unlock: %+v", got)
	}

	missing, err := repo.GetAchievement(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Errorf("GetAchievement(missing) = %v, %v", missing, err)
	}
}

func testDailyScores(t *testing.T, repo Repository) {
	ctx := context.Background()
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Now().UTC().Truncate(time.Second)

	late := time.Date(2025, 12, 25, 23, 30, 0, 0, loc)
	s := &models.DailyScore{Date: late, TotalScore: 3.5, TaskCount: 2, Level: 2, UpdatedAt: now}
	if err := repo.UpsertDailyScore(ctx, s); err != nil {
		t.Fatalf("UpsertDailyScore() error = %v", err)
	}
	firstID := s.ID

	s2 := &models.DailyScore{Date: late, TotalScore: 1, TaskCount: 3, Level: 1, UpdatedAt: now}
	if err := repo.UpsertDailyScore(ctx, s2); err != nil {
		t.Fatalf("UpsertDailyScore(again) error = %v", err)
	}
	if s2.ID != firstID {
		t.Errorf("upsert changed id: %s != %s", s2.ID, firstID)
	}

	got, err := repo.GetDailyScore(ctx, time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC))
	if err != nil || got == nil {
		t.Fatalf("GetDailyScore() = %v, %v", got, err)
	}
	if got.TotalScore != 1 || got.TaskCount != 3 {
		t.Errorf("GetDailyScore() = %+v", got)
	}

	prev := &models.DailyScore{Date: late.AddDate(0, 0, -1), TotalScore: 2, UpdatedAt: now}
	if err := repo.UpsertDailyScore(ctx, prev); err != nil {
		t.Fatal(err)
	}

	list, err := repo.ListDailyScores(ctx, late.AddDate(0, 0, -7), late)
	if err != nil {
		t.Fatalf("ListDailyScores() error = %v", err)
	}
	if len(list) != 2 || !list[0].Date.Equal(Day(late)) {
		t.Errorf("ListDailyScores() = %d entries", len(list))
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	got := Day(time.Date(2025, 1, 2, 1, 0, 0, 0, loc))
	want := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Day() = %v, want %v", got, want)
	}
}
