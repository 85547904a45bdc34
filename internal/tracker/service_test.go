package tracker

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/terra-clan/ability-tracker/internal/abilities"
	"github.com/terra-clan/ability-tracker/internal/models"
	"github.com/terra-clan/ability-tracker/internal/seed"
	"github.com/terra-clan/ability-tracker/internal/storage"
)

var shanghai = time.FixedZone("CST", 8*3600)

func newTestService(t *testing.T) (*Service, *storage.MemoryRepository) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	catalog := seed.NewLoader()
	svc := NewService(repo, catalog.RuleTable(), catalog, shanghai)
	svc.now = func() time.Time { return time.Date(2025, 8, 31, 20, 0, 0, 0, shanghai) }

	ctx := context.Background()
	if _, err := svc.SeedAbilities(ctx); err != nil {
		t.Fatalf("SeedAbilities() error = %v", err)
	}
	if _, err := svc.SeedRewards(ctx); err != nil {
		t.Fatalf("SeedRewards() error = %v", err)
	}
	return svc, repo
}

func createReq(title, category string, start time.Time, minutes int) models.CreateTaskRequest {
	return models.CreateTaskRequest{
		Title:     title,
		StartTime: start,
		EndTime:   start.Add(time.Duration(minutes) * time.Minute),
		Category:  category,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func ability(t *testing.T, repo storage.Repository, stat abilities.Stat) *models.Ability {
	t.Helper()
	a, err := repo.GetAbility(context.Background(), string(stat))
	if err != nil || a == nil {
		t.Fatalf("GetAbility(%s) = %v, %v", stat, a, err)
	}
	return a
}

func TestSeedIsIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.SeedAbilities(ctx)
	if err != nil || created != 0 {
		t.Errorf("second SeedAbilities() = %d, %v", created, err)
	}
	created, err = svc.SeedRewards(ctx)
	if err != nil || created != 0 {
		t.Errorf("second SeedRewards() = %d, %v", created, err)
	}

	list, _ := repo.ListAbilities(ctx)
	if len(list) != 5 || list[0].Name != string(abilities.Knowledge) {
		t.Errorf("abilities not listed in seed order")
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Date(2025, 8, 31, 9, 0, 0, 0, shanghai)

	task, err := svc.CreateTask(context.Background(), createReq("Deep Work", "", start, 135))
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if task.ID == "" {
		t.Error("expected an ID")
	}
	if task.Status != models.TaskPending || task.Completion != 0 || task.Score != 0 {
		t.Errorf("unexpected initial state: %+v", task)
	}
	if task.DurationMinutes != 135 || task.PlannedMinutes != 135 {
		t.Errorf("durations = %d/%d", task.DurationMinutes, task.PlannedMinutes)
	}
	if task.Category != abilities.CategoryOther || task.AbilityStat != string(abilities.Knowledge) {
		t.Errorf("category/stat = %s/%s", task.Category, task.AbilityStat)
	}
	if task.ExperienceGain != DefaultExperienceGain || task.ExperienceGranted {
		t.Errorf("experience = %d granted=%v", task.ExperienceGain, task.ExperienceGranted)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Date(2025, 8, 31, 9, 0, 0, 0, shanghai)

	tests := map[string]models.CreateTaskRequest{
		"empty title": createReq("  ", "开发", start, 60),
		"no times":    {Title: "x"},
		"end before":  createReq("x", "开发", start, -30),
		"bad stat": {
			Title: "x", StartTime: start, EndTime: start.Add(time.Hour), AbilityStat: "luck",
		},
		"negative exp": {
			Title: "x", StartTime: start, EndTime: start.Add(time.Hour), ExperienceGain: -1,
		},
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateTask(context.Background(), req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCompleteTask(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	start := time.Date(2025, 8, 31, 9, 0, 0, 0, shanghai)

	task, err := svc.CreateTask(ctx, createReq("开发接口", "开发", start, 60))
	if err != nil {
		t.Fatal(err)
	}

	done, progress, err := svc.CompleteTask(ctx, task.ID, models.CompleteTaskRequest{})
	if err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}

	if done.Status != models.TaskCompleted || done.Completion != 100 {
		t.Errorf("task = %+v", done)
	}
	if !approx(done.Score, 2) {
		t.Errorf("score = %v, want 2", done.Score)
	}
	if !done.ExperienceGranted {
		t.Error("expected experience to be marked granted")
	}
	if progress.LevelUp == nil || progress.LevelUp.ExperienceGained != DefaultExperienceGain {
		t.Fatalf("progress = %+v", progress)
	}
	if got := ability(t, repo, abilities.Courage).CurrentExperience; got != DefaultExperienceGain {
		t.Errorf("courage exp = %d", got)
	}
	if len(progress.Unlocks.AchievementIDs) != 1 {
		t.Errorf("expected the first-task achievement, got %+v", progress.Unlocks)
	}

	_, again, err := svc.CompleteTask(ctx, task.ID, models.CompleteTaskRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if again.LevelUp != nil {
		t.Error("experience must be credited only once")
	}
	if got := ability(t, repo, abilities.Courage).CurrentExperience; got != DefaultExperienceGain {
		t.Errorf("courage exp after second completion = %d", got)
	}
}

func TestCompleteTaskOverrun(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	start := time.Date(2025, 8, 31, 9, 0, 0, 0, shanghai)

	task, err := svc.CreateTask(ctx, createReq("开发", "开发", start, 60))
	if err != nil {
		t.Fatal(err)
	}

	actual := 66
	done, _, err := svc.CompleteTask(ctx, task.ID, models.CompleteTaskRequest{DurationMinutes: &actual})
	if err != nil {
		t.Fatal(err)
	}
	// 66/60 * 2 * 1.0 * 0.5
	if !approx(done.Score, 1.1) {
		t.Errorf("score = %v, want 1.1", done.Score)
	}
}

func TestCompleteTaskErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.CompleteTask(ctx, "missing", models.CompleteTaskRequest{}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}

	start := time.Date(2025, 8, 31, 9, 0, 0, 0, shanghai)
	task, _ := svc.CreateTask(ctx, createReq("x", "开发", start, 30))

	bad := 120
	var ve *ValidationError
	if _, _, err := svc.CompleteTask(ctx, task.ID, models.CompleteTaskRequest{Completion: &bad}); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for completion, got %v", err)
	}

	cancelled := models.TaskCancelled
	if _, err := svc.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{Status: &cancelled}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.CompleteTask(ctx, task.ID, models.CompleteTaskRequest{}); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for cancelled task, got %v", err)
	}
}

func TestUpdateTaskRescores(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	start := time.Date(2025, 8, 31, 9, 0, 0, 0, shanghai)

	task, _ := svc.CreateTask(ctx, createReq("调研", "调研", start, 120))

	half := 50
	updated, err := svc.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{Completion: &half})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if !approx(updated.Score, 1) {
		t.Errorf("score = %v, want 1", updated.Score)
	}

	category := "开发"
	updated, _ = svc.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{Category: &category})
	if !approx(updated.Score, 2) {
		t.Errorf("score after category change = %v, want 2", updated.Score)
	}

	completed := models.TaskCompleted
	updated, err = svc.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{Status: &completed})
	if err != nil {
		t.Fatal(err)
	}
	if !updated.ExperienceGranted {
		t.Error("completing through update should credit experience")
	}
	// recategorized from 调研 to 开发, so courage is trained instead of knowledge
	if updated.AbilityStat != string(abilities.Courage) {
		t.Errorf("abilityStat = %q, want courage", updated.AbilityStat)
	}
	if got := ability(t, repo, abilities.Courage).CurrentExperience; got != DefaultExperienceGain {
		t.Errorf("courage exp = %d", got)
	}
	if got := ability(t, repo, abilities.Knowledge).CurrentExperience; got != 0 {
		t.Errorf("knowledge exp = %d, want 0", got)
	}

	bad := "NOPE"
	status := models.TaskStatus(bad)
	var ve *ValidationError
	if _, err := svc.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{Status: &status}); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}

	if _, err := svc.UpdateTask(ctx, "missing", models.UpdateTaskRequest{}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestUpdateTaskAbilityStat(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	start := time.Date(2025, 8, 31, 9, 0, 0, 0, shanghai)

	task, err := svc.CreateTask(ctx, createReq("沟通需求", "沟通", start, 30))
	if err != nil {
		t.Fatal(err)
	}
	if task.AbilityStat != string(abilities.Charm) {
		t.Fatalf("abilityStat = %q, want charm", task.AbilityStat)
	}

	// an explicit stat wins over the one derived from the new category
	category, stat := "锻炼", "灵巧"
	updated, err := svc.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{Category: &category, AbilityStat: &stat})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if updated.AbilityStat != string(abilities.Dexterity) {
		t.Errorf("abilityStat = %q, want dexterity", updated.AbilityStat)
	}

	// resending the same category keeps the explicit stat
	updated, _ = svc.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{Category: &category})
	if updated.AbilityStat != string(abilities.Dexterity) {
		t.Errorf("abilityStat after same category = %q, want dexterity", updated.AbilityStat)
	}

	bad := "luck"
	var ve *ValidationError
	if _, err := svc.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{AbilityStat: &bad}); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

// flakyRepository fails selected writes of the wrapped memory repository
type flakyRepository struct {
	*storage.MemoryRepository
	failModify bool
	failUpdate bool
}

var errStorage = errors.New("storage unavailable")

func (r *flakyRepository) ModifyAbility(ctx context.Context, name string, fn func(*models.Ability) error) (*models.Ability, error) {
	if r.failModify {
		return nil, errStorage
	}
	return r.MemoryRepository.ModifyAbility(ctx, name, fn)
}

func (r *flakyRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	if r.failUpdate {
		return errStorage
	}
	return r.MemoryRepository.UpdateTask(ctx, task)
}

func TestAwardTaskExperienceFailures(t *testing.T) {
	repo := &flakyRepository{MemoryRepository: storage.NewMemoryRepository()}
	catalog := seed.NewLoader()
	svc := NewService(repo, catalog.RuleTable(), catalog, shanghai)
	ctx := context.Background()
	if _, err := svc.SeedAbilities(ctx); err != nil {
		t.Fatal(err)
	}

	start := time.Date(2025, 8, 31, 9, 0, 0, 0, shanghai)
	task, err := svc.CreateTask(ctx, createReq("开发接口", "开发", start, 60))
	if err != nil {
		t.Fatal(err)
	}

	// flag write fails: nothing is credited
	repo.failUpdate = true
	if _, err := svc.AwardTaskExperience(ctx, task.ID); !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	repo.failUpdate = false
	if got := ability(t, repo, abilities.Courage).CurrentExperience; got != 0 {
		t.Errorf("courage exp after failed flag write = %d, want 0", got)
	}

	// grant fails: the flag is reset so a later attempt still credits
	repo.failModify = true
	if _, err := svc.AwardTaskExperience(ctx, task.ID); !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	repo.failModify = false
	stored, _ := svc.GetTask(ctx, task.ID)
	if stored.ExperienceGranted {
		t.Error("flag should be reset after a failed grant")
	}

	lu, err := svc.AwardTaskExperience(ctx, task.ID)
	if err != nil || lu == nil {
		t.Fatalf("AwardTaskExperience() = %v, %v", lu, err)
	}
	if lu, _ := svc.AwardTaskExperience(ctx, task.ID); lu != nil {
		t.Error("second award should be a no-op")
	}
	if got := ability(t, repo, abilities.Courage).CurrentExperience; got != DefaultExperienceGain {
		t.Errorf("courage exp = %d, want %d", got, DefaultExperienceGain)
	}
}

func TestDeleteTask(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	start := time.Date(2025, 8, 31, 9, 0, 0, 0, shanghai)

	task, _ := svc.CreateTask(ctx, createReq("x", "开发", start, 30))
	if err := svc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if err := svc.DeleteTask(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := svc.GetTask(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestGrantExperience(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	progress, err := svc.GrantExperience(ctx, "知识", 250)
	if err != nil {
		t.Fatalf("GrantExperience() error = %v", err)
	}
	if !progress.LevelUp.LeveledUp || progress.LevelUp.OldLevel != 1 || progress.LevelUp.NewLevel != 3 {
		t.Errorf("level up = %+v", progress.LevelUp)
	}
	if len(progress.Unlocks.RewardIDs) != 1 {
		t.Errorf("expected the knowledge reward to unlock, got %+v", progress.Unlocks)
	}

	if _, err := svc.GrantExperience(ctx, "luck", 10); !errors.Is(err, ErrAbilityNotFound) {
		t.Errorf("expected ErrAbilityNotFound, got %v", err)
	}
	var ve *ValidationError
	if _, err := svc.GrantExperience(ctx, "charm", -5); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestGrantExperienceUnseeded(t *testing.T) {
	catalog := seed.NewLoader()
	svc := NewService(storage.NewMemoryRepository(), catalog.RuleTable(), catalog, shanghai)
	if _, err := svc.GrantExperience(context.Background(), "charm", 5); !errors.Is(err, ErrAbilityNotFound) {
		t.Errorf("expected ErrAbilityNotFound, got %v", err)
	}
}

func TestManualUnlock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rewardList, achievementList, err := svc.ListRewards(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rewardList) != 4 || len(achievementList) != 5 {
		t.Fatalf("got %d rewards, %d achievements", len(rewardList), len(achievementList))
	}

	locked := rewardList[1]
	r, err := svc.UnlockReward(ctx, locked.ID)
	if err != nil || !r.IsUnlocked || r.UnlockedAt == nil {
		t.Fatalf("UnlockReward() = %+v, %v", r, err)
	}
	first := *r.UnlockedAt

	r, err = svc.UnlockReward(ctx, locked.ID)
	if err != nil || !r.UnlockedAt.Equal(first) {
		t.Errorf("second unlock changed state: %+v, %v", r, err)
	}

	if _, err := svc.UnlockReward(ctx, "missing"); !errors.Is(err, ErrRewardNotFound) {
		t.Errorf("expected ErrRewardNotFound, got %v", err)
	}
	if _, err := svc.UnlockAchievement(ctx, "missing"); !errors.Is(err, ErrAchievementNotFound) {
		t.Errorf("expected ErrAchievementNotFound, got %v", err)
	}

	a, err := svc.UnlockAchievement(ctx, achievementList[4].ID)
	if err != nil || !a.IsUnlocked {
		t.Errorf("UnlockAchievement() = %+v, %v", a, err)
	}
}

func TestDailyScore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	day := time.Date(2025, 8, 31, 0, 0, 0, 0, shanghai)

	dev, _ := svc.CreateTask(ctx, createReq("开发", "开发", day.Add(9*time.Hour), 60))
	phone, _ := svc.CreateTask(ctx, createReq("刷手机", "刷手机", day.Add(22*time.Hour), 30))
	// next day, excluded
	svc.CreateTask(ctx, createReq("开发", "开发", day.Add(25*time.Hour), 60))

	if _, _, err := svc.CompleteTask(ctx, dev.ID, models.CompleteTaskRequest{}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.CompleteTask(ctx, phone.ID, models.CompleteTaskRequest{}); err != nil {
		t.Fatal(err)
	}

	ds, err := svc.DailyScore(ctx, day.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("DailyScore() error = %v", err)
	}
	// 2 + (0.5 * -2)
	if !approx(ds.TotalScore, 1) || ds.TaskCount != 2 || ds.Level != 0 {
		t.Errorf("daily score = %+v", ds)
	}

	again, _ := svc.DailyScore(ctx, day)
	if again.ID != ds.ID {
		t.Error("daily score should be upserted by date")
	}

	list, err := svc.ListDailyScores(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("ListDailyScores() = %d entries", len(list))
	}

	var ve *ValidationError
	if _, err := svc.ListDailyScores(ctx, 0); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
