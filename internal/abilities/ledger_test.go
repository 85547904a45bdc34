package abilities

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/terra-clan/ability-tracker/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	abilities map[string]*models.Ability
}

func newFakeStore() *fakeStore {
	s := &fakeStore{abilities: make(map[string]*models.Ability)}
	for _, st := range AllStats {
		a := DefaultAbility(st)
		s.abilities[a.Name] = &a
	}
	return s
}

func (s *fakeStore) ModifyAbility(ctx context.Context, name string, fn func(*models.Ability) error) (*models.Ability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.abilities[name]
	if !ok {
		return nil, fmt.Errorf("ability %s not found", name)
	}
	next := *a
	if err := fn(&next); err != nil {
		return nil, err
	}
	*a = next
	out := next
	return &out, nil
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		exp, max, want int
	}{
		{0, 10, 1},
		{99, 10, 1},
		{100, 10, 2},
		{250, 10, 3},
		{899, 10, 9},
		{900, 10, 10},
		{5000, 10, 10},
		{50, 0, 1},
		{-10, 10, 1},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.exp, tt.max); got != tt.want {
			t.Errorf("LevelFor(%d, %d)=%d, want %d", tt.exp, tt.max, got, tt.want)
		}
	}
}

func TestApply(t *testing.T) {
	a := DefaultAbility(Knowledge)
	a.CurrentExperience = 95
	a.Level = 7 // stale, must be recomputed

	next, lu, err := Apply(a, 10)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.CurrentExperience != 105 || next.Level != 2 {
		t.Fatalf("got exp=%d level=%d, want 105/2", next.CurrentExperience, next.Level)
	}
	if !lu.LeveledUp || lu.OldLevel != 1 || lu.NewLevel != 2 || lu.ExperienceGained != 10 {
		t.Fatalf("unexpected level up: %+v", lu)
	}

	if _, _, err := Apply(a, -1); !errors.Is(err, ErrNegativeExperience) {
		t.Fatalf("expected ErrNegativeExperience, got %v", err)
	}
}

func TestApplyClampsAtMaxLevel(t *testing.T) {
	a := DefaultAbility(Courage)
	a.CurrentExperience = 950
	a.Level = 10

	next, lu, err := Apply(a, 300)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.CurrentExperience != 1250 {
		t.Fatalf("experience should keep accumulating, got %d", next.CurrentExperience)
	}
	if next.Level != 10 || lu.LeveledUp {
		t.Fatalf("level should stay clamped: %+v", lu)
	}
}

func TestApplyNeverDecreases(t *testing.T) {
	a := DefaultAbility(Charm)
	prevExp, prevLevel := a.CurrentExperience, a.Level
	for _, amount := range []int{0, 5, 25, 100, 0, 333} {
		var err error
		a, _, err = Apply(a, amount)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if a.CurrentExperience < prevExp || a.Level < prevLevel {
			t.Fatalf("decrease after +%d: exp %d->%d level %d->%d", amount, prevExp, a.CurrentExperience, prevLevel, a.Level)
		}
		if a.Level != LevelFor(a.CurrentExperience, a.MaxLevel) {
			t.Fatalf("level invariant broken: %+v", a)
		}
		prevExp, prevLevel = a.CurrentExperience, a.Level
	}
}

func TestLedgerGrantConcurrent(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Grant(ctx, Dexterity, 10); err != nil {
				t.Errorf("Grant: %v", err)
			}
		}()
	}
	wg.Wait()

	a := store.abilities[string(Dexterity)]
	if a.CurrentExperience != 500 {
		t.Fatalf("experience=%d, want 500", a.CurrentExperience)
	}
	if a.Level != 6 {
		t.Fatalf("level=%d, want 6", a.Level)
	}
}

func TestLedgerGrantRejectsInvalid(t *testing.T) {
	ledger := NewLedger(newFakeStore())
	if _, err := ledger.Grant(context.Background(), Stat("luck"), 10); err == nil {
		t.Fatal("expected error for unknown stat")
	}
	if _, err := ledger.Grant(context.Background(), Knowledge, -5); !errors.Is(err, ErrNegativeExperience) {
		t.Fatalf("expected ErrNegativeExperience, got %v", err)
	}
}

func TestParseStat(t *testing.T) {
	tests := map[string]Stat{
		"knowledge": Knowledge,
		"Charm":     Charm,
		"勇气":        Courage,
		"体贴":        Kindness,
		" 灵巧 ":      Dexterity,
	}
	for in, want := range tests {
		got, ok := ParseStat(in)
		if !ok || got != want {
			t.Errorf("ParseStat(%q)=%q,%v want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseStat("luck"); ok {
		t.Error("ParseStat(luck) should fail")
	}
}

func TestStatForCategory(t *testing.T) {
	if got := StatForCategory(CategorySocial); got != Charm {
		t.Errorf("social -> %q, want charm", got)
	}
	if got := StatForCategory("something new"); got != Knowledge {
		t.Errorf("unknown -> %q, want knowledge", got)
	}
	if err := ValidateCategories(ClassifierCategories); err != nil {
		t.Errorf("classifier taxonomy must be fully mapped: %v", err)
	}
	if err := ValidateCategories([]string{"开发", "潜水"}); err == nil {
		t.Error("expected unmapped category error")
	}
}
