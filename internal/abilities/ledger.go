// Package abilities holds the five progression stats and the experience ledger.
package abilities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/terra-clan/ability-tracker/internal/models"
)

const (
	// ExperiencePerLevel is the flat experience needed for each level
	ExperiencePerLevel = 100

	// DefaultMaxLevel caps seeded abilities
	DefaultMaxLevel = 10
)

// ErrNegativeExperience is returned for grants below zero
var ErrNegativeExperience = errors.New("experience amount must be non-negative")

// Store performs an isolated read-modify-write of one ability
type Store interface {
	ModifyAbility(ctx context.Context, name string, fn func(*models.Ability) error) (*models.Ability, error)
}

// LevelFor returns min(exp/100 + 1, maxLevel)
func LevelFor(experience, maxLevel int) int {
	if maxLevel < 1 {
		maxLevel = 1
	}
	if experience < 0 {
		experience = 0
	}
	level := experience/ExperiencePerLevel + 1
	if level > maxLevel {
		return maxLevel
	}
	return level
}

// Apply adds amount to the ability and recomputes its level.
// The level is always derived, whatever value the input carried.
func Apply(a models.Ability, amount int) (models.Ability, models.LevelUp, error) {
	if amount < 0 {
		return a, models.LevelUp{}, ErrNegativeExperience
	}

	oldLevel := LevelFor(a.CurrentExperience, a.MaxLevel)
	a.CurrentExperience += amount
	a.Level = LevelFor(a.CurrentExperience, a.MaxLevel)

	return a, models.LevelUp{
		Ability:          a,
		LeveledUp:        a.Level > oldLevel,
		OldLevel:         oldLevel,
		NewLevel:         a.Level,
		ExperienceGained: amount,
	}, nil
}

// Ledger grants experience through a Store
type Ledger struct {
	store Store
}

// NewLedger creates a ledger backed by store
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Grant adds experience to the named stat inside a single isolated update
func (l *Ledger) Grant(ctx context.Context, stat Stat, amount int) (*models.LevelUp, error) {
	if !stat.IsValid() {
		return nil, fmt.Errorf("unknown ability stat %q", stat)
	}
	if amount < 0 {
		return nil, ErrNegativeExperience
	}

	var result models.LevelUp
	updated, err := l.store.ModifyAbility(ctx, string(stat), func(a *models.Ability) error {
		next, lu, err := Apply(*a, amount)
		if err != nil {
			return err
		}
		next.UpdatedAt = time.Now()
		*a = next
		result = lu
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("grant %d exp to %s: %w", amount, stat, err)
	}
	result.Ability = *updated

	if result.LeveledUp {
		slog.Info("ability leveled up",
			"ability", stat,
			"old_level", result.OldLevel,
			"new_level", result.NewLevel,
			"experience", updated.CurrentExperience,
		)
	}

	return &result, nil
}

// DefaultAbility returns the seed record for a stat
func DefaultAbility(stat Stat) models.Ability {
	return models.Ability{
		Name:        string(stat),
		DisplayName: stat.DisplayName(),
		Level:       1,
		MaxLevel:    DefaultMaxLevel,
	}
}
