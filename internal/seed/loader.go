// Package seed loads score rules and the initial ability, reward and
// achievement catalog from YAML.
package seed

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/ability-tracker/internal/abilities"
	"github.com/terra-clan/ability-tracker/internal/models"
	"github.com/terra-clan/ability-tracker/internal/rewards"
	"github.com/terra-clan/ability-tracker/internal/scoring"
)

//go:embed default.yaml
var defaultSeed []byte

// Loader holds the current seed catalog
type Loader struct {
	mu           sync.RWMutex
	rules        []models.ScoreRule
	abilities    []models.Ability
	rewards      []models.Reward
	achievements []models.Achievement
}

// NewLoader creates a loader populated with the built-in seed
func NewLoader() *Loader {
	l := &Loader{}
	if err := l.Load(defaultSeed, "default"); err != nil {
		panic(fmt.Sprintf("invalid built-in seed: %v", err))
	}
	return l
}

// LoadFromFile overlays the sections present in a YAML file.
// Sections the file omits keep their current content.
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return l.Load(data, path)
}

// Load parses and validates data, then replaces every section it defines
func (l *Loader) Load(data []byte, source string) error {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	var (
		rules        []models.ScoreRule
		abilityList  []models.Ability
		rewardList   []models.Reward
		achievements []models.Achievement
		err          error
	)

	if f.ScoreRules != nil {
		if _, err := scoring.NewRuleTable(f.ScoreRules); err != nil {
			return fmt.Errorf("score_rules: %w", err)
		}
		rules = f.ScoreRules
	}
	if f.Abilities != nil {
		if abilityList, err = convertAbilities(f.Abilities); err != nil {
			return fmt.Errorf("abilities: %w", err)
		}
	}
	if f.Rewards != nil {
		if rewardList, err = convertRewards(f.Rewards); err != nil {
			return fmt.Errorf("rewards: %w", err)
		}
	}
	if f.Achievements != nil {
		if achievements, err = convertAchievements(f.Achievements); err != nil {
			return fmt.Errorf("achievements: %w", err)
		}
	}

	l.mu.Lock()
	if rules != nil {
		l.rules = rules
	}
	if abilityList != nil {
		l.abilities = abilityList
	}
	if rewardList != nil {
		l.rewards = rewardList
	}
	if achievements != nil {
		l.achievements = achievements
	}
	l.mu.Unlock()

	slog.Info("seed loaded",
		"source", source,
		"score_rules", len(f.ScoreRules),
		"abilities", len(f.Abilities),
		"rewards", len(f.Rewards),
		"achievements", len(f.Achievements),
	)
	return nil
}

// ScoreRules returns a copy of the configured rules
func (l *Loader) ScoreRules() []models.ScoreRule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.ScoreRule(nil), l.rules...)
}

// RuleTable builds the lookup table for the configured rules.
// Rules are validated on load, so this cannot fail.
func (l *Loader) RuleTable() *scoring.RuleTable {
	return scoring.MustRuleTable(l.ScoreRules())
}

// Abilities returns a copy of the seed abilities
func (l *Loader) Abilities() []models.Ability {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Ability(nil), l.abilities...)
}

// Rewards returns a copy of the seed rewards
func (l *Loader) Rewards() []models.Reward {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Reward(nil), l.rewards...)
}

// Achievements returns a copy of the seed achievements
func (l *Loader) Achievements() []models.Achievement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Achievement(nil), l.achievements...)
}

func convertAbilities(in []abilityEntry) ([]models.Ability, error) {
	seen := make(map[abilities.Stat]bool)
	out := make([]models.Ability, 0, len(in))

	for i, e := range in {
		stat, ok := abilities.ParseStat(e.Name)
		if !ok {
			return nil, fmt.Errorf("entry %d: unknown ability %q", i, e.Name)
		}
		if seen[stat] {
			return nil, fmt.Errorf("entry %d: duplicate ability %q", i, stat)
		}
		seen[stat] = true

		a := abilities.DefaultAbility(stat)
		if e.DisplayName != "" {
			a.DisplayName = e.DisplayName
		}
		if e.MaxLevel > 0 {
			a.MaxLevel = e.MaxLevel
		}
		a.Description = e.Description
		a.Icon = e.Icon
		a.Color = e.Color
		out = append(out, a)
	}
	return out, nil
}

func convertRewards(in []rewardEntry) ([]models.Reward, error) {
	seen := make(map[string]bool)
	out := make([]models.Reward, 0, len(in))

	for i, e := range in {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("entry %d: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("entry %d: duplicate reward %q", i, name)
		}
		seen[name] = true

		kind := models.RewardKind(strings.ToUpper(e.Type))
		if !kind.IsValid() {
			return nil, fmt.Errorf("reward %q: unknown type %q", name, e.Type)
		}
		if err := checkCondition(e.UnlockCondition); err != nil {
			return nil, fmt.Errorf("reward %q: %w", name, err)
		}

		out = append(out, models.Reward{
			Name:            name,
			Description:     e.Description,
			Kind:            kind,
			Value:           e.Value,
			Icon:            e.Icon,
			IsUnlocked:      e.Unlocked,
			UnlockCondition: strings.TrimSpace(e.UnlockCondition),
		})
	}
	return out, nil
}

func convertAchievements(in []achievementEntry) ([]models.Achievement, error) {
	seen := make(map[string]bool)
	out := make([]models.Achievement, 0, len(in))

	for i, e := range in {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("entry %d: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("entry %d: duplicate achievement %q", i, name)
		}
		seen[name] = true

		if err := checkCondition(e.UnlockCondition); err != nil {
			return nil, fmt.Errorf("achievement %q: %w", name, err)
		}

		out = append(out, models.Achievement{
			Name:            name,
			Description:     e.Description,
			Icon:            e.Icon,
			IsUnlocked:      e.Unlocked,
			UnlockCondition: strings.TrimSpace(e.UnlockCondition),
		})
	}
	return out, nil
}

// checkCondition rejects unlock conditions the evaluator cannot compile.
// An empty condition marks an entry that is only unlocked by hand.
func checkCondition(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, err := rewards.CompileCondition(text)
	return err
}

// --- YAML file structs ---

type seedFile struct {
	ScoreRules   []models.ScoreRule `yaml:"score_rules"`
	Abilities    []abilityEntry     `yaml:"abilities"`
	Rewards      []rewardEntry      `yaml:"rewards"`
	Achievements []achievementEntry `yaml:"achievements"`
}

type abilityEntry struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Color       string `yaml:"color"`
	MaxLevel    int    `yaml:"max_level"`
}

type rewardEntry struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Type            string `yaml:"type"`
	Value           int    `yaml:"value"`
	Icon            string `yaml:"icon"`
	Unlocked        bool   `yaml:"unlocked"`
	UnlockCondition string `yaml:"unlock_condition"`
}

type achievementEntry struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Icon            string `yaml:"icon"`
	Unlocked        bool   `yaml:"unlocked"`
	UnlockCondition string `yaml:"unlock_condition"`
}
