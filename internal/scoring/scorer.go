// Package scoring computes task scores from the static per-category rule table.
package scoring

import (
	"fmt"
	"strings"

	"github.com/terra-clan/ability-tracker/internal/models"
)

// Title markers that scale a task's score. All matching markers apply.
var typeMultipliers = []struct {
	marker string
	factor float64
}{
	{"ddl当日", 1.2},  // same-day deadline
	{"赚钱", 1.2},     // income-generating
	{"当日突发", 0.8},   // same-day emergent
	{"人情", 1.2},     // favor / social obligation
	{"不紧急但重要", 1.4}, // important but not urgent
}

// RuleTable is a read-only lookup of score rules keyed by category
type RuleTable struct {
	rules map[string]models.ScoreRule
	order []string
}

// NewRuleTable builds a table, applying rule defaults and rejecting duplicates
func NewRuleTable(rules []models.ScoreRule) (*RuleTable, error) {
	t := &RuleTable{rules: make(map[string]models.ScoreRule, len(rules))}
	for _, r := range rules {
		r.Category = strings.TrimSpace(r.Category)
		if r.Category == "" {
			return nil, fmt.Errorf("score rule category is required")
		}
		if _, dup := t.rules[r.Category]; dup {
			return nil, fmt.Errorf("duplicate score rule for category %q", r.Category)
		}
		if r.TimeFactor == 0 {
			r.TimeFactor = 1.0
		}
		if r.Priority == 0 {
			r.Priority = 1
		}
		t.rules[r.Category] = r
		t.order = append(t.order, r.Category)
	}
	return t, nil
}

// MustRuleTable is NewRuleTable for static tables known to be valid
func MustRuleTable(rules []models.ScoreRule) *RuleTable {
	t, err := NewRuleTable(rules)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the rule for a category
func (t *RuleTable) Lookup(category string) (models.ScoreRule, bool) {
	r, ok := t.rules[category]
	return r, ok
}

// Rules returns the rules in their declaration order
func (t *RuleTable) Rules() []models.ScoreRule {
	out := make([]models.ScoreRule, 0, len(t.order))
	for _, c := range t.order {
		out = append(out, t.rules[c])
	}
	return out
}

// Categories returns the categories that have a rule
func (t *RuleTable) Categories() []string {
	return append([]string(nil), t.order...)
}

// Score computes a task's score. Categories without a rule score 0.
func Score(task models.Task, table *RuleTable) float64 {
	rule, ok := table.Lookup(task.Category)
	if !ok {
		return 0
	}

	base := (float64(task.DurationMinutes) / 60) * rule.BaseScore
	completion := float64(task.Completion) / 100
	timeFactor := TimeFactor(task.PlannedMinutes, task.DurationMinutes)

	return base * completion * timeFactor * TypeFactor(task.Title)
}

// TimeFactor rates the actual duration against the expected one.
// A non-positive expectation means no plan was recorded and yields 1.
func TimeFactor(expected, actual int) float64 {
	if expected <= 0 || actual <= expected {
		return 1
	}
	overrun := float64(actual) / float64(expected)
	switch {
	case overrun <= 1.2:
		return 0.5
	case overrun <= 1.5:
		return 0.2
	default:
		return -1
	}
}

// TypeFactor multiplies together the factors of every marker found in title
func TypeFactor(title string) float64 {
	factor := 1.0
	for _, m := range typeMultipliers {
		if strings.Contains(title, m.marker) {
			factor *= m.factor
		}
	}
	return factor
}

// Daily aggregates a day's tasks. Level moves +1 for every positively scored
// task and -1 for every negatively scored one.
func Daily(tasks []models.Task, table *RuleTable) models.DailyScore {
	var ds models.DailyScore
	for _, t := range tasks {
		s := Score(t, table)
		ds.TotalScore += s
		switch {
		case s > 0:
			ds.Level++
		case s < 0:
			ds.Level--
		}
	}
	ds.TaskCount = len(tasks)
	return ds
}
