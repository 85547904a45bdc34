// Package rewards evaluates unlock conditions of rewards and achievements
// against the current progress and flips satisfied entries to unlocked.
//
// Conditions are short phrases taken from the seed catalog:
//
//	完成第一个任务          at least one completed task
//	完成N个任务            at least N completed tasks
//	连续完成N天任务         a streak of N consecutive days with a completed task
//	知识等级达到N级         the named ability is at level N or above
//	所有能力等级达到N级      every ability is at level N or above
package rewards

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/terra-clan/ability-tracker/internal/abilities"
)

// State is the progress snapshot conditions are checked against
type State struct {
	Levels         map[abilities.Stat]int
	CompletedCount int
	LongestStreak  int
}

// Predicate reports whether a condition holds for a state
type Predicate func(State) bool

var (
	firstTaskPattern    = regexp.MustCompile(`^完成第一个任务$`)
	taskCountPattern    = regexp.MustCompile(`^完成(\d+)个任务$`)
	streakPattern       = regexp.MustCompile(`^连续完成(\d+)天任务$`)
	abilityLevelPattern = regexp.MustCompile(`^(\S+?)等级达到(\d+)级$`)
	allLevelsPattern    = regexp.MustCompile(`^所有能力等级达到(\d+)级$`)
)

// CompileCondition turns a condition phrase into a predicate
func CompileCondition(text string) (Predicate, error) {
	text = strings.TrimSpace(text)

	if firstTaskPattern.MatchString(text) {
		return func(s State) bool { return s.CompletedCount >= 1 }, nil
	}

	if m := taskCountPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", text, err)
		}
		return func(s State) bool { return s.CompletedCount >= n }, nil
	}

	if m := streakPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", text, err)
		}
		return func(s State) bool { return s.LongestStreak >= n }, nil
	}

	// checked before the single-ability form, which would also match it
	if m := allLevelsPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", text, err)
		}
		return func(s State) bool {
			if len(s.Levels) == 0 {
				return false
			}
			for _, level := range s.Levels {
				if level < n {
					return false
				}
			}
			return true
		}, nil
	}

	if m := abilityLevelPattern.FindStringSubmatch(text); m != nil {
		stat, ok := abilities.ParseStat(m[1])
		if !ok {
			return nil, fmt.Errorf("condition %q: unknown ability %q", text, m[1])
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", text, err)
		}
		return func(s State) bool { return s.Levels[stat] >= n }, nil
	}

	return nil, fmt.Errorf("unsupported unlock condition %q", text)
}
