package models

import "time"

// Ability is one of the five progression stats.
// Level is derived from CurrentExperience and never set directly by callers.
type Ability struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	DisplayName       string    `json:"displayName"`
	Description       string    `json:"description,omitempty"`
	Icon              string    `json:"icon,omitempty"`
	Color             string    `json:"color,omitempty"`
	CurrentExperience int       `json:"currentExp"`
	Level             int       `json:"level"`
	MaxLevel          int       `json:"maxLevel"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// LevelUp describes the outcome of an experience grant
type LevelUp struct {
	Ability          Ability `json:"ability"`
	LeveledUp        bool    `json:"leveledUp"`
	OldLevel         int     `json:"oldLevel"`
	NewLevel         int     `json:"newLevel"`
	ExperienceGained int     `json:"expGained"`
}

// GrantRequest represents a direct experience grant
type GrantRequest struct {
	Amount int `json:"expGain"`
}
