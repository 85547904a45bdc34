package models

import "time"

// RewardKind is the effect category of a reward
type RewardKind string

const (
	RewardExperienceBoost RewardKind = "EXP_BOOST"
	RewardScoreBoost      RewardKind = "SCORE_BOOST"
	RewardTimeBoost       RewardKind = "TIME_BOOST"
	RewardSpecialItem     RewardKind = "SPECIAL_ITEM"
)

// IsValid reports whether k is a known reward kind
func (k RewardKind) IsValid() bool {
	switch k {
	case RewardExperienceBoost, RewardScoreBoost, RewardTimeBoost, RewardSpecialItem:
		return true
	default:
		return false
	}
}

// Reward unlocks once its condition holds. IsUnlocked only moves false -> true.
type Reward struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Kind            RewardKind `json:"type"`
	Value           int        `json:"value"`
	Icon            string     `json:"icon,omitempty"`
	IsUnlocked      bool       `json:"isUnlocked"`
	UnlockCondition string     `json:"unlockCondition"`
	UnlockedAt      *time.Time `json:"unlockedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Achievement is a badge with a free-text unlock condition
type Achievement struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Icon            string     `json:"icon,omitempty"`
	IsUnlocked      bool       `json:"isUnlocked"`
	UnlockCondition string     `json:"unlockCondition"`
	UnlockedAt      *time.Time `json:"unlockedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Unlocks lists entries flipped to unlocked by one evaluation
type Unlocks struct {
	RewardIDs      []string `json:"rewardIds"`
	AchievementIDs []string `json:"achievementIds"`
}

// Empty reports whether nothing was unlocked
func (u Unlocks) Empty() bool {
	return len(u.RewardIDs) == 0 && len(u.AchievementIDs) == 0
}

// Merge appends the ids of other to u
func (u *Unlocks) Merge(other Unlocks) {
	u.RewardIDs = append(u.RewardIDs, other.RewardIDs...)
	u.AchievementIDs = append(u.AchievementIDs, other.AchievementIDs...)
}
