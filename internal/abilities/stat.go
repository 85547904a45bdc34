package abilities

import (
	"fmt"
	"strings"
)

// Stat identifies one of the five progression stats
type Stat string

const (
	Knowledge Stat = "knowledge"
	Charm     Stat = "charm"
	Courage   Stat = "courage"
	Kindness  Stat = "kindness"
	Dexterity Stat = "dexterity"
)

// AllStats lists the stats in display order
var AllStats = []Stat{Knowledge, Charm, Courage, Kindness, Dexterity}

var displayNames = map[Stat]string{
	Knowledge: "知识",
	Charm:     "魅力",
	Courage:   "勇气",
	Kindness:  "体贴",
	Dexterity: "灵巧",
}

// DisplayName returns the user-facing name of the stat
func (s Stat) DisplayName() string {
	return displayNames[s]
}

// IsValid reports whether s is one of the five stats
func (s Stat) IsValid() bool {
	_, ok := displayNames[s]
	return ok
}

// ParseStat accepts a stat name (any case) or its display name
func ParseStat(s string) (Stat, bool) {
	s = strings.TrimSpace(s)
	if st := Stat(strings.ToLower(s)); st.IsValid() {
		return st, true
	}
	for st, name := range displayNames {
		if name == s {
			return st, true
		}
	}
	return "", false
}

// Task categories produced by the classifiers
const (
	CategoryStudy      = "学习"
	CategoryWork       = "工作"
	CategoryRest       = "休息"
	CategorySocial     = "社交"
	CategoryCraft      = "手工"
	CategoryManagement = "管理"
	CategoryOther      = "其他"
)

// ClassifierCategories is the taxonomy offered to the classification providers
var ClassifierCategories = []string{
	CategoryStudy, CategoryWork, CategoryRest, CategorySocial,
	CategoryCraft, CategoryManagement, CategoryOther,
}

var categoryStats = map[string]Stat{
	CategoryStudy:      Knowledge,
	CategoryWork:       Courage,
	CategoryRest:       Kindness,
	CategorySocial:     Charm,
	CategoryCraft:      Dexterity,
	CategoryManagement: Knowledge,
	CategoryOther:      Knowledge,

	// score rule categories
	"整理":     Kindness,
	"矩阵模拟开发": Dexterity,
	"卫生":     Kindness,
	"课外阅读":   Knowledge,
	"刷手机":    Kindness,
	"锻炼":     Courage,
	"开发":     Courage,
	"调研":     Knowledge,
	"沟通":     Charm,
}

// StatForCategory maps a task category to the stat it trains.
// Unknown categories train Knowledge.
func StatForCategory(category string) Stat {
	if st, ok := categoryStats[strings.TrimSpace(category)]; ok {
		return st
	}
	return Knowledge
}

// ValidateCategories returns an error naming every category with no explicit mapping
func ValidateCategories(categories []string) error {
	var missing []string
	for _, c := range categories {
		if _, ok := categoryStats[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("categories without ability mapping: %s", strings.Join(missing, ", "))
	}
	return nil
}
