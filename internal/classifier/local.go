package classifier

import (
	"strings"

	"github.com/terra-clan/ability-tracker/internal/abilities"
	"github.com/terra-clan/ability-tracker/internal/models"
)

type keywordGroup struct {
	keywords  []string
	category  string
	stat      abilities.Stat
	expGain   int
	rationale string
}

// Evaluated in order; on equal confidence the earlier group wins.
var keywordGroups = []keywordGroup{
	{
		keywords:  []string{"学习", "阅读", "研究", "分析", "翻译", "平台", "crm", "系统", "视频翻译"},
		category:  abilities.CategoryStudy,
		stat:      abilities.Knowledge,
		expGain:   15,
		rationale: "涉及学习和认知提升的活动",
	},
	{
		keywords:  []string{"工作", "开发", "修复", "续费", "复购", "同步", "爬虫", "工具开发", "效率提升"},
		category:  abilities.CategoryWork,
		stat:      abilities.Courage,
		expGain:   20,
		rationale: "涉及专业技术和挑战性的工作",
	},
	{
		keywords:  []string{"休息", "吃饭", "洗澡", "看视频", "睡觉"},
		category:  abilities.CategoryRest,
		stat:      abilities.Kindness,
		expGain:   5,
		rationale: "自我照顾和放松的活动",
	},
	{
		keywords:  []string{"会议", "沟通", "交流", "讨论", "社交", "聊天"},
		category:  abilities.CategorySocial,
		stat:      abilities.Charm,
		expGain:   12,
		rationale: "涉及人际交往和沟通的活动",
	},
	{
		keywords:  []string{"制作", "手工", "工具", "开发", "创建", "构建"},
		category:  abilities.CategoryCraft,
		stat:      abilities.Dexterity,
		expGain:   18,
		rationale: "涉及技能操作和制作的活动",
	},
}

const (
	baseConfidence = 0.3
	stepConfidence = 0.2
	maxConfidence  = 0.9
)

// Local is the deterministic keyword classifier
type Local struct {
	groups []keywordGroup
}

// NewLocal creates the keyword classifier with the built-in groups
func NewLocal() *Local {
	return &Local{groups: keywordGroups}
}

// Classify scores every keyword group against the normalized title
func (l *Local) Classify(title string) models.Classification {
	normalized := strings.ToLower(strings.TrimSpace(title))

	best := models.Classification{
		Category:       abilities.CategoryOther,
		AbilityStat:    string(abilities.Knowledge),
		ExperienceGain: 10,
		Confidence:     baseConfidence,
		Rationale:      "未能明确分类的活动",
		Source:         models.SourceLocal,
	}

	for _, g := range l.groups {
		matches := 0
		for _, kw := range g.keywords {
			if strings.Contains(normalized, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}

		confidence := min(maxConfidence, baseConfidence+stepConfidence*float64(matches))
		if confidence > best.Confidence {
			best = models.Classification{
				Category:       g.category,
				AbilityStat:    string(g.stat),
				ExperienceGain: g.expGain,
				Confidence:     confidence,
				Rationale:      g.rationale,
				Source:         models.SourceLocal,
			}
		}
	}

	return best
}

// Suggestions returns quick manual-classification hints for a title
func Suggestions(title string) []string {
	normalized := strings.ToLower(title)
	var out []string

	if strings.Contains(normalized, "学习") || strings.Contains(normalized, "研究") {
		out = append(out, "建议分类为：学习类 - 知识能力")
	}
	if strings.Contains(normalized, "开发") || strings.Contains(normalized, "修复") {
		out = append(out, "建议分类为：工作类 - 勇气能力")
	}
	if strings.Contains(normalized, "休息") || strings.Contains(normalized, "吃饭") {
		out = append(out, "建议分类为：休息类 - 体贴能力")
	}
	if strings.Contains(normalized, "工具") || strings.Contains(normalized, "制作") {
		out = append(out, "建议分类为：手工类 - 灵巧能力")
	}

	return out
}
