package classifier

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/terra-clan/ability-tracker/internal/abilities"
	"github.com/terra-clan/ability-tracker/internal/models"
)

const (
	minRemoteExp     = 5
	maxRemoteExp     = 25
	defaultRemoteExp = 10

	defaultConfidence = 0.5
	defaultRationale  = "AI分类结果"
)

// BuildPrompt renders the classification instruction for a title
func BuildPrompt(title string) string {
	var b strings.Builder
	b.WriteString("请分析以下任务标题，并按照P5R风格的五维能力系统进行分类。\n\n")
	b.WriteString("任务标题：")
	b.WriteString(title)
	b.WriteString(`

请从以下分类中选择最合适的：
1. 知识类 - 学习、阅读、研究、分析、翻译等活动
2. 魅力类 - 社交、沟通、交流、讨论等活动
3. 勇气类 - 工作、开发、修复、挑战性任务等
4. 体贴类 - 休息、照顾、帮助他人等活动
5. 灵巧类 - 手工、制作、工具开发、技能操作等

请以JSON格式返回结果，包含以下字段：
- taskType: 任务类型（学习、工作、休息、社交、手工、管理、其他）
- category: 对应能力（知识、魅力、勇气、体贴、灵巧）
- expGain: 经验值（5-25之间）
- confidence: 置信度（0.1-1.0之间）
- reasoning: 分类理由（中文）

示例输出：
{
  "taskType": "工作",
  "category": "勇气",
  "expGain": 20,
  "confidence": 0.85,
  "reasoning": "这是一个技术开发任务，需要面对挑战和解决问题"
}`)
	return b.String()
}

// parsePayload coerces the model's JSON answer into a classification.
// Missing or unusable fields take defaults; numbers are clamped.
func parsePayload(content string) (models.Classification, error) {
	content = stripFences(content)
	if !gjson.Valid(content) {
		return models.Classification{}, remoteErr(ReasonPayload, errors.New("content is not valid JSON"))
	}
	doc := gjson.Parse(content)
	if !doc.IsObject() {
		return models.Classification{}, remoteErr(ReasonPayload, errors.New("content is not a JSON object"))
	}

	cls := models.Classification{
		Category:       strings.TrimSpace(doc.Get("taskType").String()),
		ExperienceGain: int(doc.Get("expGain").Int()),
		Confidence:     doc.Get("confidence").Float(),
		Rationale:      strings.TrimSpace(doc.Get("reasoning").String()),
		Source:         models.SourceRemote,
	}

	if cls.Category == "" {
		cls.Category = abilities.CategoryOther
	}

	stat, ok := abilities.ParseStat(doc.Get("category").String())
	if !ok {
		stat = abilities.Knowledge
	}
	cls.AbilityStat = string(stat)

	if cls.ExperienceGain == 0 {
		cls.ExperienceGain = defaultRemoteExp
	}
	cls.ExperienceGain = max(minRemoteExp, min(maxRemoteExp, cls.ExperienceGain))

	switch {
	case cls.Confidence <= 0:
		cls.Confidence = defaultConfidence
	case cls.Confidence > 1:
		cls.Confidence = 1
	}

	if cls.Rationale == "" {
		cls.Rationale = defaultRationale
	}

	return cls, nil
}

// stripFences removes a surrounding markdown code fence, if any
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
