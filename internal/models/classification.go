package models

// ClassificationSource names the provider that produced a classification
type ClassificationSource string

const (
	SourceRemote ClassificationSource = "remote"
	SourceLocal  ClassificationSource = "local"
)

// Classification is the transient result of classifying a task title
type Classification struct {
	Category       string               `json:"taskType"`
	AbilityStat    string               `json:"category"`
	ExperienceGain int                  `json:"expGain"`
	Confidence     float64              `json:"confidence"`
	Rationale      string               `json:"reasoning"`
	Source         ClassificationSource `json:"aiModel"`
}

// ClassifyRequest represents a single-title classification request
type ClassifyRequest struct {
	Title string `json:"title"`
}

// ClassifyBatchRequest represents a batch classification request
type ClassifyBatchRequest struct {
	Titles []string `json:"titles"`
}

// ImportRequest carries raw calendar text
type ImportRequest struct {
	Text string `json:"text"`
}
