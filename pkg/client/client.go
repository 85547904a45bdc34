// Package client is a Go SDK for the ability-tracker HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// Client is a Go SDK for ability-tracker API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new ability-tracker client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is returned when the server answers with an error envelope
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s - %s", e.Status, e.Code, e.Message)
}

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// Task represents a task response
type Task struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	StartTime         time.Time  `json:"startTime"`
	EndTime           time.Time  `json:"endTime"`
	DurationMinutes   int        `json:"duration"`
	PlannedMinutes    int        `json:"plannedDuration"`
	Category          string     `json:"taskType"`
	Status            TaskStatus `json:"status"`
	Completion        int        `json:"completion"`
	Score             float64    `json:"score"`
	Notes             string     `json:"notes,omitempty"`
	AbilityStat       string     `json:"abilityStat,omitempty"`
	ExperienceGain    int        `json:"expGain,omitempty"`
	ExperienceGranted bool       `json:"expGranted"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// CreateTaskRequest represents a task creation request.
// Zero duration is derived from the start and end times.
type CreateTaskRequest struct {
	Title           string    `json:"title"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes int       `json:"duration,omitempty"`
	PlannedMinutes  int       `json:"plannedDuration,omitempty"`
	Category        string    `json:"taskType,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	AbilityStat     string    `json:"abilityStat,omitempty"`
	ExperienceGain  int       `json:"expGain,omitempty"`
}

// UpdateTaskRequest carries a partial update; nil fields are left untouched
type UpdateTaskRequest struct {
	Title           *string     `json:"title,omitempty"`
	StartTime       *time.Time  `json:"startTime,omitempty"`
	EndTime         *time.Time  `json:"endTime,omitempty"`
	DurationMinutes *int        `json:"duration,omitempty"`
	PlannedMinutes  *int        `json:"plannedDuration,omitempty"`
	Category        *string     `json:"taskType,omitempty"`
	Status          *TaskStatus `json:"status,omitempty"`
	Completion      *int        `json:"completion,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
	AbilityStat     *string     `json:"abilityStat,omitempty"`
}

// CompleteTaskRequest reports completion. Nil completion means 100%.
type CompleteTaskRequest struct {
	Completion      *int `json:"completion,omitempty"`
	DurationMinutes *int `json:"duration,omitempty"`
}

// ListOptions narrows task listings. Date is a YYYY-MM-DD day.
type ListOptions struct {
	Date     string
	Status   TaskStatus
	Category string
	Limit    int
	Offset   int
}

// Ability represents one progression stat
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

// Unlocks lists rewards and achievements unlocked by one evaluation
type Unlocks struct {
	RewardIDs      []string `json:"rewardIds"`
	AchievementIDs []string `json:"achievementIds"`
}

// Progress reports what an experience-granting call changed
type Progress struct {
	LevelUp *LevelUp `json:"levelUp,omitempty"`
	Unlocks Unlocks  `json:"unlocks"`
}

// CompleteResult is the outcome of completing a task
type CompleteResult struct {
	Task     *Task     `json:"task"`
	Progress *Progress `json:"progress"`
}

// Reward represents a reward response
type Reward struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Type            string     `json:"type"`
	Value           int        `json:"value"`
	Icon            string     `json:"icon,omitempty"`
	IsUnlocked      bool       `json:"isUnlocked"`
	UnlockCondition string     `json:"unlockCondition"`
	UnlockedAt      *time.Time `json:"unlockedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Achievement represents an achievement response
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

// RewardList holds rewards and achievements
type RewardList struct {
	Rewards      []*Reward      `json:"rewards"`
	Achievements []*Achievement `json:"achievements"`
}

// Classification is the result of classifying a title.
// FallbackReason is set when the local classifier answered.
type Classification struct {
	Category       string  `json:"taskType"`
	AbilityStat    string  `json:"category"`
	ExperienceGain int     `json:"expGain"`
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"reasoning"`
	Source         string  `json:"aiModel"`
	FallbackReason string  `json:"fallbackReason,omitempty"`
}

// ImportedTask is a task created by an import
type ImportedTask struct {
	Task           *Task          `json:"task"`
	Classification Classification `json:"classification"`
	LevelUp        *LevelUp       `json:"levelUp,omitempty"`
}

// ImportFailure records an event the import skipped
type ImportFailure struct {
	Title string `json:"title"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// ImportReport summarizes one import
type ImportReport struct {
	Parsed   int             `json:"parsed"`
	Imported []ImportedTask  `json:"imported"`
	LevelUps []LevelUp       `json:"levelUps"`
	Unlocks  Unlocks         `json:"unlocks"`
	Failures []ImportFailure `json:"failures"`
}

// DailyScore aggregates the scores of one day
type DailyScore struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	TotalScore float64   `json:"totalScore"`
	TaskCount  int       `json:"taskCount"`
	Level      int       `json:"level"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ScoreRule maps a task category to its scoring weights
type ScoreRule struct {
	Category   string  `json:"taskType"`
	BaseScore  float64 `json:"baseScore"`
	TimeFactor float64 `json:"timeFactor"`
	Priority   int     `json:"priority"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type titlesRequest struct {
	Titles []string `json:"titles"`
}

type importRequest struct {
	Text string `json:"text"`
}

type grantRequest struct {
	Amount int `json:"expGain"`
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

// CreateTask creates a pending task
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	var task Task
	if err := c.call(ctx, http.MethodPost, "/api/v1/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask retrieves a task by ID
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := c.call(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks lists tasks, newest first
func (c *Client) ListTasks(ctx context.Context, opts ListOptions) ([]*Task, error) {
	q := url.Values{}
	if opts.Date != "" {
		q.Set("date", opts.Date)
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/v1/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result struct {
		Tasks []*Task `json:"tasks"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Tasks, nil
}

// UpdateTask applies a partial update
func (c *Client) UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*Task, error) {
	var task Task
	if err := c.call(ctx, http.MethodPut, "/api/v1/tasks/"+url.PathEscape(id), req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes a task
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/tasks/"+url.PathEscape(id), nil, nil)
}

// CompleteTask marks a task completed and returns what it unlocked
func (c *Client) CompleteTask(ctx context.Context, id string, req CompleteTaskRequest) (*CompleteResult, error) {
	var result CompleteResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/tasks/"+url.PathEscape(id)+"/complete", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Import sends raw calendar text through the import pipeline
func (c *Client) Import(ctx context.Context, text string) (*ImportReport, error) {
	var report ImportReport
	if err := c.call(ctx, http.MethodPost, "/api/v1/import", importRequest{Text: text}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Classify classifies a single title
func (c *Client) Classify(ctx context.Context, title string) (*Classification, error) {
	var result Classification
	if err := c.call(ctx, http.MethodPost, "/api/v1/classify", titleRequest{Title: title}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ClassifyBatch classifies titles, preserving their order
func (c *Client) ClassifyBatch(ctx context.Context, titles []string) ([]Classification, error) {
	var result struct {
		Results []Classification `json:"results"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/classify/batch", titlesRequest{Titles: titles}, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// Suggestions returns category hints for a title
func (c *Client) Suggestions(ctx context.Context, title string) ([]string, error) {
	var result struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/classify/suggestions", titleRequest{Title: title}, &result); err != nil {
		return nil, err
	}
	return result.Suggestions, nil
}

// ListAbilities retrieves all abilities
func (c *Client) ListAbilities(ctx context.Context) ([]*Ability, error) {
	var result struct {
		Abilities []*Ability `json:"abilities"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/abilities", nil, &result); err != nil {
		return nil, err
	}
	return result.Abilities, nil
}

// GrantExperience credits amount to the named ability
func (c *Client) GrantExperience(ctx context.Context, name string, amount int) (*Progress, error) {
	var progress Progress
	path := "/api/v1/abilities/" + url.PathEscape(name) + "/experience"
	if err := c.call(ctx, http.MethodPut, path, grantRequest{Amount: amount}, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// ListRewards retrieves rewards and achievements
func (c *Client) ListRewards(ctx context.Context) (*RewardList, error) {
	var list RewardList
	if err := c.call(ctx, http.MethodGet, "/api/v1/rewards", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// EvaluateRewards asks the server to unlock everything whose condition holds
func (c *Client) EvaluateRewards(ctx context.Context) (*Unlocks, error) {
	var unlocks Unlocks
	if err := c.call(ctx, http.MethodPost, "/api/v1/rewards/evaluate", nil, &unlocks); err != nil {
		return nil, err
	}
	return &unlocks, nil
}

// UnlockReward unlocks a reward by hand
func (c *Client) UnlockReward(ctx context.Context, id string) (*Reward, error) {
	var reward Reward
	if err := c.call(ctx, http.MethodPut, "/api/v1/rewards/rewards/"+url.PathEscape(id)+"/unlock", nil, &reward); err != nil {
		return nil, err
	}
	return &reward, nil
}

// UnlockAchievement unlocks an achievement by hand
func (c *Client) UnlockAchievement(ctx context.Context, id string) (*Achievement, error) {
	var achievement Achievement
	if err := c.call(ctx, http.MethodPut, "/api/v1/rewards/achievements/"+url.PathEscape(id)+"/unlock", nil, &achievement); err != nil {
		return nil, err
	}
	return &achievement, nil
}

// DailyScore recomputes and returns the score of one day
func (c *Client) DailyScore(ctx context.Context, date time.Time) (*DailyScore, error) {
	var ds DailyScore
	if err := c.call(ctx, http.MethodGet, "/api/v1/scores?date="+date.Format(time.DateOnly), nil, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// ListDailyScores returns the stored scores of the last days days
func (c *Client) ListDailyScores(ctx context.Context, days int) ([]*DailyScore, error) {
	var result struct {
		Scores []*DailyScore `json:"scores"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/scores?range="+strconv.Itoa(days), nil, &result); err != nil {
		return nil, err
	}
	return result.Scores, nil
}

// ScoreRules retrieves the active score rules
func (c *Client) ScoreRules(ctx context.Context) ([]ScoreRule, error) {
	var result struct {
		Rules []ScoreRule `json:"rules"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/score-rules", nil, &result); err != nil {
		return nil, err
	}
	return result.Rules, nil
}

// call sends in as JSON and decodes the data field of the response into out
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	status, resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	if status >= 400 || !gjson.GetBytes(resp, "success").Bool() {
		return &APIError{
			Status:  status,
			Code:    gjson.GetBytes(resp, "error.code").String(),
			Message: gjson.GetBytes(resp, "error.message").String(),
		}
	}

	if out == nil {
		return nil
	}
	data := gjson.GetBytes(resp, "data")
	if !data.Exists() {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal([]byte(data.Raw), out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
