package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/terra-clan/ability-tracker/internal/models"
)

const (
	DefaultDashScopeEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	DefaultDashScopeModel    = "qwen-turbo"

	maxResponseBytes = 1 << 20
)

// Paths where the generated text may live, tried in order
var contentPaths = []string{
	"output.choices.0.message.content",
	"output.text",
	"choices.0.message.content",
}

// DashScopeProvider calls the DashScope text-generation endpoint
type DashScopeProvider struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewDashScopeProvider creates a provider; empty endpoint and model use defaults
func NewDashScopeProvider(apiKey, endpoint, model string, httpClient *http.Client) *DashScopeProvider {
	if endpoint == "" {
		endpoint = DefaultDashScopeEndpoint
	}
	if model == "" {
		model = DefaultDashScopeModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DashScopeProvider{
		apiKey:     apiKey,
		endpoint:   endpoint,
		model:      model,
		httpClient: httpClient,
	}
}

func (p *DashScopeProvider) Name() string {
	return "dashscope"
}

// Classify sends the prompt and parses the nested JSON answer
func (p *DashScopeProvider) Classify(ctx context.Context, title string) (models.Classification, error) {
	if p.apiKey == "" {
		return models.Classification{}, remoteErr(ReasonUnconfigured, errors.New("DASHSCOPE_API_KEY is empty"))
	}

	body, err := p.requestBody(BuildPrompt(title))
	if err != nil {
		return models.Classification{}, remoteErr(ReasonTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Classification{}, remoteErr(ReasonTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.Classification{}, remoteErr(ReasonTimeout, err)
		}
		return models.Classification{}, remoteErr(ReasonTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.Classification{}, remoteErr(ReasonTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Classification{}, remoteErr(ReasonStatus,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	content, err := extractContent(raw)
	if err != nil {
		return models.Classification{}, err
	}

	return parsePayload(content)
}

func (p *DashScopeProvider) requestBody(prompt string) ([]byte, error) {
	body, err := sjson.SetBytes(nil, "model", p.model)
	if err != nil {
		return nil, err
	}
	messages := []map[string]string{{"role": "user", "content": prompt}}
	if body, err = sjson.SetBytes(body, "input.messages", messages); err != nil {
		return nil, err
	}
	params := map[string]any{
		"temperature":   0.3,
		"max_tokens":    500,
		"top_p":         0.8,
		"result_format": "message",
	}
	return sjson.SetBytes(body, "parameters", params)
}

func extractContent(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", remoteErr(ReasonEnvelope, errors.New("response is not valid JSON"))
	}
	for _, path := range contentPaths {
		if res := gjson.GetBytes(raw, path); res.Exists() && res.String() != "" {
			return res.String(), nil
		}
	}
	return "", remoteErr(ReasonEnvelope, errors.New("response carries no generated content"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
