package classifier

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/terra-clan/ability-tracker/internal/models"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider classifies through any OpenAI-compatible chat endpoint
type OpenAIProvider struct {
	client openai.Client
	model  string
	ready  bool
}

// NewOpenAIProvider creates a provider. baseURL may point at a compatible
// gateway such as DashScope's compatible-mode endpoint.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
		ready:  apiKey != "",
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Classify(ctx context.Context, title string) (models.Classification, error) {
	if !p.ready {
		return models.Classification{}, remoteErr(ReasonUnconfigured, errors.New("OpenAI API key is empty"))
	}

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(BuildPrompt(title)),
		},
		Model:       openai.ChatModel(p.model),
		Temperature: openai.Float(0.3),
		TopP:        openai.Float(0.8),
		MaxTokens:   openai.Int(500),
	})
	if err != nil {
		var apiErr *openai.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return models.Classification{}, remoteErr(ReasonTimeout, err)
		case errors.As(err, &apiErr):
			return models.Classification{}, remoteErr(ReasonStatus, err)
		default:
			return models.Classification{}, remoteErr(ReasonTransport, err)
		}
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return models.Classification{}, remoteErr(ReasonEnvelope, errors.New("completion has no content"))
	}

	return parsePayload(completion.Choices[0].Message.Content)
}
