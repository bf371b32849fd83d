package genai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/interviewpipe/interviewpipe/internal/models"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = openai.ChatModelGPT4oMini

// OpenAICompleter implements Completer against the OpenAI chat completions
// API, as the alternative vendor behind the same boundary.
type OpenAICompleter struct {
	client      openai.Client
	model       openai.ChatModel
	maxTokens   int64
	temperature float64
}

// NewOpenAICompleter creates a completer for the given API key and model.
func NewOpenAICompleter(apiKey, model string, maxTokens int64, temperature float64) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key not set")
	}
	chatModel := openai.ChatModel(model)
	if model == "" {
		chatModel = DefaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &OpenAICompleter{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		model:       chatModel,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Complete issues one chat completion call.
func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt string, history []models.ConversationEntry, utterance string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, entry := range history {
		if entry.Role == models.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(entry.Text))
		} else {
			messages = append(messages, openai.UserMessage(entry.Text))
		}
	}
	messages = append(messages, openai.UserMessage(utterance))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(c.maxTokens),
		Temperature:         openai.Float(c.temperature),
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", models.NewGatewayError(models.ErrorTypeTransient, "no choices returned", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError maps SDK errors to typed gateway errors.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NewGatewayError(models.ErrorTypeTransient, "openai request interrupted", err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return models.NewGatewayError(ClassifyStatus(apiErr.StatusCode), fmt.Sprintf("openai API error (status %d)", apiErr.StatusCode), err)
	}
	return models.NewGatewayError(classifyByMessage(err.Error()), "openai request failed", err)
}
