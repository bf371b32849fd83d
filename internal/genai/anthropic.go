package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/interviewpipe/interviewpipe/internal/models"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-3-5-haiku-20241022"

// AnthropicCompleter implements Completer against the Anthropic Messages API.
// This is the default vendor: the interview persona prompts were written for
// Claude's reply style.
type AnthropicCompleter struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

// NewAnthropicCompleter creates a completer for the given API key and model.
func NewAnthropicCompleter(apiKey, model string, maxTokens int64, temperature float64) (*AnthropicCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not set")
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &AnthropicCompleter{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       anthropic.Model(model),
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Complete issues one Messages call. The Anthropic API requires strict
// user/assistant alternation starting and ending with user, so history is
// merged accordingly before sending.
func (c *AnthropicCompleter) Complete(ctx context.Context, systemPrompt string, history []models.ConversationEntry, utterance string) (string, error) {
	messages := alternatingMessages(history, utterance)

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages:    messages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyAnthropicError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", models.NewGatewayError(models.ErrorTypeTransient, "empty response from Anthropic API", nil)
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return "", models.NewGatewayError(models.ErrorTypeTransient, "response contained no text blocks", nil)
	}
	return text.String(), nil
}

// alternatingMessages converts conversation history plus the new utterance
// into a strictly alternating user/assistant sequence ending with user.
// Consecutive same-role entries are merged; a leading assistant entry gets a
// synthetic user opener so the sequence starts correctly.
func alternatingMessages(history []models.ConversationEntry, utterance string) []anthropic.MessageParam {
	type turn struct {
		role models.Role
		text string
	}
	var turns []turn
	for _, entry := range history {
		if len(turns) > 0 && turns[len(turns)-1].role == entry.Role {
			turns[len(turns)-1].text += "\n\n" + entry.Text
			continue
		}
		turns = append(turns, turn{role: entry.Role, text: entry.Text})
	}
	if len(turns) > 0 && turns[0].role == models.RoleAssistant {
		turns = append([]turn{{role: models.RoleUser, text: "(interview begins)"}}, turns...)
	}
	if len(turns) > 0 && turns[len(turns)-1].role == models.RoleUser {
		turns[len(turns)-1].text += "\n\n" + utterance
	} else {
		turns = append(turns, turn{role: models.RoleUser, text: utterance})
	}

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.text)
		if t.role == models.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return messages
}

// classifyAnthropicError maps SDK errors to typed gateway errors.
func classifyAnthropicError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NewGatewayError(models.ErrorTypeTransient, "anthropic request interrupted", err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return models.NewGatewayError(ClassifyStatus(apiErr.StatusCode), fmt.Sprintf("anthropic API error (status %d)", apiErr.StatusCode), err)
	}
	return models.NewGatewayError(classifyByMessage(err.Error()), "anthropic request failed", err)
}
