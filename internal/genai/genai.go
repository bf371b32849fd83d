// Package genai implements the LLM gateway: prompt assembly, vendor-swappable
// completion clients, bounded retries, and reply validation.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/interviewpipe/interviewpipe/internal/contract"
	"github.com/interviewpipe/interviewpipe/internal/models"
	"github.com/interviewpipe/interviewpipe/internal/personas"
)

// Completer is the single vendor boundary: one completion call against a
// specific model provider. Implementations classify their own errors into
// *models.GatewayError where possible.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []models.ConversationEntry, utterance string) (string, error)
}

// Config holds gateway tuning knobs.
type Config struct {
	RequestTimeout time.Duration // per-attempt ceiling
	HistoryWindow  int           // history entries included in the prompt
	Retry          RetryPolicy
}

// DefaultConfig returns the gateway defaults: 30s per attempt, last 10
// history entries, the default retry schedule.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		HistoryWindow:  10,
		Retry:          DefaultRetryPolicy(),
	}
}

// Gateway builds outbound prompts, drives the completer with bounded
// retries, and validates raw replies through the response contract.
type Gateway struct {
	completer Completer
	cfg       Config
}

// NewGateway creates a gateway over the given completer.
func NewGateway(completer Completer, cfg Config) *Gateway {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Gateway{completer: completer, cfg: cfg}
}

// GenerateTurn issues one interview turn to the model and returns the
// validated result. The soft tag is empty on a clean parse and
// models.TagResponseParseFailed when the contract fallback was used. A
// non-nil error is always a *models.GatewayError: fatal errors surface
// immediately, transient ones only after retries are exhausted.
func (g *Gateway) GenerateTurn(ctx context.Context, session *models.InterviewSession, utterance string) (contract.ParsedTurn, string, error) {
	systemPrompt := personas.Prompt(session.Persona, session.CurrentStage)
	history := session.RecentHistory(g.cfg.HistoryWindow)
	prompt := buildTurnPrompt(session, utterance)

	var lastErr error
	for attempt := 1; attempt <= g.cfg.Retry.MaxAttempts; attempt++ {
		if delay := g.cfg.Retry.Delay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return contract.ParsedTurn{}, "", models.NewGatewayError(models.ErrorTypeTransient, "retry wait cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
		raw, err := g.completer.Complete(attemptCtx, systemPrompt, history, prompt)
		cancel()

		if err == nil {
			turn, tag := contract.Validate(raw, session.CurrentStage, session.CurrentCompleteness())
			if tag != "" {
				slog.Warn("Gateway.GenerateTurn: reply failed contract, using fallback turn",
					"userHandle", session.UserHandle, "stage", session.CurrentStage, "rawLength", len(raw))
			}
			return turn, tag, nil
		}

		classified := Classify(err)
		lastErr = classified
		slog.Warn("Gateway.GenerateTurn: completion attempt failed",
			"userHandle", session.UserHandle, "attempt", attempt, "errorType", classified.Type.String(), "error", err)

		if !classified.Type.Retryable() {
			return contract.ParsedTurn{}, "", classified
		}
		if ctx.Err() != nil {
			return contract.ParsedTurn{}, "", models.NewGatewayError(models.ErrorTypeTransient, "turn cancelled", ctx.Err())
		}
	}

	slog.Error("Gateway.GenerateTurn: retries exhausted",
		"userHandle", session.UserHandle, "attempts", g.cfg.Retry.MaxAttempts, "error", lastErr)
	return contract.ParsedTurn{}, "", models.NewRetryExhaustedError(g.cfg.Retry.MaxAttempts, lastErr)
}

// buildTurnPrompt prefixes the participant's utterance with a compact
// interview-state preamble so the model sees the orchestrator's counters,
// not its own last self-report.
func buildTurnPrompt(session *models.InterviewSession, utterance string) string {
	var b strings.Builder
	b.WriteString("Current Interview State:\n")
	fmt.Fprintf(&b, "- Stage: %s\n", session.CurrentStage)
	fmt.Fprintf(&b, "- Question Depth: %d\n", session.QuestionDepth)
	fmt.Fprintf(&b, "- Engagement Level: %s\n", session.EngagementLevel)
	fmt.Fprintf(&b, "- Examples Collected: %d\n", session.ExamplesCollected)
	fmt.Fprintf(&b, "- Stage Completeness: %d%%\n", session.CurrentCompleteness())
	b.WriteString("\nParticipant: ")
	b.WriteString(utterance)
	b.WriteString("\n\nRespond in the specified JSON format.")
	return b.String()
}

// Classify maps an arbitrary completion error to a typed gateway error.
// Errors already classified by a completer pass through unchanged; the rest
// fall back to status-code and message-pattern heuristics.
func Classify(err error) *models.GatewayError {
	if err == nil {
		return nil
	}
	var gwErr *models.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewGatewayError(models.ErrorTypeTransient, "request timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return models.NewGatewayError(models.ErrorTypeTransient, "request cancelled", err)
	}
	return models.NewGatewayError(classifyByMessage(err.Error()), "completion failed", err)
}

// ClassifyStatus maps an HTTP status code from a vendor SDK to an error type.
func ClassifyStatus(status int) models.ErrorType {
	switch {
	case status == 401 || status == 403:
		return models.ErrorTypeAuth
	case status == 429:
		return models.ErrorTypeRateLimit
	case status == 400 || status == 404 || status == 422:
		return models.ErrorTypeBadRequest
	case status >= 500:
		return models.ErrorTypeTransient
	default:
		return models.ErrorTypeUnknown
	}
}

func classifyByMessage(msg string) models.ErrorType {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection"),
		strings.Contains(lower, "network"),
		strings.Contains(lower, "temporary"),
		strings.Contains(lower, "eof"),
		strings.Contains(lower, "reset"):
		return models.ErrorTypeTransient
	case strings.Contains(lower, "rate"), strings.Contains(lower, "quota"), strings.Contains(lower, "429"):
		return models.ErrorTypeRateLimit
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "api key"), strings.Contains(lower, "auth"):
		return models.ErrorTypeAuth
	case strings.Contains(lower, "invalid"), strings.Contains(lower, "malformed"), strings.Contains(lower, "too large"):
		return models.ErrorTypeBadRequest
	default:
		return models.ErrorTypeUnknown
	}
}
