// Package contract defines the required shape of every model reply and the
// validating parser that repairs or falls back on malformed output.
//
// Validation never fails: callers always receive a usable ParsedTurn, plus a
// soft-error tag when the deterministic fallback path was taken.
package contract

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/interviewpipe/interviewpipe/internal/models"
	"github.com/interviewpipe/interviewpipe/internal/stage"
)

// Message bounds from the reply contract.
const (
	MinMessageLength = 10
	MaxMessageLength = 2000
)

// ParsedTurn is the validated, typed form of one model reply.
type ParsedTurn struct {
	Stage           models.Stage
	Message         string
	QuestionDepth   int
	Completeness    int
	Engagement      models.EngagementLevel
	Insights        []string
	ExamplesDelta   int
	FollowUpNeeded  []string
	TransitionReady bool
	// Fallback is true when the turn was synthesized from unparseable raw text.
	Fallback bool
}

// wireTurn mirrors the JSON document the model is instructed to produce.
type wireTurn struct {
	Stage           string   `json:"stage"`
	Message         string   `json:"message"`
	QuestionDepth   *int     `json:"question_depth"`
	Completeness    *int     `json:"completeness"`
	EngagementLevel string   `json:"engagement_level"`
	Insights        []string `json:"insights"`
	ExamplesDelta   int      `json:"examples_delta"`
	FollowUpNeeded  []string `json:"follow_up_needed"`
	TransitionReady bool     `json:"transition_ready"`
}

// Validate parses and validates a raw model reply against the contract.
// currentStage and currentCompleteness come from the session and anchor the
// deterministic fallback. The returned tag is empty on success and
// models.TagResponseParseFailed when the fallback was used; it is never an
// error surfaced to the user.
func Validate(raw string, currentStage models.Stage, currentCompleteness int) (ParsedTurn, string) {
	payload, ok := extractJSON(raw)
	if !ok {
		return fallbackTurn(raw, currentStage, currentCompleteness), models.TagResponseParseFailed
	}

	var wire wireTurn
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return fallbackTurn(raw, currentStage, currentCompleteness), models.TagResponseParseFailed
	}

	// Required fields. A reply missing any of them is treated as unparseable.
	if wire.Stage == "" || wire.Message == "" || wire.QuestionDepth == nil || wire.Completeness == nil || wire.EngagementLevel == "" {
		return fallbackTurn(raw, currentStage, currentCompleteness), models.TagResponseParseFailed
	}

	st := models.Stage(strings.ToLower(strings.TrimSpace(wire.Stage)))
	if !models.IsValidStage(st) {
		return fallbackTurn(raw, currentStage, currentCompleteness), models.TagResponseParseFailed
	}
	// The model may only name the current stage or the one immediately after
	// it; anything else is held at the current stage.
	if st != currentStage && st != stage.Next(currentStage) {
		st = currentStage
	}

	message := repairMessage(wire.Message)
	if len(message) < MinMessageLength {
		return fallbackTurn(raw, currentStage, currentCompleteness), models.TagResponseParseFailed
	}

	engagement := models.EngagementLevel(strings.ToLower(strings.TrimSpace(wire.EngagementLevel)))
	if !models.IsValidEngagementLevel(engagement) {
		engagement = models.EngagementMedium
	}

	depth := *wire.QuestionDepth
	if depth < models.MinQuestionDepth {
		depth = models.MinQuestionDepth
	}
	if depth > models.MaxQuestionDepth {
		depth = models.MaxQuestionDepth
	}

	delta := wire.ExamplesDelta
	if delta < 0 {
		delta = 0
	}

	turn := ParsedTurn{
		Stage:           st,
		Message:         message,
		QuestionDepth:   depth,
		Completeness:    stage.ClampCompleteness(*wire.Completeness),
		Engagement:      engagement,
		Insights:        cleanStrings(wire.Insights),
		ExamplesDelta:   delta,
		FollowUpNeeded:  cleanStrings(wire.FollowUpNeeded),
		TransitionReady: wire.TransitionReady,
	}
	return turn, ""
}

// fallbackTurn synthesizes the deterministic degraded turn: the raw text
// becomes the outbound message, the stage and completeness stay as they were,
// and depth and engagement reset to their neutral values. Feeding the same
// raw string and session state in always yields the same turn out.
func fallbackTurn(raw string, currentStage models.Stage, currentCompleteness int) ParsedTurn {
	message := truncateMessage(strings.TrimSpace(raw))
	if message == "" {
		message = "Could you tell me more about that?"
	}
	return ParsedTurn{
		Stage:          currentStage,
		Message:        message,
		QuestionDepth:  models.MinQuestionDepth,
		Completeness:   stage.ClampCompleteness(currentCompleteness),
		Engagement:     models.EngagementMedium,
		Insights:       []string{},
		FollowUpNeeded: []string{},
		Fallback:       true,
	}
}

// extractJSON pulls the JSON payload out of a raw reply. Models frequently
// wrap the document in markdown fences or commentary; the first fenced json
// block wins, then the first balanced object literal.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if idx := strings.Index(s, "```json"); idx >= 0 {
		rest := s[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), true
		}
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// repairMessage bounds the outbound message and enforces the at-most-one
// question rule by truncating after the first question mark when the model
// stacked several questions into one reply.
func repairMessage(msg string) string {
	msg = truncateMessage(strings.TrimSpace(msg))
	first := strings.IndexRune(msg, '?')
	if first >= 0 && strings.ContainsRune(msg[first+1:], '?') {
		msg = strings.TrimSpace(msg[:first+1])
	}
	return msg
}

// truncateMessage caps the message at MaxMessageLength bytes, backing up to
// a rune boundary so the cut never leaves invalid UTF-8.
func truncateMessage(msg string) string {
	if len(msg) <= MaxMessageLength {
		return msg
	}
	cut := MaxMessageLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
