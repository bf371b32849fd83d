package models

import (
	"time"
)

// Role identifies the author of a conversation entry.
type Role string

const (
	// RoleUser marks a message from the interviewed participant.
	RoleUser Role = "user"
	// RoleAssistant marks a message from the interviewer model.
	RoleAssistant Role = "assistant"
)

// EngagementLevel is the model-assessed engagement of the participant,
// recomputed every turn.
type EngagementLevel string

const (
	// EngagementHigh indicates detailed and enthusiastic responses.
	EngagementHigh EngagementLevel = "high"
	// EngagementMedium is the neutral default.
	EngagementMedium EngagementLevel = "medium"
	// EngagementLow indicates terse or disengaged responses.
	EngagementLow EngagementLevel = "low"
)

// IsValidEngagementLevel checks if the given engagement level is supported.
func IsValidEngagementLevel(e EngagementLevel) bool {
	switch e {
	case EngagementHigh, EngagementMedium, EngagementLow:
		return true
	default:
		return false
	}
}

// Question depth bounds. Depth resets to 1 on topic change and never exceeds
// MaxQuestionDepth; it grows by at most one per turn.
const (
	MinQuestionDepth = 1
	MaxQuestionDepth = 4
)

// ConversationEntry is one message of the bounded conversation history.
type ConversationEntry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Stage     Stage     `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

// InterviewSession is the per-user interview state record. It is owned
// exclusively by the orchestrator and mutated only under the per-user lock.
type InterviewSession struct {
	UserHandle          int64               `json:"user_handle"`
	DisplayName         string              `json:"display_name,omitempty"`
	Persona             Persona             `json:"persona"`
	CurrentStage        Stage               `json:"current_stage"`
	StageCompleteness   map[Stage]int       `json:"stage_completeness"`
	QuestionDepth       int                 `json:"question_depth"`
	EngagementLevel     EngagementLevel     `json:"engagement_level"`
	ExamplesCollected   int                 `json:"examples_collected"`
	KeyInsights         []string            `json:"key_insights"`
	ConversationHistory []ConversationEntry `json:"conversation_history"`
	StartedAt           time.Time           `json:"started_at"`
	LastActivityAt      time.Time           `json:"last_activity_at"`
}

// NewInterviewSession creates a fresh session at the greeting stage with all
// counters zeroed and every stage's completeness initialized.
func NewInterviewSession(userHandle int64, displayName string, persona Persona) *InterviewSession {
	if !IsValidPersona(persona) {
		persona = DefaultPersona
	}
	completeness := make(map[Stage]int, len(StageOrder))
	for _, s := range StageOrder {
		completeness[s] = 0
	}
	now := time.Now().UTC()
	return &InterviewSession{
		UserHandle:          userHandle,
		DisplayName:         displayName,
		Persona:             persona,
		CurrentStage:        StageGreeting,
		StageCompleteness:   completeness,
		QuestionDepth:       MinQuestionDepth,
		EngagementLevel:     EngagementMedium,
		ExamplesCollected:   0,
		KeyInsights:         []string{},
		ConversationHistory: []ConversationEntry{},
		StartedAt:           now,
		LastActivityAt:      now,
	}
}

// AddMessage appends a message to the conversation history, evicting the
// oldest entries first once maxEntries is exceeded.
func (s *InterviewSession) AddMessage(role Role, text string, maxEntries int) {
	entry := ConversationEntry{
		Role:      role,
		Text:      text,
		Stage:     s.CurrentStage,
		Timestamp: time.Now().UTC(),
	}
	s.ConversationHistory = append(s.ConversationHistory, entry)
	if maxEntries > 0 && len(s.ConversationHistory) > maxEntries {
		s.ConversationHistory = s.ConversationHistory[len(s.ConversationHistory)-maxEntries:]
	}
}

// RecentHistory returns the last n history entries in original order.
func (s *InterviewSession) RecentHistory(n int) []ConversationEntry {
	if n <= 0 || len(s.ConversationHistory) <= n {
		return s.ConversationHistory
	}
	return s.ConversationHistory[len(s.ConversationHistory)-n:]
}

// Touch updates the activity timestamp.
func (s *InterviewSession) Touch() {
	s.LastActivityAt = time.Now().UTC()
}

// Expired reports whether the session has exceeded the inactivity timeout.
func (s *InterviewSession) Expired(timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return time.Since(s.LastActivityAt) > timeout
}

// CurrentCompleteness returns the completeness percentage of the active stage.
func (s *InterviewSession) CurrentCompleteness() int {
	return s.StageCompleteness[s.CurrentStage]
}

// Duration returns how long the interview has been running.
func (s *InterviewSession) Duration() time.Duration {
	return time.Since(s.StartedAt)
}

// Clone returns a deep copy of the session. Stores hand out clones so that
// callers never share mutable state with the persistence layer.
func (s *InterviewSession) Clone() *InterviewSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.StageCompleteness = make(map[Stage]int, len(s.StageCompleteness))
	for k, v := range s.StageCompleteness {
		cp.StageCompleteness[k] = v
	}
	cp.KeyInsights = append([]string{}, s.KeyInsights...)
	cp.ConversationHistory = append([]ConversationEntry{}, s.ConversationHistory...)
	return &cp
}

// Validate checks structural invariants of the session record.
func (s *InterviewSession) Validate() error {
	if s.UserHandle == 0 {
		return ErrInvalidUserHandle
	}
	if !IsValidPersona(s.Persona) {
		return ErrInvalidPersona
	}
	if !IsValidStage(s.CurrentStage) {
		return ErrInvalidStage
	}
	if s.QuestionDepth < MinQuestionDepth || s.QuestionDepth > MaxQuestionDepth {
		return ErrInvalidQuestionDepth
	}
	if !IsValidEngagementLevel(s.EngagementLevel) {
		return ErrInvalidEngagement
	}
	for st, pct := range s.StageCompleteness {
		if !IsValidStage(st) || pct < 0 || pct > 100 {
			return ErrInvalidCompleteness
		}
	}
	return nil
}

// CompletionReason records why a session reached its archived terminal state.
type CompletionReason string

const (
	// CompletionNatural marks a session that finished the wrap-up stage.
	CompletionNatural CompletionReason = "natural_completion"
	// CompletionExplicit marks a session completed on user request.
	CompletionExplicit CompletionReason = "explicit_complete"
	// CompletionAbandoned marks a session archived after the inactivity timeout.
	CompletionAbandoned CompletionReason = "abandoned_timeout"
)

// ArchivedSession is the immutable terminal snapshot of a finished or
// abandoned interview. It is written once and never mutated.
type ArchivedSession struct {
	Session          InterviewSession `json:"session"`
	ArchivedAt       time.Time        `json:"archived_at"`
	CompletionReason CompletionReason `json:"completion_reason"`
}

// NewArchivedSession snapshots the given session into an archive record.
func NewArchivedSession(s *InterviewSession, reason CompletionReason) ArchivedSession {
	return ArchivedSession{
		Session:          *s.Clone(),
		ArchivedAt:       time.Now().UTC(),
		CompletionReason: reason,
	}
}

// OutboundTurn is the reply handed back to the transport layer after a turn.
type OutboundTurn struct {
	Text             string   `json:"text"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	Stage            Stage    `json:"stage"`
	Archived         bool     `json:"archived,omitempty"`
	// ErrorKind carries the soft-error tag for operator metrics; empty on
	// clean turns. It is never shown to the user as-is.
	ErrorKind string `json:"error_kind,omitempty"`
	// DurablyCommitted is false when the turn's session mutation could not be
	// persisted; the in-memory result is still served for responsiveness.
	DurablyCommitted bool `json:"durably_committed"`
}

// StageProgress is one row of a status report.
type StageProgress struct {
	Stage        Stage  `json:"stage"`
	Label        string `json:"label"`
	Completeness int    `json:"completeness"`
	Active       bool   `json:"active"`
}

// StatusReport summarizes an in-flight interview for the status query.
type StatusReport struct {
	Stage           Stage           `json:"stage"`
	Persona         Persona         `json:"persona"`
	Progress        []StageProgress `json:"progress"`
	DurationMinutes int             `json:"duration_minutes"`
	MessageCount    int             `json:"message_count"`
	QuestionDepth   int             `json:"question_depth"`
	Engagement      EngagementLevel `json:"engagement"`
	Examples        int             `json:"examples"`
	Insights        int             `json:"insights"`
}
