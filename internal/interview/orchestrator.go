// Package interview implements the orchestrator that drives a structured
// nine-stage expert interview over an LLM gateway. It owns all interview
// state transitions; the model's self-reported counters are advisory input,
// never the source of truth.
package interview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/interviewpipe/interviewpipe/internal/contract"
	"github.com/interviewpipe/interviewpipe/internal/metrics"
	"github.com/interviewpipe/interviewpipe/internal/models"
	"github.com/interviewpipe/interviewpipe/internal/stage"
	"github.com/interviewpipe/interviewpipe/internal/store"
)

// TurnGenerator is the gateway boundary as the orchestrator sees it.
type TurnGenerator interface {
	GenerateTurn(ctx context.Context, session *models.InterviewSession, utterance string) (contract.ParsedTurn, string, error)
}

// Config holds orchestrator tuning knobs.
type Config struct {
	// InactivityTimeout is how long a session may idle before it is
	// archived as abandoned on next contact.
	InactivityTimeout time.Duration
	// MaxHistoryEntries bounds the stored conversation history.
	MaxHistoryEntries int
	// TurnTimeout is the ceiling for one full turn including retries.
	TurnTimeout time.Duration
	// DefaultPersona is used for sessions created without a choice.
	DefaultPersona models.Persona
	// TranscriptConfidenceThreshold is the confidence below which a voice
	// transcription needs explicit confirmation.
	TranscriptConfidenceThreshold float64
}

// DefaultConfig returns the orchestrator defaults: 180 minute inactivity
// timeout, 100 history entries, 90 second turn ceiling.
func DefaultConfig() Config {
	return Config{
		InactivityTimeout:             180 * time.Minute,
		MaxHistoryEntries:             100,
		TurnTimeout:                   90 * time.Second,
		DefaultPersona:                models.DefaultPersona,
		TranscriptConfidenceThreshold: 0.6,
	}
}

// Orchestrator coordinates sessions, the LLM gateway, and storage. One
// instance serves all users; per-handle locks serialize turns for the same
// user while different users proceed in parallel.
type Orchestrator struct {
	store     store.Store
	gateway   TurnGenerator
	collector metrics.Collector
	cfg       Config

	// locks holds one mutex per handle ever seen and is never pruned:
	// removing a mutex another goroutine is queued on would let two turns
	// for the same user run concurrently.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex

	// pendingVoice holds low-confidence transcripts awaiting confirmation,
	// guarded by voiceMu.
	voiceMu      sync.Mutex
	pendingVoice map[int64]string
}

// NewOrchestrator creates an orchestrator. A nil collector disables metrics.
func NewOrchestrator(st store.Store, gateway TurnGenerator, collector metrics.Collector, cfg Config) *Orchestrator {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = 180 * time.Minute
	}
	if cfg.MaxHistoryEntries <= 0 {
		cfg.MaxHistoryEntries = 100
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 90 * time.Second
	}
	if !models.IsValidPersona(cfg.DefaultPersona) {
		cfg.DefaultPersona = models.DefaultPersona
	}
	if cfg.TranscriptConfidenceThreshold <= 0 {
		cfg.TranscriptConfidenceThreshold = 0.6
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Orchestrator{
		store:        st,
		gateway:      gateway,
		collector:    collector,
		cfg:          cfg,
		locks:        make(map[int64]*sync.Mutex),
		pendingVoice: make(map[int64]string),
	}
}

// userLock returns the mutex for a handle, creating it on first use.
func (o *Orchestrator) userLock(userHandle int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[userHandle]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[userHandle] = lock
	}
	return lock
}

// HandleUserTurn processes one typed participant message and returns the
// interviewer's reply. Gateway failures yield an apology turn without
// touching session state; store failures yield the computed turn flagged as
// not durably committed.
func (o *Orchestrator) HandleUserTurn(ctx context.Context, userHandle int64, displayName, utterance string) (models.OutboundTurn, error) {
	if userHandle <= 0 {
		return models.OutboundTurn{}, models.ErrInvalidUserHandle
	}
	lock := o.userLock(userHandle)
	lock.Lock()
	defer lock.Unlock()
	return o.handleTurnLocked(ctx, userHandle, displayName, utterance)
}

func (o *Orchestrator) handleTurnLocked(ctx context.Context, userHandle int64, displayName, utterance string) (models.OutboundTurn, error) {
	start := time.Now()
	session, err := o.loadOrCreate(userHandle, displayName)
	if err != nil {
		return models.OutboundTurn{}, err
	}

	turnCtx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	parsed, tag, err := o.gateway.GenerateTurn(turnCtx, session, utterance)
	if err != nil {
		kind := models.ErrorTypeUnknown
		var gwErr *models.GatewayError
		if errors.As(err, &gwErr) {
			kind = gwErr.Type
		}
		o.collector.RecordGatewayError(kind)
		o.collector.RecordTurn(session.CurrentStage, "gateway_error", time.Since(start))
		slog.Error("Orchestrator.HandleUserTurn: gateway failed",
			"userHandle", userHandle, "stage", session.CurrentStage, "errorType", kind.String(), "error", err)
		return models.OutboundTurn{
			Text:             apologyMessage,
			Stage:            session.CurrentStage,
			ErrorKind:        kind.String(),
			DurablyCommitted: true,
		}, nil
	}

	turn := o.applyTurn(session, utterance, parsed)
	turn.ErrorKind = tag

	status := "ok"
	if tag != "" {
		status = "fallback"
	}
	if err := o.persist(session, &turn); err != nil {
		status = "store_error"
		slog.Error("Orchestrator.HandleUserTurn: persist failed, serving non-durable turn",
			"userHandle", userHandle, "stage", session.CurrentStage, "error", err)
		turn.DurablyCommitted = false
		if turn.ErrorKind == "" {
			turn.ErrorKind = models.TagSessionStoreError
		}
	}
	o.collector.RecordTurn(turn.Stage, status, time.Since(start))
	return turn, nil
}

// loadOrCreate fetches the active session, replacing an expired one with a
// fresh session after archiving the old as abandoned.
func (o *Orchestrator) loadOrCreate(userHandle int64, displayName string) (*models.InterviewSession, error) {
	session, err := o.store.GetSession(userHandle)
	switch {
	case err == nil:
		if !session.Expired(o.cfg.InactivityTimeout) {
			if displayName != "" && session.DisplayName == "" {
				session.DisplayName = displayName
			}
			return session, nil
		}
		archived := models.NewArchivedSession(session, models.CompletionAbandoned)
		if archErr := o.store.ArchiveSession(&archived); archErr != nil {
			slog.Warn("Orchestrator.loadOrCreate: failed to archive expired session",
				"userHandle", userHandle, "error", archErr)
		} else {
			o.collector.RecordArchive(models.CompletionAbandoned)
		}
		if delErr := o.store.DeleteSession(userHandle); delErr != nil {
			slog.Warn("Orchestrator.loadOrCreate: failed to delete expired session",
				"userHandle", userHandle, "error", delErr)
		}
		slog.Info("Orchestrator.loadOrCreate: expired session archived, starting fresh",
			"userHandle", userHandle, "idle", time.Since(session.LastActivityAt))
		return models.NewInterviewSession(userHandle, displayName, o.cfg.DefaultPersona), nil
	case errors.Is(err, models.ErrSessionNotFound):
		return models.NewInterviewSession(userHandle, displayName, o.cfg.DefaultPersona), nil
	default:
		return nil, err
	}
}

// applyTurn folds a validated model turn into the session and decides stage
// movement. It mutates session in memory only; persistence happens after.
func (o *Orchestrator) applyTurn(session *models.InterviewSession, utterance string, parsed contract.ParsedTurn) models.OutboundTurn {
	priorStage := session.CurrentStage

	session.AddMessage(models.RoleUser, utterance, o.cfg.MaxHistoryEntries)
	session.AddMessage(models.RoleAssistant, parsed.Message, o.cfg.MaxHistoryEntries)

	// Completeness never regresses within a stage.
	reported := stage.ClampCompleteness(parsed.Completeness)
	if reported > session.StageCompleteness[priorStage] {
		session.StageCompleteness[priorStage] = reported
	}
	if models.IsValidEngagementLevel(parsed.Engagement) {
		session.EngagementLevel = parsed.Engagement
	}
	session.KeyInsights = append(session.KeyInsights, parsed.Insights...)
	if parsed.ExamplesDelta > 0 {
		session.ExamplesCollected += parsed.ExamplesDelta
	}
	session.Touch()

	text := parsed.Message
	turn := models.OutboundTurn{DurablyCommitted: true}

	next, advanced := stage.Advance(priorStage, session.StageCompleteness[priorStage])
	if advanced {
		o.collector.RecordStageTransition(priorStage, next)
		slog.Info("Orchestrator.applyTurn: stage advanced",
			"userHandle", session.UserHandle, "from", priorStage, "to", next,
			"completeness", session.StageCompleteness[priorStage])
		session.CurrentStage = next
		session.QuestionDepth = 1
		text = transitionAnnouncement(priorStage, session.StageCompleteness[priorStage], next) + "\n\n" + parsed.Message
	} else {
		topicChanged := parsed.Stage != priorStage
		session.QuestionDepth = stage.NextDepth(session.QuestionDepth, parsed.QuestionDepth, topicChanged)
	}

	if priorStage == models.StageWrapUp && session.StageCompleteness[priorStage] >= stage.CompletionThreshold {
		turn.Archived = true
		text = parsed.Message + "\n\n" + completionSummary(session)
	}

	turn.Text = text
	turn.Stage = session.CurrentStage
	return turn
}

// persist writes the turn's session mutation. Archival replaces the active
// record; ordinary turns overwrite it.
func (o *Orchestrator) persist(session *models.InterviewSession, turn *models.OutboundTurn) error {
	if turn.Archived {
		archived := models.NewArchivedSession(session, models.CompletionNatural)
		if err := o.store.ArchiveSession(&archived); err != nil {
			return err
		}
		o.collector.RecordArchive(models.CompletionNatural)
		o.dropPendingVoice(session.UserHandle)
		return o.store.DeleteSession(session.UserHandle)
	}
	return o.store.SaveSession(session)
}

// Reset discards any active session and starts a fresh interview at the
// greeting stage, keeping the prior display name and persona when known.
func (o *Orchestrator) Reset(ctx context.Context, userHandle int64) (models.OutboundTurn, error) {
	if userHandle <= 0 {
		return models.OutboundTurn{}, models.ErrInvalidUserHandle
	}
	lock := o.userLock(userHandle)
	lock.Lock()
	defer lock.Unlock()

	displayName := ""
	persona := o.cfg.DefaultPersona
	if prior, err := o.store.GetSession(userHandle); err == nil {
		displayName = prior.DisplayName
		persona = prior.Persona
	}
	if err := o.store.DeleteSession(userHandle); err != nil {
		return models.OutboundTurn{}, err
	}
	o.dropPendingVoice(userHandle)

	session := models.NewInterviewSession(userHandle, displayName, persona)
	if err := o.store.SaveSession(session); err != nil {
		return models.OutboundTurn{}, err
	}
	slog.Info("Orchestrator.Reset: session reset", "userHandle", userHandle, "persona", persona)
	return models.OutboundTurn{
		Text:             welcomeMessage(displayName),
		Stage:            session.CurrentStage,
		DurablyCommitted: true,
	}, nil
}

// Complete archives the active session immediately regardless of progress.
func (o *Orchestrator) Complete(ctx context.Context, userHandle int64) (models.OutboundTurn, error) {
	if userHandle <= 0 {
		return models.OutboundTurn{}, models.ErrInvalidUserHandle
	}
	lock := o.userLock(userHandle)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.store.GetSession(userHandle)
	if err != nil {
		return models.OutboundTurn{}, err
	}
	archived := models.NewArchivedSession(session, models.CompletionExplicit)
	if err := o.store.ArchiveSession(&archived); err != nil {
		return models.OutboundTurn{}, err
	}
	o.collector.RecordArchive(models.CompletionExplicit)
	if err := o.store.DeleteSession(userHandle); err != nil {
		return models.OutboundTurn{}, err
	}
	o.dropPendingVoice(userHandle)
	slog.Info("Orchestrator.Complete: session archived on request",
		"userHandle", userHandle, "stage", session.CurrentStage)
	return models.OutboundTurn{
		Text:             completionSummary(session),
		Stage:            session.CurrentStage,
		Archived:         true,
		DurablyCommitted: true,
	}, nil
}

// Status reports the active session's progress.
func (o *Orchestrator) Status(ctx context.Context, userHandle int64) (models.StatusReport, error) {
	if userHandle <= 0 {
		return models.StatusReport{}, models.ErrInvalidUserHandle
	}
	session, err := o.store.GetSession(userHandle)
	if err != nil {
		return models.StatusReport{}, err
	}
	progress := make([]models.StageProgress, 0, len(models.StageOrder))
	for _, s := range models.StageOrder {
		progress = append(progress, models.StageProgress{
			Stage:        s,
			Label:        s.Label(),
			Completeness: session.StageCompleteness[s],
			Active:       s == session.CurrentStage,
		})
	}
	return models.StatusReport{
		Stage:           session.CurrentStage,
		Persona:         session.Persona,
		Progress:        progress,
		DurationMinutes: int(session.Duration().Minutes()),
		MessageCount:    len(session.ConversationHistory),
		QuestionDepth:   session.QuestionDepth,
		Engagement:      session.EngagementLevel,
		Examples:        session.ExamplesCollected,
		Insights:        len(session.KeyInsights),
	}, nil
}
