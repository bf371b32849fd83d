package interview

import (
	"context"
	"log/slog"

	"github.com/interviewpipe/interviewpipe/internal/models"
	"github.com/interviewpipe/interviewpipe/internal/voice"
)

// HandleVoiceTurn processes a transcribed voice message. High-confidence
// transcripts flow straight into the interview; low-confidence ones are held
// until the participant confirms them; failed transcriptions get a retry
// prompt without touching session state.
func (o *Orchestrator) HandleVoiceTurn(ctx context.Context, userHandle int64, displayName string, transcript voice.Transcription) (models.OutboundTurn, error) {
	if userHandle <= 0 {
		return models.OutboundTurn{}, models.ErrInvalidUserHandle
	}
	if voice.Grade(transcript) == voice.QualityFailed {
		slog.Warn("Orchestrator.HandleVoiceTurn: transcription failed",
			"userHandle", userHandle, "confidence", transcript.Confidence)
		return models.OutboundTurn{Text: voiceFailedMessage, DurablyCommitted: true}, nil
	}
	// The confirmation gate runs on the configured threshold, not the fixed
	// quality bands, so operators can demand confirmation above 0.6.
	if transcript.Confidence < o.cfg.TranscriptConfidenceThreshold {
		o.holdPendingVoice(userHandle, transcript.Text)
		slog.Info("Orchestrator.HandleVoiceTurn: holding low-confidence transcript",
			"userHandle", userHandle, "confidence", transcript.Confidence)
		return models.OutboundTurn{
			Text:             voiceConfirmPrompt(transcript.Text),
			SuggestedActions: []string{"confirm", "retype"},
			DurablyCommitted: true,
		}, nil
	}
	return o.HandleUserTurn(ctx, userHandle, displayName, transcript.Text)
}

// ConfirmVoiceTurn feeds the held transcript through as a typed turn. It
// errors when nothing is pending for the handle.
func (o *Orchestrator) ConfirmVoiceTurn(ctx context.Context, userHandle int64, displayName string) (models.OutboundTurn, error) {
	if userHandle <= 0 {
		return models.OutboundTurn{}, models.ErrInvalidUserHandle
	}
	text, ok := o.takePendingVoice(userHandle)
	if !ok {
		return models.OutboundTurn{Text: voiceNothingPendingMessage, DurablyCommitted: true}, nil
	}
	return o.HandleUserTurn(ctx, userHandle, displayName, text)
}

func (o *Orchestrator) holdPendingVoice(userHandle int64, text string) {
	o.voiceMu.Lock()
	defer o.voiceMu.Unlock()
	o.pendingVoice[userHandle] = text
}

func (o *Orchestrator) takePendingVoice(userHandle int64) (string, bool) {
	o.voiceMu.Lock()
	defer o.voiceMu.Unlock()
	text, ok := o.pendingVoice[userHandle]
	if ok {
		delete(o.pendingVoice, userHandle)
	}
	return text, ok
}

func (o *Orchestrator) dropPendingVoice(userHandle int64) {
	o.voiceMu.Lock()
	defer o.voiceMu.Unlock()
	delete(o.pendingVoice, userHandle)
}
