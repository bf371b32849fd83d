// Package voice defines the speech transcription boundary. The orchestrator
// consumes transcriptions produced elsewhere; no audio processing happens
// here.
package voice

import "context"

// Confidence thresholds for transcription quality banding.
const (
	// LowConfidenceThreshold marks transcriptions needing user confirmation.
	LowConfidenceThreshold = 0.6
	// HighConfidenceThreshold marks transcriptions treated as verbatim text.
	HighConfidenceThreshold = 0.85
)

// Transcription is one speech-to-text result.
type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

// Transcriber converts captured audio into text.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audio []byte) (Transcription, error)
}

// Quality bands a transcription by confidence.
type Quality string

const (
	QualityFailed Quality = "failed"
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Grade maps a confidence score onto a quality band. Empty text always
// grades as failed regardless of the reported score.
func Grade(t Transcription) Quality {
	if t.Text == "" || t.Confidence <= 0 {
		return QualityFailed
	}
	switch {
	case t.Confidence < LowConfidenceThreshold:
		return QualityLow
	case t.Confidence < HighConfidenceThreshold:
		return QualityMedium
	default:
		return QualityHigh
	}
}
