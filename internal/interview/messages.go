package interview

import (
	"fmt"
	"strings"

	"github.com/interviewpipe/interviewpipe/internal/models"
	"github.com/interviewpipe/interviewpipe/internal/stage"
)

const apologyMessage = "I'm sorry, I'm having trouble thinking right now. " +
	"Could you give me a moment and try sending that again?"

const voiceFailedMessage = "I couldn't make out that voice message. " +
	"Please try again, or type your answer instead."

const voiceNothingPendingMessage = "There's no voice message waiting for confirmation. " +
	"Feel free to just type your answer."

func voiceConfirmPrompt(text string) string {
	return fmt.Sprintf("I heard: %q\n\nDid I get that right? Confirm to continue, or retype your answer.", text)
}

func welcomeMessage(displayName string) string {
	greeting := "Welcome!"
	if displayName != "" {
		greeting = fmt.Sprintf("Welcome, %s!", displayName)
	}
	return greeting + " I'm your interviewer for a structured conversation about your professional expertise. " +
		"We'll move through nine short stages, starting with getting to know you. " +
		"Whenever you're ready, tell me a bit about yourself."
}

// transitionAnnouncement is prepended to the interviewer's reply when a
// stage completes.
func transitionAnnouncement(finished models.Stage, completeness int, next models.Stage) string {
	return fmt.Sprintf("Stage complete! %s finished at %d%%.\n\nMoving to: %s",
		finished.Label(), completeness, next.Label())
}

// completionSummary renders the end-of-interview recap: duration, volume
// counters, and the per-stage completeness checklist.
func completionSummary(session *models.InterviewSession) string {
	var b strings.Builder
	b.WriteString("Interview complete!\n\nSession summary:\n")
	fmt.Fprintf(&b, "- Duration: %d minutes\n", int(session.Duration().Minutes()))
	fmt.Fprintf(&b, "- Messages exchanged: %d\n", len(session.ConversationHistory))
	fmt.Fprintf(&b, "- Examples collected: %d\n", session.ExamplesCollected)
	fmt.Fprintf(&b, "- Key insights: %d\n", len(session.KeyInsights))
	b.WriteString("\nStages completed:\n")
	for _, s := range models.StageOrder {
		completeness := session.StageCompleteness[s]
		marker := "[ ]"
		switch {
		case completeness >= stage.CompletionThreshold:
			marker = "[x]"
		case completeness >= 50:
			marker = "[~]"
		}
		fmt.Fprintf(&b, "%s %s: %d%%\n", marker, s.Label(), completeness)
	}
	b.WriteString("\nThank you for participating! Your professional insights have been valuable.")
	return b.String()
}
