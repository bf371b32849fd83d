package personas

import (
	"strings"
	"testing"

	"github.com/interviewpipe/interviewpipe/internal/models"
)

func TestPromptAllPersonasLoaded(t *testing.T) {
	for _, p := range models.Personas() {
		prompt := Prompt(p, models.StageGreeting)
		if prompt == "" {
			t.Errorf("empty prompt for persona %s", p)
		}
		if strings.Contains(prompt, basicPrompt) {
			t.Errorf("persona %s fell back to basic prompt; template missing", p)
		}
		if !strings.Contains(prompt, "RESPONSE FORMAT") {
			t.Errorf("persona %s prompt missing reply contract", p)
		}
	}
}

func TestPromptIncludesStageGuidance(t *testing.T) {
	prompt := Prompt(models.PersonaMaster, models.StageFailureModes)
	if !strings.Contains(prompt, "CURRENT STAGE: failure_modes") {
		t.Error("prompt missing current stage header")
	}
	if !strings.Contains(prompt, stageGuidance[models.StageFailureModes]) {
		t.Error("prompt missing stage guidance block")
	}
}

func TestPromptUnknownPersonaFallsBack(t *testing.T) {
	prompt := Prompt(models.Persona("v9_bogus"), models.StageGreeting)
	if !strings.Contains(prompt, basicPrompt) {
		t.Error("unknown persona should use basic prompt")
	}
}
