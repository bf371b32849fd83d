// Package personas provides the interviewer system prompt templates and the
// per-stage guidance blocks assembled into every outbound request.
package personas

import (
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/interviewpipe/interviewpipe/internal/models"
)

//go:embed prompts/*.md
var promptFiles embed.FS

var personaFiles = map[models.Persona]string{
	models.PersonaMaster:            "prompts/v1_master_interviewer.md",
	models.PersonaTelegramOptimized: "prompts/v2_telegram_optimized.md",
	models.PersonaConversational:    "prompts/v3_conversational_balanced.md",
	models.PersonaStageSpecific:     "prompts/v4_stage_specific.md",
	models.PersonaConversationMgmt:  "prompts/v5_conversation_management.md",
}

// basicPrompt is the fallback when a persona template cannot be loaded.
const basicPrompt = `You are an AI interviewer conducting professional knowledge extraction interviews.
Follow the 9-stage interview process and always respond in the required JSON format.
Ask one question at a time and dig deeper into responses.`

// replyContract instructs the model on the structured reply format. It is
// appended to every system prompt so that the response contract validator has
// something to parse.
const replyContract = `
RESPONSE FORMAT - reply with a single JSON object and nothing else:
{
  "stage": "<current or next stage id>",
  "message": "<your reply to the participant, 10-2000 characters, at most one question>",
  "question_depth": <1-4>,
  "completeness": <0-100, coverage of the current stage's objectives>,
  "engagement_level": "high" | "medium" | "low",
  "insights": ["<key insight worth keeping>", ...],
  "examples_delta": <number of new concrete examples in this answer>,
  "follow_up_needed": ["<topic to revisit>", ...],
  "transition_ready": <true when the current stage is fully covered>
}`

var stageGuidance = map[models.Stage]string{
	models.StageGreeting:     "Build rapport, explain the process briefly, and learn what the participant does. Keep it light.",
	models.StageProfiling:    "Map the participant's background: role, seniority, industry, team shape, and career path so far.",
	models.StageEssence:      "Explore role philosophy: what the job is really about, what separates it from adjacent roles, what success means.",
	models.StageOperations:   "Walk through concrete work processes step by step. Ask for a recent, specific instance rather than generalities.",
	models.StageExpertiseMap: "Chart knowledge areas and the participant's depth in each. Identify which areas carry the real leverage.",
	models.StageFailureModes: "Collect common mistakes, anti-patterns, and early warning signs. Ask for failures they have seen or made.",
	models.StageMastery:      "Extract expert judgment: the calls only an experienced practitioner gets right, and how they make them.",
	models.StageGrowthPath:   "Trace how someone grows into this expertise: stages, timelines, and what unlocks each level.",
	models.StageWrapUp:       "Validate the key insights collected, fill remaining gaps, and close the interview gracefully.",
}

var loaded = loadPrompts()

func loadPrompts() map[models.Persona]string {
	prompts := make(map[models.Persona]string, len(personaFiles))
	for persona, file := range personaFiles {
		content, err := promptFiles.ReadFile(file)
		if err != nil {
			slog.Error("personas.loadPrompts: prompt template missing, using basic prompt", "persona", persona, "file", file, "error", err)
			prompts[persona] = basicPrompt
			continue
		}
		prompts[persona] = strings.TrimSpace(string(content))
	}
	return prompts
}

// Prompt assembles the full system prompt for a persona at a given stage:
// the persona template, the active stage's guidance, and the reply contract.
func Prompt(persona models.Persona, stage models.Stage) string {
	base, ok := loaded[persona]
	if !ok {
		slog.Warn("personas.Prompt: unknown persona, using basic prompt", "persona", persona)
		base = basicPrompt
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("CURRENT STAGE: %s (%s, roughly %d minutes)\n", stage, stage.Label(), int(stage.ExpectedDuration().Minutes())))
	if guidance, ok := stageGuidance[stage]; ok {
		b.WriteString(guidance)
		b.WriteString("\n")
	}
	b.WriteString(replyContract)
	return b.String()
}
