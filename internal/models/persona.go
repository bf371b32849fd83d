package models

// Persona selects one of the fixed interviewer personality templates.
// It is chosen at session creation and immutable afterwards.
type Persona string

const (
	// PersonaMaster is the comprehensive, systematic interviewer.
	PersonaMaster Persona = "v1_master"
	// PersonaTelegramOptimized keeps messages concise and mobile-friendly.
	PersonaTelegramOptimized Persona = "v2_telegram"
	// PersonaConversational balances natural flow with systematic coverage.
	PersonaConversational Persona = "v3_conversational"
	// PersonaStageSpecific uses a specialized approach per interview stage.
	PersonaStageSpecific Persona = "v4_stage_specific"
	// PersonaConversationMgmt carries advanced recovery and adaptation protocols.
	PersonaConversationMgmt Persona = "v5_conversation_mgmt"
)

// DefaultPersona is used when a session is created without an explicit choice.
const DefaultPersona = PersonaConversational

var personaDescriptions = map[Persona]string{
	PersonaMaster:            "Master Interviewer - comprehensive and systematic approach",
	PersonaTelegramOptimized: "Telegram Optimized - mobile-friendly with concise messages",
	PersonaConversational:    "Conversational Balance - natural flow with systematic coverage",
	PersonaStageSpecific:     "Stage Specific - detailed approach for each interview stage",
	PersonaConversationMgmt:  "Conversation Management - advanced recovery and adaptation",
}

// IsValidPersona checks if the given persona is one of the fixed templates.
func IsValidPersona(p Persona) bool {
	_, ok := personaDescriptions[p]
	return ok
}

// Description returns the human-readable description of the persona.
func (p Persona) Description() string {
	if d, ok := personaDescriptions[p]; ok {
		return d
	}
	return "Unknown persona"
}

// Personas returns all persona ids in a stable order.
func Personas() []Persona {
	return []Persona{
		PersonaMaster,
		PersonaTelegramOptimized,
		PersonaConversational,
		PersonaStageSpecific,
		PersonaConversationMgmt,
	}
}
