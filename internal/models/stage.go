// Package models defines the core data structures for InterviewPipe.
//
// It includes the interview stage protocol, session records, personas, and
// the typed errors shared across modules.
package models

import "time"

// Stage identifies one phase of the 9-stage interview protocol.
type Stage string

const (
	// StageGreeting builds rapport and explains the process.
	StageGreeting Stage = "greeting"
	// StageProfiling covers the participant's background.
	StageProfiling Stage = "profiling"
	// StageEssence explores role philosophy.
	StageEssence Stage = "essence"
	// StageOperations covers concrete work processes.
	StageOperations Stage = "operations"
	// StageExpertiseMap charts knowledge levels across the domain.
	StageExpertiseMap Stage = "expertise_map"
	// StageFailureModes collects common mistakes and anti-patterns.
	StageFailureModes Stage = "failure_modes"
	// StageMastery extracts expert-level insights.
	StageMastery Stage = "mastery"
	// StageGrowthPath covers the development timeline.
	StageGrowthPath Stage = "growth_path"
	// StageWrapUp validates and closes the interview.
	StageWrapUp Stage = "wrap_up"
)

// StageOrder is the fixed, total order of interview stages. Transitions only
// ever move forward through this slice, one index at a time.
var StageOrder = []Stage{
	StageGreeting,
	StageProfiling,
	StageEssence,
	StageOperations,
	StageExpertiseMap,
	StageFailureModes,
	StageMastery,
	StageGrowthPath,
	StageWrapUp,
}

// stageInfo carries the human-facing label and expected-duration hint for a stage.
type stageInfo struct {
	label    string
	duration time.Duration
}

var stageInfos = map[Stage]stageInfo{
	StageGreeting:     {"Greeting (Building Rapport)", 5 * time.Minute},
	StageProfiling:    {"Profiling (Background)", 10 * time.Minute},
	StageEssence:      {"Essence (Role Philosophy)", 15 * time.Minute},
	StageOperations:   {"Operations (Work Processes)", 20 * time.Minute},
	StageExpertiseMap: {"Expertise Map (Knowledge Levels)", 20 * time.Minute},
	StageFailureModes: {"Failure Modes (Common Mistakes)", 20 * time.Minute},
	StageMastery:      {"Mastery (Expert Insights)", 15 * time.Minute},
	StageGrowthPath:   {"Growth Path (Development)", 15 * time.Minute},
	StageWrapUp:       {"Wrap Up (Final Validation)", 5 * time.Minute},
}

// IsValidStage checks if the given stage is part of the protocol.
func IsValidStage(s Stage) bool {
	_, ok := stageInfos[s]
	return ok
}

// Index returns the position of the stage in the protocol order, or -1 for
// unknown stages.
func (s Stage) Index() int {
	for i, st := range StageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Label returns the human-facing label for the stage.
func (s Stage) Label() string {
	if info, ok := stageInfos[s]; ok {
		return info.label
	}
	return string(s)
}

// ExpectedDuration returns the informational duration hint for the stage.
// It is not enforced as a deadline.
func (s Stage) ExpectedDuration() time.Duration {
	if info, ok := stageInfos[s]; ok {
		return info.duration
	}
	return 0
}

// IsTerminal reports whether the stage is the last one in the protocol.
func (s Stage) IsTerminal() bool {
	return s == StageWrapUp
}
