// Package stage implements the pure stage-transition policy for the 9-stage
// interview protocol. It performs no I/O; the orchestrator owns persistence
// and applies the decisions made here.
package stage

import "github.com/interviewpipe/interviewpipe/internal/models"

// Policy constants governing stage transitions.
const (
	// CompletionThreshold is the completeness percentage at which a stage is
	// considered covered and the interview advances.
	CompletionThreshold = 80
	// MinDepthForOffer is the question depth required before the model may
	// legitimately offer a transition on a key topic. The model's own
	// transition_ready flag is advisory; this gate is what the orchestrator
	// trusts.
	MinDepthForOffer = 3
)

// Next returns the stage after current in protocol order. The terminal stage
// maps to itself.
func Next(current models.Stage) models.Stage {
	idx := current.Index()
	if idx < 0 || idx >= len(models.StageOrder)-1 {
		return current
	}
	return models.StageOrder[idx+1]
}

// Advance applies the transition function: it moves exactly one stage forward
// when the current stage's completeness has reached the threshold, and stays
// put otherwise. The second return reports whether a transition happened.
// The terminal stage never advances; reaching the threshold there is the
// orchestrator's signal to archive instead.
func Advance(current models.Stage, completeness int) (models.Stage, bool) {
	if completeness < CompletionThreshold {
		return current, false
	}
	if current.IsTerminal() {
		return current, false
	}
	return Next(current), true
}

// OfferEligible reports whether a model-offered transition is credible given
// the orchestrator's own counters: threshold completeness and sufficient
// question depth on the current topic. Both are necessary, neither alone is
// sufficient.
func OfferEligible(completeness, depth int) bool {
	return completeness >= CompletionThreshold && depth >= MinDepthForOffer
}

// ClampCompleteness bounds a reported completeness percentage to 0-100.
func ClampCompleteness(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// NextDepth computes the question depth after a turn. Depth resets to the
// minimum when the model signals a topic change (a stage different from the
// session's current one), and otherwise grows by at most one per turn,
// bounded to the valid range.
func NextDepth(previous, reported int, topicChanged bool) int {
	if topicChanged {
		return models.MinQuestionDepth
	}
	depth := reported
	if depth > previous+1 {
		depth = previous + 1
	}
	if depth < models.MinQuestionDepth {
		depth = models.MinQuestionDepth
	}
	if depth > models.MaxQuestionDepth {
		depth = models.MaxQuestionDepth
	}
	return depth
}
