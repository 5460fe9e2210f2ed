// Package resolver turns detected task signals into a budget-respecting,
// deterministic load plan over the context catalog. Selection runs in three
// strict priority tiers: always-load, detection-matched, and on-demand.
package resolver

import (
	"fmt"
)

// =============================================================================
// Task Signal
// =============================================================================

// TaskSignal is the set of detected facts about the current task. Produced
// by detection logic outside the engine (see core/detect for the built-in
// workspace scanner) and consumed read-only by the resolver.
type TaskSignal struct {
	// Domains are the coarse categories the task touches.
	Domains []string

	// Detected are concrete facts: framework variants, file-pattern hits.
	Detected []string

	// Topics are free-text topic requests, matched by keyword overlap.
	Topics []string

	// Requested are explicit document IDs (manual overrides).
	Requested []string
}

// =============================================================================
// Load Plan
// =============================================================================

// Reason records why a plan entry was selected.
type Reason int

const (
	// ReasonAlways marks a tier-1 always-load selection.
	ReasonAlways Reason = iota
	// ReasonDetection marks a tier-2 selection matched by detected facts.
	ReasonDetection
	// ReasonManual marks a tier-3 selection explicitly requested by ID.
	ReasonManual
	// ReasonTopic marks a tier-3 selection matched by free-text topic.
	ReasonTopic
)

// String returns the reason's wire spelling.
func (r Reason) String() string {
	switch r {
	case ReasonAlways:
		return "always"
	case ReasonDetection:
		return "detection"
	case ReasonManual:
		return "manual"
	case ReasonTopic:
		return "topic"
	}
	return "unknown"
}

// PlanEntry is one admitted document (or document subset) in a load plan.
type PlanEntry struct {
	// DocumentID references the catalog document.
	DocumentID string

	// Sections names the admitted sections. Empty means the whole document.
	Sections []string

	// Reason records which tier admitted the entry.
	Reason Reason

	// Signal is the matched detection fact or topic text, when applicable.
	Signal string

	// CostTokens is the amount actually charged against the budget.
	CostTokens int
}

// SkipReason records why a candidate was omitted from the plan.
type SkipReason int

const (
	// SkipBudget marks a candidate refused for budget reasons.
	SkipBudget SkipReason = iota
	// SkipUnknown marks an explicitly requested ID absent from the catalog.
	SkipUnknown
)

// String returns the skip reason's wire spelling.
func (r SkipReason) String() string {
	switch r {
	case SkipBudget:
		return "budget"
	case SkipUnknown:
		return "unknown"
	}
	return "unknown"
}

// SkippedDoc records a candidate omitted from the plan. Omissions are always
// reported, never silently discarded, so the host can surface "ran with
// reduced context".
type SkippedDoc struct {
	DocumentID string
	Reason     SkipReason
	CostTokens int
}

// LoadPlan is the ordered, budget-respecting context selection for one
// session. Frozen once produced.
type LoadPlan struct {
	Entries []PlanEntry
	Skipped []SkippedDoc
}

// TotalTokens returns the sum of all entry costs.
func (p *LoadPlan) TotalTokens() int {
	total := 0
	for _, entry := range p.Entries {
		total += entry.CostTokens
	}
	return total
}

// =============================================================================
// Errors
// =============================================================================

// ConfigDefectError reports an always-load document that cannot fit the
// session budget. This is an authoring defect, not a runtime condition: no
// partial plan is returned alongside it.
type ConfigDefectError struct {
	DocumentID string
	CostTokens int
	MaxTokens  int
}

func (e *ConfigDefectError) Error() string {
	return fmt.Sprintf("always-load document %s (%d tokens) exceeds session budget (%d tokens)",
		e.DocumentID, e.CostTokens, e.MaxTokens)
}
