package resolver

import (
	"sort"
	"strings"

	"github.com/forgehq/forge/core/budget"
	"github.com/forgehq/forge/core/catalog"
)

// =============================================================================
// Resolver
// =============================================================================

// Resolver produces load plans from task signals. It consults the catalog
// index and a budget tracker; both the index and the resolver itself are
// safe to share across sessions (resolution is a pure computation over
// immutable inputs plus the session-owned tracker).
type Resolver struct {
	catalog *catalog.Index
	topics  *catalog.TopicSearcher
}

// New creates a Resolver over the given catalog. The topic searcher is
// optional: without one, free-text topics fall back to tag matching.
func New(index *catalog.Index, topics *catalog.TopicSearcher) *Resolver {
	return &Resolver{catalog: index, topics: topics}
}

// Resolve evaluates the three priority tiers in order and returns the plan.
//
// Tier 1 admits every always-load document in a domain relevant to the
// signal; one that does not fit is a configuration defect and aborts the
// resolution. Tiers 2 and 3 degrade gracefully: after the first budget
// refusal the refused document may still be admitted as its best-matching
// section, but every candidate after that point is recorded as skipped
// rather than attempted, so tier order is strictly respected.
//
// Deterministic: identical catalog, signal, and budget state yield an
// identical plan.
func (r *Resolver) Resolve(signal TaskSignal, tracker *budget.Tracker) (*LoadPlan, error) {
	state := &resolveState{
		tracker: tracker,
		plan:    &LoadPlan{},
		seen:    make(map[string]struct{}),
	}

	if err := r.resolveAlways(signal, state); err != nil {
		return nil, err
	}
	r.resolveDetection(signal, state)
	r.resolveRequested(signal, state)
	r.resolveTopics(signal, state)

	return state.plan, nil
}

// resolveState carries the mutable bookkeeping of one resolution.
type resolveState struct {
	tracker *budget.Tracker
	plan    *LoadPlan
	seen    map[string]struct{}

	// exhausted is set on the first budget refusal; all later candidates
	// are skipped without attempting a reservation.
	exhausted bool
}

// =============================================================================
// Tier 1: Always
// =============================================================================

func (r *Resolver) resolveAlways(signal TaskSignal, state *resolveState) error {
	for _, domain := range sortedUnique(signal.Domains) {
		for _, doc := range r.catalog.ListByDomain(domain) {
			if doc.Strategy != catalog.StrategyAlways {
				continue
			}
			if _, ok := state.seen[doc.ID]; ok {
				continue
			}
			if !state.tracker.TryReserve(doc.EstimatedTokens, 1) {
				return &ConfigDefectError{
					DocumentID: doc.ID,
					CostTokens: doc.EstimatedTokens,
					MaxTokens:  state.tracker.MaxTokens(),
				}
			}
			state.admit(doc, PlanEntry{
				DocumentID: doc.ID,
				Reason:     ReasonAlways,
				CostTokens: doc.EstimatedTokens,
			})
		}
	}
	return nil
}

// =============================================================================
// Tier 2: Detection
// =============================================================================

func (r *Resolver) resolveDetection(signal TaskSignal, state *resolveState) {
	if len(signal.Detected) == 0 {
		return
	}
	for _, doc := range r.catalog.FindByTags(signal.Detected) {
		if doc.Strategy != catalog.StrategyDetection {
			continue
		}
		if _, ok := state.seen[doc.ID]; ok {
			continue
		}
		r.attempt(state, doc, ReasonDetection, matchedSignals(doc, signal.Detected), signal.Detected)
	}
}

// =============================================================================
// Tier 3: Manual requests, then topics
// =============================================================================

func (r *Resolver) resolveRequested(signal TaskSignal, state *resolveState) {
	for _, id := range signal.Requested {
		doc, ok := r.catalog.Get(id)
		if !ok {
			state.plan.Skipped = append(state.plan.Skipped, SkippedDoc{
				DocumentID: id,
				Reason:     SkipUnknown,
			})
			continue
		}
		if _, dup := state.seen[doc.ID]; dup {
			continue
		}
		r.attempt(state, doc, ReasonManual, "", signal.Detected)
	}
}

func (r *Resolver) resolveTopics(signal TaskSignal, state *resolveState) {
	for _, topic := range signal.Topics {
		for _, doc := range r.topicCandidates(topic) {
			if doc.Strategy != catalog.StrategyOnDemand {
				continue
			}
			if _, ok := state.seen[doc.ID]; ok {
				continue
			}
			r.attempt(state, doc, ReasonTopic, topic, strings.Fields(topic))
		}
	}
}

// topicCandidates ranks documents for one free-text topic. With a topic
// searcher the full-text index answers; otherwise the topic words are
// treated as tags.
func (r *Resolver) topicCandidates(topic string) []*catalog.Document {
	if r.topics == nil {
		return r.catalog.FindByTags(strings.Fields(topic))
	}

	matches, err := r.topics.Search(topic, catalog.DefaultTopicLimit)
	if err != nil {
		return r.catalog.FindByTags(strings.Fields(topic))
	}

	docs := make([]*catalog.Document, 0, len(matches))
	for _, match := range matches {
		if doc, ok := r.catalog.Get(match.DocumentID); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

// =============================================================================
// Admission
// =============================================================================

// attempt tries to admit a document: the whole file first and, if the budget
// refuses, its best-matching single section. Either failure after the first
// refusal marks the resolution exhausted.
func (r *Resolver) attempt(state *resolveState, doc *catalog.Document, reason Reason, signalText string, matchWords []string) {
	if state.exhausted {
		state.skip(doc)
		return
	}

	if state.tracker.TryReserve(doc.EstimatedTokens, 1) {
		state.admit(doc, PlanEntry{
			DocumentID: doc.ID,
			Reason:     reason,
			Signal:     signalText,
			CostTokens: doc.EstimatedTokens,
		})
		return
	}

	// A refusal happened: later candidates are skipped regardless of what
	// becomes of this document's section fallback.
	state.exhausted = true

	section, ok := doc.BestSection(matchWords)
	if ok && state.tracker.TryReserve(section.EstimatedTokens, 1) {
		state.admit(doc, PlanEntry{
			DocumentID: doc.ID,
			Sections:   []string{section.Name},
			Reason:     reason,
			Signal:     signalText,
			CostTokens: section.EstimatedTokens,
		})
		return
	}

	state.skip(doc)
}

func (s *resolveState) admit(doc *catalog.Document, entry PlanEntry) {
	s.plan.Entries = append(s.plan.Entries, entry)
	s.seen[doc.ID] = struct{}{}
}

func (s *resolveState) skip(doc *catalog.Document) {
	s.seen[doc.ID] = struct{}{}
	s.plan.Skipped = append(s.plan.Skipped, SkippedDoc{
		DocumentID: doc.ID,
		Reason:     SkipBudget,
		CostTokens: doc.EstimatedTokens,
	})
}

// =============================================================================
// Helpers
// =============================================================================

func sortedUnique(values []string) []string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// matchedSignals returns the detected facts that intersect the document's
// tags, comma-joined for plan reporting.
func matchedSignals(doc *catalog.Document, detected []string) string {
	var matched []string
	for _, tag := range doc.Tags {
		for _, fact := range detected {
			if strings.EqualFold(tag, fact) {
				matched = append(matched, strings.ToLower(fact))
			}
		}
	}
	sort.Strings(matched)
	return strings.Join(matched, ",")
}
