// Package catalog provides the read-only index of context-document metadata
// that drives budget-constrained context selection. Documents are markdown
// files with YAML frontmatter; the catalog reads headers only and never
// interprets document bodies.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Loading Strategy
// =============================================================================

// Strategy controls when a document is eligible for loading.
type Strategy int

const (
	// StrategyAlways marks a document that is loaded for every task in its
	// domain. Authors keep these small; an always document that cannot fit
	// the budget on its own is a configuration defect.
	StrategyAlways Strategy = iota
	// StrategyOnDemand marks a document loaded only on explicit request or
	// free-text topic match.
	StrategyOnDemand
	// StrategyDetection marks a document loaded when its tags intersect the
	// facts detected about the current task.
	StrategyDetection
)

// String returns the frontmatter spelling of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyAlways:
		return "always"
	case StrategyOnDemand:
		return "on_demand"
	case StrategyDetection:
		return "detection"
	}
	return "unknown"
}

// ParseStrategy parses a frontmatter strategy value.
func ParseStrategy(value string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "always":
		return StrategyAlways, true
	case "on_demand", "ondemand", "on-demand":
		return StrategyOnDemand, true
	case "detection":
		return StrategyDetection, true
	}
	return StrategyOnDemand, false
}

// =============================================================================
// Document
// =============================================================================

// tokenTolerance is the allowed relative drift between a document's declared
// token estimate and the sum of its section estimates.
const tokenTolerance = 0.25

// MaxEstimatedTokens bounds a single document's token estimate. Larger
// documents must be split or sectioned.
const MaxEstimatedTokens = 10000

// Section describes a partially-loadable slice of a document. Sections let
// the resolver charge a fraction of a document's cost when the whole file
// does not fit the remaining budget.
type Section struct {
	Name            string   `yaml:"name"`
	EstimatedTokens int      `yaml:"estimatedTokens"`
	Keywords        []string `yaml:"keywords"`
}

// Document is the metadata header of one context document. Immutable after
// the index is built; the index is rebuilt when files change on disk.
type Document struct {
	// ID is domain/slug, unique within the catalog.
	ID string

	// Domain is the coarse category the document belongs to.
	Domain string

	// Title is the human-readable document title.
	Title string

	// Tags are free-text keywords used for detection and topic matching.
	Tags []string

	// EstimatedTokens is the cost charged when the whole document is loaded.
	EstimatedTokens int

	// Strategy controls which resolver tier considers the document.
	Strategy Strategy

	// Sections lists partially-loadable slices, in document order.
	Sections []Section

	// CrossDomains lists additional domains whose tasks may pull this
	// document in. Cross-domain linkage is data, not special-cased code.
	CrossDomains []string

	// Path is the on-disk location of the document body.
	Path string
}

// Validation errors.
var (
	ErrMissingDomain   = errors.New("document missing domain")
	ErrMissingTitle    = errors.New("document missing title")
	ErrInvalidTokens   = errors.New("estimatedTokens out of range")
	ErrInvalidStrategy = errors.New("unknown loading strategy")
	ErrSectionDrift    = errors.New("section token estimates drift from document estimate")
)

// Validate checks the invariants a document must satisfy before indexing.
func (d *Document) Validate() error {
	if d.Domain == "" {
		return fmt.Errorf("%s: %w", d.Path, ErrMissingDomain)
	}
	if d.Title == "" {
		return fmt.Errorf("%s: %w", d.Path, ErrMissingTitle)
	}
	if d.EstimatedTokens <= 0 || d.EstimatedTokens >= MaxEstimatedTokens {
		return fmt.Errorf("%s: %w (%d)", d.Path, ErrInvalidTokens, d.EstimatedTokens)
	}
	if err := d.validateSections(); err != nil {
		return err
	}
	return nil
}

func (d *Document) validateSections() error {
	if len(d.Sections) == 0 {
		return nil
	}

	sum := 0
	for _, section := range d.Sections {
		if section.EstimatedTokens <= 0 {
			return fmt.Errorf("%s section %q: %w (%d)", d.Path, section.Name, ErrInvalidTokens, section.EstimatedTokens)
		}
		sum += section.EstimatedTokens
	}

	drift := float64(sum-d.EstimatedTokens) / float64(d.EstimatedTokens)
	if drift > tokenTolerance || drift < -tokenTolerance {
		return fmt.Errorf("%s: %w (sections=%d document=%d)", d.Path, ErrSectionDrift, sum, d.EstimatedTokens)
	}
	return nil
}

// Section returns the named section, if present.
func (d *Document) Section(name string) (Section, bool) {
	for _, section := range d.Sections {
		if section.Name == name {
			return section, true
		}
	}
	return Section{}, false
}

// BestSection returns the section whose keywords best intersect the given
// signals, preferring larger intersections, then cheaper sections, then
// document order. Returns false when no section keyword matches at all.
func (d *Document) BestSection(signals []string) (Section, bool) {
	signalSet := make(map[string]struct{}, len(signals))
	for _, signal := range signals {
		signalSet[strings.ToLower(signal)] = struct{}{}
	}

	best := -1
	bestOverlap := 0
	for i, section := range d.Sections {
		overlap := 0
		for _, keyword := range section.Keywords {
			if _, ok := signalSet[strings.ToLower(keyword)]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		if best == -1 || overlap > bestOverlap ||
			(overlap == bestOverlap && section.EstimatedTokens < d.Sections[best].EstimatedTokens) {
			best = i
			bestOverlap = overlap
		}
	}

	if best == -1 {
		return Section{}, false
	}
	return d.Sections[best], true
}

// TagOverlap returns the size of the intersection between the document's
// tags and the given signals. Matching is case-insensitive.
func (d *Document) TagOverlap(signals []string) int {
	signalSet := make(map[string]struct{}, len(signals))
	for _, signal := range signals {
		signalSet[strings.ToLower(signal)] = struct{}{}
	}

	overlap := 0
	for _, tag := range d.Tags {
		if _, ok := signalSet[strings.ToLower(tag)]; ok {
			overlap++
		}
	}
	return overlap
}

// sortDocuments orders documents by ID for stable iteration.
func sortDocuments(docs []*Document) {
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ID < docs[j].ID
	})
}
