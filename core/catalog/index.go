package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// =============================================================================
// Index
// =============================================================================

// Index is the read-only lookup table over context-document metadata. It is
// built once from disk, shared freely across concurrent sessions, and
// rebuilt (as a new Index) when documents change.
type Index struct {
	byID     map[string]*Document
	byDomain map[string][]*Document
	docs     []*Document
}

// BuildOptions configures an index build.
type BuildOptions struct {
	// ExcludePatterns are glob patterns (matched against paths relative to
	// the context root) for files to skip.
	ExcludePatterns []string
}

// BuildIndex scans root for context documents and builds an Index. Documents
// live one directory level down (context/<domain>/<file>.md); files directly
// under root are protocol material, not documents, and are skipped. A parse
// or validation failure in any document fails the whole build so authoring
// defects surface immediately.
func BuildIndex(root string, opts BuildOptions) (*Index, error) {
	excludes, err := compilePatterns(opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	var docs []*Document
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(entry.Name(), ".md") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if !strings.Contains(rel, string(filepath.Separator)) {
			return nil // top-level protocol files
		}
		if matchesAny(excludes, filepath.ToSlash(rel)) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		doc, err := ParseDocument(path, data)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("build index: %w", walkErr)
	}

	return NewIndex(docs)
}

// NewIndex builds an Index from already-parsed documents. Useful for tests
// and for hosts that source metadata elsewhere.
func NewIndex(docs []*Document) (*Index, error) {
	index := &Index{
		byID:     make(map[string]*Document, len(docs)),
		byDomain: make(map[string][]*Document),
	}

	for _, doc := range docs {
		if existing, ok := index.byID[doc.ID]; ok {
			return nil, fmt.Errorf("duplicate document id %q (%s, %s)", doc.ID, existing.Path, doc.Path)
		}
		index.byID[doc.ID] = doc
		index.byDomain[doc.Domain] = append(index.byDomain[doc.Domain], doc)
		for _, cross := range doc.CrossDomains {
			if cross != doc.Domain {
				index.byDomain[cross] = append(index.byDomain[cross], doc)
			}
		}
		index.docs = append(index.docs, doc)
	}

	sortDocuments(index.docs)
	for domain := range index.byDomain {
		sortDocuments(index.byDomain[domain])
	}
	return index, nil
}

// Get returns the document with the given ID.
func (i *Index) Get(id string) (*Document, bool) {
	doc, ok := i.byID[id]
	return doc, ok
}

// ListByDomain returns all documents for a domain, including documents from
// other domains that list it in their cross-domain references. An unknown
// domain yields an empty result, not an error.
func (i *Index) ListByDomain(domain string) []*Document {
	docs := i.byDomain[domain]
	out := make([]*Document, len(docs))
	copy(out, docs)
	return out
}

// ListByStrategy returns all documents with the given loading strategy,
// ordered by ID.
func (i *Index) ListByStrategy(strategy Strategy) []*Document {
	var out []*Document
	for _, doc := range i.docs {
		if doc.Strategy == strategy {
			out = append(out, doc)
		}
	}
	return out
}

// FindByTags returns documents whose tag set intersects the given tags,
// ranked by intersection size descending, then ascending token estimate,
// then ID. Cheaper documents win ties to minimize budget pressure.
func (i *Index) FindByTags(tags []string) []*Document {
	type ranked struct {
		doc     *Document
		overlap int
	}

	var matches []ranked
	for _, doc := range i.docs {
		if overlap := doc.TagOverlap(tags); overlap > 0 {
			matches = append(matches, ranked{doc: doc, overlap: overlap})
		}
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].overlap != matches[b].overlap {
			return matches[a].overlap > matches[b].overlap
		}
		if matches[a].doc.EstimatedTokens != matches[b].doc.EstimatedTokens {
			return matches[a].doc.EstimatedTokens < matches[b].doc.EstimatedTokens
		}
		return matches[a].doc.ID < matches[b].doc.ID
	})

	out := make([]*Document, len(matches))
	for idx, match := range matches {
		out[idx] = match.doc
	}
	return out
}

// Documents returns all indexed documents ordered by ID.
func (i *Index) Documents() []*Document {
	out := make([]*Document, len(i.docs))
	copy(out, i.docs)
	return out
}

// Domains returns the sorted set of domains with at least one document.
func (i *Index) Domains() []string {
	domains := make([]string, 0, len(i.byDomain))
	for domain := range i.byDomain {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

// Len returns the number of indexed documents.
func (i *Index) Len() int {
	return len(i.docs)
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", pattern, err)
		}
		globs = append(globs, compiled)
	}
	return globs, nil
}

func matchesAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}
