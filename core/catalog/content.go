package catalog

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Content Loader
// =============================================================================

// DefaultContentCacheSize is the default number of document bodies cached.
const DefaultContentCacheSize = 128

// ContentLoader reads document bodies for materializing a load plan. Bodies
// are opaque to the engine; this loader only slices them by section heading.
// A bounded LRU cache keeps repeat loads cheap across sessions.
type ContentLoader struct {
	cache *lru.Cache[string, string]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewContentLoader creates a loader with the given cache capacity. A
// capacity <= 0 uses DefaultContentCacheSize.
func NewContentLoader(cacheSize int) *ContentLoader {
	if cacheSize <= 0 {
		cacheSize = DefaultContentCacheSize
	}
	cache, _ := lru.New[string, string](cacheSize)
	return &ContentLoader{cache: cache}
}

// Load returns the full body of a document (frontmatter stripped).
func (l *ContentLoader) Load(doc *Document) (string, error) {
	raw, err := l.read(doc.Path)
	if err != nil {
		return "", err
	}
	return stripFrontmatter(raw), nil
}

// LoadSections returns the concatenated bodies of the named sections, in
// document order. A named section that has no matching heading in the body
// is an error: the header promised content the file does not carry.
func (l *ContentLoader) LoadSections(doc *Document, names []string) (string, error) {
	body, err := l.Load(doc)
	if err != nil {
		return "", err
	}

	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	var out strings.Builder
	for name, text := range splitSections(body) {
		if _, ok := wanted[name]; !ok {
			continue
		}
		out.WriteString(text)
		delete(wanted, name)
	}

	if len(wanted) > 0 {
		for name := range wanted {
			return "", fmt.Errorf("%s: section %q not found in body", doc.Path, name)
		}
	}
	return out.String(), nil
}

// Invalidate drops a cached document body, e.g. after a watcher event.
func (l *ContentLoader) Invalidate(path string) {
	l.cache.Remove(path)
}

// Stats returns cache hit and miss counts.
func (l *ContentLoader) Stats() (hits, misses int64) {
	return l.hits.Load(), l.misses.Load()
}

func (l *ContentLoader) read(path string) (string, error) {
	if cached, ok := l.cache.Get(path); ok {
		l.hits.Add(1)
		return cached, nil
	}
	l.misses.Add(1)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document body: %w", err)
	}
	content := string(data)
	l.cache.Add(path, content)
	return content, nil
}

// stripFrontmatter removes the leading YAML header block, if present.
func stripFrontmatter(raw string) string {
	if !strings.HasPrefix(raw, frontmatterDelimiter) {
		return raw
	}
	rest := raw[len(frontmatterDelimiter):]
	idx := strings.Index(rest, "\n"+frontmatterDelimiter)
	if idx < 0 {
		return raw
	}
	after := rest[idx+1+len(frontmatterDelimiter):]
	return strings.TrimPrefix(after, "\n")
}

// splitSections slices a body into level-two heading sections. The returned
// map holds section name -> text including the heading line.
func splitSections(body string) map[string]string {
	sections := make(map[string]string)
	lines := strings.Split(body, "\n")

	var name string
	var buf strings.Builder
	flush := func() {
		if name != "" {
			sections[name] = buf.String()
		}
		buf.Reset()
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			flush()
			name = strings.TrimSpace(strings.TrimPrefix(line, "## "))
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush()
	return sections
}
