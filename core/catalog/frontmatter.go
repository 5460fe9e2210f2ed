package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Frontmatter
// =============================================================================

const frontmatterDelimiter = "---"

var (
	// ErrNoFrontmatter indicates a document without a YAML frontmatter block.
	ErrNoFrontmatter = errors.New("no frontmatter block")

	// ErrUnterminatedFrontmatter indicates a frontmatter block with no
	// closing delimiter.
	ErrUnterminatedFrontmatter = errors.New("unterminated frontmatter block")
)

// frontmatter is the on-disk YAML header of a context document.
type frontmatter struct {
	ID              string    `yaml:"id"`
	Domain          string    `yaml:"domain"`
	Title           string    `yaml:"title"`
	Tags            []string  `yaml:"tags"`
	EstimatedTokens int       `yaml:"estimatedTokens"`
	LoadingStrategy string    `yaml:"loadingStrategy"`
	Sections        []Section `yaml:"sections"`
	CrossDomains    []string  `yaml:"crossDomains"`
}

// ParseDocument parses the frontmatter of one context document. The path is
// recorded on the returned document; the body after the frontmatter is never
// read. The document ID defaults to domain/slug where slug is the filename
// without extension.
func ParseDocument(path string, data []byte) (*Document, error) {
	block, err := extractFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, fmt.Errorf("%s: parse frontmatter: %w", path, err)
	}

	strategy, ok := ParseStrategy(fm.LoadingStrategy)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", path, ErrInvalidStrategy, fm.LoadingStrategy)
	}

	doc := &Document{
		ID:              fm.ID,
		Domain:          fm.Domain,
		Title:           fm.Title,
		Tags:            fm.Tags,
		EstimatedTokens: fm.EstimatedTokens,
		Strategy:        strategy,
		Sections:        fm.Sections,
		CrossDomains:    fm.CrossDomains,
		Path:            path,
	}
	if doc.ID == "" {
		doc.ID = fm.Domain + "/" + slug(path)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// extractFrontmatter returns the bytes between the opening and closing
// delimiter lines.
func extractFrontmatter(data []byte) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, ErrNoFrontmatter
	}

	var block bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			return block.Bytes(), nil
		}
		block.WriteString(line)
		block.WriteByte('\n')
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, ErrUnterminatedFrontmatter
}

func slug(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
