package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `---
domain: net
title: EF Core Patterns
tags: [ef-core, sql]
estimatedTokens: 400
loadingStrategy: detection
crossDomains: [security]
sections:
  - name: Migrations
    estimatedTokens: 220
    keywords: [migrations]
  - name: Querying
    estimatedTokens: 180
    keywords: [linq]
---

# EF Core Patterns

## Migrations

Body text.

## Querying

More body text.
`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument("context/net/ef-core.md", []byte(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, "net/ef-core", doc.ID)
	assert.Equal(t, "net", doc.Domain)
	assert.Equal(t, "EF Core Patterns", doc.Title)
	assert.Equal(t, []string{"ef-core", "sql"}, doc.Tags)
	assert.Equal(t, 400, doc.EstimatedTokens)
	assert.Equal(t, StrategyDetection, doc.Strategy)
	assert.Equal(t, []string{"security"}, doc.CrossDomains)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Migrations", doc.Sections[0].Name)
	assert.Equal(t, 220, doc.Sections[0].EstimatedTokens)
}

func TestParseDocument_ExplicitID(t *testing.T) {
	data := []byte("---\nid: net/custom\ndomain: net\ntitle: T\nestimatedTokens: 10\nloadingStrategy: always\n---\n")
	doc, err := ParseDocument("context/net/whatever.md", data)
	require.NoError(t, err)
	assert.Equal(t, "net/custom", doc.ID)
}

func TestParseDocument_NoFrontmatter(t *testing.T) {
	_, err := ParseDocument("x.md", []byte("# Just a heading\n"))
	assert.ErrorIs(t, err, ErrNoFrontmatter)
}

func TestParseDocument_Unterminated(t *testing.T) {
	_, err := ParseDocument("x.md", []byte("---\ndomain: net\n"))
	assert.ErrorIs(t, err, ErrUnterminatedFrontmatter)
}

func TestParseDocument_UnknownStrategy(t *testing.T) {
	data := []byte("---\ndomain: net\ntitle: T\nestimatedTokens: 10\nloadingStrategy: maybe\n---\n")
	_, err := ParseDocument("x.md", data)
	assert.ErrorIs(t, err, ErrInvalidStrategy)
}

func TestParseDocument_InvalidYAML(t *testing.T) {
	data := []byte("---\ndomain: [unclosed\n---\n")
	_, err := ParseDocument("x.md", data)
	assert.Error(t, err)
}

func TestStripFrontmatter(t *testing.T) {
	body := stripFrontmatter(sampleDocument)
	assert.NotContains(t, body, "estimatedTokens")
	assert.Contains(t, body, "# EF Core Patterns")
}

func TestSplitSections(t *testing.T) {
	sections := splitSections(stripFrontmatter(sampleDocument))

	require.Contains(t, sections, "Migrations")
	require.Contains(t, sections, "Querying")
	assert.Contains(t, sections["Migrations"], "Body text.")
	assert.NotContains(t, sections["Migrations"], "More body text.")
}
