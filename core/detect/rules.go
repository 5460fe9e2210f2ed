// Package detect scans a workspace for framework and technology markers and
// turns them into task signals for the resolver. Detection is data-driven: a
// rule maps file glob patterns to a detected fact and its domain.
package detect

import (
	"errors"
	"fmt"

	"github.com/gobwas/glob"
)

// =============================================================================
// Rules
// =============================================================================

var (
	ErrInvalidPath = errors.New("invalid path provided")
	ErrNoRules     = errors.New("no detection rules provided")
)

// Rule maps workspace file patterns to one detected fact. Patterns are glob
// expressions matched against slash-separated paths relative to the
// workspace root.
type Rule struct {
	// Signal is the detected fact emitted when a pattern matches,
	// e.g. "ef-core" or "azure-pipelines".
	Signal string

	// Domain is the coarse category the fact belongs to.
	Domain string

	// Patterns are the file globs that trigger the rule.
	Patterns []string
}

// compiledRule pairs a rule with its compiled globs.
type compiledRule struct {
	rule  Rule
	globs []glob.Glob
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		cr := compiledRule{rule: rule}
		for _, pattern := range rule.Patterns {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return nil, fmt.Errorf("rule %s: compile pattern %q: %w", rule.Signal, pattern, err)
			}
			cr.globs = append(cr.globs, g)
		}
		compiled = append(compiled, cr)
	}
	return compiled, nil
}

func (c compiledRule) matches(relPath string) bool {
	for _, g := range c.globs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

// DefaultRules returns the built-in detection table covering the stock
// context domains.
func DefaultRules() []Rule {
	return []Rule{
		{Signal: "angular", Domain: "angular", Patterns: []string{"angular.json", "**/angular.json"}},
		{Signal: "dotnet", Domain: "dotnet", Patterns: []string{"**/*.csproj", "**/*.sln"}},
		{Signal: "ef-core", Domain: "dotnet", Patterns: []string{"**/Migrations/*.cs"}},
		{Signal: "python", Domain: "python", Patterns: []string{"pyproject.toml", "requirements.txt", "setup.py"}},
		{Signal: "fastapi", Domain: "python", Patterns: []string{"**/main.py"}},
		{Signal: "bicep", Domain: "azure", Patterns: []string{"**/*.bicep"}},
		{Signal: "azure-pipelines", Domain: "azure", Patterns: []string{"azure-pipelines.yml", ".azuredevops/**"}},
		{Signal: "azure-functions", Domain: "azure", Patterns: []string{"**/host.json"}},
		{Signal: "git", Domain: "git", Patterns: []string{".gitignore"}},
		{Signal: "helm", Domain: "engineering", Patterns: []string{"**/Chart.yaml"}},
		{Signal: "docker", Domain: "engineering", Patterns: []string{"Dockerfile", "**/Dockerfile", "docker-compose.yml"}},
	}
}
