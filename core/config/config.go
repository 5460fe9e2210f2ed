// Package config loads the engine configuration: context catalog location,
// memory database settings, and per-owner budget ceilings. Defaults are
// overlaid by the project file, then the user file, then the project-local
// file, later sources winning field by field.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forgehq/forge/core/budget"
	"github.com/forgehq/forge/core/memory"
	"github.com/forgehq/forge/core/storage"
)

// =============================================================================
// Config
// =============================================================================

// Config is the engine configuration tree.
type Config struct {
	Context ContextConfig          `yaml:"context"`
	Memory  MemoryConfig           `yaml:"memory"`
	Budgets map[string]BudgetEntry `yaml:"budgets"`
}

// ContextConfig configures the context catalog.
type ContextConfig struct {
	// Dir is the context documents root. Relative paths are resolved
	// against the project root.
	Dir string `yaml:"dir"`

	// ExcludePatterns are globs for files the catalog ignores.
	ExcludePatterns []string `yaml:"exclude_patterns"`

	// WatchDebounce is the quiet interval before a rebuild after changes.
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// CacheSize bounds the document-body cache.
	CacheSize int `yaml:"cache_size"`
}

// MemoryConfig configures the memory store.
type MemoryConfig struct {
	// Path is the SQLite database location. Empty means the platform data
	// directory.
	Path string `yaml:"path"`

	// MaxEntriesPerScope bounds a scope when the host prunes.
	MaxEntriesPerScope int `yaml:"max_entries_per_scope"`

	// FreshnessDays is the staleness horizon for freshness reports.
	FreshnessDays int `yaml:"freshness_days"`

	// RequiredStrategies maps a category to its mandatory merge strategy.
	RequiredStrategies map[string]string `yaml:"required_strategies"`
}

// BudgetEntry is a per-owner (agent or skill) budget ceiling.
type BudgetEntry struct {
	MaxTokens int `yaml:"max_tokens"`
	MaxFiles  int `yaml:"max_files"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		Context: ContextConfig{
			Dir:             "context",
			ExcludePatterns: []string{"**/draft-*.md"},
			WatchDebounce:   250 * time.Millisecond,
			CacheSize:       128,
		},
		Memory: MemoryConfig{
			Path:               "",
			MaxEntriesPerScope: 500,
			FreshnessDays:      30,
			RequiredStrategies: map[string]string{
				"review-log": "append_log",
			},
		},
		Budgets: map[string]BudgetEntry{
			"default": {MaxTokens: budget.DefaultMaxTokens, MaxFiles: budget.DefaultMaxFiles},
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load builds the configuration for a project: defaults, then the committed
// project file, then the user file, then the gitignored local file. Missing
// files are fine; a malformed file is not.
func Load(projectRoot string, dirs *storage.Dirs) (*Config, error) {
	cfg := DefaultConfig()
	project := storage.ResolveProjectDirs(projectRoot)

	sources := []string{
		project.Config,
		dirs.ConfigFile("config.yaml"),
		filepath.Join(project.Local, "config.yaml"),
	}
	for _, path := range sources {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if cfg.Context.Dir != "" && !filepath.IsAbs(cfg.Context.Dir) {
		cfg.Context.Dir = filepath.Join(project.Root, cfg.Context.Dir)
	}
	if cfg.Memory.Path == "" {
		cfg.Memory.Path = dirs.DataFile("memory.db")
	}
	return cfg, nil
}

// overlayFile decodes path into cfg, leaving absent fields untouched.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// Accessors
// =============================================================================

// BudgetFor returns the budget ceilings for an owner, falling back to the
// "default" entry, then the package defaults.
func (c *Config) BudgetFor(ownerID string) budget.Config {
	if entry, ok := c.Budgets[ownerID]; ok {
		return budget.Config{MaxTokens: entry.MaxTokens, MaxFiles: entry.MaxFiles}
	}
	if entry, ok := c.Budgets["default"]; ok {
		return budget.Config{MaxTokens: entry.MaxTokens, MaxFiles: entry.MaxFiles}
	}
	return budget.Config{}
}

// StoreOptions translates the memory configuration into store options.
// An unknown strategy name for a category is a configuration defect.
func (c *Config) StoreOptions() (memory.Options, error) {
	required := make(map[string]memory.Strategy, len(c.Memory.RequiredStrategies))
	for category, name := range c.Memory.RequiredStrategies {
		strategy, ok := memory.ParseStrategy(name)
		if !ok {
			return memory.Options{}, fmt.Errorf("category %q: %w: %q", category, memory.ErrUnknownStrategy, name)
		}
		required[category] = strategy
	}
	return memory.Options{RequiredStrategies: required}, nil
}

// FreshnessHorizon returns the staleness cutoff as a duration.
func (c *Config) FreshnessHorizon() time.Duration {
	return time.Duration(c.Memory.FreshnessDays) * 24 * time.Hour
}
