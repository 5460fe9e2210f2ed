// Package storage provides platform-native directory resolution with XDG
// support for the engine's persisted state.
package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// appName is the directory name used under each base location.
const appName = "forge"

// Dirs provides platform-native directory resolution with XDG support.
type Dirs struct {
	Config string // User configuration (engine config, budgets)
	Data   string // Persistent data (memory database)
	Cache  string // Regenerable cache (document bodies, topic index)
	State  string // Runtime state (logs, diagnostics)
}

// ProjectDirs returns project-local directories.
type ProjectDirs struct {
	Root    string // .forge/
	Config  string // .forge/config.yaml (committed)
	Context string // .forge/context/ (context documents)
	Local   string // .forge/local/ (gitignored)
}

var (
	globalDirs     *Dirs
	globalDirsOnce sync.Once
)

// ResolveDirs returns platform-appropriate directories. Results are cached
// after the first call.
func ResolveDirs() *Dirs {
	globalDirsOnce.Do(func() {
		globalDirs = &Dirs{
			Config: resolveDir("XDG_CONFIG_HOME", platformDefault(".config")),
			Data:   resolveDir("XDG_DATA_HOME", platformDefault(filepath.Join(".local", "share"))),
			Cache:  resolveDir("XDG_CACHE_HOME", platformDefault(".cache")),
			State:  resolveDir("XDG_STATE_HOME", platformDefault(filepath.Join(".local", "state"))),
		}
	})
	return globalDirs
}

func resolveDir(envVar, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	return fallback
}

func platformDefault(unixBase string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
	}
	return filepath.Join(home, unixBase, appName)
}

// ConfigFile returns the path of a file under the config directory.
func (d *Dirs) ConfigFile(name string) string {
	return filepath.Join(d.Config, name)
}

// DataFile returns the path of a file under the data directory.
func (d *Dirs) DataFile(name string) string {
	return filepath.Join(d.Data, name)
}

// ResolveProjectDirs returns project-local directories for the given
// project root.
func ResolveProjectDirs(projectRoot string) *ProjectDirs {
	forgeDir := filepath.Join(projectRoot, ".forge")
	return &ProjectDirs{
		Root:    forgeDir,
		Config:  filepath.Join(forgeDir, "config.yaml"),
		Context: filepath.Join(forgeDir, "context"),
		Local:   filepath.Join(forgeDir, "local"),
	}
}

// EnsureDir creates the directory (and parents) if missing.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
