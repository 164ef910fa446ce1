package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPathManager implements path management functionality
type DefaultPathManager struct {
	Root string
}

// NewDefaultPathManager creates a path manager rooted at "results"
func NewDefaultPathManager() *DefaultPathManager {
	return &DefaultPathManager{Root: "results"}
}

// GetDefaultOutputDir returns <root>/<label>_<first 8 chars of run id>
func (p *DefaultPathManager) GetDefaultOutputDir(label, runID string) string {
	l := strings.TrimSpace(label)
	if l == "" {
		l = "backtest"
	}
	l = strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(l)
	id := strings.TrimSpace(runID)
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return filepath.Join(p.Root, l)
	}
	return filepath.Join(p.Root, fmt.Sprintf("%s_%s", l, id))
}

// EnsureDirectoryExists creates the parent directory of path if it doesn't exist
func (p *DefaultPathManager) EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
