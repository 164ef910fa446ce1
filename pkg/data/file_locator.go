package data

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileLocator finds instrument files directly under the data root
type DefaultFileLocator struct {
	Extensions []string
}

// NewDefaultFileLocator creates a locator trying .csv then .txt
func NewDefaultFileLocator() *DefaultFileLocator {
	return &DefaultFileLocator{Extensions: []string{".csv", ".txt"}}
}

// FindDataFile looks for <dataRoot>/<code><ext>, then the upper- and lower-case code.
// Returns empty string if no file is found.
func (f *DefaultFileLocator) FindDataFile(dataRoot, code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	candidates := []string{code, strings.ToUpper(code), strings.ToLower(code)}
	for _, name := range candidates {
		for _, ext := range f.Extensions {
			path := filepath.Join(dataRoot, name+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// ListInstruments returns the codes of every data file under dataRoot
func (f *DefaultFileLocator) ListInstruments(dataRoot string) ([]string, error) {
	entries, err := os.ReadDir(dataRoot)
	if err != nil {
		return nil, err
	}
	var codes []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, want := range f.Extensions {
			if strings.EqualFold(ext, want) {
				codes = append(codes, strings.TrimSuffix(e.Name(), ext))
				break
			}
		}
	}
	return codes, nil
}
