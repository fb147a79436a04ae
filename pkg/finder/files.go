package finder

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScriptExt is the extension of page scripts
const ScriptExt = ".lua"

// FindScripts lists the .lua files directly inside dir (no recursion), sorted by file name.
func FindScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var scripts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || filepath.Ext(name) != ScriptExt {
			continue
		}
		scripts = append(scripts, filepath.Join(dir, name))
	}

	// ReadDir already sorts, but the page order contract depends on it
	sort.Slice(scripts, func(i, j int) bool {
		return filepath.Base(scripts[i]) < filepath.Base(scripts[j])
	})
	return scripts, nil
}

// PageName derives a page name from a script path: base name, extension stripped, case preserved
func PageName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
