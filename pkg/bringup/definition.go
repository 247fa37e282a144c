package bringup

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveDefinitionPath resolves a tool's configured definition name
// against dirs, the ordered definition-path directory list of
// spec.md §6. An absolute name is returned unchanged; otherwise each
// directory is tried in order and the first one holding a file named
// name wins. Returns an error if name is relative and no directory
// holds it.
func ResolveDefinitionPath(dirs []string, name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("bringup: definition %q not found in any definition-path directory", name)
}

// loadDefinitionFile resolves a tool's definition name against dirs
// and reads it from disk. There's no wire format or parsing involved
// beyond that resolution — it's a raw byte blob handed straight to
// PVWR — so this is a plain os.ReadFile rather than anything
// warranting a third-party file-format library.
func loadDefinitionFile(dirs []string, name string) ([]byte, error) {
	path, err := ResolveDefinitionPath(dirs, name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bringup: read definition %s: %w", path, err)
	}
	return b, nil
}
