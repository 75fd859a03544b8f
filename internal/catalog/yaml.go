package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefinitionFile pairs a parsed experiment with its on-disk source.
type DefinitionFile struct {
	Experiment Experiment
	Path       string
}

// ParseDefinitionYAML decodes and validates a single experiment payload.
func ParseDefinitionYAML(data []byte) (Experiment, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Experiment{}, fmt.Errorf("catalog: definition payload is empty")
	}
	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return Experiment{}, fmt.Errorf("catalog: decode definition: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return Experiment{}, err
	}
	return exp.Normalized(), nil
}

// LoadDefinitionFile reads one YAML experiment definition from disk.
func LoadDefinitionFile(path string) (DefinitionFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("catalog: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return DefinitionFile{}, fmt.Errorf("catalog: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	exp, err := ParseDefinitionYAML(data)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return DefinitionFile{Experiment: exp, Path: filepath.Clean(path)}, nil
}

// LoadDefinitionDir scans a directory for *.yaml experiments. A missing
// directory means "no user experiments" so startup stays quiet.
func LoadDefinitionDir(dir string) ([]DefinitionFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: read %s: %w", trimmed, err)
	}
	var defs []DefinitionFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !isYAMLFile(name) {
			continue
		}
		def, err := LoadDefinitionFile(filepath.Join(trimmed, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, nil
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Path < defs[j].Path })
	return defs, nil
}

// Load builds the catalog from the builtin experiments plus any user-supplied
// definitions found in dir. User definitions are appended after the builtins.
func Load(dir string) (*Catalog, error) {
	defs := Builtins()
	files, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		defs = append(defs, file.Experiment)
	}
	return New(defs)
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
