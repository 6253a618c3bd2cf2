// Package household loads and validates household templates from YAML files.
package household

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sungho-yun/gapsim/internal/domain"
)

var ErrTemplateNotFound = errors.New("household template not found")

// Load reads a single template file, fills in a name from the filename when
// the document omits one, and validates the result.
func Load(path string) (*domain.Household, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read household template: %w", err)
	}

	var h domain.Household
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse household template %s: %w", filepath.Base(path), err)
	}
	if h.Name == "" {
		h.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("invalid household template %s: %w", filepath.Base(path), err)
	}
	return &h, nil
}

// LoadByName resolves a template name inside dir. Names map to <name>.yaml
// or <name>.yml; path separators are rejected so callers cannot escape dir.
func LoadByName(dir, name string) (*domain.Household, error) {
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid template name %q", name)
	}

	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrTemplateNotFound, name, dir)
}

// List returns the template names available in dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}
