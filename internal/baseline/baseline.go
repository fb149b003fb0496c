// Package baseline loads named target-patch lists, typically one per
// Patch Tuesday release, from YAML files.
package baseline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Baseline is a named, ordered list of patch ids a host is expected to carry.
type Baseline struct {
	Name     string   `yaml:"name"`
	Released string   `yaml:"released,omitempty"` // ISO 8601 date
	Patches  []string `yaml:"patches"`
}

// Load reads and validates a baseline file.
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	return Parse(data)
}

// Parse decodes a baseline document. Unknown keys are rejected so a typo in
// "patches" cannot silently produce an empty target list.
func Parse(data []byte) (*Baseline, error) {
	var b Baseline
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("parse baseline: %w", err)
	}

	patches := make([]string, 0, len(b.Patches))
	for _, id := range b.Patches {
		if id = strings.TrimSpace(id); id != "" {
			patches = append(patches, id)
		}
	}
	if len(patches) == 0 {
		return nil, errors.New("baseline lists no patches")
	}
	b.Patches = patches
	return &b, nil
}

// Resolve merges inline target ids with the ids of an optional baseline
// file. Inline ids come first; order is otherwise preserved.
func Resolve(inline []string, path string) ([]string, error) {
	targets := append([]string(nil), inline...)
	if path != "" {
		b, err := Load(path)
		if err != nil {
			return nil, err
		}
		targets = append(targets, b.Patches...)
	}
	if len(targets) == 0 {
		return nil, errors.New("no target patches configured (set target_patches or baseline_file)")
	}
	return targets, nil
}
