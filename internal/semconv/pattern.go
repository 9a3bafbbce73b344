package semconv

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed patterns/*.yaml
var builtinPatterns embed.FS

// Pattern is the declarative description of how one semantic convention
// flattens structured data into span attributes. Patterns are immutable
// once loaded; the compiler turns them into executable plans.
type Pattern struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Markers []Marker `yaml:"markers"`
	Fields  []Field  `yaml:"fields"`
	Arrays  []Array  `yaml:"arrays"`
}

// ID is the convention identifier used in configuration, e.g. "genai-v1".
func (p Pattern) ID() string { return p.Name + "-" + p.Version }

// Marker is an attribute key (or key prefix) whose presence identifies
// the convention.
type Marker struct {
	Key    string `yaml:"key"`
	Prefix bool   `yaml:"prefix,omitempty"`
}

// Field maps one logical field to an attribute key template. A template
// containing the {i} placeholder declares a flattened scalar array.
type Field struct {
	Target    string `yaml:"target"`
	Key       string `yaml:"key"`
	Transform string `yaml:"transform,omitempty"`
	// Content marks fields carrying free-text payloads; extraction of
	// these is gated by the content-capture policy.
	Content bool `yaml:"content,omitempty"`
}

// Array declares an object array reconstructed from keys of the form
// <prefix>.<index>.<element key>.
type Array struct {
	Target   string  `yaml:"target"`
	Prefix   string  `yaml:"prefix"`
	Elements []Field `yaml:"elements"`
}

// Store holds the loaded structure patterns, keyed by convention id.
type Store struct {
	patterns map[string]Pattern
}

// NewStore loads the built-in patterns shipped with the binary.
func NewStore() (*Store, error) {
	s := &Store{patterns: make(map[string]Pattern)}
	entries, err := builtinPatterns.ReadDir("patterns")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		data, err := builtinPatterns.ReadFile("patterns/" + e.Name())
		if err != nil {
			return nil, err
		}
		if err := s.add(data); err != nil {
			return nil, fmt.Errorf("builtin %s: %w", e.Name(), err)
		}
	}
	return s, nil
}

// LoadDir loads additional pattern files (*.yaml) from disk, letting
// operators enable new conventions without a rebuild.
func (s *Store) LoadDir(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}
	sort.Strings(matches)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := s.add(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func (s *Store) add(data []byte) error {
	p, err := ParsePattern(data)
	if err != nil {
		return err
	}
	if _, ok := s.patterns[p.ID()]; ok {
		return fmt.Errorf("pattern %s already loaded", p.ID())
	}
	s.patterns[p.ID()] = p
	return nil
}

func (s *Store) Get(id string) (Pattern, bool) {
	p, ok := s.patterns[id]
	return p, ok
}

// IDs returns the loaded convention identifiers, sorted for stable output.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.patterns))
	for id := range s.patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ParsePattern decodes and validates one pattern document. Structural
// problems with key templates are caught later, by the compiler.
func ParsePattern(data []byte) (Pattern, error) {
	var p Pattern
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Pattern{}, err
	}
	if err := p.validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

func (p Pattern) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("pattern missing name")
	}
	if strings.TrimSpace(p.Version) == "" {
		return fmt.Errorf("pattern %q missing version", p.Name)
	}
	if len(p.Markers) == 0 {
		return fmt.Errorf("pattern %q declares no markers", p.Name)
	}
	for _, m := range p.Markers {
		if m.Key == "" {
			return fmt.Errorf("pattern %q has an empty marker key", p.Name)
		}
	}
	return nil
}
