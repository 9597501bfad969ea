// Package vocab loads the closed vocabularies (categories, themes, age
// limits) that extracted events are validated against.
package vocab

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultYAML []byte

type file struct {
	Categories      []string `yaml:"categories"`
	Themes          []string `yaml:"themes"`
	AgeLimits       []string `yaml:"age_limits"`
	DefaultAgeLimit string   `yaml:"default_age_limit"`
}

// Vocabulary is an immutable set of allowed values per categorical field.
type Vocabulary struct {
	categories      []string
	themes          []string
	ageLimits       []string
	defaultAgeLimit string

	categorySet map[string]struct{}
	themeSet    map[string]struct{}
	ageSet      map[string]struct{}
}

// Default returns the vocabulary compiled into the binary.
func Default() *Vocabulary {
	v, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary: %v", err))
	}
	return v
}

// Load reads a vocabulary file. An empty path yields Default().
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return Parse(b)
}

// Parse decodes a YAML vocabulary document.
func Parse(b []byte) (*Vocabulary, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, errors.New("vocabulary has no categories")
	}
	if len(f.Themes) == 0 {
		return nil, errors.New("vocabulary has no themes")
	}
	if len(f.AgeLimits) == 0 {
		return nil, errors.New("vocabulary has no age limits")
	}

	v := &Vocabulary{
		categories:      f.Categories,
		themes:          f.Themes,
		ageLimits:       f.AgeLimits,
		defaultAgeLimit: f.DefaultAgeLimit,
		categorySet:     toSet(f.Categories),
		themeSet:        toSet(f.Themes),
		ageSet:          toSet(f.AgeLimits),
	}
	if v.defaultAgeLimit == "" {
		v.defaultAgeLimit = "12"
	}
	if !v.IsAgeLimit(v.defaultAgeLimit) {
		return nil, fmt.Errorf("default age limit %q is not in age_limits", v.defaultAgeLimit)
	}
	return v, nil
}

func toSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, s := range values {
		m[s] = struct{}{}
	}
	return m
}

func (v *Vocabulary) IsCategory(s string) bool { return member(v.categorySet, s) }
func (v *Vocabulary) IsTheme(s string) bool    { return member(v.themeSet, s) }
func (v *Vocabulary) IsAgeLimit(s string) bool { return member(v.ageSet, s) }

func member(set map[string]struct{}, s string) bool {
	if s == "" {
		return false
	}
	_, ok := set[s]
	return ok
}

// DefaultAgeLimit is applied when the model leaves the age limit unset or
// returns a value outside AgeLimits.
func (v *Vocabulary) DefaultAgeLimit() string { return v.defaultAgeLimit }

// Categories returns a copy of the allowed categories in file order.
func (v *Vocabulary) Categories() []string { return append([]string(nil), v.categories...) }

// Themes returns a copy of the allowed themes in file order.
func (v *Vocabulary) Themes() []string { return append([]string(nil), v.themes...) }

// AgeLimits returns a copy of the allowed age limits in file order.
func (v *Vocabulary) AgeLimits() []string { return append([]string(nil), v.ageLimits...) }
