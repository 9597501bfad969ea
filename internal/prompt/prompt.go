// Package prompt assembles the extraction prompt sent to the model.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/tyler-sommer/stick"

	"github.com/pogoda1/parsik/internal/vocab"
)

//go:embed templates/*
var embedded embed.FS

const (
	fileTemplate    = "prompt.md"
	fileSchema      = "json_schema.md"
	fileSchemaHints = "schema_hints.twig"
	fileFewShot     = "few_shot.md"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Build replaces every {{ name }} placeholder in template with vars[name].
// Placeholders without a matching variable are left as they are. Substituted
// values are not scanned again, so a value containing "{{ x }}" is inserted
// literally.
func Build(template string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// Assembler holds the prompt parts loaded once at startup.
type Assembler struct {
	template    string
	schema      string
	schemaHints string
	fewShot     string
}

// Default builds an Assembler from the templates compiled into the binary.
func Default(v *vocab.Vocabulary) (*Assembler, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("embedded templates: %w", err)
	}
	return NewAssembler(sub, v)
}

// Load reads templates from dir, falling back to the embedded set when dir is
// empty.
func Load(dir string, v *vocab.Vocabulary) (*Assembler, error) {
	if dir == "" {
		return Default(v)
	}
	return NewAssembler(os.DirFS(dir), v)
}

// NewAssembler reads the four prompt files from fsys. The schema hints file is
// a Twig template rendered against the vocabulary, so the values the model is
// told about are the values the validator accepts.
func NewAssembler(fsys fs.FS, v *vocab.Vocabulary) (*Assembler, error) {
	read := func(name string) (string, error) {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return string(b), nil
	}

	a := &Assembler{}
	var err error
	if a.template, err = read(fileTemplate); err != nil {
		return nil, err
	}
	if a.schema, err = read(fileSchema); err != nil {
		return nil, err
	}
	if a.fewShot, err = read(fileFewShot); err != nil {
		return nil, err
	}
	hints, err := read(fileSchemaHints)
	if err != nil {
		return nil, err
	}
	if a.schemaHints, err = renderHints(hints, v); err != nil {
		return nil, err
	}
	return a, nil
}

func renderHints(tpl string, v *vocab.Vocabulary) (string, error) {
	env := stick.New(nil)
	ctx := map[string]stick.Value{
		"categories":      v.Categories(),
		"themes":          v.Themes(),
		"ageLimits":       v.AgeLimits(),
		"defaultAgeLimit": v.DefaultAgeLimit(),
	}
	var out strings.Builder
	if err := env.Execute(tpl, &out, ctx); err != nil {
		return "", fmt.Errorf("execute %s: %w", fileSchemaHints, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// Prompt returns the full prompt for one input text.
func (a *Assembler) Prompt(message string) string {
	return Build(a.template, map[string]string{
		"json_schema":       a.schema,
		"schema_hints":      a.schemaHints,
		"few_shot_examples": a.fewShot,
		"message":           message,
	})
}
