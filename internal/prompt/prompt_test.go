package prompt

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pogoda1/parsik/internal/vocab"
)

func TestBuild(t *testing.T) {
	cases := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{"simple", "Hello {{ name }}!", map[string]string{"name": "world"}, "Hello world!"},
		{"no spaces", "{{name}}", map[string]string{"name": "x"}, "x"},
		{"repeated", "{{ a }}-{{ a }}", map[string]string{"a": "1"}, "1-1"},
		{"unresolved kept", "{{ a }} {{ missing }}", map[string]string{"a": "1"}, "1 {{ missing }}"},
		{"value not rescanned", "{{ a }}", map[string]string{"a": "{{ b }}", "b": "oops"}, "{{ b }}"},
		{"nil vars", "{{ a }}", nil, "{{ a }}"},
		{"single braces untouched", `{"data": {}}`, map[string]string{"data": "x"}, `{"data": {}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Build(tc.template, tc.vars))
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	vars := map[string]string{"a": "{{ b }}", "b": "{{ a }}", "c": "3"}
	first := Build("{{ a }}|{{ b }}|{{ c }}", vars)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Build("{{ a }}|{{ b }}|{{ c }}", vars))
	}
	assert.Equal(t, "{{ b }}|{{ a }}|3", first)
}

func TestAssembler_Golden(t *testing.T) {
	fsys := fstest.MapFS{
		"prompt.md":         {Data: []byte("S={{ json_schema }}\nH={{ schema_hints }}\nE={{ few_shot_examples }}\nT={{ message }}\nX={{ unknown }}")},
		"json_schema.md":    {Data: []byte("{schema}")},
		"few_shot.md":       {Data: []byte("ex")},
		"schema_hints.twig": {Data: []byte("{% for c in categories %}{{ c }};{% endfor %} default {{ defaultAgeLimit }}")},
	}
	v, err := vocab.Parse([]byte("categories: [a, b]\nthemes: [x]\nage_limits: [\"0\", \"12\"]\n"))
	require.NoError(t, err)

	a, err := NewAssembler(fsys, v)
	require.NoError(t, err)

	got := a.Prompt("Концерт {{ message }}")
	assert.Equal(t, "S={schema}\nH=a;b; default 12\nE=ex\nT=Концерт {{ message }}\nX={{ unknown }}", got)
}

func TestAssembler_MissingFile(t *testing.T) {
	fsys := fstest.MapFS{"prompt.md": {Data: []byte("x")}}
	_, err := NewAssembler(fsys, vocab.Default())
	assert.ErrorContains(t, err, "json_schema.md")
}

func TestDefault_ContainsVocabulary(t *testing.T) {
	v := vocab.Default()
	a, err := Default(v)
	require.NoError(t, err)

	p := a.Prompt("Лекция о космосе")
	assert.Contains(t, p, "Лекция о космосе")
	assert.Contains(t, p, "- concerts")
	assert.Contains(t, p, "- science_and_education")
	assert.Contains(t, p, `"eventDate"`)
	assert.NotContains(t, p, "{{ json_schema }}")
	assert.NotContains(t, p, "{{ message }}")
	assert.True(t, strings.Count(p, "```json") >= 2)
}
