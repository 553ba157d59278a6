package generator

import (
	"testing"

	"github.com/martinemde/genwiz/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routerManifest = `---
name: router
description: Adds an HTTP router
questions:
  - name: package
    message: Package name
    default: api
  - name: framework
    message: Which framework?
    choices:
      - name: chi
        detail: lightweight
      - name: gorilla/mux
        value: mux
  - name: tests
    message: Generate tests?
    type: confirm
---

# Router

Wires a router into the project.
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest(routerManifest)
	require.NoError(t, err)

	assert.Equal(t, "router", m.Name)
	assert.Equal(t, "Adds an HTTP router", m.Description)
	assert.Equal(t, "# Router\n\nWires a router into the project.", m.Body)
	require.Len(t, m.Questions, 3)
	assert.Equal(t, TypeList, m.Questions[1].kind(), "choices imply a list question")
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{
			name:     "no frontmatter",
			input:    "# just markdown\n",
			contains: "invalid frontmatter",
		},
		{
			name:     "unterminated frontmatter",
			input:    "---\nname: x\n",
			contains: "expected two '---' delimiters",
		},
		{
			name:     "bad yaml",
			input:    "---\nname: [unclosed\n---\n",
			contains: "failed to parse YAML",
		},
		{
			name:     "missing name",
			input:    "---\ndescription: nameless\n---\n",
			contains: "name is required",
		},
		{
			name:     "invalid name",
			input:    "---\nname: My_Generator\n---\n",
			contains: "invalid generator name",
		},
		{
			name:     "list without choices",
			input:    "---\nname: x\nquestions:\n  - name: a\n    type: list\n---\n",
			contains: "has no choices",
		},
		{
			name:     "unknown question type",
			input:    "---\nname: x\nquestions:\n  - name: a\n    type: slider\n---\n",
			contains: "unknown type",
		},
		{
			name:     "duplicate question",
			input:    "---\nname: x\nquestions:\n  - name: a\n  - name: a\n---\n",
			contains: "duplicate question",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"app", "router", "go-service", "v2", "a1-b2"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}

	invalid := []string{"", "App", "-app", "app-", "my--app", "my_app", string(make([]byte, 65))}
	for _, name := range invalid {
		assert.Error(t, ValidateName(name), name)
	}
}

func TestQuestionSpec_Question(t *testing.T) {
	m, err := ParseManifest(routerManifest)
	require.NoError(t, err)

	input, ok := m.Questions[0].Question().(*protocol.FreeText)
	require.True(t, ok)
	assert.Equal(t, "package", input.Name)
	assert.Equal(t, "api", input.Default)

	list, ok := m.Questions[1].Question().(*protocol.Choice)
	require.True(t, ok)
	require.Len(t, list.Choices, 2)
	assert.Equal(t, "lightweight", list.Choices[0].Detail)
	assert.Equal(t, "mux", list.Choices[1].Value)

	confirm, ok := m.Questions[2].Question().(*protocol.FreeText)
	require.True(t, ok)
	assert.Equal(t, true, confirm.Default, "confirm questions default to yes")
	assert.Equal(t, "y", confirm.DefaultText())
}

func TestQuestionSpec_Answer(t *testing.T) {
	confirm := QuestionSpec{Name: "tests", Type: TypeConfirm}
	assert.Equal(t, true, confirm.Answer("y"))
	assert.Equal(t, true, confirm.Answer("Yes"))
	assert.Equal(t, false, confirm.Answer("n"))
	assert.Equal(t, false, confirm.Answer(nil))

	input := QuestionSpec{Name: "package"}
	assert.Equal(t, "api", input.Answer("api"))
}
