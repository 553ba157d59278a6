package generator

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/martinemde/genwiz/internal/protocol"
	"gopkg.in/yaml.v3"
)

// nameRegex validates generator names (lowercase letters, numbers, hyphens).
var nameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Question types accepted in a manifest.
const (
	TypeInput   = "input"
	TypeList    = "list"
	TypeConfirm = "confirm"
)

// Manifest is a parsed GENERATOR.md file.
type Manifest struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Questions   []QuestionSpec `yaml:"questions,omitempty"`

	// Body is the markdown after the frontmatter.
	Body string `yaml:"-"`
}

// QuestionSpec is one question declared in a manifest.
type QuestionSpec struct {
	Name    string       `yaml:"name"`
	Message string       `yaml:"message"`
	Type    string       `yaml:"type,omitempty"`
	Default any          `yaml:"default,omitempty"`
	Choices []ChoiceSpec `yaml:"choices,omitempty"`
}

// ChoiceSpec is one option of a list question.
type ChoiceSpec struct {
	Name   string `yaml:"name"`
	Value  any    `yaml:"value,omitempty"`
	Detail string `yaml:"detail,omitempty"`
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseManifest parses manifest text: YAML frontmatter between two "---"
// lines, followed by a markdown body.
func ParseManifest(data string) (*Manifest, error) {
	front, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	if err := yaml.Unmarshal([]byte(front), m); err != nil {
		return nil, fmt.Errorf("failed to parse YAML frontmatter: %w", err)
	}
	m.Body = body

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return m, nil
}

func splitFrontmatter(data string) (string, string, error) {
	scanner := bufio.NewScanner(strings.NewReader(data))

	var front, body []string
	delimiters := 0
	for scanner.Scan() {
		line := scanner.Text()
		if delimiters < 2 && strings.TrimSpace(line) == "---" {
			delimiters++
			continue
		}
		switch delimiters {
		case 1:
			front = append(front, line)
		case 2:
			body = append(body, line)
		default:
			if strings.TrimSpace(line) != "" {
				return "", "", fmt.Errorf("invalid frontmatter: content before opening '---'")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("error reading manifest: %w", err)
	}
	if delimiters < 2 {
		return "", "", fmt.Errorf("invalid frontmatter: expected two '---' delimiters, found %d", delimiters)
	}

	return strings.Join(front, "\n"), strings.TrimSpace(strings.Join(body, "\n")), nil
}

// Validate checks required fields and question shapes.
func (m *Manifest) Validate() error {
	if err := ValidateName(m.Name); err != nil {
		return err
	}

	seen := make(map[string]bool, len(m.Questions))
	for i, q := range m.Questions {
		if q.Name == "" {
			return fmt.Errorf("question %d has no name", i)
		}
		if seen[q.Name] {
			return fmt.Errorf("duplicate question %q", q.Name)
		}
		seen[q.Name] = true

		switch q.kind() {
		case TypeInput, TypeConfirm:
		case TypeList:
			if len(q.Choices) == 0 {
				return fmt.Errorf("list question %q has no choices", q.Name)
			}
		default:
			return fmt.Errorf("question %q has unknown type %q", q.Name, q.Type)
		}
	}
	return nil
}

// ValidateName checks that a generator name is lowercase letters, numbers
// and single hyphens, at most 64 characters.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("generator name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("generator name too long: max 64 characters, got %d", len(name))
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid generator name format: must be lowercase letters, numbers, and hyphens, not starting/ending with hyphen")
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("generator name cannot contain consecutive hyphens")
	}
	return nil
}

func (q QuestionSpec) kind() string {
	if q.Type == "" {
		if len(q.Choices) > 0 {
			return TypeList
		}
		return TypeInput
	}
	return q.Type
}

// Question converts the spec into the protocol question sent to the host.
func (q QuestionSpec) Question() protocol.Question {
	message := q.Message
	if message == "" {
		message = q.Name
	}

	switch q.kind() {
	case TypeList:
		opts := make([]protocol.Option, len(q.Choices))
		for i, c := range q.Choices {
			opts[i] = protocol.Option{Name: c.Name, Value: c.Value, Detail: c.Detail}
		}
		return &protocol.Choice{Name: q.Name, Message: message, Choices: opts, Default: q.Default}
	case TypeConfirm:
		def := q.Default
		if def == nil {
			def = true
		}
		return &protocol.FreeText{Name: q.Name, Message: message + " (y/n)", Default: def}
	default:
		return &protocol.FreeText{Name: q.Name, Message: message, Default: q.Default}
	}
}

// Answer normalizes a raw reply value for use in templates. Confirm answers
// become booleans.
func (q QuestionSpec) Answer(raw any) any {
	if q.kind() != TypeConfirm {
		return raw
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "y", "yes", "true":
			return true
		}
	}
	return false
}
