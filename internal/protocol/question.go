package protocol

import "fmt"

// Question is something the worker wants the user to answer. It is one of
// *Choice or *FreeText.
type Question interface {
	// QuestionName is the key the answer is stored under in the Reply.
	QuestionName() string
	// QuestionMessage is the text shown to the user.
	QuestionMessage() string

	isQuestion()
}

// Option is one entry of a Choice.
type Option struct {
	Name   string
	Value  any
	Detail string
}

// value returns the option's value, falling back to its name.
func (o Option) value() any {
	if o.Value == nil {
		return o.Name
	}
	return o.Value
}

// Choice asks the user to pick one of an ordered list of options.
type Choice struct {
	Name    string
	Message string
	Choices []Option
	Default any
}

func (c *Choice) QuestionName() string    { return c.Name }
func (c *Choice) QuestionMessage() string { return c.Message }
func (c *Choice) isQuestion()             {}

// Resolve builds the reply for the option at index. When the user gave no
// answer, or index is out of range, the reply carries Default.
func (c *Choice) Resolve(index int, answered bool) Reply {
	if answered && index >= 0 && index < len(c.Choices) {
		return Reply{c.Name: c.Choices[index].value()}
	}
	return Reply{c.Name: c.Default}
}

// FreeText asks the user to type an answer.
type FreeText struct {
	Name        string
	Message     string
	Placeholder string
	Default     any
}

func (f *FreeText) QuestionName() string    { return f.Name }
func (f *FreeText) QuestionMessage() string { return f.Message }
func (f *FreeText) isQuestion()             {}

// EffectiveDefault is the answer used when the user leaves the input empty.
// A boolean default (a yes/no confirmation) becomes the literal "y"; any other
// default is returned as is.
func (f *FreeText) EffectiveDefault() any {
	if _, ok := f.Default.(bool); ok {
		return "y"
	}
	return f.Default
}

// DefaultText renders the effective default for prefilling an input field.
func (f *FreeText) DefaultText() string {
	switch v := f.EffectiveDefault().(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// PlaceholderText returns the placeholder, or the question name if unset.
func (f *FreeText) PlaceholderText() string {
	if f.Placeholder != "" {
		return f.Placeholder
	}
	return f.Name
}

// Resolve builds the reply for typed text. A non-empty answer always wins;
// otherwise the effective default is used.
func (f *FreeText) Resolve(text string, answered bool) Reply {
	if answered && text != "" {
		return Reply{f.Name: text}
	}
	return Reply{f.Name: f.EffectiveDefault()}
}
