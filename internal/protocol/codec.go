package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// wireMessage is the JSON shape of a Message. Pointer fields distinguish
// "absent" from "zero" so validation can tell them apart.
type wireMessage struct {
	Action    Action        `json:"action"`
	PromiseID *int          `json:"promiseId,omitempty"`
	Question  *wireQuestion `json:"question,omitempty"`
	Replies   *Reply        `json:"replies,omitempty"`
	Prefix    *string       `json:"prefix,omitempty"`
	Message   *string       `json:"message,omitempty"`
}

type wireQuestion struct {
	Name        string        `json:"name"`
	Message     string        `json:"message"`
	Choices     *[]wireOption `json:"choices,omitempty"`
	Default     any           `json:"default,omitempty"`
	Placeholder string        `json:"placeholder,omitempty"`
}

type wireOption struct {
	Name   string `json:"name"`
	Value  any    `json:"value,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Encode serializes msg as a single line of JSON (without the newline).
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode parses and validates one message. Unknown actions decode without
// error so receivers can ignore them.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		if errors.Is(err, ErrMalformed) {
			return Message{}, err
		}
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{Action: m.Action}

	switch m.Action {
	case ActionOutput:
		w.Prefix = &m.Prefix
		w.Message = &m.Text
	case ActionInformation, ActionError:
		w.Message = &m.Text
	case ActionPrompt:
		w.PromiseID = &m.PromiseID
		q, err := toWire(m.Question)
		if err != nil {
			return nil, err
		}
		w.Question = q
	case ActionReply:
		w.PromiseID = &m.PromiseID
		replies := m.Replies
		if replies == nil {
			replies = Reply{}
		}
		w.Replies = &replies
	default:
		return nil, fmt.Errorf("protocol: cannot encode action %q", m.Action)
	}

	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. Numbers are kept as
// json.Number so defaults and answers round-trip without float conversion.
func (m *Message) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var w wireMessage
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Action == "" {
		return fmt.Errorf("%w: missing 'action' field", ErrMalformed)
	}

	msg := Message{Action: w.Action}

	switch w.Action {
	case ActionOutput:
		if w.Prefix == nil {
			return fmt.Errorf("%w: missing 'prefix' in %s", ErrMalformed, w.Action)
		}
		if w.Message == nil {
			return fmt.Errorf("%w: missing 'message' in %s", ErrMalformed, w.Action)
		}
		msg.Prefix = *w.Prefix
		msg.Text = *w.Message

	case ActionInformation, ActionError:
		if w.Message == nil {
			return fmt.Errorf("%w: missing 'message' in %s", ErrMalformed, w.Action)
		}
		msg.Text = *w.Message

	case ActionPrompt:
		id, err := requirePromiseID(w)
		if err != nil {
			return err
		}
		if w.Question == nil {
			return fmt.Errorf("%w: missing 'question' in prompt", ErrMalformed)
		}
		if w.Question.Name == "" {
			return fmt.Errorf("%w: question has no 'name'", ErrMalformed)
		}
		msg.PromiseID = id
		msg.Question = fromWire(w.Question)

	case ActionReply:
		id, err := requirePromiseID(w)
		if err != nil {
			return err
		}
		if w.Replies == nil || *w.Replies == nil {
			return fmt.Errorf("%w: missing 'replies' in reply", ErrMalformed)
		}
		msg.PromiseID = id
		msg.Replies = *w.Replies

	default:
		// Unknown actions carry no payload we understand.
	}

	*m = msg
	return nil
}

func requirePromiseID(w wireMessage) (int, error) {
	if w.PromiseID == nil {
		return 0, fmt.Errorf("%w: missing 'promiseId' in %s", ErrMalformed, w.Action)
	}
	if *w.PromiseID < 1 {
		return 0, fmt.Errorf("%w: invalid promiseId %d", ErrMalformed, *w.PromiseID)
	}
	return *w.PromiseID, nil
}

func toWire(q Question) (*wireQuestion, error) {
	switch q := q.(type) {
	case *Choice:
		opts := make([]wireOption, len(q.Choices))
		for i, c := range q.Choices {
			opts[i] = wireOption{Name: c.Name, Value: c.Value, Detail: c.Detail}
		}
		return &wireQuestion{
			Name:    q.Name,
			Message: q.Message,
			Choices: &opts,
			Default: q.Default,
		}, nil
	case *FreeText:
		return &wireQuestion{
			Name:        q.Name,
			Message:     q.Message,
			Default:     q.Default,
			Placeholder: q.Placeholder,
		}, nil
	case nil:
		return nil, fmt.Errorf("protocol: prompt has no question")
	default:
		return nil, fmt.Errorf("protocol: unsupported question type %T", q)
	}
}

// fromWire picks the variant by the presence of choices.
func fromWire(w *wireQuestion) Question {
	if w.Choices != nil {
		opts := make([]Option, len(*w.Choices))
		for i, c := range *w.Choices {
			opts[i] = Option{Name: c.Name, Value: c.Value, Detail: c.Detail}
		}
		return &Choice{
			Name:    w.Name,
			Message: w.Message,
			Choices: opts,
			Default: w.Default,
		}
	}
	return &FreeText{
		Name:        w.Name,
		Message:     w.Message,
		Placeholder: w.Placeholder,
		Default:     w.Default,
	}
}
