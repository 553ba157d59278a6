// Package protocol defines the messages exchanged between the host process
// (which owns the terminal) and the worker process that runs a generator.
package protocol

import "errors"

// ChannelEnvVar tells a worker process which inherited file descriptors carry
// the message channel, formatted as "<read-fd>,<write-fd>".
const ChannelEnvVar = "GENWIZ_CHANNEL"

// Action identifies the kind of a Message.
type Action string

const (
	ActionOutput      Action = "output"
	ActionInformation Action = "informationMessage"
	ActionError       Action = "errorMessage"
	ActionPrompt      Action = "prompt"
	ActionReply       Action = "reply"
)

// Known reports whether a is one of the actions this protocol defines.
func (a Action) Known() bool {
	switch a {
	case ActionOutput, ActionInformation, ActionError, ActionPrompt, ActionReply:
		return true
	}
	return false
}

// ErrMalformed is returned when an inbound message cannot be parsed or is
// missing a field its action requires.
var ErrMalformed = errors.New("protocol: malformed message")

// Reply maps a question name to the answer the user gave.
type Reply map[string]any

// Message is a single unit on the channel. Which fields are meaningful
// depends on Action:
//
//	output              Prefix, Text
//	informationMessage  Text
//	errorMessage        Text
//	prompt              PromiseID, Question
//	reply               PromiseID, Replies
type Message struct {
	Action    Action
	PromiseID int
	Prefix    string
	Text      string
	Question  Question
	Replies   Reply
}

// NewOutput creates an output message.
func NewOutput(prefix, message string) Message {
	return Message{Action: ActionOutput, Prefix: prefix, Text: message}
}

// NewInformation creates an information notification.
func NewInformation(message string) Message {
	return Message{Action: ActionInformation, Text: message}
}

// NewError creates an error notification.
func NewError(message string) Message {
	return Message{Action: ActionError, Text: message}
}

// NewPrompt creates a prompt request for question, correlated by id.
func NewPrompt(id int, question Question) Message {
	return Message{Action: ActionPrompt, PromiseID: id, Question: question}
}

// NewReply creates the reply to the prompt with the given id.
func NewReply(id int, replies Reply) Message {
	return Message{Action: ActionReply, PromiseID: id, Replies: replies}
}
