// Package chat keeps per-user conversation state and dispatches questions to the
// SQL agent.
package chat

import (
	"time"

	"sqlchat/internal/present"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Greeting opens every new or cleared conversation.
const Greeting = "Hello! Ask me anything about your database."

// Message is one turn of the conversation.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

func (m Message) isGreeting() bool {
	return m.Role == RoleAssistant && m.Content == Greeting
}

// View renders the message for display.
func (m Message) View() present.View {
	if m.Role != RoleAssistant {
		return present.View{Kind: present.KindText, Text: m.Content}
	}
	return present.Render(m.Content)
}

// Answer is the result of one successful question.
type Answer struct {
	Text string       `json:"text"`
	View present.View `json:"view"`
}

// EventKind classifies streamed agent progress.
type EventKind string

const (
	EventDelta      EventKind = "delta"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
)

// Event is one piece of streamed agent progress, delivered in generation order.
type Event struct {
	Kind  EventKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Tool  string    `json:"tool,omitempty"`
	Input string    `json:"input,omitempty"`
}
