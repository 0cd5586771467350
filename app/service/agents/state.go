package agents

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Node names. Terminal is the sentinel ending a turn; the supervisor's
// routing tool emits Finish, which the graph maps onto Terminal.
const (
	NodeEntry          = "Entry"
	NodeValidator      = "Validator"
	NodeSupervisor     = "Supervisor"
	NodeEntityResolver = "EntityResolver"
	NodeSPARQLRunner   = "SPARQLRunner"
	NodeInterpreter    = "Interpreter"

	Terminal = "TERMINAL"
	Finish   = "FINISH"

	AuthorUser = "user"
)

// Message kinds map onto the streaming envelope's typeContent.
const (
	KindText          = "text"
	KindVisualization = "visualization"
)

// Message is one conversation turn. Messages are never mutated or removed.
type Message struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationState is the append-only message log plus the next-hop value.
// Each transition produces a new state; the old one is never modified.
type ConversationState struct {
	Messages []Message `json:"messages"`
	Next     string    `json:"next"`
}

// Append returns a new state with one more message. The backing array of the
// receiver is never shared for writes: the slice is copied.
func (s ConversationState) Append(author, text, kind string) ConversationState {
	messages := make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(messages, s.Messages)

	messages = append(messages, Message{
		Author:    author,
		Text:      text,
		Kind:      kind,
		Timestamp: time.Now(),
	})

	return ConversationState{
		Messages: messages,
		Next:     s.Next,
	}
}

func (s ConversationState) WithNext(next string) ConversationState {
	s.Next = next
	return s
}

// LastMessage returns the newest message, or a zero Message for an empty log.
func (s ConversationState) LastMessage() Message {
	if len(s.Messages) == 0 {
		return Message{}
	}
	return s.Messages[len(s.Messages)-1]
}

// LastUserMessage returns the newest message authored by the user.
func (s ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Author == AuthorUser {
			return s.Messages[i].Text
		}
	}
	return ""
}

// LastFrom returns the newest message text from the given agent, or "".
func (s ConversationState) LastFrom(author string) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Author == author {
			return s.Messages[i].Text
		}
	}
	return ""
}

// History renders the log for prompt templating.
func (s ConversationState) History() string {
	if len(s.Messages) == 0 {
		return "No messages yet"
	}

	var builder strings.Builder
	for _, msg := range s.Messages {
		fmt.Fprintf(&builder, "%s - %s: %s\n",
			msg.Timestamp.Format("15:04:05"), msg.Author, msg.Text)
	}

	return builder.String()
}

func MarshalState(state ConversationState) ([]byte, error) {
	return json.Marshal(state)
}

func UnmarshalState(data []byte) (ConversationState, error) {
	var state ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return ConversationState{}, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}
	return state, nil
}
