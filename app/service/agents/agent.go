// Package agents implements the orchestration graph: a fixed state machine
// of LLM-driven nodes appending to a shared conversation log. Routing is
// structured: every agent returns a next hint, and only the supervisor's
// decision is persisted as the conversation's next-hop value.
package agents

import (
	"context"
	"log/slog"
)

// StepResult is one agent step: content becomes exactly one appended
// message; NextHint steers the conditional edges. An empty hint means the
// static edge applies (worker nodes return to the supervisor).
type StepResult struct {
	Content  string
	Kind     string
	NextHint string
}

type Agent interface {
	Name() string
	Step(ctx context.Context, turn *Turn) (StepResult, error)
}

// Turn carries per-question context through the graph.
type Turn struct {
	SessionID string
	ThreadID  string
	State     ConversationState
	Logger    *slog.Logger
}

// Question returns the normalised question for the current turn: the entry
// agent's rewrite when present, otherwise the raw user message.
func (t *Turn) Question() string {
	if text := t.State.LastFrom(NodeEntry); text != "" {
		return trimSupervisorCall(text)
	}
	return t.State.LastUserMessage()
}

// Entities returns the latest resolved-entity summary, or "".
func (t *Turn) Entities() string {
	return t.State.LastFrom(NodeEntityResolver)
}
