package agents

import (
	"context"
	"fmt"
	"time"

	"kgbot/app/service/artifact"
	"kgbot/app/service/checkpoint"
)

// Event is one streamed step of a turn, shaped for the SSE envelope.
type Event struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	TypeContent string `json:"typeContent"`
	Agent       string `json:"agent"`
}

// EmitFunc receives events as agents produce them; nil disables streaming.
type EmitFunc func(Event)

// Graph is the fixed state machine over the agents. Edges:
//
//	START → Entry
//	Entry → Validator | TERMINAL   (conditional)
//	Validator → Supervisor | TERMINAL   (conditional)
//	Supervisor → EntityResolver | SPARQLRunner | Interpreter | TERMINAL
//	workers → Supervisor   (static)
//
// No edge bypasses the supervisor after the Entry/Validator gate.
type Graph struct {
	agents       map[string]Agent
	checkpoints  checkpoint.Store
	artifacts    artifact.Store
	maxDecisions int
}

func NewGraph(agentList []Agent, checkpoints checkpoint.Store, artifacts artifact.Store, maxDecisions int) *Graph {
	agents := make(map[string]Agent, len(agentList))
	for _, agent := range agentList {
		agents[agent.Name()] = agent
	}

	return &Graph{
		agents:       agents,
		checkpoints:  checkpoints,
		artifacts:    artifacts,
		maxDecisions: maxDecisions,
	}
}

// Run drives one turn from Entry to the terminal sentinel. Every agent step
// appends exactly one message; the state is checkpointed after every
// transition so the thread can resume mid-history.
func (g *Graph) Run(ctx context.Context, turn *Turn, emit EmitFunc) (ConversationState, error) {
	node := NodeEntry
	decisions := 0
	interactionOpen := false

	for node != Terminal {
		if err := ctx.Err(); err != nil {
			return turn.State, err
		}

		if node == NodeSupervisor {
			// The interaction row for this question is allocated the moment
			// the supervisor first takes over.
			if !interactionOpen {
				if _, err := g.artifacts.OpenInteraction(ctx, turn.SessionID, turn.ThreadID); err != nil {
					return turn.State, fmt.Errorf("failed to open interaction: %w", err)
				}
				interactionOpen = true
			}

			if decisions >= g.maxDecisions {
				turn.State = turn.State.Append(NodeSupervisor,
					fmt.Sprintf("Stopping after %d routing decisions without an answer; something is looping.", decisions),
					KindText).WithNext(Terminal)
				g.save(ctx, turn)
				g.emit(emit, NodeSupervisor, turn.State.LastMessage())
				break
			}
			decisions++
		}

		agent, ok := g.agents[node]
		if !ok {
			return turn.State, fmt.Errorf("unknown node %q", node)
		}

		start := time.Now()
		result, err := agent.Step(ctx, turn)
		if err != nil {
			// Agent failures become conversation text; gate nodes end the
			// turn, workers report back to the supervisor.
			result = StepResult{
				Content: fmt.Sprintf("Something went wrong in %s: %v", node, err),
			}
			if node == NodeEntry || node == NodeValidator {
				result.NextHint = Terminal
			}
			turn.Logger.Error("Agent step failed", "agent", node, "error", err)
		}

		kind := result.Kind
		if kind == "" {
			kind = KindText
		}

		turn.State = turn.State.Append(node, result.Content, kind)

		next := g.route(node, result)
		if node == NodeSupervisor {
			// Only the supervisor's decision is persisted as next-hop.
			turn.State = turn.State.WithNext(next)
		}

		g.save(ctx, turn)
		g.emit(emit, node, turn.State.LastMessage())

		turn.Logger.Info("Agent step",
			"agent", node,
			"next", next,
			"duration", time.Since(start))

		node = next
	}

	turn.State = turn.State.WithNext(Terminal)
	g.save(ctx, turn)

	return turn.State, nil
}

func (g *Graph) route(node string, result StepResult) string {
	switch node {
	case NodeEntry:
		if result.NextHint == NodeValidator {
			return NodeValidator
		}
		return Terminal

	case NodeValidator:
		if result.NextHint == NodeSupervisor {
			return NodeSupervisor
		}
		return Terminal

	case NodeSupervisor:
		switch result.NextHint {
		case NodeEntityResolver, NodeSPARQLRunner, NodeInterpreter:
			return result.NextHint
		default:
			return Terminal
		}

	default:
		// Static edges: every worker returns to the supervisor.
		return NodeSupervisor
	}
}

func (g *Graph) save(ctx context.Context, turn *Turn) {
	data, err := MarshalState(turn.State)
	if err != nil {
		turn.Logger.Error("Failed to marshal state", "error", err)
		return
	}

	if err = g.checkpoints.Save(ctx, turn.ThreadID, data); err != nil {
		turn.Logger.Error("Failed to save checkpoint", "error", err)
	}
}

func (g *Graph) emit(emit EmitFunc, agent string, message Message) {
	if emit == nil {
		return
	}

	emit(Event{
		Type:        "message",
		Content:     message.Text,
		TypeContent: message.Kind,
		Agent:       agent,
	})
}
