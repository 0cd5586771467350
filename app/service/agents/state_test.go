package agents

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendDoesNotMutateReceiver(t *testing.T) {
	base := ConversationState{}.Append(AuthorUser, "hello", KindText)

	first := base.Append(NodeEntry, "rewritten", KindText)
	second := base.Append(NodeValidator, "other branch", KindText)

	require.Len(t, base.Messages, 1)
	require.Len(t, first.Messages, 2)
	require.Len(t, second.Messages, 2)

	// Divergent appends must not clobber each other through a shared array.
	require.Equal(t, "rewritten", first.Messages[1].Text)
	require.Equal(t, "other branch", second.Messages[1].Text)
}

func TestWithNext(t *testing.T) {
	state := ConversationState{}.Append(AuthorUser, "hello", KindText)

	routed := state.WithNext(NodeSPARQLRunner)

	require.Equal(t, NodeSPARQLRunner, routed.Next)
	require.Empty(t, state.Next)
	require.Equal(t, state.Messages, routed.Messages)
}

func TestLastAccessors(t *testing.T) {
	state := ConversationState{}.
		Append(AuthorUser, "first question", KindText).
		Append(NodeEntry, "rewrite "+CallingSupervisor, KindText).
		Append(AuthorUser, "second question", KindText)

	require.Equal(t, "second question", state.LastUserMessage())
	require.Equal(t, "rewrite "+CallingSupervisor, state.LastFrom(NodeEntry))
	require.Empty(t, state.LastFrom(NodeInterpreter))
	require.Equal(t, "second question", state.LastMessage().Text)

	require.Empty(t, ConversationState{}.LastUserMessage())
	require.Empty(t, ConversationState{}.LastMessage().Text)
}

func TestMarshalRoundtrip(t *testing.T) {
	state := ConversationState{}.
		Append(AuthorUser, "question", KindText).
		Append(NodeInterpreter, `{"spec":1}`, KindVisualization).
		WithNext(NodeSupervisor)

	data, err := MarshalState(state)
	require.NoError(t, err)

	restored, err := UnmarshalState(data)
	require.NoError(t, err)

	require.Equal(t, NodeSupervisor, restored.Next)
	require.Len(t, restored.Messages, 2)
	require.Equal(t, KindVisualization, restored.Messages[1].Kind)
	require.Equal(t, state.Messages[0].Text, restored.Messages[0].Text)
}

func TestTurnQuestion(t *testing.T) {
	turn := &Turn{State: ConversationState{}.
		Append(AuthorUser, "raw question", KindText).
		Append(NodeEntry, "clean question "+CallingSupervisor, KindText),
	}

	require.Equal(t, "clean question", turn.Question())

	bare := &Turn{State: ConversationState{}.Append(AuthorUser, "raw question", KindText)}
	require.Equal(t, "raw question", bare.Question())
}
