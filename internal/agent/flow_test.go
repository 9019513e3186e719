package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/context7-agent/internal/history"
)

func TestRunTurnSuccess(t *testing.T) {
	runner := &stubRunner{
		chunks: []StreamChunk{{Tool: "get-library-docs"}, {Text: "par"}, {Text: "tial"}},
		result: Result{
			Text:      "partial",
			Documents: []history.Document{{"title": "get-library-docs", "content": "x", "type": "markdown"}},
		},
	}
	a, _ := newTestAgent(t, runner)

	var streamed []StreamChunk
	out, err := a.runTurn(context.Background(), Input{Query: "q", SessionID: "s1"},
		func(_ context.Context, chunk StreamChunk) error {
			streamed = append(streamed, chunk)
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, "partial", out.Response)
	assert.False(t, out.Failed)
	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, runner.chunks, streamed)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "get-library-docs", out.Documents[0]["title"])
}

func TestRunTurnWithoutStreamCallback(t *testing.T) {
	runner := &stubRunner{result: Result{Text: "answer"}}
	a, _ := newTestAgent(t, runner)

	out, err := a.runTurn(context.Background(), Input{Query: "q"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "answer", out.Response)
}

func TestRunTurnChatFailureBecomesOutput(t *testing.T) {
	runner := &stubRunner{errs: []error{errors.New("invalid API key")}}
	a, _ := newTestAgent(t, runner)

	out, err := a.runTurn(context.Background(), Input{Query: "q", SessionID: "s1"}, nil)

	require.NoError(t, err, "model failures surface as output, not flow errors")
	assert.True(t, out.Failed)
	assert.Contains(t, out.Response, "Chat error:")
	assert.Equal(t, "s1", out.SessionID)
}

func TestRunTurnEmptyInputBecomesOutput(t *testing.T) {
	runner := &stubRunner{}
	a, _ := newTestAgent(t, runner)

	out, err := a.runTurn(context.Background(), Input{Query: "   "}, nil)

	require.NoError(t, err)
	assert.True(t, out.Failed)
	assert.Equal(t, NoInputMessage, out.Response)
	assert.Zero(t, runner.calls)
}

func TestRunTurnCancellationPropagates(t *testing.T) {
	runner := &stubRunner{result: Result{Text: "never"}}
	a, _ := newTestAgent(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := a.runTurn(ctx, Input{Query: "q", SessionID: "s1"}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.Response)
	assert.Equal(t, "s1", out.SessionID, "session survives for the caller even on error")
}
