package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// Input defines the request payload for the chat flow.
type Input struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

// Output defines the response payload from the chat flow.
type Output struct {
	Response string `json:"response"`

	// Documents carries the turn's tool results; they back /bookmark and
	// /preview until the next turn replaces them.
	Documents []map[string]any `json:"documents,omitempty"`

	// Failed marks Response as a failure summary. The exchange must not be
	// appended to the transcript.
	Failed bool `json:"failed,omitempty"`

	SessionID string `json:"sessionId"`
}

// StreamChunk is the streaming output type for the chat flow.
// Each chunk carries either partial text for immediate display or the name
// of a tool the model just invoked.
type StreamChunk struct {
	Text string `json:"text,omitempty"` // Partial text chunk
	Tool string `json:"tool,omitempty"` // Tool being invoked
}

// FlowName is the registered name of the chat flow in Genkit.
const FlowName = "context7/chat"

// Flow is the type alias for the chat agent's Genkit streaming flow.
type Flow = core.Flow[Input, Output, StreamChunk]

// Package-level singleton for Flow to prevent panic on re-registration.
// sync.Once ensures genkit.DefineStreamingFlow is called only once.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the chat flow singleton, initializing it on first call.
// Subsequent calls return the existing Flow (parameters are ignored).
// This is safe because genkit.DefineStreamingFlow panics on re-registration.
func NewFlow(g *genkit.Genkit, agent *Agent) *Flow {
	flowOnce.Do(func() {
		flow = agent.DefineFlow(g)
	})
	return flow
}

// ResetFlowForTesting resets the Flow singleton for testing.
// WARNING: Only use in tests. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

// DefineFlow defines the Genkit streaming flow for the agent.
// Supports both streaming (via callback) and non-streaming modes.
//
// IMPORTANT: Use NewFlow() instead of calling DefineFlow() directly.
// DefineFlow registers a global Flow; calling it twice causes panic.
//
// The flow is a lightweight wrapper; ChatStream contains the turn logic.
// Chat failures come back as Output.Failed with a display-ready Response,
// so the terminal loop can style them and skip persistence without string
// matching. A flow error is reserved for cancellation and infrastructure
// faults.
func (a *Agent) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName, a.runTurn)
}

// runTurn executes one conversation turn.
func (a *Agent) runTurn(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
	var onChunk ChunkCallback
	if streamCb != nil {
		onChunk = streamCb
	}

	res, err := a.ChatStream(ctx, input.Query, onChunk)
	if err != nil && !errors.Is(err, ErrChatFailed) && !errors.Is(err, ErrEmptyInput) {
		// Cancellation, deadline, rate-limiter interruption
		return Output{SessionID: input.SessionID}, err
	}

	return Output{
		Response:  res.Text,
		Documents: res.Documents,
		Failed:    err != nil,
		SessionID: input.SessionID,
	}, nil
}
