package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/koopa0/context7-agent/internal/history"
)

// ChunkCallback receives stream chunks as the model produces them:
// response text fragments and tool invocation notices. Returning an error
// aborts the stream.
type ChunkCallback func(ctx context.Context, chunk StreamChunk) error

// Result is the outcome of one model run.
type Result struct {
	// Text is the model's final answer.
	Text string

	// Documents holds one entry per tool response produced during the run,
	// in call order. These back the /bookmark and /preview commands.
	Documents []history.Document
}

// Runner is the narrow model-framework surface the agent depends on.
// Production code uses the Genkit-backed implementation; tests substitute
// stubs to observe call counts and inject failures.
type Runner interface {
	Run(ctx context.Context, query string, transcript []history.Message) (Result, error)
	RunStream(ctx context.Context, query string, transcript []history.Message, onChunk ChunkCallback) (Result, error)
}

// genkitRunner executes turns with genkit.Generate.
type genkitRunner struct {
	g            *genkit.Genkit
	modelName    string
	systemPrompt string
	toolRefs     []ai.ToolRef
	maxTurns     int
}

func newGenkitRunner(g *genkit.Genkit, modelName, systemPrompt string, tools []ai.Tool, maxTurns int) *genkitRunner {
	// Cache tool refs at construction (ai.Tool implements ai.ToolRef)
	refs := make([]ai.ToolRef, len(tools))
	for i, t := range tools {
		refs[i] = t
	}
	return &genkitRunner{
		g:            g,
		modelName:    modelName,
		systemPrompt: systemPrompt,
		toolRefs:     refs,
		maxTurns:     maxTurns,
	}
}

func (r *genkitRunner) Run(ctx context.Context, query string, transcript []history.Message) (Result, error) {
	return r.generate(ctx, query, transcript, nil)
}

func (r *genkitRunner) RunStream(ctx context.Context, query string, transcript []history.Message, onChunk ChunkCallback) (Result, error) {
	return r.generate(ctx, query, transcript, onChunk)
}

func (r *genkitRunner) generate(ctx context.Context, query string, transcript []history.Message, onChunk ChunkCallback) (Result, error) {
	messages := historyMessages(transcript)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(query)))

	opts := []ai.GenerateOption{
		ai.WithModelName(r.modelName),
		ai.WithSystem(r.systemPrompt),
		ai.WithMessages(messages...),
	}
	if len(r.toolRefs) > 0 {
		opts = append(opts,
			ai.WithTools(r.toolRefs...),
			ai.WithMaxTurns(r.maxTurns))
	}
	if onChunk != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			if chunk == nil {
				return nil
			}
			for _, part := range chunk.Content {
				switch {
				case part.ToolRequest != nil:
					if err := onChunk(ctx, StreamChunk{Tool: part.ToolRequest.Name}); err != nil {
						return err
					}
				case part.Text != "":
					if err := onChunk(ctx, StreamChunk{Text: part.Text}); err != nil {
						return err
					}
				}
			}
			return nil
		}))
	}

	resp, err := genkit.Generate(ctx, r.g, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	return Result{
		Text:      resp.Text(),
		Documents: documentsFromResponse(resp),
	}, nil
}

// documentsFromResponse lifts every tool response out of the completed
// request into a displayable document. After the agentic loop finishes, the
// final request carries the whole expanded conversation, tool exchanges
// included.
func documentsFromResponse(resp *ai.ModelResponse) []history.Document {
	if resp == nil || resp.Request == nil {
		return nil
	}
	var docs []history.Document
	for _, msg := range resp.Request.Messages {
		if msg.Role != ai.RoleTool {
			continue
		}
		for _, part := range msg.Content {
			if part.ToolResponse == nil {
				continue
			}
			if doc := documentFromToolResponse(part.ToolResponse); doc != nil {
				docs = append(docs, doc)
			}
		}
	}
	return docs
}

// documentFromToolResponse converts one tool response to a document.
// String outputs are kept verbatim (Context7 returns markdown); everything
// else is rendered as JSON.
func documentFromToolResponse(tr *ai.ToolResponse) history.Document {
	var content, docType string
	switch output := tr.Output.(type) {
	case string:
		content = output
		docType = "markdown"
	case nil:
		return nil
	default:
		jsonBytes, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return nil
		}
		content = string(jsonBytes)
		docType = "json"
	}
	return history.Document{
		"title":   tr.Name,
		"content": content,
		"type":    docType,
	}
}
