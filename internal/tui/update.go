package tui

import (
	"context"
	"errors"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
)

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo // Bubble Tea Update requires type switch on all message types
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Calculate viewport height: total - input - separators - help
		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		m.help.SetWidth(msg.Width)
		m.markdown.UpdateWidth(msg.Width)

		// Rebuild viewport content with new dimensions
		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		// Forward mouse wheel to viewport for scrolling
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		// Rebuild viewport to update spinner animation during thinking or tool execution
		if m.state == StateThinking || (m.state == StateStreaming && m.toolStatus != "") {
			m.rebuildViewportContent()
		}
		return m, cmd

	case streamStartedMsg:
		m.streamCancel = msg.cancel
		m.streamEventCh = msg.eventCh
		m.state = StateStreaming
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForStream(msg.eventCh)

	case streamToolMsg:
		m.toolStatus = msg.status
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForStream(m.streamEventCh)

	case streamTextMsg:
		m.toolStatus = "" // Clear tool status when text arrives
		m.output.WriteString(msg.text)
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForStream(m.streamEventCh)

	case streamDoneMsg:
		return m.handleStreamDone(msg)

	case streamErrorMsg:
		m.state = StateInput
		m.toolStatus = ""
		m.pendingQuery = ""

		// Cancel context to release timer resources
		if m.streamCancel != nil {
			m.streamCancel()
			m.streamCancel = nil
		}
		m.streamEventCh = nil

		switch {
		case errors.Is(msg.err, context.Canceled):
			m.addMessage(Message{Role: roleSystem, Text: "(Canceled)"})
		case errors.Is(msg.err, context.DeadlineExceeded):
			m.addMessage(Message{Role: roleError, Text: "Query timeout (>5 min). Try a simpler query or break it into steps."})
		default:
			m.addMessage(Message{Role: roleError, Text: msg.err.Error()})
		}
		m.output.Reset()
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		// Re-focus textarea after error
		return m, m.input.Focus()

	case saveResultMsg:
		if msg.err != nil {
			m.addMessage(Message{Role: roleError, Text: "Failed to save history: " + msg.err.Error()})
			m.rebuildViewportContent()
			m.viewport.GotoBottom()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleStreamDone finalizes a turn: the reply joins the display transcript,
// a successful exchange is persisted, and the turn's documents replace
// lastResults wholesale.
func (m *Model) handleStreamDone(msg streamDoneMsg) (tea.Model, tea.Cmd) {
	m.state = StateInput
	m.toolStatus = ""

	// Cancel context to release timer resources
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
	m.streamEventCh = nil

	// Prefer the complete response from the flow output over accumulated
	// chunks. This handles models that don't stream or send final content
	// only in Output.
	finalText := msg.output.Response
	if finalText == "" {
		finalText = m.output.String()
	}
	m.output.Reset()

	query := m.pendingQuery
	m.pendingQuery = ""

	cmds := []tea.Cmd{m.input.Focus()}

	if msg.output.Failed {
		// A failed turn shows its message but leaves the saved transcript
		// and lastResults untouched
		m.addMessage(Message{Role: roleError, Text: finalText})
	} else {
		m.addMessage(Message{Role: roleAssistant, Text: finalText})
		m.lastResults = msg.output.Documents
		if query != "" {
			cmds = append(cmds, m.persistTurn(query, finalText))
		}
	}

	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, tea.Batch(cmds...)
}
