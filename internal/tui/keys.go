package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/koopa0/context7-agent/internal/config"
	"github.com/koopa0/context7-agent/internal/history"
)

// Slash command constants.
const (
	cmdHelp      = "/help"
	cmdTheme     = "/theme"
	cmdPreview   = "/preview"
	cmdBookmark  = "/bookmark"
	cmdAnalytics = "/analytics"
	cmdHistory   = "/history"
	cmdClear     = "/clear"
	cmdExit      = "/exit"
	cmdQuit      = "/quit"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	History    key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	EscCancel  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:    key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("s+enter", "newline")),
		History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		EscCancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

//nolint:gocyclo // Keyboard handler requires branching for all key combinations
func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	// Check for Ctrl modifier
	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return m.handleCtrlC()
		case 'd':
			return m, m.cleanup()
		}
	}

	// Check special keys
	switch k.Code {
	case tea.KeyEnter:
		if m.state == StateInput {
			// Enter without Shift = submit
			// Shift+Enter = newline (pass through to textarea)
			if k.Mod&tea.ModShift == 0 {
				return m.handleSubmit()
			}
		}

	case tea.KeyUp:
		// Up at first line navigates input history, otherwise pass to textarea
		if m.state == StateInput && m.input.Line() == 0 {
			return m.navigateHistory(-1)
		}

	case tea.KeyDown:
		// Down at last line navigates input history, otherwise pass to textarea
		if m.state == StateInput && m.input.Line() == m.input.LineCount()-1 {
			return m.navigateHistory(1)
		}

	case tea.KeyEscape:
		if m.state == StateStreaming || m.state == StateThinking {
			m.cancelStream()
			m.state = StateInput
			m.output.Reset()
			return m, nil
		}

	case tea.KeyPgUp:
		m.viewport.PageUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.PageDown()
		return m, nil
	}

	// Pass keys to textarea for typing - ALWAYS allow typing even during
	// streaming so the next message can be prepared while the model responds
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit
	if now.Sub(m.lastCtrlC) < time.Second {
		return m, m.cleanup()
	}
	m.lastCtrlC = now

	switch m.state {
	case StateInput:
		// Ctrl+C on an empty prompt exits, otherwise it clears the draft
		if strings.TrimSpace(m.input.Value()) == "" {
			return m, m.cleanup()
		}
		m.input.Reset()
		return m, nil

	case StateThinking, StateStreaming:
		// The stream error path reports "(Canceled)" once the turn unwinds
		m.cancelStream()
		m.state = StateInput
		m.output.Reset()
		return m, nil
	}

	return m, nil
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return m, nil
	}

	// Handle slash commands locally; they never reach the model
	if strings.HasPrefix(query, "/") {
		return m.handleSlashCommand(query)
	}

	// Add to input history (enforce maxInputLog cap)
	m.inputLog = append(m.inputLog, query)
	if len(m.inputLog) > maxInputLog {
		// Remove oldest entries to stay within bounds
		m.inputLog = m.inputLog[len(m.inputLog)-maxInputLog:]
	}
	m.inputIdx = len(m.inputLog)

	// Add user message
	m.addMessage(Message{Role: roleUser, Text: query})
	m.pendingQuery = query

	// Clear input
	m.input.Reset()

	// Start thinking
	m.state = StateThinking
	m.rebuildViewportContent()
	m.viewport.GotoBottom()

	return m, tea.Batch(
		m.spinner.Tick,
		m.startStream(query),
	)
}

func (m *Model) handleSlashCommand(input string) (tea.Model, tea.Cmd) {
	m.input.Reset()

	fields := strings.Fields(input)
	name, args := fields[0], fields[1:]

	switch name {
	case cmdHelp:
		m.addMessage(Message{Role: roleSystem, Text: helpText()})

	case cmdTheme:
		m.handleTheme(args)

	case cmdPreview:
		m.handlePreview(args)

	case cmdBookmark:
		m.handleBookmark(args)

	case cmdAnalytics:
		m.addMessage(Message{Role: roleSystem, Text: "Analytics coming soon!"})

	case cmdHistory:
		m.handleHistory()

	case cmdClear:
		m.messages = nil
		m.store.Clear()

	case cmdExit, cmdQuit:
		return m, m.cleanup()

	default:
		m.addMessage(Message{
			Role: roleError,
			Text: "Unknown command: " + name + "\nType /help to see available commands.",
		})
	}

	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, nil
}

// helpText lists commands first, keyboard shortcuts second.
func helpText() string {
	return strings.Join([]string{
		"Commands:",
		"  /help            Show this help screen",
		"  /theme THEME     Switch theme (" + strings.Join(config.ThemeNames(), ", ") + ")",
		"  /preview N       Preview document N (from results)",
		"  /bookmark N      Bookmark document N",
		"  /analytics       Show search analytics",
		"  /history         Show chat history",
		"  /clear           Clear the screen and conversation memory",
		"  /exit            Exit the agent",
		"Shortcuts:",
		"  Enter: send message",
		"  Shift+Enter: new line",
		"  Esc: cancel a running reply",
		"  Ctrl+C: clear input / cancel, Ctrl+D: exit",
		"  Up/Down: input history",
		"  PgUp/PgDn: scroll",
	}, "\n")
}

func (m *Model) handleTheme(args []string) {
	if len(args) == 1 && config.ValidTheme(args[0]) {
		m.setTheme(ThemeByName(args[0]))
		m.addMessage(Message{Role: roleSuccess, Text: "Theme switched to " + args[0]})
		return
	}
	m.addMessage(Message{
		Role: roleError,
		Text: "Invalid theme. Use: " + strings.Join(config.ThemeNames(), ", "),
	})
}

func (m *Model) handleBookmark(args []string) {
	doc, ok := m.resultAt(args)
	if !ok {
		m.addMessage(Message{Role: roleError, Text: "Invalid bookmark index."})
		return
	}
	if err := m.store.AddBookmark(doc); err != nil {
		m.addMessage(Message{Role: roleError, Text: "Failed to save bookmark: " + err.Error()})
		return
	}
	m.addMessage(Message{Role: roleSuccess, Text: "Bookmarked!"})
}

func (m *Model) handlePreview(args []string) {
	doc, ok := m.resultAt(args)
	if !ok {
		m.addMessage(Message{Role: roleError, Text: "Invalid preview index."})
		return
	}
	m.addMessage(Message{Role: rolePreview, Text: previewMarkdown(args[0], doc)})
}

// resultAt resolves a 1-based document index from the last turn's results.
func (m *Model) resultAt(args []string) (history.Document, bool) {
	if len(args) != 1 {
		return nil, false
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 1 || idx > len(m.lastResults) {
		return nil, false
	}
	return m.lastResults[idx-1], true
}

// previewMarkdown builds the markdown body for a document preview.
// Markdown documents render directly; other types go into a fenced code
// block so glamour applies syntax highlighting.
func previewMarkdown(index string, doc history.Document) string {
	title, _ := doc["title"].(string)
	content, _ := doc["content"].(string)
	if content == "" {
		content = "No content available"
	}
	docType, _ := doc["type"].(string)

	var b strings.Builder
	fmt.Fprintf(&b, "**Preview %s: %s**\n\n", index, title)
	if docType == "" || docType == "markdown" {
		_, _ = b.WriteString(content)
	} else {
		fmt.Fprintf(&b, "```%s\n%s\n```", docType, content)
	}
	return b.String()
}

func (m *Model) handleHistory() {
	msgs := m.store.History()
	if len(msgs) == 0 {
		m.addMessage(Message{Role: roleSystem, Text: "No conversation history yet."})
		return
	}

	var b strings.Builder
	_, _ = b.WriteString("Conversation History\n")
	for _, msg := range msgs {
		content := msg.Content
		if runes := []rune(content); len(runes) > 100 {
			content = string(runes[:100]) + "..."
		}
		fmt.Fprintf(&b, "  %-9s  %s\n", msg.Role, content)
	}
	m.addMessage(Message{Role: roleSystem, Text: strings.TrimRight(b.String(), "\n")})
}

func (m *Model) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(m.inputLog) == 0 {
		return m, nil
	}

	m.inputIdx += delta

	if m.inputIdx < 0 {
		m.inputIdx = 0
	}
	if m.inputIdx > len(m.inputLog) {
		m.inputIdx = len(m.inputLog)
	}

	if m.inputIdx == len(m.inputLog) {
		m.input.SetValue("")
	} else {
		m.input.SetValue(m.inputLog[m.inputIdx])
		// Move cursor to end of text
		m.input.CursorEnd()
	}

	return m, nil
}

func (m *Model) cancelStream() {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
}

// cleanup cancels any active stream and returns the quit command.
func (m *Model) cleanup() tea.Cmd {
	// Cancel main context first - this triggers all goroutines using m.ctx
	if m.ctxCancel != nil {
		m.ctxCancel()
		m.ctxCancel = nil
	}

	// Then cancel stream-specific context (may already be canceled via parent)
	m.cancelStream()
	m.streamEventCh = nil

	return tea.Quit
}
