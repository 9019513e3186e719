package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"go.uber.org/goleak"

	"github.com/koopa0/context7-agent/internal/agent"
	"github.com/koopa0/context7-agent/internal/config"
	"github.com/koopa0/context7-agent/internal/history"
	"github.com/koopa0/context7-agent/internal/log"
)

// goleakOptions returns standard goleak options for all TUI tests.
// Filters out persistent goroutines that are expected to exist:
// - HTTP/2 connection pool goroutines
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
	}
}

// newTestModel creates a Model with initialized components for testing.
func newTestModel(t *testing.T) *Model {
	t.Helper()

	store, err := history.New(filepath.Join(t.TempDir(), "history.json"), log.NewNop())
	if err != nil {
		t.Fatalf("history.New: %v", err)
	}

	ta := textarea.New()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	theme := DefaultTheme()
	sp := spinner.New()
	sp.Spinner = theme.Spinner()

	return &Model{
		state:     StateInput,
		input:     ta,
		store:     store,
		sessionID: "test-session",
		inputLog:  make([]string, 0),
		keys:      newKeyMap(),
		theme:     theme,
		styles:    theme.Styles,
		spinner:   sp,
		viewport:  viewport.New(viewport.WithWidth(80), viewport.WithHeight(20)),
		help:      help.New(),
		markdown:  newMarkdownRenderer(80),
		ctx:       context.Background(), // Required for stream operations
		width:     80,
	}
}

func lastMessage(t *testing.T, m *Model) Message {
	t.Helper()
	if len(m.messages) == 0 {
		t.Fatal("expected at least one message")
	}
	return m.messages[len(m.messages)-1]
}

func TestNew_ErrorOnNilFlow(t *testing.T) {
	store, err := history.New(filepath.Join(t.TempDir(), "h.json"), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(context.Background(), nil, store, config.ThemeOcean, "sid"); err == nil {
		t.Error("Expected error for nil flow")
	}
}

func TestNew_ErrorOnNilStore(t *testing.T) {
	if _, err := New(context.Background(), &agent.Flow{}, nil, config.ThemeOcean, "sid"); err == nil {
		t.Error("Expected error for nil store")
	}
}

func TestNew_ErrorOnEmptySessionID(t *testing.T) {
	store, err := history.New(filepath.Join(t.TempDir(), "h.json"), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(context.Background(), &agent.Flow{}, store, config.ThemeOcean, ""); err == nil {
		t.Error("Expected error for empty session ID")
	}
}

func TestNew_AppliesTheme(t *testing.T) {
	store, err := history.New(filepath.Join(t.TempDir(), "h.json"), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	m, err := New(context.Background(), &agent.Flow{}, store, config.ThemeOcean, "sid")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.theme.Name != config.ThemeOcean {
		t.Errorf("theme = %q, want %q", m.theme.Name, config.ThemeOcean)
	}

	// Unknown names fall back to cyberpunk rather than failing
	m, err = New(context.Background(), &agent.Flow{}, store, "bogus", "sid")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.theme.Name != config.ThemeCyberpunk {
		t.Errorf("fallback theme = %q, want %q", m.theme.Name, config.ThemeCyberpunk)
	}
}

func TestModel_Init(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	if cmd := m.Init(); cmd == nil {
		t.Error("Init should return a command (blink + spinner tick)")
	}
}

func TestModel_HandleSlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tests := []struct {
		name     string
		cmd      string
		wantExit bool
		wantMsgs int // number of messages added
	}{
		{"help", "/help", false, 1},
		{"analytics", "/analytics", false, 1},
		{"clear", "/clear", false, 0}, // clears messages
		{"exit", "/exit", true, 0},
		{"quit", "/quit", true, 0},
		{"unknown", "/unknown", false, 1}, // error message
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t)

			// Pre-populate with a message for /clear test
			m.messages = []Message{{Role: roleUser, Text: "hello"}}

			model, cmd := m.handleSlashCommand(tt.cmd)
			result := model.(*Model)

			if tt.wantExit {
				if cmd == nil {
					t.Error("Expected quit command for exit")
				}
				return
			}
			if tt.cmd == "/clear" {
				if len(result.messages) != 0 {
					t.Error("/clear should clear messages")
				}
				return
			}
			if len(result.messages) != 1+tt.wantMsgs {
				t.Errorf("Expected %d messages, got %d", 1+tt.wantMsgs, len(result.messages))
			}
		})
	}
}

func TestModel_UnknownCommandMessage(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	model, _ := m.handleSlashCommand("/frobnicate")
	result := model.(*Model)

	msg := lastMessage(t, result)
	if msg.Role != roleError {
		t.Errorf("role = %q, want %q", msg.Role, roleError)
	}
	if !strings.Contains(msg.Text, "Unknown command: /frobnicate") {
		t.Errorf("text = %q, want it to name the command", msg.Text)
	}
}

func TestModel_HelpListsEveryCommand(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	model, _ := m.handleSlashCommand("/help")
	result := model.(*Model)

	text := lastMessage(t, result).Text
	for _, want := range []string{
		cmdHelp, cmdTheme, cmdPreview, cmdBookmark,
		cmdAnalytics, cmdHistory, cmdClear, cmdExit,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("help text missing %q", want)
		}
	}
}

func TestModel_ThemeSwitch(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)

	model, _ := m.handleSlashCommand("/theme ocean")
	result := model.(*Model)

	if result.theme.Name != config.ThemeOcean {
		t.Errorf("theme = %q, want %q", result.theme.Name, config.ThemeOcean)
	}
	msg := lastMessage(t, result)
	if msg.Role != roleSuccess || msg.Text != "Theme switched to ocean" {
		t.Errorf("got %+v, want success confirmation", msg)
	}
}

func TestModel_ThemeInvalid(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tests := []string{"/theme neon", "/theme", "/theme ocean extra"}
	for _, cmd := range tests {
		t.Run(cmd, func(t *testing.T) {
			m := newTestModel(t)
			before := m.theme.Name

			model, _ := m.handleSlashCommand(cmd)
			result := model.(*Model)

			if result.theme.Name != before {
				t.Error("invalid theme input must not switch the theme")
			}
			msg := lastMessage(t, result)
			if msg.Role != roleError {
				t.Errorf("role = %q, want %q", msg.Role, roleError)
			}
			if !strings.Contains(msg.Text, "Invalid theme. Use: cyberpunk, ocean, forest, sunset") {
				t.Errorf("text = %q, want valid theme list", msg.Text)
			}
		})
	}
}

func TestModel_BookmarkInvalidIndex(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.lastResults = []history.Document{
		{"title": "doc-1", "content": "a", "type": "markdown"},
		{"title": "doc-2", "content": "b", "type": "markdown"},
	}

	for _, cmd := range []string{"/bookmark 99", "/bookmark 0", "/bookmark abc", "/bookmark"} {
		t.Run(cmd, func(t *testing.T) {
			model, _ := m.handleSlashCommand(cmd)
			result := model.(*Model)

			msg := lastMessage(t, result)
			if msg.Role != roleError || msg.Text != "Invalid bookmark index." {
				t.Errorf("got %+v, want invalid bookmark error", msg)
			}
			if len(result.store.Bookmarks()) != 0 {
				t.Error("bookmarks must stay unchanged on invalid index")
			}
		})
	}
}

func TestModel_BookmarkSuccess(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.lastResults = []history.Document{
		{"title": "doc-1", "content": "a", "type": "markdown"},
		{"title": "doc-2", "content": "b", "type": "markdown"},
	}

	model, _ := m.handleSlashCommand("/bookmark 2")
	result := model.(*Model)

	msg := lastMessage(t, result)
	if msg.Role != roleSuccess || msg.Text != "Bookmarked!" {
		t.Errorf("got %+v, want bookmark confirmation", msg)
	}

	bookmarks := result.store.Bookmarks()
	if len(bookmarks) != 1 {
		t.Fatalf("bookmarks = %d, want 1", len(bookmarks))
	}
	if bookmarks[0]["title"] != "doc-2" {
		t.Errorf("bookmarked %v, want doc-2", bookmarks[0]["title"])
	}
}

func TestModel_PreviewInvalidIndex(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)

	model, _ := m.handleSlashCommand("/preview 1")
	result := model.(*Model)

	msg := lastMessage(t, result)
	if msg.Role != roleError || msg.Text != "Invalid preview index." {
		t.Errorf("got %+v, want invalid preview error", msg)
	}
}

func TestModel_PreviewRendersDocument(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.lastResults = []history.Document{
		{"title": "get-library-docs", "content": "# Routing", "type": "markdown"},
	}

	model, _ := m.handleSlashCommand("/preview 1")
	result := model.(*Model)

	msg := lastMessage(t, result)
	if msg.Role != rolePreview {
		t.Fatalf("role = %q, want %q", msg.Role, rolePreview)
	}
	if !strings.Contains(msg.Text, "# Routing") {
		t.Errorf("preview text %q missing document content", msg.Text)
	}
}

func TestPreviewMarkdown(t *testing.T) {
	t.Run("markdown renders directly", func(t *testing.T) {
		got := previewMarkdown("1", history.Document{
			"title": "doc", "content": "# Heading", "type": "markdown",
		})
		if !strings.Contains(got, "**Preview 1: doc**") {
			t.Errorf("missing header: %q", got)
		}
		if strings.Contains(got, "```") {
			t.Errorf("markdown content must not be fenced: %q", got)
		}
	})

	t.Run("other types get a fenced block", func(t *testing.T) {
		got := previewMarkdown("2", history.Document{
			"title": "doc", "content": `{"id": 1}`, "type": "json",
		})
		if !strings.Contains(got, "```json") {
			t.Errorf("expected fenced json block: %q", got)
		}
	})

	t.Run("missing content placeholder", func(t *testing.T) {
		got := previewMarkdown("1", history.Document{"title": "doc"})
		if !strings.Contains(got, "No content available") {
			t.Errorf("expected placeholder: %q", got)
		}
	})
}

func TestModel_HistoryCommand(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.store.Append(history.Message{Role: history.RoleUser, Content: "short question"})
	m.store.Append(history.Message{Role: history.RoleAssistant, Content: strings.Repeat("x", 150)})

	model, _ := m.handleSlashCommand("/history")
	result := model.(*Model)

	text := lastMessage(t, result).Text
	if !strings.Contains(text, "short question") {
		t.Errorf("history output missing message: %q", text)
	}
	if !strings.Contains(text, strings.Repeat("x", 100)+"...") {
		t.Error("long content should be truncated at 100 chars")
	}
	if strings.Contains(text, strings.Repeat("x", 101)) {
		t.Error("content beyond 100 chars should be cut")
	}
}

func TestModel_HistoryCommandEmpty(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	model, _ := m.handleSlashCommand("/history")
	result := model.(*Model)

	if !strings.Contains(lastMessage(t, result).Text, "No conversation history") {
		t.Error("empty history should say so")
	}
}

func TestModel_ClearAlsoClearsStore(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.store.Append(history.Message{Role: history.RoleUser, Content: "hello"})
	m.messages = []Message{{Role: roleUser, Text: "hello"}}

	model, _ := m.handleSlashCommand("/clear")
	result := model.(*Model)

	if len(result.messages) != 0 {
		t.Error("/clear should clear display messages")
	}
	if len(result.store.History()) != 0 {
		t.Error("/clear should clear the conversation memory")
	}
}

func TestModel_HistoryNavigation(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.inputLog = []string{"first", "second", "third"}
	m.inputIdx = 3

	tests := []struct {
		delta    int
		expected string
	}{
		{-1, "third"},
		{-1, "second"},
		{-1, "first"},
		{-1, "first"}, // Should stay at first
		{1, "second"},
		{1, "third"},
		{1, ""}, // Past end = empty
		{1, ""}, // Should stay empty
	}

	for i, tt := range tests {
		model, _ := m.navigateHistory(tt.delta)
		m = model.(*Model)
		if m.input.Value() != tt.expected {
			t.Errorf("Step %d: got %q, want %q", i, m.input.Value(), tt.expected)
		}
	}
}

func TestModel_CtrlC_ClearsInput(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.input.SetValue("some input")

	model, cmd := m.handleCtrlC()
	result := model.(*Model)

	if result.input.Value() != "" {
		t.Error("First Ctrl+C should clear input")
	}
	if cmd != nil {
		t.Error("Ctrl+C with a draft should not quit")
	}
}

func TestModel_CtrlC_EmptyPromptQuits(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)

	_, cmd := m.handleCtrlC()
	if cmd == nil {
		t.Error("Ctrl+C on an empty prompt should quit")
	}
}

func TestModel_DoubleCtrlC_Exits(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.input.SetValue("draft survives a single ctrl+c")
	m.lastCtrlC = time.Now()

	_, cmd := m.handleCtrlC()
	if cmd == nil {
		t.Error("Double Ctrl+C should return quit command")
	}
}

func TestModel_CtrlC_CancelsStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.state = StateStreaming

	canceled := false
	m.streamCancel = func() { canceled = true }

	model, _ := m.handleCtrlC()
	result := model.(*Model)

	if !canceled {
		t.Error("Ctrl+C during streaming should cancel")
	}
	if result.state != StateInput {
		t.Error("Should return to StateInput")
	}
}

func TestModel_Update_KeyPress(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.input.SetValue("test")

	// Simulate Ctrl+C (should clear input)
	key := tea.Key{Code: 'c', Mod: tea.ModCtrl}
	msg := tea.KeyPressMsg(key)

	model, _ := m.Update(msg)
	result := model.(*Model)

	if result.input.Value() != "" {
		t.Error("Ctrl+C should clear input")
	}
}

func TestModel_StreamMessageTypes(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("streamTextMsg", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)

		m := newTestModel(t)
		m.state = StateStreaming
		m.streamEventCh = eventCh

		model, _ := m.Update(streamTextMsg{text: "Hello"})
		result := model.(*Model)

		if result.output.String() != "Hello" {
			t.Errorf("Expected 'Hello', got %q", result.output.String())
		}
	})

	t.Run("streamToolMsg", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)

		m := newTestModel(t)
		m.state = StateStreaming
		m.streamEventCh = eventCh

		model, _ := m.Update(streamToolMsg{status: "Fetching documentation..."})
		result := model.(*Model)

		if result.toolStatus != "Fetching documentation..." {
			t.Errorf("toolStatus = %q", result.toolStatus)
		}
	})

	t.Run("streamDoneMsg success", func(t *testing.T) {
		m := newTestModel(t)
		m.state = StateStreaming
		m.pendingQuery = "how do I route?"
		m.lastResults = []history.Document{{"title": "stale"}}
		_, _ = m.output.WriteString("Hello World")

		docs := []map[string]any{{"title": "get-library-docs", "content": "x", "type": "markdown"}}
		model, cmd := m.Update(streamDoneMsg{output: agent.Output{Response: "Hello World", Documents: docs}})
		result := model.(*Model)

		if result.state != StateInput {
			t.Error("Should return to StateInput after stream done")
		}
		msg := lastMessage(t, result)
		if msg.Role != roleAssistant || msg.Text != "Hello World" {
			t.Errorf("got %+v, want assistant reply", msg)
		}
		if result.output.Len() != 0 {
			t.Error("Output buffer should be reset")
		}
		if len(result.lastResults) != 1 || result.lastResults[0]["title"] != "get-library-docs" {
			t.Errorf("lastResults = %v, want replaced by turn documents", result.lastResults)
		}
		if result.pendingQuery != "" {
			t.Error("pendingQuery should be consumed")
		}
		if cmd == nil {
			t.Error("expected focus + persist commands")
		}
	})

	t.Run("streamDoneMsg failure", func(t *testing.T) {
		m := newTestModel(t)
		m.state = StateStreaming
		m.pendingQuery = "hello"
		m.lastResults = []history.Document{{"title": "keep"}}

		model, _ := m.Update(streamDoneMsg{output: agent.Output{
			Response: "Chat error: boom. Please check your API key and internet connection.",
			Failed:   true,
		}})
		result := model.(*Model)

		msg := lastMessage(t, result)
		if msg.Role != roleError {
			t.Errorf("role = %q, want %q", msg.Role, roleError)
		}
		if len(result.store.History()) != 0 {
			t.Error("failed turns must not be persisted")
		}
		if len(result.lastResults) != 1 || result.lastResults[0]["title"] != "keep" {
			t.Error("failed turns must leave lastResults untouched")
		}
	})

	t.Run("streamErrorMsg canceled", func(t *testing.T) {
		m := newTestModel(t)
		m.state = StateStreaming

		model, _ := m.Update(streamErrorMsg{err: context.Canceled})
		result := model.(*Model)

		if result.state != StateInput {
			t.Error("Should return to StateInput after error")
		}
		msg := lastMessage(t, result)
		if msg.Role != roleSystem || msg.Text != "(Canceled)" {
			t.Errorf("got %+v, want (Canceled) system message", msg)
		}
	})
}

func TestModel_PersistTurn(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)

	msg := m.persistTurn("question", "answer")()
	saved, ok := msg.(saveResultMsg)
	if !ok {
		t.Fatalf("expected saveResultMsg, got %T", msg)
	}
	if saved.err != nil {
		t.Fatalf("save failed: %v", saved.err)
	}

	msgs := m.store.History()
	if len(msgs) != 2 {
		t.Fatalf("history = %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != history.RoleUser || msgs[0].Content != "question" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != history.RoleAssistant || msgs[1].Content != "answer" {
		t.Errorf("second message = %+v", msgs[1])
	}

	// The save hit disk, not just memory
	reloaded, err := history.New(m.store.Path(), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if len(reloaded.History()) != 2 {
		t.Error("persisted history should survive a reload")
	}
}

func TestListenForStream_UnionChannel(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("text event", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)
		eventCh <- streamEvent{text: "hello"}

		msg := listenForStream(eventCh)()

		if m, ok := msg.(streamTextMsg); !ok {
			t.Errorf("Expected streamTextMsg, got %T", msg)
		} else if m.text != "hello" {
			t.Errorf("Expected text 'hello', got %q", m.text)
		}
	})

	t.Run("tool event", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)
		eventCh <- streamEvent{toolStatus: "Resolving library..."}

		msg := listenForStream(eventCh)()

		if m, ok := msg.(streamToolMsg); !ok {
			t.Errorf("Expected streamToolMsg, got %T", msg)
		} else if m.status != "Resolving library..." {
			t.Errorf("status = %q", m.status)
		}
	})

	t.Run("done event", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)
		eventCh <- streamEvent{done: true, output: agent.Output{Response: "done"}}

		msg := listenForStream(eventCh)()

		if m, ok := msg.(streamDoneMsg); !ok {
			t.Errorf("Expected streamDoneMsg, got %T", msg)
		} else if m.output.Response != "done" {
			t.Errorf("Expected response 'done', got %q", m.output.Response)
		}
	})

	t.Run("error event", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)
		eventCh <- streamEvent{err: context.Canceled}

		msg := listenForStream(eventCh)()

		if _, ok := msg.(streamErrorMsg); !ok {
			t.Errorf("Expected streamErrorMsg, got %T", msg)
		}
	})

	t.Run("channel closed", func(t *testing.T) {
		eventCh := make(chan streamEvent)
		close(eventCh)

		msg := listenForStream(eventCh)()

		if _, ok := msg.(streamErrorMsg); !ok {
			t.Errorf("Expected streamErrorMsg on channel close, got %T", msg)
		}
	})

	t.Run("nil channel returns nil", func(t *testing.T) {
		if msg := listenForStream(nil)(); msg != nil {
			t.Errorf("Expected nil for nil channel, got %T", msg)
		}
	})
}

func TestToolDisplayName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"resolve-library-id", "Resolving library"},
		{"get-library-docs", "Fetching documentation"},
		{"mystery-tool", "Calling mystery-tool"},
	}
	for _, tt := range tests {
		if got := toolDisplayName(tt.name); got != tt.want {
			t.Errorf("toolDisplayName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestModel_AddMessage_BoundsEnforcement(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)

	for range maxMessages + 50 {
		m.addMessage(Message{Role: roleUser, Text: "test"})
	}

	if len(m.messages) != maxMessages {
		t.Errorf("Expected exactly %d messages, got %d", maxMessages, len(m.messages))
	}
}

func TestModel_Cleanup(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)

	eventCh := make(chan streamEvent, 1)
	m.streamEventCh = eventCh

	if cmd := m.cleanup(); cmd == nil {
		t.Error("cleanup should return quit command")
	}
	if m.streamEventCh != nil {
		t.Error("streamEventCh should be nil after cleanup")
	}
}

func TestModel_CancelStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)

	canceled := false
	m.streamCancel = func() { canceled = true }

	m.cancelStream()

	if !canceled {
		t.Error("cancelStream should call cancel function")
	}
	if m.streamCancel != nil {
		t.Error("streamCancel should be nil after cancel")
	}
}

func TestThemeByName(t *testing.T) {
	for _, name := range config.ThemeNames() {
		theme := ThemeByName(name)
		if theme.Name != name {
			t.Errorf("ThemeByName(%q).Name = %q", name, theme.Name)
		}
		if len(theme.Spinner().Frames) == 0 {
			t.Errorf("theme %q has no spinner frames", name)
		}
		if theme.RenderBanner() == "" {
			t.Errorf("theme %q has no banner", name)
		}
	}

	if got := ThemeByName("nope").Name; got != config.ThemeCyberpunk {
		t.Errorf("unknown theme resolved to %q, want cyberpunk fallback", got)
	}
}

func TestThemeRenderWelcome(t *testing.T) {
	welcome := ThemeByName(config.ThemeForest).RenderWelcome()
	if !strings.Contains(welcome, "Welcome to Context7 Agent! (Theme: forest)") {
		t.Errorf("welcome = %q", welcome)
	}
}

func TestSlidingFrames(t *testing.T) {
	frames := slidingFrames("*")
	if len(frames) != 8 {
		t.Fatalf("frames = %d, want 8", len(frames))
	}
	for i, frame := range frames {
		if len(frame) != 5 {
			t.Errorf("frame %d = %q, want width 5", i, frame)
		}
		if !strings.Contains(frame, "*") {
			t.Errorf("frame %d = %q missing glyph", i, frame)
		}
	}
}

func TestMarkdownRenderer_UpdateWidth(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("creates renderer with correct width", func(t *testing.T) {
		mr := newMarkdownRenderer(100)
		if mr == nil {
			t.Fatal("Failed to create markdown renderer")
		}
		if mr.width != 100 {
			t.Errorf("Expected width 100, got %d", mr.width)
		}
	})

	t.Run("UpdateWidth changes width", func(t *testing.T) {
		mr := newMarkdownRenderer(80)
		if mr == nil {
			t.Fatal("Failed to create markdown renderer")
		}

		if !mr.UpdateWidth(120) {
			t.Error("UpdateWidth should return true when width changes")
		}
		if mr.width != 120 {
			t.Errorf("Expected width 120, got %d", mr.width)
		}
	})

	t.Run("UpdateWidth no-op for same width", func(t *testing.T) {
		mr := newMarkdownRenderer(80)
		if mr == nil {
			t.Fatal("Failed to create markdown renderer")
		}

		if mr.UpdateWidth(80) {
			t.Error("UpdateWidth should return false when width unchanged")
		}
	})

	t.Run("UpdateWidth handles nil receiver", func(t *testing.T) {
		var mr *markdownRenderer
		if mr.UpdateWidth(100) {
			t.Error("UpdateWidth should return false for nil receiver")
		}
	})
}

func TestMarkdownRenderer_Render(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("renders markdown", func(t *testing.T) {
		mr := newMarkdownRenderer(80)
		if mr == nil {
			t.Fatal("Failed to create markdown renderer")
		}

		if mr.Render("**bold**") == "" {
			t.Error("Render should produce output")
		}
	})

	t.Run("nil renderer returns original", func(t *testing.T) {
		var mr *markdownRenderer
		if got := mr.Render("test"); got != "test" {
			t.Errorf("Expected original text, got %q", got)
		}
	})
}

func TestModel_View_NotEmpty(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.rebuildViewportContent()

	view := m.View()
	if !view.AltScreen {
		t.Error("View should request the alternate screen")
	}
}
