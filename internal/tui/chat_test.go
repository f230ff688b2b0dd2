package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/scour/internal/agent"
	"github.com/dotcommander/scour/internal/config"
	"github.com/dotcommander/scour/internal/proto"
)

func newTestChat(opts ...func(*Chat)) *Chat {
	r := lipgloss.DefaultRenderer()
	cfg := &config.Config{
		Settings: config.Settings{
			WordWrap:   80,
			MaxRetries: 3,
		},
	}
	c := NewChat(context.Background(), r, cfg, nil, nil, "")
	for _, o := range opts {
		o(c)
	}
	// Simulate a window size so View doesn't short-circuit.
	c.width = 80
	c.height = 24
	c.viewport.Width = 80
	c.viewport.Height = 22
	return c
}

func TestChat_ExitCommand(t *testing.T) {
	c := newTestChat()

	// Type "/exit" and press enter.
	c.input.SetValue("/exit")
	m, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_ = m

	if cmd == nil {
		t.Fatal("expected a command from /exit")
	}
	msg := cmd()
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg, got %T", msg)
	}
}

func TestChat_QuitCommand(t *testing.T) {
	c := newTestChat()

	c.input.SetValue("/quit")
	m, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_ = m

	if cmd == nil {
		t.Fatal("expected a command from /quit")
	}
	msg := cmd()
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg, got %T", msg)
	}
}

func TestChat_CtrlC_InputState(t *testing.T) {
	c := newTestChat()

	_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected a command from ctrl+c")
	}
	msg := cmd()
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg, got %T", msg)
	}
}

func TestChat_CtrlC_BusyState(t *testing.T) {
	c := newTestChat()
	c.state = chatBusyState

	m, cmd := c.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	chat := m.(*Chat)
	if chat.state != chatInputState {
		t.Errorf("expected chatInputState, got %d", chat.state)
	}
	// Should not quit, just cancel the running turn.
	if cmd != nil {
		msg := cmd()
		if _, ok := msg.(tea.QuitMsg); ok {
			t.Error("ctrl+c during a turn should not quit")
		}
	}
}

func TestChat_EmptyInput_Ignored(t *testing.T) {
	c := newTestChat()

	c.input.SetValue("")
	m, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	chat := m.(*Chat)
	if chat.state != chatInputState {
		t.Errorf("expected state to remain chatInputState, got %d", chat.state)
	}
	if cmd != nil {
		t.Error("expected no command for empty input")
	}
}

func TestChat_WhitespaceInput_Ignored(t *testing.T) {
	c := newTestChat()

	c.input.SetValue("   ")
	m, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	chat := m.(*Chat)
	if chat.state != chatInputState {
		t.Errorf("expected state to remain chatInputState, got %d", chat.state)
	}
	if cmd != nil {
		t.Error("expected no command for whitespace input")
	}
}

func TestChat_SubmitInput_TransitionsToBusy(t *testing.T) {
	c := newTestChat()

	m, cmd := c.Update(chatSubmitMsg{prompt: "hello"})
	chat := m.(*Chat)

	if chat.state != chatBusyState {
		t.Errorf("expected chatBusyState, got %d", chat.state)
	}
	if cmd == nil {
		t.Fatal("expected a command to start the turn")
	}
}

func TestChat_ToolEvents_RenderActivity(t *testing.T) {
	c := newTestChat()
	c.state = chatBusyState

	call := proto.ToolCall{ID: "call-1", Function: proto.Function{Name: "brightdata_search_engine"}}
	c.applyToolEvent(agent.Event{ToolCall: call})
	if c.activity != "brightdata_search_engine" {
		t.Errorf("expected running activity, got %q", c.activity)
	}

	c.applyToolEvent(agent.Event{ToolCall: call, Done: true})
	if c.activity != "" {
		t.Errorf("expected activity cleared, got %q", c.activity)
	}
	if !strings.Contains(c.streamBuf.String(), "called brightdata_search_engine") {
		t.Errorf("expected activity line in stream buffer, got %q", c.streamBuf.String())
	}
}

func TestChat_TurnDone_ReturnsToInput(t *testing.T) {
	c := newTestChat()
	c.state = chatBusyState

	msgs := []proto.Message{
		{Role: proto.RoleUser, Content: "hi"},
		{Role: proto.RoleAssistant, Content: "hello"},
	}

	m, _ := c.Update(chatTurnDoneMsg{result: agent.TurnResult{Messages: msgs, Reply: "hello"}})
	chat := m.(*Chat)

	if chat.state != chatInputState {
		t.Errorf("expected chatInputState after turn done, got %d", chat.state)
	}
	if len(chat.history) != 2 {
		t.Errorf("expected history length 2, got %d", len(chat.history))
	}
	if !strings.Contains(chat.historyBuf.String(), "hello") {
		t.Errorf("expected reply in history buffer, got %q", chat.historyBuf.String())
	}
}

func TestChat_InitialPrompt(t *testing.T) {
	c := newTestChat(func(c *Chat) {
		c.initialPrompt = "hello world"
	})

	cmd := c.Init()
	if cmd == nil {
		t.Fatal("expected init command")
	}
}

func TestChat_ViewShowsWaitingStatusWhileBusy(t *testing.T) {
	c := newTestChat()
	c.state = chatBusyState
	c.waitingSince = time.Now().Add(-3 * time.Second)
	c.historyBuf.WriteString("> hi\n\n")
	c.refreshViewport()

	v := c.View()
	if !strings.Contains(v, "Waiting for response...") {
		t.Fatalf("expected waiting status in view, got: %q", v)
	}
}

func TestChat_WaitingStatusIncludesElapsedClock(t *testing.T) {
	c := newTestChat()
	now := time.Date(2026, time.February, 16, 12, 0, 0, 0, time.UTC)
	c.waitingSince = now.Add(-(1*time.Minute + 15*time.Second))

	status := c.waitingStatus(now)
	if !strings.Contains(status, "[01:15]") {
		t.Fatalf("expected stopwatch in waiting status, got: %q", status)
	}
}

func TestChat_WaitingStatusNamesRunningTool(t *testing.T) {
	c := newTestChat()
	c.activity = "brightdata_scrape_as_markdown"

	status := c.waitingStatus(time.Now())
	if !strings.Contains(status, "Running brightdata_scrape_as_markdown...") {
		t.Fatalf("expected tool name in waiting status, got: %q", status)
	}
}

func TestLastReply(t *testing.T) {
	history := []proto.Message{
		{Role: proto.RoleUser, Content: "hi"},
		{Role: proto.RoleAssistant, Content: "hello"},
		{Role: proto.RoleAssistant},
	}
	if got := lastReply(history); got != "hello" {
		t.Errorf("expected last non-empty assistant reply, got %q", got)
	}
	if got := lastReply(nil); got != "" {
		t.Errorf("expected empty reply for empty history, got %q", got)
	}
}

func TestFormatElapsedClock(t *testing.T) {
	if got := formatElapsedClock(75 * time.Second); got != "01:15" {
		t.Errorf("expected 01:15, got %q", got)
	}
	if got := formatElapsedClock(3*time.Hour + 2*time.Minute + 1*time.Second); got != "03:02:01" {
		t.Errorf("expected 03:02:01, got %q", got)
	}
}
