// Package tui implements the interactive chat surface.
package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/scour/internal/agent"
	"github.com/dotcommander/scour/internal/config"
	"github.com/dotcommander/scour/internal/errs"
	"github.com/dotcommander/scour/internal/present"
	"github.com/dotcommander/scour/internal/proto"
)

type chatState int

const (
	chatInputState chatState = iota
	chatBusyState
)

// Chat is the Bubble Tea model for an interactive multi-turn REPL.
type Chat struct {
	Error *errs.Error

	state    chatState
	input    textinput.Model
	viewport viewport.Model
	glam     *glamour.TermRenderer
	renderer *lipgloss.Renderer
	styles   present.Styles

	history    []proto.Message
	historyBuf bytes.Buffer // rendered conversation so far
	streamBuf  bytes.Buffer // current turn being assembled

	agent      *agent.Service
	cfg        *config.Config
	ctx        context.Context
	turnCancel context.CancelFunc

	width  int
	height int

	renderScheduled bool
	dirtyOutput     bool
	retries         int
	initialPrompt   string
	waitingSince    time.Time
	activity        string
	note            string
}

// NewChat creates the Bubble Tea model for interactive chat.
func NewChat(
	ctx context.Context,
	r *lipgloss.Renderer,
	cfg *config.Config,
	agentSvc *agent.Service,
	history []proto.Message,
	initialPrompt string,
) *Chat {
	gr, _ := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(cfg.WordWrap),
	)

	ti := textinput.New()
	ti.Prompt = "scour> "
	ti.Focus()
	ti.CharLimit = 0

	vp := viewport.New(0, 0)
	vp.GotoBottom()

	c := &Chat{
		state:         chatInputState,
		input:         ti,
		viewport:      vp,
		glam:          gr,
		renderer:      r,
		styles:        present.MakeStyles(r),
		agent:         agentSvc,
		cfg:           cfg,
		ctx:           ctx,
		history:       history,
		initialPrompt: initialPrompt,
	}

	// Pre-render existing history into historyBuf.
	for _, msg := range history {
		if msg.Role == proto.RoleSystem || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case proto.RoleUser:
			fmt.Fprintf(&c.historyBuf, "> %s\n\n", msg.Content)
		case proto.RoleAssistant:
			fmt.Fprintf(&c.historyBuf, "%s\n\n", msg.Content)
		}
	}

	return c
}

// chatSubmitMsg is sent when the user presses Enter with non-empty input.
type chatSubmitMsg struct {
	prompt string
}

// chatToolMsg reports one tool invocation event inside the running turn.
type chatToolMsg struct {
	event agent.Event
	ch    chan tea.Msg
}

// chatTurnDoneMsg signals the turn finished, successfully or not.
type chatTurnDoneMsg struct {
	result agent.TurnResult
	err    error
	prompt string
}

type chatRenderMsg struct{}

type chatWaitingTickMsg struct{}

// Init implements tea.Model.
func (c *Chat) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if c.initialPrompt != "" {
		cmds = append(cmds, func() tea.Msg {
			return chatSubmitMsg{prompt: c.initialPrompt}
		})
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (c *Chat) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.resizeViewport()
		c.refreshViewport()
		return c, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if c.state == chatBusyState {
				c.cancelTurn()
				c.waitingSince = time.Time{}
				c.activity = ""
				c.finishTurn()
				c.state = chatInputState
				c.resizeViewport()
				return c, nil
			}
			return c, tea.Quit
		case "ctrl+y":
			if reply := lastReply(c.history); reply != "" {
				if err := clipboard.WriteAll(reply); err != nil {
					c.note = "Could not copy to clipboard."
				} else {
					c.note = "Copied last reply."
				}
			}
			return c, nil
		case "enter":
			if c.state != chatInputState {
				break
			}
			text := strings.TrimSpace(c.input.Value())
			if text == "" {
				return c, nil
			}
			if text == "/exit" || text == "/quit" {
				return c, tea.Quit
			}
			c.input.SetValue("")
			return c, func() tea.Msg {
				return chatSubmitMsg{prompt: text}
			}
		}

	case chatSubmitMsg:
		c.retries = 0
		c.note = ""
		fmt.Fprintf(&c.historyBuf, "> %s\n\n", msg.prompt)
		c.streamBuf.Reset()
		c.waitingSince = time.Now()
		c.state = chatBusyState
		c.resizeViewport()
		c.dirtyOutput = true
		c.refreshViewport()
		return c, tea.Batch(c.startTurnCmd(msg.prompt), c.waitingTickCmd())

	case chatToolMsg:
		c.applyToolEvent(msg.event)
		cmds = append(cmds, c.receiveTurnCmd(msg.ch))
		if !c.renderScheduled {
			c.renderScheduled = true
			cmds = append(cmds, c.renderTickCmd())
		}
		return c, tea.Batch(cmds...)

	case chatTurnDoneMsg:
		return c.turnDone(msg)

	case chatWaitingTickMsg:
		if c.state == chatBusyState {
			return c, c.waitingTickCmd()
		}
		return c, nil

	case chatRenderMsg:
		c.renderScheduled = false
		if c.dirtyOutput {
			c.refreshViewport()
		}
		return c, nil

	case errs.Error:
		e := msg
		c.Error = &e
		return c, tea.Quit

	case error:
		e := errs.Error{Err: msg}
		c.Error = &e
		return c, tea.Quit
	}

	// Update sub-models.
	if c.state == chatInputState {
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return c, tea.Batch(cmds...)
}

// View implements tea.Model.
func (c *Chat) View() string {
	if c.width == 0 || c.height == 0 {
		return ""
	}

	divider := c.styles.Comment.Render(strings.Repeat("─", max(c.width, 1)))

	if c.state == chatBusyState {
		return c.viewport.View() + "\n" + divider + "\n" + c.waitingStatus(time.Now())
	}

	footer := c.input.View()
	if c.note != "" {
		footer += "  " + c.styles.Comment.Render(c.note)
	}
	return c.viewport.View() + "\n" + divider + "\n" + footer
}

// Messages returns the current conversation history.
func (c *Chat) Messages() []proto.Message {
	return c.history
}

func (c *Chat) startTurnCmd(prompt string) tea.Cmd {
	return func() tea.Msg {
		if c.agent == nil {
			return errs.Error{Reason: "Agent is not available"}
		}
		c.cancelTurn()

		ctx := c.ctx
		var cancel context.CancelFunc
		if c.cfg.RequestTimeout > 0 {
			ctx, cancel = context.WithTimeout(c.ctx, c.cfg.RequestTimeout)
		} else {
			ctx, cancel = context.WithCancel(c.ctx)
		}
		c.turnCancel = cancel

		ch := make(chan tea.Msg, 8)
		go func() {
			defer close(ch)
			result, err := c.agent.Turn(ctx, c.history, prompt, func(e agent.Event) {
				ch <- chatToolMsg{event: e, ch: ch}
			})
			ch <- chatTurnDoneMsg{result: result, err: err, prompt: prompt}
		}()
		return <-ch
	}
}

func (c *Chat) receiveTurnCmd(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (c *Chat) applyToolEvent(e agent.Event) {
	name := e.ToolCall.Function.Name
	switch {
	case !e.Done:
		c.activity = name
	case e.Err != nil:
		c.activity = ""
		fmt.Fprintf(&c.streamBuf, "* %s failed\n\n", name)
		c.dirtyOutput = true
	default:
		c.activity = ""
		fmt.Fprintf(&c.streamBuf, "* called %s\n\n", name)
		c.dirtyOutput = true
	}
}

func (c *Chat) turnDone(msg chatTurnDoneMsg) (tea.Model, tea.Cmd) {
	c.cancelTurn()
	c.waitingSince = time.Time{}
	c.activity = ""

	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			c.finishTurn()
			c.state = chatInputState
			c.resizeViewport()
			return c, nil
		}

		var loopErr *agent.LoopError
		if errors.As(msg.err, &loopErr) {
			// The turn is lost but the session survives.
			c.streamBuf.Reset()
			action := c.agent.ActionForError(msg.err, msg.prompt)
			fmt.Fprintf(&c.historyBuf, "%s\n\n", action.Err.Reason)
			c.dirtyOutput = true
			c.state = chatInputState
			c.resizeViewport()
			c.refreshViewport()
			return c, nil
		}

		action := c.agent.ActionForError(msg.err, msg.prompt)
		if action.Retry {
			c.retries++
			if c.retries < c.cfg.MaxRetries {
				c.streamBuf.Reset()
				return c, c.startTurnCmd(action.Prompt)
			}
		}
		c.Error = &action.Err
		return c, tea.Quit
	}

	c.history = msg.result.Messages
	if msg.result.Reply != "" {
		fmt.Fprintf(&c.streamBuf, "%s\n", msg.result.Reply)
	}
	c.finishTurn()
	c.state = chatInputState
	c.resizeViewport()
	c.refreshViewport()
	return c, nil
}

func (c *Chat) finishTurn() {
	// Move the assembled turn into the history buffer.
	if c.streamBuf.Len() > 0 {
		fmt.Fprintf(&c.historyBuf, "%s\n", c.streamBuf.String())
		c.streamBuf.Reset()
	}
	c.dirtyOutput = true
}

func (c *Chat) cancelTurn() {
	if c.turnCancel != nil {
		c.turnCancel()
		c.turnCancel = nil
	}
}

func (c *Chat) refreshViewport() {
	combined := c.historyBuf.String() + c.streamBuf.String()
	if combined == "" {
		return
	}

	rendered, err := c.glam.Render(combined)
	if err != nil {
		rendered = combined
	}
	rendered = strings.TrimRightFunc(rendered, unicode.IsSpace)
	rendered += "\n"

	truncated := c.renderer.NewStyle().MaxWidth(c.width).Render(rendered)

	wasAtBottom := c.viewport.ScrollPercent() >= 1.0
	c.viewport.SetContent(truncated)
	if wasAtBottom {
		c.viewport.GotoBottom()
	}
	c.dirtyOutput = false
}

func (c *Chat) renderTickCmd() tea.Cmd {
	const renderInterval = 33 * time.Millisecond
	return tea.Tick(renderInterval, func(time.Time) tea.Msg {
		return chatRenderMsg{}
	})
}

func (c *Chat) waitingTickCmd() tea.Cmd {
	const waitingInterval = 200 * time.Millisecond
	return tea.Tick(waitingInterval, func(time.Time) tea.Msg {
		return chatWaitingTickMsg{}
	})
}

func (c *Chat) resizeViewport() {
	if c.width > 0 {
		c.viewport.Width = c.width
	}
	h := c.height - 2
	if h < 1 {
		h = 1
	}
	c.viewport.Height = h
}

func (c *Chat) waitingStatus(now time.Time) string {
	label := "Waiting for response..."
	if c.cfg.StatusText != "" {
		label = c.cfg.StatusText
	}
	if c.activity != "" {
		label = "Running " + c.activity + "..."
	}
	if c.waitingSince.IsZero() {
		return c.styles.Comment.Render(label)
	}

	elapsed := now.Sub(c.waitingSince)
	if elapsed < 0 {
		elapsed = 0
	}

	return c.styles.Comment.Render(label + " [" + formatElapsedClock(elapsed) + "]")
}

func formatElapsedClock(d time.Duration) string {
	totalSeconds := int(d / time.Second)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func lastReply(history []proto.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == proto.RoleAssistant && history[i].Content != "" {
			return history[i].Content
		}
	}
	return ""
}
