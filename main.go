package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"sqlchat/cmd"
	"sqlchat/internal/apperr"
	"sqlchat/internal/chat"
	"sqlchat/internal/present"
)

var logger = slog.New(slog.DiscardHandler)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	inputStyle     = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// renderMarkdown renders markdown content with glamour for beautiful display
func renderMarkdown(content string, width int) (string, error) {
	// Account for glamour's internal gutter
	const glamourGutter = 2

	renderWidth := width - glamourGutter
	if renderWidth < 40 {
		renderWidth = 40 // Minimum width for readable content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return "", err
	}

	return renderer.Render(content)
}

// renderTable draws a table answer with lipgloss.
func renderTable(t *present.Table) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers(t.Columns...).
		Rows(t.Rows...).
		Render()
}

type model struct {
	rt       *cmd.Runtime
	session  *chat.Session
	input    textinput.Model
	viewport viewport.Model

	width         int
	height        int
	viewportReady bool

	connected  bool
	connecting bool
	streaming  bool
	partial    string
	steps      []string
	err        error
	notice     string
}

type connectMsg struct {
	err error
}

// streamMsg carries one agent event; ch delivers the rest of the run.
type streamMsg struct {
	event chat.Event
	ch    <-chan tea.Msg
}

type answerMsg struct {
	answer chat.Answer
	err    error
}

type clipboardMsg struct {
	err error
}

func connectDatabase(rt *cmd.Runtime, s *chat.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), rt.Settings.ConnectTimeout+rt.Settings.ModelTimeout)
		defer cancel()
		return connectMsg{err: rt.Dispatcher.Connect(ctx, s, rt.Input, rt.Model)}
	}
}

// askQuestion runs the dispatcher in the background and feeds its events back to
// the program one message at a time.
func askQuestion(d *chat.Dispatcher, s *chat.Session, question string) tea.Cmd {
	ch := make(chan tea.Msg, 64)
	go func() {
		defer close(ch)
		answer, err := d.Ask(context.Background(), s, question, func(e chat.Event) {
			ch <- streamMsg{event: e, ch: ch}
		})
		ch <- answerMsg{answer: answer, err: err}
	}()
	return waitForStream(ch)
}

func waitForStream(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func copyLastAnswer(s *chat.Session) tea.Cmd {
	return func() tea.Msg {
		m, ok := s.LastAnswer()
		if !ok {
			return clipboardMsg{err: fmt.Errorf("no answer to copy yet")}
		}
		return clipboardMsg{err: clipboard.WriteAll(m.Content)}
	}
}

func initialModel(rt *cmd.Runtime) model {
	ti := textinput.New()
	ti.Placeholder = "Ask anything from the database"
	ti.Focus()
	ti.CharLimit = 1000
	ti.Width = 80

	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()

	return model{
		rt:         rt,
		session:    rt.Sessions.GetOrCreate(""),
		input:      ti,
		viewport:   vp,
		connecting: true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, connectDatabase(m.rt, m.session))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6

		// Reserve lines for the header, the input box, status and help text
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 9
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}
		m.viewportReady = true
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case connectMsg:
		m.connecting = false
		if msg.err != nil {
			logger.Error("Failed to connect", "error", msg.err)
			m.err = msg.err
			m.connected = false
		} else {
			m.err = nil
			m.connected = true
		}
		m.refreshViewport()
		return m, nil

	case streamMsg:
		switch msg.event.Kind {
		case chat.EventDelta:
			m.partial += msg.event.Text
		case chat.EventToolCall:
			m.steps = append(m.steps, msg.event.Tool)
		}
		m.refreshViewport()
		return m, waitForStream(msg.ch)

	case answerMsg:
		m.streaming = false
		m.partial = ""
		m.steps = nil
		if msg.err != nil {
			logger.Warn("Question failed", "error", msg.err)
			m.err = msg.err
		}
		m.refreshViewport()
		return m, nil

	case clipboardMsg:
		if msg.err != nil {
			m.notice = ""
			m.err = msg.err
		} else {
			m.notice = "✓ Copied last answer to clipboard"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		question := strings.TrimSpace(m.input.Value())
		if question == "" || m.streaming || m.connecting {
			return m, nil
		}
		if !m.connected {
			m.err = apperr.New(apperr.NotConfigured, "no database connected")
			return m, nil
		}
		m.input.SetValue("")
		m.err = nil
		m.notice = ""
		m.streaming = true
		m.partial = ""
		m.steps = nil
		cmd := askQuestion(m.rt.Dispatcher, m.session, question)
		m.refreshViewport()
		return m, cmd

	case tea.KeyCtrlL:
		if m.streaming {
			return m, nil
		}
		m.rt.Dispatcher.Clear(m.session)
		m.err = nil
		m.notice = "History cleared"
		m.refreshViewport()
		return m, nil

	case tea.KeyCtrlY:
		return m, copyLastAnswer(m.session)

	case tea.KeyCtrlR:
		if m.streaming || m.connecting {
			return m, nil
		}
		m.connecting = true
		m.err = nil
		return m, connectDatabase(m.rt, m.session)

	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// conversationContent renders the stored history plus any in-flight answer.
func (m model) conversationContent() string {
	width := m.viewport.Width
	var b strings.Builder

	for _, msg := range m.session.Messages() {
		if msg.Role == chat.RoleUser {
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
			continue
		}

		b.WriteString(assistantStyle.Render("Assistant"))
		b.WriteString("\n")
		view := msg.View()
		if view.IsTable() {
			b.WriteString(renderTable(view.Table))
			b.WriteString("\n\n")
			continue
		}
		rendered, err := renderMarkdown(view.Text, width)
		if err != nil {
			rendered = view.Text + "\n"
		}
		b.WriteString(strings.TrimLeft(rendered, "\n"))
		b.WriteString("\n")
	}

	if m.streaming {
		b.WriteString(assistantStyle.Render("Assistant"))
		b.WriteString("\n")
		for _, step := range m.steps {
			b.WriteString(mutedStyle.Render("▸ " + step))
			b.WriteString("\n")
		}
		if m.partial != "" {
			b.WriteString(m.partial)
		} else {
			b.WriteString(mutedStyle.Render("Thinking..."))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m *model) refreshViewport() {
	if !m.viewportReady {
		return
	}
	m.viewport.SetContent(m.conversationContent())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("🦜 Chat with SQL DB"))
	b.WriteString("  ")
	switch {
	case m.connecting:
		b.WriteString(mutedStyle.Render("Connecting..."))
	case m.connected:
		if d, ok := m.session.Descriptor(); ok {
			b.WriteString(successStyle.Render(fmt.Sprintf("● %s | %s", d.Redacted(), m.session.ModelName())))
		}
	default:
		b.WriteString(errorStyle.Render("● not connected"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	// Error display
	if m.err != nil {
		b.WriteString(errorStyle.Render(apperr.UserMessage(m.err)))
		b.WriteString("\n")
	} else if m.notice != "" {
		b.WriteString(successStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString(inputStyle.Render(m.input.View()))
	b.WriteString("\n")

	help := "Enter: Ask | ↑/↓/PgUp/PgDn: Scroll | Ctrl+L: Clear history | Ctrl+Y: Copy answer | Ctrl+R: Reconnect | Esc/Ctrl+C: Quit"
	b.WriteString(mutedStyle.Render(help))

	return b.String()
}

// launchTUI starts the interactive TUI application
func launchTUI(rt *cmd.Runtime) error {
	logger = rt.Logger

	if rt.Model.APIKey == "" {
		fmt.Fprintf(os.Stderr, "Warning: no API key for %s. Set the provider's API key variable or run 'sqlchat key set'.\n", rt.Model.Provider)
	}

	p := tea.NewProgram(
		initialModel(rt),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

func main() {
	// Set up cmd package callbacks
	cmd.LaunchTUI = launchTUI
	cmd.StartServer = startServer

	// Execute the CLI
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
