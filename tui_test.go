package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sqlchat/internal/apperr"
	"sqlchat/internal/chat"
	"sqlchat/internal/present"
)

// connectedModel returns a sized model whose session is connected to the test database.
func connectedModel(t *testing.T, reply replyFunc) model {
	t.Helper()
	rt := SetupTestRuntime(t, reply)
	m := initialModel(rt)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = updated.(model)

	msg := connectDatabase(rt, m.session)()
	updated, _ = m.Update(msg)
	m = updated.(model)
	if !m.connected {
		t.Fatalf("Expected model to be connected, got err %v", m.err)
	}
	return m
}

// ask types question, presses Enter and feeds stream messages back until the answer arrives.
func ask(t *testing.T, m model, question string) model {
	t.Helper()
	m.input.SetValue(question)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(model)
	if !m.streaming {
		t.Fatal("Expected streaming after Enter")
	}

	deadline := time.After(5 * time.Second)
	for cmd != nil {
		done := make(chan tea.Msg, 1)
		go func(c tea.Cmd) { done <- c() }(cmd)

		var msg tea.Msg
		select {
		case msg = <-done:
		case <-deadline:
			t.Fatal("Timed out waiting for answer")
		}

		updated, cmd = m.Update(msg)
		m = updated.(model)
		if _, ok := msg.(answerMsg); ok {
			break
		}
	}
	return m
}

func TestInitialModel(t *testing.T) {
	rt := SetupTestRuntime(t, staticReply("unused"))
	m := initialModel(rt)

	if !m.connecting {
		t.Error("Expected model to start connecting")
	}
	if m.connected || m.streaming {
		t.Error("Expected no connection or stream initially")
	}
	if !m.input.Focused() {
		t.Error("Expected input to be focused initially")
	}
	msgs := m.session.Messages()
	if len(msgs) != 1 || msgs[0].Content != chat.Greeting {
		t.Errorf("Expected greeting only, got %+v", msgs)
	}
	if m.Init() == nil {
		t.Error("Expected Init to return a command")
	}
}

func TestConnectFailure(t *testing.T) {
	rt := SetupTestRuntime(t, staticReply("unused"))
	m := initialModel(rt)

	updated, _ := m.Update(connectMsg{err: apperr.New(apperr.MissingAPIKey, "no key")})
	m = updated.(model)

	if m.connected || m.connecting {
		t.Error("Expected model to be disconnected after failure")
	}
	if !strings.Contains(m.View(), "Please provide your model provider API key to continue.") {
		t.Error("Expected API key message in view")
	}

	// Enter without a connection reports it instead of asking
	m.input.SetValue("How many students?")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(model)
	if cmd != nil || m.streaming {
		t.Error("Expected no question to be sent while disconnected")
	}
	if !apperr.Is(m.err, apperr.NotConfigured) {
		t.Errorf("Expected not configured error, got %v", m.err)
	}
}

func TestAskQuestion(t *testing.T) {
	m := connectedModel(t, staticReply("There are 5 students in the table."))

	m = ask(t, m, "How many students are there?")

	if m.streaming {
		t.Error("Expected streaming to finish")
	}
	if m.err != nil {
		t.Errorf("Expected no error, got %v", m.err)
	}
	if m.input.Value() != "" {
		t.Errorf("Expected input to be cleared, got %q", m.input.Value())
	}

	msgs := m.session.Messages()
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[2].Content != "There are 5 students in the table." {
		t.Errorf("Unexpected answer %q", msgs[2].Content)
	}
	if !strings.Contains(m.conversationContent(), "How many students are there?") {
		t.Error("Expected question in conversation")
	}
}

func TestAskQuestionFailure(t *testing.T) {
	m := connectedModel(t, func(string) (string, error) {
		return "", errors.New("no such column: GRADE")
	})

	m = ask(t, m, "What grade is Krish in?")

	if !apperr.Is(m.err, apperr.AgentExecutionError) {
		t.Fatalf("Expected agent execution error, got %v", m.err)
	}
	if !strings.Contains(m.View(), "no such column: GRADE") {
		t.Error("Expected error in view")
	}
	msgs := m.session.Messages()
	if len(msgs) != 2 || msgs[1].Role != chat.RoleUser {
		t.Errorf("Expected question kept without answer, got %+v", msgs)
	}
}

func TestStreamMsgAccumulates(t *testing.T) {
	m := connectedModel(t, staticReply("unused"))
	m.streaming = true

	ch := make(chan tea.Msg)
	for _, e := range []chat.Event{
		{Kind: chat.EventToolCall, Tool: "sql_db_list_tables"},
		{Kind: chat.EventDelta, Text: "Krish "},
		{Kind: chat.EventDelta, Text: "scored 90"},
	} {
		updated, _ := m.Update(streamMsg{event: e, ch: ch})
		m = updated.(model)
	}

	if m.partial != "Krish scored 90" {
		t.Errorf("Expected accumulated partial, got %q", m.partial)
	}
	if len(m.steps) != 1 || m.steps[0] != "sql_db_list_tables" {
		t.Errorf("Expected one tool step, got %v", m.steps)
	}
	content := m.conversationContent()
	if !strings.Contains(content, "Krish scored 90") || !strings.Contains(content, "sql_db_list_tables") {
		t.Errorf("Expected partial answer and step in conversation, got %q", content)
	}
}

func TestClearHistoryKey(t *testing.T) {
	m := connectedModel(t, staticReply("There are 5 students."))
	m = ask(t, m, "How many students?")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m = updated.(model)

	msgs := m.session.Messages()
	if len(msgs) != 1 || msgs[0].Content != chat.Greeting {
		t.Errorf("Expected greeting only after clear, got %+v", msgs)
	}
	if !m.session.Configured() {
		t.Error("Expected connection to survive clearing history")
	}
	if m.notice != "History cleared" {
		t.Errorf("Expected notice, got %q", m.notice)
	}
}

func TestKeyHandling(t *testing.T) {
	testCases := []struct {
		name     string
		key      tea.KeyMsg
		wantQuit bool
	}{
		{"Escape quits", tea.KeyMsg{Type: tea.KeyEsc}, true},
		{"Ctrl+C quits", tea.KeyMsg{Type: tea.KeyCtrlC}, true},
		{"Empty Enter is ignored", tea.KeyMsg{Type: tea.KeyEnter}, false},
		{"Page up scrolls", tea.KeyMsg{Type: tea.KeyPgUp}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := connectedModel(t, staticReply("unused"))
			_, cmd := m.Update(tc.key)

			quit := false
			if cmd != nil {
				_, quit = cmd().(tea.QuitMsg)
			}
			if quit != tc.wantQuit {
				t.Errorf("Expected quit=%v, got %v", tc.wantQuit, quit)
			}
		})
	}
}

func TestRenderTable(t *testing.T) {
	v := present.Render("[('Krish', 'Data Science', 90), ('John', 'Data Science', 100)]")
	if !v.IsTable() {
		t.Fatal("Expected table view")
	}

	out := renderTable(v.Table)
	for _, want := range []string{"Krish", "John", "Data Science", "100"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in rendered table", want)
		}
	}
}

func TestConversationRendersTableAnswers(t *testing.T) {
	m := connectedModel(t, staticReply("[('Krish', 90)]"))
	m = ask(t, m, "Who scored 90?")

	content := m.conversationContent()
	if !strings.Contains(content, "Krish") || !strings.Contains(content, "╭") {
		t.Errorf("Expected bordered table in conversation, got %q", content)
	}
}
