package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sqlchat/cmd"
	"sqlchat/internal/chat"
	"sqlchat/internal/config"
	"sqlchat/internal/database"
	"sqlchat/internal/llm"
)

// replyFunc scripts the agent's answer to one question.
type replyFunc func(question string) (string, error)

type wordCounter struct{}

func (wordCounter) CountText(s string) int { return len(strings.Fields(s)) }

func stubModel(ctx context.Context, cfg llm.Config) (*llm.Client, error) {
	return llm.NewWithModel(cfg, nil), nil
}

// SetupTestRuntime builds a runtime over a fresh sample student.db whose agent
// answers with reply, streaming the answer word by word.
func SetupTestRuntime(t *testing.T, reply replyFunc) *cmd.Runtime {
	t.Helper()

	path := filepath.Join(t.TempDir(), "student.db")
	if err := database.CreateSampleDatabase(context.Background(), path); err != nil {
		t.Fatalf("failed to create sample database: %v", err)
	}

	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	logger = log

	settings := config.DefaultSettings()
	handles := database.NewProvider(database.WithLogger(log))
	t.Cleanup(func() { _ = handles.Close() })

	factory := func(ctx context.Context, h *database.Handle, model *llm.Client) (chat.Agent, error) {
		return chat.AgentFunc(func(ctx context.Context, history []chat.Message, question string, onEvent func(chat.Event)) (string, error) {
			onEvent(chat.Event{Kind: chat.EventToolCall, Tool: "sql_db_query", Input: "SELECT * FROM STUDENT"})
			answer, err := reply(question)
			if err != nil {
				return "", err
			}
			for _, word := range strings.SplitAfter(answer, " ") {
				onEvent(chat.Event{Kind: chat.EventDelta, Text: word})
			}
			return answer, nil
		}), nil
	}

	dispatcher := chat.NewDispatcher(handles, factory,
		chat.WithModelFactory(stubModel),
		chat.WithTokenCounter(wordCounter{}),
		chat.WithQuestionTimeout(5*time.Second),
		chat.WithDispatcherLogger(log),
	)

	return &cmd.Runtime{
		DataDir:    t.TempDir(),
		Settings:   settings,
		Logger:     log,
		Handles:    handles,
		Dispatcher: dispatcher,
		Sessions:   chat.NewStore(),
		Input:      config.Input{Mode: config.ModeEmbedded, EmbeddedPath: path},
		Model:      llm.Config{Provider: llm.ProviderGroq, APIKey: "test-key", Model: "test-model"},
	}
}

// staticReply always answers with text.
func staticReply(text string) replyFunc {
	return func(string) (string, error) { return text, nil }
}
