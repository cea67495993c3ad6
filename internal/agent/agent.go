// Package agent builds the natural-language-to-SQL agent: a fantasy agent with a
// SQL toolkit bound to one database handle.
package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"charm.land/fantasy"

	"sqlchat/internal/chat"
	"sqlchat/internal/database"
	"sqlchat/internal/llm"
)

const (
	defaultMaxSteps = 15
	defaultTopK     = 10
)

const systemPromptTemplate = `You are an agent designed to interact with a %[1]s database.
Given an input question, create a syntactically correct %[1]s query to run, then look at the results of the query and return the answer.
Unless the user specifies a specific number of examples they wish to obtain, always limit your query to at most %[2]d results.
You can order the results by a relevant column to return the most interesting examples in the database.
Never query for all the columns from a specific table, only ask for the relevant columns given the question.
You have access to tools for interacting with the database. Only use the information returned by these tools to construct your final answer.
Always start by calling %[3]s to see what you can query, then call %[4]s for the relevant tables.
You MUST double check your query with %[5]s before executing it with %[6]s. If you get an error while executing a query, rewrite the query and try again.
%[7]s
If the question does not seem related to the database, just return "I don't know" as the answer.
When the answer is a list of rows, you may return the exact %[6]s output, e.g. [(1, 'Alice'), (2, 'Bob')].`

// AgentConfig holds the configuration for creating a SQL agent
type AgentConfig struct {
	systemPrompt string
	maxSteps     int
	topK         int
	sampleRows   int
	exclusions   []string
	logger       *slog.Logger
}

// AgentOption is a functional option for configuring the agent
type AgentOption func(*AgentConfig) error

// WithSystemPrompt replaces the generated system prompt
func WithSystemPrompt(prompt string) AgentOption {
	return func(c *AgentConfig) error {
		if strings.TrimSpace(prompt) == "" {
			return fmt.Errorf("system prompt cannot be empty")
		}
		c.systemPrompt = prompt
		return nil
	}
}

// WithMaxSteps sets the maximum number of model steps per question (default: 15)
func WithMaxSteps(n int) AgentOption {
	return func(c *AgentConfig) error {
		if n <= 0 {
			return fmt.Errorf("max steps must be positive")
		}
		c.maxSteps = n
		return nil
	}
}

// WithTopK sets the default row limit the agent is told to apply (default: 10)
func WithTopK(k int) AgentOption {
	return func(c *AgentConfig) error {
		if k <= 0 {
			return fmt.Errorf("top k must be positive")
		}
		c.topK = k
		return nil
	}
}

// WithSampleRows sets how many example rows the schema tool returns per table
func WithSampleRows(n int) AgentOption {
	return func(c *AgentConfig) error {
		if n < 0 {
			return fmt.Errorf("sample rows cannot be negative")
		}
		c.sampleRows = n
		return nil
	}
}

// WithToolExclusions removes tools by name from the toolkit
func WithToolExclusions(names []string) AgentOption {
	return func(c *AgentConfig) error {
		c.exclusions = names
		return nil
	}
}

// WithLogger sets the logger for tool activity
func WithLogger(logger *slog.Logger) AgentOption {
	return func(c *AgentConfig) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// SQLAgent answers questions about one database.
type SQLAgent struct {
	agent  fantasy.Agent
	handle *database.Handle
	tools  []fantasy.AgentTool
	logger *slog.Logger
}

// NewSQLAgent creates a fantasy agent over h using the model in client.
// It uses the Options pattern for flexible configuration.
func NewSQLAgent(h *database.Handle, client *llm.Client, opts ...AgentOption) (*SQLAgent, error) {
	if h == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if client == nil || client.Model() == nil {
		return nil, fmt.Errorf("language model is required")
	}

	config := &AgentConfig{
		maxSteps:   defaultMaxSteps,
		topK:       defaultTopK,
		sampleRows: DefaultSampleRows,
		logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if config.systemPrompt == "" {
		config.systemPrompt = SystemPrompt(h.Dialect(), config.topK, h.ReadOnly())
	}

	tools := CreateSQLTools(h, config.sampleRows, config.exclusions, config.logger)

	a := fantasy.NewAgent(
		client.Model(),
		fantasy.WithSystemPrompt(config.systemPrompt),
		fantasy.WithTools(tools...),
		fantasy.WithStopConditions(fantasy.StepCountIs(config.maxSteps)),
	)

	return &SQLAgent{agent: a, handle: h, tools: tools, logger: config.logger}, nil
}

// SystemPrompt renders the agent instructions for a dialect.
func SystemPrompt(dialect database.Dialect, topK int, readOnly bool) string {
	writes := "DO NOT make any DML statements (INSERT, UPDATE, DELETE, DROP etc.) to the database."
	if readOnly {
		writes += " The database is read-only and such statements will fail."
	}
	return fmt.Sprintf(systemPromptTemplate,
		dialect.Name(), topK,
		ToolListTables, ToolSchema, ToolQueryChecker, ToolQuery,
		writes,
	)
}

// Tools returns the toolkit the agent was built with.
func (a *SQLAgent) Tools() []fantasy.AgentTool { return a.tools }

// Run answers question with history as prior context, streaming text deltas and
// tool activity to onEvent in generation order.
func (a *SQLAgent) Run(ctx context.Context, history []chat.Message, question string, onEvent func(chat.Event)) (string, error) {
	if onEvent == nil {
		onEvent = func(chat.Event) {}
	}

	result, err := a.agent.Stream(ctx, fantasy.AgentStreamCall{
		Prompt:   question,
		Messages: toFantasyMessages(history),
		OnTextDelta: func(id, text string) error {
			onEvent(chat.Event{Kind: chat.EventDelta, Text: text})
			return nil
		},
		OnToolCall: func(tc fantasy.ToolCallContent) error {
			a.logger.Debug("Agent tool call", "tool", tc.ToolName, "input", tc.Input)
			onEvent(chat.Event{Kind: chat.EventToolCall, Tool: tc.ToolName, Input: tc.Input})
			return nil
		},
		OnToolResult: func(tr fantasy.ToolResultContent) error {
			onEvent(chat.Event{Kind: chat.EventToolResult, Tool: tr.ToolName})
			return nil
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	text := strings.TrimSpace(result.Response.Content.Text())
	if text == "" {
		return "", fmt.Errorf("agent stopped after %d steps without an answer", len(result.Steps))
	}
	return text, nil
}

func toFantasyMessages(history []chat.Message) []fantasy.Message {
	msgs := make([]fantasy.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case chat.RoleUser:
			msgs = append(msgs, fantasy.NewUserMessage(m.Content))
		case chat.RoleAssistant:
			msgs = append(msgs, fantasy.Message{
				Role:    fantasy.MessageRoleAssistant,
				Content: []fantasy.MessagePart{fantasy.TextPart{Text: m.Content}},
			})
		}
	}
	return msgs
}

// Factory adapts NewSQLAgent to the dispatcher's AgentFactory.
func Factory(opts ...AgentOption) chat.AgentFactory {
	return func(ctx context.Context, h *database.Handle, model *llm.Client) (chat.Agent, error) {
		return NewSQLAgent(h, model, opts...)
	}
}

// GenerateResponse builds an agent and answers a single question without history.
func GenerateResponse(ctx context.Context, h *database.Handle, client *llm.Client, question string, opts ...AgentOption) (string, error) {
	a, err := NewSQLAgent(h, client, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create agent: %w", err)
	}
	return a.Run(ctx, nil, question, nil)
}
