package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"sqlchat/internal/apperr"
	"sqlchat/internal/config"
	"sqlchat/internal/database"
	"sqlchat/internal/llm"
	"sqlchat/internal/metrics"
	"sqlchat/internal/present"
)

// DefaultQuestionTimeout bounds one agent run.
const DefaultQuestionTimeout = 2 * time.Minute

// Agent answers one question against one database.
type Agent interface {
	Run(ctx context.Context, history []Message, question string, onEvent func(Event)) (string, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, history []Message, question string, onEvent func(Event)) (string, error)

func (f AgentFunc) Run(ctx context.Context, history []Message, question string, onEvent func(Event)) (string, error) {
	return f(ctx, history, question, onEvent)
}

// AgentFactory builds an agent for a handle and model. It is called once per
// session and again only when the handle is replaced.
type AgentFactory func(ctx context.Context, h *database.Handle, model *llm.Client) (Agent, error)

// ModelFactory builds the language model client.
type ModelFactory func(ctx context.Context, cfg llm.Config) (*llm.Client, error)

// HandleSource supplies database handles; *database.Provider implements it. A
// handle stays open until release is called, even if it is replaced meanwhile.
type HandleSource interface {
	Acquire(ctx context.Context, d config.ConnectionDescriptor) (h *database.Handle, release func(), err error)
}

// Dispatcher connects sessions to databases and routes questions to their agents.
type Dispatcher struct {
	handles  HandleSource
	newAgent AgentFactory
	newModel ModelFactory
	timeout  time.Duration
	budget   int
	counter  TokenCounter
	logger   *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithQuestionTimeout(d time.Duration) DispatcherOption {
	return func(x *Dispatcher) {
		if d > 0 {
			x.timeout = d
		}
	}
}

// WithHistoryBudget sets the token budget for history sent with each question.
func WithHistoryBudget(tokens int) DispatcherOption {
	return func(x *Dispatcher) { x.budget = tokens }
}

func WithTokenCounter(c TokenCounter) DispatcherOption {
	return func(x *Dispatcher) {
		if c != nil {
			x.counter = c
		}
	}
}

func WithModelFactory(f ModelFactory) DispatcherOption {
	return func(x *Dispatcher) {
		if f != nil {
			x.newModel = f
		}
	}
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(x *Dispatcher) {
		if l != nil {
			x.logger = l
		}
	}
}

func NewDispatcher(handles HandleSource, newAgent AgentFactory, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handles:  handles,
		newAgent: newAgent,
		newModel: llm.New,
		timeout:  DefaultQuestionTimeout,
		budget:   DefaultHistoryTokenBudget,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.counter == nil {
		d.counter = DefaultTokenizer()
	}
	return d
}

// Connect validates the input, opens (or reuses) the database handle, builds the model
// and constructs the session's agent. On failure the session keeps its previous
// connection, if any.
func (d *Dispatcher) Connect(ctx context.Context, s *Session, in config.Input, modelCfg llm.Config) error {
	desc, err := config.Validate(in)
	if err != nil {
		return err
	}
	if strings.TrimSpace(modelCfg.APIKey) == "" {
		return apperr.New(apperr.MissingAPIKey, "model provider API key is required")
	}

	h, release, err := d.handles.Acquire(ctx, desc)
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Wrap(apperr.ConnectionError, "open database", err)
		}
		return err
	}
	defer release()

	model, err := d.newModel(ctx, modelCfg)
	if err != nil {
		return err
	}

	a, err := d.newAgent(ctx, h, model)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	s.setConnection(desc, model, h, a)
	d.logger.Info("Session connected",
		"session", s.ID,
		"target", desc.Redacted(),
		"model", s.ModelName(),
	)
	return nil
}

// Ask records question, runs the agent and records the answer. If anything fails
// the question stays in the history, no assistant entry is added, and the error
// carries a kind for the presentation layer.
func (d *Dispatcher) Ask(ctx context.Context, s *Session, question string, onEvent func(Event)) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question is empty")
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	desc, model, handle, a, ok := s.connection()
	if !ok {
		return Answer{}, apperr.New(apperr.NotConfigured, "no database connected")
	}

	prior := s.Messages()
	s.append(Message{Role: RoleUser, Content: question, At: time.Now()})

	start := time.Now()
	outcome := "ok"
	defer func() { metrics.ObserveQuestion(outcome, time.Since(start)) }()

	// The provider rebuilds handles after their TTL; follow it. The handle is held
	// for the whole run so a rebuild by another session cannot close it.
	current, release, err := d.handles.Acquire(ctx, desc)
	if err != nil {
		outcome = string(apperr.ConnectionError)
		if apperr.KindOf(err) == "" {
			err = apperr.Wrap(apperr.ConnectionError, "open database", err)
		}
		return Answer{}, err
	}
	defer release()
	if current != handle {
		a, err = d.newAgent(ctx, current, model)
		if err != nil {
			outcome = string(apperr.AgentExecutionError)
			return Answer{}, apperr.Wrap(apperr.AgentExecutionError, "rebuild agent", err)
		}
		s.setConnection(desc, model, current, a)
	}

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	history := Window(prior, d.budget, d.counter)
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	text, err := a.Run(runCtx, history, question, onEvent)
	if err != nil {
		outcome = string(apperr.AgentExecutionError)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", d.timeout)
		}
		d.logger.Error("Agent execution failed", "session", s.ID, "error", config.Mask(err.Error()))
		return Answer{}, apperr.Wrap(apperr.AgentExecutionError, "run agent", err)
	}

	text = strings.TrimSpace(text)
	s.append(Message{Role: RoleAssistant, Content: text, At: time.Now()})
	d.logger.Info("Question answered",
		"session", s.ID,
		"history_messages", len(history),
		"duration", time.Since(start).String(),
	)
	return Answer{Text: text, View: present.Render(text)}, nil
}

// Clear resets the session's history to the greeting.
func (d *Dispatcher) Clear(s *Session) {
	s.turn.Lock()
	defer s.turn.Unlock()
	s.Clear()
}
