package chat

import (
	"sync"
	"time"

	"sqlchat/internal/config"
	"sqlchat/internal/database"
	"sqlchat/internal/llm"
)

// DefaultMaxMessages caps the stored history of one session.
const DefaultMaxMessages = 200

// Session is the conversation and connection state of one user.
type Session struct {
	ID string

	// turn serialises questions within the session.
	turn sync.Mutex

	mu          sync.Mutex
	messages    []Message
	maxMessages int
	lastSeen    time.Time

	configured bool
	descriptor config.ConnectionDescriptor
	model      *llm.Client
	handle     *database.Handle
	agent      Agent
}

// NewSession returns a session holding only the greeting.
func NewSession(id string) *Session {
	s := &Session{ID: id, maxMessages: DefaultMaxMessages, lastSeen: time.Now()}
	s.messages = []Message{greeting()}
	return s
}

func greeting() Message {
	return Message{Role: RoleAssistant, Content: Greeting, At: time.Now()}
}

// Messages returns a copy of the history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear discards every turn and leaves the single greeting. The connection is kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []Message{greeting()}
}

// LastAnswer returns the most recent assistant message that is not the greeting.
func (s *Session) LastAnswer() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if m := s.messages[i]; m.Role == RoleAssistant && !m.isGreeting() {
			return m, true
		}
	}
	return Message{}, false
}

// Configured reports whether Connect has succeeded for this session.
func (s *Session) Configured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configured
}

// Descriptor returns the connected database, if any.
func (s *Session) Descriptor() (config.ConnectionDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descriptor, s.configured
}

// ModelName returns "provider/model" of the connected model, or "".
func (s *Session) ModelName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return ""
	}
	return string(s.model.Provider()) + "/" + s.model.ModelID()
}

func (s *Session) append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	if s.maxMessages <= 0 || len(s.messages) <= s.maxMessages {
		return
	}
	drop := len(s.messages) - s.maxMessages
	if s.messages[0].isGreeting() {
		s.messages = append(s.messages[:1], s.messages[1+drop:]...)
		return
	}
	s.messages = append([]Message(nil), s.messages[drop:]...)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) setConnection(d config.ConnectionDescriptor, model *llm.Client, h *database.Handle, a Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configured = true
	s.descriptor = d
	s.model = model
	s.handle = h
	s.agent = a
}

func (s *Session) connection() (config.ConnectionDescriptor, *llm.Client, *database.Handle, Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descriptor, s.model, s.handle, s.agent, s.configured
}
