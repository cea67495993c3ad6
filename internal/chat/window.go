package chat

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// DefaultHistoryTokenBudget bounds the history sent to the model with each question.
const DefaultHistoryTokenBudget = 3000

// perMessageOverhead approximates the role and framing tokens of a chat message.
const perMessageOverhead = 4

// TokenCounter counts tokens in a string.
type TokenCounter interface {
	CountText(text string) int
}

// Tokenizer counts tokens with tiktoken, or with a character heuristic when the
// encoding cannot be loaded (for example offline, without a BPE cache).
type Tokenizer struct {
	mu       sync.Mutex
	encoder  *tiktoken.Tiktoken
	fallback bool
}

var (
	defaultTokenizer     *Tokenizer
	defaultTokenizerOnce sync.Once
)

// DefaultTokenizer returns a shared cl100k_base tokenizer.
func DefaultTokenizer() *Tokenizer {
	defaultTokenizerOnce.Do(func() {
		defaultTokenizer = NewTokenizer("cl100k_base")
	})
	return defaultTokenizer
}

func NewTokenizer(encoding string) *Tokenizer {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return &Tokenizer{fallback: true}
	}
	return &Tokenizer{encoder: enc}
}

// Precise reports whether tiktoken is in use.
func (t *Tokenizer) Precise() bool { return !t.fallback }

func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback {
		return heuristicTokenCount(text)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// heuristicTokenCount assumes roughly four characters per token.
func heuristicTokenCount(text string) int {
	n := (len([]rune(text)) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Window returns the longest suffix of history whose token count fits budget.
// The greeting is never sent. A budget of zero or less disables history.
func Window(history []Message, budget int, counter TokenCounter) []Message {
	if budget <= 0 || len(history) == 0 {
		return nil
	}
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.isGreeting() {
			break
		}
		cost := perMessageOverhead + counter.CountText(m.Content)
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	// Start the window on a user turn so the model never sees an orphaned answer.
	for start < len(history) && history[start].Role != RoleUser {
		start++
	}
	if start >= len(history) {
		return nil
	}
	out := make([]Message, len(history)-start)
	copy(out, history[start:])
	return out
}
