package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LookupFunc reads one environment variable.
type LookupFunc func(string) (string, bool)

// Settings are the process-wide tunables read from the environment.
type Settings struct {
	HTTPAddress        string
	Provider           string
	Model              string
	BaseURL            string
	HandleTTL          time.Duration
	SessionIdleTTL     time.Duration
	ConnectTimeout     time.Duration
	ModelTimeout       time.Duration
	QuestionTimeout    time.Duration
	HistoryTokenBudget int
	MaxHistoryMessages int
	MaxAgentSteps      int
}

// DefaultSettings caches handles for two hours and idles sessions out after a day.
func DefaultSettings() Settings {
	return Settings{
		HTTPAddress:        ":3000",
		Provider:           "groq",
		HandleTTL:          2 * time.Hour,
		SessionIdleTTL:     24 * time.Hour,
		ConnectTimeout:     10 * time.Second,
		ModelTimeout:       60 * time.Second,
		QuestionTimeout:    2 * time.Minute,
		HistoryTokenBudget: 3000,
		MaxHistoryMessages: 200,
		MaxAgentSteps:      15,
	}
}

// LoadSettingsFromEnv reads SQLCHAT_* variables from the process environment.
func LoadSettingsFromEnv() (Settings, error) {
	return LoadSettings(os.LookupEnv)
}

// LoadSettings applies overrides from lookup on top of DefaultSettings.
func LoadSettings(lookup LookupFunc) (Settings, error) {
	if lookup == nil {
		return Settings{}, fmt.Errorf("lookup function is required")
	}
	s := DefaultSettings()

	if err := applyString(lookup, "SQLCHAT_HTTP_ADDR", &s.HTTPAddress); err != nil {
		return Settings{}, err
	}
	if err := applyString(lookup, "SQLCHAT_PROVIDER", &s.Provider); err != nil {
		return Settings{}, err
	}
	if err := applyString(lookup, "SQLCHAT_MODEL", &s.Model); err != nil {
		return Settings{}, err
	}
	if err := applyString(lookup, "SQLCHAT_BASE_URL", &s.BaseURL); err != nil {
		return Settings{}, err
	}
	if err := applyDuration(lookup, "SQLCHAT_HANDLE_TTL", &s.HandleTTL); err != nil {
		return Settings{}, err
	}
	if err := applyDuration(lookup, "SQLCHAT_SESSION_IDLE_TTL", &s.SessionIdleTTL); err != nil {
		return Settings{}, err
	}
	if err := applyDuration(lookup, "SQLCHAT_CONNECT_TIMEOUT", &s.ConnectTimeout); err != nil {
		return Settings{}, err
	}
	if err := applyDuration(lookup, "SQLCHAT_MODEL_TIMEOUT", &s.ModelTimeout); err != nil {
		return Settings{}, err
	}
	if err := applyDuration(lookup, "SQLCHAT_QUESTION_TIMEOUT", &s.QuestionTimeout); err != nil {
		return Settings{}, err
	}
	if err := applyInt(lookup, "SQLCHAT_HISTORY_TOKEN_BUDGET", &s.HistoryTokenBudget); err != nil {
		return Settings{}, err
	}
	if err := applyInt(lookup, "SQLCHAT_MAX_HISTORY_MESSAGES", &s.MaxHistoryMessages); err != nil {
		return Settings{}, err
	}
	if err := applyInt(lookup, "SQLCHAT_MAX_AGENT_STEPS", &s.MaxAgentSteps); err != nil {
		return Settings{}, err
	}

	if s.HandleTTL <= 0 {
		return Settings{}, fmt.Errorf("SQLCHAT_HANDLE_TTL must be positive")
	}
	if s.MaxAgentSteps <= 0 {
		return Settings{}, fmt.Errorf("SQLCHAT_MAX_AGENT_STEPS must be positive")
	}
	return s, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}
