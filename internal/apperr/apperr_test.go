package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := New(ConnectionError, "ping failed")
	wrapped := fmt.Errorf("open handle: %w", base)

	if got := KindOf(wrapped); got != ConnectionError {
		t.Errorf("Expected kind %s, got %s", ConnectionError, got)
	}
	if !Is(wrapped, ConnectionError) {
		t.Error("Expected Is to match ConnectionError")
	}
	if Is(nil, ConnectionError) {
		t.Error("Expected nil error to match no kind")
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("Expected empty kind for plain error, got %s", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(ConnectionError, "connect", cause)
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
}

func TestUserMessage(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		contains string
	}{
		{"nil", nil, ""},
		{"missing credentials", New(MissingCredentials, "x"), "all remote database connection details"},
		{"missing api key", New(MissingAPIKey, "x"), "API key"},
		{"connection", Wrap(ConnectionError, "x", errors.New("refused")), "refused"},
		{"agent", Wrap(AgentExecutionError, "x", errors.New("bad sql")), "Error processing query: bad sql"},
		{"invalid input", New(InvalidInput, `unsupported remote driver "oracle"`), `Invalid connection settings: unsupported remote driver "oracle".`},
		{"untyped", errors.New("boom"), "Error processing query: boom"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := UserMessage(tc.err)
			if tc.contains == "" {
				if got != "" {
					t.Errorf("Expected empty message, got %q", got)
				}
				return
			}
			if !strings.Contains(got, tc.contains) {
				t.Errorf("Expected message to contain %q, got %q", tc.contains, got)
			}
		})
	}
}
