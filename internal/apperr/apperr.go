// Package apperr defines the typed error kinds shared by every surface of sqlchat.
//
// Lower layers wrap failures with a Kind; the presentation boundary (web, TUI, CLI)
// calls UserMessage once to decide what the user sees.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// MissingCredentials means remote mode was chosen with at least one empty field.
	MissingCredentials Kind = "missing_credentials"
	// MissingAPIKey means no model provider key was supplied.
	MissingAPIKey Kind = "missing_api_key"
	// ConnectionError means the database could not be opened or reached.
	ConnectionError Kind = "connection_error"
	// AgentExecutionError means the agent failed while answering one question.
	AgentExecutionError Kind = "agent_execution_error"
	// PresentationParseError is recovered locally and never shown to the user.
	PresentationParseError Kind = "presentation_parse_error"
	// NotConfigured means a question arrived before a database was connected.
	NotConfigured Kind = "not_configured"
	// InvalidInput means a connection setting names a mode or driver sqlchat does not support.
	InvalidInput Kind = "invalid_input"
)

// E wraps an error with a kind and a human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage turns an error into the inline text shown by the UIs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *E
	if !errors.As(err, &e) {
		return fmt.Sprintf("Error processing query: %v", err)
	}
	switch e.Kind {
	case MissingCredentials:
		return "Please provide all remote database connection details."
	case MissingAPIKey:
		return "Please provide your model provider API key to continue."
	case ConnectionError:
		if e.Err != nil {
			return fmt.Sprintf("Could not connect to the database: %v", e.Err)
		}
		return "Could not connect to the database."
	case AgentExecutionError:
		if e.Err != nil {
			return fmt.Sprintf("Error processing query: %v", e.Err)
		}
		return "Error processing query."
	case NotConfigured:
		return "Connect to a database before asking a question."
	case InvalidInput:
		return fmt.Sprintf("Invalid connection settings: %s.", e.Message)
	default:
		return e.Message
	}
}
