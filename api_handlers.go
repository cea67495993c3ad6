package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"sqlchat/cmd"
	"sqlchat/internal/apperr"
	"sqlchat/internal/chat"
	"sqlchat/internal/config"
	"sqlchat/internal/present"
)

// sessionHeader lets API clients that do not keep cookies name their session.
const sessionHeader = "X-Session-ID"

// APIHandler handles JSON API requests
type APIHandler struct {
	rt *cmd.Runtime
}

func NewAPIHandler(rt *cmd.Runtime) *APIHandler {
	return &APIHandler{rt: rt}
}

type connectRequest struct {
	Mode     string `json:"mode"`
	Driver   string `json:"driver,omitempty"`
	Host     string `json:"host,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Database string `json:"database,omitempty"`
	Provider string `json:"provider,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"`
}

type chatRequest struct {
	Question string `json:"question"`
}

type messageJSON struct {
	Role    chat.Role    `json:"role"`
	Content string       `json:"content"`
	View    present.View `json:"view"`
}

// session resolves the caller's session from the header or the web cookie and
// echoes its id back in the header.
func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) *chat.Session {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}
	s := h.rt.Sessions.GetOrCreate(id)
	w.Header().Set(sessionHeader, s.ID)
	return s
}

// Connect configures the session's database and model
func (h *APIHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid JSON body",
		})
		return
	}
	s := h.session(w, r)

	modelCfg, err := formModelConfig(h.rt, req.Provider, req.APIKey, req.Model)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	in := config.Input{
		Mode:         config.Mode(req.Mode),
		EmbeddedPath: h.rt.Input.EmbeddedPath,
		Driver:       config.Driver(req.Driver),
		Host:         req.Host,
		Username:     req.Username,
		Password:     req.Password,
		Database:     req.Database,
	}
	if err := h.rt.Dispatcher.Connect(r.Context(), s, in, modelCfg); err != nil {
		respondError(w, err)
		return
	}

	status := sessionStatus(s)
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID,
		"target":     status.Target,
		"model":      status.Model,
	})
}

// Chat answers one question. A session that has not been configured is connected
// with the server's startup settings first.
func (h *APIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid JSON body",
		})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "question is required",
		})
		return
	}

	s := h.session(w, r)
	if !s.Configured() {
		if err := h.rt.Dispatcher.Connect(r.Context(), s, h.rt.Input, h.rt.Model); err != nil {
			respondError(w, err)
			return
		}
	}

	answer, err := h.rt.Dispatcher.Ask(r.Context(), s, req.Question, nil)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID,
		"answer":     answer.Text,
		"view":       answer.View,
	})
}

// History returns the session's messages, oldest first
func (h *APIHandler) History(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	msgs := s.Messages()
	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageJSON{Role: m.Role, Content: m.Content, View: m.View()})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID,
		"messages":   out,
		"count":      len(out),
	})
}

// ClearHistory resets the session to the greeting
func (h *APIHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	h.rt.Dispatcher.Clear(s)
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID,
		"count":      len(s.Messages()),
	})
}

// statusFor maps an error kind to an HTTP status code.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.MissingCredentials, apperr.MissingAPIKey, apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.NotConfigured:
		return http.StatusConflict
	case apperr.ConnectionError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), map[string]string{
		"error": apperr.UserMessage(err),
		"kind":  string(apperr.KindOf(err)),
	})
}

// respondJSON is a helper function to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("JSON encoding error", "error", err)
	}
}
